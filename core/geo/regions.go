package geo

import (
	"strings"

	"github.com/kilianp07/fieldassign/core/model"
)

// DefaultCentroids returns the compass-direction region table.
func DefaultCentroids() map[string]model.Coordinates {
	return map[string]model.Coordinates{
		"north":   {Lat: 28.6139, Lng: 77.2090},
		"south":   {Lat: 12.9716, Lng: 77.5946},
		"east":    {Lat: 22.5726, Lng: 88.3639},
		"west":    {Lat: 19.0760, Lng: 72.8777},
		"central": {Lat: 21.1458, Lng: 79.0882},

		"northeast": {Lat: 26.1445, Lng: 91.7362},
		"northwest": {Lat: 30.7333, Lng: 76.7794},
		"southeast": {Lat: 13.0827, Lng: 80.2707},
		"southwest": {Lat: 9.9312, Lng: 76.2673},
	}
}

// MergeCentroids overlays configured centroids onto the default table.
// Keys are normalised so "North", "north" and "North-East" match the table.
func MergeCentroids(overrides map[string]model.Coordinates) map[string]model.Coordinates {
	out := DefaultCentroids()
	for k, v := range overrides {
		out[normalizeRegion(k)] = v
	}
	return out
}

var regionSeparators = strings.NewReplacer("-", "", "_", "", " ", "")

func normalizeRegion(s string) string {
	return regionSeparators.Replace(strings.ToLower(strings.TrimSpace(s)))
}
