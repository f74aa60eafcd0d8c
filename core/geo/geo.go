// Package geo resolves where an engineer can be considered to be and
// measures great-circle distances between coordinates.
package geo

import (
	"math"
	"time"

	"github.com/kilianp07/fieldassign/core/model"
)

// EarthRadiusKM is the mean Earth radius used by Distance.
const EarthRadiusKM = 6371.0

// DefaultStalenessWindow is the maximum age of a live position before it is
// ignored.
const DefaultStalenessWindow = 2 * time.Hour

// Distance returns the Haversine distance in kilometres between a and b.
// The boolean is false when either point is missing.
func Distance(a, b *model.Coordinates) (float64, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if a.Lat == b.Lat && a.Lng == b.Lng {
		return 0, true
	}
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	if h > 1 {
		h = 1
	}
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKM * c, true
}

// LocationResolver determines the coordinate used for an engineer when
// scoring proximity. A nil result means the location is unknown.
type LocationResolver interface {
	ResolveEngineerLocation(e model.Engineer, now time.Time) *model.Coordinates
}

// Resolver prefers a fresh live position, then the centroid of the
// engineer's named region.
type Resolver struct {
	// StalenessWindow bounds the age of a live position. Zero or negative
	// disables the check and live positions are always trusted.
	StalenessWindow time.Duration
	// RegionalFallback enables the centroid lookup.
	RegionalFallback bool
	Centroids        map[string]model.Coordinates
}

// NewResolver returns the canonical resolver with the default staleness
// window and the default region table.
func NewResolver() Resolver {
	return Resolver{
		StalenessWindow:  DefaultStalenessWindow,
		RegionalFallback: true,
		Centroids:        DefaultCentroids(),
	}
}

// NewBasicResolver returns a resolver that only uses live positions, without
// staleness checks or regional fallback.
func NewBasicResolver() Resolver {
	return Resolver{}
}

// ResolveEngineerLocation implements LocationResolver.
func (r Resolver) ResolveEngineerLocation(e model.Engineer, now time.Time) *model.Coordinates {
	if e.Location != nil && r.fresh(e.LocationUpdatedAt, now) {
		loc := *e.Location
		return &loc
	}
	if !r.RegionalFallback || e.Region == "" {
		return nil
	}
	if c, ok := r.Centroids[normalizeRegion(e.Region)]; ok {
		return &c
	}
	return nil
}

func (r Resolver) fresh(updated *time.Time, now time.Time) bool {
	if r.StalenessWindow <= 0 {
		return true
	}
	if updated == nil {
		return false
	}
	age := now.Sub(*updated)
	if age < 0 {
		// Clock skew on the device; a report from the future is still the latest one.
		return true
	}
	return age <= r.StalenessWindow
}
