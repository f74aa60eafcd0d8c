package assignment

import (
	"fmt"
	"time"

	"github.com/kilianp07/fieldassign/core/geo"
	"github.com/kilianp07/fieldassign/core/model"
)

// Default priority boosts for scheduled calls.
const (
	DefaultOverdueBoost = 10.0
	DefaultTodayBoost   = 5.0
)

// Config defines the tunable constants of the engine.
type Config struct {
	// StalenessWindowMinutes bounds the age of a live position. Zero selects
	// the default; a negative value trusts live positions regardless of age.
	StalenessWindowMinutes int                          `json:"staleness_window_minutes"`
	MaxDistanceKM          float64                      `json:"max_distance_km"`
	MaxCallsPerEngineer    int                          `json:"max_calls_per_engineer"`
	IdealStock             int                          `json:"ideal_stock"`
	StrongFactorThreshold  float64                      `json:"strong_factor_threshold"`
	TieEpsilon             float64                      `json:"tie_epsilon"`
	WeightTolerance        float64                      `json:"weight_tolerance"`
	// OverdueBoost and TodayBoost raise the priority score of scheduled
	// calls. An explicit 0 disables the boost.
	OverdueBoost           *float64                     `json:"overdue_boost"`
	TodayBoost             *float64                     `json:"today_boost"`
	RegionalFallback       *bool                        `json:"regional_fallback"`
	RegionCentroids        map[string]model.Coordinates `json:"region_centroids"`
	// EnforceWorkloadCap excludes engineers at MaxCallsPerEngineer from
	// eligibility instead of only scoring their workload at zero.
	EnforceWorkloadCap bool     `json:"enforce_workload_cap"`
	DefaultWeights     *Weights `json:"default_weights"`
}

// SetDefaults applies the defaults for every unset field.
func (c *Config) SetDefaults() {
	if c.StalenessWindowMinutes == 0 {
		c.StalenessWindowMinutes = int(geo.DefaultStalenessWindow / time.Minute)
	}
	if c.MaxDistanceKM == 0 {
		c.MaxDistanceKM = 100
	}
	if c.MaxCallsPerEngineer == 0 {
		c.MaxCallsPerEngineer = 10
	}
	if c.IdealStock == 0 {
		c.IdealStock = 3
	}
	if c.StrongFactorThreshold == 0 {
		c.StrongFactorThreshold = 70
	}
	if c.TieEpsilon == 0 {
		c.TieEpsilon = 0.01
	}
	if c.WeightTolerance == 0 {
		c.WeightTolerance = 0.01
	}
	if c.OverdueBoost == nil {
		v := DefaultOverdueBoost
		c.OverdueBoost = &v
	}
	if c.TodayBoost == nil {
		v := DefaultTodayBoost
		c.TodayBoost = &v
	}
	if c.RegionalFallback == nil {
		on := true
		c.RegionalFallback = &on
	}
	if c.DefaultWeights == nil {
		w := DefaultWeights()
		c.DefaultWeights = &w
	}
}

// Validate checks the configuration after defaults were applied.
func (c Config) Validate() error {
	if c.MaxDistanceKM <= 0 {
		return fmt.Errorf("max_distance_km must be positive")
	}
	if c.MaxCallsPerEngineer <= 0 {
		return fmt.Errorf("max_calls_per_engineer must be positive")
	}
	if c.IdealStock <= 0 {
		return fmt.Errorf("ideal_stock must be positive")
	}
	if c.TieEpsilon < 0 || c.WeightTolerance < 0 {
		return fmt.Errorf("tie_epsilon and weight_tolerance must not be negative")
	}
	if overdue, today := c.Boosts(); overdue < 0 || today < 0 {
		return fmt.Errorf("priority boosts must not be negative")
	}
	if c.DefaultWeights != nil {
		if err := c.DefaultWeights.Validate(c.WeightTolerance); err != nil {
			return fmt.Errorf("default_weights: %w", err)
		}
	}
	return nil
}

// Boosts returns the overdue and scheduled-today priority boosts, falling
// back to the defaults when unset.
func (c Config) Boosts() (overdue, today float64) {
	overdue, today = DefaultOverdueBoost, DefaultTodayBoost
	if c.OverdueBoost != nil {
		overdue = *c.OverdueBoost
	}
	if c.TodayBoost != nil {
		today = *c.TodayBoost
	}
	return overdue, today
}

// Resolver builds the location resolver described by the configuration.
func (c Config) Resolver() geo.Resolver {
	fallback := c.RegionalFallback == nil || *c.RegionalFallback
	r := geo.Resolver{
		RegionalFallback: fallback,
		Centroids:        geo.MergeCentroids(c.RegionCentroids),
	}
	if c.StalenessWindowMinutes > 0 {
		r.StalenessWindow = time.Duration(c.StalenessWindowMinutes) * time.Minute
	}
	return r
}

// Weights returns the configured default weights.
func (c Config) Weights() Weights {
	if c.DefaultWeights == nil {
		return DefaultWeights()
	}
	return *c.DefaultWeights
}
