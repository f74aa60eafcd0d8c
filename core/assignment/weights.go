package assignment

import (
	"fmt"
	"math"
)

// weightSlack absorbs float rounding when comparing a sum to the tolerance.
const weightSlack = 1e-9

// Weights are the factors applied to the four sub-scores.
type Weights struct {
	Proximity float64 `json:"proximity"`
	Priority  float64 `json:"priority"`
	Workload  float64 `json:"workload"`
	Stock     float64 `json:"stock"`
}

// WeightOverrides is a partial Weights merged onto the defaults.
type WeightOverrides struct {
	Proximity *float64 `json:"proximity,omitempty"`
	Priority  *float64 `json:"priority,omitempty"`
	Workload  *float64 `json:"workload,omitempty"`
	Stock     *float64 `json:"stock,omitempty"`
}

// DefaultWeights returns the built-in weighting.
func DefaultWeights() Weights {
	return Weights{Proximity: 0.35, Priority: 0.25, Workload: 0.20, Stock: 0.20}
}

// Merge returns w with every non-nil override applied.
func (w Weights) Merge(o *WeightOverrides) Weights {
	if o == nil {
		return w
	}
	if o.Proximity != nil {
		w.Proximity = *o.Proximity
	}
	if o.Priority != nil {
		w.Priority = *o.Priority
	}
	if o.Workload != nil {
		w.Workload = *o.Workload
	}
	if o.Stock != nil {
		w.Stock = *o.Stock
	}
	return w
}

// Sum returns the total of the four factors.
func (w Weights) Sum() float64 {
	return w.Proximity + w.Priority + w.Workload + w.Stock
}

// Validate checks that every factor is a finite non-negative number and that
// the sum is within tolerance of one.
func (w Weights) Validate(tolerance float64) error {
	for name, v := range w.Map() {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return &ValidationError{Field: "weights." + name, Err: fmt.Errorf("%w: %v", ErrInvalidWeights, v)}
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > tolerance+weightSlack {
		return &ValidationError{Field: "weights", Err: fmt.Errorf("%w: sum %.4f not within %.2f of 1", ErrInvalidWeights, sum, tolerance)}
	}
	return nil
}

// Map returns the weights keyed by factor name.
func (w Weights) Map() map[string]float64 {
	return map[string]float64{
		factorProximity: w.Proximity,
		factorPriority:  w.Priority,
		factorWorkload:  w.Workload,
		factorStock:     w.Stock,
	}
}
