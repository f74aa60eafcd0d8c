package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeights_Validate(t *testing.T) {
	tests := []struct {
		name string
		w    Weights
		ok   bool
	}{
		{"defaults", DefaultWeights(), true},
		{"upper tolerance", Weights{0.35, 0.25, 0.20, 0.21}, true},
		{"lower tolerance", Weights{0.35, 0.25, 0.20, 0.19}, true},
		{"all on one factor", Weights{Proximity: 1}, true},
		{"too high", Weights{0.35, 0.25, 0.20, 0.22}, false},
		{"too low", Weights{0.30, 0.25, 0.20, 0.20}, false},
		{"negative", Weights{1.2, -0.2, 0, 0}, false},
		{"zero", Weights{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate(0.01)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidWeights)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestWeights_Merge(t *testing.T) {
	w := DefaultWeights().Merge(&WeightOverrides{Proximity: ptr(0.55), Stock: ptr(0.0)})
	assert.Equal(t, Weights{Proximity: 0.55, Priority: 0.25, Workload: 0.20, Stock: 0}, w)
	assert.NoError(t, w.Validate(0.01))

	assert.Equal(t, DefaultWeights(), DefaultWeights().Merge(nil))
}
