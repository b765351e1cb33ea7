// Package weights computes target portfolio weights.
//
// A Calculator maps percentile signals to weights through per-asset rules
// and gives the remainder to a residual asset. A Source is anything able to
// produce the target Vector of a date; Static and Dynamic are the two
// implementations, and a Registry names them for the simulator.
package weights

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
)

// Tolerance is the accepted distance between the sum of a Vector and 1.
const Tolerance = 1e-6

var (
	// ErrOverAllocation is returned when rule driven weights exceed 1 before the residual is assigned.
	ErrOverAllocation = errors.New("over allocation")
	// ErrInvalidWeights is returned for negative or non-normalized weights and invalid rules.
	ErrInvalidWeights = errors.New("invalid weights")
	// ErrMissingSignal is returned when a rule has no signal in the snapshot.
	ErrMissingSignal = errors.New("missing signal")
	// ErrUnknownStrategy is returned by Registry.Lookup for unregistered names.
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// Vector maps asset identifiers to their portfolio weight.
//
// Vectors handed out by this package are fresh; holders must Clone before
// changing one they did not create.
type Vector map[string]float64

// Sum returns the sum of all weights.
func (v Vector) Sum() float64 {
	var s float64
	for _, a := range v.Assets() {
		s += v[a]
	}
	return s
}

// Clone returns a copy of v.
func (v Vector) Clone() Vector { return maps.Clone(v) }

// Assets returns the assets of v in lexical order.
func (v Vector) Assets() []string { return slices.Sorted(maps.Keys(v)) }

// Validate checks that every weight is finite and non-negative and that they sum to 1.
func (v Vector) Validate() error {
	for _, a := range v.Assets() {
		w := v[a]
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("weight of %s is %v: %w", a, w, ErrInvalidWeights)
		}
	}
	if s := v.Sum(); math.Abs(s-1) > Tolerance {
		return fmt.Errorf("weights sum to %v: %w", s, ErrInvalidWeights)
	}
	return nil
}

// String formats v as "A=0.1000 B=0.9000".
func (v Vector) String() string {
	parts := make([]string, 0, len(v))
	for _, a := range v.Assets() {
		parts = append(parts, fmt.Sprintf("%s=%.4f", a, v[a]))
	}
	return strings.Join(parts, " ")
}
