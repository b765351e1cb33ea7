// Package signal turns raw valuation and yield series into percentile signals.
//
// A percentile signal is the rank of the most recent observation within its
// trailing window: 0 for the cheapest reading of the window, 1 for the most
// expensive one.
//
// Tie rule: rank = (count(values <= current) - 1) / (n - 1), n being the
// number of observations in the window. The current observation counts once,
// every other observation equal to it counts as "below or equal". Hence a
// window maximum ranks 1, a unique window minimum ranks 0, and a flat window
// ranks 1.
package signal

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/etnz/rebalance/date"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInsufficientHistory is returned by a Strict engine when the window is not full.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrInvalidWindow is returned for window lengths below 2.
	ErrInvalidWindow = errors.New("invalid percentile window")
	// ErrNonFinite is returned when the window contains NaN or infinite values.
	ErrNonFinite = errors.New("non finite value in window")
)

// Neutral is the reading used when there is no history to rank against.
const Neutral = 0.5

// Policy decides what happens when fewer than Window observations exist.
type Policy int

const (
	// Shrink ranks within whatever shorter window is available, and falls back
	// to Neutral below MinObservations.
	Shrink Policy = iota
	// Strict fails with ErrInsufficientHistory unless the window is full.
	Strict
)

func (p Policy) String() string {
	if p == Strict {
		return "strict"
	}
	return "shrink"
}

// Reading is one percentile observation.
type Reading struct {
	Value        float64 // in [0, 1]
	Observations int     // size of the window actually ranked
	Fallback     bool    // true when Value is the Neutral fallback
}

// Engine computes percentile readings over a trailing window.
type Engine struct {
	Window          int // trailing window length, in observations
	MinObservations int // below this, Shrink falls back to Neutral; at least 2
	Policy          Policy
}

// NewEngine returns a Shrink engine over window observations.
func NewEngine(window int) Engine {
	return Engine{Window: window, MinObservations: 2, Policy: Shrink}
}

func (e Engine) minObservations() int { return max(e.MinObservations, 2) }

// Percentile ranks the observation of s resolved for 'on' (nearest prior date)
// within its trailing window.
func (e Engine) Percentile(s date.Series, on date.Date) (Reading, error) {
	if e.Window < 2 {
		return Reading{}, fmt.Errorf("window of %d observations: %w", e.Window, ErrInvalidWindow)
	}
	window := s.Trailing(on, e.Window)
	n := len(window)

	switch {
	case e.Policy == Strict && n < e.Window:
		return Reading{Observations: n}, fmt.Errorf("%d observations on %s, want %d: %w", n, on, e.Window, ErrInsufficientHistory)
	case n < e.minObservations():
		return Reading{Value: Neutral, Observations: n, Fallback: true}, nil
	}

	v, err := Rank(window)
	if err != nil {
		return Reading{}, fmt.Errorf("ranking on %s: %w", on, err)
	}
	return Reading{Value: v, Observations: n}, nil
}

// Series derives the whole percentile signal of s.
//
// Dates where the signal is undefined (fallback or insufficient history) are
// absent from the result.
func (e Engine) Series(s date.Series) (*date.History[float64], error) {
	out := new(date.History[float64])
	for on := range s.Values() {
		r, err := e.Percentile(s, on)
		if errors.Is(err, ErrInsufficientHistory) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if r.Fallback {
			continue
		}
		out.Append(on, r.Value)
	}
	return out, nil
}

// Rank returns the percentile rank of the last value of window among all
// values of window, using the package tie rule.
func Rank(window []float64) (float64, error) {
	n := len(window)
	if n == 0 {
		return Neutral, nil
	}
	for _, v := range window {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return math.NaN(), ErrNonFinite
		}
	}
	if n == 1 {
		return Neutral, nil
	}
	current := window[n-1]
	sorted := slices.Clone(window)
	slices.Sort(sorted)

	// Empirical CDF is the fraction of the window <= current.
	le := math.Round(stat.CDF(current, stat.Empirical, sorted, nil) * float64(n))
	return (le - 1) / float64(n-1), nil
}
