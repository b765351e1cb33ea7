package weights

import (
	"fmt"
	"maps"
	"slices"

	"github.com/etnz/rebalance/date"
	"github.com/etnz/rebalance/signal"
)

// Inputs gives read access to the indicator series known before a date.
//
// The simulator hands sources an Inputs truncated strictly before the date
// being evaluated, so no Source can look ahead.
type Inputs interface {
	Indicator(name string) (date.Series, bool)
}

// Source produces the target weights of a date.
type Source interface {
	TargetWeights(on date.Date, in Inputs) (Vector, error)
}

// Static always targets the same weights.
type Static struct{ weights Vector }

// NewStatic validates v and returns a Source targeting it on every date.
func NewStatic(v Vector) (*Static, error) {
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("static strategy: %w", err)
	}
	return &Static{weights: v.Clone()}, nil
}

// TargetWeights returns a copy of the static weights.
func (s *Static) TargetWeights(date.Date, Inputs) (Vector, error) { return s.weights.Clone(), nil }

// Dynamic derives percentile signals from indicator series and feeds them to a Calculator.
type Dynamic struct {
	Calculator Calculator
	Engine     signal.Engine
}

// NewDynamic validates the calculator and returns the Source.
func NewDynamic(c Calculator, e signal.Engine) (*Dynamic, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if e.Window < 2 {
		return nil, fmt.Errorf("window of %d observations: %w", e.Window, signal.ErrInvalidWindow)
	}
	return &Dynamic{Calculator: c, Engine: e}, nil
}

// TargetWeights computes the signals of every rule from in, then the weights.
func (d *Dynamic) TargetWeights(on date.Date, in Inputs) (Vector, error) {
	snap, err := d.Snapshot(on, in)
	if err != nil {
		return nil, err
	}
	return d.Calculator.TargetWeights(on, snap)
}

// Snapshot reads the signals the rules need as of on.
func (d *Dynamic) Snapshot(on date.Date, in Inputs) (Snapshot, error) {
	snap := Snapshot{
		Valuation: make(map[string]float64),
		YieldRank: make(map[string]float64),
		Yield:     make(map[string]float64),
	}
	for _, r := range d.Calculator.Rules {
		if r.Kind == Fixed {
			continue
		}
		s, ok := in.Indicator(r.Indicator)
		if !ok {
			return Snapshot{}, fmt.Errorf("indicator %q for %s: %w", r.Indicator, r.Asset, ErrMissingSignal)
		}
		switch r.Kind {
		case CashEquivalent:
			y, ok := s.ValueAsOf(on)
			if !ok {
				return Snapshot{}, fmt.Errorf("no yield of %s before %s: %w", r.Asset, on, ErrMissingSignal)
			}
			snap.Yield[r.Asset] = y
		case Risk, FixedIncome:
			reading, err := d.Engine.Percentile(s, on)
			if err != nil {
				return Snapshot{}, fmt.Errorf("signal %q for %s: %w", r.Indicator, r.Asset, err)
			}
			if r.Kind == Risk {
				snap.Valuation[r.Asset] = reading.Value
			} else {
				snap.YieldRank[r.Asset] = reading.Value
			}
		}
	}
	return snap, nil
}

// Registry maps strategy names to Sources.
//
// It is built explicitly by the caller and passed to the simulator, there is
// no package level registry.
type Registry struct {
	sources map[string]Source
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{sources: make(map[string]Source)} }

// Register adds s under name. Names are unique.
func (r *Registry) Register(name string, s Source) error {
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("strategy %q already registered", name)
	}
	r.sources[name] = s
	return nil
}

// Lookup returns the Source registered under name.
func (r *Registry) Lookup(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%q (known: %v): %w", name, r.Names(), ErrUnknownStrategy)
	}
	return s, nil
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string { return slices.Sorted(maps.Keys(r.sources)) }
