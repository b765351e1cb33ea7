package weights

import (
	"fmt"
	"math"

	"github.com/etnz/rebalance/date"
)

// Kind selects the sizing rule of an asset.
type Kind int

const (
	// Risk assets are sized base × (1 − valuation percentile).
	Risk Kind = iota
	// FixedIncome assets are sized base × yield percentile.
	FixedIncome
	// CashEquivalent assets are sized multiplier × yield, only above a yield threshold.
	CashEquivalent
	// Fixed assets always receive base.
	Fixed
)

func (k Kind) String() string {
	switch k {
	case Risk:
		return "risk"
	case FixedIncome:
		return "fixed_income"
	case CashEquivalent:
		return "cash"
	case Fixed:
		return "fixed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses the names returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "risk", "equity":
		return Risk, nil
	case "fixed_income", "bond":
		return FixedIncome, nil
	case "cash", "cash_equivalent":
		return CashEquivalent, nil
	case "fixed", "static":
		return Fixed, nil
	}
	return Risk, fmt.Errorf("unknown asset kind %q", s)
}

// Rule sizes one asset.
type Rule struct {
	Asset string
	Kind  Kind
	Base  float64 // base allocation, a fraction of the portfolio

	// Indicator names the series the signal is derived from: the valuation
	// ratio for Risk, the yield for FixedIncome and CashEquivalent.
	Indicator string

	YieldThreshold float64 // CashEquivalent only: no allocation at or below this yield
	Multiplier     float64 // CashEquivalent only: weight per unit of yield, 1 when zero
}

// Snapshot holds the signals of every asset as of one date.
type Snapshot struct {
	Valuation map[string]float64 // valuation percentile, in [0, 1]
	YieldRank map[string]float64 // yield percentile, in [0, 1]
	Yield     map[string]float64 // yield level, e.g. 0.031 for 3.1%
}

// Calculator maps a Snapshot to a target Vector.
type Calculator struct {
	Rules    []Rule
	Residual string // asset receiving what the rules leave unallocated
}

// Validate checks the rule set once, before any date is evaluated.
func (c Calculator) Validate() error {
	if c.Residual == "" {
		return fmt.Errorf("no residual asset: %w", ErrInvalidWeights)
	}
	seen := map[string]bool{c.Residual: true}
	for _, r := range c.Rules {
		if seen[r.Asset] {
			return fmt.Errorf("asset %q is sized twice: %w", r.Asset, ErrInvalidWeights)
		}
		seen[r.Asset] = true
		if r.Base < 0 || r.Multiplier < 0 || math.IsNaN(r.Base) {
			return fmt.Errorf("rule for %q has a negative allocation: %w", r.Asset, ErrInvalidWeights)
		}
	}
	return nil
}

// TargetWeights applies the rules to snap. The result always sums to 1 within
// Tolerance; rule weights summing above 1 fail with ErrOverAllocation.
func (c Calculator) TargetWeights(on date.Date, snap Snapshot) (Vector, error) {
	v := make(Vector, len(c.Rules)+1)
	var allocated float64
	for _, r := range c.Rules {
		w, err := r.weight(snap)
		if err != nil {
			return nil, fmt.Errorf("target weights on %s: %w", on, err)
		}
		v[r.Asset] = w
		allocated += w
	}
	if allocated > 1+Tolerance {
		return nil, fmt.Errorf("rules allocate %.6f on %s: %w", allocated, on, ErrOverAllocation)
	}
	v[c.Residual] = max(0, 1-allocated)
	return v, nil
}

func (r Rule) weight(snap Snapshot) (float64, error) {
	lookup := func(m map[string]float64, what string) (float64, error) {
		x, ok := m[r.Asset]
		if !ok || math.IsNaN(x) {
			return 0, fmt.Errorf("%s of %s: %w", what, r.Asset, ErrMissingSignal)
		}
		return x, nil
	}

	switch r.Kind {
	case Risk:
		p, err := lookup(snap.Valuation, "valuation percentile")
		if err != nil {
			return 0, err
		}
		return r.Base * (1 - clamp01(p)), nil
	case FixedIncome:
		p, err := lookup(snap.YieldRank, "yield percentile")
		if err != nil {
			return 0, err
		}
		return r.Base * clamp01(p), nil
	case CashEquivalent:
		y, err := lookup(snap.Yield, "yield")
		if err != nil {
			return 0, err
		}
		if y <= r.YieldThreshold {
			return 0, nil
		}
		m := r.Multiplier
		if m == 0 {
			m = 1
		}
		return max(0, m*y), nil
	case Fixed:
		return r.Base, nil
	default:
		return 0, fmt.Errorf("asset %s has %v: %w", r.Asset, r.Kind, ErrInvalidWeights)
	}
}

func clamp01(x float64) float64 { return math.Min(1, math.Max(0, x)) }
