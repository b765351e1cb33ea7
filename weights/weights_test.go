package weights

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/etnz/rebalance/date"
	"github.com/etnz/rebalance/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = date.New(2024, time.June, 3)

// inputs is an in-memory Inputs.
type inputs map[string]*date.History[float64]

func (in inputs) Indicator(name string) (date.Series, bool) {
	h, ok := in[name]
	if !ok {
		return nil, false
	}
	return h, true
}

func TestCalculator_Residual(t *testing.T) {
	c := Calculator{
		Rules:    []Rule{{Asset: "A", Kind: Risk, Base: 0.5}},
		Residual: "B",
	}
	require.NoError(t, c.Validate())

	got, err := c.TargetWeights(day, Snapshot{Valuation: map[string]float64{"A": 0.80}})
	require.NoError(t, err)
	assert.InDelta(t, 0.10, got["A"], 1e-12)
	assert.InDelta(t, 0.90, got["B"], 1e-12)
	assert.NoError(t, got.Validate())
}

func TestCalculator_Rules(t *testing.T) {
	c := Calculator{
		Rules: []Rule{
			{Asset: "EQ", Kind: Risk, Base: 0.6},
			{Asset: "BOND", Kind: FixedIncome, Base: 0.3},
			{Asset: "MMF", Kind: CashEquivalent, YieldThreshold: 0.02, Multiplier: 2},
			{Asset: "GOLD", Kind: Fixed, Base: 0.05},
		},
		Residual: "CASH",
	}
	snap := Snapshot{
		Valuation: map[string]float64{"EQ": 0.25},
		YieldRank: map[string]float64{"BOND": 0.5},
		Yield:     map[string]float64{"MMF": 0.03},
	}
	got, err := c.TargetWeights(day, snap)
	require.NoError(t, err)

	assert.InDelta(t, 0.45, got["EQ"], 1e-12)   // 0.6 × (1 − 0.25)
	assert.InDelta(t, 0.15, got["BOND"], 1e-12) // 0.3 × 0.5
	assert.InDelta(t, 0.06, got["MMF"], 1e-12)  // 2 × 0.03
	assert.InDelta(t, 0.05, got["GOLD"], 1e-12)
	assert.InDelta(t, 0.29, got["CASH"], 1e-12)

	// At or below the threshold, the cash equivalent gets nothing.
	snap.Yield["MMF"] = 0.02
	got, err = c.TargetWeights(day, snap)
	require.NoError(t, err)
	assert.Zero(t, got["MMF"])
	assert.InDelta(t, 0.35, got["CASH"], 1e-12)
}

func TestCalculator_OverAllocation(t *testing.T) {
	c := Calculator{
		Rules: []Rule{
			{Asset: "A", Kind: Fixed, Base: 0.7},
			{Asset: "B", Kind: Risk, Base: 0.5},
		},
		Residual: "C",
	}
	_, err := c.TargetWeights(day, Snapshot{Valuation: map[string]float64{"B": 0.2}})
	assert.ErrorIs(t, err, ErrOverAllocation)

	// Exactly fully allocated is fine, the residual gets zero.
	got, err := c.TargetWeights(day, Snapshot{Valuation: map[string]float64{"B": 0.4}})
	require.NoError(t, err)
	assert.InDelta(t, 0, got["C"], 1e-12)
	assert.NoError(t, got.Validate())
}

func TestCalculator_MissingSignal(t *testing.T) {
	c := Calculator{Rules: []Rule{{Asset: "A", Kind: Risk, Base: 0.5}}, Residual: "B"}
	_, err := c.TargetWeights(day, Snapshot{})
	assert.ErrorIs(t, err, ErrMissingSignal)
}

func TestCalculator_Validate(t *testing.T) {
	tests := []struct {
		name string
		c    Calculator
	}{
		{"no residual", Calculator{Rules: []Rule{{Asset: "A", Base: 0.5}}}},
		{"residual sized", Calculator{Rules: []Rule{{Asset: "A", Base: 0.5}}, Residual: "A"}},
		{"duplicate", Calculator{Rules: []Rule{{Asset: "A", Base: 0.5}, {Asset: "A", Base: 0.1}}, Residual: "B"}},
		{"negative base", Calculator{Rules: []Rule{{Asset: "A", Base: -0.5}}, Residual: "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.c.Validate(), ErrInvalidWeights)
		})
	}
}

func TestCalculator_SumsToOne(t *testing.T) {
	c := Calculator{
		Rules: []Rule{
			{Asset: "EQ1", Kind: Risk, Base: 0.4},
			{Asset: "EQ2", Kind: Risk, Base: 0.3},
			{Asset: "BOND", Kind: FixedIncome, Base: 0.2},
			{Asset: "MMF", Kind: CashEquivalent, YieldThreshold: 0.01},
		},
		Residual: "CASH",
	}
	rng := rand.New(rand.NewPCG(3, 4))
	for range 1000 {
		snap := Snapshot{
			Valuation: map[string]float64{"EQ1": rng.Float64(), "EQ2": rng.Float64()},
			YieldRank: map[string]float64{"BOND": rng.Float64()},
			Yield:     map[string]float64{"MMF": rng.Float64() * 0.1},
		}
		got, err := c.TargetWeights(day, snap)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, got.Sum(), Tolerance)
		for a, w := range got {
			assert.GreaterOrEqual(t, w, 0.0, "weight of %s", a)
		}
	}
}

func TestStatic(t *testing.T) {
	_, err := NewStatic(Vector{"A": 0.5, "B": 0.4})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	_, err = NewStatic(Vector{"A": 1.2, "B": -0.2})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	s, err := NewStatic(Vector{"A": 0.6, "B": 0.4})
	require.NoError(t, err)
	got, err := s.TargetWeights(day, nil)
	require.NoError(t, err)
	got["A"] = 0 // callers own the returned vector
	again, _ := s.TargetWeights(day, nil)
	assert.Equal(t, 0.6, again["A"])
}

func TestDynamic(t *testing.T) {
	pe := new(date.History[float64])
	yield := new(date.History[float64])
	start := day.Add(-4)
	for i, v := range []float64{10, 12, 14, 16, 11} {
		pe.Append(start.Add(i), v)
	}
	for i, v := range []float64{0.01, 0.02, 0.03, 0.04, 0.05} {
		yield.Append(start.Add(i), v)
	}

	d, err := NewDynamic(Calculator{
		Rules: []Rule{
			{Asset: "EQ", Kind: Risk, Base: 0.5, Indicator: "EQ.PE"},
			{Asset: "MMF", Kind: CashEquivalent, Indicator: "MMF.YIELD", YieldThreshold: 0.02},
		},
		Residual: "BOND",
	}, signal.NewEngine(5))
	require.NoError(t, err)

	got, err := d.TargetWeights(day, inputs{"EQ.PE": pe, "MMF.YIELD": yield})
	require.NoError(t, err)
	// 11 ranks second lowest of 5: (2-1)/4 = 0.25
	assert.InDelta(t, 0.5*0.75, got["EQ"], 1e-12)
	assert.InDelta(t, 0.05, got["MMF"], 1e-12)
	assert.InDelta(t, 1-0.375-0.05, got["BOND"], 1e-12)

	_, err = d.TargetWeights(day, inputs{"EQ.PE": pe})
	assert.ErrorIs(t, err, ErrMissingSignal)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	s, err := NewStatic(Vector{"A": 1})
	require.NoError(t, err)
	require.NoError(t, r.Register("static", s))
	assert.Error(t, r.Register("static", s))

	got, err := r.Lookup("static")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = r.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Equal(t, []string{"static"}, r.Names())
}
