package attribution

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/etnz/rebalance/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time { return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC) }

var sectors = map[string]string{"X": "equity", "Y": "bonds", "Z": "equity"}

func TestAttribute_WorkedExample(t *testing.T) {
	in := Input{
		PortfolioWeights: Panel{day(2): {"X": 0.20, "Y": 0.80}},
		PortfolioReturns: Panel{day(2): {"X": 0.08, "Y": 0.01}},
		Benchmark:        Static{"X": 0.15, "Y": 0.85},
		BenchmarkReturns: Panel{day(2): {"X": 0.05, "Y": 0.01}},
		Sectors:          sectors,
	}
	results, err := Attribute(in)
	require.NoError(t, err)
	require.Len(t, results, 2)

	eq := results[1]
	require.Equal(t, "equity", eq.Sector)
	assert.InDelta(t, 0.0025, eq.Allocation, 1e-12)
	assert.InDelta(t, 0.0045, eq.Selection, 1e-12)
	assert.InDelta(t, 0.0015, eq.Interaction, 1e-12)
	assert.InDelta(t, 0.0085, eq.Total(), 1e-12)
	assert.InDelta(t, 0.0085, eq.Excess(), 1e-12)
	assert.Equal(t, date.New(2024, time.January, 2), eq.Period.From)
}

// randomInput builds n daily periods of random weights and returns.
func randomInput(rng *rand.Rand, n int, constantWeights bool) Input {
	in := Input{
		PortfolioWeights: Panel{},
		PortfolioReturns: Panel{},
		BenchmarkReturns: Panel{},
		Benchmark:        Static{"X": 0.3, "Y": 0.5, "Z": 0.2},
		Sectors:          sectors,
	}
	w := map[string]float64{"X": 0.4, "Y": 0.1, "Z": 0.5}
	for i := range n {
		if !constantWeights {
			x, y := rng.Float64(), rng.Float64()
			w = map[string]float64{"X": x / 2, "Y": y / 2, "Z": 1 - x/2 - y/2}
		}
		in.PortfolioWeights[day(i+1)] = w
		in.PortfolioReturns[day(i+1)] = map[string]float64{"X": rng.NormFloat64() / 50, "Y": rng.NormFloat64() / 50, "Z": rng.NormFloat64() / 50}
		in.BenchmarkReturns[day(i+1)] = map[string]float64{"X": rng.NormFloat64() / 50, "Y": rng.NormFloat64() / 50, "Z": rng.NormFloat64() / 50}
	}
	return in
}

func TestAttribute_Additivity(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	in := randomInput(rng, 20, false)
	results, err := Attribute(in)
	require.NoError(t, err)

	excess := make(map[date.Date]float64)
	for _, r := range results {
		assert.InDelta(t, r.Excess(), r.Total(), 1e-12)
		excess[r.Period.To] += r.Total()
	}
	bench := in.Benchmark.(Static)
	for ts, w := range in.PortfolioWeights {
		var rp, rb float64
		for a, x := range w {
			rp += x * in.PortfolioReturns[ts][a]
		}
		for a, x := range bench {
			rb += x * in.BenchmarkReturns[ts][a]
		}
		assert.InDelta(t, rp-rb, excess[date.FromTime(ts)], 1e-12)
	}
}

func TestAggregate_Consistency(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	daily := randomInput(rng, 5, true)

	// the same month as a single period: constant weights, summed returns
	month := Input{
		PortfolioWeights: Panel{day(31): daily.PortfolioWeights[day(1)]},
		PortfolioReturns: Panel{day(31): {}},
		BenchmarkReturns: Panel{day(31): {}},
		Benchmark:        daily.Benchmark,
		Sectors:          sectors,
	}
	for ts := range daily.PortfolioReturns {
		for a := range sectors {
			month.PortfolioReturns[day(31)][a] += daily.PortfolioReturns[ts][a]
			month.BenchmarkReturns[day(31)][a] += daily.BenchmarkReturns[ts][a]
		}
	}

	dailyResults, err := Attribute(daily)
	require.NoError(t, err)
	summed := Aggregate(dailyResults, date.Monthly)
	single, err := Attribute(month)
	require.NoError(t, err)

	require.Len(t, summed, len(single))
	for i := range summed {
		assert.Equal(t, single[i].Sector, summed[i].Sector)
		assert.Equal(t, date.Monthly.Range(date.New(2024, time.January, 1)), summed[i].Period)
		assert.InDelta(t, single[i].Allocation, summed[i].Allocation, 1e-12)
		assert.InDelta(t, single[i].Selection, summed[i].Selection, 1e-12)
		assert.InDelta(t, single[i].Interaction, summed[i].Interaction, 1e-12)
	}
}

func TestAttribute_TimeOfDay(t *testing.T) {
	at := time.Date(2024, time.January, 2, 17, 30, 0, 0, time.UTC)
	in := Input{
		PortfolioWeights: Panel{at: {"X": 1}},
		PortfolioReturns: Panel{at.Add(time.Hour): {"X": 0.01}},
		Benchmark:        Static{"X": 1},
		BenchmarkReturns: Panel{day(2): {"X": 0.02}},
		Sectors:          sectors,
	}
	results, err := Attribute(in)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, -0.01, results[0].Total(), 1e-12)
}

func TestAttribute_Errors(t *testing.T) {
	base := func() Input {
		return Input{
			PortfolioWeights: Panel{day(2): {"X": 1}},
			PortfolioReturns: Panel{day(2): {"X": 0.01}},
			Benchmark:        Static{"X": 1},
			BenchmarkReturns: Panel{day(2): {"X": 0.02}},
			Sectors:          sectors,
		}
	}
	tests := []struct {
		name   string
		modify func(*Input)
		want   error
	}{
		{"unmapped portfolio asset", func(in *Input) {
			in.PortfolioWeights[day(2)] = map[string]float64{"X": 0.5, "W": 0.5}
			in.PortfolioReturns[day(2)]["W"] = 0
		}, ErrUnmappedAsset},
		{"unmapped benchmark asset", func(in *Input) { in.Benchmark = Static{"W": 1} }, ErrUnmappedAsset},
		{"no overlap", func(in *Input) {
			in.BenchmarkReturns = Panel{day(3): {"X": 0.02}}
		}, ErrAlignmentMismatch},
		{"duplicate day", func(in *Input) {
			in.PortfolioReturns[day(2).Add(time.Hour)] = map[string]float64{"X": 0}
		}, ErrDuplicatePeriod},
		{"missing return", func(in *Input) { delete(in.PortfolioReturns[day(2)], "X") }, ErrMissingReturn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base()
			tt.modify(&in)
			_, err := Attribute(in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAttribute_TimeVarying(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	in := randomInput(rng, 10, false)
	static, err := Attribute(in)
	require.NoError(t, err)

	panel := Panel{}
	for ts := range in.PortfolioWeights {
		panel[ts] = in.Benchmark.(Static)
	}
	// an extra benchmark date is dropped by the alignment
	panel[day(28)] = map[string]float64{"X": 1}
	tv, err := NewTimeVarying(panel)
	require.NoError(t, err)
	in.Benchmark = tv
	varying, err := Attribute(in)
	require.NoError(t, err)
	assert.Equal(t, static, varying)

	// fewer benchmark dates restrict the periods
	tv, err = NewTimeVarying(Panel{day(3): in.Benchmark.(*TimeVarying).weights[date.New(2024, time.January, 3)]})
	require.NoError(t, err)
	in.Benchmark = tv
	varying, err = Attribute(in)
	require.NoError(t, err)
	for _, r := range varying {
		assert.Equal(t, date.New(2024, time.January, 3), r.Period.From)
	}
}

func TestAttribute_Workers(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	in := randomInput(rng, 25, false)
	one, err := Attribute(in)
	require.NoError(t, err)
	many, err := Attribute(in, WithWorkers(4))
	require.NoError(t, err)
	assert.Equal(t, one, many)
}

func TestNewReport(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	in := randomInput(rng, 20, false)
	results, err := Attribute(in)
	require.NoError(t, err)

	r := NewReport(results, nil, date.Daily, date.Weekly, date.Monthly)
	assert.Len(t, r.Periods[date.Daily], 20)
	assert.Len(t, r.Periods[date.Monthly], 1)
	assert.Len(t, r.Periods[date.Weekly], 3) // Jan 1st 2024 is a Monday
	assert.Equal(t, []string{"bonds", "equity"}, r.SectorNames())
	assert.True(t, r.Summary.Reconciled)
	assert.InDelta(t, r.Summary.Excess, r.Summary.Total.Total(), ReconcileTolerance)

	for _, p := range []date.Period{date.Daily, date.Weekly, date.Monthly} {
		var total float64
		for _, b := range r.Periods[p] {
			assert.InDelta(t, b.Excess, b.Total.Total(), 1e-12)
			total += b.Total.Total()
		}
		assert.InDelta(t, r.Summary.Total.Total(), total, 1e-12)
	}
}

func TestNewReport_Realized(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 14))
	in := randomInput(rng, 10, false)
	results, err := Attribute(in)
	require.NoError(t, err)

	// realized returns equal to the attributed ones reconcile
	realized := make(Realized)
	for _, r := range results {
		realized[r.Period.To.Time()] += r.PortfolioContribution
	}
	r := NewReport(results, realized, date.Weekly)
	assert.True(t, r.Summary.Reconciled)
	assert.InDelta(t, 0, r.Summary.Residual, ReconcileTolerance)

	// a cost paid on day 3 is a realized loss no effect explains
	realized[day(3)] -= 0.002
	r = NewReport(results, realized, date.Weekly)
	assert.False(t, r.Summary.Reconciled)
	assert.InDelta(t, -0.002, r.Summary.Residual, 1e-12)
	assert.InDelta(t, r.Summary.PortfolioContribution-0.002, r.Summary.PortfolioReturn, 1e-12)

	buckets := r.Periods[date.Weekly]
	require.Len(t, buckets, 2) // Jan 1st 2024 is a Monday
	assert.InDelta(t, -0.002, buckets[0].Residual, 1e-12)
	assert.InDelta(t, 0, buckets[1].Residual, 1e-12)

	// a period the portfolio value never saw
	delete(realized, day(9))
	r = NewReport(results, realized, date.Weekly)
	assert.False(t, r.Summary.Reconciled)
}
