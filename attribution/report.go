package attribution

import (
	"maps"
	"math"
	"slices"
	"time"

	"github.com/etnz/rebalance/date"
	"gonum.org/v1/gonum/floats"
)

// ReconcileTolerance bounds the gap between the sum of effects and the excess return.
const ReconcileTolerance = 1e-9

// Realized is the realized portfolio return of each period, keyed by the
// period end. It includes what the attribution cannot see, such as
// commissions.
type Realized map[time.Time]float64

// Bucket is the attribution of one calendar bucket.
type Bucket struct {
	Range     date.Range
	Sectors   map[string]Effects
	Total     Effects
	Portfolio float64 // realized portfolio return, summed over the periods
	Benchmark float64 // benchmark return, summed over the periods
	Excess    float64 // Portfolio - Benchmark
	Residual  float64 // Excess - Total.Total()
}

// Summary totals a whole attribution.
type Summary struct {
	Sectors               map[string]Effects
	Total                 Effects
	PortfolioContribution float64 // sum over periods of the attributed portfolio return
	BenchmarkContribution float64 // sum over periods of the benchmark return
	PortfolioReturn       float64 // sum over periods of the realized portfolio return
	Excess                float64 // PortfolioReturn - BenchmarkContribution
	Residual              float64 // Excess - Total.Total()
	Reconciled            bool    // |Residual| ≤ ReconcileTolerance
}

// Report is the attribution by period granularity, plus a summary.
type Report struct {
	Periods map[date.Period][]Bucket
	Summary Summary
}

// SectorNames returns the sectors of the report in lexical order.
func (r Report) SectorNames() []string { return slices.Sorted(maps.Keys(r.Summary.Sectors)) }

// NewReport aggregates results for every requested period and reconciles the
// effects with the realized excess return.
//
// A period missing from realized counts as a zero return. With a nil realized,
// the attributed portfolio return stands for the realized one and the
// reconciliation only checks the arithmetic of the effects.
func NewReport(results []Result, realized Realized, periods ...date.Period) Report {
	portfolio, days := realizedReturns(results, realized)

	report := Report{Periods: make(map[date.Period][]Bucket, len(periods))}
	for _, p := range periods {
		var buckets []Bucket
		for _, r := range Aggregate(results, p) {
			if n := len(buckets); n == 0 || buckets[n-1].Range != r.Period {
				buckets = append(buckets, Bucket{Range: r.Period, Sectors: make(map[string]Effects)})
			}
			b := &buckets[len(buckets)-1]
			b.Sectors[r.Sector] = r.Effects
			b.Total = b.Total.add(r.Effects)
			b.Benchmark += r.BenchmarkContribution
		}
		for i := range buckets {
			b := &buckets[i]
			for _, day := range days {
				if b.Range.Contains(day) {
					b.Portfolio += portfolio[day]
				}
			}
			b.Excess = b.Portfolio - b.Benchmark
			b.Residual = b.Excess - b.Total.Total()
		}
		report.Periods[p] = buckets
	}

	s := Summary{Sectors: make(map[string]Effects)}
	var pc, bc []float64
	for _, r := range results {
		s.Sectors[r.Sector] = s.Sectors[r.Sector].add(r.Effects)
		s.Total = s.Total.add(r.Effects)
		pc = append(pc, r.PortfolioContribution)
		bc = append(bc, r.BenchmarkContribution)
	}
	rp := make([]float64, 0, len(days))
	for _, day := range days {
		rp = append(rp, portfolio[day])
	}
	s.PortfolioContribution = floats.Sum(pc)
	s.BenchmarkContribution = floats.Sum(bc)
	s.PortfolioReturn = floats.Sum(rp)
	s.Excess = s.PortfolioReturn - s.BenchmarkContribution
	s.Residual = s.Excess - s.Total.Total()
	s.Reconciled = math.Abs(s.Residual) <= ReconcileTolerance
	report.Summary = s
	return report
}

// realizedReturns returns the portfolio return of every attributed period,
// keyed by the period end, and those ends in order.
func realizedReturns(results []Result, realized Realized) (map[date.Date]float64, []date.Date) {
	byDay := make(map[date.Date]float64, len(realized))
	for ts, r := range realized {
		byDay[date.FromTime(ts)] = r
	}
	out := make(map[date.Date]float64)
	for _, r := range results {
		day := r.Period.To
		if realized != nil {
			out[day] = byDay[day]
		} else {
			out[day] += r.PortfolioContribution
		}
	}
	return out, slices.SortedFunc(maps.Keys(out), date.Date.Compare)
}
