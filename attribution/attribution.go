// Package attribution decomposes the excess return of a portfolio over a
// benchmark into Brinson allocation, selection and interaction effects, per
// sector and per period.
//
// For a sector with portfolio weight wp, benchmark weight wb, portfolio
// sector return rp and benchmark sector return rb:
//
//	Allocation  = (wp - wb) × rb
//	Selection   = wb × (rp - rb)
//	Interaction = (wp - wb) × (rp - rb)
//
// and the three effects add up to wp×rp - wb×rb, the sector's contribution to
// the excess return. Effects of longer periods are sums of the effects of the
// periods they contain, see Aggregate.
package attribution

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/etnz/rebalance/date"
)

var (
	// ErrUnmappedAsset is returned when an asset has no sector.
	ErrUnmappedAsset = errors.New("unmapped asset")
	// ErrAlignmentMismatch is returned when portfolio and benchmark share no period.
	ErrAlignmentMismatch = errors.New("no overlapping period")
	// ErrDuplicatePeriod is returned when two timestamps of a panel fall on the same day.
	ErrDuplicatePeriod = errors.New("duplicate period")
	// ErrMissingReturn is returned when a weighted asset has no return for a period.
	ErrMissingReturn = errors.New("missing return")
)

// Panel holds per-asset values (weights or returns) by period end.
// Time of day is ignored.
type Panel map[time.Time]map[string]float64

// normalize keys p by calendar date.
func (p Panel) normalize(name string) (map[date.Date]map[string]float64, error) {
	out := make(map[date.Date]map[string]float64, len(p))
	seen := make(map[date.Date]time.Time, len(p))
	for ts, values := range p {
		day := date.FromTime(ts)
		if prev, exists := seen[day]; exists {
			first, second := prev, ts
			if second.Before(first) {
				first, second = second, first
			}
			return nil, fmt.Errorf("%s has %v and %v on %s: %w", name, first, second, day, ErrDuplicatePeriod)
		}
		seen[day] = ts
		out[day] = values
	}
	return out, nil
}

// BenchmarkWeights supplies the benchmark weights of each period.
type BenchmarkWeights interface {
	// Dates returns the periods the weights are defined for, nil meaning every period.
	Dates() []date.Date
	// On returns the weights of the period ending on day.
	On(day date.Date) (map[string]float64, bool)
}

// Static benchmark weights are the same for every period.
type Static map[string]float64

func (Static) Dates() []date.Date { return nil }

func (s Static) On(date.Date) (map[string]float64, bool) { return s, true }

// TimeVarying benchmark weights change from period to period.
type TimeVarying struct {
	weights map[date.Date]map[string]float64
}

// NewTimeVarying normalizes p to calendar dates.
func NewTimeVarying(p Panel) (*TimeVarying, error) {
	w, err := p.normalize("benchmark weights")
	if err != nil {
		return nil, err
	}
	return &TimeVarying{weights: w}, nil
}

func (t *TimeVarying) Dates() []date.Date {
	return slices.SortedFunc(maps.Keys(t.weights), date.Date.Compare)
}

func (t *TimeVarying) On(day date.Date) (map[string]float64, bool) {
	w, ok := t.weights[day]
	return w, ok
}

// Input gathers everything an attribution needs.
type Input struct {
	PortfolioWeights Panel // beginning of period weights, keyed by period end
	PortfolioReturns Panel
	Benchmark        BenchmarkWeights
	BenchmarkReturns Panel
	Sectors          map[string]string // asset to sector
}

// Result holds the attribution of one sector over one period.
//
// Weights and returns are only meaningful for single periods: aggregated
// results carry the sums of effects and contributions only.
type Result struct {
	Period date.Range
	Sector string

	PortfolioWeight float64
	BenchmarkWeight float64
	PortfolioReturn float64
	BenchmarkReturn float64

	PortfolioContribution float64 // PortfolioWeight × PortfolioReturn
	BenchmarkContribution float64 // BenchmarkWeight × BenchmarkReturn

	Effects
}

// Excess returns the sector contribution to the excess return.
func (r Result) Excess() float64 { return r.PortfolioContribution - r.BenchmarkContribution }

// Effects are the three Brinson effects.
type Effects struct {
	Allocation  float64
	Selection   float64
	Interaction float64
}

// Total returns the sum of the effects.
func (e Effects) Total() float64 { return e.Allocation + e.Selection + e.Interaction }

func (e Effects) add(x Effects) Effects {
	return Effects{
		Allocation:  e.Allocation + x.Allocation,
		Selection:   e.Selection + x.Selection,
		Interaction: e.Interaction + x.Interaction,
	}
}

// Option configures Attribute.
type Option func(*options)

type options struct{ workers int }

// WithWorkers computes periods on n goroutines. Results do not depend on n.
func WithWorkers(n int) Option { return func(o *options) { o.workers = max(1, n) } }

// Attribute computes the effects of every sector for every period common to
// all inputs. Results are ordered by period then sector.
func Attribute(in Input, opts ...Option) ([]Result, error) {
	o := options{workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if in.Benchmark == nil {
		return nil, errors.New("no benchmark weights")
	}

	pw, err := in.PortfolioWeights.normalize("portfolio weights")
	if err != nil {
		return nil, err
	}
	pr, err := in.PortfolioReturns.normalize("portfolio returns")
	if err != nil {
		return nil, err
	}
	br, err := in.BenchmarkReturns.normalize("benchmark returns")
	if err != nil {
		return nil, err
	}

	days := align(in.Benchmark.Dates(), pw, pr, br)
	if len(days) == 0 {
		return nil, fmt.Errorf("%d portfolio and %d benchmark periods: %w", len(pw), len(br), ErrAlignmentMismatch)
	}

	perPeriod := make([][]Result, len(days))
	errs := make([]error, len(days))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for range min(o.workers, len(days)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				day := days[i]
				bw, _ := in.Benchmark.On(day)
				perPeriod[i], errs[i] = period(day, pw[day], pr[day], bw, br[day], in.Sectors)
			}
		}()
	}
	for i := range days {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var results []Result
	for i := range days {
		if errs[i] != nil {
			return nil, errs[i]
		}
		results = append(results, perPeriod[i]...)
	}
	return results, nil
}

// align returns the sorted dates present in every panel, and in bench when not nil.
func align(bench []date.Date, panels ...map[date.Date]map[string]float64) []date.Date {
	var days []date.Date
	if bench != nil {
		days = slices.Clone(bench)
	} else {
		days = slices.Collect(maps.Keys(panels[0]))
	}
	days = slices.DeleteFunc(days, func(d date.Date) bool {
		for _, p := range panels {
			if _, ok := p[d]; !ok {
				return true
			}
		}
		return false
	})
	slices.SortFunc(days, date.Date.Compare)
	return days
}

type sector struct {
	wp, wb   float64
	cpw, cbw float64 // Σ weight × return
}

// period computes the results of a single period.
func period(day date.Date, pw, pr, bw, br map[string]float64, sectors map[string]string) ([]Result, error) {
	agg := make(map[string]*sector)
	accumulate := func(side string, w, r map[string]float64, portfolio bool) error {
		for _, asset := range slices.Sorted(maps.Keys(w)) {
			weight := w[asset]
			if weight == 0 {
				continue
			}
			name, ok := sectors[asset]
			if !ok {
				return fmt.Errorf("%s asset %q on %s: %w", side, asset, day, ErrUnmappedAsset)
			}
			ret, ok := r[asset]
			if !ok {
				return fmt.Errorf("%s asset %q on %s: %w", side, asset, day, ErrMissingReturn)
			}
			s, ok := agg[name]
			if !ok {
				s = new(sector)
				agg[name] = s
			}
			if portfolio {
				s.wp += weight
				s.cpw += weight * ret
			} else {
				s.wb += weight
				s.cbw += weight * ret
			}
		}
		return nil
	}
	if err := accumulate("portfolio", pw, pr, true); err != nil {
		return nil, err
	}
	if err := accumulate("benchmark", bw, br, false); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(agg))
	for _, name := range slices.Sorted(maps.Keys(agg)) {
		s := agg[name]
		var rb, rp float64
		if s.wb != 0 {
			rb = s.cbw / s.wb
		}
		rp = rb
		if s.wp != 0 {
			rp = s.cpw / s.wp
		}
		results = append(results, Result{
			Period:                date.NewRange(day, day),
			Sector:                name,
			PortfolioWeight:       s.wp,
			BenchmarkWeight:       s.wb,
			PortfolioReturn:       rp,
			BenchmarkReturn:       rb,
			PortfolioContribution: s.wp * rp,
			BenchmarkContribution: s.wb * rb,
			Effects: Effects{
				Allocation:  (s.wp - s.wb) * rb,
				Selection:   s.wb * (rp - rb),
				Interaction: (s.wp - s.wb) * (rp - rb),
			},
		})
	}
	return results, nil
}

// Aggregate sums already computed results into calendar buckets of period p.
// Results are ordered by bucket then sector.
func Aggregate(results []Result, p date.Period) []Result {
	type key struct {
		bucket date.Range
		sector string
	}
	sums := make(map[key]*Result)
	for _, r := range results {
		k := key{p.Range(r.Period.To), r.Sector}
		s, ok := sums[k]
		if !ok {
			s = &Result{Period: k.bucket, Sector: r.Sector}
			sums[k] = s
		}
		s.PortfolioContribution += r.PortfolioContribution
		s.BenchmarkContribution += r.BenchmarkContribution
		s.Effects = s.Effects.add(r.Effects)
	}
	out := make([]Result, 0, len(sums))
	for _, s := range sums {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b Result) int {
		if c := a.Period.From.Compare(b.Period.From); c != 0 {
			return c
		}
		return cmp.Compare(a.Sector, b.Sector)
	})
	return out
}
