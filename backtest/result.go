package backtest

import (
	"maps"
	"math"
	"slices"
	"time"

	"github.com/etnz/rebalance/date"
	"github.com/etnz/rebalance/weights"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TradingDays is the number of periods per year used to annualize volatility.
const TradingDays = 252

// Holding is the simulator state: quantities per asset and cash.
type Holding struct {
	Quantities map[string]float64
	Cash       float64
}

// Assets returns the held assets in lexical order.
func (h Holding) Assets() []string {
	assets := make([]string, 0, len(h.Quantities))
	for a, q := range h.Quantities {
		if q != 0 {
			assets = append(assets, a)
		}
	}
	slices.Sort(assets)
	return assets
}

// mark returns the value of the holding at prices.
func (h Holding) mark(prices map[string]float64) float64 {
	value := h.Cash
	for a, q := range h.Quantities {
		value += q * prices[a]
	}
	return value
}

// Weights returns the fraction of the value held in each asset, cash under the Cash key.
func (h Holding) Weights(prices map[string]float64) weights.Vector {
	value := h.mark(prices)
	v := make(weights.Vector, len(h.Quantities)+1)
	if value == 0 {
		return v
	}
	for a, q := range h.Quantities {
		if q != 0 {
			v[a] = q * prices[a] / value
		}
	}
	if h.Cash != 0 {
		v[Cash] = h.Cash / value
	}
	return v
}

func (h Holding) clone() Holding {
	return Holding{Quantities: maps.Clone(h.Quantities), Cash: h.Cash}
}

// Weights is a weight vector at a date.
type Weights struct {
	Date    date.Date
	Weights weights.Vector
}

// Trade is one executed order. Positive quantities are buys.
type Trade struct {
	Asset      string
	Quantity   float64
	Price      float64
	Notional   float64 // Quantity × Price
	Commission float64
}

// Event records a rebalance decided on Date and executed on ExecutionDate.
type Event struct {
	Date          date.Date
	ExecutionDate date.Date
	Pre           weights.Vector // weights marked on Date, before trading
	Target        weights.Vector
	Post          weights.Vector // weights at execution prices, after trading
	Trades        []Trade
	Value         float64 // portfolio value after execution
}

// Commission returns the commissions paid for the event.
func (e Event) Commission() float64 {
	var c float64
	for _, t := range e.Trades {
		c += t.Commission
	}
	return c
}

// Trade returns the trade of asset, if any.
func (e Event) Trade(asset string) (Trade, bool) {
	for _, t := range e.Trades {
		if t.Asset == asset {
			return t, true
		}
	}
	return Trade{}, false
}

// Result holds the outputs of a run.
type Result struct {
	Values  *date.History[float64] // portfolio value, marked before trading
	Pre     []Weights              // pre-trade weights, one per date
	Post    []Weights              // post-trade weights, one per date
	Events  []Event
	Holding Holding  // last holding
	Prices  []Prices // prices known on each date, for attribution
}

// Prices are the asset prices known on a date.
type Prices struct {
	Date   date.Date
	Prices map[string]float64
}

func newResult() *Result { return &Result{Values: new(date.History[float64])} }

// Commissions returns the total commissions paid.
func (r *Result) Commissions() float64 {
	var c float64
	for _, e := range r.Events {
		c += e.Commission()
	}
	return c
}

// LogRow is one line of the rebalance log: an asset in an event.
type LogRow struct {
	Date          date.Date
	Asset         string
	PreWeight     float64
	TargetWeight  float64
	TradeAmount   float64 // signed notional, positive for buys
	ExecutionDate date.Date
	Commission    float64
}

// LogRows flattens the events into rows, in date then asset order.
func (r *Result) LogRows() []LogRow {
	var rows []LogRow
	for _, e := range r.Events {
		for _, a := range union(e.Pre, e.Target) {
			if a == Cash {
				continue
			}
			t, _ := e.Trade(a)
			rows = append(rows, LogRow{
				Date:          e.Date,
				Asset:         a,
				PreWeight:     e.Pre[a],
				TargetWeight:  e.Target[a],
				TradeAmount:   t.Notional,
				ExecutionDate: e.ExecutionDate,
				Commission:    t.Commission,
			})
		}
	}
	return rows
}

// AttributionInput returns copies of the per-period asset weights and returns.
//
// Period i spans (date[i-1], date[i]] and is keyed by date[i]. Its weights are
// the pre-trade weights marked on date[i-1], which are held through the
// period, and its returns are the price changes over the period. Cash is
// reported under the Cash key with a zero return.
//
// Periods with no recorded prices are left out: a Result restored without its
// Prices has no attribution input.
func (r *Result) AttributionInput() (weightsByDate, returnsByDate map[time.Time]map[string]float64) {
	weightsByDate = make(map[time.Time]map[string]float64)
	returnsByDate = make(map[time.Time]map[string]float64)
	prices := make(map[date.Date]map[string]float64, len(r.Prices))
	for _, p := range r.Prices {
		prices[p.Date] = p.Prices
	}
	for i := 1; i < len(r.Pre); i++ {
		p0, ok0 := prices[r.Pre[i-1].Date]
		p1, ok1 := prices[r.Pre[i].Date]
		if !ok0 || !ok1 {
			continue
		}
		key := r.Pre[i].Date.Time()
		w := make(map[string]float64, len(r.Pre[i-1].Weights))
		for a, x := range r.Pre[i-1].Weights {
			if x != 0 {
				w[a] = x
			}
		}
		ret := map[string]float64{Cash: 0}
		for a, q1 := range p1 {
			if q0, ok := p0[a]; ok {
				ret[a] = q1/q0 - 1
			}
		}
		weightsByDate[key] = w
		returnsByDate[key] = ret
	}
	return weightsByDate, returnsByDate
}

// PeriodReturns returns the realized portfolio return of each period, keyed
// like AttributionInput. It includes everything the value series saw, such as
// the commissions paid.
func (r *Result) PeriodReturns() map[time.Time]float64 {
	out := make(map[time.Time]float64)
	var prev float64
	first := true
	for day, v := range r.Values.Values() {
		if !first && prev != 0 {
			out[day.Time()] = v/prev - 1
		}
		prev, first = v, false
	}
	return out
}

// Stats summarizes a run.
type Stats struct {
	Start, End  date.Date
	StartValue  float64
	EndValue    float64
	TotalReturn float64
	Volatility  float64 // annualized standard deviation of period returns
	MaxDrawdown float64 // largest peak to trough loss, as a positive fraction
	Rebalances  int
	Turnover    float64 // traded notional over the mean portfolio value
	Commissions float64
}

// Stats computes the run statistics.
func (r *Result) Stats() Stats {
	var s Stats
	if r.Values.Len() == 0 {
		return s
	}
	s.Start, s.StartValue = r.Values.First()
	s.End, s.EndValue = r.Values.Latest()
	s.TotalReturn = s.EndValue/s.StartValue - 1
	s.Rebalances = len(r.Events)
	s.Commissions = r.Commissions()

	values := make([]float64, 0, r.Values.Len())
	for _, v := range r.Values.Values() {
		values = append(values, v)
	}
	if len(values) > 2 {
		returns := make([]float64, len(values)-1)
		for i := range returns {
			returns[i] = values[i+1]/values[i] - 1
		}
		s.Volatility = stat.StdDev(returns, nil) * math.Sqrt(TradingDays)
	}
	peak := values[0]
	for _, v := range values {
		peak = max(peak, v)
		s.MaxDrawdown = max(s.MaxDrawdown, 1-v/peak)
	}

	var traded []float64
	for _, e := range r.Events {
		for _, t := range e.Trades {
			traded = append(traded, math.Abs(t.Notional))
		}
	}
	if mean := stat.Mean(values, nil); mean > 0 {
		s.Turnover = floats.Sum(traded) / mean
	}
	return s
}
