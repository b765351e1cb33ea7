// Package artifact persists the outcome of runs so that they can be shown or
// attributed again without replaying the backtest.
//
// A Run is a plain, self contained copy of an outcome: dates are written as
// strings and the configuration as its YAML document, so that the stored form
// only depends on the encoders.
package artifact

import (
	"bytes"
	"fmt"
	"time"

	"github.com/etnz/rebalance"
	"github.com/etnz/rebalance/attribution"
	"github.com/etnz/rebalance/backtest"
	"github.com/etnz/rebalance/date"
	"github.com/etnz/rebalance/weights"
	"github.com/google/uuid"
)

// Run is a stored outcome.
type Run struct {
	ID      string    `json:"id" msgpack:"id"`
	Created time.Time `json:"created" msgpack:"created"`
	Config  string    `json:"config" msgpack:"config"` // YAML

	Values      []Point       `json:"values" msgpack:"values"`
	Pre         []Weights     `json:"pre" msgpack:"pre"`
	Post        []Weights     `json:"post" msgpack:"post"`
	Events      []Event       `json:"events" msgpack:"events"`
	Holding     Holding       `json:"holding" msgpack:"holding"`
	Prices      []Prices      `json:"prices,omitempty" msgpack:"prices,omitempty"`
	Attribution []Attribution `json:"attribution,omitempty" msgpack:"attribution,omitempty"`
	Error       string        `json:"error,omitempty" msgpack:"error,omitempty"` // the run stopped early
}

type Point struct {
	Date  string  `json:"date" msgpack:"date"`
	Value float64 `json:"value" msgpack:"value"`
}

type Weights struct {
	Date    string             `json:"date" msgpack:"date"`
	Weights map[string]float64 `json:"weights" msgpack:"weights"`
}

// Prices are the prices known on a date, kept to attribute the run again.
type Prices struct {
	Date   string             `json:"date" msgpack:"date"`
	Prices map[string]float64 `json:"prices" msgpack:"prices"`
}

type Holding struct {
	Quantities map[string]float64 `json:"quantities" msgpack:"quantities"`
	Cash       float64            `json:"cash" msgpack:"cash"`
}

type Trade struct {
	Asset      string  `json:"asset" msgpack:"asset"`
	Quantity   float64 `json:"quantity" msgpack:"quantity"`
	Price      float64 `json:"price" msgpack:"price"`
	Notional   float64 `json:"notional" msgpack:"notional"`
	Commission float64 `json:"commission" msgpack:"commission"`
}

type Event struct {
	Date          string             `json:"date" msgpack:"date"`
	ExecutionDate string             `json:"execution_date" msgpack:"execution_date"`
	Pre           map[string]float64 `json:"pre" msgpack:"pre"`
	Target        map[string]float64 `json:"target" msgpack:"target"`
	Post          map[string]float64 `json:"post" msgpack:"post"`
	Trades        []Trade            `json:"trades" msgpack:"trades"`
	Value         float64            `json:"value" msgpack:"value"`
}

// Attribution is one period and sector of an attribution.
type Attribution struct {
	From        string  `json:"from" msgpack:"from"`
	To          string  `json:"to" msgpack:"to"`
	Sector      string  `json:"sector" msgpack:"sector"`
	WP          float64 `json:"wp" msgpack:"wp"`
	WB          float64 `json:"wb" msgpack:"wb"`
	RP          float64 `json:"rp" msgpack:"rp"`
	RB          float64 `json:"rb" msgpack:"rb"`
	CP          float64 `json:"cp" msgpack:"cp"`
	CB          float64 `json:"cb" msgpack:"cb"`
	Allocation  float64 `json:"allocation" msgpack:"allocation"`
	Selection   float64 `json:"selection" msgpack:"selection"`
	Interaction float64 `json:"interaction" msgpack:"interaction"`
}

// New copies an outcome into a Run with a fresh id. err is the error the run
// returned, if any.
func New(out *rebalance.Outcome, err error) (*Run, error) {
	var cfg bytes.Buffer
	if err := out.Config.Encode(&cfg); err != nil {
		return nil, fmt.Errorf("cannot encode configuration: %w", err)
	}
	r := &Run{
		ID:      uuid.NewString(),
		Created: time.Now().UTC().Truncate(time.Second),
		Config:  cfg.String(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	if res := out.Result; res != nil {
		for day, v := range res.Values.Values() {
			r.Values = append(r.Values, Point{Date: day.String(), Value: v})
		}
		r.Pre = fromWeights(res.Pre)
		r.Post = fromWeights(res.Post)
		for _, e := range res.Events {
			ev := Event{
				Date:          e.Date.String(),
				ExecutionDate: e.ExecutionDate.String(),
				Pre:           e.Pre,
				Target:        e.Target,
				Post:          e.Post,
				Value:         e.Value,
			}
			for _, t := range e.Trades {
				ev.Trades = append(ev.Trades, Trade(t))
			}
			r.Events = append(r.Events, ev)
		}
		r.Holding = Holding(res.Holding)
		for _, p := range res.Prices {
			r.Prices = append(r.Prices, Prices{Date: p.Date.String(), Prices: p.Prices})
		}
	}
	for _, a := range out.Attribution {
		r.Attribution = append(r.Attribution, Attribution{
			From:        a.Period.From.String(),
			To:          a.Period.To.String(),
			Sector:      a.Sector,
			WP:          a.PortfolioWeight,
			WB:          a.BenchmarkWeight,
			RP:          a.PortfolioReturn,
			RB:          a.BenchmarkReturn,
			CP:          a.PortfolioContribution,
			CB:          a.BenchmarkContribution,
			Allocation:  a.Allocation,
			Selection:   a.Selection,
			Interaction: a.Interaction,
		})
	}
	return r, nil
}

func fromWeights(ws []backtest.Weights) []Weights {
	out := make([]Weights, 0, len(ws))
	for _, w := range ws {
		out = append(out, Weights{Date: w.Date.String(), Weights: w.Weights})
	}
	return out
}

// Outcome rebuilds the outcome the Run was made of. The attribution report
// is aggregated again over the configured report periods.
func (r *Run) Outcome() (*rebalance.Outcome, error) {
	cfg, err := rebalance.DecodeConfig(bytes.NewBufferString(r.Config))
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", r.ID, err)
	}
	out := &rebalance.Outcome{Config: cfg}
	p := parser{}

	res := &backtest.Result{Values: new(date.History[float64])}
	for _, v := range r.Values {
		res.Values.Append(p.date(v.Date), v.Value)
	}
	res.Pre = p.weights(r.Pre)
	res.Post = p.weights(r.Post)
	for _, e := range r.Events {
		ev := backtest.Event{
			Date:          p.date(e.Date),
			ExecutionDate: p.date(e.ExecutionDate),
			Pre:           e.Pre,
			Target:        e.Target,
			Post:          e.Post,
			Value:         e.Value,
		}
		for _, t := range e.Trades {
			ev.Trades = append(ev.Trades, backtest.Trade(t))
		}
		res.Events = append(res.Events, ev)
	}
	res.Holding = backtest.Holding(r.Holding)
	for _, q := range r.Prices {
		res.Prices = append(res.Prices, backtest.Prices{Date: p.date(q.Date), Prices: q.Prices})
	}
	out.Result = res

	for _, a := range r.Attribution {
		out.Attribution = append(out.Attribution, attribution.Result{
			Period:                date.NewRange(p.date(a.From), p.date(a.To)),
			Sector:                a.Sector,
			PortfolioWeight:       a.WP,
			BenchmarkWeight:       a.WB,
			PortfolioReturn:       a.RP,
			BenchmarkReturn:       a.RB,
			PortfolioContribution: a.CP,
			BenchmarkContribution: a.CB,
			Effects:               attribution.Effects{Allocation: a.Allocation, Selection: a.Selection, Interaction: a.Interaction},
		})
	}
	if len(out.Attribution) > 0 {
		report := out.NewReport(cfg.Report...)
		out.Report = &report
	}
	if p.err != nil {
		return nil, fmt.Errorf("run %s: %w", r.ID, p.err)
	}
	return out, nil
}

// parser parses dates and keeps the first error.
type parser struct{ err error }

func (p *parser) date(s string) date.Date {
	d, err := date.Parse(s)
	if err != nil && p.err == nil {
		p.err = err
	}
	return d
}

func (p *parser) weights(ws []Weights) []backtest.Weights {
	out := make([]backtest.Weights, 0, len(ws))
	for _, w := range ws {
		out = append(out, backtest.Weights{Date: p.date(w.Date), Weights: weights.Vector(w.Weights)})
	}
	return out
}
