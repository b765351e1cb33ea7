// Package backtest simulates a rebalanced portfolio over a calendar of dates.
//
// Each date is one step: holdings are marked to market with that day's
// prices, the weight Source is asked for targets using only what was known
// strictly before that day, and when any asset drifts from its target by more
// than the threshold, trades are decided and executed at the next date's
// prices (one period settlement lag), net of a proportional commission paid
// from cash.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/etnz/rebalance/date"
	"github.com/etnz/rebalance/market"
	"github.com/etnz/rebalance/weights"
	"github.com/rs/zerolog"
)

var (
	// ErrMissingPriceData is returned when an asset has no valid price on a date
	// the simulator must value or execute against.
	ErrMissingPriceData = errors.New("missing price data")
	// ErrEmptyCalendar is returned when there is no date to simulate.
	ErrEmptyCalendar = errors.New("empty calendar")
)

// Cash is the key of uninvested cash in weight vectors produced by the simulator.
const Cash = "$cash"

// Config holds the parameters of one run.
type Config struct {
	// Assets is the priced universe. Empty means every priced asset of the data.
	Assets []string
	// Calendar lists the simulated dates. When empty, it is the union of the
	// price dates of Assets within [Start, End].
	Calendar   []date.Date
	Start, End date.Date

	InitialValue float64 // starting capital, in cash unless WithInitialWeights is used
	Threshold    float64 // drift above which a rebalance is triggered, e.g. 0.01
	Commission   float64 // fraction of the traded notional, paid from cash
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithInitialWeights opens positions at the first date's prices, without commission.
func WithInitialWeights(v weights.Vector) Option {
	return func(s *Simulator) { s.initial = v.Clone() }
}

// WithLogger sets the logger, the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Simulator) { s.log = log.With().Str("component", "backtest").Logger() }
}

// Simulator runs a Source against market data. It is not safe for concurrent use.
type Simulator struct {
	cfg     Config
	data    *market.Data
	source  weights.Source
	initial weights.Vector
	log     zerolog.Logger

	holding Holding
}

// New returns a Simulator ready to Run.
func New(cfg Config, data *market.Data, source weights.Source, opts ...Option) (*Simulator, error) {
	if cfg.Threshold < 0 || cfg.Commission < 0 || cfg.Commission >= 1 {
		return nil, fmt.Errorf("invalid threshold %v or commission %v", cfg.Threshold, cfg.Commission)
	}
	if cfg.InitialValue <= 0 {
		return nil, fmt.Errorf("invalid initial value %v", cfg.InitialValue)
	}
	if len(cfg.Assets) == 0 {
		cfg.Assets = data.Assets()
	}
	s := &Simulator{cfg: cfg, data: data, source: source, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.initial != nil {
		// what the initial weights leave unallocated stays in cash
		for a, w := range s.initial {
			if w < 0 || math.IsNaN(w) {
				return nil, fmt.Errorf("initial weight of %s is %v: %w", a, w, weights.ErrInvalidWeights)
			}
		}
		if sum := s.initial.Sum(); sum > 1+weights.Tolerance {
			return nil, fmt.Errorf("initial weights sum to %v: %w", sum, weights.ErrInvalidWeights)
		}
	}
	return s, nil
}

// FromRegistry looks the strategy up in reg and returns its Simulator.
func FromRegistry(cfg Config, data *market.Data, reg *weights.Registry, strategy string, opts ...Option) (*Simulator, error) {
	source, err := reg.Lookup(strategy)
	if err != nil {
		return nil, err
	}
	return New(cfg, data, source, opts...)
}

func (s *Simulator) calendar() []date.Date {
	if len(s.cfg.Calendar) > 0 {
		days := slices.Clone(s.cfg.Calendar)
		slices.SortFunc(days, date.Date.Compare)
		return slices.Compact(days)
	}
	return s.data.Calendar(date.NewRange(s.cfg.Start, s.cfg.End), s.cfg.Assets...)
}

// price returns the price of asset as of on, falling back on the nearest prior price.
func (s *Simulator) price(asset string, on date.Date) (float64, error) {
	h, ok := s.data.Prices(asset)
	if !ok {
		return math.NaN(), fmt.Errorf("%s has no price series: %w", asset, ErrMissingPriceData)
	}
	p, ok := h.ValueAsOf(on)
	if !ok || math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return math.NaN(), fmt.Errorf("%s on %s: %w", asset, on, ErrMissingPriceData)
	}
	return p, nil
}

// prices returns the prices of assets as of on.
func (s *Simulator) prices(on date.Date, assets []string) (map[string]float64, error) {
	out := make(map[string]float64, len(assets))
	for _, a := range assets {
		p, err := s.price(a, on)
		if err != nil {
			return nil, err
		}
		out[a] = p
	}
	return out, nil
}

// universePrices records the prices known on a date, ignoring assets not priced yet.
func (s *Simulator) universePrices(on date.Date) map[string]float64 {
	out := make(map[string]float64, len(s.cfg.Assets))
	for _, a := range s.cfg.Assets {
		if p, err := s.price(a, on); err == nil {
			out[a] = p
		}
	}
	return out
}

// Run simulates the whole calendar.
//
// On error, or when ctx is cancelled, the returned Result holds every date
// processed so far.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	days := s.calendar()
	res := newResult()
	if len(days) == 0 {
		return res, ErrEmptyCalendar
	}
	s.holding = Holding{Quantities: make(map[string]float64), Cash: s.cfg.InitialValue}
	defer func() { res.Holding = s.holding.clone() }()
	if s.initial != nil {
		if err := s.open(days[0]); err != nil {
			return res, err
		}
	}

	for i, t := range days {
		if err := ctx.Err(); err != nil {
			s.log.Warn().Err(err).Stringer("date", t).Msg("run interrupted")
			return res, err
		}

		// 1. mark to market
		prices, err := s.prices(t, s.holding.Assets())
		if err != nil {
			return res, err
		}
		value := s.holding.mark(prices)
		pre := s.holding.Weights(prices)
		res.Values.Append(t, value)
		res.Pre = append(res.Pre, Weights{Date: t, Weights: pre})
		known := s.universePrices(t)
		maps.Copy(known, prices)
		res.Prices = append(res.Prices, Prices{Date: t, Prices: known})

		// 2. targets from what was known strictly before t
		target, err := s.source.TargetWeights(t, s.data.Before(t))
		if err != nil {
			return res, fmt.Errorf("target weights on %s: %w", t, err)
		}
		s.log.Debug().Stringer("date", t).Float64("value", value).Msg("marked to market")

		// 3. threshold rule
		asset, drift := maxDrift(pre, target)
		if drift <= s.cfg.Threshold {
			res.Post = append(res.Post, Weights{Date: t, Weights: pre.Clone()})
			continue
		}
		if i+1 >= len(days) {
			s.log.Warn().Stringer("date", t).Str("asset", asset).Float64("drift", drift).
				Msg("rebalance needed on the last date, no settlement date left")
			res.Post = append(res.Post, Weights{Date: t, Weights: pre.Clone()})
			continue
		}

		// 4. execute at the next date's prices
		event, err := s.rebalance(t, days[i+1], pre, target)
		if err != nil {
			return res, err
		}
		s.log.Info().Stringer("date", t).Stringer("execution", event.ExecutionDate).
			Str("asset", asset).Float64("drift", drift).Int("trades", len(event.Trades)).
			Msg("rebalanced")
		res.Events = append(res.Events, event)
		res.Post = append(res.Post, Weights{Date: t, Weights: event.Post.Clone()})
	}
	return res, nil
}

// open buys the initial weights at the first date's prices.
func (s *Simulator) open(on date.Date) error {
	assets := slices.Collect(maps.Keys(s.initial))
	slices.Sort(assets)
	assets = slices.DeleteFunc(assets, func(a string) bool { return a == Cash || s.initial[a] == 0 })
	prices, err := s.prices(on, assets)
	if err != nil {
		return err
	}
	for _, a := range assets {
		notional := s.initial[a] * s.cfg.InitialValue
		s.holding.Quantities[a] = notional / prices[a]
		s.holding.Cash -= notional
	}
	return nil
}

// maxDrift returns the asset with the largest |current - target| and that drift.
func maxDrift(current, target weights.Vector) (string, float64) {
	var asset string
	var drift float64
	for _, a := range union(current, target) {
		if a == Cash {
			continue
		}
		if d := math.Abs(current[a] - target[a]); d > drift {
			asset, drift = a, d
		}
	}
	return asset, drift
}

func union(vs ...weights.Vector) []string {
	set := make(map[string]bool)
	for _, v := range vs {
		for a := range v {
			set[a] = true
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// rebalance trades the holding to target at exec prices: sells first, then
// buys, scaled down so that cash never goes negative.
func (s *Simulator) rebalance(on, exec date.Date, pre, target weights.Vector) (Event, error) {
	// assets neither held nor targeted need no price
	assets := slices.DeleteFunc(union(s.holding.Quantities, target), func(a string) bool {
		return a == Cash || (target[a] == 0 && s.holding.Quantities[a] == 0)
	})
	prices, err := s.prices(exec, assets)
	if err != nil {
		return Event{}, fmt.Errorf("settlement of %s: %w", on, err)
	}
	value := s.holding.mark(prices)
	rate := s.cfg.Commission

	var sells, buys []Trade
	for _, a := range assets {
		p := prices[a]
		delta := target[a]*value/p - s.holding.Quantities[a]
		if delta == 0 {
			continue
		}
		t := Trade{Asset: a, Quantity: delta, Price: p, Notional: delta * p}
		if delta < 0 {
			sells = append(sells, t)
		} else {
			buys = append(buys, t)
		}
	}

	for i := range sells {
		t := &sells[i]
		t.Commission = rate * math.Abs(t.Notional)
		s.holding.Cash += -t.Notional - t.Commission
		s.holding.Quantities[t.Asset] += t.Quantity
		if math.Abs(s.holding.Quantities[t.Asset]) < 1e-12 {
			delete(s.holding.Quantities, t.Asset)
		}
	}

	var cost float64
	for _, t := range buys {
		cost += t.Notional * (1 + rate)
	}
	scale := 1.0
	if cost > s.holding.Cash {
		scale = max(0, s.holding.Cash) / cost
	}
	for i := range buys {
		t := &buys[i]
		t.Quantity *= scale
		t.Notional *= scale
		t.Commission = rate * t.Notional
		s.holding.Cash -= t.Notional + t.Commission
		s.holding.Quantities[t.Asset] += t.Quantity
	}
	if s.holding.Cash < 0 && s.holding.Cash > -1e-9 {
		s.holding.Cash = 0
	}

	after := s.holding.mark(prices)
	return Event{
		Date:          on,
		ExecutionDate: exec,
		Pre:           pre.Clone(),
		Target:        target.Clone(),
		Post:          s.holding.Weights(prices),
		Trades:        append(sells, buys...),
		Value:         after,
	}, nil
}
