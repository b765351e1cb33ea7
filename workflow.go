package rebalance

import (
	"context"
	"fmt"
	"os"

	"github.com/etnz/rebalance/attribution"
	"github.com/etnz/rebalance/backtest"
	"github.com/etnz/rebalance/date"
	"github.com/etnz/rebalance/market"
	"github.com/rs/zerolog"
)

// Outcome gathers everything a run produced.
type Outcome struct {
	Config      Config
	Result      *backtest.Result
	Attribution []attribution.Result // nil without benchmark
	Report      *attribution.Report  // nil without benchmark
}

// Performance returns the start and end values and the total return of the run.
func (o *Outcome) Performance() Performance {
	s := o.Result.Stats()
	return NewPerformance(M(s.StartValue, o.Config.Currency), M(s.EndValue, o.Config.Currency))
}

// NewReport aggregates the attribution over periods and reconciles it with
// the returns the portfolio value realized.
func (o *Outcome) NewReport(periods ...date.Period) attribution.Report {
	var realized attribution.Realized
	if o.Result != nil {
		realized = o.Result.PeriodReturns()
	}
	return attribution.NewReport(o.Attribution, realized, periods...)
}

// LoadData reads a JSONL market data file.
func LoadData(path string) (*market.Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open market data: %w", err)
	}
	defer f.Close()
	data := market.NewData()
	if err := market.ImportJSONL(f, data); err != nil {
		return nil, fmt.Errorf("cannot import %q: %w", path, err)
	}
	return data, nil
}

// Run backtests the configured strategy on data, then attributes its excess
// return over the benchmark when one is configured.
//
// Errors are returned with whatever was computed before them: a failed
// attribution keeps the backtest result, a failed backtest keeps the dates
// already simulated.
func Run(ctx context.Context, cfg Config, data *market.Data, log zerolog.Logger) (*Outcome, error) {
	out := &Outcome{Config: cfg}
	reg, err := cfg.Registry()
	if err != nil {
		return out, err
	}

	assets := cfg.Universe()
	assets = append(assets, cfg.benchmarkAssets()...)
	opts := []backtest.Option{backtest.WithLogger(log)}
	if len(cfg.InitialWeights) > 0 {
		opts = append(opts, backtest.WithInitialWeights(cfg.InitialWeights))
	}
	end := cfg.End
	if end.IsZero() {
		end = date.Today()
	}
	sim, err := backtest.FromRegistry(backtest.Config{
		Assets:       dedup(assets),
		Start:        cfg.Start,
		End:          end,
		InitialValue: cfg.InitialValue,
		Threshold:    cfg.Threshold,
		Commission:   cfg.Commission,
	}, data, reg, cfg.Strategy, opts...)
	if err != nil {
		return out, err
	}

	log.Info().Str("strategy", cfg.Strategy).Stringer("start", cfg.Start).Stringer("end", end).Msg("running backtest")
	out.Result, err = sim.Run(ctx)
	if err != nil {
		return out, fmt.Errorf("backtest: %w", err)
	}
	if cfg.Benchmark.IsZero() {
		return out, nil
	}

	input, err := cfg.attributionInput(out.Result, data)
	if err != nil {
		return out, fmt.Errorf("attribution: %w", err)
	}
	out.Attribution, err = attribution.Attribute(input, cfg.attributionOptions()...)
	if err != nil {
		return out, fmt.Errorf("attribution: %w", err)
	}
	report := out.NewReport(cfg.Report...)
	out.Report = &report
	if !report.Summary.Reconciled {
		log.Warn().Float64("residual", report.Summary.Residual).Float64("commissions", out.Result.Commissions()).
			Msg("attribution does not reconcile with the realized excess return")
	}
	return out, nil
}

// benchmarkAssets returns the assets the benchmark may hold.
func (c Config) benchmarkAssets() []string {
	if len(c.Benchmark.Weights) > 0 {
		return sortedKeys(c.Benchmark.Weights)
	}
	return c.Benchmark.Assets
}

// attributionInput prepares the attribution of res against the configured benchmark.
//
// The benchmark assets earn the same market returns as the portfolio ones.
// Time varying benchmark weights of a period are the last values known
// before the period ends.
func (c Config) attributionInput(res *backtest.Result, data *market.Data) (attribution.Input, error) {
	w, r := res.AttributionInput()
	in := attribution.Input{
		PortfolioWeights: w,
		PortfolioReturns: r,
		BenchmarkReturns: r,
		Sectors:          c.SectorMap(),
	}
	if len(c.Benchmark.Weights) > 0 {
		in.Benchmark = attribution.Static(c.Benchmark.Weights)
		return in, nil
	}

	panel := make(attribution.Panel)
	for ts := range r {
		view := data.Before(date.FromTime(ts))
		weights := make(map[string]float64, len(c.Benchmark.Assets))
		for _, a := range c.Benchmark.Assets {
			s, ok := view.Indicator(c.Benchmark.Series + a)
			if !ok {
				return in, fmt.Errorf("no benchmark weight series %q", c.Benchmark.Series+a)
			}
			if v, ok := s.ValueAsOf(date.FromTime(ts)); ok {
				weights[a] = v
			}
		}
		if len(weights) == len(c.Benchmark.Assets) {
			panel[ts] = weights
		}
	}
	tv, err := attribution.NewTimeVarying(panel)
	if err != nil {
		return in, err
	}
	in.Benchmark = tv
	return in, nil
}

func dedup(assets []string) []string {
	seen := make(map[string]bool, len(assets))
	out := assets[:0:0]
	for _, a := range assets {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}
