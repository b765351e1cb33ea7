package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/rebalance"
	"github.com/etnz/rebalance/artifact"
	"github.com/etnz/rebalance/date"
	"github.com/etnz/rebalance/renderer"
	"github.com/google/subcommands"
)

type backtestCmd struct {
	strategy string
	start    string
	end      string
	noSave   bool
	history  bool
}

func (*backtestCmd) Name() string     { return "backtest" }
func (*backtestCmd) Synopsis() string { return "backtest the configured strategy and attribute its return" }
func (*backtestCmd) Usage() string {
	return `rebal backtest [-strategy <name>] [-start <date>] [-end <date>] [-history] [-no-save]

  Simulates the strategy of the configuration file day by day, rebalancing
  whenever an asset drifts from its target by more than the threshold. With a
  benchmark, the excess return is attributed to allocation, selection and
  interaction effects per sector.

  The run is saved in the run folder, see the show, attribute and export
  commands.
`
}

func (c *backtestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.strategy, "strategy", "", "Strategy to run (dynamic, static). Overrides the configuration.")
	f.StringVar(&c.start, "start", "", "First date of the backtest. Overrides the configuration.")
	f.StringVar(&c.end, "end", "", "Last date of the backtest. Overrides the configuration.")
	f.BoolVar(&c.history, "history", false, "Also print the value and weights on every date.")
	f.BoolVar(&c.noSave, "no-save", false, "Do not save the run.")
}

func (c *backtestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.strategy != "" {
		cfg.Strategy = c.strategy
	}
	for _, o := range []struct {
		flag string
		dst  *date.Date
	}{{c.start, &cfg.Start}, {c.end, &cfg.End}} {
		if o.flag == "" {
			continue
		}
		if *o.dst, err = date.Parse(o.flag); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
			return subcommands.ExitUsageError
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return subcommands.ExitUsageError
	}

	data, err := LoadData(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	out, runErr := rebalance.Run(ctx, cfg, data, logger())
	if out.Result == nil {
		fmt.Fprintf(os.Stderr, "Error running backtest: %v\n", runErr)
		return subcommands.ExitFailure
	}

	if !c.noSave {
		if err := save(out, runErr); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving run: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	if out.Result.Values.Len() > 0 {
		printMarkdown(renderer.SummaryMarkdown(out))
		if c.history {
			printMarkdown(renderer.HistoryMarkdown(out.Result, cfg.Currency))
		}
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error running backtest: %v\n", runErr)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func save(out *rebalance.Outcome, runErr error) error {
	store, err := OpenStore()
	if err != nil {
		return err
	}
	run, err := artifact.New(out, runErr)
	if err != nil {
		return err
	}
	if err := store.Save(run); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Saved run %s\n", run.ID)
	return nil
}
