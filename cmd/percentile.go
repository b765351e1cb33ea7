package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/rebalance/renderer"
	"github.com/google/subcommands"
)

type percentileCmd struct {
	window int
	strict bool
}

func (*percentileCmd) Name() string { return "percentile" }
func (*percentileCmd) Synopsis() string {
	return "display the percentile signal of an indicator series"
}
func (*percentileCmd) Usage() string {
	return `rebal percentile [-window <n>] [-strict] <indicator>

  Displays, on every date of the indicator, the percentile rank of its value
  within the trailing window of observations. Dates with too short a history
  are skipped.
`
}

func (c *percentileCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.window, "window", 0, "Number of observations in the window. Defaults to the configuration.")
	f.BoolVar(&c.strict, "strict", false, "Require a full window.")
}

func (c *percentileCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Expected exactly one indicator name.")
		return subcommands.ExitUsageError
	}
	name := f.Arg(0)

	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.window > 0 {
		cfg.Window = c.window
	}
	if c.strict {
		cfg.StrictHistory = true
	}

	data, err := LoadData(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	series, ok := data.Indicator(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "No indicator %q in %s, available: %v\n", name, cfg.Data, data.Indicators())
		return subcommands.ExitFailure
	}

	percentiles, err := cfg.Engine().Series(series)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing the percentiles of %q: %v\n", name, err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.PercentileMarkdown(name, series, percentiles))
	return subcommands.ExitSuccess
}
