package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/rebalance/date"
	"github.com/etnz/rebalance/renderer"
	"github.com/etnz/rebalance/weights"
	"github.com/google/subcommands"
)

type weightsCmd struct {
	date string
}

func (*weightsCmd) Name() string { return "weights" }
func (*weightsCmd) Synopsis() string {
	return "display the target weights of the dynamic strategy on a date"
}
func (*weightsCmd) Usage() string {
	return `rebal weights [-d <date>]

  Displays the signals and the target weights the dynamic strategy computes
  on a date, from the market data known strictly before that date.
`
}

func (c *weightsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", date.Today().String(), "Date of the target weights. See the user manual for supported date formats.")
}

func (c *weightsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	on, err := date.Parse(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	calc, err := cfg.Calculator()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid dynamic strategy: %v\n", err)
		return subcommands.ExitFailure
	}
	source, err := weights.NewDynamic(calc, cfg.Engine())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid dynamic strategy: %v\n", err)
		return subcommands.ExitFailure
	}
	data, err := LoadData(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	view := data.Before(on)
	snap, err := source.Snapshot(on, view)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading the signals: %v\n", err)
		return subcommands.ExitFailure
	}
	target, err := calc.TargetWeights(on, snap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing the target weights: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.WeightsMarkdown(on, snap, target))
	return subcommands.ExitSuccess
}
