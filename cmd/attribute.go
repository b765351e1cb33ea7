package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/rebalance/date"
	"github.com/etnz/rebalance/renderer"
	"github.com/google/subcommands"
)

type attributeCmd struct {
	periods string
}

func (*attributeCmd) Name() string { return "attribute" }
func (*attributeCmd) Synopsis() string {
	return "display the attribution of a saved run by period"
}
func (*attributeCmd) Usage() string {
	return `rebal attribute [-p <periods>] [<run id>]

  Displays the allocation, selection and interaction effects of a saved run,
  the latest one by default, aggregated by calendar period.
`
}

func (c *attributeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.periods, "p", "", "Comma separated periods (day, week, month, quarter, year). Defaults to the report periods of the run.")
}

func (c *attributeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, err := OpenStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	run, err := LoadRun(store, f.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	out, err := run.Outcome()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if len(out.Attribution) == 0 {
		fmt.Fprintf(os.Stderr, "Run %s has no attribution, configure a benchmark.\n", run.ID)
		return subcommands.ExitFailure
	}

	periods := out.Config.Report
	if c.periods != "" {
		periods, err = parsePeriods(c.periods)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
	}
	report := out.NewReport(periods...)
	printMarkdown(renderer.AttributionMarkdown(&report, periods...))
	return subcommands.ExitSuccess
}

func parsePeriods(s string) ([]date.Period, error) {
	var periods []date.Period
	for _, name := range strings.Split(s, ",") {
		p, err := date.ParsePeriod(name)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, nil
}
