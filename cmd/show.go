package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/rebalance/renderer"
	"github.com/google/subcommands"
)

type showCmd struct {
	list    bool
	history bool
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "display a saved run" }
func (*showCmd) Usage() string {
	return `rebal show [-history] [<run id>]
rebal show -list

  Displays the summary of a saved run, the latest one by default. A unique
  prefix of the run id is enough.
`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.list, "list", false, "List the saved runs.")
	f.BoolVar(&c.history, "history", false, "Also print the value and weights on every date.")
}

func (c *showCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, err := OpenStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if c.list {
		ids, err := store.IDs()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		for _, id := range ids {
			run, err := store.Load(id)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return subcommands.ExitFailure
			}
			status := "ok"
			if run.Error != "" {
				status = run.Error
			}
			fmt.Printf("%s\t%s\t%s\n", run.ID, run.Created.Local().Format("2006-01-02 15:04:05"), status)
		}
		return subcommands.ExitSuccess
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
	printMarkdown(renderer.SummaryMarkdown(out))
	if c.history {
		printMarkdown(renderer.HistoryMarkdown(out.Result, out.Config.Currency))
	}
	if run.Error != "" {
		fmt.Fprintf(os.Stderr, "Warning, the run stopped early: %s\n", run.Error)
	}
	return subcommands.ExitSuccess
}
