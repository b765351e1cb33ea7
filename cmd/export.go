package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/etnz/rebalance"
	"github.com/etnz/rebalance/artifact"
	"github.com/google/subcommands"
)

type exportCmd struct {
	what   string
	format string
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export a saved run as CSV, JSON or msgpack" }
func (*exportCmd) Usage() string {
	return `rebal export [-what log|values|pre|post|run] [-format json|msgpack] [-o <file>] [<run id>]

  Writes a part of a saved run, the latest one by default:
    log     the rebalance log, one row per asset and rebalance (CSV)
    values  the portfolio value on every date (CSV)
    pre     the weights before trading on every date (CSV)
    post    the weights after trading on every date (CSV)
    run     the whole run, in -format (JSON by default)
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.what, "what", "log", "Part of the run to export (log, values, pre, post, run).")
	f.StringVar(&c.format, "format", "json", "Encoding of -what run (json, msgpack).")
	f.StringVar(&c.output, "o", "", "Output file. Defaults to the standard output.")
}

func (c *exportCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	var w io.Writer = os.Stdout
	if c.output != "" {
		file, err := os.Create(c.output)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		defer file.Close()
		w = file
	}

	if err := c.export(w, run); err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting run %s: %v\n", run.ID, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *exportCmd) export(w io.Writer, run *artifact.Run) error {
	if c.what == "run" {
		format, err := artifact.ParseFormat(c.format)
		if err != nil {
			return err
		}
		return artifact.Encode(w, run, format)
	}

	out, err := run.Outcome()
	if err != nil {
		return err
	}
	switch c.what {
	case "log":
		return rebalance.ExportLog(w, out.Result.LogRows())
	case "values":
		return rebalance.ExportValues(w, out.Result)
	case "pre":
		return rebalance.ExportWeights(w, out.Result.Pre)
	case "post":
		return rebalance.ExportWeights(w, out.Result.Post)
	}
	return fmt.Errorf("unknown part %q", c.what)
}
