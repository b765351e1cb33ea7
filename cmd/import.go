package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/etnz/rebalance/market"
	"github.com/google/subcommands"
)

// importCmd extracts a series from a JSON document into the market data file.
type importCmd struct {
	path string
	kind string
	name string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import a series from a JSON document into the market data" }
func (*importCmd) Usage() string {
	return `rebal import -path <jsonpath> -name <series> [-kind price|indicator] <file.json | ->

  Reads the observations selected by a jsonpath expression, either
  [[date, value], ...] pairs or {"date": ..., "value": ...} objects, and
  merges them into the market data file.

  Example:
    rebal import -path '$.observations[*]' -name US10Y -kind indicator fred.json
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.path, "path", "$[*]", "jsonpath expression selecting the observations.")
	f.StringVar(&c.kind, "kind", string(market.Indicator), "Kind of series (price, indicator).")
	f.StringVar(&c.name, "name", "", "Name of the series.")
}

func (c *importCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || c.name == "" {
		fmt.Fprintln(os.Stderr, "Expected -name and exactly one JSON file.")
		return subcommands.ExitUsageError
	}
	kind := market.Kind(c.kind)
	if kind != market.Price && kind != market.Indicator {
		fmt.Fprintf(os.Stderr, "Unknown series kind %q.\n", c.kind)
		return subcommands.ExitUsageError
	}

	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	if cfg.Data == "" {
		fmt.Fprintln(os.Stderr, "No market data file, set -data or data in the configuration.")
		return subcommands.ExitUsageError
	}

	data, err := LoadData(cfg)
	if errors.Is(err, fs.ErrNotExist) {
		logger().Warn().Str("file", cfg.Data).Msg("market data file does not exist, creating it")
		data, err = market.NewData(), nil
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	var in io.Reader = os.Stdin
	if src := f.Arg(0); src != "-" {
		file, err := os.Open(src)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		defer file.Close()
		in = file
	}
	n, err := market.ImportJSONPath(in, c.path, kind, c.name, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error importing %s: %v\n", c.name, err)
		return subcommands.ExitFailure
	}

	if err := writeData(cfg.Data, data); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", cfg.Data, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Imported %d observations of %s into %s\n", n, c.name, cfg.Data)
	return subcommands.ExitSuccess
}

func writeData(path string, data *market.Data) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := market.ExportJSONL(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
