// Package cmd implements the CLI application to backtest rebalancing strategies.
package cmd

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/rebalance"
	"github.com/etnz/rebalance/artifact"
	"github.com/etnz/rebalance/market"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

// Commands lists the subcommands and their groups, in display order.
var Commands = []struct {
	Command subcommands.Command
	Group   string
}{
	{&backtestCmd{}, "backtest"},
	{&showCmd{}, "backtest"},
	{&attributeCmd{}, "backtest"},
	{&exportCmd{}, "backtest"},
	{&percentileCmd{}, "signals"},
	{&weightsCmd{}, "signals"},
	{&importCmd{}, "market data"},
}

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	for _, cmd := range Commands {
		c.Register(cmd.Command, cmd.Group)
	}
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", "strategy.yaml", "Path to the strategy configuration file (YAML format)")
var dataFile = flag.String("data", "", "Path to the market data file (JSONL format). Overrides the configuration.")
var runsDir = flag.String("runs", ".runs", "Path to the folder where runs are stored")
var logLevel = flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
var raw = flag.Bool("raw", false, "print reports as raw markdown")

// Verbose enables debug logs, whatever the log level.
var Verbose = flag.Bool("v", false, "verbose output")

// logger returns the logger configured by the global flags.
func logger() zerolog.Logger {
	level := *logLevel
	if *Verbose {
		level = "debug"
	}
	return NewLogger(os.Stderr, level, !*raw)
}

// LoadConfig reads the configuration file named by the global flags.
func LoadConfig() (rebalance.Config, error) {
	cfg, err := rebalance.LoadConfig(*configFile)
	if err != nil {
		return cfg, err
	}
	if *dataFile != "" {
		cfg.Data = *dataFile
	}
	return cfg, nil
}

// LoadData reads the market data file of cfg.
func LoadData(cfg rebalance.Config) (*market.Data, error) {
	if cfg.Data == "" {
		return nil, fmt.Errorf("no market data file, set -data or data in %s", *configFile)
	}
	return rebalance.LoadData(cfg.Data)
}

// OpenStore opens the run store of the global flags.
func OpenStore() (*artifact.Store, error) {
	return artifact.Open(*runsDir, logger())
}

// LoadRun returns the run named by args, or the latest run.
func LoadRun(store *artifact.Store, args []string) (*artifact.Run, error) {
	switch len(args) {
	case 0:
		return store.Latest()
	case 1:
		return store.Load(args[0])
	default:
		return nil, fmt.Errorf("expected at most one run id, got %d", len(args))
	}
}

// printMarkdown renders markdown for the terminal, or prints it as is with -raw.
func printMarkdown(md string) {
	if *raw {
		fmt.Print(md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		log.Println("warning, cannot render markdown:", err)
		fmt.Print(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		log.Println("warning, cannot render markdown:", err)
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}
