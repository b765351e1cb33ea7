package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/etnz/rebalance"
)

// Environment variables passing the global flags to extensions.
const (
	EnvConfigFile = "REBAL_CONFIG_FILE"
	EnvDataFile   = "REBAL_DATA_FILE"
	EnvRunsDir    = "REBAL_RUNS_DIR"
	EnvVerbose    = "REBAL_VERBOSE"
)

// RunExtension runs rebal-<subcommand> from the PATH, git style. It reports
// whether such a command exists, and its exit code.
func RunExtension(subcommand string, args []string) (bool, int) {
	name := "rebal-" + subcommand
	log := logger().With().Str("extension", name).Logger()

	path, err := exec.LookPath(name)
	if err != nil {
		log.Debug().Err(err).Msg("no extension in PATH")
		return false, 0
	}

	ext := exec.Command(path, args...)
	ext.Stdin, ext.Stdout, ext.Stderr = os.Stdin, os.Stdout, os.Stderr
	ext.Env = append(os.Environ(), extensionEnv()...)

	err = ext.Run()
	var exit *exec.ExitError
	switch {
	case err == nil:
		return true, 0
	case errors.As(err, &exit):
		log.Debug().Int("code", exit.ExitCode()).Msg("extension failed")
		return true, exit.ExitCode()
	default:
		fmt.Fprintf(os.Stderr, "Error executing extension %q: %v\n", name, err)
		return true, 1
	}
}

// extensionEnv describes the invocation to an extension. The data file, the
// strategy and the currency are those of the configuration once the flags and
// the REBAL_* overrides are applied, when it can be read.
func extensionEnv() []string {
	env := []string{
		EnvConfigFile + "=" + *configFile,
		EnvRunsDir + "=" + *runsDir,
		EnvVerbose + "=" + strconv.FormatBool(*Verbose),
	}
	cfg, err := LoadConfig()
	if err != nil {
		logger().Debug().Err(err).Msg("extension runs without a configuration")
		return append(env, EnvDataFile+"="+*dataFile)
	}
	return append(env,
		EnvDataFile+"="+cfg.Data,
		rebalance.EnvPrefix+"STRATEGY="+cfg.Strategy,
		rebalance.EnvPrefix+"CURRENCY="+cfg.Currency,
	)
}
