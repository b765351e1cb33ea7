package cmd

import (
	"flag"

	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// filePatterns predicts file arguments of flags by flag name.
var filePatterns = map[string]string{
	"config": "*.yaml",
	"data":   "*.jsonl",
	"runs":   "",
	"o":      "*",
}

// flagValues predicts flags with a closed set of values.
var flagValues = map[string]predict.Set{
	"log-level": {"debug", "info", "warn", "error"},
	"strategy":  {"dynamic", "static"},
	"what":      {"log", "values", "pre", "post", "run"},
	"format":    {"json", "msgpack"},
	"kind":      {"price", "indicator"},
}

// Completion returns the shell completion of the commands and of the global flags.
func Completion(global *flag.FlagSet) *complete.Command {
	root := &complete.Command{
		Sub:   make(map[string]*complete.Command),
		Flags: predictFlags(global),
	}
	for _, cmd := range Commands {
		fs := flag.NewFlagSet(cmd.Command.Name(), flag.ContinueOnError)
		cmd.Command.SetFlags(fs)
		root.Sub[cmd.Command.Name()] = &complete.Command{Flags: predictFlags(fs)}
	}
	root.Sub["import"].Args = predict.Files("*.json")
	for _, name := range []string{"help", "flags", "commands"} {
		root.Sub[name] = &complete.Command{}
	}
	return root
}

func predictFlags(fs *flag.FlagSet) map[string]complete.Predictor {
	flags := make(map[string]complete.Predictor)
	fs.VisitAll(func(f *flag.Flag) {
		if pattern, ok := filePatterns[f.Name]; ok {
			if pattern == "" {
				flags[f.Name] = predict.Dirs("*")
			} else {
				flags[f.Name] = predict.Files(pattern)
			}
			return
		}
		if values, ok := flagValues[f.Name]; ok {
			flags[f.Name] = values
			return
		}
		if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
			flags[f.Name] = predict.Nothing
			return
		}
		flags[f.Name] = predict.Something
	})
	return flags
}
