package cmd

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates the structured logger of the CLI. Unknown levels fall
// back on info.
func NewLogger(w io.Writer, level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	output := w
	if pretty {
		output = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}
