package courtflow

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// LoggerOptions configure the loggers returned by NewLoggerWithOptions.
type LoggerOptions struct {
	// Level is the minimum level to log. Defaults to slog.LevelInfo.
	Level slog.Leveler

	// Output is where log records are written. Defaults to os.Stdout.
	Output io.Writer

	// JSON emits records as JSON lines instead of tinted text.
	JSON bool
}

// NewLogger returns a logger that writes to stdout with colorized output if
// stdout is a terminal.
func NewLogger() *slog.Logger {
	return NewLoggerWithOptions(LoggerOptions{})
}

// NewLoggerWithOptions returns a logger configured per opts. Colorized
// output is used only when writing directly to a terminal.
func NewLoggerWithOptions(opts LoggerOptions) *slog.Logger {
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
	}
	noColor := true
	if f, ok := output.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	return slog.New(tint.NewHandler(output, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}))
}

// NewJSONLogger returns a logger that writes to stdout in JSON format.
func NewJSONLogger() *slog.Logger {
	return NewLoggerWithOptions(LoggerOptions{JSON: true})
}
