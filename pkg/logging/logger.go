// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	// Standard output carries the report and must not be used.
	Output io.Writer

	// RunID tags every entry of one run. Empty means no run_id field.
	RunID string
}

// DefaultConfig returns a default logger configuration. Output is pretty
// when stderr is a terminal.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: IsTerminal(os.Stderr),
		Output: os.Stderr,
		RunID:  NewRunID(),
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.RunID != "" {
		ctx = ctx.Str("run_id", cfg.RunID)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

// ParseLevel validates a level name.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(string(level)))
	if err != nil || l == zerolog.NoLevel {
		if level == "warning" {
			return zerolog.WarnLevel
		}
		return zerolog.InfoLevel
	}
	return l
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// NewRunID returns a sortable id for one run.
func NewRunID() string {
	return ulid.Make().String()
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Each fetched page (page, pages, items)
//   - Each request (endpoint, query)
//   - Card payment index size
//
// Info: Normal operation events
//   - Access token rejected (refresh follows)
//   - Token refreshed
//   - Collection fully paginated
//   - Report written (rows, card invoices, paid)
//
// Warn: Warning conditions that don't prevent operation
//   - Metrics file could not be written
//
// Error: Error conditions requiring attention
//   - Refresh rejected by the token endpoint
//   - Run aborted (protocol, format or auth error)
//   - Configuration errors
//
// Context Fields:
//   - run_id: ULID of the run
//   - component: emitting package (freshbooks-client, paginator, report, cli)
//   - endpoint: API path
//   - status: HTTP status code
//   - duration: Request duration
//   - error_class: Error classification (auth, client, server, network)
