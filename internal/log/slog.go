package log

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// DiagnosticsFile is the name of the JSON diagnostic log inside the state directory.
const DiagnosticsFile = "revcraft.log"

// Options configures the diagnostic logger. It replaces any process-wide
// verbosity flag: components receive the resulting *slog.Logger explicitly.
type Options struct {
	// Verbose lowers the terminal level from Warn to Debug.
	Verbose bool
	// Terminal receives human-readable records. Nil disables terminal output.
	Terminal io.Writer
	// FilePath receives JSON records at Debug level. Empty disables the file.
	FilePath string
}

// NewSlog builds a logger that fans out to the terminal and the diagnostic
// file. The returned closer releases the file.
func NewSlog(opts Options) (*slog.Logger, io.Closer, error) {
	var handlers []slog.Handler
	var closer io.Closer = nopCloser{}

	if opts.Terminal != nil {
		level := slog.LevelWarn
		if opts.Verbose {
			level = slog.LevelDebug
		}
		handlers = append(handlers, slog.NewTextHandler(opts.Terminal, &slog.HandlerOptions{
			Level: level,
		}))
	}

	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open diagnostic log: %w", err)
		}
		closer = f
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	if len(handlers) == 0 {
		return Discard(), closer, nil
	}
	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
