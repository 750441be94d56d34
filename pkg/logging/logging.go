// Package logging builds the process logger: a slog handler on stderr,
// optionally teed into a rotating file.
package logging

import (
	"io"
	"log/slog"

	"github.com/google/uuid"
	lj "gopkg.in/natefinch/lumberjack.v2"

	"github.com/logflow/perfkit/pkg/config"
	perrors "github.com/logflow/perfkit/pkg/errors"
)

// Default rotation parameters, used when the config leaves them unset.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Logger is a configured slog logger and the sinks it owns.
type Logger struct {
	*slog.Logger

	// RunID tags every record of this process.
	RunID string

	file io.WriteCloser
}

// New creates a logger writing to w and, when cfg.File is set, to a
// lumberjack-rotated file.
func New(w io.Writer, cfg config.LoggingConfig) (*Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	l := &Logger{RunID: uuid.NewString()}
	if cfg.File != "" {
		l.file = &lj.Logger{
			Filename:   cfg.File,
			MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   cfg.Compress,
		}
		w = io.MultiWriter(w, l.file)
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch cfg.Format {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, perrors.InvalidArgument("logging.format", cfg.Format, "must be text or json")
	}

	l.Logger = slog.New(h).With("run_id", l.RunID)
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// Close releases the file sink, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
