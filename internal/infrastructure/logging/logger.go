package logging

import (
	"fmt"
	"io"
	"log/slog"
	"log/syslog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/config"
)

// levelStep is the distance between adjacent slog levels.
const levelStep = slog.LevelInfo - slog.LevelDebug

// Logger wraps slog.Logger with bridge-specific functionality.
//
// It provides structured logging with default fields and a level that can
// be changed while the process runs.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
	level  *slog.LevelVar
	closer io.Closer
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output format (JSON, plain text or colourised console)
//   - Log level filtering
//   - Default fields (service name, version)
//   - Output destination (stdout, stderr or the local syslog daemon)
//
// If syslog cannot be reached the logger falls back to stderr and says so
// in its first entry.
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	var (
		output    io.Writer
		closer    io.Closer
		syslogErr error
	)
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	case "syslog":
		w, err := openSyslog(cfg.SyslogTag)
		if err != nil {
			syslogErr = err
			output = os.Stderr
			break
		}
		output, closer = w, w
	default:
		output = os.Stdout
	}

	l := NewWithWriter(cfg, version, output)
	l.closer = closer
	if syslogErr != nil {
		l.Warn("syslog unavailable, logging to stderr", "error", syslogErr)
	}
	return l
}

// NewWithWriter creates a Logger that writes to w regardless of cfg.Output.
// Tests use it to capture log entries.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Level))

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "console":
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    !isTerminal(w),
		})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "ruuvibridge"),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
		level:  level,
	}
}

func openSyslog(tag string) (*syslog.Writer, error) {
	if tag == "" {
		tag = "ruuvibridge"
	}
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, tag)
	if err != nil {
		return nil, fmt.Errorf("connecting to syslog: %w", err)
	}
	return w, nil
}

// isTerminal reports whether w is a character device, so colour codes are
// only written to an interactive console.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// parseLevel accepts slog's level names, including offsets such as
// "info+2", plus "warning". Anything else means info.
func parseLevel(name string) slog.Level {
	if strings.EqualFold(name, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// With returns a new Logger with additional default attributes.
// The child shares the parent's level, so MoreVerbose and LessVerbose
// on either affect both.
//
// Parameters:
//   - args: Key-value pairs to add as default attributes
//
// Returns:
//   - *Logger: New logger with added attributes
//
// Example:
//
//	mqttLogger := logger.With("component", "mqtt")
//	mqttLogger.Info("connected") // Includes component=mqtt
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		level:  l.level,
	}
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// MoreVerbose lowers the minimum level by one step, stopping at debug.
// It returns the new level.
func (l *Logger) MoreVerbose() slog.Level {
	next := l.level.Level() - levelStep
	if next < slog.LevelDebug {
		next = slog.LevelDebug
	}
	l.level.Set(next)
	return next
}

// LessVerbose raises the minimum level by one step, stopping at error.
// It returns the new level.
func (l *Logger) LessVerbose() slog.Level {
	next := l.level.Level() + levelStep
	if next > slog.LevelError {
		next = slog.LevelError
	}
	l.level.Set(next)
	return next
}

// Close releases the syslog connection, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Default is the logger for errors that happen before the configuration
// is loaded: text on stderr at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"}, "")
}
