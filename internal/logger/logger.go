// Package logger provides the leveled, optionally rotated structured logger
// shared by every other package, built on log/slog. Output is never
// colorized.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels. Trace sits below slog's built-in Debug; the rest map
// onto slog's own levels so that the standard library's leveling still
// works for anything that logs through *slog.Logger directly.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	// LevelOff is above any level a call site can log at, used to silence
	// the logger entirely.
	LevelOff = slog.Level(16)
)

// Level names, matching the five-level scheme from the CLI's --log-level
// flag (trace, debug, info, warn, error) plus an "off" sentinel.
const (
	Trace = "trace"
	Debug = "debug"
	Info  = "info"
	Warn  = "warn"
	Error = "error"
	Off   = "off"
)

// RotateConfig controls lumberjack-backed log file rotation.
type RotateConfig struct {
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

// DefaultRotateConfig mirrors common daemon defaults: rotate at 512MB,
// keep 10 backups, compress rotated files.
func DefaultRotateConfig() RotateConfig {
	return RotateConfig{MaxSizeMB: 512, MaxBackups: 10, Compress: true}
}

type loggerFactory struct {
	level    string
	format   string
	noColor  bool
	file     *lumberjack.Logger
	sysOut   io.Writer
	rotate   RotateConfig
	levelVar *slog.LevelVar
}

var defaultFactory = &loggerFactory{
	level:    Error,
	format:   "text",
	sysOut:   os.Stderr,
	rotate:   DefaultRotateConfig(),
	levelVar: new(slog.LevelVar),
}

var defaultLogger = slog.New(defaultFactory.createHandler())

// Init (re)configures the default logger from the server's logging
// settings: level, format ("text" or "json"), the no-color setting, and an
// optional rotated log file path. Passing an empty filePath logs to stderr.
// noColor is recorded but does not change the output, which carries no
// ANSI coloring in either format.
func Init(level, format string, noColor bool, filePath string, rotate RotateConfig) error {
	defaultFactory.level = level
	defaultFactory.format = format
	defaultFactory.noColor = noColor
	defaultFactory.rotate = rotate

	if filePath != "" {
		defaultFactory.file = &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    rotate.MaxSizeMB,
			MaxBackups: rotate.MaxBackups,
			Compress:   rotate.Compress,
		}
	} else {
		defaultFactory.file = nil
	}

	setLoggingLevel(level, defaultFactory.levelVar)
	defaultLogger = slog.New(defaultFactory.createHandler())
	return nil
}

// SetLogFormat changes the active format without touching level or
// output destination. An empty format defaults to "json".
func SetLogFormat(format string) {
	if format == "" {
		format = "json"
	}
	defaultFactory.format = format
	defaultLogger = slog.New(defaultFactory.createHandler())
}

func setLoggingLevel(level string, v *slog.LevelVar) {
	switch level {
	case Trace:
		v.Set(LevelTrace)
	case Debug:
		v.Set(LevelDebug)
	case Info:
		v.Set(LevelInfo)
	case Warn:
		v.Set(LevelWarn)
	case Error:
		v.Set(LevelError)
	default:
		v.Set(LevelOff)
	}
}

func (f *loggerFactory) writer() io.Writer {
	if f.file != nil {
		return f.file
	}
	return f.sysOut
}

func (f *loggerFactory) createHandler() slog.Handler {
	return f.createJSONOrTextHandler(f.writer(), f.levelVar, "")
}

func (f *loggerFactory) createJSONOrTextHandler(w io.Writer, levelVar *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: levelVar,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "time"
				a.Value = slog.StringValue(a.Value.Time().Format("2006/01/02 15:04:05.000000"))
			case slog.LevelKey:
				a.Key = "severity"
				a.Value = slog.StringValue(severityName(a.Value.Any().(slog.Level)))
			case slog.MessageKey:
				a.Key = "message"
				a.Value = slog.StringValue(prefix + a.Value.String())
			}
			return a
		},
	}

	if f.format == "json" {
		return &jsonTimestampHandler{slog.NewJSONHandler(w, opts)}
	}
	return slog.NewTextHandler(w, opts)
}

func severityName(l slog.Level) string {
	switch {
	case l <= LevelTrace:
		return "TRACE"
	case l <= LevelDebug:
		return "DEBUG"
	case l <= LevelInfo:
		return "INFO"
	case l <= LevelWarn:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// jsonTimestampHandler rewrites slog's default {"time": "..."} field into
// a {"timestamp": {"seconds": N, "nanos": N}} shape, without hand-rolling
// the rest of JSON encoding that slog.JSONHandler already does correctly.
type jsonTimestampHandler struct {
	*slog.JSONHandler
}

func (h *jsonTimestampHandler) Handle(ctx context.Context, r slog.Record) error {
	ts := r.Time
	r.Time = time.Time{}
	r.AddAttrs(
		slog.Group("timestamp",
			slog.Int64("seconds", ts.Unix()),
			slog.Int64("nanos", int64(ts.Nanosecond())),
		),
	)
	return h.JSONHandler.Handle(ctx, r)
}

func logf(level slog.Level, format string, args ...any) {
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func Tracef(format string, args ...any) { logf(LevelTrace, format, args...) }
func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { logf(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logf(LevelWarn, format, args...) }
func Errorf(format string, args ...any) { logf(LevelError, format, args...) }
