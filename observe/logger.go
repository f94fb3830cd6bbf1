package observe

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents a logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel parses a string log level. Unknown values map to LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

func (l LogLevel) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// structuredLogger writes one JSON object per entry through log/slog.
type structuredLogger struct {
	logger *slog.Logger
}

// NewLogger creates a JSON logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a JSON logger writing to w.
//
// Entries carry "timestamp", "level" (lower case) and "msg" followed by
// sender attributes and fields. Keys listed in RedactedFields are written
// as "[REDACTED]".
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLogLevel(level).slog(),
		ReplaceAttr: replaceAttr,
	})
	return &structuredLogger{logger: slog.New(handler)}
}

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch a.Key {
		case slog.TimeKey:
			a.Key = "timestamp"
			a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
			return a
		case slog.LevelKey:
			if lvl, ok := a.Value.Any().(slog.Level); ok {
				a.Value = slog.StringValue(strings.ToLower(lvl.String()))
			}
			return a
		}
	}
	if isRedactedField(a.Key) {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

// WithSender returns a logger with sender context attached.
func (l *structuredLogger) WithSender(meta SenderMeta) Logger {
	return &structuredLogger{logger: l.logger.With(meta.logAttrs()...)}
}

func (l *structuredLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelInfo, msg, fields)
}

func (l *structuredLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelWarn, msg, fields)
}

func (l *structuredLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelError, msg, fields)
}

func (l *structuredLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelDebug, msg, fields)
}

func (l *structuredLogger) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.logger.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			attrs = append(attrs, slog.String(f.Key, err.Error()))
			continue
		}
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	l.logger.LogAttrs(ctx, level, msg, attrs...)
}

func isRedactedField(key string) bool {
	for _, k := range RedactedFields {
		if k == key {
			return true
		}
	}
	return false
}

// FileConfig configures a rotated log file.
type FileConfig struct {
	// Path is the log file location. Required.
	Path string `koanf:"path"`

	// MaxSizeMB is the size that triggers rotation.
	// Default: 100
	MaxSizeMB int `koanf:"max-size-mb"`

	// MaxBackups is the number of rotated files kept. Zero keeps all.
	MaxBackups int `koanf:"max-backups"`

	// MaxAgeDays removes rotated files older than this. Zero keeps all.
	MaxAgeDays int `koanf:"max-age-days"`

	// Compress gzips rotated files.
	Compress bool `koanf:"compress"`
}

// FileLogger is a Logger writing to a rotated file. It holds an open file
// handle and must be closed.
type FileLogger struct {
	Logger
	out *lumberjack.Logger
}

// NewFileLogger creates a JSON logger writing to a lumberjack-rotated file.
// The file is opened lazily on the first write.
func NewFileLogger(level string, cfg FileConfig) *FileLogger {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	out := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return &FileLogger{
		Logger: NewLoggerWithWriter(level, out),
		out:    out,
	}
}

// Rotate closes the current file and starts a new one.
func (l *FileLogger) Rotate() error {
	return l.out.Rotate()
}

// Close closes the underlying file. It is safe to call more than once.
func (l *FileLogger) Close() error {
	return l.out.Close()
}

// Release closes the underlying file so a FileLogger can be tracked for
// cleanup.
func (l *FileLogger) Release() error {
	return l.Close()
}
