package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

type Level string

const (
	Debug Level = "debug"
	Info  Level = "info"
	Warn  Level = "warn"
	Error Level = "error"
)

func (l Level) slog() slog.Level {
	switch l {
	case Debug:
		return slog.LevelDebug
	case Warn:
		return slog.LevelWarn
	case Error:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Logger writes one JSON object per line with ts, level and msg keys
// followed by the key/value fields of the call.
type Logger struct {
	level *slog.LevelVar
	sl    *slog.Logger
}

func New(levelStr string) *Logger {
	return NewWithWriter(levelStr, os.Stdout)
}

func NewWithWriter(levelStr string, w io.Writer) *Logger {
	lv := &slog.LevelVar{}
	lv.Set(ParseLevel(levelStr).slog())
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lv,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339Nano))
			case slog.LevelKey:
				return slog.String("level", levelName(a.Value.Any().(slog.Level)))
			}
			return a
		},
	})
	return &Logger{level: lv, sl: slog.New(h)}
}

func ParseLevel(s string) Level {
	switch Level(s) {
	case Debug, Info, Warn, Error:
		return Level(s)
	}
	return Info
}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return string(Debug)
	case l < slog.LevelWarn:
		return string(Info)
	case l < slog.LevelError:
		return string(Warn)
	}
	return string(Error)
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(levelStr string) { l.level.Set(ParseLevel(levelStr).slog()) }

func (l *Logger) Enabled(level Level) bool {
	return l.sl.Enabled(context.Background(), level.slog())
}

func (l *Logger) Debug(msg string, fields ...any) { l.sl.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...any)  { l.sl.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...any)  { l.sl.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...any) { l.sl.Error(msg, fields...) }
