package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to the Logger interface. Groups are
// flattened into dotted key prefixes.
type ZerologLogger struct {
	z     zerolog.Logger
	group string
}

// Console creates a Logger with zerolog's colored console writer for CLI use.
func Console(w io.Writer, level slog.Level) Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: !isTerminal(w)}
	return NewZerolog(zerolog.New(out).With().Timestamp().Logger().Level(zerologLevel(level)))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func NewZerolog(z zerolog.Logger) Logger {
	return &ZerologLogger{z: z}
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.DebugLevel
	case l <= slog.LevelInfo:
		return zerolog.InfoLevel
	case l <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (l *ZerologLogger) Debug(msg string, args ...any) { l.emit(l.z.Debug(), msg, args) }
func (l *ZerologLogger) Info(msg string, args ...any) { l.emit(l.z.Info(), msg, args) }
func (l *ZerologLogger) Warn(msg string, args ...any) { l.emit(l.z.Warn(), msg, args) }
func (l *ZerologLogger) Error(msg string, args ...any) { l.emit(l.z.Error(), msg, args) }

func (l *ZerologLogger) With(args ...any) Logger {
	ctx := l.z.With()
	forEachPair(args, func(key string, v any) {
		ctx = ctx.Interface(l.key(key), v)
	})
	return &ZerologLogger{z: ctx.Logger(), group: l.group}
}

func (l *ZerologLogger) WithGroup(name string) Logger {
	if name == "" {
		return l
	}
	return &ZerologLogger{z: l.z, group: l.key(name)}
}

func (l *ZerologLogger) emit(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	forEachPair(args, func(key string, v any) {
		e.Interface(l.key(key), v)
	})
	e.Msg(msg)
}

func (l *ZerologLogger) key(k string) string {
	if l.group == "" {
		return k
	}
	return l.group + "." + k
}

// forEachPair walks slog-style key/value arguments. slog.Attr values are
// accepted in place of a pair; a dangling key is logged under "!BADKEY".
func forEachPair(args []any, fn func(key string, v any)) {
	for i := 0; i < len(args); i++ {
		switch a := args[i].(type) {
		case slog.Attr:
			fn(a.Key, a.Value.Any())
		case string:
			if i+1 >= len(args) {
				fn("!BADKEY", a)
				return
			}
			fn(a, args[i+1])
			i++
		default:
			fn("!BADKEY", fmt.Sprint(a))
		}
	}
}
