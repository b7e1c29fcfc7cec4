package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Options configures the process-wide logger.
type Options struct {
	// Level is one of debug, info, warn, error (case-insensitive).
	Level string
	// Format is "console" (human readable, default) or "json".
	Format string
	// Writer defaults to stderr so stdout stays free for command output.
	Writer io.Writer
}

var (
	mu     sync.RWMutex
	logger *zerolog.Logger
)

// Init (re)configures the global logger. Safe to call more than once;
// the last call wins.
func Init(opt Options) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	if !strings.EqualFold(opt.Format, "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: opt.Writer != nil}
	}

	l := zerolog.New(w).Level(ParseLevel(opt.Level).zerolog()).With().Timestamp().Logger()

	mu.Lock()
	logger = &l
	mu.Unlock()
}

func get() *zerolog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(Options{})
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLevel changes the minimum level without touching writer or format.
func SetLevel(l Level) {
	cur := get().Level(l.zerolog())
	mu.Lock()
	logger = &cur
	mu.Unlock()
}

// ParseLevel maps a free-form level name to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func Debug(msg string, kv ...any) {
	emit(get().Debug(), msg, kv)
}

func Info(msg string, kv ...any) {
	emit(get().Info(), msg, kv)
}

// Warn logs a recoverable problem. err may be nil.
func Warn(msg string, err error, kv ...any) {
	e := get().Warn()
	if err != nil {
		e = e.Err(err)
	}
	emit(e, msg, kv)
}

func Error(msg string, err error, kv ...any) {
	emit(get().Error().Err(err), msg, kv)
}

func emit(e *zerolog.Event, msg string, kv []any) {
	if e == nil {
		return
	}
	if len(kv) > 0 {
		e = e.Fields(pairs(kv))
	}
	e.Msg(msg)
}

// pairs drops non-string keys and a trailing odd value, which zerolog
// would otherwise render as garbage fields.
func pairs(kv []any) []any {
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		if _, ok := kv[i].(string); !ok {
			continue
		}
		out = append(out, kv[i], kv[i+1])
	}
	return out
}
