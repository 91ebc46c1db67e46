// Package log is a small leveled logger in the style the teacher family
// wires go-ethereum's log package: text records of level, message, and
// key/value pairs, colorized when writing to a terminal and rotated when
// writing to a file.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is a logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses the --log-level flag values: debug, info, warn, error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return 0, fmt.Errorf("log: unknown level %q", s)
	}
}

const (
	colorGray   = "\x1b[90m"
	colorBlue   = "\x1b[34m"
	colorYellow = "\x1b[33m"
	colorRed    = "\x1b[31m"
	colorReset  = "\x1b[0m"
)

func levelColor(l Level) string {
	switch l {
	case LevelDebug:
		return colorGray
	case LevelInfo:
		return colorBlue
	case LevelWarn:
		return colorYellow
	case LevelError:
		return colorRed
	default:
		return ""
	}
}

// Logger writes leveled, named log records to an io.Writer, colorizing
// level names when the underlying writer is a terminal.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	name    string
	level   Level
	colored bool
}

// New returns a Logger named name, writing records at level or above to w.
// If w is os.Stdout/os.Stderr attached to a terminal, output is wrapped with
// go-colorable and level names are colorized.
func New(name string, level Level, w io.Writer) *Logger {
	colored := false
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		w = colorable.NewColorable(f)
		colored = true
	}
	return &Logger{out: w, name: name, level: level, colored: colored}
}

// NewFileLogger returns a Logger that writes to a rotated log file at path
// (via lumberjack), never colorized.
func NewFileLogger(name string, level Level, path string) *Logger {
	return &Logger{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		},
		name:  name,
		level: level,
	}
}

// Discard returns a Logger that drops every record; useful for tests.
func Discard() *Logger {
	return &Logger{out: io.Discard, level: LevelError + 1}
}

// With returns a copy of l scoped to a different logger name, sharing the
// same writer and level.
func (l *Logger) With(name string) *Logger {
	return &Logger{out: l.out, name: name, level: l.level, colored: l.colored}
}

func (l *Logger) log(level Level, msg string, kv ...any) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	levelStr := level.String()
	if l.colored {
		levelStr = levelColor(level) + levelStr + colorReset
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s: %s", ts, levelStr, l.name, msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	b.WriteByte('\n')
	io.WriteString(l.out, b.String())
}

func (l *Logger) Debug(msg string, kv ...any) { l.log(LevelDebug, msg, kv...) }
func (l *Logger) Info(msg string, kv ...any) { l.log(LevelInfo, msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any) { l.log(LevelWarn, msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.log(LevelError, msg, kv...) }

// Default is the package-level logger used by code that does not have a
// Logger injected explicitly.
var Default = New("chaind", LevelInfo, os.Stdout)
