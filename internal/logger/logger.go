package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Fields are structured key/value pairs attached to a log line.
type Fields = logrus.Fields

var (
	base = newBase()

	outputMu   sync.Mutex
	outputFile *os.File
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&textFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

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

func (l Level) toLogrus() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		base.SetLevel(LevelDebug.toLogrus())
	case "INFO":
		base.SetLevel(LevelInfo.toLogrus())
	case "WARN":
		base.SetLevel(LevelWarn.toLogrus())
	case "ERROR":
		base.SetLevel(LevelError.toLogrus())
	}
}

// IsDebugEnabled reports whether DEBUG lines are emitted.
func IsDebugEnabled() bool {
	return base.IsLevelEnabled(logrus.DebugLevel)
}

// SetFormat selects "text" (default) or "json" output.
func SetFormat(format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		base.SetFormatter(&textFormatter{})
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg: "message",
			},
		})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// SetOutput selects "stdout", "stderr" or a file path (appended to).
func SetOutput(output string) error {
	var (
		w    io.Writer
		file *os.File
	)

	switch strings.ToLower(output) {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		w, file = f, f
	}

	outputMu.Lock()
	defer outputMu.Unlock()

	base.SetOutput(w)
	if outputFile != nil {
		_ = outputFile.Close()
	}
	outputFile = file
	return nil
}

// SetWriter redirects output to w (tests).
func SetWriter(w io.Writer) {
	base.SetOutput(w)
}

func Debug(format string, v ...any) {
	base.Debugf(format, v...)
}

func Info(format string, v ...any) {
	base.Infof(format, v...)
}

func Warn(format string, v ...any) {
	base.Warnf(format, v...)
}

func Error(format string, v ...any) {
	base.Errorf(format, v...)
}

// Entry is a logger carrying structured fields.
type Entry struct {
	e *logrus.Entry
}

// WithFields returns an Entry that attaches fields to every line.
func WithFields(fields Fields) *Entry {
	return &Entry{e: base.WithFields(fields)}
}

func (e *Entry) Debug(format string, v ...any) { e.e.Debugf(format, v...) }
func (e *Entry) Info(format string, v ...any)  { e.e.Infof(format, v...) }
func (e *Entry) Warn(format string, v ...any)  { e.e.Warnf(format, v...) }
func (e *Entry) Error(format string, v ...any) { e.e.Errorf(format, v...) }

// textFormatter renders "[timestamp] [LEVEL] message key=value ...".
type textFormatter struct{}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	fmt.Fprintf(&b, "[%s] [%s] %s",
		entry.Time.Format("2006-01-02 15:04:05"),
		levelName(entry.Level),
		entry.Message,
	)

	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
		}
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func levelName(l logrus.Level) string {
	switch l {
	case logrus.DebugLevel, logrus.TraceLevel:
		return LevelDebug.String()
	case logrus.InfoLevel:
		return LevelInfo.String()
	case logrus.WarnLevel:
		return LevelWarn.String()
	default:
		return LevelError.String()
	}
}
