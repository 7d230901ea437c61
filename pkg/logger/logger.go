// Package logger builds the logrus setup shared by the server and client
// binaries: a formatter that keeps the colored "[LEVEL]" bracket style of
// the original console logger, riding on logrus's structured core so
// per-connection correlation ids can ride along as fields.
package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ANSI color codes, same palette the original console logger used.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorWhite  = "\033[37m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// ConnectionIDField is the structured-log key a Connection's correlation id
// is attached under.
const ConnectionIDField = "conn"

// BracketFormatter renders `[15:04:05] [LEVEL] message key=value ...` with
// the level bracket colored per severity, preserving the original logger's
// visual shape on top of logrus's structured Entry.
type BracketFormatter struct {
	TimeFormat string
}

// NewFormatter returns a BracketFormatter using the original default time
// format.
func NewFormatter() *BracketFormatter {
	return &BracketFormatter{TimeFormat: "15:04:05"}
}

func (f *BracketFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	color, label := levelStyle(entry.Level)
	timeFormat := f.TimeFormat
	if timeFormat == "" {
		timeFormat = "15:04:05"
	}

	line := fmt.Sprintf("%s[%s]%s %s[%s]%s %s",
		colorGray, entry.Time.Format(timeFormat), colorReset,
		color, label, colorReset,
		entry.Message,
	)
	for k, v := range entry.Data {
		line += fmt.Sprintf(" %s=%v", k, v)
	}
	line += "\n"
	return []byte(line), nil
}

func levelStyle(level logrus.Level) (color, label string) {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return colorGray, "DEBUG"
	case logrus.InfoLevel:
		return colorWhite, "INFO"
	case logrus.WarnLevel:
		return colorYellow, "WARN"
	case logrus.ErrorLevel:
		return colorRed, "ERROR"
	case logrus.FatalLevel, logrus.PanicLevel:
		return colorRed, "FATAL"
	default:
		return colorReset, "INFO"
	}
}

// New returns a root logger configured with BracketFormatter at level.
func New(level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(NewFormatter())
	l.SetLevel(level)
	return l
}

// Section logs a cyan-bracketed divider line, standing in for the original
// logger's boxed section headers.
func Section(log *logrus.Logger, title string) {
	log.Infof("%s=== %s ===%s", colorCyan, title, colorReset)
}
