package logger

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestBracketFormatterIncludesLevelAndMessage(t *testing.T) {
	f := NewFormatter()
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Level:   logrus.WarnLevel,
		Message: "connection timed out",
		Data:    logrus.Fields{"addr": "127.0.0.1:9000"},
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	line := string(out)
	if !strings.Contains(line, "[WARN]") {
		t.Errorf("line %q missing WARN bracket", line)
	}
	if !strings.Contains(line, "connection timed out") {
		t.Errorf("line %q missing message", line)
	}
	if !strings.Contains(line, "addr=127.0.0.1:9000") {
		t.Errorf("line %q missing field", line)
	}
}

func TestNewSetsFormatterAndLevel(t *testing.T) {
	l := New(logrus.DebugLevel)
	if _, ok := l.Formatter.(*BracketFormatter); !ok {
		t.Errorf("expected *BracketFormatter, got %T", l.Formatter)
	}
	if l.Level != logrus.DebugLevel {
		t.Errorf("level = %v, want Debug", l.Level)
	}
}
