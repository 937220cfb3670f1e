package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	l, err := New("debug", false)
	if err != nil {
		t.Fatalf("New(debug) error: %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level not enabled")
	}

	l, err = New("", true)
	if err != nil {
		t.Fatalf("New(\"\") error: %v", err)
	}
	if l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("default level should be info")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("chatty", false); err == nil {
		t.Error("New(chatty) returned nil error")
	}
}
