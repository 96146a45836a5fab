package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level, format string
		wantDebug     bool
	}{
		{level: "info", format: "json"},
		{level: "debug", format: "console", wantDebug: true},
		{level: "warn", format: ""},
	}

	for _, tt := range tests {
		log, err := New(tt.level, tt.format)
		if err != nil {
			t.Fatalf("New(%q, %q) failed: %v", tt.level, tt.format, err)
		}
		if got := log.Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
			t.Errorf("New(%q, %q): debug enabled = %v, want %v", tt.level, tt.format, got, tt.wantDebug)
		}
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New("loud", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
