package logx

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" info ", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in, zerolog.InfoLevel); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestZeroValueLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero value should report IsZero")
	}
	l.Info("must not panic", String("k", "v"))

	n := Nop()
	if n.IsZero() {
		t.Fatal("Nop logger is usable, not zero")
	}
	n.Error("discarded", Int("n", 1))
}

func TestWithDerivesNewLogger(t *testing.T) {
	t.Parallel()
	base := Nop()
	derived := base.With(String("component", "test"))
	if len(derived.fields) != 1 {
		t.Fatalf("derived fields = %d, want 1", len(derived.fields))
	}
	if len(base.fields) != 0 {
		t.Fatal("With mutated the receiver")
	}
	if same := base.With(); len(same.fields) != 0 {
		t.Fatal("With() without fields should be a no-op copy")
	}
}
