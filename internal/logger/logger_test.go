package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"kuberafi/internal/config"
)

func TestNewLevels(t *testing.T) {
	cases := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"nonsense", zapcore.InfoLevel},
	}
	for _, tc := range cases {
		l, err := New(config.LogConfig{Level: tc.level, Encoding: "json"})
		if err != nil {
			t.Fatalf("level %s: %v", tc.level, err)
		}
		if !l.Core().Enabled(tc.want) {
			t.Fatalf("level %s: %s not enabled", tc.level, tc.want)
		}
		if tc.want > zapcore.DebugLevel && l.Core().Enabled(tc.want-1) {
			t.Fatalf("level %s: %s should be disabled", tc.level, tc.want-1)
		}
	}
}

func TestNewUnknownEncodingFallsBackToJSON(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "info", Encoding: "xml"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
