package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetup_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Info("listing assembled", slog.Int("visible", 10))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ログ出力がJSONでない: %v", err)
	}
	if entry["msg"] != "listing assembled" {
		t.Errorf("msg = %v, want %q", entry["msg"], "listing assembled")
	}
	if entry["visible"] != float64(10) {
		t.Errorf("visible = %v, want 10", entry["visible"])
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelWarn)

	l.Info("should be dropped")
	if buf.Len() != 0 {
		t.Errorf("Warnレベル設定時にInfoログが出力された: %s", buf.String())
	}

	l.Warn("should be written")
	if buf.Len() == 0 {
		t.Error("Warnログが出力されていない")
	}
}

func TestLevelFromEnv(t *testing.T) {
	cases := []struct {
		env  string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tc := range cases {
		t.Setenv("LOG_LEVEL", tc.env)
		if got := LevelFromEnv(); got != tc.want {
			t.Errorf("LOG_LEVEL=%q: LevelFromEnv = %v, want %v", tc.env, got, tc.want)
		}
	}
}
