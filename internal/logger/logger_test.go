package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := WithComponent(New(Options{Level: "info", Format: "json", App: "omnicare", Out: &buf}), "billing")
	l.Debug().Msg("hidden")
	l.Info().Str("clinic_id", "c1").Msg("sweep")

	var ev map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &ev); err != nil {
		t.Fatalf("expected exactly one json line, got %q: %v", buf.String(), err)
	}
	if ev["app"] != "omnicare" || ev["component"] != "billing" || ev["message"] != "sweep" {
		t.Fatalf("unexpected event: %v", ev)
	}
}
