package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(Options{Level: "debug", Output: &buf}))
	ctx = With(ctx, "request_id", "abc", "attempt", 2)

	FromContext(ctx).Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["request_id"] != "abc" {
		t.Errorf("request_id = %v, want abc", entry["request_id"])
	}
	if entry["attempt"] != float64(2) {
		t.Errorf("attempt = %v, want 2", entry["attempt"])
	}
	if entry["message"] != "hello" {
		t.Errorf("message = %v, want hello", entry["message"])
	}
	if entry["app"] != "unmark" {
		t.Errorf("app = %v, want unmark", entry["app"])
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(Options{Level: "warn", Output: &buf}))

	FromContext(ctx).Debug().Msg("hidden")
	FromContext(ctx).Info().Msg("hidden too")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %q", buf.String())
	}

	FromContext(ctx).Warn().Msg("shown")
	if buf.Len() == 0 {
		t.Error("expected warn output")
	}
}

func TestFromContextNil(t *testing.T) {
	if FromContext(nil) == nil {
		t.Fatal("FromContext(nil) returned nil")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{"WARN", "warn"},
		{"error", "error"},
		{"", "info"},
		{"bogus", "info"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in).String(); got != tt.want {
				t.Errorf("parseLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
