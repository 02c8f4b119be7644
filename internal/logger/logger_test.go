package logger

import (
	"context"
	"testing"

	"github.com/subinesh21/codelens-ai/internal/config"
)

func TestNewSynchronous(t *testing.T) {
	l, closer := New(config.Logging{Level: "debug", Service: "codelens-test"})
	defer closer.Close()

	if l == nil {
		t.Fatal("expected a logger")
	}
}

func TestNewAsyncCloseIsClean(t *testing.T) {
	l, closer := New(config.Logging{Level: "info", Service: "codelens-test", Async: true, Buffer: 16})
	if l == nil {
		t.Fatal("expected a logger")
	}
	l.Info("shutting down")
	closer.Close()
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
		{"verbose", "INFO"},
	}
	for _, c := range cases {
		if got := parseLevel(c.in).String(); got != c.want {
			t.Errorf("parseLevel(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := RequestID(ctx); got != "" {
		t.Fatalf("expected empty ID on a bare context, got %q", got)
	}

	ctx = WithRequestID(ctx, "abc123")
	if got := RequestID(ctx); got != "abc123" {
		t.Fatalf("expected abc123, got %q", got)
	}
}
