package audit

import (
	"context"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-7")
	if got := RequestIDFromContext(ctx); got != "req-7" {
		t.Fatalf("request id round trip: %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("empty context should yield no id, got %q", got)
	}
	// Blank ids are not attached.
	ctx = WithRequestID(context.Background(), "   ")
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("blank id should not attach, got %q", got)
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected an error for a blank event name")
	}
	if err := LogEvent(context.Background(), "workspace.created", map[string]any{"workspace_id": "ws-1"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
}
