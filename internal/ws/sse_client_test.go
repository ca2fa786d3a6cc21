package ws

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSSEClientFramesNotices(t *testing.T) {
	rec := httptest.NewRecorder()
	client := NewSSEClient(rec, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := client.Send([]byte(`{"kind":"environment_saved"}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := client.Heartbeat(); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: notice\ndata: {\"kind\":\"environment_saved\"}\n\n") {
		t.Fatalf("unexpected frame %q", body)
	}
	if !strings.HasSuffix(body, ": ping\n\n") {
		t.Fatalf("expected heartbeat comment, got %q", body)
	}

	client.Close()
	if err := client.Send([]byte("late")); err != io.EOF {
		t.Fatalf("expected EOF after close, got %v", err)
	}
}
