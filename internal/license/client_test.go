package license

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cli, err := New(srv.URL+"/api/verify", WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cli, srv
}

func TestVerifySendsCodeAndURL(t *testing.T) {
	var got verifyRequest
	cli, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"SITE_KEY":"abc123"}`))
	})

	res := cli.Verify(context.Background(), "ABCD1234-ab12-cd34-ef56-1234567890ab", "https://shop.example.com")
	if !res.Success || res.SiteKey != "abc123" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got.PurchaseCode != "ABCD1234-ab12-cd34-ef56-1234567890ab" || got.URL != "https://shop.example.com" {
		t.Fatalf("unexpected request payload: %+v", got)
	}
}

func TestVerifyClassifiesResponses(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		success bool
		message string
		siteKey string
	}{
		{name: "server error message", status: http.StatusUnprocessableEntity, body: `{"error":"code already used"}`, message: "code already used"},
		{name: "failure without error field", status: http.StatusForbidden, body: `{"detail":"nope"}`, message: MessageRejected},
		{name: "failure with malformed body", status: http.StatusInternalServerError, body: `<html>oops`, message: MessageRejected},
		{name: "failure with empty body", status: http.StatusBadRequest, body: ``, message: MessageRejected},
		{name: "success with site key", status: http.StatusOK, body: `{"SITE_KEY":"abc123"}`, success: true, siteKey: "abc123"},
		{name: "success without site key", status: http.StatusOK, body: `{}`, success: true},
		{name: "success with malformed body", status: http.StatusOK, body: `not json`, success: true},
		{name: "created counts as success", status: http.StatusCreated, body: `{"SITE_KEY":"k"}`, success: true, siteKey: "k"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cli, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			res := cli.Verify(context.Background(), "ABCD1234-ab12-cd34-ef56-1234567890ab", "http://localhost")
			if res.Success != tc.success || res.Message != tc.message || res.SiteKey != tc.siteKey {
				t.Fatalf("unexpected result: %+v", res)
			}
		})
	}
}

func TestVerifyTransportFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cli, err := New("http://"+addr+"/api/verify", WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, code := range []string{"ABCD1234-ab12-cd34-ef56-1234567890ab", "", "anything"} {
		res := cli.Verify(context.Background(), code, "http://localhost")
		if res.Success || res.Message != MessageUnreachable {
			t.Fatalf("code %q: unexpected result %+v", code, res)
		}
	}
}

func TestVerifyTimeoutIsTransportFailure(t *testing.T) {
	release := make(chan struct{})
	cli, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	cli.httpClient.Timeout = 50 * time.Millisecond

	res := cli.Verify(context.Background(), "ABCD1234-ab12-cd34-ef56-1234567890ab", "http://localhost")
	if res.Success || res.Message != MessageUnreachable {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestVerifyHonoursCancellation(t *testing.T) {
	var hits atomic.Int32
	cli, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res := cli.Verify(ctx, "ABCD1234-ab12-cd34-ef56-1234567890ab", "http://localhost")
	if res.Success || res.Message != MessageUnreachable {
		t.Fatalf("unexpected result: %+v", res)
	}
	if hits.Load() > 1 {
		t.Fatalf("expected a single attempt, got %d", hits.Load())
	}
}

func TestNewRejectsInvalidEndpoint(t *testing.T) {
	if _, err := New("ftp://license.example.com"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
	cli, err := New("")
	if err != nil {
		t.Fatalf("New with default endpoint: %v", err)
	}
	if cli.Endpoint() != DefaultEndpoint {
		t.Fatalf("unexpected endpoint %q", cli.Endpoint())
	}
	if cli.httpClient.Timeout != defaultTimeout {
		t.Fatalf("unexpected timeout %v", cli.httpClient.Timeout)
	}
}

func TestNewLeavesCallerClientUntouched(t *testing.T) {
	shared := &http.Client{}
	cli, err := New("https://license.example.com/api/verify", WithHTTPClient(shared))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if shared.Timeout != 0 {
		t.Fatalf("caller client timeout changed to %v", shared.Timeout)
	}
	if cli.httpClient == shared || cli.httpClient.Timeout != defaultTimeout {
		t.Fatalf("expected a private client with default timeout, got %v", cli.httpClient.Timeout)
	}

	if _, err := New("https://license.example.com/api/verify", WithHTTPClient(shared), WithTimeout(3*time.Second)); err != nil {
		t.Fatalf("New: %v", err)
	}
	if shared.Timeout != 0 {
		t.Fatalf("WithTimeout changed caller client to %v", shared.Timeout)
	}
}
