package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/splax/installer/internal/domain"
	"github.com/splax/installer/internal/ws"
)

type captureSubscriber struct {
	mu      sync.Mutex
	notices []domain.Notice
	err     error
	panics  bool
}

func (c *captureSubscriber) Name() string { return "capture" }

func (c *captureSubscriber) Handle(_ context.Context, n domain.Notice) error {
	if c.panics {
		panic("boom")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, n)
	return c.err
}

func (c *captureSubscriber) received() []domain.Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Notice(nil), c.notices...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherStampsAndRedacts(t *testing.T) {
	sub := &captureSubscriber{}
	d := NewDispatcher(quietLogger(), sub)

	d.Notify(context.Background(), domain.Notice{
		Kind: domain.NoticeEnvironmentSaved,
		Mode: domain.ModeWizard,
		Input: map[string]string{
			"app_name":          "Shop",
			"database_password": "hunter2",
			"purchase_code":     "abcdefgh-1234-1234-1234-123456789012",
		},
	})
	d.Wait()

	got := sub.received()
	if len(got) != 1 {
		t.Fatalf("expected one notice, got %d", len(got))
	}
	n := got[0]
	if n.ID == "" || n.OccurredAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", n)
	}
	if n.Input["app_name"] != "Shop" {
		t.Fatalf("expected plain field kept, got %q", n.Input["app_name"])
	}
	if n.Input["database_password"] == "hunter2" || n.Input["purchase_code"] == "abcdefgh-1234-1234-1234-123456789012" {
		t.Fatalf("expected secrets masked, got %+v", n.Input)
	}
}

func TestDispatcherSurvivesFailingSubscribers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	failing := &captureSubscriber{err: errors.New("down")}
	panicking := &captureSubscriber{panics: true}
	healthy := &captureSubscriber{}
	d := NewDispatcher(logger, failing, panicking, healthy)

	d.Notify(context.Background(), domain.Notice{Kind: domain.NoticeEnvironmentSaved})
	d.Wait()

	if len(healthy.received()) != 1 {
		t.Fatal("healthy subscriber missed notice")
	}
	out := buf.String()
	if !strings.Contains(out, "notice delivery failed") || !strings.Contains(out, "notice subscriber panicked") {
		t.Fatalf("expected failures logged, got %s", out)
	}
}

func TestDispatcherIgnoresCallerCancellation(t *testing.T) {
	sub := &captureSubscriber{}
	d := NewDispatcher(quietLogger(), sub)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.Notify(ctx, domain.Notice{Kind: domain.NoticeInstallationCompleted})
	d.Wait()
	if len(sub.received()) != 1 {
		t.Fatal("expected delivery despite cancelled request context")
	}
}

func TestRedisPublisherPublishesJSON(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	pub, err := NewRedisPublisher(ctx, srv.Addr(), "", 0, "installer:notices")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer pub.Close()

	watcher, err := NewRedisPublisher(ctx, srv.Addr(), "", 0, "installer:notices")
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()
	ps := watcher.client.Subscribe(ctx, "installer:notices")
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	d := NewDispatcher(quietLogger(), pub)
	d.Notify(ctx, domain.Notice{
		Kind:  domain.NoticeEnvironmentSaved,
		Mode:  domain.ModeClassic,
		Input: map[string]string{"env_config": "DB_PASSWORD=secret"},
	})
	d.Wait()

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := ps.ReceiveMessage(recvCtx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	var n domain.Notice
	if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n.Kind != domain.NoticeEnvironmentSaved || n.Mode != domain.ModeClassic {
		t.Fatalf("unexpected notice %+v", n)
	}
	if strings.Contains(msg.Payload, "secret") {
		t.Fatalf("expected env content redacted, got %s", msg.Payload)
	}
}

func TestNewRedisPublisherFailsWhenUnreachable(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	addr := srv.Addr()
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisPublisher(ctx, addr, "", 0, "installer:notices"); err == nil {
		t.Fatal("expected ping failure")
	}
}

type chanClient struct {
	payloads chan []byte
}

func (c *chanClient) Send(p []byte) error {
	c.payloads <- p
	return nil
}

func (c *chanClient) Close() {}

func TestHubSinkBroadcasts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := ws.NewHub(ctx)
	client := &chanClient{payloads: make(chan []byte, 1)}
	hub.Register(client)

	d := NewDispatcher(quietLogger(), NewHubSink(hub))
	d.Notify(ctx, domain.Notice{Kind: domain.NoticeInstallationCompleted})
	d.Wait()

	select {
	case p := <-client.payloads:
		if !strings.Contains(string(p), `"installation_completed"`) {
			t.Fatalf("unexpected payload %s", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client did not receive notice")
	}
}

func TestHubSinkReportsStoppedHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := ws.NewHub(ctx)
	cancel()
	<-hub.Done()

	if err := NewHubSink(hub).Handle(context.Background(), domain.Notice{}); !errors.Is(err, ws.ErrStopped) {
		t.Fatalf("expected stopped hub error, got %v", err)
	}
}
