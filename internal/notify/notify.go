package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/splax/installer/internal/domain"
)

const deliveryTimeout = 5 * time.Second

// Notifier emits fire-and-forget installer notices.
type Notifier interface {
	Notify(ctx context.Context, notice domain.Notice)
}

// Subscriber receives redacted notices from a Dispatcher.
type Subscriber interface {
	Name() string
	Handle(ctx context.Context, notice domain.Notice) error
}

// Dispatcher fans notices out to its subscribers, each on its own goroutine.
type Dispatcher struct {
	subscribers []Subscriber
	logger      *slog.Logger
	wg          sync.WaitGroup
	now         func() time.Time
}

// NewDispatcher returns a Dispatcher delivering to subs.
func NewDispatcher(logger *slog.Logger, subs ...Subscriber) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{subscribers: subs, logger: logger, now: time.Now}
}

// Notify stamps the notice, masks secrets and hands it to every subscriber.
// It never blocks on delivery and never reports delivery failures to the caller.
func (d *Dispatcher) Notify(ctx context.Context, notice domain.Notice) {
	if notice.ID == "" {
		notice.ID = uuid.NewString()
	}
	if notice.OccurredAt.IsZero() {
		notice.OccurredAt = d.now().UTC()
	}
	notice = notice.Redacted()
	base := context.WithoutCancel(ctx)
	for _, sub := range d.subscribers {
		d.wg.Add(1)
		go d.deliver(base, sub, notice)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sub Subscriber, notice domain.Notice) {
	defer d.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("notice subscriber panicked", "subscriber", sub.Name(), "kind", notice.Kind, "panic", fmt.Sprint(rec))
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	if err := sub.Handle(ctx, notice); err != nil {
		d.logger.Warn("notice delivery failed", "subscriber", sub.Name(), "kind", notice.Kind, "notice_id", notice.ID, "error", err)
	}
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// LogSubscriber records notices in the structured log.
type LogSubscriber struct {
	logger *slog.Logger
}

// NewLogSubscriber returns a subscriber writing to logger.
func NewLogSubscriber(logger *slog.Logger) *LogSubscriber {
	return &LogSubscriber{logger: logger}
}

func (s *LogSubscriber) Name() string { return "log" }

func (s *LogSubscriber) Handle(_ context.Context, notice domain.Notice) error {
	s.logger.Info("installer notice", "notice_id", notice.ID, "kind", notice.Kind, "mode", notice.Mode, "fields", len(notice.Input))
	return nil
}
