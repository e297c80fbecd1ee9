package notifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hawkmon/internal/metrics"
	"hawkmon/internal/models"
)

const maxAttempts = 3

type Recorder interface {
	InsertNotificationEvent(ctx context.Context, ev models.NotificationEvent) error
}

// Dispatcher fans a message out to every enabled sender in the background.
// Delivery is best-effort: each sender gets a bounded number of attempts and
// the outcome is logged and recorded, never returned.
type Dispatcher struct {
	senders []Sender
	rec     Recorder
	log     *slog.Logger
	timeout time.Duration
	backoff time.Duration
	now     func() time.Time

	wg sync.WaitGroup
}

func NewDispatcher(senders []Sender, rec Recorder, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		senders: senders,
		rec:     rec,
		log:     logger,
		timeout: 30 * time.Second,
		backoff: 300 * time.Millisecond,
		now:     time.Now,
	}
}

// Notify returns immediately. The delivery context is detached from ctx so a
// pass finishing does not cancel in-flight sends.
func (d *Dispatcher) Notify(ctx context.Context, subject, body string) {
	for _, s := range d.senders {
		if !enabled(s) {
			continue
		}
		d.wg.Add(1)
		go func(s Sender) {
			defer d.wg.Done()
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
			defer cancel()
			d.deliver(sctx, s, subject, body)
		}(s)
	}
}

// SendTest delivers synchronously through every enabled sender and reports
// per-channel results. Channels that are not configured are absent.
func (d *Dispatcher) SendTest(ctx context.Context, subject, body string) map[string]error {
	out := map[string]error{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, s := range d.senders {
		if !enabled(s) {
			continue
		}
		wg.Add(1)
		go func(s Sender) {
			defer wg.Done()
			err := d.deliver(ctx, s, subject, body)
			mu.Lock()
			out[s.Name()] = err
			mu.Unlock()
		}(s)
	}
	wg.Wait()
	return out
}

// Wait blocks until every background delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, s Sender, subject, body string) error {
	attempts := 0
	var err error
	for attempts < maxAttempts {
		attempts++
		err = s.Send(ctx, subject, body)
		if err == nil {
			break
		}
		if attempts == maxAttempts || ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempts) * d.backoff):
		}
	}

	ev := models.NotificationEvent{Channel: s.Name(), Subject: subject, Attempts: attempts}
	if err == nil {
		now := d.now().UTC()
		ev.Status = "sent"
		ev.SentAt = &now
		d.log.Info("notification sent", "channel", s.Name(), "subject", subject, "attempts", attempts)
	} else {
		ev.Status = "failed"
		ev.LastErr = err.Error()
		d.log.Warn("notify failed", "channel", s.Name(), "subject", subject, "attempts", attempts, "err", err)
	}
	metrics.NotificationsTotal.WithLabelValues(s.Name(), ev.Status).Inc()
	if d.rec != nil {
		if rerr := d.rec.InsertNotificationEvent(context.WithoutCancel(ctx), ev); rerr != nil {
			d.log.Error("record notification event", "channel", s.Name(), "err", rerr)
		}
	}
	return err
}
