package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"hawkmon/internal/metrics"
	"hawkmon/internal/models"
)

// Notifier delivers an announcement. It is best-effort: failures are the
// notifier's to log and never reach the engine.
type Notifier interface {
	Notify(ctx context.Context, subject, body string)
}

type Recorder interface {
	InsertAlertEvent(ctx context.Context, ev models.AlertEvent) error
}

type Event struct {
	ID         string
	Key        Key
	Transition Transition
	Value      float64
	Threshold  float64
	Subject    string
	Body       string
	TS         time.Time
}

// Status is the published, read-only view of one registry entry.
type Status struct {
	Key                 Key       `json:"key"`
	Type                string    `json:"type"`
	State               string    `json:"state"`
	ConsecutiveBreaches int       `json:"consecutive_breaches"`
	LastValue           float64   `json:"last_value"`
	Threshold           float64   `json:"threshold"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type Engine struct {
	registry *Registry
	notify   Notifier
	rec      Recorder
	log      *slog.Logger
	now      func() time.Time

	cfgMu      sync.RWMutex
	thresholds Thresholds

	// written only by the pass; copied into status for readers
	lastValue map[Key]float64
	lastAt    map[Key]time.Time

	statusMu sync.RWMutex
	status   []Status
	lastPass time.Time
}

func NewEngine(th Thresholds, notify Notifier, rec Recorder, logger *slog.Logger) *Engine {
	return &Engine{
		registry:   NewRegistry(),
		notify:     notify,
		rec:        rec,
		log:        logger,
		now:        time.Now,
		thresholds: th,
		lastValue:  map[Key]float64{},
		lastAt:     map[Key]time.Time{},
	}
}

// SetThresholds replaces the per-type configuration used from the next pass.
func (e *Engine) SetThresholds(th Thresholds) {
	e.cfgMu.Lock()
	e.thresholds = th
	e.cfgMu.Unlock()
}

func (e *Engine) currentThresholds() Thresholds {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.thresholds
}

// Evaluate runs one pass over snap and returns the transitions it produced.
// Callers must not run two passes concurrently.
func (e *Engine) Evaluate(ctx context.Context, snap models.Snapshot) []Event {
	th := e.currentThresholds()
	ts := snap.TS
	if ts.IsZero() {
		ts = e.now().UTC()
	}
	var events []Event
	for _, r := range Readings(snap) {
		cfg, ok := th.lookup(r.Key.Type())
		if !ok {
			continue
		}
		ev, err := e.evalOne(ctx, r, cfg, ts)
		if err != nil {
			e.log.Error("evaluate metric", "key", r.Key, "err", err)
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}
	e.publish(th)
	return events
}

// evalOne commits the new record before announcing, so a failing announcement
// never rolls the transition back.
func (e *Engine) evalOne(ctx context.Context, r Reading, cfg MetricConfig, ts time.Time) (ev *Event, err error) {
	defer func() {
		if p := recover(); p != nil {
			metrics.EvaluationPanics.Inc()
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) || r.Value < 0 {
		return nil, fmt.Errorf("invalid value %v", r.Value)
	}

	rec := e.registry.GetOrCreate(r.Key)
	next, tr := Evaluate(r.Value, cfg, *rec)
	*rec = next
	e.lastValue[r.Key] = r.Value
	e.lastAt[r.Key] = ts

	metrics.MetricValue.WithLabelValues(string(r.Key)).Set(r.Value)
	state := 0.0
	if next.State == StateAlerting {
		state = 1
	}
	metrics.AlertState.WithLabelValues(string(r.Key)).Set(state)

	if tr == TransitionNone {
		return nil, nil
	}
	metrics.TransitionsTotal.WithLabelValues(string(r.Key.Type()), tr.String()).Inc()
	subject, body := Message(r, tr)
	ev = &Event{
		ID:         uuid.NewString(),
		Key:        r.Key,
		Transition: tr,
		Value:      r.Value,
		Threshold:  cfg.Threshold,
		Subject:    subject,
		Body:       body,
		TS:         ts,
	}
	e.announce(ctx, *ev)
	return ev, nil
}

func (e *Engine) announce(ctx context.Context, ev Event) {
	if ev.Transition == TransitionRaised {
		e.log.Warn("alert raised", "key", ev.Key, "value", ev.Value, "threshold", ev.Threshold)
	} else {
		e.log.Info("alert cleared", "key", ev.Key, "value", ev.Value, "threshold", ev.Threshold)
	}
	if e.rec != nil {
		err := e.rec.InsertAlertEvent(ctx, models.AlertEvent{
			ID:         ev.ID,
			MetricKey:  string(ev.Key),
			MetricType: string(ev.Key.Type()),
			Transition: ev.Transition.String(),
			Value:      ev.Value,
			Threshold:  ev.Threshold,
			Subject:    ev.Subject,
			Body:       ev.Body,
			TS:         ev.TS,
		})
		if err != nil {
			e.log.Error("record alert event", "key", ev.Key, "err", err)
		}
	}
	if e.notify != nil {
		e.notify.Notify(ctx, ev.Subject, ev.Body)
	}
}

func (e *Engine) publish(th Thresholds) {
	snap := e.registry.Snapshot()
	out := make([]Status, 0, len(snap))
	for _, kr := range snap {
		out = append(out, Status{
			Key:                 kr.Key,
			Type:                string(kr.Key.Type()),
			State:               kr.State.String(),
			ConsecutiveBreaches: kr.ConsecutiveBreaches,
			LastValue:           e.lastValue[kr.Key],
			Threshold:           th[kr.Key.Type()].Threshold,
			UpdatedAt:           e.lastAt[kr.Key],
		})
	}
	e.statusMu.Lock()
	e.status = out
	e.lastPass = e.now()
	e.statusMu.Unlock()
}

// Statuses returns the registry as of the last completed pass.
func (e *Engine) Statuses() []Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	out := make([]Status, len(e.status))
	copy(out, e.status)
	return out
}

func (e *Engine) LastPass() time.Time {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.lastPass
}

// Readings derives the evaluated scalars from snap: percentages for
// cpu/memory/disk/containers, the larger of sent and received MB for
// network interfaces.
func Readings(snap models.Snapshot) []Reading {
	out := make([]Reading, 0, 2+len(snap.Disks)+len(snap.Networks)+2*len(snap.Containers))
	for _, d := range snap.Disks {
		if d.SizeBytes == 0 {
			continue
		}
		out = append(out, Reading{
			Key:        InstanceKey(TypeDisk, d.FS),
			Value:      float64(d.UsedBytes) / float64(d.SizeBytes) * 100,
			UsedBytes:  d.UsedBytes,
			TotalBytes: d.SizeBytes,
		})
	}
	for _, n := range snap.Networks {
		out = append(out, Reading{
			Key:   InstanceKey(TypeNetwork, n.Interface),
			Value: math.Max(float64(n.TXBytes), float64(n.RXBytes)) / mb,
		})
	}
	for _, c := range snap.Containers {
		out = append(out, Reading{Key: InstanceKey(TypeContainerCPU, c.Name), Value: c.CPUPct})
		if c.MemLimitBytes > 0 {
			out = append(out, Reading{
				Key:        InstanceKey(TypeContainerMemory, c.Name),
				Value:      float64(c.MemUsedBytes) / float64(c.MemLimitBytes) * 100,
				UsedBytes:  c.MemUsedBytes,
				TotalBytes: c.MemLimitBytes,
			})
		}
	}
	if snap.CPUPct != nil {
		out = append(out, Reading{Key: FixedKey(TypeCPU), Value: *snap.CPUPct})
	}
	if m := snap.Memory; m != nil && m.TotalBytes > 0 {
		out = append(out, Reading{
			Key:        FixedKey(TypeMemory),
			Value:      float64(m.UsedBytes) / float64(m.TotalBytes) * 100,
			UsedBytes:  m.UsedBytes,
			TotalBytes: m.TotalBytes,
		})
	}
	return out
}
