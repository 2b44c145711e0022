// Package watch runs the server-side evaluation loop: on every tick it pulls
// the current session set from the store, asks the alert engine what is due,
// drops already-delivered alerts and pushes the rest to connected observers.
package watch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Carlos-paez/formaciones/internal/alert"
	"github.com/Carlos-paez/formaciones/internal/config"
	"github.com/Carlos-paez/formaciones/internal/event"
	"github.com/Carlos-paez/formaciones/internal/store"
)

// Broadcaster receives the watcher's output. Implemented by ws.Broadcaster.
type Broadcaster interface {
	BroadcastAlerts(alerts []alert.Alert)
	BroadcastSnapshot(views []event.View)
}

// Health is the payload served by the health endpoint.
type Health struct {
	Status              HealthStatus `json:"status"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	LastError           string       `json:"lastError,omitempty"`
	EventCount          int          `json:"eventCount"`
	Process             ProcessStats `json:"process"`
}

type Watcher struct {
	cfg    *config.Config
	store  *store.Store
	engine *alert.Engine
	dedup  *alert.Dedup
	sink   Broadcaster
	log    *zap.Logger
	health *storeHealth
	now    func() time.Time
}

func New(cfg *config.Config, st *store.Store, engine *alert.Engine, dedup *alert.Dedup, sink Broadcaster, log *zap.Logger) *Watcher {
	return &Watcher{
		cfg:    cfg,
		store:  st,
		engine: engine,
		dedup:  dedup,
		sink:   sink,
		log:    log,
		health: &storeHealth{},
		now:    time.Now,
	}
}

// Start runs the evaluation loop until ctx is cancelled. Alert checks and
// status snapshots run on independent cadences; a failed tick logs, counts
// against store health and falls through to the next scheduled tick — never
// a tight retry.
func (w *Watcher) Start(ctx context.Context) {
	alertTicker := time.NewTicker(w.cfg.Watch.PollInterval)
	defer alertTicker.Stop()
	snapshotTicker := time.NewTicker(w.cfg.Watch.SnapshotInterval)
	defer snapshotTicker.Stop()

	w.log.Info("watcher started",
		zap.Duration("poll_interval", w.cfg.Watch.PollInterval),
		zap.Duration("snapshot_interval", w.cfg.Watch.SnapshotInterval),
		zap.Ints("warning_offsets", w.engine.Offsets()),
	)

	w.tick()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("watcher stopped")
			return
		case <-alertTicker.C:
			w.tick()
		case <-snapshotTicker.C:
			w.broadcastSnapshot()
		}
	}
}

// tick evaluates one alert cycle against the current session set.
func (w *Watcher) tick() {
	sessions, ok := w.listSessions()
	if !ok {
		return
	}

	now := w.now()
	due := w.engine.Evaluate(event.At(now), sessions)
	fresh := w.dedup.Filter(due, now)
	if len(fresh) == 0 {
		return
	}

	for _, a := range fresh {
		w.log.Info("alert due",
			zap.String("kind", string(a.Kind)),
			zap.Int64("event_id", a.Session.ID),
			zap.Int("offset", a.Offset),
		)
	}
	w.sink.BroadcastAlerts(fresh)
}

func (w *Watcher) broadcastSnapshot() {
	sessions, ok := w.listSessions()
	if !ok {
		return
	}
	w.sink.BroadcastSnapshot(event.Views(sessions, event.At(w.now())))
}

// listSessions reads the session set within the store timeout, recording the
// outcome against store health.
func (w *Watcher) listSessions() ([]event.Session, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Watch.StoreTimeout)
	defer cancel()

	sessions, err := w.store.List(ctx)
	if err != nil {
		w.health.recordFailure(err)
		w.log.Warn("store list failed, skipping tick", zap.Error(err))
		return nil, false
	}
	w.health.recordSuccess()
	return sessions, true
}

// Health reports store health and process stats for the health endpoint.
func (w *Watcher) Health(ctx context.Context) Health {
	status, failures, lastErr := w.health.snapshot(w.cfg.Watch.FailureThreshold)
	h := Health{
		Status:              status,
		ConsecutiveFailures: failures,
		LastError:           lastErr,
		Process:             readProcessStats(),
	}
	if n, err := w.store.Count(ctx); err == nil {
		h.EventCount = n
	}
	return h
}
