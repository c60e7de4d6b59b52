// Package status keeps a read-side copy of the manager state for
// presentation code.
package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/HyperCogAI/hypercognition-sub001/internal/manager"
)

const DefaultPollInterval = 5 * time.Second

// Source is anything that can report manager status.
type Source interface {
	Status() manager.Status
}

// Publisher is a Source that also pushes changes.
type Publisher interface {
	Source
	Subscribe() (<-chan manager.Status, func())
}

type Tracker struct {
	src       Source
	interval  time.Duration
	logger    *slog.Logger
	forcePoll bool

	mu        sync.RWMutex
	latest    manager.Status
	listeners []func(manager.Status)
}

type Option func(*Tracker)

func WithPollInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithPolling ignores push support on the source.
func WithPolling() Option {
	return func(t *Tracker) { t.forcePoll = true }
}

func NewTracker(src Source, opts ...Option) *Tracker {
	t := &Tracker{
		src:      src,
		interval: DefaultPollInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.latest = src.Status()
	return t
}

// OnChange registers fn to be called with every new status. Listeners run
// on the Run goroutine and must not block.
func (t *Tracker) OnChange(fn func(manager.Status)) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

func (t *Tracker) Latest() manager.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest
}

// Run follows the source until ctx is done. Pushed updates are used when
// the source supports them; otherwise the source is polled. When a push
// subscription closes, Run falls back to polling.
func (t *Tracker) Run(ctx context.Context) error {
	if pub, ok := t.src.(Publisher); ok && !t.forcePoll {
		t.follow(ctx, pub)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.logger.Info("status subscription closed, polling instead")
	}
	return t.poll(ctx)
}

func (t *Tracker) follow(ctx context.Context, pub Publisher) {
	updates, unsubscribe := pub.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			t.update(st)
		}
	}
}

func (t *Tracker) poll(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.update(t.src.Status())
		}
	}
}

func (t *Tracker) update(st manager.Status) {
	t.mu.Lock()
	if !changed(t.latest, st) {
		t.latest.UpdatedAt = st.UpdatedAt
		t.mu.Unlock()
		return
	}
	t.latest = st
	listeners := append(([]func(manager.Status))(nil), t.listeners...)
	t.mu.Unlock()

	t.logger.Debug("status changed",
		slog.String("active", string(st.Active)),
		slog.Int("exchanges", len(st.Exchanges)))
	for _, fn := range listeners {
		fn(st)
	}
}

// changed ignores UpdatedAt, which moves on every read.
func changed(a, b manager.Status) bool {
	if a.Active != b.Active || len(a.Exchanges) != len(b.Exchanges) {
		return true
	}
	for i := range a.Exchanges {
		x, y := a.Exchanges[i], b.Exchanges[i]
		if x.Type != y.Type || x.Connected != y.Connected || x.Active != y.Active ||
			!x.LastHeartbeat.Equal(y.LastHeartbeat) {
			return true
		}
	}
	return false
}
