package manager

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Start runs CheckHealth every health interval until ctx is done or
// Shutdown is called. Calling Start twice is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.loopCancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.loopCancel, m.loopDone = cancel, done

	go m.healthLoop(loopCtx, done)
	m.logger.Info("health monitor started", slog.Duration("interval", m.healthInterval))
}

func (m *Manager) healthLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckHealth(ctx)
		}
	}
}

func (m *Manager) stopHealthLoop() {
	m.loopMu.Lock()
	cancel, done := m.loopCancel, m.loopDone
	m.loopCancel, m.loopDone = nil, nil
	m.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// CheckHealth probes every registered exchange once with a small
// market-data request. A success refreshes the heartbeat and marks the
// exchange connected; a failure only marks it disconnected; it stays
// registered and keeps its active status.
func (m *Manager) CheckHealth(ctx context.Context) {
	m.mu.RLock()
	targets := make([]*instance, 0, len(m.instances))
	for _, t := range m.sortedTypesLocked() {
		targets = append(targets, m.instances[t])
	}
	m.mu.RUnlock()

	results := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, inst := range targets {
		wg.Add(1)
		go func(i int, inst *instance) {
			defer wg.Done()
			_, results[i] = inst.adapter.GetMarketData(ctx, []string{m.probeSymbol})
		}(i, inst)
	}
	wg.Wait()

	now := m.now()
	m.mu.Lock()
	for i, inst := range targets {
		// skip entries removed or replaced while probing
		if m.instances[inst.kind] != inst {
			continue
		}
		if err := results[i]; err != nil {
			if inst.connected {
				m.logger.Warn("health check failed",
					slog.String("exchange", string(inst.kind)),
					slog.Any("error", err))
			}
			inst.connected = false
			continue
		}
		if !inst.connected {
			m.logger.Info("exchange recovered", slog.String("exchange", string(inst.kind)))
		}
		inst.connected = true
		inst.lastHeartbeat = now
	}
	m.mu.Unlock()

	m.publish()
}
