package manager

import (
	"sync"
	"time"

	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
)

type ExchangeStatus struct {
	Type          exchange.Type `json:"type"`
	Name          string        `json:"name"`
	Connected     bool          `json:"connected"`
	Active        bool          `json:"active"`
	LastHeartbeat time.Time     `json:"last_heartbeat"`
}

// Status is a point-in-time view of the registry.
type Status struct {
	Active    exchange.Type    `json:"active,omitempty"`
	Exchanges []ExchangeStatus `json:"exchanges"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Exchange returns the entry for t, false when t is not registered.
func (s Status) Exchange(t exchange.Type) (ExchangeStatus, bool) {
	for _, e := range s.Exchanges {
		if e.Type == t {
			return e, true
		}
	}
	return ExchangeStatus{}, false
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		Active:    m.active,
		Exchanges: make([]ExchangeStatus, 0, len(m.instances)),
		UpdatedAt: m.now(),
	}
	for _, t := range m.sortedTypesLocked() {
		inst := m.instances[t]
		st.Exchanges = append(st.Exchanges, ExchangeStatus{
			Type:          t,
			Name:          inst.adapter.Name(),
			Connected:     inst.connected,
			Active:        t == m.active,
			LastHeartbeat: inst.lastHeartbeat,
		})
	}
	return st
}

// Subscribe returns a channel that receives the current status right away
// and again after every change. Only the latest status is kept for slow
// readers. The channel is closed by unsubscribe or Shutdown.
func (m *Manager) Subscribe() (<-chan Status, func()) {
	ch, id := m.subs.add()
	m.subs.send(ch, m.Status())
	return ch, func() { m.subs.remove(id) }
}

func (m *Manager) publish() {
	m.subs.broadcast(m.Status())
}

type subscribers struct {
	mu     sync.Mutex
	nextID int
	chans  map[int]chan Status
	closed bool
}

func (s *subscribers) init() {
	s.chans = make(map[int]chan Status)
}

func (s *subscribers) add() (chan Status, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Status, 1)
	if s.closed {
		close(ch)
		return ch, -1
	}
	id := s.nextID
	s.nextID++
	s.chans[id] = ch
	return ch, id
}

func (s *subscribers) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.chans[id]; ok {
		delete(s.chans, id)
		close(ch)
	}
}

func (s *subscribers) send(ch chan Status, st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, c := range s.chans {
		if c == ch {
			replace(c, st)
			return
		}
	}
}

func (s *subscribers) broadcast(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.chans {
		replace(ch, st)
	}
}

func (s *subscribers) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.chans {
		delete(s.chans, id)
		close(ch)
	}
	s.closed = true
}

// replace drops a pending unread status so the newest one always fits.
// Callers hold s.mu, the only writer.
func replace(ch chan Status, st Status) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}
