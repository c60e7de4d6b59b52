package exchange

import (
	"sort"
	"sync"
)

// OrderStore keeps the orders an adapter created so it can answer status,
// cancel and history queries. Nothing here is persisted.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]TradeOrder
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]TradeOrder)}
}

func (s *OrderStore) Put(order TradeOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
}

func (s *OrderStore) Get(id string) (TradeOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	return order, ok
}

// Cancel moves a pending order to cancelled. allow is consulted only for
// orders that could be cancelled, so venues can simulate rejections.
func (s *OrderStore) Cancel(id string, allow func() bool) (TradeOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return TradeOrder{}, ErrOrderNotFound
	}
	if order.Status != StatusPending {
		return order, ErrOrderNotCancellable
	}
	if allow != nil && !allow() {
		return order, ErrOrderNotCancellable
	}

	order.Status = StatusCancelled
	s.orders[id] = order
	return order, nil
}

// Filled returns filled orders, newest first, optionally restricted to one
// symbol. A non-positive limit returns everything.
func (s *OrderStore) Filled(symbol string, limit int) []TradeOrder {
	s.mu.RLock()
	out := make([]TradeOrder, 0, len(s.orders))
	for _, o := range s.orders {
		if o.Status != StatusFilled {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		out = append(out, o)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
