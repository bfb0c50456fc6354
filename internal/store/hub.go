package store

import (
	"sort"
	"sync"
)

// Loader reads the current matching document set for one subscription
type Loader func() ([]Document, error)

// Hub fans change notifications out to live queries.
//
// Each subscription re-runs its loader on notification and hands the full
// result to its callback. Deliveries for one subscription never overlap and
// notifications that arrive mid-delivery coalesce into one more run, so a
// callback may write to the store without deadlocking. Unsubscribe waits
// for an in-flight delivery and must not be called from inside that
// subscription's own callback.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]*subscription
}

type subscription struct {
	load    Loader
	onData  func([]Document)
	onError func(error)

	mu      sync.Mutex
	idle    *sync.Cond
	running bool
	pending bool
	closed  bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]*subscription)}
}

// Subscribe registers a live query on collection and delivers the first
// snapshot before returning.
func (h *Hub) Subscribe(collection string, load Loader, onData func([]Document), onError func(error)) Unsubscribe {
	s := &subscription{load: load, onData: onData, onError: onError}
	s.idle = sync.NewCond(&s.mu)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[uint64]*subscription)
	}
	h.subs[collection][id] = s
	h.mu.Unlock()

	s.notify()

	return Once(func() {
		h.mu.Lock()
		delete(h.subs[collection], id)
		if len(h.subs[collection]) == 0 {
			delete(h.subs, collection)
		}
		h.mu.Unlock()
		s.close()
	})
}

// Publish re-delivers every live query on collection
func (h *Hub) Publish(collection string) {
	for _, s := range h.snapshot(collection) {
		s.notify()
	}
}

// Collections lists collections with at least one live query
func (h *Hub) Collections() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.subs))
	for c := range h.subs {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of live queries on collection
func (h *Hub) Len(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection])
}

// Close releases every live query
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*subscription
	for _, subs := range h.subs {
		for _, s := range subs {
			all = append(all, s)
		}
	}
	h.subs = make(map[string]map[uint64]*subscription)
	h.mu.Unlock()

	for _, s := range all {
		s.close()
	}
}

func (h *Hub) snapshot(collection string) []*subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]uint64, 0, len(h.subs[collection]))
	for id := range h.subs[collection] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*subscription, 0, len(ids))
	for _, id := range ids {
		out = append(out, h.subs[collection][id])
	}
	return out
}

func (s *subscription) notify() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.running {
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	for {
		docs, err := s.load()
		if err != nil {
			if s.onError != nil {
				s.onError(err)
			}
		} else if s.onData != nil {
			s.onData(docs)
		}

		s.mu.Lock()
		if s.pending && !s.closed {
			s.pending = false
			s.mu.Unlock()
			continue
		}
		s.running = false
		s.pending = false
		s.idle.Broadcast()
		s.mu.Unlock()
		return
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	for s.running {
		s.idle.Wait()
	}
	s.mu.Unlock()
}
