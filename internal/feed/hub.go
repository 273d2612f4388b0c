package feed

import "sync"

// Hub fans updates out to subscribers in publish order without dropping any.
// Publish blocks until every live subscriber has accepted the update or
// unsubscribed.
type Hub struct {
	pubMu sync.Mutex // serialises Publish so every subscriber sees one order

	mu     sync.Mutex
	subs   map[int]*hubSub
	next   int
	closed bool
}

type hubSub struct {
	ch   chan Update
	done chan struct{}
	once sync.Once
}

func (s *hubSub) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]*hubSub)}
}

// Publish delivers u to every subscriber.
func (h *Hub) Publish(u Update) {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	subs := make([]*hubSub, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- u:
		case <-s.done:
		}
	}
}

// Subscribe registers a subscriber. The channel is never closed; stop reading
// after calling the returned func.
func (h *Hub) Subscribe(bufSize int) (<-chan Update, func()) {
	s := &hubSub{
		ch:   make(chan Update, bufSize),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.stop()
		return s.ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = s
	h.mu.Unlock()

	return s.ch, func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		s.stop()
	}
}

// Close releases every subscriber and turns later publishes into no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, s := range h.subs {
		s.stop()
		delete(h.subs, id)
	}
}
