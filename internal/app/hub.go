package app

import (
	"sync"

	"quiz-leaderboard-service/internal/domain"
)

// hub fans leaderboard snapshots out to live subscribers.
type hub struct {
	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func newHub() *hub {
	return &hub{subscribers: make(map[chan domain.Leaderboard]struct{})}
}

func (h *hub) subscribe(initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *hub) broadcast(lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- lb:
		default:
			// Full buffer: drop the oldest snapshot so a slow reader never blocks writers.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
