package app

import (
	"sync"

	"prepcuet/internal/domain"
)

// ReleaseHub fans result releases out to live subscribers, keyed by user.
type ReleaseHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.ResultRelease]struct{}
}

func NewReleaseHub() *ReleaseHub {
	return &ReleaseHub{subscribers: make(map[string]map[chan domain.ResultRelease]struct{})}
}

// Subscribe returns a channel of releases for userID.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *ReleaseHub) Subscribe(userID string) (<-chan domain.ResultRelease, func()) {
	ch := make(chan domain.ResultRelease, 8)

	h.mu.Lock()
	subs, ok := h.subscribers[userID]
	if !ok {
		subs = make(map[chan domain.ResultRelease]struct{})
		h.subscribers[userID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.subscribers[userID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, userID)
		}
	}
	return ch, cancel
}

// Publish delivers ev to the owner's subscribers without blocking.
func (h *ReleaseHub) Publish(ev domain.ResultRelease) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[ev.UserID] {
		select {
		case ch <- ev:
		default:
			// slow client: drop its oldest release to make room
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Subscribers reports how many live feeds userID has open.
func (h *ReleaseHub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[userID])
}
