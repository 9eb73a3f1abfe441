package session

import (
	"sync"

	"github.com/ayusman/retarget/internal/animator"
)

// subscriberBuffer is the number of results queued per subscriber before
// new results are dropped for it.
const subscriberBuffer = 8

// hub fans solved results out to subscribers. Slow subscribers miss results
// rather than block the solve.
type hub struct {
	mu   sync.Mutex
	subs map[chan animator.Result]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan animator.Result]struct{})}
}

func (h *hub) subscribe() (<-chan animator.Result, func()) {
	ch := make(chan animator.Result, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

func (h *hub) publish(res animator.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- res:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
