package triage

import "sync"

// AIHealth is the sticky availability flag for the drafting service. A 502
// from the draft endpoint marks it down; any successful draft marks it up.
// While down, new draft requests are refused locally without a network call.
type AIHealth struct {
	mu   sync.Mutex
	down bool
}

func NewAIHealth() *AIHealth {
	return &AIHealth{}
}

func (h *AIHealth) Available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.down
}

func (h *AIHealth) MarkDown() {
	h.mu.Lock()
	h.down = true
	h.mu.Unlock()
}

func (h *AIHealth) MarkUp() {
	h.mu.Lock()
	h.down = false
	h.mu.Unlock()
}
