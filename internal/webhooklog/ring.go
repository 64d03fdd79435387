package webhooklog

import (
	"sync"
	"time"
)

// Entry records one inbound webhook receipt for the diagnostics page.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	AgentName string                 `json:"agent_name,omitempty"`
	UserFound bool                   `json:"user_found"`
	Outcome   string                 `json:"outcome"`
	Payload   map[string]interface{} `json:"payload"`
}

// Ring keeps the most recent webhook receipts in a fixed-capacity buffer,
// dropping the oldest entry on overflow. It replaces the ambient slice the
// old server kept at module level: one Ring is owned by the app and handed to
// whoever needs it.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	start   int
	count   int
}

const DefaultCapacity = 50

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{entries: make([]Entry, capacity)}
}

func (r *Ring) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count < len(r.entries) {
		r.entries[(r.start+r.count)%len(r.entries)] = e
		r.count++
		return
	}
	// Full: overwrite the oldest slot.
	r.entries[r.start] = e
	r.start = (r.start + 1) % len(r.entries)
}

// Snapshot returns the stored entries newest first.
func (r *Ring) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, r.count)
	for i := r.count - 1; i >= 0; i-- {
		out = append(out, r.entries[(r.start+i)%len(r.entries)])
	}
	return out
}

func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = 0
	r.count = 0
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
