package client

import (
	"sync"
	"time"
)

// HistoryEntry is one remembered message line.
type HistoryEntry struct {
	When time.Time
	Line string
}

// historyRing keeps the last cap entries, overwriting the oldest.
type historyRing struct {
	mu      sync.Mutex
	entries []HistoryEntry
	next    int
	full    bool
}

func newHistoryRing(capacity int) *historyRing {
	if capacity < 1 {
		capacity = 1
	}
	return &historyRing{entries: make([]HistoryEntry, capacity)}
}

// Add records one line, evicting the oldest when full.
func (h *historyRing) Add(when time.Time, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.next] = HistoryEntry{When: when, Line: line}
	h.next++
	if h.next == len(h.entries) {
		h.next = 0
		h.full = true
	}
}

// Recent returns up to n entries, newest first.
func (h *historyRing) Recent(n int) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := h.next
	if h.full {
		size = len(h.entries)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]HistoryEntry, 0, n)
	for i := 0; i < n; i++ {
		idx := h.next - 1 - i
		if idx < 0 {
			idx += len(h.entries)
		}
		out = append(out, h.entries[idx])
	}
	return out
}

// Len reports the number of stored entries.
func (h *historyRing) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return len(h.entries)
	}
	return h.next
}
