package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository keeps audit entries in process.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Log appends an entry.
func (r *MemoryRepository) Log(_ context.Context, entry Entry) error {
	prepare(&entry)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// CountSince counts entries in the trailing window.
func (r *MemoryRepository) CountSince(_ context.Context, adminUser, action string, since time.Time) (int, time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	var oldest time.Time
	for _, e := range r.entries {
		if e.AdminUser != adminUser || e.Action != action || !e.Timestamp.After(since) {
			continue
		}
		count++
		if oldest.IsZero() || e.Timestamp.Before(oldest) {
			oldest = e.Timestamp
		}
	}
	return count, oldest, nil
}

// Entries returns a copy of every stored entry.
func (r *MemoryRepository) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
