package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action is the administrative operation an entry records
type Action string

const (
	ActionApplied  Action = "applied"
	ActionRemoved  Action = "removed"
	ActionReverted Action = "reverted"
	ActionRejected Action = "rejected"
)

// Entry is one patch lifecycle record
type Entry struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	Owner       string        `json:"owner"`
	Method      string        `json:"method"`
	Action      Action        `json:"action"`
	Prefixes    int           `json:"prefixes"`
	Postfixes   int           `json:"postfixes"`
	Transpilers int           `json:"transpilers"`
	Finalizers  int           `json:"finalizers"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// Journal records patch lifecycle entries
type Journal interface {
	// Record records an entry, assigning an ID and timestamp when missing
	Record(ctx context.Context, entry *Entry) error

	// ByMethod retrieves all entries for a method key, oldest first
	ByMethod(ctx context.Context, method string) ([]*Entry, error)

	// ByOwner retrieves the most recent entries of an owner
	ByOwner(ctx context.Context, owner string, limit int) ([]*Entry, error)

	// Stats returns journal statistics
	Stats(ctx context.Context) (*Stats, error)

	// Clear removes entries older than the specified duration
	Clear(ctx context.Context, olderThan time.Duration) (int, error)
}

// Stats represents journal statistics
type Stats struct {
	TotalEntries    int64            `json:"totalEntries"`
	EntriesByAction map[Action]int64 `json:"entriesByAction"`
	EntriesByOwner  map[string]int64 `json:"entriesByOwner"`
	ErrorCount      int64            `json:"errorCount"`
	AverageDuration time.Duration    `json:"averageDuration"`
	LastEntry       time.Time        `json:"lastEntry"`
}

// InMemoryJournal provides an in-memory implementation of Journal
type InMemoryJournal struct {
	entries       []*Entry
	byMethod      map[string][]*Entry
	byOwner       map[string][]*Entry
	mu            sync.RWMutex
	maxEntries    int
	rotatePercent float64
}

// InMemoryJournalOption configures the in-memory journal
type InMemoryJournalOption func(*InMemoryJournal)

// WithMaxEntries sets the maximum number of entries
func WithMaxEntries(max int) InMemoryJournalOption {
	return func(j *InMemoryJournal) {
		if max > 0 {
			j.maxEntries = max
		}
	}
}

// WithRotatePercent sets the percentage of entries to remove when max is reached
func WithRotatePercent(percent float64) InMemoryJournalOption {
	return func(j *InMemoryJournal) {
		j.rotatePercent = percent
	}
}

// NewInMemoryJournal creates a new in-memory journal
func NewInMemoryJournal(opts ...InMemoryJournalOption) *InMemoryJournal {
	j := &InMemoryJournal{
		entries:       make([]*Entry, 0),
		byMethod:      make(map[string][]*Entry),
		byOwner:       make(map[string][]*Entry),
		maxEntries:    10000,
		rotatePercent: 0.2,
	}

	for _, opt := range opts {
		opt(j)
	}

	return j
}

// Record records an entry
func (j *InMemoryJournal) Record(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.entries) >= j.maxEntries {
		j.rotate()
	}

	j.entries = append(j.entries, entry)

	if entry.Method != "" {
		j.byMethod[entry.Method] = append(j.byMethod[entry.Method], entry)
	}

	if entry.Owner != "" {
		j.byOwner[entry.Owner] = append(j.byOwner[entry.Owner], entry)
	}

	return nil
}

// ByMethod retrieves all entries for a method
func (j *InMemoryJournal) ByMethod(ctx context.Context, method string) ([]*Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return copyEntries(j.byMethod[method]), nil
}

// ByOwner retrieves the most recent entries of an owner
func (j *InMemoryJournal) ByOwner(ctx context.Context, owner string, limit int) ([]*Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	entries := j.byOwner[owner]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	return copyEntries(entries), nil
}

// Stats returns journal statistics
func (j *InMemoryJournal) Stats(ctx context.Context) (*Stats, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	stats := &Stats{
		TotalEntries:    int64(len(j.entries)),
		EntriesByAction: make(map[Action]int64),
		EntriesByOwner:  make(map[string]int64),
	}

	var totalDuration time.Duration
	var lastEntry time.Time

	for _, entry := range j.entries {
		stats.EntriesByAction[entry.Action]++
		stats.EntriesByOwner[entry.Owner]++

		if entry.Error != "" {
			stats.ErrorCount++
		}

		totalDuration += entry.Duration

		if entry.Timestamp.After(lastEntry) {
			lastEntry = entry.Timestamp
		}
	}

	if len(j.entries) > 0 {
		stats.AverageDuration = totalDuration / time.Duration(len(j.entries))
		stats.LastEntry = lastEntry
	}

	return stats, nil
}

// Clear removes entries older than the specified duration
func (j *InMemoryJournal) Clear(ctx context.Context, olderThan time.Duration) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	removed := 0

	kept := make([]*Entry, 0, len(j.entries))
	for _, entry := range j.entries {
		if entry.Timestamp.After(cutoff) {
			kept = append(kept, entry)
		} else {
			removed++
		}
	}

	j.entries = kept
	j.rebuildIndexes()

	return removed, nil
}

// rotate removes oldest entries when max is reached
func (j *InMemoryJournal) rotate() {
	removeCount := int(float64(j.maxEntries) * j.rotatePercent)
	if removeCount < 1 {
		removeCount = 1
	}
	if removeCount > len(j.entries) {
		removeCount = len(j.entries)
	}

	j.entries = j.entries[removeCount:]
	j.rebuildIndexes()
}

func (j *InMemoryJournal) rebuildIndexes() {
	j.byMethod = make(map[string][]*Entry)
	j.byOwner = make(map[string][]*Entry)

	for _, entry := range j.entries {
		if entry.Method != "" {
			j.byMethod[entry.Method] = append(j.byMethod[entry.Method], entry)
		}

		if entry.Owner != "" {
			j.byOwner[entry.Owner] = append(j.byOwner[entry.Owner], entry)
		}
	}
}

// copyEntries returns copies to prevent external modifications
func copyEntries(entries []*Entry) []*Entry {
	result := make([]*Entry, len(entries))
	for i, entry := range entries {
		entryCopy := *entry
		result[i] = &entryCopy
	}
	return result
}
