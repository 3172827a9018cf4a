// Package changelog implements the local changelog: an append-only
// record of entity mutations awaiting push to the shared network copy,
// backing the Store collaborator's PushPendingChanges/MarkAllSynced/
// CleanupChangelogAndCompact methods (spec.md section 6).
//
// Entry ids use google/uuid, a dependency already indirect via
// pocketbase, promoted to direct here.
package changelog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Op names the kind of mutation a changelog Entry records.
type Op string

const (
	OpInsert  Op = "insert"
	OpUpdate  Op = "update"
	OpArchive Op = "archive"
)

// Entry is one recorded mutation, pending push to the network copy.
type Entry struct {
	ID        string
	Table     string
	RecordID  string
	Op        Op
	Country   string
	CreatedAt time.Time
	Synced    bool
}

// Publisher pushes a batch of pending entries to the shared network
// transport. Out of scope per spec.md section 1 ("changelog/sync
// transport"); callers supply their own implementation.
type Publisher interface {
	Publish(ctx context.Context, entries []Entry) error
}

// Log is an in-memory, mutex-guarded changelog. Suppressed writes (bulk
// import via suppressChangelog=true in ApplyEntitiesBatch) never reach
// Append, per spec.md section 8's "No-op saves" / bulk-import
// changelog-tracking-disabled note in spec.md section 4.8 step 12.
type Log struct {
	mu      sync.Mutex
	entries []Entry
}

// NewLog constructs an empty changelog.
func NewLog() *Log {
	return &Log{}
}

// Append records a new pending mutation.
func (l *Log) Append(table, recordID string, op Op, country string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{
		ID:        uuid.NewString(),
		Table:     table,
		RecordID:  recordID,
		Op:        op,
		Country:   country,
		CreatedAt: time.Now().UTC(),
	}
	l.entries = append(l.entries, e)
	return e
}

// PendingCount reports how many entries have not yet been synced.
func (l *Log) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, e := range l.entries {
		if !e.Synced {
			n++
		}
	}
	return n
}

// Push publishes all pending entries through publisher. On success the
// caller is expected to follow up with MarkAllSynced once publish of the
// network copy itself has also succeeded (spec.md section 7's "mark
// synced must not run unless publish succeeded").
func (l *Log) Push(ctx context.Context, publisher Publisher) error {
	l.mu.Lock()
	pending := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if !e.Synced {
			pending = append(pending, e)
		}
	}
	l.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	if err := publisher.Publish(ctx, pending); err != nil {
		return fmt.Errorf("pushing %d pending changelog entries: %w", len(pending), err)
	}
	return nil
}

// MarkAllSynced marks every entry as synced.
func (l *Log) MarkAllSynced() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.entries {
		l.entries[i].Synced = true
	}
}

// CleanupAndCompact drops every synced entry, keeping only the pending
// tail. A compaction failure is non-fatal to an import (spec.md
// section 7), so callers should log rather than abort on error; this
// implementation cannot itself fail.
func (l *Log) CleanupAndCompact() {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	for _, e := range l.entries {
		if !e.Synced {
			kept = append(kept, e)
		}
	}
	l.entries = kept
}
