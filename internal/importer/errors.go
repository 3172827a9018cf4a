package importer

import "errors"

// Error kinds, never conflated, per spec.md section 7. Each is a
// sentinel wrapped with fmt.Errorf("%w: ...") at the call site, tested
// with errors.Is, following the idiom used throughout sync/base_sync.go
// and campminder/client.go.
var (
	// ErrValidation covers bad input files, missing accounts, and
	// per-row coherence failures. Accumulated, not eagerly fatal.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration covers an unknown country or missing mapping/
	// transform configuration. Aborts before any DB mutation.
	ErrConfiguration = errors.New("configuration error")
	// ErrLock covers a lock acquisition timeout or denied lease.
	ErrLock = errors.New("lock error")
	// ErrConcurrency covers pending unsynced local changes that could
	// not be pushed before import.
	ErrConcurrency = errors.New("concurrency error")
	// ErrStorage covers a failed DB transaction; the local DB is left in
	// its pre-transaction state.
	ErrStorage = errors.New("storage error")
	// ErrPublish covers a failed network copy. Local state is already
	// committed; the changelog mark-synced step must not run.
	ErrPublish = errors.New("publish error")
)
