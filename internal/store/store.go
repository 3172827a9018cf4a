// Package store is the SQLite-backed canonical Store collaborator: it
// wires the staging merge (C4), the DWINGS cache/linker (C5), the rule
// engine (C6), and the reconciliation builder (C7) behind the
// importer.Store interface, plus the offline-first file-copy and
// changelog plumbing spec.md section 6 names.
//
// Grounded on the db-handle-per-phase posture of dbx.DB opened and
// closed around each sync service's work in sync/base_sync.go, and on
// the local/network dual-copy idiom implicit in PocketBase's data
// directory model.
package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ambre-dwings/reconcile/internal/changelog"
	"github.com/ambre-dwings/reconcile/internal/dwings"
	"github.com/ambre-dwings/reconcile/internal/importer"
	"github.com/ambre-dwings/reconcile/internal/merge"
	"github.com/ambre-dwings/reconcile/internal/model"
	"github.com/ambre-dwings/reconcile/internal/reconcile"
	"github.com/ambre-dwings/reconcile/internal/ruleengine"
	"github.com/pocketbase/dbx"

	"github.com/ambre-dwings/reconcile/internal/lock"

	_ "modernc.org/sqlite"
)

// noopPublisher satisfies changelog.Publisher without an actual network
// transport; the changelog/sync transport itself is an out-of-scope
// external collaborator per spec.md section 1.
type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, []changelog.Entry) error { return nil }

// Store is the concrete, file-backed Store collaborator.
type Store struct {
	db          *dbx.DB
	localPath   string
	networkPath string
	lockDir     string
	backupDir   string

	changelog   *changelog.Log
	publisher   changelog.Publisher
	dwingsCache *dwings.Cache
	rules       ruleengine.Table

	currentCountry string
	status         importer.Status
}

// Options configures a new Store.
type Options struct {
	LocalPath    string
	NetworkPath  string
	LockDir      string
	BackupDir    string
	DWINGSLoader dwings.Loader
	Rules        ruleengine.Table
	Publisher    changelog.Publisher
}

// New opens (creating if absent) the local SQLite database and ensures
// the canonical schema exists.
func New(opts Options) (*Store, error) {
	db, err := dbx.Open("sqlite", opts.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("opening local database %s: %w", opts.LocalPath, err)
	}
	if err := merge.EnsureSchema(db); err != nil {
		return nil, fmt.Errorf("ensuring movements schema: %w", err)
	}
	if err := ensureReconciliationsSchema(db); err != nil {
		return nil, fmt.Errorf("ensuring reconciliations schema: %w", err)
	}

	publisher := opts.Publisher
	if publisher == nil {
		publisher = noopPublisher{}
	}

	for _, dir := range []string{opts.LockDir, opts.BackupDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	return &Store{
		db:          db,
		localPath:   opts.LocalPath,
		networkPath: opts.NetworkPath,
		lockDir:     opts.LockDir,
		backupDir:   opts.BackupDir,
		changelog:   changelog.NewLog(),
		publisher:   publisher,
		dwingsCache: dwings.NewCache(opts.DWINGSLoader),
		rules:       opts.Rules,
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) SetCurrentCountry(_ context.Context, countryID string) error {
	s.currentCountry = countryID
	return nil
}

func (s *Store) AcquireGlobalLock(ctx context.Context, countryID, holder string, wait, lease time.Duration) (*lock.Handle, error) {
	path := filepath.Join(s.lockDir, countryID+".lock")
	return lock.Acquire(ctx, path, holder, wait, lease)
}

func (s *Store) GetUnsyncedChangeCount(context.Context) (int, error) {
	return s.changelog.PendingCount(), nil
}

func (s *Store) PushPendingChanges(ctx context.Context) error {
	return s.changelog.Push(ctx, s.publisher)
}

func (s *Store) CopyNetworkToLocal(context.Context) error {
	if s.networkPath == "" {
		return nil
	}
	return copyFile(s.networkPath, s.localPath)
}

func (s *Store) CopyLocalToNetwork(context.Context) error {
	if s.networkPath == "" {
		return nil
	}
	return copyFile(s.localPath, s.networkPath)
}

func (s *Store) MarkAllSynced(context.Context) error {
	s.changelog.MarkAllSynced()
	return nil
}

func (s *Store) CleanupChangelogAndCompact(context.Context) error {
	s.changelog.CleanupAndCompact()
	return nil
}

func (s *Store) SetSyncStatus(_ context.Context, status importer.Status) error {
	s.status = status
	return nil
}

func (s *Store) RefreshConfiguration(context.Context) error { return nil }

func (s *Store) GetEntities(_ context.Context, country, table string) ([]model.Movement, error) {
	if table != merge.MovementsTable {
		return nil, fmt.Errorf("unknown entity table %q", table)
	}

	var rows []dbMovement
	err := s.db.Select("*").From(merge.MovementsTable).Where(dbx.HashExp{"country": country}).All(&rows)
	if err != nil {
		return nil, fmt.Errorf("loading movements for %s: %w", country, err)
	}

	out := make([]model.Movement, len(rows))
	for i, r := range rows {
		mv, err := r.toModel()
		if err != nil {
			return nil, fmt.Errorf("decoding movement %s: %w", r.ID, err)
		}
		out[i] = mv
	}
	return out, nil
}

func (s *Store) ApplyEntitiesBatch(_ context.Context, country string, changes model.ImportChanges, suppressChangelog bool) (merge.Result, error) {
	result, err := merge.Apply(s.db, changes)
	if err != nil {
		return merge.Result{}, err
	}

	if !suppressChangelog {
		for _, m := range changes.ToAdd {
			s.changelog.Append(merge.MovementsTable, m.ID, changelog.OpInsert, country)
		}
		for _, m := range changes.ToUpdate {
			s.changelog.Append(merge.MovementsTable, m.ID, changelog.OpUpdate, country)
		}
		for _, m := range changes.ToArchive {
			s.changelog.Append(merge.MovementsTable, m.ID, changelog.OpArchive, country)
		}
	}

	return result, nil
}

func (s *Store) CreateLocalReconciliationBackup(_ context.Context, tag string) error {
	if s.backupDir == "" {
		return nil
	}
	dest := filepath.Join(s.backupDir, fmt.Sprintf("%s-%s.sqlite", tag, time.Now().UTC().Format("20060102T150405")))
	return copyFile(s.localPath, dest)
}

func (s *Store) BuildReconciliations(_ context.Context, country model.Country, batch []model.Movement) ([]model.Reconciliation, error) {
	snapshot, err := s.dwingsCache.Snapshot(country.DWINGSPath)
	if err != nil {
		return nil, fmt.Errorf("loading dwings dataset for %s: %w", country.ID, err)
	}

	return reconcile.Build(batch, reconcile.Options{
		Country:    country,
		Linker:     dwings.NewLinker(snapshot),
		Rules:      s.rules,
		ModifiedBy: "importer",
	})
}

func (s *Store) SaveReconciliations(_ context.Context, rows []model.Reconciliation) error {
	for _, r := range rows {
		values := reconciliationValues(r)
		if err := insertReconciliation(s.db, values); err != nil {
			return fmt.Errorf("saving reconciliation %s: %w", r.ID, err)
		}
	}
	return nil
}

func (s *Store) ArchiveReconciliations(_ context.Context, ids []string, now time.Time) error {
	_, err := archiveReconciliations(s.db, ids, now)
	if err != nil {
		return fmt.Errorf("archiving reconciliations: %w", err)
	}
	return nil
}

func (s *Store) ReviveReconciliations(_ context.Context, ids []string) error {
	_, err := reviveReconciliations(s.db, ids)
	if err != nil {
		return fmt.Errorf("reviving reconciliations: %w", err)
	}
	return nil
}

func (s *Store) InvalidateDWINGSCache(_ context.Context, country model.Country) error {
	s.dwingsCache.Invalidate(country.DWINGSPath)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating destination directory for %s: %w", dst, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return nil
}
