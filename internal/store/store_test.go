package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ambre-dwings/reconcile/internal/changelog"
	"github.com/ambre-dwings/reconcile/internal/dwings"
	"github.com/ambre-dwings/reconcile/internal/model"
	"github.com/ambre-dwings/reconcile/internal/ruleengine"
	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoader(ds dwings.Dataset) dwings.Loader {
	return func(string) (dwings.Dataset, error) { return ds, nil }
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(Options{
		LocalPath:   filepath.Join(dir, "local.sqlite"),
		NetworkPath: filepath.Join(dir, "network.sqlite"),
		LockDir:     filepath.Join(dir, "locks"),
		BackupDir:   filepath.Join(dir, "backups"),
		DWINGSLoader: testLoader(dwings.Dataset{}),
		Rules:       ruleengine.DefaultTable(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testMovement(id string) model.Movement {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return model.Movement{
		ID:            id,
		Country:       "FR",
		AccountID:     "P",
		Currency:      "EUR",
		EventNum:      "E1",
		SignedAmount:  decimal.NewFromInt(100),
		OperationDate: now,
		ValueDate:     now,
		Version:       1,
		CreationDate:  now,
		LastModified:  now,
	}
}

func TestApplyEntitiesBatchThenGetEntitiesRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mv := testMovement("mv-1")
	_, err := s.ApplyEntitiesBatch(ctx, "FR", model.ImportChanges{ToAdd: []model.Movement{mv}}, true)
	require.NoError(t, err)

	rows, err := s.GetEntities(ctx, "FR", "movements")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "mv-1", rows[0].ID)
	assert.True(t, rows[0].SignedAmount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "EUR", rows[0].Currency)
}

func TestApplyEntitiesBatchAppendsChangelogUnlessSuppressed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ApplyEntitiesBatch(ctx, "FR", model.ImportChanges{ToAdd: []model.Movement{testMovement("mv-1")}}, false)
	require.NoError(t, err)
	count, err := s.GetUnsyncedChangeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = s.ApplyEntitiesBatch(ctx, "FR", model.ImportChanges{ToAdd: []model.Movement{testMovement("mv-2")}}, true)
	require.NoError(t, err)
	count, err = s.GetUnsyncedChangeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "suppressed batch must not append to the changelog")
}

func TestMarkAllSyncedAndCleanupDrainPendingCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ApplyEntitiesBatch(ctx, "FR", model.ImportChanges{ToAdd: []model.Movement{testMovement("mv-1")}}, false)
	require.NoError(t, err)

	require.NoError(t, s.MarkAllSynced(ctx))
	require.NoError(t, s.CleanupChangelogAndCompact(ctx))

	count, err := s.GetUnsyncedChangeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAcquireGlobalLockRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	handle, err := s.AcquireGlobalLock(ctx, "FR", "test-holder", time.Second, time.Minute)
	require.NoError(t, err)
	require.NoError(t, handle.Release())
}

func TestCopyLocalToNetworkAndBackCopiesBytes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ApplyEntitiesBatch(ctx, "FR", model.ImportChanges{ToAdd: []model.Movement{testMovement("mv-1")}}, true)
	require.NoError(t, err)

	require.NoError(t, s.CopyLocalToNetwork(ctx))
	_, err = os.Stat(s.networkPath)
	require.NoError(t, err)

	require.NoError(t, s.CopyNetworkToLocal(ctx))
}

func TestBuildReconciliationsAndSaveRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	country := model.Country{ID: "FR", AmbrePivot: "P", AmbreReceivable: "R", DWINGSPath: "fr.json"}
	mv := testMovement("mv-1")

	rows, err := s.BuildReconciliations(ctx, country, []model.Movement{mv})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "mv-1", rows[0].ID)

	require.NoError(t, s.SaveReconciliations(ctx, rows))

	var count int
	require.NoError(t, s.db.Select("COUNT(*)").From(ReconciliationsTable).Row(&count))
	assert.Equal(t, 1, count)
}

func TestSaveReconciliationsIsInsertOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	country := model.Country{ID: "FR", AmbrePivot: "P", AmbreReceivable: "R", DWINGSPath: "fr.json"}
	mv := testMovement("mv-1")

	rows, err := s.BuildReconciliations(ctx, country, []model.Movement{mv})
	require.NoError(t, err)
	require.NoError(t, s.SaveReconciliations(ctx, rows))

	_, err = s.db.NewQuery("UPDATE " + ReconciliationsTable + " SET comments = 'analyst note: do not touch', assignee = 'alice' WHERE id = 'mv-1'").Execute()
	require.NoError(t, err)

	rebuilt, err := s.BuildReconciliations(ctx, country, []model.Movement{mv})
	require.NoError(t, err)
	require.NoError(t, s.SaveReconciliations(ctx, rebuilt))

	var count int
	require.NoError(t, s.db.Select("COUNT(*)").From(ReconciliationsTable).Row(&count))
	assert.Equal(t, 1, count, "re-saving an already-present id must not duplicate the row")

	var comments string
	require.NoError(t, s.db.Select("comments").From(ReconciliationsTable).Where(dbx.HashExp{"id": "mv-1"}).Row(&comments))
	assert.Equal(t, "analyst note: do not touch", comments, "re-import must not clobber a user edit")
}

func TestArchiveReconciliationsSetsDeleteDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	country := model.Country{ID: "FR", AmbrePivot: "P", AmbreReceivable: "R", DWINGSPath: "fr.json"}
	mv := testMovement("mv-1")
	rows, err := s.BuildReconciliations(ctx, country, []model.Movement{mv})
	require.NoError(t, err)
	require.NoError(t, s.SaveReconciliations(ctx, rows))

	require.NoError(t, s.ArchiveReconciliations(ctx, []string{"mv-1"}, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)))

	var deleteDate string
	require.NoError(t, s.db.Select("delete_date").From(ReconciliationsTable).Where(dbx.HashExp{"id": "mv-1"}).Row(&deleteDate))
	assert.NotEmpty(t, deleteDate, "archived reconciliation must carry a non-empty delete_date")
}

func TestReviveReconciliationsClearsDeleteDateOnlyWhenArchived(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	country := model.Country{ID: "FR", AmbrePivot: "P", AmbreReceivable: "R", DWINGSPath: "fr.json"}
	mv := testMovement("mv-1")
	rows, err := s.BuildReconciliations(ctx, country, []model.Movement{mv})
	require.NoError(t, err)
	require.NoError(t, s.SaveReconciliations(ctx, rows))
	require.NoError(t, s.ArchiveReconciliations(ctx, []string{"mv-1"}, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)))

	require.NoError(t, s.ReviveReconciliations(ctx, []string{"mv-1"}))

	var deleteDate string
	require.NoError(t, s.db.Select("delete_date").From(ReconciliationsTable).Where(dbx.HashExp{"id": "mv-1"}).Row(&deleteDate))
	assert.Empty(t, deleteDate, "reviving a previously-archived reconciliation must clear delete_date")
}

func TestInvalidateDWINGSCacheForcesReload(t *testing.T) {
	var calls int
	s := newTestStore(t)
	s.dwingsCache = dwings.NewCache(func(string) (dwings.Dataset, error) {
		calls++
		return dwings.Dataset{}, nil
	})

	country := model.Country{ID: "FR", DWINGSPath: "fr.json"}
	_, err := s.dwingsCache.Snapshot(country.DWINGSPath)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	require.NoError(t, s.InvalidateDWINGSCache(context.Background(), country))

	_, err = s.dwingsCache.Snapshot(country.DWINGSPath)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCreateLocalReconciliationBackupWritesFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateLocalReconciliationBackup(ctx, "PreImport"))

	entries, err := os.ReadDir(s.backupDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestPushPendingChangesInvokesPublisher(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	published := make(chan []changelog.Entry, 1)
	s.publisher = publisherFunc(func(_ context.Context, entries []changelog.Entry) error {
		published <- entries
		return nil
	})

	_, err := s.ApplyEntitiesBatch(ctx, "FR", model.ImportChanges{ToAdd: []model.Movement{testMovement("mv-1")}}, false)
	require.NoError(t, err)

	require.NoError(t, s.PushPendingChanges(ctx))
	select {
	case entries := <-published:
		assert.Len(t, entries, 1)
	default:
		t.Fatal("publisher was not invoked")
	}
}

type publisherFunc func(ctx context.Context, entries []changelog.Entry) error

func (f publisherFunc) Publish(ctx context.Context, entries []changelog.Entry) error {
	return f(ctx, entries)
}
