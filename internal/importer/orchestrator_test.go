package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ambre-dwings/reconcile/internal/lock"
	"github.com/ambre-dwings/reconcile/internal/merge"
	"github.com/ambre-dwings/reconcile/internal/model"
	"github.com/ambre-dwings/reconcile/internal/parser"
	"github.com/ambre-dwings/reconcile/internal/transform"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	lockPath         string
	unsyncedCount    int
	existing         []model.Movement
	applyErr         error
	publishErr       error
	reconciliations  []model.Reconciliation
	markSyncedCalled bool
	cleanupCalled    bool
	refreshedConfig  bool
	invalidatedCache bool

	builtBatch  []model.Movement
	archivedIDs []string
	revivedIDs  []string
}

func (s *fakeStore) SetCurrentCountry(context.Context, string) error { return nil }

func (s *fakeStore) AcquireGlobalLock(ctx context.Context, countryID, holder string, wait, lease time.Duration) (*lock.Handle, error) {
	return lock.Acquire(ctx, s.lockPath, holder, wait, lease)
}

func (s *fakeStore) GetUnsyncedChangeCount(context.Context) (int, error) { return s.unsyncedCount, nil }
func (s *fakeStore) PushPendingChanges(context.Context) error            { return nil }
func (s *fakeStore) CopyNetworkToLocal(context.Context) error           { return nil }
func (s *fakeStore) CopyLocalToNetwork(context.Context) error           { return s.publishErr }
func (s *fakeStore) MarkAllSynced(context.Context) error                { s.markSyncedCalled = true; return nil }
func (s *fakeStore) CleanupChangelogAndCompact(context.Context) error   { s.cleanupCalled = true; return nil }
func (s *fakeStore) SetSyncStatus(context.Context, Status) error        { return nil }
func (s *fakeStore) RefreshConfiguration(context.Context) error         { s.refreshedConfig = true; return nil }

func (s *fakeStore) GetEntities(context.Context, string, string) ([]model.Movement, error) {
	return s.existing, nil
}

func (s *fakeStore) ApplyEntitiesBatch(context.Context, string, model.ImportChanges, bool) (merge.Result, error) {
	if s.applyErr != nil {
		return merge.Result{}, s.applyErr
	}
	return merge.Result{Inserted: 2}, nil
}

func (s *fakeStore) CreateLocalReconciliationBackup(context.Context, string) error { return nil }

func (s *fakeStore) BuildReconciliations(_ context.Context, _ model.Country, batch []model.Movement) ([]model.Reconciliation, error) {
	s.builtBatch = batch
	return s.reconciliations, nil
}

func (s *fakeStore) SaveReconciliations(context.Context, []model.Reconciliation) error { return nil }

func (s *fakeStore) ArchiveReconciliations(_ context.Context, ids []string, _ time.Time) error {
	s.archivedIDs = ids
	return nil
}

func (s *fakeStore) ReviveReconciliations(_ context.Context, ids []string) error {
	s.revivedIDs = ids
	return nil
}

func (s *fakeStore) InvalidateDWINGSCache(context.Context, model.Country) error {
	s.invalidatedCache = true
	return nil
}

type fakeConfig struct {
	country    model.Country
	mappings   []parser.FieldMapping
	transforms map[string]transform.Func
	codes      map[string]int
}

func (c *fakeConfig) GetCountryByID(context.Context, string) (model.Country, error) { return c.country, nil }
func (c *fakeConfig) GetAmbreImportFields(context.Context, string) ([]parser.FieldMapping, error) {
	return c.mappings, nil
}
func (c *fakeConfig) GetAmbreTransforms(context.Context) (map[string]transform.Func, error) {
	return c.transforms, nil
}
func (c *fakeConfig) GetAmbreTransactionCodes(context.Context, string) (map[string]int, error) {
	return c.codes, nil
}

type fakeKPI struct{ saveErr error }

func (k *fakeKPI) FreezeLatestSnapshot(context.Context, string) error { return nil }
func (k *fakeKPI) SaveDailySnapshot(context.Context, time.Time, string, string) error {
	return k.saveErr
}

func writeCSVFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func baseTestMappings() []parser.FieldMapping {
	return []parser.FieldMapping{
		{DestField: "Account_ID", SourceExpr: "Account"},
		{DestField: "CCY", SourceExpr: "CCY"},
		{DestField: "Event_Num", SourceExpr: "Event"},
		{DestField: "RawLabel", SourceExpr: "Label"},
		{DestField: "SignedAmount", SourceExpr: "Amount"},
		{DestField: "Operation_Date", SourceExpr: "OpDate"},
	}
}

func TestImportHappyPath(t *testing.T) {
	dir := t.TempDir()
	path := writeCSVFile(t, dir, "in.csv",
		"Account,CCY,Event,Label,Amount,OpDate\n"+
			"P,EUR,E1,hello,100.00,2024-01-10\n"+
			"R,EUR,E2,world,-100.00,2024-01-10\n",
	)

	store := &fakeStore{lockPath: filepath.Join(dir, "FR.lock")}
	config := &fakeConfig{
		country:    model.Country{ID: "FR", AmbrePivot: "P", AmbreReceivable: "R"},
		mappings:   baseTestMappings(),
		transforms: transform.Registry(nil),
	}
	kpi := &fakeKPI{}

	orch := &Orchestrator{Store: store, Config: config, KPI: kpi, Now: func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }}

	result, err := orch.Import(context.Background(), ImportRequest{CountryID: "FR", Files: []string{path}, Holder: "test"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, store.markSyncedCalled)
	assert.True(t, store.refreshedConfig)
	assert.True(t, store.invalidatedCache)
	assert.Len(t, store.builtBatch, 2, "both rows are newly added and must be built insert-only")
	assert.Empty(t, store.archivedIDs)
	assert.Empty(t, store.revivedIDs)
}

func TestImportArchivesAndRevivesReconciliations(t *testing.T) {
	dir := t.TempDir()
	path := writeCSVFile(t, dir, "in.csv",
		"Account,CCY,Event,Label,Amount,OpDate\n"+
			"P,EUR,E1,hello,100.00,2024-01-10\n"+
			"R,EUR,E2,world,-100.00,2024-01-10\n",
	)

	existingGone := testOrchestratorMovement("gone-1", "GONE", decimal.NewFromInt(50))
	existingUpdated := testOrchestratorMovement("upd-1", "E1", decimal.NewFromInt(100))
	existingUpdated.RawLabel = "stale"

	store := &fakeStore{
		lockPath: filepath.Join(dir, "FR.lock"),
		existing: []model.Movement{existingGone, existingUpdated},
	}
	config := &fakeConfig{
		country:    model.Country{ID: "FR", AmbrePivot: "P", AmbreReceivable: "R"},
		mappings:   baseTestMappings(),
		transforms: transform.Registry(nil),
	}
	kpi := &fakeKPI{}

	orch := &Orchestrator{Store: store, Config: config, KPI: kpi, Now: func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }}

	result, err := orch.Import(context.Background(), ImportRequest{CountryID: "FR", Files: []string{path}, Holder: "test"})
	require.NoError(t, err)
	assert.True(t, result.Success)

	assert.Equal(t, []string{"gone-1"}, store.archivedIDs, "a movement absent from the new import must archive its reconciliation")
	assert.Contains(t, store.revivedIDs, "upd-1", "an updated movement must attempt to revive its reconciliation")
}

func testOrchestratorMovement(id, eventNum string, amount decimal.Decimal) model.Movement {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	return model.Movement{
		ID:            id,
		Country:       "FR",
		AccountID:     "P",
		Currency:      "EUR",
		EventNum:      eventNum,
		SignedAmount:  amount,
		OperationDate: now,
		ValueDate:     now,
		CreationDate:  now,
		LastModified:  now,
		Version:       1,
	}
}

func TestImportValidationErrorOnTooManyFiles(t *testing.T) {
	orch := &Orchestrator{Store: &fakeStore{}, Config: &fakeConfig{}, KPI: &fakeKPI{}}

	_, err := orch.Import(context.Background(), ImportRequest{
		CountryID: "FR",
		Files:     []string{"a.csv", "b.csv", "c.csv"},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestImportValidationErrorOnMissingFile(t *testing.T) {
	orch := &Orchestrator{Store: &fakeStore{}, Config: &fakeConfig{}, KPI: &fakeKPI{}}

	_, err := orch.Import(context.Background(), ImportRequest{
		CountryID: "FR",
		Files:     []string{"/no/such/file.csv"},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestImportValidationErrorOnSingleAccountSide(t *testing.T) {
	dir := t.TempDir()
	path := writeCSVFile(t, dir, "in.csv", "Account,CCY,Event,Label,Amount,OpDate\nP,EUR,E1,h,1.00,2024-01-10\n")

	store := &fakeStore{lockPath: filepath.Join(dir, "FR.lock"), unsyncedCount: 0}
	config := &fakeConfig{
		country:    model.Country{ID: "FR", AmbrePivot: "P", AmbreReceivable: "R"},
		mappings:   baseTestMappings(),
		transforms: transform.Registry(nil),
	}

	orch := &Orchestrator{Store: store, Config: config, KPI: &fakeKPI{}}
	_, err := orch.Import(context.Background(), ImportRequest{CountryID: "FR", Files: []string{path}, Holder: "test"})
	// Single-account-side file must fail the parser's both-sides-present rule.
	assert.ErrorIs(t, err, ErrValidation)
}

func TestImportPublishErrorSkipsMarkSynced(t *testing.T) {
	dir := t.TempDir()
	path := writeCSVFile(t, dir, "in.csv",
		"Account,CCY,Event,Label,Amount,OpDate\n"+
			"P,EUR,E1,h,100.00,2024-01-10\n"+
			"R,EUR,E2,w,-100.00,2024-01-10\n",
	)

	store := &fakeStore{lockPath: filepath.Join(dir, "FR.lock"), publishErr: assertErr{}}
	config := &fakeConfig{
		country:    model.Country{ID: "FR", AmbrePivot: "P", AmbreReceivable: "R"},
		mappings:   baseTestMappings(),
		transforms: transform.Registry(nil),
	}

	orch := &Orchestrator{Store: store, Config: config, KPI: &fakeKPI{}}
	_, err := orch.Import(context.Background(), ImportRequest{CountryID: "FR", Files: []string{path}, Holder: "test"})
	assert.ErrorIs(t, err, ErrPublish)
	assert.False(t, store.markSyncedCalled, "mark-synced must not run unless publish succeeded")
}

type assertErr struct{}

func (assertErr) Error() string { return "network copy failed" }
