package importer

import (
	"context"
	"time"

	"github.com/ambre-dwings/reconcile/internal/lock"
	"github.com/ambre-dwings/reconcile/internal/merge"
	"github.com/ambre-dwings/reconcile/internal/model"
	"github.com/ambre-dwings/reconcile/internal/parser"
	"github.com/ambre-dwings/reconcile/internal/transform"
)

// Store is the offline-first collaborator spec.md section 6 names,
// covering country switching, the global lock, changelog push/sync, and
// entity batch application.
type Store interface {
	SetCurrentCountry(ctx context.Context, countryID string) error
	AcquireGlobalLock(ctx context.Context, countryID, holder string, wait, lease time.Duration) (*lock.Handle, error)
	GetUnsyncedChangeCount(ctx context.Context) (int, error)
	PushPendingChanges(ctx context.Context) error
	CopyNetworkToLocal(ctx context.Context) error
	CopyLocalToNetwork(ctx context.Context) error
	MarkAllSynced(ctx context.Context) error
	CleanupChangelogAndCompact(ctx context.Context) error
	SetSyncStatus(ctx context.Context, status Status) error
	RefreshConfiguration(ctx context.Context) error
	GetEntities(ctx context.Context, country, table string) ([]model.Movement, error)
	ApplyEntitiesBatch(ctx context.Context, country string, changes model.ImportChanges, suppressChangelog bool) (merge.Result, error)
	CreateLocalReconciliationBackup(ctx context.Context, tag string) error
	BuildReconciliations(ctx context.Context, country model.Country, batch []model.Movement) ([]model.Reconciliation, error)
	SaveReconciliations(ctx context.Context, rows []model.Reconciliation) error
	ArchiveReconciliations(ctx context.Context, ids []string, now time.Time) error
	ReviveReconciliations(ctx context.Context, ids []string) error
	InvalidateDWINGSCache(ctx context.Context, country model.Country) error
}

// ConfigCatalog is the configuration collaborator spec.md section 6
// names.
type ConfigCatalog interface {
	GetCountryByID(ctx context.Context, id string) (model.Country, error)
	GetAmbreImportFields(ctx context.Context, countryID string) ([]parser.FieldMapping, error)
	GetAmbreTransforms(ctx context.Context) (map[string]transform.Func, error)
	GetAmbreTransactionCodes(ctx context.Context, countryID string) (map[string]int, error)
}

// KPISnapshot is the KPI collaborator spec.md section 6 names.
// Failures here are non-fatal to an import (spec.md section 7).
type KPISnapshot interface {
	FreezeLatestSnapshot(ctx context.Context, countryID string) error
	SaveDailySnapshot(ctx context.Context, date time.Time, countryID, sourceVersion string) error
}
