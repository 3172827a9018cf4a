package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ambre-dwings/reconcile/internal/diffengine"
	"github.com/ambre-dwings/reconcile/internal/model"
	"github.com/ambre-dwings/reconcile/internal/parser"
)

const (
	defaultLockWait  = 2 * time.Minute
	defaultLockLease = 30 * time.Minute
)

// Orchestrator drives the fixed eight-phase import state machine,
// publishing StatusEvents to an optional channel as it progresses.
type Orchestrator struct {
	Store  Store
	Config ConfigCatalog
	KPI    KPISnapshot
	Now    func() time.Time
	Logger *slog.Logger

	// StatusCh, if set, receives a StatusEvent at every phase
	// transition. Sends are non-blocking: a full or nil channel never
	// stalls the import.
	StatusCh chan<- StatusEvent
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Orchestrator) publish(phase Status, err error) {
	evt := StatusEvent{Phase: phase, At: o.now()}
	if err != nil {
		evt.Err = err.Error()
	}
	if o.StatusCh == nil {
		return
	}
	select {
	case o.StatusCh <- evt:
	default:
	}
}

// Import runs one country's import end to end, per the 17-step protocol
// in spec.md section 4.8.
func (o *Orchestrator) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	result := ImportResult{Start: o.now()}

	// Step 1: validate inputs.
	if len(req.Files) == 0 || len(req.Files) > 2 {
		result.ValidationErrors = append(result.ValidationErrors,
			fmt.Sprintf("expected 1 or 2 input files, got %d", len(req.Files)))
	}
	for _, f := range req.Files {
		if _, err := os.Stat(f); err != nil {
			result.ValidationErrors = append(result.ValidationErrors,
				fmt.Sprintf("file %s is not readable: %v", f, err))
		}
	}
	if len(result.ValidationErrors) > 0 {
		result.End = o.now()
		return result, fmt.Errorf("%w: invalid import request", ErrValidation)
	}

	// Step 2: load configuration.
	country, err := o.Config.GetCountryByID(ctx, req.CountryID)
	if err != nil {
		return o.fail(result, fmt.Errorf("%w: %v", ErrConfiguration, err))
	}
	mappings, err := o.Config.GetAmbreImportFields(ctx, req.CountryID)
	if err != nil {
		return o.fail(result, fmt.Errorf("%w: %v", ErrConfiguration, err))
	}
	transforms, err := o.Config.GetAmbreTransforms(ctx)
	if err != nil {
		return o.fail(result, fmt.Errorf("%w: %v", ErrConfiguration, err))
	}

	// Step 3: switch country (background push suppressed, the store
	// implementation owns that posture).
	if err := o.Store.SetCurrentCountry(ctx, req.CountryID); err != nil {
		return o.fail(result, fmt.Errorf("%w: switching country: %v", ErrStorage, err))
	}

	// Step 4: acquire the global lock.
	o.publish(StatusPreSync, nil)
	handle, err := o.Store.AcquireGlobalLock(ctx, req.CountryID, req.Holder, defaultLockWait, defaultLockLease)
	if err != nil {
		return o.fail(result, fmt.Errorf("%w: %v", ErrLock, err))
	}
	defer func() { _ = handle.Release() }()

	// Step 5: pre-sync push of pending changelog entries.
	pending, err := o.Store.GetUnsyncedChangeCount(ctx)
	if err != nil {
		return o.fail(result, fmt.Errorf("%w: checking unsynced changes: %v", ErrConcurrency, err))
	}
	if pending > 0 {
		if err := o.Store.PushPendingChanges(ctx); err != nil {
			return o.fail(result, fmt.Errorf("%w: pushing pending changes: %v", ErrConcurrency, err))
		}
	}

	// Step 6: refresh local from network.
	o.publish(StatusRefreshingLocal, nil)
	if err := o.Store.CopyNetworkToLocal(ctx); err != nil {
		return o.fail(result, fmt.Errorf("%w: refreshing local from network: %v", ErrStorage, err))
	}

	// Step 7: parse input files.
	o.publish(StatusImporting, nil)
	accountField := accountSourceField(mappings)
	rawRows, err := parser.Read(req.Files, parser.Options{
		Mappings:           mappings,
		Transforms:         transforms,
		Accounts:           parser.AccountSides{Pivot: country.AmbrePivot, Receivable: country.AmbreReceivable},
		AccountSourceField: accountField,
	})
	if err != nil {
		result.ValidationErrors = append(result.ValidationErrors, err.Error())
		return o.fail(result, fmt.Errorf("%w: %v", ErrValidation, err))
	}

	// Step 8: transform rows into Movements, with coherence checks.
	now := o.now()
	incoming := make([]model.Movement, 0, len(rawRows))
	for i, row := range rawRows {
		mv, err := rowToMovement(row, country.ID)
		if err != nil {
			result.ValidationErrors = append(result.ValidationErrors, fmt.Sprintf("row %d: %v", i, err))
			continue
		}
		incoming = append(incoming, mv)
	}
	if len(result.ValidationErrors) > 0 {
		return o.fail(result, fmt.Errorf("%w: %d row(s) failed coherence checks", ErrValidation, len(result.ValidationErrors)))
	}

	// Step 9: diff against existing.
	existing, err := o.Store.GetEntities(ctx, req.CountryID, "movements")
	if err != nil {
		return o.fail(result, fmt.Errorf("%w: loading existing movements: %v", ErrStorage, err))
	}
	changes := diffengine.Diff(existing, incoming, diffengine.Options{Now: func() time.Time { return now }, ModifiedBy: "importer"})

	// Step 10: best-effort pre-publish backup.
	if err := o.Store.CreateLocalReconciliationBackup(ctx, "PreImport"); err != nil {
		o.logger().Warn("pre-import reconciliation backup failed", "country", req.CountryID, "error", err)
	}

	// Step 11: apply the staged merge.
	o.publish(StatusApplyingChanges, nil)
	mergeResult, err := o.Store.ApplyEntitiesBatch(ctx, req.CountryID, changes, true)
	if err != nil {
		return o.fail(result, fmt.Errorf("%w: applying staged changes: %v", ErrStorage, err))
	}
	result.New = mergeResult.Inserted
	result.Updated = mergeResult.Updated
	result.Deleted = mergeResult.Archived
	result.Processed = len(incoming)

	// Step 12: build reconciliations for newly added movements only
	// (insert-only, spec.md section 4.7), then archive/revive the
	// reconciliation rows for archived/updated movements.
	o.publish(StatusReconciling, nil)
	reconciliations, err := o.Store.BuildReconciliations(ctx, country, changes.ToAdd)
	if err != nil {
		return o.fail(result, fmt.Errorf("%w: building reconciliations: %v", ErrStorage, err))
	}
	if err := o.Store.SaveReconciliations(ctx, reconciliations); err != nil {
		return o.fail(result, fmt.Errorf("%w: saving reconciliations: %v", ErrStorage, err))
	}
	if err := o.Store.ArchiveReconciliations(ctx, idsOf(changes.ToArchive), now); err != nil {
		return o.fail(result, fmt.Errorf("%w: archiving reconciliations: %v", ErrStorage, err))
	}
	if err := o.Store.ReviveReconciliations(ctx, idsOf(changes.ToUpdate)); err != nil {
		return o.fail(result, fmt.Errorf("%w: reviving reconciliations: %v", ErrStorage, err))
	}

	// Step 13: KPI snapshot (non-fatal).
	sourceVersion := fmt.Sprintf("%d", now.Unix())
	if err := o.KPI.SaveDailySnapshot(ctx, maxOperationDate(incoming, now), req.CountryID, sourceVersion); err != nil {
		o.logger().Warn("kpi snapshot failed", "country", req.CountryID, "error", err)
	}

	// Step 14: publish local to network.
	o.publish(StatusPublishing, nil)
	if err := o.Store.CopyLocalToNetwork(ctx); err != nil {
		return o.fail(result, fmt.Errorf("%w: %v", ErrPublish, err))
	}

	// Step 15: finalize changelog.
	o.publish(StatusFinalizing, nil)
	if err := o.Store.MarkAllSynced(ctx); err != nil {
		o.logger().Warn("marking changelog synced failed", "country", req.CountryID, "error", err)
	}
	if err := o.Store.CleanupChangelogAndCompact(ctx); err != nil {
		o.logger().Warn("changelog cleanup failed", "country", req.CountryID, "error", err)
	}

	// Step 16: post-refresh.
	o.publish(StatusRefreshingLocal, nil)
	if err := o.Store.RefreshConfiguration(ctx); err != nil {
		o.logger().Warn("refreshing configuration failed", "country", req.CountryID, "error", err)
	}
	if err := o.Store.CopyNetworkToLocal(ctx); err != nil {
		o.logger().Warn("post-import network refresh failed", "country", req.CountryID, "error", err)
	}
	if err := o.Store.InvalidateDWINGSCache(ctx, country); err != nil {
		o.logger().Warn("dwings cache invalidation failed", "country", req.CountryID, "error", err)
	}

	// Step 17: complete.
	if err := o.Store.SetSyncStatus(ctx, StatusCompleted); err != nil {
		o.logger().Warn("setting completed sync status failed", "country", req.CountryID, "error", err)
	}
	o.publish(StatusCompleted, nil)

	result.End = o.now()
	result.Success = true
	return result, nil
}

// fail marks the terminal Error status, records the cause, and returns
// the final ImportResult alongside the wrapped error. The caller's
// deferred lock release (if any) still runs.
func (o *Orchestrator) fail(result ImportResult, err error) (ImportResult, error) {
	o.publish(StatusError, err)
	result.End = o.now()
	result.Success = false
	result.Errors = append(result.Errors, err.Error())
	return result, err
}

// accountSourceField finds the raw header column backing the Account_ID
// destination, used to split rows by account side.
func accountSourceField(mappings []parser.FieldMapping) string {
	for _, m := range mappings {
		if m.DestField == "Account_ID" {
			return m.SourceExpr
		}
	}
	return "Account_ID"
}

// idsOf collects the ids of a Movement slice, for the reconciliation
// archive/revive calls that operate by id rather than by full row.
func idsOf(rows []model.Movement) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

// maxOperationDate returns the latest OperationDate among rows, or
// fallback if rows is empty, per spec.md section 4.8 step 13.
func maxOperationDate(rows []model.Movement, fallback time.Time) time.Time {
	if len(rows) == 0 {
		return fallback
	}
	max := rows[0].OperationDate
	for _, r := range rows[1:] {
		if r.OperationDate.After(max) {
			max = r.OperationDate
		}
	}
	return max
}
