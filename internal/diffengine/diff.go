// Package diffengine implements the Diff Engine (C3): it computes
// Add/Update/Archive/Revive sets between the existing per-country
// movement set and newly parsed rows, keyed by business key.
//
// Grounded on the composite-key preload/compare pattern of
// BaseSyncService.PreloadRecords + ProcessSimpleRecord in the source
// sync package, generalized from a single create/update decision over
// PocketBase records to the three-way add/update/archive split this
// engine's contract requires, operating over plain model.Movement values
// instead of map[string]interface{} record bags.
package diffengine

import (
	"time"

	"github.com/ambre-dwings/reconcile/internal/model"
)

// Clock abstracts "now" so tests can pin timestamps; defaults to
// time.Now when nil is passed to Diff via Options.
type Clock func() time.Time

// Options configures a Diff call.
type Options struct {
	Now        Clock
	ModifiedBy string
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// Diff computes the ImportChanges for one country's import, per the
// algorithm in spec.md section 4.3:
//
//  1. Build two maps keyed by business key.
//  2. For each incoming row: revive if the existing match is archived,
//     update if any business field differs, no-op otherwise, or add if
//     there is no existing match.
//  3. For each existing row whose key is absent from incoming and that is
//     not already archived: archive it.
func Diff(existing, incoming []model.Movement, opts Options) model.ImportChanges {
	now := opts.now()

	existingByKey := make(map[string]model.Movement, len(existing))
	for _, m := range existing {
		existingByKey[model.BusinessKey(m.Key())] = m
	}

	seen := make(map[string]bool, len(incoming))
	var changes model.ImportChanges

	for _, row := range incoming {
		key := model.BusinessKey(row.Key())
		seen[key] = true

		prev, ok := existingByKey[key]
		if !ok {
			row.ID = key
			row.Version = 1
			row.CreationDate = now
			row.LastModified = now
			row.ModifiedBy = opts.ModifiedBy
			row.DeleteDate = nil
			changes.ToAdd = append(changes.ToAdd, row)
			continue
		}

		if prev.IsArchived() {
			revived := row
			revived.ID = prev.ID
			revived.Version = prev.Version + 1
			revived.CreationDate = prev.CreationDate
			revived.LastModified = now
			revived.ModifiedBy = opts.ModifiedBy
			revived.DeleteDate = nil
			changes.ToUpdate = append(changes.ToUpdate, revived)
			continue
		}

		if !model.BusinessFieldsEqual(prev, row) {
			updated := row
			updated.ID = prev.ID
			updated.Version = prev.Version + 1
			updated.CreationDate = prev.CreationDate
			updated.LastModified = now
			updated.ModifiedBy = opts.ModifiedBy
			updated.DeleteDate = nil
			changes.ToUpdate = append(changes.ToUpdate, updated)
			continue
		}
		// Identical business fields: no-op, matching the "No-op saves"
		// testable property in spec.md section 8.
	}

	for _, m := range existing {
		key := model.BusinessKey(m.Key())
		if seen[key] || m.IsArchived() {
			continue
		}
		archived := m
		archived.Version = m.Version + 1
		archived.LastModified = now
		archived.ModifiedBy = opts.ModifiedBy
		deleteAt := now
		archived.DeleteDate = &deleteAt
		changes.ToArchive = append(changes.ToArchive, archived)
	}

	return changes
}
