package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/ambre-dwings/reconcile/internal/model"
	"github.com/pocketbase/dbx"
)

// reconciliationColumns is the fixed column order reconciliationValues
// and insertReconciliation agree on.
var reconciliationColumns = []string{
	"id", "dwings_invoice_id", "dwings_guarantee_id", "dwings_commission_id",
	"action", "action_status", "action_date", "kpi", "incident_type",
	"risky_item", "reason_non_risky", "comments", "internal_invoice_reference",
	"first_claim_date", "last_claim_date", "to_remind", "to_remind_date",
	"ack", "swift_code", "payment_reference", "trigger_date", "assignee",
	"version", "creation_date", "last_modified", "modified_by", "delete_date",
}

func reconciliationValues(r model.Reconciliation) map[string]any {
	return map[string]any{
		"id":                          r.ID,
		"dwings_invoice_id":           r.DWINGSInvoiceID,
		"dwings_guarantee_id":         r.DWINGSGuaranteeID,
		"dwings_commission_id":        r.DWINGSCommissionID,
		"action":                      string(r.Action),
		"action_status":               int(r.ActionStatus),
		"action_date":                 formatTimePtr(r.ActionDate),
		"kpi":                         string(r.KPI),
		"incident_type":               r.IncidentType,
		"risky_item":                  boolToInt(r.RiskyItem),
		"reason_non_risky":            r.ReasonNonRisky,
		"comments":                    r.Comments,
		"internal_invoice_reference":  r.InternalInvoiceReference,
		"first_claim_date":            formatTimePtr(r.FirstClaimDate),
		"last_claim_date":             formatTimePtr(r.LastClaimDate),
		"to_remind":                   boolToInt(r.ToRemind),
		"to_remind_date":              formatTimePtr(r.ToRemindDate),
		"ack":                         boolToInt(r.ACK),
		"swift_code":                  r.SwiftCode,
		"payment_reference":           r.PaymentReference,
		"trigger_date":                formatTimePtr(r.TriggerDate),
		"assignee":                    r.Assignee,
		"version":                     r.Version,
		"creation_date":               formatTime(r.CreationDate),
		"last_modified":               formatTime(r.LastModified),
		"modified_by":                 r.ModifiedBy,
		"delete_date":                 formatTimePtr(r.DeleteDate),
	}
}

// insertReconciliation writes one row, insert-only: a row already
// present for this id is left untouched, per spec.md section 4.7's
// "rows already present are skipped" and section 3's rule that an
// existing reconciliation is only ever updated by the rule engine or an
// explicit user edit, never re-derived on re-import.
func insertReconciliation(db dbx.Builder, values map[string]any) error {
	names := make([]string, len(reconciliationColumns))
	params := dbx.Params{}
	for i, col := range reconciliationColumns {
		names[i] = "{:" + col + "}"
		params[col] = values[col]
	}

	sql := fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		ReconciliationsTable,
		strings.Join(reconciliationColumns, ", "),
		strings.Join(names, ", "),
	)
	_, err := db.NewQuery(sql).Bind(params).Execute()
	return err
}

// archiveReconciliations sets delete_date = now on the reconciliation
// rows for the given movement ids (Reconciliation.ID is a 1:1 foreign
// key to Movement.ID), bumping version on any row touched, per spec.md
// section 4.7: "for each id in to_archive, set its delete_date to now."
// A missing reconciliation for an id is not an error: not every
// movement has one.
func archiveReconciliations(db dbx.Builder, ids []string, now time.Time) (int, error) {
	return updateReconciliationsByID(db, ids, "delete_date = {:delete_date}", dbx.Params{"delete_date": formatTime(now)})
}

// reviveReconciliations clears delete_date on the reconciliation rows
// for the given movement ids that are currently archived, per spec.md
// section 4.7: "for each id in to_update that is currently archived in
// the reconciliation table, clear its delete_date." Rows already active
// are left untouched (no spurious version bump on every re-import).
func reviveReconciliations(db dbx.Builder, ids []string) (int, error) {
	return updateReconciliationsByID(db, ids, "delete_date = ''", dbx.Params{}, "(delete_date IS NOT NULL AND delete_date != '')")
}

func updateReconciliationsByID(db dbx.Builder, ids []string, setClause string, extraParams dbx.Params, extraWhere ...string) (int, error) {
	total := 0
	for start := 0; start < len(ids); start += reconciliationChunkSize {
		end := start + reconciliationChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		if len(chunk) == 0 {
			continue
		}

		placeholders := make([]string, len(chunk))
		params := dbx.Params{}
		for k, v := range extraParams {
			params[k] = v
		}
		for i, id := range chunk {
			name := fmt.Sprintf("id_%d", i)
			placeholders[i] = "{:" + name + "}"
			params[name] = id
		}

		where := fmt.Sprintf("id IN (%s)", strings.Join(placeholders, ", "))
		for _, w := range extraWhere {
			where += " AND " + w
		}

		sql := fmt.Sprintf(
			"UPDATE %s SET %s, version = version + 1 WHERE %s",
			ReconciliationsTable, setClause, where,
		)
		res, err := db.NewQuery(sql).Bind(params).Execute()
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += int(n)
	}
	return total, nil
}

// reconciliationChunkSize mirrors merge.chunkSize for the same
// parameterized-statement-size reason.
const reconciliationChunkSize = 500

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02T15:04:05Z07:00")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
