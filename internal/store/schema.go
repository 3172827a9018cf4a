package store

import "github.com/pocketbase/dbx"

// ReconciliationsTable is the canonical reconciliation table name.
const ReconciliationsTable = "reconciliations"

const reconciliationsDDL = `
CREATE TABLE IF NOT EXISTS ` + ReconciliationsTable + ` (
	id TEXT PRIMARY KEY,
	dwings_invoice_id TEXT,
	dwings_guarantee_id TEXT,
	dwings_commission_id TEXT,
	action TEXT,
	action_status INTEGER NOT NULL DEFAULT 0,
	action_date TEXT,
	kpi TEXT,
	incident_type TEXT,
	risky_item INTEGER NOT NULL DEFAULT 0,
	reason_non_risky TEXT,
	comments TEXT,
	internal_invoice_reference TEXT,
	first_claim_date TEXT,
	last_claim_date TEXT,
	to_remind INTEGER NOT NULL DEFAULT 0,
	to_remind_date TEXT,
	ack INTEGER NOT NULL DEFAULT 0,
	swift_code TEXT,
	payment_reference TEXT,
	trigger_date TEXT,
	assignee TEXT,
	version INTEGER NOT NULL,
	creation_date TEXT NOT NULL,
	last_modified TEXT NOT NULL,
	modified_by TEXT,
	delete_date TEXT
);
CREATE INDEX IF NOT EXISTS idx_reconciliations_invoice ON ` + ReconciliationsTable + ` (dwings_invoice_id);
`

func ensureReconciliationsSchema(db *dbx.DB) error {
	_, err := db.NewQuery(reconciliationsDDL).Execute()
	return err
}
