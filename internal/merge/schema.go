// Package merge implements the Staging Merge component (C4): it applies
// an ImportChanges set to the canonical movement table through a scratch
// staging table and set-based SQL, inside one transaction.
//
// Grounded on the one raw-SQL precedent in the source package,
// BaseSyncService.ForceWALCheckpoint's db.NewQuery(...).Execute() call in
// sync/base_sync.go, generalized from a single PRAGMA statement to the
// full staging-table create/bulk-insert/update-then-insert/archive
// sequence spec.md section 4.4 requires.
package merge

import "github.com/pocketbase/dbx"

// MovementsTable and StagingTable are the canonical and scratch table
// names the merge operates on.
const (
	MovementsTable = "movements"
	StagingTable   = "movements_staging"
)

// columnMaxLen lists the maximum length of every string column in the
// canonical table. Values longer than this are truncated on the way into
// staging; key columns error instead of truncating silently, per
// spec.md section 4.4.
var columnMaxLen = map[string]int{
	"id":                            64,
	"country":                       8,
	"account_id":                    32,
	"ccy":                           8,
	"event_num":                     64,
	"folder":                        64,
	"raw_label":                     512,
	"reconciliation_num":            64,
	"reconciliation_origin_num":     64,
	"receivable_invoice_from_ambre": 64,
	"receivable_dw_ref_from_ambre":  64,
	"modified_by":                   64,
}

// keyColumns are columns whose truncation is a hard error rather than a
// silent truncate, since they participate in the business key.
var keyColumns = map[string]bool{
	"id":                 true,
	"account_id":          true,
	"event_num":           true,
	"reconciliation_num":  true,
}

const movementsDDL = `
CREATE TABLE IF NOT EXISTS ` + MovementsTable + ` (
	id TEXT PRIMARY KEY,
	country TEXT NOT NULL,
	account_id TEXT NOT NULL,
	ccy TEXT NOT NULL,
	event_num TEXT NOT NULL,
	folder TEXT,
	raw_label TEXT,
	signed_amount TEXT NOT NULL,
	local_signed_amount TEXT NOT NULL,
	operation_date TEXT NOT NULL,
	value_date TEXT NOT NULL,
	category INTEGER NOT NULL DEFAULT 0,
	receivable_invoice_from_ambre TEXT,
	receivable_dw_ref_from_ambre TEXT,
	reconciliation_num TEXT,
	reconciliation_origin_num TEXT,
	version INTEGER NOT NULL,
	creation_date TEXT NOT NULL,
	last_modified TEXT NOT NULL,
	modified_by TEXT,
	delete_date TEXT
);
CREATE INDEX IF NOT EXISTS idx_movements_country ON ` + MovementsTable + ` (country);
`

// stagingDDL recreates the scratch table from zero rows; it is dropped
// and recreated at the start of every Apply call, per spec.md
// section 4.4 step 1.
const stagingDDL = `
DROP TABLE IF EXISTS ` + StagingTable + `;
CREATE TABLE ` + StagingTable + ` (
	id TEXT PRIMARY KEY,
	country TEXT NOT NULL,
	account_id TEXT NOT NULL,
	ccy TEXT NOT NULL,
	event_num TEXT NOT NULL,
	folder TEXT,
	raw_label TEXT,
	signed_amount TEXT NOT NULL,
	local_signed_amount TEXT NOT NULL,
	operation_date TEXT NOT NULL,
	value_date TEXT NOT NULL,
	category INTEGER NOT NULL DEFAULT 0,
	receivable_invoice_from_ambre TEXT,
	receivable_dw_ref_from_ambre TEXT,
	reconciliation_num TEXT,
	reconciliation_origin_num TEXT,
	version INTEGER NOT NULL,
	creation_date TEXT NOT NULL,
	last_modified TEXT NOT NULL,
	modified_by TEXT,
	delete_date TEXT
);
CREATE INDEX idx_staging_id ON ` + StagingTable + ` (id);
`

// EnsureSchema creates the canonical table if absent. It does not touch
// the staging table; that is recreated fresh by every Apply call.
func EnsureSchema(db *dbx.DB) error {
	_, err := db.NewQuery(movementsDDL).Execute()
	return err
}

// recreateStaging drops and recreates the scratch table with zero rows.
func recreateStaging(db dbx.Builder) error {
	_, err := db.NewQuery(stagingDDL).Execute()
	return err
}
