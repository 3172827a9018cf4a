package merge

import (
	"fmt"
	"strings"

	"github.com/ambre-dwings/reconcile/internal/model"
	"github.com/pocketbase/dbx"
)

// chunkSize bounds how many rows go into a single parameterized
// statement, per spec.md section 4.4's chunk-size-500 requirement.
const chunkSize = 500

// Result reports how many canonical rows the merge touched.
type Result struct {
	Updated  int
	Inserted int
	Archived int
}

// Apply applies an ImportChanges set to the canonical movements table
// through the scratch staging table, inside one transaction:
//
//  1. Drop and recreate the staging table.
//  2. Chunked bulk insert of ToAdd and ToUpdate rows into staging.
//  3. UPDATE movements from staging for ids already present, then
//     INSERT the remaining staging rows that have no match in movements.
//  4. Chunked parameterized archive UPDATE for ToArchive ids.
//
// Grounded on the raw-SQL idiom of ForceWALCheckpoint's
// db.NewQuery(...).Execute() in sync/base_sync.go, generalized to a
// full merge sequence.
func Apply(db *dbx.DB, changes model.ImportChanges) (Result, error) {
	var result Result

	err := db.Transactional(func(tx *dbx.Tx) error {
		if err := recreateStaging(tx); err != nil {
			return fmt.Errorf("recreating staging table: %w", err)
		}

		staged := make([]model.Movement, 0, len(changes.ToAdd)+len(changes.ToUpdate))
		staged = append(staged, changes.ToAdd...)
		staged = append(staged, changes.ToUpdate...)

		if err := bulkInsertStaging(tx, staged); err != nil {
			return fmt.Errorf("staging insert: %w", err)
		}

		updated, err := updateFromStaging(tx)
		if err != nil {
			return fmt.Errorf("update from staging: %w", err)
		}
		result.Updated = updated

		inserted, err := insertNewFromStaging(tx)
		if err != nil {
			return fmt.Errorf("insert from staging: %w", err)
		}
		result.Inserted = inserted

		archived, err := archiveByID(tx, idsOf(changes.ToArchive))
		if err != nil {
			return fmt.Errorf("archiving: %w", err)
		}
		result.Archived = archived

		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func idsOf(rows []model.Movement) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

// stagingColumns is the fixed column order every bulk-insert statement
// writes in.
var stagingColumns = []string{
	"id", "country", "account_id", "ccy", "event_num", "folder", "raw_label",
	"signed_amount", "local_signed_amount", "operation_date", "value_date",
	"category", "receivable_invoice_from_ambre", "receivable_dw_ref_from_ambre",
	"reconciliation_num", "reconciliation_origin_num",
	"version", "creation_date", "last_modified", "modified_by", "delete_date",
}

func bulkInsertStaging(tx *dbx.Tx, rows []model.Movement) error {
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := insertChunk(tx, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func insertChunk(tx *dbx.Tx, rows []model.Movement) error {
	if len(rows) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(rows))
	params := dbx.Params{}
	for i, row := range rows {
		values, err := rowValues(row, keyColumns)
		if err != nil {
			return fmt.Errorf("row %d (id=%s): %w", i, row.ID, err)
		}

		names := make([]string, len(stagingColumns))
		for j, col := range stagingColumns {
			name := fmt.Sprintf("%s_%d", col, i)
			names[j] = "{:" + name + "}"
			params[name] = values[col]
		}
		placeholders = append(placeholders, "("+strings.Join(names, ", ")+")")
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s",
		StagingTable,
		strings.Join(stagingColumns, ", "),
		strings.Join(placeholders, ", "),
	)
	_, err := tx.NewQuery(sql).Bind(params).Execute()
	return err
}

// rowValues converts a Movement into its staging-column representation,
// truncating over-length string columns and erroring if a key column
// would need truncation instead.
func rowValues(m model.Movement, keys map[string]bool) (map[string]any, error) {
	deleteDate := ""
	if m.DeleteDate != nil {
		deleteDate = m.DeleteDate.Format("2006-01-02T15:04:05Z07:00")
	}

	raw := map[string]any{
		"id":                            m.ID,
		"country":                       m.Country,
		"account_id":                    m.AccountID,
		"ccy":                           m.Currency,
		"event_num":                     m.EventNum,
		"folder":                        m.Folder,
		"raw_label":                     m.RawLabel,
		"signed_amount":                 m.SignedAmount.String(),
		"local_signed_amount":           m.LocalSignedAmount.String(),
		"operation_date":                m.OperationDate.Format("2006-01-02"),
		"value_date":                    m.ValueDate.Format("2006-01-02"),
		"category":                      int(m.Category),
		"receivable_invoice_from_ambre": m.ReceivableInvoiceFromAmbre,
		"receivable_dw_ref_from_ambre":  m.ReceivableDWRefFromAmbre,
		"reconciliation_num":            m.ReconciliationNum,
		"reconciliation_origin_num":     m.ReconciliationOriginNum,
		"version":                       m.Version,
		"creation_date":                 m.CreationDate.Format("2006-01-02T15:04:05Z07:00"),
		"last_modified":                 m.LastModified.Format("2006-01-02T15:04:05Z07:00"),
		"modified_by":                   m.ModifiedBy,
		"delete_date":                   deleteDate,
	}

	for col, max := range columnMaxLen {
		s, ok := raw[col].(string)
		if !ok || len(s) <= max {
			continue
		}
		if keys[col] {
			return nil, fmt.Errorf("column %q exceeds max length %d and cannot be truncated: %q", col, max, s)
		}
		raw[col] = s[:max]
	}

	return raw, nil
}

func updateFromStaging(tx *dbx.Tx) (int, error) {
	sql := fmt.Sprintf(`
UPDATE %s
SET country = s.country,
    account_id = s.account_id,
    ccy = s.ccy,
    event_num = s.event_num,
    folder = s.folder,
    raw_label = s.raw_label,
    signed_amount = s.signed_amount,
    local_signed_amount = s.local_signed_amount,
    operation_date = s.operation_date,
    value_date = s.value_date,
    category = s.category,
    receivable_invoice_from_ambre = s.receivable_invoice_from_ambre,
    receivable_dw_ref_from_ambre = s.receivable_dw_ref_from_ambre,
    reconciliation_num = s.reconciliation_num,
    reconciliation_origin_num = s.reconciliation_origin_num,
    version = s.version,
    creation_date = s.creation_date,
    last_modified = s.last_modified,
    modified_by = s.modified_by,
    delete_date = s.delete_date
FROM (SELECT * FROM %s) AS s
WHERE %s.id = s.id AND EXISTS (SELECT 1 FROM %s existing WHERE existing.id = s.id)
`, MovementsTable, StagingTable, MovementsTable, MovementsTable)

	res, err := tx.NewQuery(sql).Execute()
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func insertNewFromStaging(tx *dbx.Tx) (int, error) {
	sql := fmt.Sprintf(`
INSERT INTO %s (%s)
SELECT %s FROM %s s
WHERE s.id NOT IN (SELECT id FROM %s)
`, MovementsTable, strings.Join(stagingColumns, ", "), strings.Join(stagingColumns, ", "), StagingTable, MovementsTable)

	res, err := tx.NewQuery(sql).Execute()
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func archiveByID(tx *dbx.Tx, ids []string) (int, error) {
	total := 0
	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		if len(chunk) == 0 {
			continue
		}

		placeholders := make([]string, len(chunk))
		params := dbx.Params{}
		for i, id := range chunk {
			name := fmt.Sprintf("id_%d", i)
			placeholders[i] = "{:" + name + "}"
			params[name] = id
		}

		sql := fmt.Sprintf(
			"UPDATE %s SET delete_date = strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ', 'now'), version = version + 1 WHERE id IN (%s) AND (delete_date IS NULL OR delete_date = '')",
			MovementsTable, strings.Join(placeholders, ", "),
		)
		res, err := tx.NewQuery(sql).Bind(params).Execute()
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
