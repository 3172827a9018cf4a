package store

import (
	"fmt"
	"time"

	"github.com/ambre-dwings/reconcile/internal/model"
	"github.com/shopspring/decimal"
)

// dbMovement mirrors the movements table's TEXT-typed columns for
// scanning: dates and decimals are stored as strings, the same
// representation merge.rowValues writes on the way in.
type dbMovement struct {
	ID                         string `db:"id"`
	Country                    string `db:"country"`
	AccountID                  string `db:"account_id"`
	CCY                        string `db:"ccy"`
	EventNum                   string `db:"event_num"`
	Folder                     string `db:"folder"`
	RawLabel                   string `db:"raw_label"`
	SignedAmount               string `db:"signed_amount"`
	LocalSignedAmount          string `db:"local_signed_amount"`
	OperationDate              string `db:"operation_date"`
	ValueDate                  string `db:"value_date"`
	Category                   int    `db:"category"`
	ReceivableInvoiceFromAmbre string `db:"receivable_invoice_from_ambre"`
	ReceivableDWRefFromAmbre   string `db:"receivable_dw_ref_from_ambre"`
	ReconciliationNum          string `db:"reconciliation_num"`
	ReconciliationOriginNum    string `db:"reconciliation_origin_num"`
	Version                    int    `db:"version"`
	CreationDate               string `db:"creation_date"`
	LastModified               string `db:"last_modified"`
	ModifiedBy                 string `db:"modified_by"`
	DeleteDate                 string `db:"delete_date"`
}

func (r dbMovement) toModel() (model.Movement, error) {
	signedAmount, err := decimal.NewFromString(r.SignedAmount)
	if err != nil {
		return model.Movement{}, fmt.Errorf("parsing signed_amount %q: %w", r.SignedAmount, err)
	}
	localAmount, err := decimal.NewFromString(r.LocalSignedAmount)
	if err != nil {
		return model.Movement{}, fmt.Errorf("parsing local_signed_amount %q: %w", r.LocalSignedAmount, err)
	}

	operationDate, err := parseDateOnly(r.OperationDate)
	if err != nil {
		return model.Movement{}, fmt.Errorf("parsing operation_date %q: %w", r.OperationDate, err)
	}
	valueDate, err := parseDateOnly(r.ValueDate)
	if err != nil {
		return model.Movement{}, fmt.Errorf("parsing value_date %q: %w", r.ValueDate, err)
	}
	creationDate, err := parseTimestamp(r.CreationDate)
	if err != nil {
		return model.Movement{}, fmt.Errorf("parsing creation_date %q: %w", r.CreationDate, err)
	}
	lastModified, err := parseTimestamp(r.LastModified)
	if err != nil {
		return model.Movement{}, fmt.Errorf("parsing last_modified %q: %w", r.LastModified, err)
	}

	var deleteDate *time.Time
	if r.DeleteDate != "" {
		t, err := parseTimestamp(r.DeleteDate)
		if err != nil {
			return model.Movement{}, fmt.Errorf("parsing delete_date %q: %w", r.DeleteDate, err)
		}
		deleteDate = &t
	}

	return model.Movement{
		ID:                         r.ID,
		Country:                    r.Country,
		AccountID:                  r.AccountID,
		Currency:                   r.CCY,
		EventNum:                   r.EventNum,
		Folder:                     r.Folder,
		RawLabel:                   r.RawLabel,
		SignedAmount:               signedAmount,
		LocalSignedAmount:          localAmount,
		OperationDate:              operationDate,
		ValueDate:                  valueDate,
		ReconciliationNum:          r.ReconciliationNum,
		ReconciliationOriginNum:    r.ReconciliationOriginNum,
		ReceivableInvoiceFromAmbre: r.ReceivableInvoiceFromAmbre,
		ReceivableDWRefFromAmbre:   r.ReceivableDWRefFromAmbre,
		Category:                   model.Category(r.Category),
		Version:                    r.Version,
		CreationDate:               creationDate,
		LastModified:               lastModified,
		ModifiedBy:                 r.ModifiedBy,
		DeleteDate:                 deleteDate,
	}, nil
}

func parseDateOnly(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02T15:04:05Z07:00", s)
}
