// Package model defines the canonical record types shared by every
// component of the import and reconciliation pipeline. Types here are
// plain structs rather than dictionary-keyed bags: callers get compiler
// visibility into every field instead of probing a map[string]any.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category is the small integer enum tag carried on a Movement, produced
// by the transaction-type detection in the transform library.
type Category int

// TransactionType enumerates the values the transform library can assign
// to a parsed AMBRE row.
type TransactionType string

const (
	TransactionToCategorize       TransactionType = "TO_CATEGORIZE"
	TransactionCollection         TransactionType = "COLLECTION"
	TransactionPayment            TransactionType = "PAYMENT"
	TransactionAdjustment         TransactionType = "ADJUSTMENT"
	TransactionXCLLoader          TransactionType = "XCL_LOADER"
	TransactionTrigger            TransactionType = "TRIGGER"
	TransactionIncomingPayment    TransactionType = "INCOMING_PAYMENT"
	TransactionDirectDebit        TransactionType = "DIRECT_DEBIT"
	TransactionManualOutgoing     TransactionType = "MANUAL_OUTGOING"
	TransactionOutgoingPayment    TransactionType = "OUTGOING_PAYMENT"
	TransactionExternalDebitPaymt TransactionType = "EXTERNAL_DEBIT_PAYMENT"
)

// Movement is one AMBRE bank-movement row as persisted in the canonical
// table. See spec section 3 for the field-by-field invariants.
type Movement struct {
	ID                        string
	Country                   string
	AccountID                 string
	Currency                  string
	EventNum                  string
	Folder                    string
	RawLabel                  string
	SignedAmount              decimal.Decimal
	LocalSignedAmount         decimal.Decimal
	OperationDate             time.Time
	ValueDate                 time.Time
	ReconciliationNum         string
	ReconciliationOriginNum   string
	ReceivableInvoiceFromAmbre string
	ReceivableDWRefFromAmbre  string
	Category                  Category
	Version                   int
	CreationDate              time.Time
	LastModified              time.Time
	ModifiedBy                string
	DeleteDate                *time.Time
}

// IsArchived reports whether the movement's delete_date is set.
func (m Movement) IsArchived() bool { return m.DeleteDate != nil }

// IsPivot reports whether this movement's account is the country's pivot
// account side.
func IsPivot(accountID string, c Country) bool { return accountID == c.AmbrePivot }

// IsReceivable reports whether this movement's account is the country's
// receivable account side.
func IsReceivable(accountID string, c Country) bool { return accountID == c.AmbreReceivable }

// BusinessKeyFields is the normalized tuple spec.md section 3 defines as
// the movement's business key.
type BusinessKeyFields struct {
	AccountID                string
	EventNum                 string
	ReconciliationNum        string
	ReconciliationOriginNum  string
	SignedAmount             decimal.Decimal
	OperationDate            time.Time
}

// BusinessKey derives the deterministic, stable business key used both as
// the diff-engine's identity and as the stored Movement.ID on insert.
// The key is a normalized tuple over (account_id, event_num,
// reconciliation_num, reconciliation_origin_num, signed_amount,
// operation_date), hashed to a fixed-width hex string so it is safe to use
// as a primary key regardless of how ragged the source fields are.
func BusinessKey(f BusinessKeyFields) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(strings.ToUpper(f.AccountID)))
	b.WriteByte('|')
	b.WriteString(strings.TrimSpace(strings.ToUpper(f.EventNum)))
	b.WriteByte('|')
	b.WriteString(strings.TrimSpace(strings.ToUpper(f.ReconciliationNum)))
	b.WriteByte('|')
	b.WriteString(strings.TrimSpace(strings.ToUpper(f.ReconciliationOriginNum)))
	b.WriteByte('|')
	b.WriteString(f.SignedAmount.StringFixed(2))
	b.WriteByte('|')
	b.WriteString(f.OperationDate.UTC().Format("2006-01-02"))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:32]
}

// Key returns the BusinessKeyFields extracted from a Movement, for reuse
// by the diff engine when comparing incoming rows against existing ones.
func (m Movement) Key() BusinessKeyFields {
	return BusinessKeyFields{
		AccountID:               m.AccountID,
		EventNum:                m.EventNum,
		ReconciliationNum:       m.ReconciliationNum,
		ReconciliationOriginNum: m.ReconciliationOriginNum,
		SignedAmount:            m.SignedAmount,
		OperationDate:           m.OperationDate,
	}
}

// BusinessFieldsEqual compares the business fields spec.md section 4.3
// lists as update triggers. Version/audit fields are deliberately excluded.
func BusinessFieldsEqual(a, b Movement) bool {
	return a.AccountID == b.AccountID &&
		a.Currency == b.Currency &&
		a.EventNum == b.EventNum &&
		a.Folder == b.Folder &&
		a.RawLabel == b.RawLabel &&
		a.SignedAmount.Equal(b.SignedAmount) &&
		a.LocalSignedAmount.Equal(b.LocalSignedAmount) &&
		a.OperationDate.Equal(b.OperationDate) &&
		a.ValueDate.Equal(b.ValueDate) &&
		a.Category == b.Category &&
		a.ReconciliationNum == b.ReconciliationNum &&
		a.ReceivableInvoiceFromAmbre == b.ReceivableInvoiceFromAmbre &&
		a.ReceivableDWRefFromAmbre == b.ReceivableDWRefFromAmbre
}

// ImportChanges is the transient output of the diff engine: three sets of
// Movement rows the staging merge must apply.
type ImportChanges struct {
	ToAdd     []Movement
	ToUpdate  []Movement
	ToArchive []Movement
}
