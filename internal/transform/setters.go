package transform

import (
	"fmt"
	"time"

	"github.com/ambre-dwings/reconcile/internal/model"
	"github.com/shopspring/decimal"
)

// Setter assigns a single parsed, already-typed value onto a Movement.
// spec.md's Design Notes call for replacing reflection-based field
// setting with a closed mapping from destination-field name to a typed
// setter function; Setters is that mapping.
type Setter func(m *model.Movement, value any) error

// Setters is the closed destination-field -> typed-setter table. Only the
// names listed here are valid parser-mapping destinations; Apply returns
// an error for an unknown destination field (the importer reports it as a
// per-row validation error) rather than silently ignoring the write.
var Setters = map[string]Setter{
	"Country":                     stringSetter(func(m *model.Movement, v string) { m.Country = v }),
	"Account_ID":                  stringSetter(func(m *model.Movement, v string) { m.AccountID = v }),
	"CCY":                         stringSetter(func(m *model.Movement, v string) { m.Currency = v }),
	"Event_Num":                   stringSetter(func(m *model.Movement, v string) { m.EventNum = v }),
	"Folder":                      stringSetter(func(m *model.Movement, v string) { m.Folder = v }),
	"RawLabel":                    stringSetter(func(m *model.Movement, v string) { m.RawLabel = v }),
	"Reconciliation_Num":          stringSetter(func(m *model.Movement, v string) { m.ReconciliationNum = v }),
	"ReconciliationOrigin_Num":    stringSetter(func(m *model.Movement, v string) { m.ReconciliationOriginNum = v }),
	"Receivable_InvoiceFromAmbre": stringSetter(func(m *model.Movement, v string) { m.ReceivableInvoiceFromAmbre = v }),
	"Receivable_DWRefFromAmbre":   stringSetter(func(m *model.Movement, v string) { m.ReceivableDWRefFromAmbre = v }),
	"ModifiedBy":                  stringSetter(func(m *model.Movement, v string) { m.ModifiedBy = v }),

	"SignedAmount": decimalSetter(func(m *model.Movement, v decimal.Decimal) { m.SignedAmount = v }),
	"LocalSignedAmount": decimalSetter(func(m *model.Movement, v decimal.Decimal) {
		m.LocalSignedAmount = v
	}),

	"Operation_Date": dateSetter(func(m *model.Movement, v time.Time) { m.OperationDate = v }),
	"Value_Date":     dateSetter(func(m *model.Movement, v time.Time) { m.ValueDate = v }),

	"Category": categorySetter(func(m *model.Movement, v model.Category) { m.Category = v }),
}

func stringSetter(assign func(*model.Movement, string)) Setter {
	return func(m *model.Movement, value any) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		assign(m, s)
		return nil
	}
}

func decimalSetter(assign func(*model.Movement, decimal.Decimal)) Setter {
	return func(m *model.Movement, value any) error {
		d, ok := value.(decimal.Decimal)
		if !ok {
			return fmt.Errorf("expected decimal.Decimal, got %T", value)
		}
		assign(m, d)
		return nil
	}
}

func dateSetter(assign func(*model.Movement, time.Time)) Setter {
	return func(m *model.Movement, value any) error {
		t, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("expected time.Time, got %T", value)
		}
		assign(m, t)
		return nil
	}
}

func categorySetter(assign func(*model.Movement, model.Category)) Setter {
	return func(m *model.Movement, value any) error {
		switch v := value.(type) {
		case model.Category:
			assign(m, v)
		case int:
			assign(m, model.Category(v))
		default:
			return fmt.Errorf("expected model.Category or int, got %T", value)
		}
		return nil
	}
}

// Apply looks up the setter for destField and invokes it, returning an
// error if destField is not part of the closed mapping.
func Apply(m *model.Movement, destField string, value any) error {
	setter, ok := Setters[destField]
	if !ok {
		return fmt.Errorf("unknown destination field %q", destField)
	}
	return setter(m, value)
}
