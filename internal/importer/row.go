package importer

import (
	"fmt"

	"github.com/ambre-dwings/reconcile/internal/model"
	"github.com/ambre-dwings/reconcile/internal/parser"
	"github.com/ambre-dwings/reconcile/internal/transform"
)

// rowToMovement applies the closed setter table to every destination
// field in row, then runs the coherence checks spec.md section 4.8 step
// 8 requires: required fields present, amount/date present, currency
// non-empty.
func rowToMovement(row parser.RawRow, countryID string) (model.Movement, error) {
	mv := model.Movement{Country: countryID}

	for destField, value := range row {
		if err := transform.Apply(&mv, destField, value); err != nil {
			return model.Movement{}, fmt.Errorf("applying field %q: %w", destField, err)
		}
	}

	if mv.AccountID == "" {
		return model.Movement{}, fmt.Errorf("%w: missing Account_ID", ErrValidation)
	}
	if mv.EventNum == "" {
		return model.Movement{}, fmt.Errorf("%w: missing Event_Num", ErrValidation)
	}
	if mv.Currency == "" {
		return model.Movement{}, fmt.Errorf("%w: missing CCY", ErrValidation)
	}
	if _, ok := row["SignedAmount"]; !ok {
		return model.Movement{}, fmt.Errorf("%w: missing signed amount", ErrValidation)
	}
	if mv.OperationDate.IsZero() {
		return model.Movement{}, fmt.Errorf("%w: missing Operation_Date", ErrValidation)
	}

	return mv, nil
}
