// Package reconcile implements the Reconciliation Builder (C7): for one
// import batch, it invokes the DWINGS linker (C5) and the rule engine
// (C6) to produce insert-only Reconciliation rows, then applies the
// batch-scoped cross-side Match/Trigger override.
//
// Grounded on the per-entity "derive then bulk-write" shape in
// sync/base_sync.go (ProcessSimpleRecord builds a record before any
// write happens), generalized from a single derived record to the
// two-pass build-then-override sequence spec.md section 4.6 requires.
package reconcile

import (
	"time"

	"github.com/ambre-dwings/reconcile/internal/dwings"
	"github.com/ambre-dwings/reconcile/internal/model"
	"github.com/ambre-dwings/reconcile/internal/ruleengine"
)

// Options configures a Build call.
type Options struct {
	Country    model.Country
	Linker     *dwings.Linker
	Rules      ruleengine.Table
	Now        func() time.Time
	ModifiedBy string
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// Build derives one Reconciliation per input movement, links it to
// DWINGS, evaluates the baseline truth table, and then applies the
// cross-side override across the batch. Movements are expected to carry
// their final Movement.ID (the diff engine's business key), which Build
// reuses 1:1 as Reconciliation.ID.
func Build(batch []model.Movement, opts Options) ([]model.Reconciliation, error) {
	now := opts.now()

	rows := make([]model.Reconciliation, len(batch))
	isPivot := make([]bool, len(batch))
	groupInputs := make([]ruleengine.GroupingInput, len(batch))

	for i, mv := range batch {
		pivot := model.IsPivot(mv.AccountID, opts.Country)
		isPivot[i] = pivot

		invoiceID, guaranteeID, commissionID, err := opts.Linker.Resolve(mv, !pivot)
		if err != nil {
			return nil, err
		}

		row := model.Reconciliation{
			ID:                 mv.ID,
			DWINGSInvoiceID:    invoiceID,
			DWINGSGuaranteeID:  guaranteeID,
			DWINGSCommissionID: commissionID,
			Version:            1,
			CreationDate:       now,
			LastModified:       now,
			ModifiedBy:         opts.ModifiedBy,
		}
		rows[i] = row

		groupInputs[i] = ruleengine.GroupingInput{
			IsPivot:      pivot,
			SignedAmount: mv.SignedAmount,
			BGPMT:        commissionID,
			InvoiceID:    invoiceID,
			GuaranteeID:  guaranteeID,
		}
	}

	groups := ruleengine.Group(groupInputs)

	for i := range rows {
		sign := "D"
		if batch[i].SignedAmount.IsPositive() {
			sign = "C"
		}
		ctx := ruleengine.RuleContext{
			CountryID:     opts.Country.ID,
			IsPivot:       isPivot[i],
			HasDWINGSLink: rows[i].HasDWINGSLink(),
			IsGrouped:     groups[i].IsGrouped,
			IsAmountMatch: groups[i].IsAmountMatch,
			MissingAmount: groups[i].MissingAmount,
			Sign:          sign,
			BGI:           rows[i].DWINGSInvoiceID,
		}

		if rows[i].Action == model.ActionNone {
			outcome := opts.Rules.Evaluate(ruleengine.ScopeImport, ctx)
			rows[i].AssignAction(model.Action(outcome.Action), now)
			rows[i].KPI = model.KPI(outcome.KPI)
		}
	}

	applyCrossSideOverride(rows, isPivot, now)

	return rows, nil
}

// applyCrossSideOverride implements spec.md section 4.6 step 4: group
// the batch's reconciliations by non-empty DWINGSInvoiceID; in any group
// containing both a pivot-side and a receivable-side row, override the
// baseline action to Match (pivot) / Trigger (receivable). Restricted to
// the current batch, per the Open Question in spec.md section 9
// resolved as "batch-scoped only."
func applyCrossSideOverride(rows []model.Reconciliation, isPivot []bool, now time.Time) {
	type group struct {
		indices   []int
		hasPivot  bool
		hasReceiv bool
	}

	groups := make(map[string]*group)
	order := make([]string, 0)

	for i, row := range rows {
		if row.DWINGSInvoiceID == "" {
			continue
		}
		g, ok := groups[row.DWINGSInvoiceID]
		if !ok {
			g = &group{}
			groups[row.DWINGSInvoiceID] = g
			order = append(order, row.DWINGSInvoiceID)
		}
		g.indices = append(g.indices, i)
		if isPivot[i] {
			g.hasPivot = true
		} else {
			g.hasReceiv = true
		}
	}

	for _, key := range order {
		g := groups[key]
		if !g.hasPivot || !g.hasReceiv {
			continue
		}
		for _, idx := range g.indices {
			if isPivot[idx] {
				rows[idx].AssignAction(model.ActionMatch, now)
			} else {
				rows[idx].AssignAction(model.ActionTrigger, now)
			}
		}
	}
}
