package reconcile

import (
	"testing"
	"time"

	"github.com/ambre-dwings/reconcile/internal/dwings"
	"github.com/ambre-dwings/reconcile/internal/model"
	"github.com/ambre-dwings/reconcile/internal/ruleengine"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

func testCountry() model.Country {
	return model.Country{ID: "FR", AmbrePivot: "P", AmbreReceivable: "R"}
}

func newLinker(t *testing.T, ds dwings.Dataset) *dwings.Linker {
	t.Helper()
	cache := dwings.NewCache(func(string) (dwings.Dataset, error) { return ds, nil })
	snap, err := cache.Snapshot("test")
	require.NoError(t, err)
	return dwings.NewLinker(snap)
}

func TestBuildFreshImportNoLinkKeepsBaselineActions(t *testing.T) {
	op := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	pivot := model.Movement{ID: "m-pivot", AccountID: "P", SignedAmount: decimal.NewFromInt(100), OperationDate: op}
	receivable := model.Movement{ID: "m-recv", AccountID: "R", SignedAmount: decimal.NewFromInt(-100), OperationDate: op}

	linker := newLinker(t, dwings.Dataset{})
	rows, err := Build([]model.Movement{pivot, receivable}, Options{
		Country: testCountry(),
		Linker:  linker,
		Rules:   ruleengine.DefaultTable(),
		Now:     fixedNow,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for _, r := range rows {
		assert.Empty(t, r.DWINGSInvoiceID)
		assert.Equal(t, model.ActionNA, r.Action)
		assert.Equal(t, model.ActionStatusUnset, r.ActionStatus)
	}
}

func TestBuildPairedViaInvoiceSetsMatchAndTrigger(t *testing.T) {
	op := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	pivot := model.Movement{
		ID: "m-pivot", AccountID: "P", SignedAmount: decimal.NewFromInt(100), OperationDate: op,
		RawLabel: "payment BGI0000000001234 ref",
	}
	receivable := model.Movement{
		ID: "m-recv", AccountID: "R", SignedAmount: decimal.NewFromInt(-100), OperationDate: op,
		ReceivableInvoiceFromAmbre: "0000000001234",
	}

	ds := dwings.Dataset{Invoices: []model.DWINGSInvoice{
		{InvoiceID: "BGI0000000001234", BillingAmount: decimal.NewFromInt(100)},
		{InvoiceID: "0000000001234", BillingAmount: decimal.NewFromInt(100)},
	}}
	linker := newLinker(t, ds)

	rows, err := Build([]model.Movement{pivot, receivable}, Options{
		Country: testCountry(),
		Linker:  linker,
		Rules:   ruleengine.DefaultTable(),
		Now:     fixedNow,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[string]model.Reconciliation{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	assert.Equal(t, model.ActionMatch, byID["m-pivot"].Action)
	assert.Equal(t, model.ActionTrigger, byID["m-recv"].Action)
	assert.Equal(t, model.ActionStatusPending, byID["m-pivot"].ActionStatus)
	require.NotNil(t, byID["m-pivot"].ActionDate)
}

func TestBuildOverrideRestrictedToBatch(t *testing.T) {
	op := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	onlyPivot := model.Movement{
		ID: "m-pivot", AccountID: "P", SignedAmount: decimal.NewFromInt(100), OperationDate: op,
		RawLabel: "payment BGI0000000001234 ref",
	}

	ds := dwings.Dataset{Invoices: []model.DWINGSInvoice{
		{InvoiceID: "BGI0000000001234", BillingAmount: decimal.NewFromInt(100)},
	}}
	linker := newLinker(t, ds)

	rows, err := Build([]model.Movement{onlyPivot}, Options{
		Country: testCountry(),
		Linker:  linker,
		Rules:   ruleengine.DefaultTable(),
		Now:     fixedNow,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEqual(t, model.ActionMatch, rows[0].Action, "a lone pivot row with no paired receivable in this batch keeps its baseline action")
}
