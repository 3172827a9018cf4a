package dwings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFileLoaderParsesInvoicesAndGuarantees(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fr.json")
	content := `{
		"invoices": [
			{"invoice_id": "BGI0000000001234", "billing_amount": "520.00", "bgpmt": "BGPMT123"}
		],
		"guarantees": [
			{"guarantee_id": "GUAR-1", "outstanding_amount": "1000.00", "start_date": "2024-01-01", "end_date": "2024-12-31"}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	ds, err := JSONFileLoader(path)
	require.NoError(t, err)
	require.Len(t, ds.Invoices, 1)
	require.Len(t, ds.Guarantees, 1)

	assert.Equal(t, "BGPMT123", ds.Invoices[0].BGPMT)
	assert.True(t, ds.Invoices[0].BillingAmount.Equal(decimal.NewFromFloat(520.00)))
	assert.Equal(t, "GUAR-1", ds.Guarantees[0].GuaranteeID)
}

func TestJSONFileLoaderErrorsOnMissingFile(t *testing.T) {
	_, err := JSONFileLoader("/no/such/file.json")
	assert.Error(t, err)
}
