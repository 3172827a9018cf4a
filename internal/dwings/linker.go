package dwings

import (
	"github.com/ambre-dwings/reconcile/internal/model"
	"github.com/ambre-dwings/reconcile/internal/transform"
	"github.com/shopspring/decimal"
)

// Linker resolves a single movement against one Snapshot of the DWINGS
// reference tables, per the four-step resolution order in spec.md
// section 4.5.
type Linker struct {
	snapshot *Snapshot
}

// NewLinker builds a Linker bound to one Snapshot, held for the duration
// of a single import.
func NewLinker(snapshot *Snapshot) *Linker {
	return &Linker{snapshot: snapshot}
}

// Resolve returns the best-matching DWINGS invoice id, guarantee id, and
// BGPMT commission id for mv. isReceivable must be true when mv belongs
// to the country's receivable account side, enabling step 3's
// receivable-only explicit BGI lookup.
func (l *Linker) Resolve(mv model.Movement, isReceivable bool) (invoiceID, guaranteeID, commissionID string, err error) {
	fields := []string{mv.ReconciliationNum, mv.ReconciliationOriginNum, mv.RawLabel}

	bgpmt := firstNonEmpty(fields, transform.ExtractBGPMT)
	if bgpmt != "" {
		commissionID = bgpmt
	}

	// Step 1: by BGPMT token.
	if bgpmt != "" {
		if inv, ok := l.snapshot.invoicesByBGPMT[bgpmt]; ok {
			return l.finish(inv, bgpmt, fields)
		}
	}

	// Step 2: by strict BGI token, same field order, amount tie-break.
	if bgi := firstNonEmpty(fields, transform.ExtractBGIStrict); bgi != "" {
		if inv, ok := l.bestByToken(bgi, mv.SignedAmount); ok {
			return l.finish(inv, bgpmt, fields)
		}
	}

	// Step 3: receivable movements only, explicit BGI field. A bare
	// 13-digit value is tried in its "BGI"-prefixed form first, then as
	// written.
	if isReceivable && mv.ReceivableInvoiceFromAmbre != "" {
		tokens := []string{mv.ReceivableInvoiceFromAmbre}
		if prefixed := "BGI" + mv.ReceivableInvoiceFromAmbre; transform.ExtractBGIStrict(prefixed) == prefixed {
			tokens = []string{prefixed, mv.ReceivableInvoiceFromAmbre}
		}
		for _, token := range tokens {
			if inv, ok := l.bestByToken(token, mv.SignedAmount); ok {
				return l.finish(inv, bgpmt, fields)
			}
		}
	}

	// Step 4: by guarantee id, date-window then amount tie-break.
	if gua := firstNonEmpty(fields, transform.ExtractGuaranteeID); gua != "" {
		if inv, ok := l.bestByGuarantee(gua, mv); ok {
			return l.finish(inv, bgpmt, fields)
		}
		// No invoice matched the window, but the guarantee token itself is
		// still a usable guarantee id.
		if _, ok := l.snapshot.guaranteesByID[gua]; ok {
			return "", gua, commissionID, nil
		}
	}

	return "", "", commissionID, nil
}

// finish fills in invoiceID/guaranteeID/commissionID once an invoice has
// been chosen, per spec.md section 4.5's "set dwings_guarantee_id from
// the extracted token or, if still empty, from the invoice's
// business-case reference/id."
func (l *Linker) finish(inv model.DWINGSInvoice, bgpmt string, fields []string) (string, string, string, error) {
	guaranteeID := firstNonEmpty(fields, transform.ExtractGuaranteeID)
	if guaranteeID == "" {
		guaranteeID = inv.BusinessCaseRef
	}
	if guaranteeID == "" {
		guaranteeID = inv.BusinessCaseID
	}
	return inv.InvoiceID, guaranteeID, bgpmt, nil
}

// bestByToken picks, among the invoices indexed under token, the one
// whose preferred amount is closest to target. Ties keep the first in
// scan order, per spec.md section 4.5 example 5.
func (l *Linker) bestByToken(token string, target decimal.Decimal) (model.DWINGSInvoice, bool) {
	candidates := l.snapshot.invoicesByToken[token]
	return closestByAmount(candidates, target)
}

// bestByGuarantee picks, among the invoices referencing guaranteeToken's
// business case, the one whose guarantee date window contains mv's
// operation date (falling back to value date), tie-broken by amount
// proximity.
func (l *Linker) bestByGuarantee(guaranteeToken string, mv model.Movement) (model.DWINGSInvoice, bool) {
	candidates := l.snapshot.invoicesByGuarantee[guaranteeToken]
	if len(candidates) == 0 {
		return model.DWINGSInvoice{}, false
	}

	g, hasGuarantee := l.snapshot.guaranteesByID[guaranteeToken]
	if !hasGuarantee {
		return closestByAmount(candidates, mv.SignedAmount)
	}

	ref := mv.OperationDate
	if ref.IsZero() {
		ref = mv.ValueDate
	}
	if !g.Covers(ref) {
		ref = mv.ValueDate
		if !g.Covers(ref) {
			return model.DWINGSInvoice{}, false
		}
	}

	return closestByAmount(candidates, mv.SignedAmount)
}

func firstNonEmpty(fields []string, extract func(string) string) string {
	for _, f := range fields {
		if v := extract(f); v != "" {
			return v
		}
	}
	return ""
}

// closestByAmount returns the candidate whose AmountClosestTo(target) is
// smallest, keeping the first in scan order on exact ties.
func closestByAmount(candidates []model.DWINGSInvoice, target decimal.Decimal) (model.DWINGSInvoice, bool) {
	if len(candidates) == 0 {
		return model.DWINGSInvoice{}, false
	}
	best := candidates[0]
	bestDist := best.AmountClosestTo(target)
	for _, c := range candidates[1:] {
		dist := c.AmountClosestTo(target)
		if dist.LessThan(bestDist) {
			best = c
			bestDist = dist
		}
	}
	return best, true
}
