package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DWINGSInvoice is a read-only reference record from the DWINGS system.
type DWINGSInvoice struct {
	InvoiceID           string
	TInvoiceStatus      string
	BillingAmount       decimal.Decimal
	RequestedAmount     decimal.Decimal
	FinalAmount         decimal.Decimal
	BillingCurrency     string
	BGPMT               string // payment token
	PaymentMethod       string
	SenderReference     string
	ReceiverReference   string
	BusinessCaseRef     string
	BusinessCaseID      string
	MTStatus            string
	CommIDEmail         bool
	StartDate           time.Time
	EndDate             time.Time
	SenderName          string
	ReceiverName        string
}

// AmountClosestTo returns the absolute distance between this invoice's
// preferred amount (billing, then requested, then final) and target,
// used by the DWINGS linker's amount tie-break (spec.md section 4.5).
func (i DWINGSInvoice) AmountClosestTo(target decimal.Decimal) decimal.Decimal {
	amt := i.BillingAmount
	if amt.IsZero() {
		amt = i.RequestedAmount
	}
	if amt.IsZero() {
		amt = i.FinalAmount
	}
	return amt.Sub(target).Abs()
}

// DWINGSGuarantee is a read-only reference record from the DWINGS system.
type DWINGSGuarantee struct {
	GuaranteeID       string
	GuaranteeStatus   string
	GuaranteeType     string
	OutstandingAmount decimal.Decimal
	StartDate         time.Time
	EndDate           time.Time
	PartyName         string
}

// Covers reports whether the guarantee's validity window contains t.
func (g DWINGSGuarantee) Covers(t time.Time) bool {
	if g.StartDate.IsZero() && g.EndDate.IsZero() {
		return true
	}
	if !g.StartDate.IsZero() && t.Before(g.StartDate) {
		return false
	}
	if !g.EndDate.IsZero() && t.After(g.EndDate) {
		return false
	}
	return true
}
