package dwings

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ambre-dwings/reconcile/internal/model"
	"github.com/shopspring/decimal"
)

// jsonInvoice and jsonGuarantee are the on-disk shapes of one DWINGS
// export file, decimals and dates as strings so the export stays
// human-readable.
type jsonInvoice struct {
	InvoiceID         string `json:"invoice_id"`
	TInvoiceStatus    string `json:"t_invoice_status"`
	BillingAmount     string `json:"billing_amount"`
	RequestedAmount   string `json:"requested_amount"`
	FinalAmount       string `json:"final_amount"`
	BillingCurrency   string `json:"billing_currency"`
	BGPMT             string `json:"bgpmt"`
	PaymentMethod     string `json:"payment_method"`
	SenderReference   string `json:"sender_reference"`
	ReceiverReference string `json:"receiver_reference"`
	BusinessCaseRef   string `json:"business_case_ref"`
	BusinessCaseID    string `json:"business_case_id"`
	MTStatus          string `json:"mt_status"`
	CommIDEmail       bool   `json:"comm_id_email"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	SenderName        string `json:"sender_name"`
	ReceiverName      string `json:"receiver_name"`
}

type jsonGuarantee struct {
	GuaranteeID       string `json:"guarantee_id"`
	GuaranteeStatus   string `json:"guarantee_status"`
	GuaranteeType     string `json:"guarantee_type"`
	OutstandingAmount string `json:"outstanding_amount"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	PartyName         string `json:"party_name"`
}

type jsonDataset struct {
	Invoices   []jsonInvoice   `json:"invoices"`
	Guarantees []jsonGuarantee `json:"guarantees"`
}

// JSONFileLoader is a Loader reading a DWINGS export from a local JSON
// file: a top-level object with "invoices" and "guarantees" arrays.
func JSONFileLoader(path string) (Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("reading dwings export %s: %w", path, err)
	}

	var doc jsonDataset
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Dataset{}, fmt.Errorf("decoding dwings export %s: %w", path, err)
	}

	ds := Dataset{
		Invoices:   make([]model.DWINGSInvoice, len(doc.Invoices)),
		Guarantees: make([]model.DWINGSGuarantee, len(doc.Guarantees)),
	}

	for i, inv := range doc.Invoices {
		billing, err := parseAmount(inv.BillingAmount)
		if err != nil {
			return Dataset{}, fmt.Errorf("invoice %s billing_amount: %w", inv.InvoiceID, err)
		}
		requested, err := parseAmount(inv.RequestedAmount)
		if err != nil {
			return Dataset{}, fmt.Errorf("invoice %s requested_amount: %w", inv.InvoiceID, err)
		}
		final, err := parseAmount(inv.FinalAmount)
		if err != nil {
			return Dataset{}, fmt.Errorf("invoice %s final_amount: %w", inv.InvoiceID, err)
		}
		start, err := parseAmountDate(inv.StartDate)
		if err != nil {
			return Dataset{}, fmt.Errorf("invoice %s start_date: %w", inv.InvoiceID, err)
		}
		end, err := parseAmountDate(inv.EndDate)
		if err != nil {
			return Dataset{}, fmt.Errorf("invoice %s end_date: %w", inv.InvoiceID, err)
		}

		ds.Invoices[i] = model.DWINGSInvoice{
			InvoiceID:         inv.InvoiceID,
			TInvoiceStatus:    inv.TInvoiceStatus,
			BillingAmount:     billing,
			RequestedAmount:   requested,
			FinalAmount:       final,
			BillingCurrency:   inv.BillingCurrency,
			BGPMT:             inv.BGPMT,
			PaymentMethod:     inv.PaymentMethod,
			SenderReference:   inv.SenderReference,
			ReceiverReference: inv.ReceiverReference,
			BusinessCaseRef:   inv.BusinessCaseRef,
			BusinessCaseID:    inv.BusinessCaseID,
			MTStatus:          inv.MTStatus,
			CommIDEmail:       inv.CommIDEmail,
			StartDate:         start,
			EndDate:           end,
			SenderName:        inv.SenderName,
			ReceiverName:      inv.ReceiverName,
		}
	}

	for i, g := range doc.Guarantees {
		outstanding, err := parseAmount(g.OutstandingAmount)
		if err != nil {
			return Dataset{}, fmt.Errorf("guarantee %s outstanding_amount: %w", g.GuaranteeID, err)
		}
		start, err := parseAmountDate(g.StartDate)
		if err != nil {
			return Dataset{}, fmt.Errorf("guarantee %s start_date: %w", g.GuaranteeID, err)
		}
		end, err := parseAmountDate(g.EndDate)
		if err != nil {
			return Dataset{}, fmt.Errorf("guarantee %s end_date: %w", g.GuaranteeID, err)
		}

		ds.Guarantees[i] = model.DWINGSGuarantee{
			GuaranteeID:       g.GuaranteeID,
			GuaranteeStatus:   g.GuaranteeStatus,
			GuaranteeType:     g.GuaranteeType,
			OutstandingAmount: outstanding,
			StartDate:         start,
			EndDate:           end,
			PartyName:         g.PartyName,
		}
	}

	return ds, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseAmountDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
