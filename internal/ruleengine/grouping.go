package ruleengine

import "github.com/shopspring/decimal"

// amountMatchTolerance is the 0.01 tolerance for is_amount_match; a
// group's |missing_amount| must be strictly below it.
var amountMatchTolerance = decimal.NewFromFloat(0.01)

// GroupingInput is the per-movement input to Group: enough to compute
// the priority key and the balanced-pair check, without requiring the
// full model.Movement/Reconciliation types.
type GroupingInput struct {
	IsPivot      bool
	SignedAmount decimal.Decimal
	BGPMT        string
	InvoiceID    string
	GuaranteeID  string
}

// GroupResult is Group's per-input output, in the same order as the
// inputs slice.
type GroupResult struct {
	IsGrouped     bool
	IsAmountMatch bool
	MissingAmount decimal.Decimal
}

// priorityKey picks BGPMT over invoice id over guarantee id, per
// spec.md section 4.6's "priority key = BGPMT > invoice id > guarantee
// id." Returns "" if none are present, meaning the input groups alone.
func priorityKey(in GroupingInput) string {
	switch {
	case in.BGPMT != "":
		return "bgpmt:" + in.BGPMT
	case in.InvoiceID != "":
		return "invoice:" + in.InvoiceID
	case in.GuaranteeID != "":
		return "guarantee:" + in.GuaranteeID
	default:
		return ""
	}
}

// Group computes is_grouped/is_amount_match/missing_amount for every
// input, per spec.md section 4.6: movements sharing a non-empty priority
// key are grouped together; a group is "grouped" iff it contains at
// least one pivot-side and one receivable-side movement;
// missing_amount = sum(receivable.signed_amount) + sum(pivot.signed_amount);
// is_amount_match = is_grouped && |missing_amount| < tolerance.
func Group(inputs []GroupingInput) []GroupResult {
	type bucket struct {
		indices    []int
		hasPivot   bool
		hasReceiv  bool
		sum        decimal.Decimal
	}

	buckets := make(map[string]*bucket)
	order := make([]string, 0)

	for i, in := range inputs {
		key := priorityKey(in)
		if key == "" {
			continue
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{sum: decimal.Zero}
			buckets[key] = b
			order = append(order, key)
		}
		b.indices = append(b.indices, i)
		if in.IsPivot {
			b.hasPivot = true
		} else {
			b.hasReceiv = true
		}
		b.sum = b.sum.Add(in.SignedAmount)
	}

	results := make([]GroupResult, len(inputs))
	for _, key := range order {
		b := buckets[key]
		grouped := b.hasPivot && b.hasReceiv
		amountMatch := b.sum.Abs().LessThan(amountMatchTolerance)
		for _, idx := range b.indices {
			results[idx] = GroupResult{
				IsGrouped:     grouped,
				IsAmountMatch: grouped && amountMatch,
				MissingAmount: b.sum,
			}
		}
	}

	return results
}
