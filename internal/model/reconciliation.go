package model

import "time"

// ActionStatus is the tri-state status carried on a Reconciliation row.
type ActionStatus int

const (
	ActionStatusUnset ActionStatus = iota
	ActionStatusPending
	ActionStatusDone
)

// Action identifiers produced by the rule engine truth table.
type Action string

const (
	ActionNone    Action = ""
	ActionNA      Action = "N/A"
	ActionMatch   Action = "Match"
	ActionTrigger Action = "Trigger"
)

// IsAssignable reports whether an action value should set
// ActionStatus/ActionDate when assigned, per the invariant in spec.md
// section 3: action == N/A (or null) implies status/date stay null.
func (a Action) IsAssignable() bool {
	return a != ActionNone && a != ActionNA
}

// KPI identifiers produced by the rule engine truth table.
type KPI string

// Reconciliation is the 1:1 counterpart row to a Movement, carrying
// DWINGS linkage and the business action/KPI state.
type Reconciliation struct {
	ID                        string // foreign key to Movement.ID
	DWINGSInvoiceID           string
	DWINGSGuaranteeID         string
	DWINGSCommissionID        string // BGPMT token
	Action                    Action
	ActionStatus              ActionStatus
	ActionDate                *time.Time
	KPI                       KPI
	IncidentType              string
	RiskyItem                 bool
	ReasonNonRisky            string
	Comments                  string // append-only, prefix-stamped entries
	InternalInvoiceReference  string
	FirstClaimDate            *time.Time
	LastClaimDate             *time.Time
	ToRemind                  bool
	ToRemindDate              *time.Time
	ACK                       bool
	SwiftCode                 string
	PaymentReference          string
	TriggerDate               *time.Time
	Assignee                  string
	Version                   int
	CreationDate              time.Time
	LastModified              time.Time
	ModifiedBy                string
	DeleteDate                *time.Time
}

// IsArchived reports whether the reconciliation's delete_date is set.
func (r Reconciliation) IsArchived() bool { return r.DeleteDate != nil }

// HasDWINGSLink reports whether any of the invoice/guarantee/commission
// links are populated, feeding RuleContext.HasDWINGSLink.
func (r Reconciliation) HasDWINGSLink() bool {
	return r.DWINGSInvoiceID != "" || r.DWINGSGuaranteeID != "" || r.DWINGSCommissionID != ""
}

// AppendComment prefix-appends a timestamped, attributed comment line.
// Comments are never overwritten silently by rules (spec.md section 3).
func (r *Reconciliation) AppendComment(now time.Time, user, text string) {
	line := "[" + now.UTC().Format(time.RFC3339) + "] " + user + ": " + text
	if r.Comments == "" {
		r.Comments = line
		return
	}
	r.Comments = line + "\n" + r.Comments
}

// AssignAction sets Action and applies the default status/date rule:
// N/A or empty clears status/date; anything else defaults to pending/now
// unless the caller already set a more specific status.
func (r *Reconciliation) AssignAction(action Action, now time.Time) {
	r.Action = action
	if !action.IsAssignable() {
		r.ActionStatus = ActionStatusUnset
		r.ActionDate = nil
		return
	}
	if r.ActionStatus == ActionStatusUnset {
		r.ActionStatus = ActionStatusPending
		t := now
		r.ActionDate = &t
	}
}
