// Package ruleengine implements the truth-table evaluator (C6): a
// data-driven, top-to-bottom rule table computing the automatic
// Action/KPI baseline for a reconciliation row from transaction and
// DWINGS-linkage context.
//
// Grounded on the preference for plain data over inheritance hierarchies
// shown by the sync package's per-entity field-mapping tables in
// sync/base_sync.go, which configure behavior through struct literals
// instead of subclassing; generalized here to predicate+outcome rule
// rows instead of field mappings.
package ruleengine

import "github.com/shopspring/decimal"

// Scope names which evaluation pass a Rule participates in.
type Scope string

const (
	ScopeImport Scope = "Import"
	ScopeEdit   Scope = "Edit"
	ScopeBoth   Scope = "Both"
)

// matches reports whether a rule declared with scope s should run during
// an evaluation pass requested with scope want.
func (s Scope) matches(want Scope) bool {
	return s == want || s == ScopeBoth
}

// RuleContext carries every fact a Rule's predicate may inspect. Built
// fresh per reconciliation row by the caller (C7), using the grouping
// helpers in this package for the is_grouped/is_amount_match/
// missing_amount fields.
type RuleContext struct {
	CountryID         string
	IsPivot           bool
	GuaranteeType     string
	TransactionType   string
	HasDWINGSLink     bool
	IsGrouped         bool
	IsAmountMatch     bool
	MissingAmount     decimal.Decimal
	Sign              string // "C" or "D"
	BGI               string
	TriggerDateIsNull bool
	DaysSinceTrigger  int
	OperationDaysAgo  int
	IsMatched         bool
	HasManualMatch    bool
	IsFirstRequest    bool
	DaysSinceReminder int
	CurrentActionID   string
	IsMTAcked         bool
	HasCommIDEmail    bool
	IsBGIInitiated    bool
}

// Outcome is what a matching Rule assigns to a reconciliation row.
type Outcome struct {
	Action string
	KPI    string
}
