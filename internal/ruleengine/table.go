package ruleengine

// Rule is one row of a Table: a scope tag, a predicate over RuleContext,
// and the mutation it applies to an Outcome on match.
type Rule struct {
	Name      string
	Scope     Scope
	Predicate func(RuleContext) bool
	Apply     func(*Outcome)
}

// Table is evaluated top-to-bottom; the first Rule whose Scope matches
// the requested scope and whose Predicate returns true wins.
type Table []Rule

// Evaluate returns the Outcome of the first matching rule for the given
// scope, or a zero Outcome if none match.
func (t Table) Evaluate(scope Scope, ctx RuleContext) Outcome {
	var out Outcome
	for _, r := range t {
		if !r.Scope.matches(scope) {
			continue
		}
		if !r.Predicate(ctx) {
			continue
		}
		r.Apply(&out)
		return out
	}
	return out
}

// MatchRule constructs a Rule firing when ctx looks like a fully paired,
// matched movement: has a DWINGS link and a balanced amount-matched
// group.
func MatchRule() Rule {
	return Rule{
		Name:  "matched-pivot",
		Scope: ScopeImport,
		Predicate: func(ctx RuleContext) bool {
			return ctx.HasDWINGSLink && ctx.IsGrouped && ctx.IsAmountMatch && ctx.IsPivot
		},
		Apply: func(o *Outcome) {
			o.Action = "Match"
			o.KPI = "Paid"
		},
	}
}

// TriggerRule constructs a Rule firing for the receivable-side half of a
// paired, matched group.
func TriggerRule() Rule {
	return Rule{
		Name:  "matched-receivable",
		Scope: ScopeImport,
		Predicate: func(ctx RuleContext) bool {
			return ctx.HasDWINGSLink && ctx.IsGrouped && ctx.IsAmountMatch && !ctx.IsPivot
		},
		Apply: func(o *Outcome) {
			o.Action = "Trigger"
			o.KPI = "Paid"
		},
	}
}

// UnlinkedRule constructs the catch-all fallback Rule for rows with no
// DWINGS link at all: no automatic action, a "to categorize" KPI.
func UnlinkedRule() Rule {
	return Rule{
		Name:  "unlinked-fallback",
		Scope: ScopeBoth,
		Predicate: func(ctx RuleContext) bool {
			return !ctx.HasDWINGSLink
		},
		Apply: func(o *Outcome) {
			o.Action = "N/A"
			o.KPI = "ToCategorize"
		},
	}
}

// DefaultTable returns the baseline table: matched pairs first, then the
// unlinked fallback. Deployments extend this with deployment-specific
// rows ahead of UnlinkedRule.
func DefaultTable() Table {
	return Table{
		MatchRule(),
		TriggerRule(),
		UnlinkedRule(),
	}
}
