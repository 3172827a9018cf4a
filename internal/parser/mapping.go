// Package parser implements the Parser/Mapper component (C1): it reads
// delimited tabular AMBRE files and applies a declarative field-mapping
// table to produce typed raw rows, filtered to the country's pivot and
// receivable account sides.
package parser

import "strings"

// FieldMapping is one entry of the declarative mapping table supplied at
// runtime: a destination field, a source expression (a single column name
// or a bracket-concatenation of several), and an optional transform name
// resolved by the transform library (C2). Unknown transform names pass
// the source value through unchanged.
type FieldMapping struct {
	DestField       string
	SourceExpr      string
	TransformName   string
}

// sourceField is one resolved reference inside a (possibly concatenated)
// source expression.
type sourceField struct {
	Name    string
	Literal bool // true for the literal text between bracketed references
}

// parseSourceExpr parses a source expression of the form "[FieldA]&[FieldB]"
// (or a bare column name) into an ordered list of references to
// concatenate. Concatenation is literal string concatenation in
// declaration order, per spec.md section 4.1.
func parseSourceExpr(expr string) []sourceField {
	if !strings.Contains(expr, "[") {
		return []sourceField{{Name: expr}}
	}

	var out []sourceField
	rest := expr
	for {
		start := strings.Index(rest, "[")
		if start == -1 {
			if rest != "" {
				out = append(out, sourceField{Name: rest, Literal: true})
			}
			break
		}
		if start > 0 {
			out = append(out, sourceField{Name: rest[:start], Literal: true})
		}
		end := strings.Index(rest[start:], "]")
		if end == -1 {
			// Unterminated bracket: treat the rest as a literal tail.
			out = append(out, sourceField{Name: rest[start:], Literal: true})
			break
		}
		end += start
		out = append(out, sourceField{Name: rest[start+1 : end]})
		rest = rest[end+1:]
		// Skip a separating '&' between bracket references, if present.
		rest = strings.TrimPrefix(rest, "&")
	}
	return out
}

// resolveSourceExpr concatenates the referenced columns of a header-keyed
// row according to a parsed source expression.
func resolveSourceExpr(refs []sourceField, row map[string]string) string {
	var b strings.Builder
	for _, r := range refs {
		if r.Literal {
			b.WriteString(r.Name)
			continue
		}
		b.WriteString(row[r.Name])
	}
	return b.String()
}
