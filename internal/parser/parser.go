package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ambre-dwings/reconcile/internal/transform"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidInput is the sentinel wrapped by every parser-level failure:
// a missing/unreadable file, a header that doesn't cover the required
// destinations, or a cell that cannot be parsed to its declared type.
var ErrInvalidInput = errors.New("invalid input")

// ErrMissingAccountSide is returned when, after filtering rows to the
// country's pivot/receivable accounts, one of the two sides has no rows
// at all.
var ErrMissingAccountSide = errors.New("missing account side")

// RawRow is one parsed, typed input row: destination field -> typed
// value, ready for transform.Apply against a model.Movement.
type RawRow map[string]any

// AccountSides names the two account codes a country's rows must belong
// to; rows for any other account are dropped by Read.
type AccountSides struct {
	Pivot      string
	Receivable string
}

// Options configures a single Read call.
type Options struct {
	Mappings   []FieldMapping
	Transforms map[string]transform.Func
	Accounts   AccountSides
	// AccountSourceField names the raw header column Read inspects to
	// decide whether a row belongs to the pivot or receivable side. It
	// must also appear as a source reference in Mappings (normally the
	// Account_ID destination's source expression).
	AccountSourceField string
}

// Read reads one or more delimited files, applies the declarative
// mapping, and returns the filtered, typed rows. Rows whose account is
// neither the pivot nor the receivable account are dropped; if after
// filtering a side is entirely absent, the import aborts with
// ErrMissingAccountSide.
//
// The (at most two) input files are read concurrently via
// golang.org/x/sync/errgroup; every read runs to completion and the first
// file error is returned.
func Read(paths []string, opts Options) ([]RawRow, error) {
	perFile := make([][]RawRow, len(paths))

	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			rows, err := readOneFile(path, opts)
			if err != nil {
				return err
			}
			perFile[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Rows are keyed by destination field, so find the field that the
	// account header column is mapped onto.
	acctKey := opts.AccountSourceField
	for _, m := range opts.Mappings {
		if m.SourceExpr == opts.AccountSourceField {
			acctKey = m.DestField
			break
		}
	}

	var all []RawRow
	sawPivot := false
	sawReceivable := false

	for _, rows := range perFile {
		for _, r := range rows {
			acct, _ := r[acctKey].(string)
			switch acct {
			case opts.Accounts.Pivot:
				sawPivot = true
			case opts.Accounts.Receivable:
				sawReceivable = true
			default:
				continue
			}
			all = append(all, r)
		}
	}

	if !sawPivot || !sawReceivable {
		return nil, fmt.Errorf("%w: pivot present=%v receivable present=%v", ErrMissingAccountSide, sawPivot, sawReceivable)
	}

	return all, nil
}

func readOneFile(path string, opts Options) ([]RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrInvalidInput, path, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header of %s: %v", ErrInvalidInput, path, err)
	}

	colIndex := make(map[string]int, len(header))
	for i, h := range header {
		colIndex[strings.TrimSpace(h)] = i
	}

	parsedExprs := make([][]sourceField, len(opts.Mappings))
	for i, m := range opts.Mappings {
		refs := parseSourceExpr(m.SourceExpr)
		for _, r := range refs {
			if r.Literal {
				continue
			}
			if _, ok := colIndex[r.Name]; !ok {
				return nil, fmt.Errorf("%w: header of %s missing required column %q for destination %q",
					ErrInvalidInput, path, r.Name, m.DestField)
			}
		}
		parsedExprs[i] = refs
	}

	var rows []RawRow
	lineNum := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: reading %s line %d: %v", ErrInvalidInput, path, lineNum, err)
		}
		lineNum++

		rowByHeader := make(map[string]string, len(header))
		for name, idx := range colIndex {
			if idx < len(record) {
				rowByHeader[name] = record[idx]
			}
		}

		row := make(RawRow, len(opts.Mappings))
		for i, m := range opts.Mappings {
			raw := resolveSourceExpr(parsedExprs[i], rowByHeader)

			if fn, ok := opts.Transforms[m.TransformName]; ok {
				raw = fn(raw)
			}

			typed, err := typeForDest(m.DestField, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s line %d field %q: %v", ErrInvalidInput, path, lineNum, m.DestField, err)
			}
			row[m.DestField] = typed
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// typeForDest converts a raw string cell to the typed value the
// destination field expects, per the closed setter table's types.
func typeForDest(destField, raw string) (any, error) {
	switch destField {
	case "SignedAmount", "LocalSignedAmount":
		d, err := decimal.NewFromString(ParseDecimalSeparator(raw))
		if err != nil {
			return nil, fmt.Errorf("parsing decimal %q: %w", raw, err)
		}
		return d, nil
	case "Operation_Date", "Value_Date":
		t, err := ParseDate(raw)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return raw, nil
	}
}
