package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"bizbalance/internal/core"
)

var (
	ErrEmptyFile     = errors.New("csv file is empty")
	ErrUnknownHeader = errors.New("csv header not recognised")
)

// Row is a parsed transaction with the file line it came from.
type Row struct {
	Line        int
	Transaction core.Transaction
}

// LineError reports a row that could not be imported.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e LineError) Unwrap() error { return e.Err }

// Parsed is the outcome of reading an import file.
type Parsed struct {
	Locale Locale
	Rows   []Row
	Errors []LineError
}

// column positions after header resolution
type columns struct {
	kind, desc, amount, date, category int
}

// Parse reads a file in the export format of either locale. The ID column is
// ignored and every row is assigned to ownerID. Rows that fail validation are
// reported in Errors; the error return is reserved for unreadable input or a
// missing header.
func Parse(r io.Reader, ownerID string) (Parsed, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Parsed{}, ErrEmptyFile
	}
	if err != nil {
		return Parsed{}, fmt.Errorf("read header: %w", err)
	}

	loc, cols, err := resolveHeader(header)
	if err != nil {
		return Parsed{}, err
	}

	out := Parsed{Locale: loc}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				out.Errors = append(out.Errors, LineError{Line: perr.Line, Err: perr.Err})
				continue
			}
			return out, fmt.Errorf("read csv: %w", err)
		}
		if blank(record) {
			continue
		}
		line, _ := cr.FieldPos(0)

		t, err := parseRecord(record, cols, ownerID)
		if err != nil {
			out.Errors = append(out.Errors, LineError{Line: line, Err: err})
			continue
		}
		out.Rows = append(out.Rows, Row{Line: line, Transaction: t})
	}
	return out, nil
}

func resolveHeader(header []string) (Locale, columns, error) {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	for _, loc := range []Locale{English, Portuguese} {
		want := loc.labels().header
		idx := map[string]int{}
		for i, h := range norm {
			idx[h] = i
		}
		cols := columns{}
		ok := true
		for j, dst := range []*int{&cols.kind, &cols.desc, &cols.amount, &cols.date, &cols.category} {
			i, found := idx[strings.ToLower(want[j+1])]
			if !found {
				ok = false
				break
			}
			*dst = i
		}
		if ok {
			return loc, cols, nil
		}
	}
	return "", columns{}, fmt.Errorf("%w: %s", ErrUnknownHeader, strings.Join(header, ","))
}

func parseRecord(rec []string, cols columns, ownerID string) (core.Transaction, error) {
	field := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	kind, err := core.ParseKind(field(cols.kind))
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseMoney(field(cols.amount))
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(field(cols.date))
	if err != nil {
		return core.Transaction{}, err
	}
	t := core.Transaction{
		OwnerID:     ownerID,
		Kind:        kind,
		Description: field(cols.desc),
		Amount:      amount,
		Date:        date,
		Category:    field(cols.category),
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
