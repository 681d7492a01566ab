package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func (idx HeaderIndex) raw(row []string, source string) string {
	pos, ok := idx[strings.ToLower(source)]
	if !ok || pos >= len(row) {
		return ""
	}
	return row[pos]
}

// Cell returns the cleaned value of the source column in row, or "" when
// the header lacks the column or the row is short.
func (idx HeaderIndex) Cell(row []string, source string) string {
	return CleanCell(idx.raw(row, source))
}

// Cells returns the cleaned values of several source columns.
func (idx HeaderIndex) Cells(row []string, sources []string) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = idx.Cell(row, s)
	}
	return out
}

// Value returns the cell mapped by m, cleaned for its type. Passwords are
// returned byte for byte, or "" when blank. Text is trimmed and unwrapped
// from ="..." but keeps its quotes.
func (idx HeaderIndex) Value(row []string, m ColumnMapping) string {
	v := idx.raw(row, m.Source)
	switch m.Type {
	case FieldPassword:
		if strings.TrimSpace(v) == "" {
			return ""
		}
		return v
	case FieldText:
		return CleanText(v)
	default:
		return CleanCell(v)
	}
}

// Coerce converts a cleaned, non-empty cell into the value inserted for m.
// Timestamps without an offset are read in loc. Password columns are
// returned as-is; hashing is the importer's job.
func Coerce(m ColumnMapping, raw string, loc *time.Location) (any, error) {
	switch m.Type {
	case FieldText, FieldPassword:
		return raw, nil

	case FieldEnum:
		for _, v := range m.EnumValues {
			if strings.EqualFold(v, raw) {
				return v, nil
			}
		}
		return nil, fmt.Errorf("invalid enum for %q: %q (allowed: %s)", m.Source, raw, strings.Join(m.EnumValues, ", "))

	case FieldDate:
		t, err := ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Source, err)
		}
		return pgtype.Date{Time: t, Valid: true}, nil

	case FieldTimestamp:
		t, err := ParseTimestamp(raw, loc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Source, err)
		}
		return pgtype.Timestamptz{Time: t, Valid: true}, nil

	case FieldNumeric:
		d, err := ParseDecimal(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Source, err)
		}
		return DecimalToPgNumeric(d), nil

	case FieldCurrency:
		d, err := ParseCurrency(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Source, err)
		}
		return DecimalToPgNumeric(d), nil

	case FieldInt:
		n, err := ParseInt(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Source, err)
		}
		return n, nil

	default:
		return nil, fmt.Errorf("%s: unsupported field type %v", m.Source, m.Type)
	}
}

// Text returns a text column of the record.
func (r Record) Text(col string) (string, bool) {
	s, ok := r[col].(string)
	return s, ok && s != ""
}

// Decimal returns a numeric column of the record.
func (r Record) Decimal(col string) (decimal.Decimal, bool) {
	switch v := r[col].(type) {
	case pgtype.Numeric:
		if !v.Valid || v.Int == nil {
			return decimal.Zero, false
		}
		return decimal.NewFromBigInt(v.Int, v.Exp), true
	case decimal.Decimal:
		return v, true
	case int64:
		return decimal.NewFromInt(v), true
	default:
		return decimal.Zero, false
	}
}
