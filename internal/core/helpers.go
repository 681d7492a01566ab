package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// keySeparator joins natural key parts. It cannot appear in cleaned CSV text.
const keySeparator = "\x1f"

// nullKeyPart stands in for SQL NULL inside a duplicate-suppression key.
const nullKeyPart = "\x00"

// quoteIdentifier safely quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteColumns(cols []string) []string {
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdentifier(col)
	}
	return quoted
}

// joinKey builds the cache key for a normalized natural key.
func joinKey(parts []string) string {
	return strings.Join(parts, keySeparator)
}

// sortedColumns returns the record's columns in a stable order so generated
// statements are deterministic.
func sortedColumns(rec Record) []string {
	cols := make([]string, 0, len(rec))
	for c := range rec {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// canonicalValue renders a record value for equality comparison. Values
// that compare equal in PostgreSQL render identically.
func canonicalValue(v any) string {
	switch x := v.(type) {
	case nil:
		return nullKeyPart
	case string:
		return x
	case int64:
		return fmt.Sprintf("%d", x)
	case int:
		return fmt.Sprintf("%d", x)
	case bool:
		return fmt.Sprintf("%t", x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case decimal.Decimal:
		return x.String()
	case pgtype.Text:
		if !x.Valid {
			return nullKeyPart
		}
		return x.String
	case pgtype.Date:
		if !x.Valid {
			return nullKeyPart
		}
		return x.Time.Format("2006-01-02")
	case pgtype.Timestamptz:
		if !x.Valid {
			return nullKeyPart
		}
		return x.Time.UTC().Format(time.RFC3339Nano)
	case pgtype.Numeric:
		if !x.Valid || x.Int == nil {
			return nullKeyPart
		}
		return decimal.NewFromBigInt(x.Int, x.Exp).String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// recordKey builds the duplicate-suppression key of rec over cols.
// Absent columns are NULL.
func recordKey(rec Record, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = canonicalValue(rec[c])
	}
	return joinKey(parts)
}

// keyValues extracts the unique key of rec for an existence query.
func keyValues(rec Record, cols []string) []KeyValue {
	kv := make([]KeyValue, len(cols))
	for i, c := range cols {
		kv[i] = KeyValue{Column: c, Value: rec[c]}
	}
	return kv
}

// isEmptyRow reports whether every cell is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
