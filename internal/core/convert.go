package core

// convert.go turns raw CSV cells into values the pgx driver can send.
//
// CSV exports from spreadsheets and form tools are messy:
//   - Dates arrive in US, ISO and "Jan 2, 2006" styles, with 2 or 4 digit years
//   - Amounts carry currency symbols, thousands separators and accounting negatives
//   - Excel wraps values as ="value"
//
// Parse* functions return an error describing the bad value.

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// CurrencyPlaces is the number of fractional digits kept for currency.
const CurrencyPlaces = 2

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006",
		"20060102",
	}

	// zonedTimestampLayouts carry their own offset.
	zonedTimestampLayouts = []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05-07",
		"2006-01-02 15:04:05.999999-07",
	}
	// localTimestampLayouts are interpreted in the caller's location.
	localTimestampLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"1/2/2006 3:04:05 PM",
		"1/2/2006 3:04 PM",
		"1/2/2006 3:04PM",
		"01/02/2006 15:04",
		"Jan 2, 2006 3:04 PM",
	}
)

// ParseDate parses a calendar date in any supported layout.
// 2-digit years are resolved against TwoDigitYearPivot.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("invalid date: empty value")
	}

	// 4-digit layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// ParseTimestamp parses a date-time. Values without an offset are read in
// loc (UTC when nil); a bare date means midnight.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("invalid timestamp: empty value")
	}

	for _, layout := range zonedTimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range localTimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if d, err := ParseDate(s); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// CanonicalTimestamp renders t the way natural-key lookups compare
// timestamps: UTC, second precision.
func CanonicalTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// NormalizeTimestampKey parses a CSV timestamp and returns its canonical
// natural-key form.
func NormalizeTimestampKey(s string, loc *time.Location) (string, error) {
	t, err := ParseTimestamp(s, loc)
	if err != nil {
		return "", err
	}
	return CanonicalTimestamp(t), nil
}

// ParseDecimal parses a number, tolerating currency symbols, thousands
// separators and accounting negatives "(123.45)".
func ParseDecimal(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	s = raw
	if s == "" {
		return decimal.Zero, fmt.Errorf("invalid number: empty value")
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.Zero, fmt.Errorf("invalid number %q", raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q: %w", raw, err)
	}
	return d, nil
}

// ParseCurrency parses an amount and rounds it to CurrencyPlaces.
func ParseCurrency(s string) (decimal.Decimal, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(CurrencyPlaces), nil
}

// DecimalToPgNumeric converts a decimal into the driver's numeric type
// without a string round trip.
func DecimalToPgNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// ParseInt parses a whole number. "1,200" and "3.0" are accepted; "3.5" is not.
func ParseInt(s string) (int64, error) {
	raw := strings.TrimSpace(s)
	d, err := ParseDecimal(raw)
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	return d.IntPart(), nil
}

// MakeHeaderIndex creates a HeaderIndex from a CSV header row.
// Keys are lowercased for case-insensitive matching. The first occurrence
// of a duplicated header wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, dup := idx[key]; dup {
			continue
		}
		idx[key] = i
	}
	return idx
}

// CleanCell removes spreadsheet artifacts from a header or typed cell:
// surrounding whitespace, the Excel wrapper ="...", a formula prefix = and
// one matched pair of surrounding quotes.
func CleanCell(s string) string {
	s = unwrapExcel(strings.TrimSpace(s))
	if strings.HasPrefix(s, "=") {
		s = s[1:]
	}
	if n := len(s); n >= 2 && (s[0] == '"' || s[0] == '\'') && s[n-1] == s[0] {
		s = s[1 : n-1]
	}
	return strings.TrimSpace(s)
}

// CleanText trims a free-text cell and unwraps ="...". Quotes inside the
// value are content and are kept.
func CleanText(s string) string {
	return strings.TrimSpace(unwrapExcel(strings.TrimSpace(s)))
}

func unwrapExcel(s string) string {
	if len(s) >= 3 && strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		return s[2 : len(s)-1]
	}
	return s
}
