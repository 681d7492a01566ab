package tables

import (
	"strings"
	"unicode"
)

// UsStates maps US state full names to their abbreviations.
var UsStates = map[string]string{
	"alabama":        "AL",
	"alaska":         "AK",
	"arizona":        "AZ",
	"arkansas":       "AR",
	"california":     "CA",
	"colorado":       "CO",
	"connecticut":    "CT",
	"delaware":       "DE",
	"florida":        "FL",
	"georgia":        "GA",
	"hawaii":         "HI",
	"idaho":          "ID",
	"illinois":       "IL",
	"indiana":        "IN",
	"iowa":           "IA",
	"kansas":         "KS",
	"kentucky":       "KY",
	"louisiana":      "LA",
	"maine":          "ME",
	"maryland":       "MD",
	"massachusetts":  "MA",
	"michigan":       "MI",
	"minnesota":      "MN",
	"mississippi":    "MS",
	"missouri":       "MO",
	"montana":        "MT",
	"nebraska":       "NE",
	"nevada":         "NV",
	"new hampshire":  "NH",
	"new jersey":     "NJ",
	"new mexico":     "NM",
	"new york":       "NY",
	"north carolina": "NC",
	"north dakota":   "ND",
	"ohio":           "OH",
	"oklahoma":       "OK",
	"oregon":         "OR",
	"pennsylvania":   "PA",
	"rhode island":   "RI",
	"south carolina": "SC",
	"south dakota":   "SD",
	"tennessee":      "TN",
	"texas":          "TX",
	"utah":           "UT",
	"vermont":        "VT",
	"virginia":       "VA",
	"washington":     "WA",
	"west virginia":  "WV",
	"wisconsin":      "WI",
	"wyoming":        "WY",
}

// usStateCodes is the set of valid 2-letter codes.
var usStateCodes = func() map[string]bool {
	codes := make(map[string]bool, len(UsStates)+1)
	for _, code := range UsStates {
		codes[code] = true
	}
	codes["DC"] = true
	return codes
}()

// NormalizeUsState converts US state names to their 2-letter abbreviations.
// If the input is already an abbreviation or not recognized, returns as-is.
func NormalizeUsState(s string) string {
	s = strings.TrimSpace(s)
	sLower := strings.TrimSuffix(strings.ToLower(s), ".")

	if code, ok := UsStates[sLower]; ok {
		return code
	}
	if sLower == "district of columbia" || sLower == "washington dc" || sLower == "washington d.c" {
		return "DC"
	}

	if sUpper := strings.ToUpper(strings.ReplaceAll(sLower, ".", "")); usStateCodes[sUpper] {
		return sUpper
	}

	return s
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EmailKey is the natural-key form of an email address.
func EmailKey(s string) (string, error) {
	return NormalizeEmail(s), nil
}

// roleAliases maps spellings seen in exports to the participant role enum.
var roleAliases = map[string]string{
	"admin":         "admin",
	"administrator": "admin",
	"staff":         "admin",
	"participant":   "participant",
	"member":        "participant",
	"student":       "participant",
	"user":          "participant",
	"volunteer":     "participant",
}

// NormalizeRole maps role aliases onto participant|admin. Unknown values
// are returned unchanged so the enum check reports them.
func NormalizeRole(s string) string {
	if role, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return role
	}
	return s
}

// NormalizePhone formats 10-digit US numbers as (555) 123-4567. Other
// values are returned trimmed.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)

	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return s
	}
	return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:]
}

// NormalizeZip restores leading zeros that spreadsheets drop from 5-digit
// ZIP codes.
func NormalizeZip(s string) string {
	s = strings.TrimSpace(s)
	base, plus4, hasPlus4 := strings.Cut(s, "-")
	if len(base) >= 3 && len(base) < 5 && isDigits(base) {
		base = strings.Repeat("0", 5-len(base)) + base
	}
	if hasPlus4 {
		return base + "-" + plus4
	}
	return base
}

// NormalizeTitle collapses inner whitespace in names and titles.
func NormalizeTitle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TitleKey is the natural-key form of a name.
func TitleKey(s string) (string, error) {
	return NormalizeTitle(s), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
