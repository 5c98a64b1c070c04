package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// countySuffixRe strips a trailing "County" word: "Cook County" -> "Cook".
	countySuffixRe = regexp.MustCompile(`(?i)\s+county\s*$`)

	// stateSuffixRe strips a trailing ", XX" state code: "Cook, IL" -> "Cook".
	stateSuffixRe = regexp.MustCompile(`,\s*[A-Za-z]{2}\s*$`)

	// periodYMRe matches "2024-07" style periods.
	periodYMRe = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)

	// periodYMonRe matches "24-Jul" and "2024-Jul" style periods.
	periodYMonRe = regexp.MustCompile(`^(\d{2,4})-([A-Za-z]{3})$`)

	// periodMonYRe matches "Jul-24" and "Jul-2024" style periods.
	periodMonYRe = regexp.MustCompile(`^([A-Za-z]{3})-(\d{2,4})$`)

	titleCaser = cases.Title(language.AmericanEnglish)
)

var monthAbbrevs = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// NormalizeHeader canonicalizes a column header for matching: lowercase with
// every non-alphanumeric character removed. "Unemploy-ment Rate (%)" and
// "unemployment_rate" both normalize to "unemploymentrate".
func NormalizeHeader(header string) string {
	var b strings.Builder
	b.Grow(len(header))
	for _, r := range strings.ToLower(strings.TrimSpace(header)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeCountyName cleans a raw county string to its display form:
// trailing "County" and ", XX" suffixes removed, whitespace collapsed,
// title case. Returns "" when nothing usable remains.
func NormalizeCountyName(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return ""
	}
	s = countySuffixRe.ReplaceAllString(s, "")
	s = stateSuffixRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(s))
}

// NormalizeStateName maps a state to its USPS code. Accepts codes ("IL"),
// full names ("Illinois"), and anything in between; unknown values pass
// through upper-cased so they still merge consistently.
func NormalizeStateName(state string) string {
	s := strings.ToUpper(strings.TrimSpace(state))
	if s == "" {
		return ""
	}
	if len(s) == 2 {
		return s
	}
	if code, ok := stateNameToCode[s]; ok {
		return code
	}
	return s
}

// StateFromFIPS maps the 2-digit state FIPS prefix to a USPS code.
// Single-digit inputs are zero-padded ("1" -> "01" -> "AL"). Unknown codes
// return "" so the caller can treat the row as missing its join key.
func StateFromFIPS(fips string) string {
	s := strings.TrimSpace(fips)
	if s == "" {
		return ""
	}
	if len(s) == 1 {
		s = "0" + s
	}
	if len(s) > 2 {
		s = s[:2]
	}
	return fipsToState[s]
}

// foldKeyPart lowercases and trims one half of a join key.
func foldKeyPart(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CleanNumeric parses a numeric cell tolerant of thousands separators and
// missing-value sentinels. Returns NaN and false when the cell holds no
// usable number.
func CleanNumeric(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	s = strings.ReplaceAll(s, ",", "")
	switch strings.ToLower(s) {
	case "", "nan", "none", "null", "n/a":
		return math.NaN(), false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}

// ParsePeriod parses a reporting period into the first day of its month
// (UTC). Supported layouts: "24-Jul", "2024-Jul", "Jul-24", "Jul-2024",
// "2024-07". Returns false for anything else.
func ParsePeriod(period string) (time.Time, bool) {
	s := strings.TrimSpace(period)
	if s == "" {
		return time.Time{}, false
	}

	if m := periodYMonRe.FindStringSubmatch(s); m != nil {
		month, ok := monthAbbrevs[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}
		return monthStart(expandYear(m[1]), month), true
	}

	if m := periodMonYRe.FindStringSubmatch(s); m != nil {
		month, ok := monthAbbrevs[strings.ToLower(m[1])]
		if !ok {
			return time.Time{}, false
		}
		return monthStart(expandYear(m[2]), month), true
	}

	if m := periodYMRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		monthNum, _ := strconv.Atoi(m[2])
		if monthNum < 1 || monthNum > 12 {
			return time.Time{}, false
		}
		return monthStart(year, time.Month(monthNum)), true
	}

	return time.Time{}, false
}

// expandYear widens a 2-digit year into the 2000s.
func expandYear(s string) int {
	year, _ := strconv.Atoi(s)
	if len(s) == 2 {
		return 2000 + year
	}
	return year
}

func monthStart(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// stateNameToCode maps full state names to USPS codes.
var stateNameToCode = map[string]string{
	"ALABAMA": "AL", "ALASKA": "AK", "ARIZONA": "AZ", "ARKANSAS": "AR",
	"CALIFORNIA": "CA", "COLORADO": "CO", "CONNECTICUT": "CT", "DELAWARE": "DE",
	"FLORIDA": "FL", "GEORGIA": "GA", "HAWAII": "HI", "IDAHO": "ID",
	"ILLINOIS": "IL", "INDIANA": "IN", "IOWA": "IA", "KANSAS": "KS",
	"KENTUCKY": "KY", "LOUISIANA": "LA", "MAINE": "ME", "MARYLAND": "MD",
	"MASSACHUSETTS": "MA", "MICHIGAN": "MI", "MINNESOTA": "MN", "MISSISSIPPI": "MS",
	"MISSOURI": "MO", "MONTANA": "MT", "NEBRASKA": "NE", "NEVADA": "NV",
	"NEW HAMPSHIRE": "NH", "NEW JERSEY": "NJ", "NEW MEXICO": "NM", "NEW YORK": "NY",
	"NORTH CAROLINA": "NC", "NORTH DAKOTA": "ND", "OHIO": "OH", "OKLAHOMA": "OK",
	"OREGON": "OR", "PENNSYLVANIA": "PA", "RHODE ISLAND": "RI", "SOUTH CAROLINA": "SC",
	"SOUTH DAKOTA": "SD", "TENNESSEE": "TN", "TEXAS": "TX", "UTAH": "UT",
	"VERMONT": "VT", "VIRGINIA": "VA", "WASHINGTON": "WA", "WEST VIRGINIA": "WV",
	"WISCONSIN": "WI", "WYOMING": "WY", "DISTRICT OF COLUMBIA": "DC",
}

// fipsToState maps the first two FIPS digits to USPS codes.
var fipsToState = map[string]string{
	"01": "AL", "02": "AK", "04": "AZ", "05": "AR", "06": "CA", "08": "CO",
	"09": "CT", "10": "DE", "11": "DC", "12": "FL", "13": "GA", "15": "HI",
	"16": "ID", "17": "IL", "18": "IN", "19": "IA", "20": "KS", "21": "KY",
	"22": "LA", "23": "ME", "24": "MD", "25": "MA", "26": "MI", "27": "MN",
	"28": "MS", "29": "MO", "30": "MT", "31": "NE", "32": "NV", "33": "NH",
	"34": "NJ", "35": "NM", "36": "NY", "37": "NC", "38": "ND", "39": "OH",
	"40": "OK", "41": "OR", "42": "PA", "44": "RI", "45": "SC", "46": "SD",
	"47": "TN", "48": "TX", "49": "UT", "50": "VT", "51": "VA", "53": "WA",
	"54": "WV", "55": "WI", "56": "WY",
}
