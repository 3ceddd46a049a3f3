// Package address parses free-text US mailing addresses and reconciles them
// against an external verification provider.
package address

import (
	"regexp"
	"strings"
)

// ParsedAddress is the structured best-effort parse of a raw address line.
// It is only constructed when street, city and state are all non-empty; the
// ZIP fields are optional.
type ParsedAddress struct {
	Street string
	City   string
	State  string
	Zip5   string
	Zip4   string
}

// stateTable maps both postal abbreviations and squashed full names
// (letters only, uppercased) to the canonical two-letter code. All 50
// states plus DC.
var stateTable = map[string]string{
	"AL": "AL", "ALABAMA": "AL", "AK": "AK", "ALASKA": "AK",
	"AZ": "AZ", "ARIZONA": "AZ", "AR": "AR", "ARKANSAS": "AR",
	"CA": "CA", "CALIFORNIA": "CA", "CO": "CO", "COLORADO": "CO",
	"CT": "CT", "CONNECTICUT": "CT", "DE": "DE", "DELAWARE": "DE",
	"DC": "DC", "DISTRICTOFCOLUMBIA": "DC",
	"FL": "FL", "FLORIDA": "FL", "GA": "GA", "GEORGIA": "GA",
	"HI": "HI", "HAWAII": "HI", "ID": "ID", "IDAHO": "ID",
	"IL": "IL", "ILLINOIS": "IL", "IN": "IN", "INDIANA": "IN",
	"IA": "IA", "IOWA": "IA", "KS": "KS", "KANSAS": "KS",
	"KY": "KY", "KENTUCKY": "KY", "LA": "LA", "LOUISIANA": "LA",
	"ME": "ME", "MAINE": "ME", "MD": "MD", "MARYLAND": "MD",
	"MA": "MA", "MASSACHUSETTS": "MA", "MI": "MI", "MICHIGAN": "MI",
	"MN": "MN", "MINNESOTA": "MN", "MS": "MS", "MISSISSIPPI": "MS",
	"MO": "MO", "MISSOURI": "MO", "MT": "MT", "MONTANA": "MT",
	"NE": "NE", "NEBRASKA": "NE", "NV": "NV", "NEVADA": "NV",
	"NH": "NH", "NEWHAMPSHIRE": "NH", "NJ": "NJ", "NEWJERSEY": "NJ",
	"NM": "NM", "NEWMEXICO": "NM", "NY": "NY", "NEWYORK": "NY",
	"NC": "NC", "NORTHCAROLINA": "NC", "ND": "ND", "NORTHDAKOTA": "ND",
	"OH": "OH", "OHIO": "OH", "OK": "OK", "OKLAHOMA": "OK",
	"OR": "OR", "OREGON": "OR", "PA": "PA", "PENNSYLVANIA": "PA",
	"RI": "RI", "RHODEISLAND": "RI", "SC": "SC", "SOUTHCAROLINA": "SC",
	"SD": "SD", "SOUTHDAKOTA": "SD", "TN": "TN", "TENNESSEE": "TN",
	"TX": "TX", "TEXAS": "TX", "UT": "UT", "UTAH": "UT",
	"VT": "VT", "VERMONT": "VT", "VA": "VA", "VIRGINIA": "VA",
	"WA": "WA", "WASHINGTON": "WA", "WV": "WV", "WESTVIRGINIA": "WV",
	"WI": "WI", "WISCONSIN": "WI", "WY": "WY", "WYOMING": "WY",
}

var (
	spaceRe     = regexp.MustCompile(`\s+`)
	zipTailRe   = regexp.MustCompile(`(\d{5})(?:-(\d{4}))?\s*$`)
	nonLetterRe = regexp.MustCompile(`[^A-Z]`)
	punctRe     = regexp.MustCompile(`[.,#]`)
)

// NormState normalizes a candidate state token to its two-letter code.
// It is case- and punctuation-insensitive and accepts either the postal
// abbreviation or the full name; unrecognized tokens yield "".
func NormState(token string) string {
	t := nonLetterRe.ReplaceAllString(strings.ToUpper(token), "")
	return stateTable[t]
}

// Parse turns a raw single-line address into a ParsedAddress. The second
// return value is false when no acceptable street/city/state triple could
// be recovered.
func Parse(raw string) (*ParsedAddress, bool) {
	s := strings.TrimSpace(spaceRe.ReplaceAllString(raw, " "))
	if s == "" {
		return nil, false
	}

	// Trailing ZIP is optional; peel it off before splitting.
	var zip5, zip4 string
	base := s
	if m := zipTailRe.FindStringSubmatch(s); m != nil {
		zip5, zip4 = m[1], m[2]
		base = strings.TrimSpace(s[:len(s)-len(m[0])])
	}

	// Comma form: "street, city, state".
	if strings.Contains(base, ",") {
		var parts []string
		for _, p := range strings.Split(base, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) >= 3 {
			street, city, state := parts[0], parts[1], NormState(parts[2])
			if street != "" && city != "" && state != "" {
				return &ParsedAddress{Street: street, City: city, State: state, Zip5: zip5, Zip4: zip4}, true
			}
		}
	}

	// No usable commas: locate a state token scanning backward over the
	// last four tokens. The match closest to the end wins, so a city name
	// that doubles as a state word is not stolen from the city slot.
	tokens := strings.Fields(base)
	if len(tokens) < 3 {
		return nil, false
	}
	stateIndex := -1
	state := ""
	low := len(tokens) - 4
	if low < 0 {
		low = 0
	}
	for i := len(tokens) - 1; i >= low; i-- {
		if st := NormState(tokens[i]); st != "" {
			state, stateIndex = st, i
			break
		}
	}
	if state == "" || stateIndex < 1 {
		return nil, false
	}

	city := tokens[stateIndex-1]
	street := strings.Join(tokens[:stateIndex-1], " ")
	if street == "" || city == "" {
		return nil, false
	}
	return &ParsedAddress{Street: street, City: city, State: state, Zip5: zip5, Zip4: zip4}, true
}

// FormatLine renders a two-segment human-readable address: the street on
// its own line and "city state zip5[-zip4]" on the next, dropping whatever
// is empty.
func FormatLine(street, city, state, zip5, zip4 string) string {
	zip := zip5
	if zip != "" && zip4 != "" {
		zip += "-" + zip4
	}
	var line2Parts []string
	for _, p := range []string{city, state, zip} {
		if p != "" {
			line2Parts = append(line2Parts, p)
		}
	}
	var lines []string
	if street != "" {
		lines = append(lines, street)
	}
	if len(line2Parts) > 0 {
		lines = append(lines, strings.Join(line2Parts, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Canonical reduces an address line for equality checks: uppercase, the
// characters ".", "," and "#" become spaces, runs of whitespace collapse.
// "Apt. 2" and "APT 2" compare equal so formatting-only differences do not
// trigger a correction prompt.
func Canonical(s string) string {
	out := strings.ToUpper(s)
	out = punctRe.ReplaceAllString(out, " ")
	out = spaceRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
