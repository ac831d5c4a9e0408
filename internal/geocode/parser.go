package geocode

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ParsedAddress is a loosely structured address extracted from free text,
// good enough to drive either the parcel tier's forward-geocode query or
// the block tier's centerline lookup.
type ParsedAddress struct {
	HouseNumber int
	Street      string
	IsBlockOnly bool // true when the input was "N block of Street" rather than an exact number
}

var streetSuffixList = []string{
	"Road", "Street", "Avenue", "Highway", "Route", "Lane", "Drive", "Court",
	"Place", "Way", "Pike", "Circle", "Boulevard", "Parkway",
}

var (
	exactAddressPattern = regexp.MustCompile(`(?i)\b(\d{1,6})\s+([A-Za-z0-9'\.\s]+?(?:` + suffixAlternation() + `))\b`)
	blockPattern        = regexp.MustCompile(`(?i)\b(\d{1,4})\s*0{2}\s*block\s+of\s+([A-Za-z0-9'\.\s]+?(?:` + suffixAlternation() + `))\b`)
	blockPatternAlt     = regexp.MustCompile(`(?i)\bblock\s+of\s+([A-Za-z0-9'\.\s]+?(?:` + suffixAlternation() + `))\b`)
)

// ErrNoAddress is returned when no address-shaped substring is found.
var ErrNoAddress = errors.New("geocode: no address found in text")

// ParseAddress looks for a "123 Main Street" or "300 block of Main Street"
// pattern in free text. The "N00 block of" form is tried first (so its
// number is not read as an exact house number), then an exact house
// number, then a bare "block of Street".
func ParseAddress(text string) (*ParsedAddress, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoAddress
	}

	if m := blockPattern.FindStringSubmatch(text); len(m) == 3 {
		base, err := strconv.Atoi(m[1])
		if err == nil {
			return &ParsedAddress{
				HouseNumber: base * 100,
				Street:      NormalizeStreetName(m[2]),
				IsBlockOnly: true,
			}, nil
		}
	}

	if m := exactAddressPattern.FindStringSubmatch(text); len(m) == 3 {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return &ParsedAddress{HouseNumber: n, Street: NormalizeStreetName(m[2])}, nil
		}
	}

	if m := blockPatternAlt.FindStringSubmatch(text); len(m) == 2 {
		return &ParsedAddress{Street: NormalizeStreetName(m[1]), IsBlockOnly: true}, nil
	}

	return nil, ErrNoAddress
}

func suffixAlternation() string {
	parts := append([]string{}, streetSuffixList...)
	for key := range streetSuffixes {
		parts = append(parts, key)
	}
	sort.Strings(parts)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(parts, "|")
}
