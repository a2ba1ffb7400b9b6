// Package titleparse extracts artist, title and format from shop listing
// titles. The grammar is:
//
//	listing := artist " - " title [ " (" format ")" ]
//	artist  := text up to the first " - " separator
//	format  := a known format token, case-insensitive
//
// Edge cases: a listing without a separator parses as title only; a
// trailing parenthesis that is not a known format token stays part of the
// title; only the first " - " separates artist from title, so titles may
// themselves contain " - ".
//
// The package is pure and decoupled from the reconciliation engine; it is
// used when building marketplace inventory item payloads.
package titleparse

import "strings"

// Listing is the parsed form of a shop listing title.
type Listing struct {
	Artist string
	Title  string
	Format string
}

// knownFormats holds the format tokens the grammar recognizes, normalized
// to upper case with quotes stripped.
var knownFormats = map[string]string{
	"LP":       "LP",
	"2XLP":     "2xLP",
	"3XLP":     "3xLP",
	"10":       "10\"",
	"12":       "12\"",
	"7":        "7\"",
	"EP":       "EP",
	"CD":       "CD",
	"2XCD":     "2xCD",
	"MCD":      "MCD",
	"MC":       "MC",
	"TAPE":     "Tape",
	"CASSETTE": "Tape",
	"DVD":      "DVD",
	"PIC-LP":   "Pic-LP",
	"BOOK":     "Book",
}

const separator = " - "

// Parse applies the title grammar. It is total: any input yields a Listing,
// with unrecognized parts left in Title.
func Parse(raw string) Listing {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Listing{}
	}

	var parsed Listing
	if idx := strings.Index(s, separator); idx >= 0 {
		parsed.Artist = strings.TrimSpace(s[:idx])
		s = strings.TrimSpace(s[idx+len(separator):])
	}

	s, parsed.Format = splitFormat(s)
	parsed.Title = s
	return parsed
}

// splitFormat strips a trailing "(FORMAT)" group when the token is a known
// format, returning the remaining title and the normalized format.
func splitFormat(s string) (string, string) {
	if !strings.HasSuffix(s, ")") {
		return s, ""
	}
	open := strings.LastIndex(s, "(")
	if open < 0 {
		return s, ""
	}
	token := s[open+1 : len(s)-1]
	format, ok := knownFormats[normalizeFormat(token)]
	if !ok {
		return s, ""
	}
	return strings.TrimSpace(s[:open]), format
}

func normalizeFormat(token string) string {
	t := strings.ToUpper(strings.TrimSpace(token))
	t = strings.ReplaceAll(t, "\"", "")
	t = strings.ReplaceAll(t, "''", "")
	t = strings.TrimSuffix(t, " INCH")
	return t
}
