package sheet

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/carloslaurellineves/websearch-agent/internal/model"
)

// fold lowercases s and strips diacritics so "Não", "NAO" and "nao" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = strings.TrimSpace(s)
	}
	return strings.ToLower(out)
}

var statusTokens = map[string]model.LicenseStatus{
	"sim": model.StatusYes,
	"s":   model.StatusYes,
	"yes": model.StatusYes,
	"y":   model.StatusYes,
	"nao": model.StatusNo,
	"n":   model.StatusNo,
	"no":  model.StatusNo,
}

// ParseStatus maps a cell value to a license status. Blank and unrecognized
// values map to StatusUnknown; ok is false only for unrecognized values.
func ParseStatus(s string) (status model.LicenseStatus, ok bool) {
	f := fold(s)
	if f == "" {
		return model.StatusUnknown, true
	}
	if st, found := statusTokens[f]; found {
		return st, true
	}
	return model.StatusUnknown, false
}

// versionLike reports whether s looks like a version string ("2021", "v1.2",
// "10.0.19045").
func versionLike(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

var headerNames = map[string]bool{
	"nome":     true,
	"name":     true,
	"software": true,
	"produto":  true,
	"product":  true,
}

// looksLikeHeader applies the header heuristic to the first non-blank row.
func looksLikeHeader(cells [3]string) bool {
	if headerNames[fold(cells[0])] {
		return true
	}
	if v := strings.TrimSpace(cells[1]); v != "" && !versionLike(v) {
		return true
	}
	if st := strings.TrimSpace(cells[2]); st != "" {
		if _, ok := ParseStatus(st); !ok {
			return true
		}
	}
	return false
}
