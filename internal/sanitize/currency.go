package sanitize

import (
	"regexp"
	"strconv"
	"strings"
)

// currencySymbols are the prefixes accepted on a normalized amount. Longer
// symbols come first so "NZ$" is not read as "$".
var currencySymbols = []string{"NZ$", "HK$", "MX$", "CN¥", "C$", "A$", "S$", "$", "€", "£", "¥", "₹", "₩"}

// currencyCodes maps ISO codes to the symbol used in normalized amounts. An
// empty symbol marks a recognized currency with no unambiguous symbol; amounts
// in it are dropped rather than relabeled.
var currencyCodes = map[string]string{
	"USD": "$",
	"CAD": "C$",
	"AUD": "A$",
	"NZD": "NZ$",
	"HKD": "HK$",
	"SGD": "S$",
	"MXN": "MX$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "CN¥",
	"RMB": "CN¥",
	"INR": "₹",
	"KRW": "₩",
	"CHF": "",
	"SEK": "",
	"NOK": "",
	"DKK": "",
	"ZAR": "",
	"BRL": "",
	"AED": "",
}

// symbolAliases rewrites spellings that would otherwise be misread by the
// shorter symbols they contain.
var symbolAliases = strings.NewReplacer("US$", "$", "CA$", "C$", "AU$", "A$", "SG$", "S$", "RMB¥", "CN¥")

var (
	totalSuffixRe = regexp.MustCompile(`(?i)[\s,;:\-()\[\]]*(?:\bin\s+)?[a-z]*total[\s.,;:)\]]*$`)
	amountRe      = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	codeBeforeRe  = regexp.MustCompile(`(?i)\b([a-z]{3})\s*$`)
	codeAfterRe   = regexp.MustCompile(`(?i)^\s*([a-z]{3})\b`)
)

// Currency normalizes an extracted monetary string: it sanitizes the text,
// drops a trailing "total", and guarantees a leading currency symbol.
// Values without any digits normalize to nil.
func Currency(s *string) *string {
	if s == nil {
		return nil
	}
	v := Text(*s)
	if v == "" || isNullWord(v) {
		return nil
	}

	v = stripTotal(v)
	v = leadingSymbol(v)
	if v == "" {
		return nil
	}
	v = stripTotal(v)
	if !hasDigit(v) {
		return nil
	}
	return &v
}

// HasCurrencySymbol reports whether s begins with a known currency symbol.
func HasCurrencySymbol(s string) bool {
	for _, sym := range currencySymbols {
		if strings.HasPrefix(s, sym) {
			return true
		}
	}
	return false
}

// ParseAmount returns the first numeric amount in s, ignoring thousands
// separators. "$48,000 per year" parses as 48000.
func ParseAmount(s string) (float64, bool) {
	m := amountRe.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func stripTotal(v string) string {
	for {
		next := strings.TrimSpace(totalSuffixRe.ReplaceAllString(v, ""))
		if next == v {
			return v
		}
		v = next
	}
}

// leadingSymbol rewrites v to start with a currency symbol. An existing
// symbol is kept from its first occurrence and an ISO code next to the amount
// is mapped to its symbol. A bare number gets "$". Amounts in a currency with
// no known symbol return "".
func leadingSymbol(v string) string {
	v = symbolAliases.Replace(v)
	if HasCurrencySymbol(v) {
		return v
	}

	if first := firstSymbol(v); first >= 0 {
		return strings.TrimSpace(v[first:])
	}

	loc := amountRe.FindStringIndex(v)
	if loc == nil {
		return ""
	}
	amount, after := v[loc[0]:loc[1]], v[loc[1]:]

	if m := codeBeforeRe.FindStringSubmatch(v[:loc[0]]); m != nil {
		if sym, ok := currencyCodes[strings.ToUpper(m[1])]; ok {
			if sym == "" {
				return ""
			}
			return sym + strings.TrimSpace(v[loc[0]:])
		}
	}

	if m := codeAfterRe.FindStringSubmatchIndex(after); m != nil {
		if sym, ok := currencyCodes[strings.ToUpper(after[m[2]:m[3]])]; ok {
			if sym == "" {
				return ""
			}
			return strings.TrimSpace(sym + amount + " " + strings.TrimSpace(after[m[1]:]))
		}
	}

	return "$" + strings.TrimSpace(v[loc[0]:])
}

// firstSymbol returns the index of the earliest currency symbol in v, or -1.
func firstSymbol(v string) int {
	first := -1
	for _, sym := range currencySymbols {
		if i := strings.Index(v, sym); i >= 0 && (first < 0 || i < first) {
			first = i
		}
	}
	return first
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
