package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Tuition is $48,000 per year.", "Tuition is $48,000 per year."},
		{"null bytes", "Tuition\x00 is\x00 $1,200", "Tuition is $1,200"},
		{"control chars", "a\x07b\x1bc", "abc"},
		{"collapse spaces", "a   b \t\t c", "a b c"},
		{"crlf", "line one\r\nline two", "line one\nline two"},
		{"blank lines", "a\n\n\n\n\nb", "a\n\nb"},
		{"trailing spaces on lines", "a   \n   b", "a\nb"},
		{"zero width", "tu\u200bition\ufeff", "tuition"},
		{"invalid utf8", "abc\xff\xfedef", "abcdef"},
		{"trim", "   padded   ", "padded"},
		{
			"pdf stream",
			"Tuition %PDF-1.7 1 0 obj stream\nxx\x01\x02yy\nendstream endobj rates",
			"Tuition " + BinaryMarker + " rates",
		},
		{"pdf object split by tabs", "see 1\t0 obj here", "see here"},
		{"pdf object split by spaces", "see 1  0 obj here", "see here"},
		{"nested pdf objects", "a 1 0 1 0 obj obj b", "a b"},
		{
			"repeated streams collapse",
			"a stream\nAAA\nendstream stream\nBBB\nendstream b",
			"a " + BinaryMarker + " b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestText_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"Tuition: $1,500 per credit\n\n\n\nFees: $200",
		"  lots   of\t\twhitespace \r\n and \x00 nulls ",
		"stream \n binary\x03 junk endstream trailing",
		"stream 1 0 obj\n garbage endstream",
		"%PDF-1.4\n%%EOF",
		"café résumé",
		"  non-breaking space",
		BinaryMarker + " " + BinaryMarker + "\n" + BinaryMarker,
		strings.Repeat("ab \n", 20),
		"1\t0 obj",
		"see 1  0 obj here",
		"1 0 1 0 obj obj",
		"stream\t\n1\t0\tobj endstream",
	}

	for _, in := range inputs {
		once := Text(in)
		assert.Equal(t, once, Text(once), "input %q", in)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "", Truncate("anything", 0))

	long := strings.Repeat("x", 20)
	got := Truncate(long, 10)
	assert.Equal(t, strings.Repeat("x", 10)+TruncationMarker, got)

	// Rune-aware: multi-byte characters are never split.
	got = Truncate("ééééé", 3)
	assert.Equal(t, "ééé"+TruncationMarker, got)
}

func TestOptionalText(t *testing.T) {
	t.Parallel()

	assert.Nil(t, OptionalText(nil))

	blank := "   "
	assert.Nil(t, OptionalText(&blank))

	null := "N/A"
	assert.Nil(t, OptionalText(&null))

	v := "Fall 2025\x00"
	got := OptionalText(&v)
	require.NotNil(t, got)
	assert.Equal(t, "Fall 2025", *got)
}

func TestCurrency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string // "" means nil
	}{
		{"already normalized", "$48,000", "$48,000"},
		{"bare number", "48,000", "$48,000"},
		{"trailing total", "$96,000 total", "$96,000"},
		{"trailing total upper", "$96,000 TOTAL.", "$96,000"},
		{"parenthesized total", "$96,000 (total)", "$96,000"},
		{"in total", "$96,000 in total", "$96,000"},
		{"iso code", "USD 52,500", "$52,500"},
		{"canadian code", "CAD 50,000", "C$50,000"},
		{"trailing iso code", "48,000 USD total", "$48,000"},
		{"trailing canadian code", "50,000 CAD per year", "C$50,000 per year"},
		{"australian prefix", "AU$42,000", "A$42,000"},
		{"us dollar prefix", "US$48,000", "$48,000"},
		{"symbol after prose", "approx. C$50,000 per year", "C$50,000 per year"},
		{"pound code", "GBP 30,000", "£30,000"},
		{"currency without symbol", "CHF 40,000", ""},
		{"trailing currency without symbol", "40,000 SEK", ""},
		{"word before amount is not a code", "fee 12,000", "$12,000"},
		{"subtotal", "$48,000 subtotal", "$48,000"},
		{"glued subtotal", "$48,000subtotal", "$48,000"},
		{"euro", "€12.000", "€12.000"},
		{"prose prefix", "Approximately $61,200 per year", "$61,200 per year"},
		{"number with prose", "about 30,000 per year", "$30,000 per year"},
		{"no digits", "varies by residency", ""},
		{"null word", "null", ""},
		{"symbol only", "$", ""},
		{"total only", "total", ""},
		{"control chars", "$1,500\x00 per credit", "$1,500 per credit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := tt.in
			got := Currency(&in)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestCurrency_Invariants(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"$48,000", "48000", "48,000 total", "Total", "$1,234.56 Total", "USD 9,999 total",
		"roughly 70k total", "€ 15.000", "$50,000 - total", "varies", "  ", "12 credits total",
		"CAD 50,000", "48,000 USD total", "$48,000 subtotal", "NZD 30,000", "CHF 40,000",
	}
	for _, in := range inputs {
		v := in
		got := Currency(&v)
		if got == nil {
			continue
		}
		assert.True(t, HasCurrencySymbol(*got), "input %q -> %q lacks currency symbol", in, *got)
		assert.False(t, strings.HasSuffix(strings.ToLower(*got), "total"), "input %q -> %q ends with total", in, *got)
	}

	assert.Nil(t, Currency(nil))
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$48,000", 48000, true},
		{"$1,234.56 per credit", 1234.56, true},
		{"€12", 12, true},
		{"free", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseAmount(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.InDelta(t, tt.want, got, 0.001, tt.in)
	}
}
