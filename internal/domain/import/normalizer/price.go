// Package normalizer turns raw cell and token text into canonical values.
//
// Safe degradation: value normalization never fails. A price that cannot be
// read as a decimal becomes zero, so a single malformed cell can never stop
// the ingestion of the rest of a document.
package normalizer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// NormalizePrice converts a raw price value to a non-negative decimal.
// Commas are treated as thousands separators and every rune other than
// ASCII digits and '.' is dropped. Empty input, input with more than one
// decimal point, or input with no digits normalizes to zero.
func NormalizePrice(raw any) decimal.Decimal {
	s := priceText(raw)
	if s == "" {
		return decimal.Zero
	}

	s = strings.ReplaceAll(s, ",", "")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	clean := b.String()

	if clean == "" || strings.Count(clean, ".") > 1 || strings.Trim(clean, ".") == "" {
		return decimal.Zero
	}
	if strings.HasPrefix(clean, ".") {
		clean = "0" + clean
	}
	clean = strings.TrimSuffix(clean, ".")

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func priceText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	case decimal.Decimal:
		return v.String()
	case float64:
		return decimal.NewFromFloat(v).String()
	case float32:
		return decimal.NewFromFloat32(v).String()
	case int:
		return fmt.Sprint(v)
	case int64:
		return fmt.Sprint(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// StripPriceDecorations removes the currency sign and thousands separators
// from a document token, leaving the text the price matchers inspect.
func StripPriceDecorations(token string) string {
	token = strings.ReplaceAll(token, "$", "")
	return strings.ReplaceAll(token, ",", "")
}

// CleanText trims and collapses internal whitespace runs to a single space.
func CleanText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
