// Package format renders invoice values for documents, mail and exports.
package format

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const numberPrefix = "INV-"

// DisplayNumber renders a per-user invoice number, e.g. INV-1001.
func DisplayNumber(number int64) string {
	return numberPrefix + strconv.FormatInt(number, 10)
}

// Amount renders a decimal with exactly two fractional digits.
func Amount(value decimal.Decimal) string {
	return value.StringFixed(2)
}

// Money renders an amount with the currency symbol for single-currency
// documents. Unknown currencies fall back to an upper-case code suffix.
func Money(value decimal.Decimal, currency string) string {
	code := strings.ToLower(strings.TrimSpace(currency))
	sign := ""
	if value.IsNegative() {
		sign = "-"
		value = value.Abs()
	}
	amount := groupThousands(value.StringFixed(2))
	switch code {
	case "", "usd":
		return sign + "$" + amount
	case "eur":
		return sign + "€" + amount
	case "gbp":
		return sign + "£" + amount
	default:
		return sign + amount + " " + strings.ToUpper(code)
	}
}

func groupThousands(fixed string) string {
	whole, frac, _ := strings.Cut(fixed, ".")
	if len(whole) <= 3 {
		return fixed
	}
	var b strings.Builder
	lead := len(whole) % 3
	if lead > 0 {
		b.WriteString(whole[:lead])
	}
	for i := lead; i < len(whole); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(whole[i : i+3])
	}
	return b.String() + "." + frac
}
