package market

import (
	"strings"

	"openorders/internal/common"

	"github.com/shopspring/decimal"
)

// FormatNumber rounds n half away from zero to precision decimal places and
// groups the integer part in thousands.
func FormatNumber(n decimal.Decimal, precision int32) string {
	if precision < 0 {
		precision = 0
	}
	fixed := n.StringFixed(precision)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	integer, fraction, hasFraction := strings.Cut(fixed, ".")

	var sb strings.Builder
	sb.WriteString(sign)
	for i, digit := range integer {
		if i > 0 && (len(integer)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(digit)
	}
	if hasFraction {
		sb.WriteByte('.')
		sb.WriteString(fraction)
	}
	return sb.String()
}

// FormatPrice formats a base-per-quote price with the base asset precision.
func FormatPrice(price decimal.Decimal, base common.Asset) string {
	return FormatNumber(price, base.Precision)
}
