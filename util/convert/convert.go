package convert

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxDecimalPrecision is the widest numeric precision a node accepts.
const MaxDecimalPrecision = 1000

// ParseUnsignedInt parses a base-10 unsigned integer string, e.g. a fee or
// a transfer amount. Signs, decimal points and exponents are rejected.
func ParseUnsignedInt(valueStr string) (*big.Int, error) {
	if len(valueStr) == 0 {
		return nil, fmt.Errorf("empty integer string")
	}

	for _, c := range valueStr {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("invalid unsigned integer %q", valueStr)
		}
	}

	value, ok := new(big.Int).SetString(valueStr, 10)
	if !ok {
		return nil, fmt.Errorf("invalid unsigned integer %q", valueStr)
	}

	return value, nil
}

// BigIntToString converts *big.Int to its base-10 string,
// nil is treated as zero.
func BigIntToString(value *big.Int) string {
	if value == nil {
		return "0"
	}

	return value.String()
}

// DecimalMetadata returns the (precision, scale) pair describing d,
// e.g. 123.450 -> (6, 3).
func DecimalMetadata(d decimal.Decimal) (uint16, uint16, error) {
	scale := int32(0)
	if exp := d.Exponent(); exp < 0 {
		scale = -exp
	}

	digits := d.Coefficient().String()
	digits = strings.TrimPrefix(digits, "-")
	if d.Exponent() > 0 {
		digits += strings.Repeat("0", int(d.Exponent()))
	}

	precision := int32(len(digits))
	if precision < scale {
		precision = scale
	}
	if precision == 0 {
		precision = 1
	}

	if precision > MaxDecimalPrecision {
		return 0, 0, fmt.Errorf("decimal precision %d exceeds %d", precision, MaxDecimalPrecision)
	}

	return uint16(precision), uint16(scale), nil
}

// DecimalString renders d in fixed-point notation, keeping its scale.
func DecimalString(d decimal.Decimal) string {
	if d.Exponent() >= 0 {
		return d.StringFixed(0)
	}

	return d.StringFixed(-d.Exponent())
}

// CheckDecimal reports whether d fits a numeric(precision, scale) column.
func CheckDecimal(d decimal.Decimal, precision, scale uint16) error {
	p, s, err := DecimalMetadata(d)
	if err != nil {
		return err
	}

	if s > scale {
		return fmt.Errorf("decimal %s has scale %d, column allows %d", d.String(), s, scale)
	}

	intDigits := int(p) - int(s)
	if intDigits > int(precision)-int(scale) {
		return fmt.Errorf("decimal %s does not fit numeric(%d,%d)", d.String(), precision, scale)
	}

	return nil
}
