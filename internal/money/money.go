// Package money holds the fixed-point helpers every monetary derivation goes through.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits kept for stored and displayed amounts.
const Places = 2

var (
	// Zero is 0.00.
	Zero = decimal.Zero
	// Hundred is used to turn percentages into multipliers.
	Hundred = decimal.NewFromInt(100)
	// Max is the largest amount a decimal(10,2) column holds.
	Max = decimal.New(9999999999, -Places)

	ErrEmpty = errors.New("money: empty amount")
)

// Round2 rounds half-to-even to exactly two fractional digits.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(Places)
}

// Sum adds the given amounts and rounds the result.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return Round2(total)
}

// Percent returns part/whole*100 rounded to two places, or 0.00 when whole is not positive.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.Sign() <= 0 {
		return Zero
	}
	return Round2(part.Div(whole).Mul(Hundred))
}

// Format renders d with exactly two decimals ("133.00").
func Format(d decimal.Decimal) string {
	return Round2(d).StringFixed(Places)
}

// Parse reads a decimal amount such as "19.90". Surrounding blanks are ignored.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrEmpty
	}
	return decimal.NewFromString(s)
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}
