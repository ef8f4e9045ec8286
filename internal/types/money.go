// README: Money value object. Amounts are stored in minor units (1/100 of the currency).
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Money struct {
	Amount   int64
	Currency string
}

// FromMajor converts a major-unit amount (e.g. 10.125 rupees) to Money,
// rounding half away from zero to the nearest minor unit. The float is read
// as its shortest decimal form, so 1.005 rounds to 1.01.
func FromMajor(v float64, currency string) Money {
	return FromDecimal(decimal.NewFromFloat(v), currency)
}

// FromDecimal rounds a major-unit decimal half away from zero to minor units.
func FromDecimal(d decimal.Decimal, currency string) Money {
	return Money{Amount: d.Round(2).Shift(2).IntPart(), Currency: currency}
}

// Major returns the amount in major units.
func (m Money) Major() float64 {
	return float64(m.Amount) / 100
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", decimal.New(m.Amount, -2).StringFixed(2), m.Currency)
}
