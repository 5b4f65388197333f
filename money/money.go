// Package money implements the engine's fixed-point currency arithmetic.
//
// Every monetary quantity the backtest engine carries — cash, fill prices,
// commission, margin — is a Money value, never a raw float64 or
// decimal.Decimal. This keeps a long bar stream from accumulating binary
// floating-point drift in the one place (cash) where drift is unacceptable.
package money

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// scaledBase is the number of microdollars in one dollar.
const scaledBase = 1_000_000

// Money is a signed quantity of microdollars (10^-6 USD).
type Money struct {
	microdollars int64
}

// Zero is the additive identity.
var Zero = Money{}

// FromMicrodollars constructs a Money directly from raw microdollars.
func FromMicrodollars(microdollars int64) Money {
	return Money{microdollars: microdollars}
}

// FromDollars constructs a Money from a dollar-valued float, rounding
// half-away-from-zero to the nearest microdollar.
func FromDollars(dollars float64) Money {
	return Money{microdollars: roundHalfAwayFromZero(dollars * scaledBase)}
}

// FromDecimalDollars constructs a Money from a dollar-valued decimal.Decimal,
// the conversion used whenever a host-param percentage or a teacher-style
// decimal quantity needs to become a price or cash amount.
func FromDecimalDollars(dollars decimal.Decimal) Money {
	micros := dollars.Mul(decimal.NewFromInt(scaledBase))
	return Money{microdollars: micros.Round(0).IntPart()}
}

func roundHalfAwayFromZero(v float64) int64 {
	if v >= 0 {
		return int64(math.Floor(v + 0.5))
	}
	return int64(math.Ceil(v - 0.5))
}

// Microdollars returns the raw underlying integer, e.g. for ABI transport.
func (m Money) Microdollars() int64 { return m.microdollars }

// ToDollars converts to a float64 dollar value. Lossy; use only for display
// or for feeding a non-Money computation (position sizing ratios, etc).
func (m Money) ToDollars() float64 {
	return float64(m.microdollars) / scaledBase
}

// ToDecimal converts to a decimal.Decimal dollar value, for interop with the
// decimal-denominated quantity/percentage fields elsewhere in the engine.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.New(m.microdollars, -6)
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{microdollars: m.microdollars + other.microdollars}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{microdollars: m.microdollars - other.microdollars}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{microdollars: -m.microdollars}
}

// Mul scales m by a plain float64 scalar (e.g. a quantity), rounding
// half-away-from-zero.
func (m Money) Mul(scalar float64) Money {
	return Money{microdollars: roundHalfAwayFromZero(float64(m.microdollars) * scalar)}
}

// MulDecimal scales m by a decimal.Decimal quantity without going through
// float64, for the cases (fill value = price * quantity) where the quantity
// itself came from decimal-denominated position sizing.
func (m Money) MulDecimal(scalar decimal.Decimal) Money {
	product := decimal.NewFromInt(m.microdollars).Mul(scalar)
	return Money{microdollars: product.Round(0).IntPart()}
}

// Div divides m by a plain float64 scalar, rounding half-away-from-zero.
func (m Money) Div(scalar float64) Money {
	return Money{microdollars: roundHalfAwayFromZero(float64(m.microdollars) / scalar)}
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool { return m.microdollars < other.microdollars }

// LessThanOrEqual reports whether m <= other.
func (m Money) LessThanOrEqual(other Money) bool { return m.microdollars <= other.microdollars }

// GreaterThan reports whether m > other.
func (m Money) GreaterThan(other Money) bool { return m.microdollars > other.microdollars }

// GreaterThanOrEqual reports whether m >= other.
func (m Money) GreaterThanOrEqual(other Money) bool { return m.microdollars >= other.microdollars }

// Equal reports whether m == other.
func (m Money) Equal(other Money) bool { return m.microdollars == other.microdollars }

// IsZero reports whether m is exactly zero.
func (m Money) IsZero() bool { return m.microdollars == 0 }

// Max returns the greater of a and b.
func Max(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the lesser of a and b.
func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// String renders m as a fixed-point dollar amount, e.g. "$1234.56".
func (m Money) String() string {
	return fmt.Sprintf("$%.2f", m.ToDollars())
}

// StringFixed renders m with the given number of fractional digits, matching
// the decimal.Decimal.StringFixed convention used elsewhere in the engine.
func (m Money) StringFixed(places int32) string {
	return m.ToDecimal().StringFixed(places)
}
