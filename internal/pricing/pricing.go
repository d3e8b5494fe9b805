// Package pricing computes subscription prices. Everything is integer
// arithmetic in minor currency units so that a preview quote and the
// authoritative charge at purchase time can never disagree.
package pricing

import "errors"

// referenceDuration is the content length, in seconds, that BaseRate prices.
const referenceDuration = 30

// MaxDays bounds a subscription length. Ten years is far beyond any real
// purchase and keeps the price arithmetic well inside int64.
const MaxDays = 3650

var (
	ErrInvalidDuration = errors.New("pricing: duration and days must be positive")
	ErrTooManyDays     = errors.New("pricing: days exceeds maximum subscription length")
	ErrPriceOverflow   = errors.New("pricing: price does not fit in 64 bits")
)

// Config holds the marketplace-wide pricing knobs. Both values are explicit
// configuration, passed in rather than read from anywhere, so Quote stays a
// pure function of its arguments.
type Config struct {
	// BaseRate is the price in minor units per day for 30-second content.
	BaseRate int64
	// DiscountPercent is the creator discount, e.g. 20 for 20%.
	DiscountPercent int64
}

type Quote struct {
	Gross    int64 `json:"gross"`
	Discount int64 `json:"discount"`
	Net      int64 `json:"net"`
}

// mul multiplies two non-negative int64s, reporting overflow instead of
// wrapping.
func mul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	return p, true
}

// Quote prices a subscription of the given length for content of the given
// duration. The duration multiplier is durationSeconds/30 applied as a
// single truncating division after all multiplications, which is exact for
// the offered durations (30/60/120/300) and rounds down otherwise.
//
// Every returned quote has a strictly positive net: inputs that would wrap
// the arithmetic or price out at zero are errors, never charges.
func (c Config) Quote(durationSeconds, days int64, isCreator bool) (Quote, error) {
	if durationSeconds <= 0 || days <= 0 || c.BaseRate <= 0 {
		return Quote{}, ErrInvalidDuration
	}
	if days > MaxDays {
		return Quote{}, ErrTooManyDays
	}

	perDay, ok := mul(c.BaseRate, durationSeconds)
	if !ok {
		return Quote{}, ErrPriceOverflow
	}
	total, ok := mul(perDay, days)
	if !ok {
		return Quote{}, ErrPriceOverflow
	}
	gross := total / referenceDuration

	var discount int64
	if isCreator {
		scaled, ok := mul(gross, c.DiscountPercent)
		if !ok {
			return Quote{}, ErrPriceOverflow
		}
		discount = scaled / 100
	}

	net := gross - discount
	if gross <= 0 || net <= 0 {
		return Quote{}, ErrPriceOverflow
	}

	return Quote{
		Gross:    gross,
		Discount: discount,
		Net:      net,
	}, nil
}
