// Package pricing resolves and validates engagement prices against a
// provider's published rate card.
package pricing

import (
	"errors"
	"fmt"

	"gigbridge/internal/models"
)

// RateCard carries a provider's minimum rates per pricing mode. A nil rate
// means the provider does not offer that mode.
type RateCard struct {
	MinHourlyRate *float64
	MinDailyRate  *float64
	MinFixedRate  *float64
}

// ErrNoRate is returned when the provider has no minimum rate configured for
// the requested pricing mode.
var ErrNoRate = errors.New("provider has no minimum rate for this pricing mode")

// NoRateError wraps ErrNoRate with the offending mode for user-facing messages.
type NoRateError struct {
	Mode models.PricingMode
}

func (e *NoRateError) Error() string {
	return fmt.Sprintf("provider has no minimum rate for mode %s", e.Mode)
}

func (e *NoRateError) Unwrap() error { return ErrNoRate }

// BelowFloorError is returned when an explicit price undercuts the provider's
// minimum for the requested mode and quantity.
type BelowFloorError struct {
	Floor    float64
	Proposed float64
}

func (e *BelowFloorError) Error() string {
	return fmt.Sprintf("proposed price %.2f is below the provider's minimum of %.2f", e.Proposed, e.Floor)
}

// Resolve computes the final price for an engagement. For hourly and daily
// modes the floor is minRate × quantity; for fixed mode it is the flat
// minimum. An explicit price must meet the floor; without one the floor
// itself becomes the price (auto-pricing), so the caller always gets a
// concrete value to persist.
func Resolve(mode models.PricingMode, rates RateCard, quantity int, explicit *float64) (float64, error) {
	var floor float64

	switch mode {
	case models.PricingHourly:
		if rates.MinHourlyRate == nil {
			return 0, &NoRateError{Mode: mode}
		}
		if quantity <= 0 {
			return 0, fmt.Errorf("hourly engagements need a positive number of hours")
		}
		floor = *rates.MinHourlyRate * float64(quantity)
	case models.PricingDaily:
		if rates.MinDailyRate == nil {
			return 0, &NoRateError{Mode: mode}
		}
		if quantity <= 0 {
			return 0, fmt.Errorf("daily engagements need a positive number of days")
		}
		floor = *rates.MinDailyRate * float64(quantity)
	case models.PricingFixed:
		if rates.MinFixedRate == nil {
			return 0, &NoRateError{Mode: mode}
		}
		floor = *rates.MinFixedRate
	default:
		return 0, fmt.Errorf("unknown pricing mode: %s", mode)
	}

	if explicit != nil {
		if *explicit < floor {
			return 0, &BelowFloorError{Floor: floor, Proposed: *explicit}
		}
		return *explicit, nil
	}

	return floor, nil
}
