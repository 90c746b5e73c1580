package pricing

import (
	"errors"
	"testing"

	"gigbridge/internal/models"
)

func rate(v float64) *float64 { return &v }

func TestResolveAutoPriceHourly(t *testing.T) {
	rates := RateCard{MinHourlyRate: rate(50.00)}

	price, err := Resolve(models.PricingHourly, rates, 4, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if price != 200.00 {
		t.Fatalf("expected auto-price 200.00, got %.2f", price)
	}
}

func TestResolveExplicitPriceAtFloor(t *testing.T) {
	rates := RateCard{MinDailyRate: rate(300.00)}

	price, err := Resolve(models.PricingDaily, rates, 2, rate(600.00))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if price != 600.00 {
		t.Fatalf("expected 600.00, got %.2f", price)
	}
}

func TestResolveFixedBelowFloor(t *testing.T) {
	rates := RateCard{MinFixedRate: rate(100.00)}

	_, err := Resolve(models.PricingFixed, rates, 0, rate(80.00))
	var floorErr *BelowFloorError
	if !errors.As(err, &floorErr) {
		t.Fatalf("expected BelowFloorError, got %v", err)
	}
	if floorErr.Floor != 100.00 || floorErr.Proposed != 80.00 {
		t.Fatalf("expected floor=100.00 proposed=80.00, got %+v", floorErr)
	}
}

func TestResolveMissingRate(t *testing.T) {
	rates := RateCard{MinFixedRate: rate(100.00)}

	_, err := Resolve(models.PricingHourly, rates, 4, nil)
	if !errors.Is(err, ErrNoRate) {
		t.Fatalf("expected ErrNoRate, got %v", err)
	}
}

func TestResolveRejectsZeroQuantity(t *testing.T) {
	rates := RateCard{MinHourlyRate: rate(50.00)}

	if _, err := Resolve(models.PricingHourly, rates, 0, nil); err == nil {
		t.Fatalf("expected error for zero hours")
	}
}

func TestResolveFixedExplicitAboveFloor(t *testing.T) {
	rates := RateCard{MinFixedRate: rate(100.00)}

	price, err := Resolve(models.PricingFixed, rates, 0, rate(150.00))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if price != 150.00 {
		t.Fatalf("expected 150.00, got %.2f", price)
	}
}
