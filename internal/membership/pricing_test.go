package membership

import (
	"testing"

	"lashclub/internal/models"
)

func TestProductPriceIdentityWithoutBenefits(t *testing.T) {
	q := ProductPrice(2599, nil)
	if q.PriceCents != 2599 || q.SavingsCents != 0 || q.DiscountPercent != 0 {
		t.Fatalf("unexpected quote: %+v", q)
	}
	q = ProductPrice(2599, &models.Benefits{ProductDiscount: 0})
	if q.PriceCents != 2599 || q.SavingsCents != 0 {
		t.Fatalf("unexpected quote: %+v", q)
	}
}

func TestProductPriceSplitsExactly(t *testing.T) {
	cases := []struct {
		cents, discount int
	}{
		{2599, 10},
		{1099, 15},
		{100, 33},
		{1, 50},
		{0, 20},
		{999999, 100},
	}
	for _, c := range cases {
		q := ProductPrice(c.cents, &models.Benefits{ProductDiscount: c.discount})
		if q.PriceCents+q.SavingsCents != c.cents {
			t.Fatalf("price %d + savings %d != original %d", q.PriceCents, q.SavingsCents, c.cents)
		}
		if q.PriceCents > c.cents {
			t.Fatalf("discounted price %d exceeds original %d", q.PriceCents, c.cents)
		}
		if q.DiscountPercent != c.discount {
			t.Fatalf("discount percent mismatch: %d != %d", q.DiscountPercent, c.discount)
		}
	}
}

func TestProductPriceRoundsHalfUp(t *testing.T) {
	// 15% of $10.99 is 164.85 cents and must round to 165.
	q := ProductPrice(1099, &models.Benefits{ProductDiscount: 15})
	if q.SavingsCents != 165 {
		t.Fatalf("expected savings 165, got %d", q.SavingsCents)
	}
	if q.PriceCents != 934 {
		t.Fatalf("expected price 934, got %d", q.PriceCents)
	}
}

func TestServicePriceIncludedBeatsRefill(t *testing.T) {
	b := &models.Benefits{
		FreeRefillsPerMonth: 2,
		IncludedServiceIDs:  []string{"classic-refill"},
	}
	q := ServicePrice(6500, "classic-refill", b, models.Usage{}, true, false)
	if !q.IsFree {
		t.Fatalf("expected free service, got %+v", q)
	}
	if q.Reason != "Included in membership" {
		t.Fatalf("included rule must win over refill rule, got reason %q", q.Reason)
	}
	if q.DiscountPercent != 100 || q.SavingsCents != 6500 || q.PriceCents != 0 {
		t.Fatalf("unexpected free quote: %+v", q)
	}
}

func TestServicePriceFreeRefillCountsFromOne(t *testing.T) {
	b := &models.Benefits{FreeRefillsPerMonth: 2}
	q := ServicePrice(6500, "classic-refill", b, models.Usage{RefillsUsed: 0}, true, false)
	if !q.IsFree || q.Reason != "Free refill (1/2 used)" {
		t.Fatalf("unexpected quote: %+v", q)
	}
	q = ServicePrice(6500, "classic-refill", b, models.Usage{RefillsUsed: 1}, true, false)
	if !q.IsFree || q.Reason != "Free refill (2/2 used)" {
		t.Fatalf("unexpected quote: %+v", q)
	}
	q = ServicePrice(6500, "classic-refill", b, models.Usage{RefillsUsed: 2}, true, false)
	if q.IsFree {
		t.Fatalf("quota exhausted, service must not be free: %+v", q)
	}
}

func TestServicePriceFreeFullSet(t *testing.T) {
	b := &models.Benefits{FreeFullSetsPerMonth: 1}
	q := ServicePrice(12000, "volume-full-set", b, models.Usage{}, false, true)
	if !q.IsFree || q.Reason != "Free full set (1/1 used)" {
		t.Fatalf("unexpected quote: %+v", q)
	}
	q = ServicePrice(12000, "volume-full-set", b, models.Usage{FullSetsUsed: 1}, false, true)
	if q.IsFree {
		t.Fatalf("quota exhausted, service must not be free: %+v", q)
	}
}

func TestServicePriceFlatDiscountFallback(t *testing.T) {
	b := &models.Benefits{ServiceDiscount: 20, FreeRefillsPerMonth: 1}
	q := ServicePrice(8000, "lash-lift", b, models.Usage{RefillsUsed: 1}, true, false)
	if q.IsFree {
		t.Fatalf("expected discounted, not free: %+v", q)
	}
	if q.PriceCents != 6400 || q.SavingsCents != 1600 || q.DiscountPercent != 20 {
		t.Fatalf("unexpected quote: %+v", q)
	}
}

func TestServicePriceNoBenefits(t *testing.T) {
	q := ServicePrice(8000, "lash-lift", nil, models.Usage{}, true, true)
	if q.IsFree || q.PriceCents != 8000 || q.SavingsCents != 0 {
		t.Fatalf("unexpected quote: %+v", q)
	}
}

func TestFinalChargeNeverNegative(t *testing.T) {
	if got := FinalChargeCents(5000, 8000); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := FinalChargeCents(5000, 3000); got != 2000 {
		t.Fatalf("expected 2000, got %d", got)
	}
}
