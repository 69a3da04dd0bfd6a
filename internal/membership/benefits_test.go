package membership

import (
	"testing"

	"lashclub/internal/models"
)

func testTiers() []models.Tier {
	return []models.Tier{
		{
			ID:   "essentials",
			Name: "Lash Essentials",
			Benefits: models.Benefits{
				ProductDiscount:     5,
				ServiceDiscount:     10,
				PointsRate:          5,
				FreeRefillsPerMonth: 1,
			},
		},
		{
			ID:   "luxe",
			Name: "Lash Luxe",
			Benefits: models.Benefits{
				ProductDiscount:      10,
				ServiceDiscount:      15,
				PointsRate:           10,
				FreeRefillsPerMonth:  2,
				FreeFullSetsPerMonth: 1,
				IncludedServiceIDs:   []string{"classic-refill"},
			},
		},
	}
}

func TestBenefitsForTier(t *testing.T) {
	b := BenefitsForTier("luxe", testTiers())
	if b == nil {
		t.Fatalf("expected benefits for known tier")
	}
	if b.ServiceDiscount != 15 || b.FreeRefillsPerMonth != 2 {
		t.Fatalf("unexpected benefits: %+v", b)
	}
	if BenefitsForTier("no-such-tier", testTiers()) != nil {
		t.Fatalf("unknown tier must yield nil benefits")
	}
	if BenefitsForTier("essentials", nil) != nil {
		t.Fatalf("empty catalog must yield nil benefits")
	}
}

func TestBenefitsForTierAlwaysPopulated(t *testing.T) {
	tiers := []models.Tier{{ID: "bare"}}
	b := BenefitsForTier("bare", tiers)
	if b == nil {
		t.Fatalf("expected benefits value for bare tier")
	}
	if b.IncludedServiceIDs == nil {
		t.Fatalf("included services must default to an empty slice")
	}
	if b.ProductDiscount != 0 || b.PointsRate != 0 {
		t.Fatalf("numeric fields must default to zero: %+v", b)
	}
}

func TestRemainingFreeServicesClamps(t *testing.T) {
	b := &models.Benefits{FreeRefillsPerMonth: 2, FreeFullSetsPerMonth: 1}
	r := RemainingFreeServices(b, models.Usage{RefillsUsed: 1})
	if r.Refills != 1 || r.FullSets != 1 {
		t.Fatalf("unexpected remaining: %+v", r)
	}
	// Over-consumed counters must not go negative.
	r = RemainingFreeServices(b, models.Usage{RefillsUsed: 5, FullSetsUsed: 3})
	if r.Refills != 0 || r.FullSets != 0 {
		t.Fatalf("remaining must clamp at zero: %+v", r)
	}
	r = RemainingFreeServices(nil, models.Usage{RefillsUsed: 1})
	if r.Refills != 0 || r.FullSets != 0 {
		t.Fatalf("nil benefits must yield zero remaining: %+v", r)
	}
}
