// Package membership holds the pure benefit, pricing, points and usage-period
// rules for the studio's membership program. Every function here is total and
// side-effect free; persistence and concurrency belong to the services layer.
package membership

import (
	"lashclub/internal/models"
)

// BenefitsForTier looks a tier up by exact ID in the admin-authored catalog.
// Absence is not a fault: a missing or inactive tier yields nil, which every
// pricing function treats as "no benefits". A found tier always produces a
// fully-populated value, so callers never branch on missing fields.
func BenefitsForTier(tierID string, tiers []models.Tier) *models.Benefits {
	for i := range tiers {
		if tiers[i].ID != tierID {
			continue
		}
		b := tiers[i].Benefits
		if b.IncludedServiceIDs == nil {
			b.IncludedServiceIDs = []string{}
		}
		return &b
	}
	return nil
}

// Remaining is the unconsumed free-service quota for the current period.
type Remaining struct {
	Refills  int `json:"refills"`
	FullSets int `json:"full_sets"`
}

// RemainingFreeServices clamps at zero so a counter that historically ran past
// its allowance (admin override, legacy data) still renders safely.
func RemainingFreeServices(b *models.Benefits, usage models.Usage) Remaining {
	if b == nil {
		return Remaining{}
	}
	return Remaining{
		Refills:  maxInt(0, b.FreeRefillsPerMonth-usage.RefillsUsed),
		FullSets: maxInt(0, b.FreeFullSetsPerMonth-usage.FullSetsUsed),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
