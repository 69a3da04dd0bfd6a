package membership

import (
	"fmt"

	"lashclub/internal/models"
)

// Quote is the outcome of applying a percentage discount to a price.
// PriceCents + SavingsCents always equals the original price.
type Quote struct {
	PriceCents      int `json:"price_cents"`
	DiscountPercent int `json:"discount_percent"`
	SavingsCents    int `json:"savings_cents"`
}

// ServiceQuote extends Quote with the free-service outcome. Reason and
// Source are set only when IsFree is true.
type ServiceQuote struct {
	Quote
	IsFree bool   `json:"is_free"`
	Reason string `json:"reason,omitempty"`
	Source string `json:"source,omitempty"`
}

// Free-service sources, in precedence order. Quota consumption keys off
// these: only refill and full-set wins burn a counter.
const (
	SourceIncluded = "included"
	SourceRefill   = "refill"
	SourceFullSet  = "full_set"
)

// ProductPrice applies the tier's product discount. Nil benefits or a
// non-positive discount is the identity.
func ProductPrice(originalCents int, b *models.Benefits) Quote {
	if b == nil || b.ProductDiscount <= 0 {
		return Quote{PriceCents: originalCents}
	}
	savings := percentCents(originalCents, b.ProductDiscount)
	return Quote{
		PriceCents:      originalCents - savings,
		DiscountPercent: b.ProductDiscount,
		SavingsCents:    savings,
	}
}

// ServicePrice evaluates the member price for a service. Rules are priority
// ordered and the first match wins: a service that is both included in the
// membership and flagged as a refill resolves as included, the strongest
// entitlement.
func ServicePrice(originalCents int, serviceID string, b *models.Benefits, usage models.Usage, isRefill, isFullSet bool) ServiceQuote {
	if b == nil {
		return ServiceQuote{Quote: Quote{PriceCents: originalCents}}
	}

	for _, id := range b.IncludedServiceIDs {
		if id == serviceID {
			return ServiceQuote{
				Quote:  Quote{DiscountPercent: 100, SavingsCents: originalCents},
				IsFree: true,
				Reason: "Included in membership",
				Source: SourceIncluded,
			}
		}
	}

	if isRefill && b.FreeRefillsPerMonth > 0 && usage.RefillsUsed < b.FreeRefillsPerMonth {
		return ServiceQuote{
			Quote:  Quote{DiscountPercent: 100, SavingsCents: originalCents},
			IsFree: true,
			Reason: fmt.Sprintf("Free refill (%d/%d used)", usage.RefillsUsed+1, b.FreeRefillsPerMonth),
			Source: SourceRefill,
		}
	}

	if isFullSet && b.FreeFullSetsPerMonth > 0 && usage.FullSetsUsed < b.FreeFullSetsPerMonth {
		return ServiceQuote{
			Quote:  Quote{DiscountPercent: 100, SavingsCents: originalCents},
			IsFree: true,
			Reason: fmt.Sprintf("Free full set (%d/%d used)", usage.FullSetsUsed+1, b.FreeFullSetsPerMonth),
			Source: SourceFullSet,
		}
	}

	if b.ServiceDiscount > 0 {
		savings := percentCents(originalCents, b.ServiceDiscount)
		return ServiceQuote{Quote: Quote{
			PriceCents:      originalCents - savings,
			DiscountPercent: b.ServiceDiscount,
			SavingsCents:    savings,
		}}
	}

	return ServiceQuote{Quote: Quote{PriceCents: originalCents}}
}

// FinalChargeCents subtracts a points discount from a quoted price, clamped
// at zero so a charge can never go negative.
func FinalChargeCents(priceCents, discountCents int) int {
	return maxInt(0, priceCents-discountCents)
}

// percentCents rounds half-up at the cent.
func percentCents(cents, percent int) int {
	return (cents*percent + 50) / 100
}
