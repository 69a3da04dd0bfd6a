package membership

// Points are earned and redeemed on services only, never on products. Both
// halves of that policy live here so the services layer cannot apply one
// without the other.
const (
	// DefaultMinimumRedemption is the smallest balance a member may redeem from.
	DefaultMinimumRedemption = 100
	// DefaultPointValueCents prices one point at one dollar. The ratio is a
	// policy knob, not a law of the program.
	DefaultPointValueCents = 100
)

// PointsPolicy carries the redemption thresholds. The zero value is not
// usable; construct with DefaultPointsPolicy or from config.
type PointsPolicy struct {
	MinimumRedemption int
	PointValueCents   int
}

func DefaultPointsPolicy() PointsPolicy {
	return PointsPolicy{
		MinimumRedemption: DefaultMinimumRedemption,
		PointValueCents:   DefaultPointValueCents,
	}
}

// PointsEarned floors rather than rounds so fractional points are never
// granted. Zero when the rate is non-positive.
func PointsEarned(serviceCents, pointsRate int) int {
	if pointsRate <= 0 || serviceCents <= 0 {
		return 0
	}
	return serviceCents * pointsRate / 10000
}

// CanRedeem reports redemption eligibility. The boundary sits at exactly the
// minimum: a balance of MinimumRedemption qualifies.
func (p PointsPolicy) CanRedeem(balance int) bool {
	return balance >= p.MinimumRedemption
}

// MaxRedeemable caps redemption at the smaller of the member's balance and
// the service price in whole dollars. Zero when the balance is not eligible.
func (p PointsPolicy) MaxRedeemable(balance, serviceCents int) int {
	if !p.CanRedeem(balance) {
		return 0
	}
	return minInt(balance, serviceCents/p.PointValueCents)
}

// DiscountCents converts redeemed points into a price reduction.
func (p PointsPolicy) DiscountCents(points int) int {
	if points <= 0 {
		return 0
	}
	return points * p.PointValueCents
}
