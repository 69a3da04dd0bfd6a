package membership

import "testing"

func TestPointsEarnedFloors(t *testing.T) {
	cases := []struct {
		cents, rate, want int
	}{
		{10000, 5, 5},   // $100 at 5% -> 5 points
		{9999, 5, 4},    // floor, never round up
		{6500, 10, 6},   // $65 at 10% -> 6.5 floors to 6
		{10000, 0, 0},   // rate zero
		{10000, -5, 0},  // negative rate
		{0, 10, 0},      // nothing spent
		{-100, 10, 0},   // defensive
	}
	for _, c := range cases {
		if got := PointsEarned(c.cents, c.rate); got != c.want {
			t.Fatalf("PointsEarned(%d, %d) = %d, want %d", c.cents, c.rate, got, c.want)
		}
	}
}

func TestPointsEarnedMonotonic(t *testing.T) {
	prev := 0
	for cents := 0; cents <= 50000; cents += 250 {
		got := PointsEarned(cents, 7)
		if got < prev {
			t.Fatalf("earned points decreased: %d -> %d at %d cents", prev, got, cents)
		}
		if got < 0 {
			t.Fatalf("negative points at %d cents", cents)
		}
		prev = got
	}
	prev = 0
	for rate := 0; rate <= 100; rate++ {
		got := PointsEarned(12345, rate)
		if got < prev {
			t.Fatalf("earned points decreased: %d -> %d at rate %d", prev, got, rate)
		}
		prev = got
	}
}

func TestCanRedeemBoundary(t *testing.T) {
	p := DefaultPointsPolicy()
	if p.CanRedeem(99) {
		t.Fatalf("99 points must not be redeemable")
	}
	if !p.CanRedeem(100) {
		t.Fatalf("100 points must be redeemable")
	}
}

func TestMaxRedeemable(t *testing.T) {
	p := DefaultPointsPolicy()
	// Balance-limited: only 50 points held against a $200 service — but 50 is
	// below the minimum, so nothing is redeemable.
	if got := p.MaxRedeemable(50, 20000); got != 0 {
		t.Fatalf("below-minimum balance must cap at 0, got %d", got)
	}
	// Balance-limited above the minimum.
	if got := p.MaxRedeemable(150, 20000); got != 150 {
		t.Fatalf("expected 150, got %d", got)
	}
	// Service-amount-limited, floored to whole dollars.
	if got := p.MaxRedeemable(500, 8099); got != 80 {
		t.Fatalf("expected 80, got %d", got)
	}
}

func TestDiscountCentsAndFinalCharge(t *testing.T) {
	p := DefaultPointsPolicy()
	if got := p.DiscountCents(25); got != 2500 {
		t.Fatalf("expected 2500, got %d", got)
	}
	if got := p.DiscountCents(0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := p.DiscountCents(-10); got != 0 {
		t.Fatalf("negative points must not produce a discount, got %d", got)
	}
	// Redeeming up to the cap can never push the charge negative.
	price := 8099
	max := p.MaxRedeemable(500, price)
	if charge := FinalChargeCents(price, p.DiscountCents(max)); charge < 0 {
		t.Fatalf("charge went negative: %d", charge)
	}
}
