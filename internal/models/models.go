package models

import "time"

type User struct {
	ID           int64
	Email        string
	PasswordHash string  `json:"-"`
	GoogleID     *string `json:"-"`
	Status       string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Tier is an admin-authored membership plan. Benefit fields live directly on
// the tier row so the catalog stays a single read at quote time.
type Tier struct {
	ID            string
	Name          string
	PriceCents    int
	Popular       bool
	StripePriceID string
	Benefits      Benefits
	Active        bool
}

// Benefits is the discount/allowance bundle attached to a tier. A zero value
// means "no benefits"; callers never see missing fields.
type Benefits struct {
	ProductDiscount      int      `json:"product_discount"`
	ServiceDiscount      int      `json:"service_discount"`
	PointsRate           int      `json:"points_rate"`
	FreeRefillsPerMonth  int      `json:"free_refills_per_month"`
	FreeFullSetsPerMonth int      `json:"free_full_sets_per_month"`
	IncludedServiceIDs   []string `json:"included_service_ids"`
}

type Membership struct {
	ID                   int64
	UserID               int64
	TierID               string
	Status               string
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	RefillsUsed          int
	FullSetsUsed         int
	StripeCustomerID     string
	StripeSubscriptionID string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Usage is the per-period free-service counter pair read by the pricing rules.
type Usage struct {
	RefillsUsed  int
	FullSetsUsed int
}

func (m Membership) Usage() Usage {
	return Usage{RefillsUsed: m.RefillsUsed, FullSetsUsed: m.FullSetsUsed}
}

type PointsAccount struct {
	UserID         int64
	Balance        int
	LifetimeEarned int
	UpdatedAt      time.Time
}

// LedgerEntry is an immutable audit record of a points mutation.
type LedgerEntry struct {
	ID          string
	UserID      int64
	EntryType   string
	Amount      int
	Description string
	BookingID   *int64
	CreatedAt   time.Time
}

type Service struct {
	ID         string
	Name       string
	PriceCents int
	Category   string
	Active     bool
}

type Booking struct {
	ID              int64
	UserID          int64
	ServiceID       string
	ScheduledAt     time.Time
	OriginalCents   int
	ChargedCents    int
	DiscountPercent int
	IsFree          bool
	FreeReason      string
	PointsRedeemed  int
	PointsEarned    int
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Order struct {
	ID                    int64
	UserID                int64
	ProductName           string
	OriginalCents         int
	AmountCents           int
	DiscountPercent       int
	Status                string
	StripeSessionID       string
	StripePaymentIntentID string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

const (
	UserRoleUser  = "user"
	UserRoleAdmin = "admin"
)

const (
	MembershipPending   = "pending"
	MembershipActive    = "active"
	MembershipPastDue   = "past_due"
	MembershipCancelled = "cancelled"
)

const (
	LedgerEarned   = "earned"
	LedgerRedeemed = "redeemed"
	LedgerAdjusted = "adjusted"
)

const (
	ServiceCategoryRefill  = "refill"
	ServiceCategoryFullSet = "full_set"
	ServiceCategoryOther   = "other"
)

const (
	BookingConfirmed = "confirmed"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
)

const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
	OrderStatusFailed  = "failed"
)
