package services

import (
	"context"
	"errors"
	"time"

	"lashclub/internal/membership"
	"lashclub/internal/models"

	"github.com/jackc/pgx/v5"
)

const membershipColumns = `id, user_id, tier_id, status, current_period_start, current_period_end,
	refills_used, full_sets_used, stripe_customer_id, stripe_subscription_id, created_at, updated_at`

func scanMembership(row pgx.Row) (models.Membership, error) {
	var m models.Membership
	err := row.Scan(&m.ID, &m.UserID, &m.TierID, &m.Status, &m.CurrentPeriodStart, &m.CurrentPeriodEnd,
		&m.RefillsUsed, &m.FullSetsUsed, &m.StripeCustomerID, &m.StripeSubscriptionID, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// CreatePendingMembership records the intent to subscribe before the Stripe
// checkout round-trip. Activation happens from the webhook.
func (s *Service) CreatePendingMembership(ctx context.Context, userID int64, tierID string) (models.Membership, error) {
	if userID == 0 || tierID == "" {
		return models.Membership{}, ErrInvalidRequest
	}
	if _, err := s.GetTier(ctx, tierID); err != nil {
		return models.Membership{}, err
	}
	m, err := scanMembership(s.pool.QueryRow(ctx, `
		INSERT INTO memberships (user_id, tier_id, status)
		VALUES ($1, $2, $3)
		RETURNING `+membershipColumns,
		userID, tierID, models.MembershipPending))
	return m, err
}

// ActivateMembership flips a pending membership to active and opens its first
// billing period with zeroed usage counters.
func (s *Service) ActivateMembership(ctx context.Context, membershipID int64, stripeCustomerID, stripeSubscriptionID string, periodEnd time.Time) error {
	now := time.Now().UTC()
	ct, err := s.pool.Exec(ctx, `
		UPDATE memberships
		SET status = $1, current_period_start = $2, current_period_end = $3,
			refills_used = 0, full_sets_used = 0,
			stripe_customer_id = $4, stripe_subscription_id = $5, updated_at = NOW()
		WHERE id = $6`,
		models.MembershipActive, now, periodEnd, stripeCustomerID, stripeSubscriptionID, membershipID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RenewMembership extends the billing period on invoice.paid and resets the
// free-service counters for the new period.
func (s *Service) RenewMembership(ctx context.Context, stripeSubscriptionID string, periodEnd time.Time) error {
	now := time.Now().UTC()
	ct, err := s.pool.Exec(ctx, `
		UPDATE memberships
		SET status = $1, current_period_start = $2, current_period_end = $3,
			refills_used = 0, full_sets_used = 0, updated_at = NOW()
		WHERE stripe_subscription_id = $4`,
		models.MembershipActive, now, periodEnd, stripeSubscriptionID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) MarkMembershipPastDue(ctx context.Context, stripeSubscriptionID string) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE memberships SET status = $1, updated_at = NOW()
		WHERE stripe_subscription_id = $2 AND status = $3`,
		models.MembershipPastDue, stripeSubscriptionID, models.MembershipActive)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) CancelMembership(ctx context.Context, userID int64) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE memberships SET status = $1, updated_at = NOW()
		WHERE user_id = $2 AND status IN ($3, $4)`,
		models.MembershipCancelled, userID, models.MembershipActive, models.MembershipPastDue)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrMembershipNotActive
	}
	return nil
}

func (s *Service) CancelMembershipByStripeID(ctx context.Context, stripeSubscriptionID string) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE memberships SET status = $1, updated_at = NOW()
		WHERE stripe_subscription_id = $2 AND status != $1`,
		models.MembershipCancelled, stripeSubscriptionID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMembershipForUser returns the user's latest non-cancelled membership.
func (s *Service) GetMembershipForUser(ctx context.Context, userID int64) (models.Membership, error) {
	m, err := scanMembership(s.pool.QueryRow(ctx, `
		SELECT `+membershipColumns+`
		FROM memberships
		WHERE user_id = $1 AND status != $2
		ORDER BY id DESC LIMIT 1`, userID, models.MembershipCancelled))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Membership{}, ErrNotFound
	}
	return m, err
}

func (s *Service) GetMembershipByStripeID(ctx context.Context, stripeSubscriptionID string) (models.Membership, error) {
	m, err := scanMembership(s.pool.QueryRow(ctx, `
		SELECT `+membershipColumns+`
		FROM memberships WHERE stripe_subscription_id = $1`, stripeSubscriptionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Membership{}, ErrNotFound
	}
	return m, err
}

func (s *Service) GetMembershipByID(ctx context.Context, membershipID int64) (models.Membership, error) {
	m, err := scanMembership(s.pool.QueryRow(ctx, `
		SELECT `+membershipColumns+`
		FROM memberships WHERE id = $1`, membershipID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Membership{}, ErrNotFound
	}
	return m, err
}

// ResetUsageIfStale zeroes the counters when the billing window has lapsed
// (missed renewal webhook, missing period bounds). Returns the fresh row.
func (s *Service) ResetUsageIfStale(ctx context.Context, m models.Membership) (models.Membership, error) {
	if !membership.ShouldResetUsage(m.CurrentPeriodStart, m.CurrentPeriodEnd, time.Now().UTC()) {
		return m, nil
	}
	return s.resetUsage(ctx, s.pool, m.ID)
}

// AdminResetUsage is the manual override for the studio front desk.
func (s *Service) AdminResetUsage(ctx context.Context, userID int64) (models.Membership, error) {
	m, err := s.GetMembershipForUser(ctx, userID)
	if err != nil {
		return models.Membership{}, err
	}
	return s.resetUsage(ctx, s.pool, m.ID)
}

func (s *Service) resetUsage(ctx context.Context, q querier, membershipID int64) (models.Membership, error) {
	now := time.Now().UTC()
	m, err := scanMembership(q.QueryRow(ctx, `
		UPDATE memberships
		SET refills_used = 0, full_sets_used = 0, current_period_start = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+membershipColumns, now, membershipID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Membership{}, ErrNotFound
	}
	return m, err
}
