package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lashclub/internal/membership"
	"lashclub/internal/models"

	"github.com/jackc/pgx/v5"
)

const bookingColumns = `id, user_id, service_id, scheduled_at, original_cents, charged_cents,
	discount_percent, is_free, free_reason, points_redeemed, points_earned, status, created_at, updated_at`

func scanBooking(row pgx.Row) (models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.UserID, &b.ServiceID, &b.ScheduledAt, &b.OriginalCents, &b.ChargedCents,
		&b.DiscountPercent, &b.IsFree, &b.FreeReason, &b.PointsRedeemed, &b.PointsEarned, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// ServiceQuoteResult is the read-only preview handed to the booking form.
type ServiceQuoteResult struct {
	membership.ServiceQuote
	PointsBalance    int `json:"points_balance"`
	MaxRedeemable    int `json:"max_redeemable"`
	PointsEarnedHint int `json:"points_earned_hint"`
}

// QuoteService prices a service for a user without touching any state.
// Stale usage counters are treated as zero, matching what a booking would do.
func (s *Service) QuoteService(ctx context.Context, userID int64, serviceID string) (ServiceQuoteResult, error) {
	svc, err := s.GetService(ctx, serviceID)
	if err != nil {
		return ServiceQuoteResult{}, err
	}
	benefits, usage, err := s.memberContext(ctx, userID)
	if err != nil {
		return ServiceQuoteResult{}, err
	}
	quote := membership.ServicePrice(svc.PriceCents, svc.ID, benefits, usage,
		svc.Category == models.ServiceCategoryRefill, svc.Category == models.ServiceCategoryFullSet)

	acct, err := s.GetPointsAccount(ctx, userID)
	if err != nil {
		return ServiceQuoteResult{}, err
	}
	rate := 0
	if benefits != nil {
		rate = benefits.PointsRate
	}
	return ServiceQuoteResult{
		ServiceQuote:     quote,
		PointsBalance:    acct.Balance,
		MaxRedeemable:    s.policy.MaxRedeemable(acct.Balance, quote.PriceCents),
		PointsEarnedHint: membership.PointsEarned(quote.PriceCents, rate),
	}, nil
}

// memberContext resolves the benefits and usage counters an active
// membership contributes to pricing. No membership means nil benefits.
func (s *Service) memberContext(ctx context.Context, userID int64) (*models.Benefits, models.Usage, error) {
	m, err := s.GetMembershipForUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, models.Usage{}, nil
	}
	if err != nil {
		return nil, models.Usage{}, err
	}
	if m.Status != models.MembershipActive {
		return nil, models.Usage{}, nil
	}
	tiers, err := s.ListTiers(ctx)
	if err != nil {
		return nil, models.Usage{}, err
	}
	usage := m.Usage()
	if membership.ShouldResetUsage(m.CurrentPeriodStart, m.CurrentPeriodEnd, time.Now().UTC()) {
		usage = models.Usage{}
	}
	return membership.BenefitsForTier(m.TierID, tiers), usage, nil
}

// CreateBooking prices and records a booking in one transaction. The
// membership row is locked for the duration, and both the free-service
// counter and the points balance are mutated with conditional UPDATEs, so two
// concurrent bookings cannot double-spend a quota or a balance.
func (s *Service) CreateBooking(ctx context.Context, userID int64, serviceID string, scheduledAt time.Time, pointsToRedeem int) (models.Booking, error) {
	if userID == 0 || serviceID == "" || scheduledAt.IsZero() {
		return models.Booking{}, ErrInvalidRequest
	}
	if pointsToRedeem < 0 {
		return models.Booking{}, ErrInvalidRequest
	}
	svc, err := s.GetService(ctx, serviceID)
	if err != nil {
		return models.Booking{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Booking{}, err
	}
	defer tx.Rollback(ctx)

	var benefits *models.Benefits
	usage := models.Usage{}
	m, err := scanMembership(tx.QueryRow(ctx, `
		SELECT `+membershipColumns+`
		FROM memberships
		WHERE user_id = $1 AND status != $2
		ORDER BY id DESC LIMIT 1
		FOR UPDATE`, userID, models.MembershipCancelled))
	hasActive := false
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return models.Booking{}, err
	case m.Status == models.MembershipActive:
		if membership.ShouldResetUsage(m.CurrentPeriodStart, m.CurrentPeriodEnd, time.Now().UTC()) {
			if m, err = s.resetUsage(ctx, tx, m.ID); err != nil {
				return models.Booking{}, err
			}
		}
		tiers, err := s.ListTiers(ctx)
		if err != nil {
			return models.Booking{}, err
		}
		benefits = membership.BenefitsForTier(m.TierID, tiers)
		usage = m.Usage()
		hasActive = true
	}

	quote := membership.ServicePrice(svc.PriceCents, svc.ID, benefits, usage,
		svc.Category == models.ServiceCategoryRefill, svc.Category == models.ServiceCategoryFullSet)

	charged := quote.PriceCents
	if pointsToRedeem > 0 {
		var balance int
		err := tx.QueryRow(ctx, `
			SELECT balance FROM points_accounts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			balance = 0
		} else if err != nil {
			return models.Booking{}, err
		}
		if !s.policy.CanRedeem(balance) {
			return models.Booking{}, ErrRedemptionTooSmall
		}
		if pointsToRedeem > balance {
			return models.Booking{}, ErrInsufficientPoints
		}
		if pointsToRedeem > s.policy.MaxRedeemable(balance, quote.PriceCents) {
			return models.Booking{}, ErrRedemptionCapped
		}
		charged = membership.FinalChargeCents(quote.PriceCents, s.policy.DiscountCents(pointsToRedeem))
	}

	booking, err := scanBooking(tx.QueryRow(ctx, `
		INSERT INTO bookings (user_id, service_id, scheduled_at, original_cents, charged_cents,
			discount_percent, is_free, free_reason, points_redeemed, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+bookingColumns,
		userID, svc.ID, scheduledAt.UTC(), svc.PriceCents, charged,
		quote.DiscountPercent, quote.IsFree, quote.Reason, pointsToRedeem, models.BookingConfirmed))
	if err != nil {
		return models.Booking{}, err
	}

	if hasActive && benefits != nil {
		switch quote.Source {
		case membership.SourceRefill:
			ct, err := tx.Exec(ctx, `
				UPDATE memberships
				SET refills_used = refills_used + 1, updated_at = NOW()
				WHERE id = $1 AND refills_used < $2`, m.ID, benefits.FreeRefillsPerMonth)
			if err != nil {
				return models.Booking{}, err
			}
			if ct.RowsAffected() == 0 {
				return models.Booking{}, ErrQuotaExhausted
			}
		case membership.SourceFullSet:
			ct, err := tx.Exec(ctx, `
				UPDATE memberships
				SET full_sets_used = full_sets_used + 1, updated_at = NOW()
				WHERE id = $1 AND full_sets_used < $2`, m.ID, benefits.FreeFullSetsPerMonth)
			if err != nil {
				return models.Booking{}, err
			}
			if ct.RowsAffected() == 0 {
				return models.Booking{}, ErrQuotaExhausted
			}
		}
	}

	if pointsToRedeem > 0 {
		desc := fmt.Sprintf("Redeemed on %s", svc.Name)
		if err := s.redeemPoints(ctx, tx, userID, pointsToRedeem, desc, &booking.ID); err != nil {
			return models.Booking{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Booking{}, err
	}
	return booking, nil
}

// CompleteBooking marks a confirmed booking done and credits points on the
// amount actually charged. Points are earned on services only; product
// orders never reach this path.
func (s *Service) CompleteBooking(ctx context.Context, bookingID int64) (models.Booking, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Booking{}, err
	}
	defer tx.Rollback(ctx)

	booking, err := scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING `+bookingColumns,
		models.BookingCompleted, bookingID, models.BookingConfirmed))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetBooking(ctx, bookingID); getErr != nil {
			return models.Booking{}, getErr
		}
		return models.Booking{}, ErrBookingNotOpen
	}
	if err != nil {
		return models.Booking{}, err
	}

	rate := 0
	benefits, _, err := s.memberContext(ctx, booking.UserID)
	if err != nil {
		return models.Booking{}, err
	}
	if benefits != nil {
		rate = benefits.PointsRate
	}
	earned := membership.PointsEarned(booking.ChargedCents, rate)
	if earned > 0 {
		svc, err := s.GetService(ctx, booking.ServiceID)
		if err != nil {
			return models.Booking{}, err
		}
		desc := fmt.Sprintf("Earned on %s", svc.Name)
		if err := s.earnPoints(ctx, tx, booking.UserID, earned, desc, &booking.ID); err != nil {
			return models.Booking{}, err
		}
		_, err = tx.Exec(ctx, `
			UPDATE bookings SET points_earned = $1, updated_at = NOW()
			WHERE id = $2`, earned, booking.ID)
		if err != nil {
			return models.Booking{}, err
		}
		booking.PointsEarned = earned
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Booking{}, err
	}
	return booking, nil
}

// CancelBooking refunds redeemed points through the ledger. Consumed free
// quota stays consumed; the admin reset covers disputes.
func (s *Service) CancelBooking(ctx context.Context, bookingID int64) (models.Booking, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Booking{}, err
	}
	defer tx.Rollback(ctx)

	booking, err := scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING `+bookingColumns,
		models.BookingCancelled, bookingID, models.BookingConfirmed))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetBooking(ctx, bookingID); getErr != nil {
			return models.Booking{}, getErr
		}
		return models.Booking{}, ErrBookingNotOpen
	}
	if err != nil {
		return models.Booking{}, err
	}

	if booking.PointsRedeemed > 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO points_accounts (user_id, balance, lifetime_earned)
			VALUES ($1, $2, 0)
			ON CONFLICT (user_id)
			DO UPDATE SET balance = points_accounts.balance + EXCLUDED.balance, updated_at = NOW()`,
			booking.UserID, booking.PointsRedeemed)
		if err != nil {
			return models.Booking{}, err
		}
		if err := s.appendLedger(ctx, tx, booking.UserID, models.LedgerAdjusted,
			booking.PointsRedeemed, "Refund for cancelled booking", &booking.ID); err != nil {
			return models.Booking{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Booking{}, err
	}
	return booking, nil
}

func (s *Service) GetBooking(ctx context.Context, bookingID int64) (models.Booking, error) {
	booking, err := scanBooking(s.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings WHERE id = $1`, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Booking{}, ErrNotFound
	}
	return booking, err
}

func (s *Service) ListBookings(ctx context.Context, userID int64) ([]models.Booking, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE user_id = $1
		ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
