package services

import (
	"context"
	"errors"

	"lashclub/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetPointsAccount returns a zero-valued account for users who have never
// earned, so callers need not treat "no row" as a fault.
func (s *Service) GetPointsAccount(ctx context.Context, userID int64) (models.PointsAccount, error) {
	var acct models.PointsAccount
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, balance, lifetime_earned, updated_at
		FROM points_accounts WHERE user_id = $1`, userID,
	).Scan(&acct.UserID, &acct.Balance, &acct.LifetimeEarned, &acct.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PointsAccount{UserID: userID}, nil
	}
	return acct, err
}

func (s *Service) ListLedger(ctx context.Context, userID int64, limit int) ([]models.LedgerEntry, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, entry_type, amount, description, booking_id, created_at
		FROM points_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.EntryType, &e.Amount, &e.Description, &e.BookingID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// earnPoints credits the balance and lifetime total and appends the audit
// row. lifetime_earned only ever grows.
func (s *Service) earnPoints(ctx context.Context, q querier, userID int64, points int, description string, bookingID *int64) error {
	if points <= 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		INSERT INTO points_accounts (user_id, balance, lifetime_earned)
		VALUES ($1, $2, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET balance = points_accounts.balance + EXCLUDED.balance,
			lifetime_earned = points_accounts.lifetime_earned + EXCLUDED.lifetime_earned,
			updated_at = NOW()`, userID, points)
	if err != nil {
		return err
	}
	return s.appendLedger(ctx, q, userID, models.LedgerEarned, points, description, bookingID)
}

// redeemPoints debits the balance with a conditional UPDATE so the balance
// can never go negative, whatever else is running.
func (s *Service) redeemPoints(ctx context.Context, q querier, userID int64, points int, description string, bookingID *int64) error {
	if points <= 0 {
		return ErrInvalidRequest
	}
	ct, err := q.Exec(ctx, `
		UPDATE points_accounts
		SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2`, userID, points)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrInsufficientPoints
	}
	return s.appendLedger(ctx, q, userID, models.LedgerRedeemed, -points, description, bookingID)
}

func (s *Service) appendLedger(ctx context.Context, q querier, userID int64, entryType string, amount int, description string, bookingID *int64) error {
	_, err := q.Exec(ctx, `
		INSERT INTO points_ledger (id, user_id, entry_type, amount, description, booking_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), userID, entryType, amount, description, bookingID)
	return err
}

// AdminAdjustPoints applies a manual correction. Negative deltas observe the
// same non-negative balance guard as redemption.
func (s *Service) AdminAdjustPoints(ctx context.Context, userID int64, delta int, description string) error {
	if delta == 0 {
		return ErrInvalidRequest
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if delta > 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO points_accounts (user_id, balance, lifetime_earned)
			VALUES ($1, $2, 0)
			ON CONFLICT (user_id)
			DO UPDATE SET balance = points_accounts.balance + EXCLUDED.balance, updated_at = NOW()`,
			userID, delta)
		if err != nil {
			return err
		}
	} else {
		ct, err := tx.Exec(ctx, `
			UPDATE points_accounts
			SET balance = balance + $2, updated_at = NOW()
			WHERE user_id = $1 AND balance + $2 >= 0`, userID, delta)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return ErrInsufficientPoints
		}
	}
	if err := s.appendLedger(ctx, tx, userID, models.LedgerAdjusted, delta, description, nil); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
