package services

import (
	"context"
	"errors"

	"lashclub/internal/membership"
	"lashclub/internal/models"

	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, user_id, product_name, original_cents, amount_cents, discount_percent,
	status, stripe_session_id, stripe_payment_intent_id, created_at, updated_at`

func scanOrder(row pgx.Row) (models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.UserID, &o.ProductName, &o.OriginalCents, &o.AmountCents, &o.DiscountPercent,
		&o.Status, &o.StripeSessionID, &o.StripePaymentIntentID, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// CreateProductOrder records a pending product purchase with the member's
// product discount already applied. Points never move on products.
func (s *Service) CreateProductOrder(ctx context.Context, userID int64, productName string, priceCents int) (models.Order, error) {
	if userID == 0 || productName == "" || priceCents <= 0 {
		return models.Order{}, ErrInvalidRequest
	}
	benefits, _, err := s.memberContext(ctx, userID)
	if err != nil {
		return models.Order{}, err
	}
	quote := membership.ProductPrice(priceCents, benefits)

	order, err := scanOrder(s.pool.QueryRow(ctx, `
		INSERT INTO orders (user_id, product_name, original_cents, amount_cents, discount_percent, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+orderColumns,
		userID, productName, priceCents, quote.PriceCents, quote.DiscountPercent, models.OrderStatusPending))
	return order, err
}

func (s *Service) LinkOrderSession(ctx context.Context, orderID int64, sessionID string) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE orders SET stripe_session_id = $1, updated_at = NOW()
		WHERE id = $2`, sessionID, orderID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) MarkOrderPaid(ctx context.Context, orderID int64, stripeSessionID, stripePaymentIntentID string) (models.Order, error) {
	order, err := scanOrder(s.pool.QueryRow(ctx, `
		UPDATE orders
		SET status = $1, stripe_session_id = $2, stripe_payment_intent_id = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING `+orderColumns,
		models.OrderStatusPaid, stripeSessionID, stripePaymentIntentID, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, ErrNotFound
	}
	return order, err
}

func (s *Service) GetOrder(ctx context.Context, orderID int64) (models.Order, error) {
	order, err := scanOrder(s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, ErrNotFound
	}
	return order, err
}

func (s *Service) GetOrderByStripeSessionID(ctx context.Context, sessionID string) (models.Order, error) {
	order, err := scanOrder(s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE stripe_session_id = $1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, ErrNotFound
	}
	return order, err
}
