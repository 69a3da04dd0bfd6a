package services

import (
	"context"
	"errors"

	"lashclub/internal/models"

	"github.com/jackc/pgx/v5"
)

const tierColumns = `id, name, price_cents, popular, stripe_price_id,
	product_discount, service_discount, points_rate,
	free_refills_per_month, free_full_sets_per_month, included_service_ids, active`

func scanTier(row pgx.Row) (models.Tier, error) {
	var t models.Tier
	err := row.Scan(&t.ID, &t.Name, &t.PriceCents, &t.Popular, &t.StripePriceID,
		&t.Benefits.ProductDiscount, &t.Benefits.ServiceDiscount, &t.Benefits.PointsRate,
		&t.Benefits.FreeRefillsPerMonth, &t.Benefits.FreeFullSetsPerMonth,
		&t.Benefits.IncludedServiceIDs, &t.Active)
	return t, err
}

// ListTiers returns the active tier catalog in price order. This is the
// catalog the pure benefit resolver runs against.
func (s *Service) ListTiers(ctx context.Context) ([]models.Tier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tierColumns+`
		FROM membership_tiers WHERE active = TRUE ORDER BY price_cents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tiers []models.Tier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

func (s *Service) GetTier(ctx context.Context, tierID string) (models.Tier, error) {
	t, err := scanTier(s.pool.QueryRow(ctx, `
		SELECT `+tierColumns+`
		FROM membership_tiers WHERE id = $1`, tierID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Tier{}, ErrNotFound
	}
	return t, err
}

// UpdateTier rewrites an admin-authored tier in place.
func (s *Service) UpdateTier(ctx context.Context, t models.Tier) error {
	if t.ID == "" || t.Name == "" || t.PriceCents < 0 {
		return ErrInvalidRequest
	}
	included := t.Benefits.IncludedServiceIDs
	if included == nil {
		included = []string{}
	}
	ct, err := s.pool.Exec(ctx, `
		UPDATE membership_tiers
		SET name = $2, price_cents = $3, popular = $4, stripe_price_id = $5,
			product_discount = $6, service_discount = $7, points_rate = $8,
			free_refills_per_month = $9, free_full_sets_per_month = $10,
			included_service_ids = $11, active = $12
		WHERE id = $1`,
		t.ID, t.Name, t.PriceCents, t.Popular, t.StripePriceID,
		t.Benefits.ProductDiscount, t.Benefits.ServiceDiscount, t.Benefits.PointsRate,
		t.Benefits.FreeRefillsPerMonth, t.Benefits.FreeFullSetsPerMonth, included, t.Active)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) ListServices(ctx context.Context) ([]models.Service, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, price_cents, category, active
		FROM services WHERE active = TRUE ORDER BY category, price_cents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Service
	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.PriceCents, &svc.Category, &svc.Active); err != nil {
			return nil, err
		}
		list = append(list, svc)
	}
	return list, rows.Err()
}

func (s *Service) GetService(ctx context.Context, serviceID string) (models.Service, error) {
	var svc models.Service
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, price_cents, category, active
		FROM services WHERE id = $1 AND active = TRUE`, serviceID,
	).Scan(&svc.ID, &svc.Name, &svc.PriceCents, &svc.Category, &svc.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Service{}, ErrNotFound
	}
	return svc, err
}
