package services

import (
	"context"
	"errors"
	"time"

	"lashclub/internal/config"
	"lashclub/internal/membership"
	"lashclub/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailAlreadyExists  = errors.New("email already registered")
	ErrUserDisabled        = errors.New("user account disabled")
	ErrMembershipNotActive = errors.New("membership not active")
	ErrInsufficientPoints  = errors.New("insufficient points")
	ErrRedemptionTooSmall  = errors.New("balance below minimum redemption")
	ErrRedemptionCapped    = errors.New("redemption exceeds service amount")
	ErrQuotaExhausted      = errors.New("free service quota exhausted")
	ErrBookingNotOpen      = errors.New("booking is not open")
	ErrStripeNotConfigured = errors.New("stripe not configured")
)

type Service struct {
	pool   *pgxpool.Pool
	config config.Config
	policy membership.PointsPolicy
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so row helpers can
// run inside or outside a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func New(pool *pgxpool.Pool, cfg config.Config) *Service {
	return &Service{pool: pool, config: cfg, policy: cfg.PointsPolicy()}
}

// Policy exposes the redemption policy to handlers that quote prices.
func (s *Service) Policy() membership.PointsPolicy {
	return s.policy
}

// EnsureSchema creates the tables on boot. Idempotent; real migrations can
// take over once the schema stops moving.
func (s *Service) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			google_id TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			role TEXT NOT NULL DEFAULT 'user',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS membership_tiers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price_cents INT NOT NULL,
			popular BOOLEAN NOT NULL DEFAULT FALSE,
			stripe_price_id TEXT NOT NULL DEFAULT '',
			product_discount INT NOT NULL DEFAULT 0,
			service_discount INT NOT NULL DEFAULT 0,
			points_rate INT NOT NULL DEFAULT 0,
			free_refills_per_month INT NOT NULL DEFAULT 0,
			free_full_sets_per_month INT NOT NULL DEFAULT 0,
			included_service_ids TEXT[] NOT NULL DEFAULT '{}',
			active BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE TABLE IF NOT EXISTS memberships (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			tier_id TEXT NOT NULL REFERENCES membership_tiers(id),
			status TEXT NOT NULL DEFAULT 'pending',
			current_period_start TIMESTAMPTZ,
			current_period_end TIMESTAMPTZ,
			refills_used INT NOT NULL DEFAULT 0,
			full_sets_used INT NOT NULL DEFAULT 0,
			stripe_customer_id TEXT NOT NULL DEFAULT '',
			stripe_subscription_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS points_accounts (
			user_id BIGINT PRIMARY KEY REFERENCES users(id),
			balance INT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			lifetime_earned INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS points_ledger (
			id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			entry_type TEXT NOT NULL,
			amount INT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			booking_id BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price_cents INT NOT NULL,
			category TEXT NOT NULL DEFAULT 'other',
			active BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE TABLE IF NOT EXISTS bookings (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			service_id TEXT NOT NULL REFERENCES services(id),
			scheduled_at TIMESTAMPTZ NOT NULL,
			original_cents INT NOT NULL,
			charged_cents INT NOT NULL,
			discount_percent INT NOT NULL DEFAULT 0,
			is_free BOOLEAN NOT NULL DEFAULT FALSE,
			free_reason TEXT NOT NULL DEFAULT '',
			points_redeemed INT NOT NULL DEFAULT 0,
			points_earned INT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'confirmed',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			product_name TEXT NOT NULL,
			original_cents INT NOT NULL,
			amount_cents INT NOT NULL,
			discount_percent INT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			stripe_session_id TEXT NOT NULL DEFAULT '',
			stripe_payment_intent_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

// EnsureDefaultTiers upserts the configured tier catalog so a fresh database
// comes up sellable.
func (s *Service) EnsureDefaultTiers(ctx context.Context) error {
	for _, t := range s.config.Tiers() {
		included := t.Benefits.IncludedServiceIDs
		if included == nil {
			included = []string{}
		}
		_, err := s.pool.Exec(ctx, `
			INSERT INTO membership_tiers (id, name, price_cents, popular, stripe_price_id,
				product_discount, service_discount, points_rate,
				free_refills_per_month, free_full_sets_per_month, included_service_ids, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id)
			DO UPDATE SET name = EXCLUDED.name,
				price_cents = EXCLUDED.price_cents,
				popular = EXCLUDED.popular,
				stripe_price_id = EXCLUDED.stripe_price_id,
				product_discount = EXCLUDED.product_discount,
				service_discount = EXCLUDED.service_discount,
				points_rate = EXCLUDED.points_rate,
				free_refills_per_month = EXCLUDED.free_refills_per_month,
				free_full_sets_per_month = EXCLUDED.free_full_sets_per_month,
				included_service_ids = EXCLUDED.included_service_ids,
				active = EXCLUDED.active`,
			t.ID, t.Name, t.PriceCents, t.Popular, t.StripePriceID,
			t.Benefits.ProductDiscount, t.Benefits.ServiceDiscount, t.Benefits.PointsRate,
			t.Benefits.FreeRefillsPerMonth, t.Benefits.FreeFullSetsPerMonth, included, t.Active)
		if err != nil {
			return err
		}
	}
	return nil
}

// EnsureDefaultServices seeds the lash service menu.
func (s *Service) EnsureDefaultServices(ctx context.Context) error {
	defaults := []models.Service{
		{ID: "classic-full-set", Name: "Classic Full Set", PriceCents: 12000, Category: models.ServiceCategoryFullSet, Active: true},
		{ID: "volume-full-set", Name: "Volume Full Set", PriceCents: 16000, Category: models.ServiceCategoryFullSet, Active: true},
		{ID: "classic-refill", Name: "Classic Refill", PriceCents: 6500, Category: models.ServiceCategoryRefill, Active: true},
		{ID: "volume-refill", Name: "Volume Refill", PriceCents: 8500, Category: models.ServiceCategoryRefill, Active: true},
		{ID: "lash-lift", Name: "Lash Lift & Tint", PriceCents: 9500, Category: models.ServiceCategoryOther, Active: true},
		{ID: "lash-bath", Name: "Lash Bath", PriceCents: 2500, Category: models.ServiceCategoryOther, Active: true},
	}
	for _, svc := range defaults {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO services (id, name, price_cents, category, active)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING`,
			svc.ID, svc.Name, svc.PriceCents, svc.Category, svc.Active)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) CreateUser(ctx context.Context, email, password string) (models.User, error) {
	if email == "" || password == "" {
		return models.User{}, ErrInvalidRequest
	}
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}
	var user models.User
	err = s.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, status, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password_hash, google_id, status, role, created_at, updated_at`,
		email, string(passwordHash), models.UserStatusActive, models.UserRoleUser,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.GoogleID, &user.Status, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrEmailAlreadyExists
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *Service) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, google_id, status, role, created_at, updated_at
		FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.GoogleID, &user.Status, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return user, err
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, google_id, status, role, created_at, updated_at
		FROM users WHERE email = $1`, email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.GoogleID, &user.Status, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return user, err
}

func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	if email == "" || password == "" {
		return models.User{}, ErrInvalidCredentials
	}
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if user.Status != models.UserStatusActive {
		return models.User{}, ErrUserDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetOrCreateUserByGoogleID links or creates an account on first Google login.
func (s *Service) GetOrCreateUserByGoogleID(ctx context.Context, googleID, email string) (models.User, bool, error) {
	if googleID == "" || email == "" {
		return models.User{}, false, ErrInvalidRequest
	}
	var user models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, google_id, status, role, created_at, updated_at
		FROM users WHERE google_id = $1`, googleID,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.GoogleID, &user.Status, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, false, err
	}

	existing, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		_, err = s.pool.Exec(ctx, `
			UPDATE users SET google_id = $1, updated_at = NOW()
			WHERE id = $2`, googleID, existing.ID)
		if err != nil {
			return models.User{}, false, err
		}
		existing.GoogleID = &googleID
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.User{}, false, err
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO users (email, google_id, status, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password_hash, google_id, status, role, created_at, updated_at`,
		email, googleID, models.UserStatusActive, models.UserRoleUser,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.GoogleID, &user.Status, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return models.User{}, false, err
	}
	return user, true, nil
}

func (s *Service) UpdateUserStatus(ctx context.Context, id int64, status string) error {
	if status != models.UserStatusActive && status != models.UserStatusDisabled {
		return ErrInvalidRequest
	}
	ct, err := s.pool.Exec(ctx, `
		UPDATE users SET status = $1, updated_at = NOW()
		WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) UpdateUserRole(ctx context.Context, userID int64, role string) error {
	if role != models.UserRoleUser && role != models.UserRoleAdmin {
		return ErrInvalidRequest
	}
	ct, err := s.pool.Exec(ctx, `
		UPDATE users SET role = $1, updated_at = NOW()
		WHERE id = $2`, role, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context, page, pageSize int) ([]models.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, password_hash, google_id, status, role, created_at, updated_at
		FROM users
		ORDER BY id DESC
		LIMIT $1 OFFSET $2`, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.GoogleID, &u.Status, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalUsers        int64 `json:"total_users"`
	ActiveMemberships int64 `json:"active_memberships"`
	BookingsInPeriod  int64 `json:"bookings_in_period"`
	RevenueCents      int64 `json:"revenue_cents"`
	PointsOutstanding int64 `json:"points_outstanding"`
	PointsIssued      int64 `json:"points_issued"`
}

func (s *Service) GetStats(ctx context.Context, from, to time.Time) (Stats, error) {
	var stats Stats
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&stats.TotalUsers)
	if err != nil {
		return Stats{}, err
	}
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM memberships
		WHERE status = $1 AND current_period_end > NOW()`, models.MembershipActive).Scan(&stats.ActiveMemberships)
	if err != nil {
		return Stats{}, err
	}
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(charged_cents), 0) FROM bookings
		WHERE status != $1 AND created_at >= $2 AND created_at <= $3`,
		models.BookingCancelled, from, to).Scan(&stats.BookingsInPeriod, &stats.RevenueCents)
	if err != nil {
		return Stats{}, err
	}
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(balance), 0), COALESCE(SUM(lifetime_earned), 0)
		FROM points_accounts`).Scan(&stats.PointsOutstanding, &stats.PointsIssued)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
