package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ziplinepark/canopy/internal/domain"
)

// PromoStore implements domain.PromoStore on a pgx connection pool.
type PromoStore struct {
	pool *pgxpool.Pool
}

// NewPromoStore creates a promo-code store using the given pool.
func NewPromoStore(pool *pgxpool.Pool) *PromoStore {
	return &PromoStore{pool: pool}
}

// Resolve returns the promo for a code. Codes are matched
// case-insensitively but stored uppercase.
func (s *PromoStore) Resolve(ctx context.Context, code string) (*domain.Promo, error) {
	var p domain.Promo
	var discountType string

	err := s.pool.QueryRow(ctx, `
		SELECT code, discount_type, discount_value, active, starts_at, expires_at, max_uses, used_count
		FROM promo_codes WHERE code = $1`,
		strings.ToUpper(strings.TrimSpace(code)),
	).Scan(&p.Code, &discountType, &p.Value, &p.Active, &p.StartsAt, &p.ExpiresAt, &p.MaxUses, &p.UsedCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPromoNotFound
		}
		return nil, domain.Internal(err, "promo.resolve", "failed to load promo code")
	}

	p.Type = domain.DiscountType(discountType)
	return &p, nil
}

// IncrementUsage bumps the redemption counter. A single atomic statement;
// concurrent confirmations both count.
func (s *PromoStore) IncrementUsage(ctx context.Context, code string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE promo_codes SET used_count = used_count + 1 WHERE code = $1`,
		strings.ToUpper(strings.TrimSpace(code)),
	)
	if err != nil {
		return domain.Internal(err, "promo.increment", "failed to increment promo usage")
	}
	return nil
}
