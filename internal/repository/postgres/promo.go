package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// PromoRepository implements repository.PromoRepository using PostgreSQL.
type PromoRepository struct {
	db database.DBTX
}

// NewPromoRepository creates a new PostgreSQL-backed promo repository.
func NewPromoRepository(db database.DBTX) *PromoRepository {
	return &PromoRepository{db: db}
}

const promoColumns = `id, code, description, type, value, min_amount, max_discount,
	usage_limit, usage_count, valid_from, valid_to, status, created_at, updated_at`

// Create inserts a new promo code.
func (r *PromoRepository) Create(ctx context.Context, p *domain.Promo) error {
	query := `
		INSERT INTO promos (id, code, description, type, value, min_amount, max_discount,
			usage_limit, usage_count, valid_from, valid_to, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		p.ID, p.Code, p.Description, p.Type, p.Value, p.MinAmount, p.MaxDiscount,
		p.UsageLimit, p.UsageCount, p.ValidFrom, p.ValidTo, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("promo", "code", p.Code)
		}
		return fmt.Errorf("insert promo: %w", err)
	}

	return nil
}

// GetByID retrieves a promo by id.
func (r *PromoRepository) GetByID(ctx context.Context, id string) (*domain.Promo, error) {
	query := fmt.Sprintf(`SELECT %s FROM promos WHERE id = $1`, promoColumns)
	return r.scanPromo(ctx, query, id)
}

// GetByCode retrieves a promo by its code.
func (r *PromoRepository) GetByCode(ctx context.Context, code string) (*domain.Promo, error) {
	query := fmt.Sprintf(`SELECT %s FROM promos WHERE code = $1`, promoColumns)
	return r.scanPromo(ctx, query, code)
}

func (r *PromoRepository) scanPromo(ctx context.Context, query string, args ...any) (*domain.Promo, error) {
	var p domain.Promo
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.Code, &p.Description, &p.Type, &p.Value, &p.MinAmount, &p.MaxDiscount,
		&p.UsageLimit, &p.UsageCount, &p.ValidFrom, &p.ValidTo, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan promo: %w", err)
	}

	return &p, nil
}

// List returns promos matching the given filter with the total count.
func (r *PromoRepository) List(ctx context.Context, filter repository.PromoFilter) ([]domain.Promo, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.ValidNow {
		conditions = append(conditions, "valid_from <= NOW() AND valid_to >= NOW()")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM promos
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		promoColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list promos: %w", err)
	}
	defer rows.Close()

	var (
		promos     []domain.Promo
		totalCount int
	)

	for rows.Next() {
		var p domain.Promo
		if err := rows.Scan(
			&p.ID, &p.Code, &p.Description, &p.Type, &p.Value, &p.MinAmount, &p.MaxDiscount,
			&p.UsageLimit, &p.UsageCount, &p.ValidFrom, &p.ValidTo, &p.Status,
			&p.CreatedAt, &p.UpdatedAt, &totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan promo row: %w", err)
		}
		promos = append(promos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate promo rows: %w", err)
	}

	if promos == nil {
		promos = []domain.Promo{}
	}

	return promos, totalCount, nil
}

// Update modifies an existing promo. UsageCount is deliberately excluded; it
// only moves through the checkout transaction.
func (r *PromoRepository) Update(ctx context.Context, p *domain.Promo) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE promos
		SET code = $1, description = $2, type = $3, value = $4, min_amount = $5,
		    max_discount = $6, usage_limit = $7, valid_from = $8, valid_to = $9,
		    status = $10, updated_at = $11
		WHERE id = $12`

	ct, err := r.db.Exec(ctx, query,
		p.Code, p.Description, p.Type, p.Value, p.MinAmount,
		p.MaxDiscount, p.UsageLimit, p.ValidFrom, p.ValidTo,
		p.Status, p.UpdatedAt, p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("promo", "code", p.Code)
		}
		return fmt.Errorf("update promo: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promo", p.ID)
	}

	return nil
}

// Delete removes a promo.
func (r *PromoRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM promos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete promo: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promo", id)
	}

	return nil
}
