package postgres

import (
	"context"
	"encoding/json"
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

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a product together with its variants in one transaction.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create product: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO products (id, name, slug, description, category, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = tx.Exec(ctx, query,
		p.ID, p.Name, p.Slug, p.Description, p.Category, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("insert product: %w", err)
	}

	for i := range p.Variants {
		if err := insertVariant(ctx, tx, &p.Variants[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create product: %w", err)
	}

	return nil
}

func insertVariant(ctx context.Context, tx pgx.Tx, v *domain.Variant) error {
	attrsJSON, err := json.Marshal(v.Attributes)
	if err != nil {
		return fmt.Errorf("marshal variant attributes: %w", err)
	}

	query := `
		INSERT INTO product_variants (id, product_id, name, sku, price, inventory, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = tx.Exec(ctx, query,
		v.ID, v.ProductID, v.Name, v.SKU, v.Price, v.Inventory, attrsJSON, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("variant", "sku", v.SKU)
		}
		return fmt.Errorf("insert variant: %w", err)
	}

	return nil
}

// GetByID retrieves a product with its variants by id.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return r.getProduct(ctx, "id = $1", id)
}

// GetBySlug retrieves a product with its variants by slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return r.getProduct(ctx, "slug = $1", slug)
}

func (r *ProductRepository) getProduct(ctx context.Context, where string, arg any) (*domain.Product, error) {
	query := fmt.Sprintf(`
		SELECT id, name, slug, description, category, status, created_at, updated_at
		FROM products
		WHERE %s`, where)

	var p domain.Product
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.Category, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	variants, err := r.loadVariants(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Variants = variants

	return &p, nil
}

func (r *ProductRepository) loadVariants(ctx context.Context, productID string) ([]domain.Variant, error) {
	query := `
		SELECT id, product_id, name, sku, price, inventory, attributes, created_at, updated_at
		FROM product_variants
		WHERE product_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		variants = append(variants, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant rows: %w", err)
	}

	if variants == nil {
		variants = []domain.Variant{}
	}

	return variants, nil
}

func scanVariant(row pgx.Row) (*domain.Variant, error) {
	var (
		v         domain.Variant
		attrsJSON []byte
	)
	if err := row.Scan(
		&v.ID, &v.ProductID, &v.Name, &v.SKU, &v.Price, &v.Inventory, &attrsJSON, &v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan variant row: %w", err)
	}
	if attrsJSON != nil {
		if err := json.Unmarshal(attrsJSON, &v.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal variant attributes: %w", err)
		}
	}
	return &v, nil
}

// GetVariant retrieves a single variant joined with its product's name and status.
func (r *ProductRepository) GetVariant(ctx context.Context, variantID string) (*repository.VariantDetail, error) {
	query := `
		SELECT v.id, v.product_id, v.name, v.sku, v.price, v.inventory, v.attributes,
		       v.created_at, v.updated_at, p.name, p.status
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1`

	var (
		d         repository.VariantDetail
		attrsJSON []byte
	)
	err := r.db.QueryRow(ctx, query, variantID).Scan(
		&d.ID, &d.ProductID, &d.Name, &d.SKU, &d.Price, &d.Inventory, &attrsJSON,
		&d.CreatedAt, &d.UpdatedAt, &d.ProductName, &d.ProductStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan variant detail: %w", err)
	}
	if attrsJSON != nil {
		if err := json.Unmarshal(attrsJSON, &d.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal variant attributes: %w", err)
		}
	}

	return &d, nil
}

// GetVariants retrieves the given variants with product details.
func (r *ProductRepository) GetVariants(ctx context.Context, variantIDs []string) ([]repository.VariantDetail, error) {
	if len(variantIDs) == 0 {
		return []repository.VariantDetail{}, nil
	}

	query := `
		SELECT v.id, v.product_id, v.name, v.sku, v.price, v.inventory, v.attributes,
		       v.created_at, v.updated_at, p.name, p.status
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = ANY($1)`

	rows, err := r.db.Query(ctx, query, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("query variant details: %w", err)
	}
	defer rows.Close()

	var details []repository.VariantDetail
	for rows.Next() {
		var (
			d         repository.VariantDetail
			attrsJSON []byte
		)
		if err := rows.Scan(
			&d.ID, &d.ProductID, &d.Name, &d.SKU, &d.Price, &d.Inventory, &attrsJSON,
			&d.CreatedAt, &d.UpdatedAt, &d.ProductName, &d.ProductStatus,
		); err != nil {
			return nil, fmt.Errorf("scan variant detail row: %w", err)
		}
		if attrsJSON != nil {
			if err := json.Unmarshal(attrsJSON, &d.Attributes); err != nil {
				return nil, fmt.Errorf("unmarshal variant attributes: %w", err)
			}
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant detail rows: %w", err)
	}

	if details == nil {
		details = []repository.VariantDetail{}
	}

	return details, nil
}

// List returns products matching the given filter with the total count.
// Variants are loaded per product; listing pages are small enough that the
// extra round trips stay cheap.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
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

	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, *filter.Category)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT id, name, slug, description, category, status, created_at, updated_at,
		       count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1,
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
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		products   []domain.Product
		totalCount int
	)

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Slug, &p.Description, &p.Category, &p.Status,
			&p.CreatedAt, &p.UpdatedAt, &totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	for i := range products {
		variants, err := r.loadVariants(ctx, products[i].ID)
		if err != nil {
			return nil, 0, err
		}
		products[i].Variants = variants
	}

	if products == nil {
		products = []domain.Product{}
	}

	return products, totalCount, nil
}

// Update modifies product-level fields.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products
		SET name = $1, slug = $2, description = $3, category = $4, status = $5, updated_at = $6
		WHERE id = $7`

	ct, err := r.db.Exec(ctx, query,
		p.Name, p.Slug, p.Description, p.Category, p.Status, p.UpdatedAt, p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("update product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}

	return nil
}

// UpdateVariant modifies a single variant.
func (r *ProductRepository) UpdateVariant(ctx context.Context, v *domain.Variant) error {
	attrsJSON, err := json.Marshal(v.Attributes)
	if err != nil {
		return fmt.Errorf("marshal variant attributes: %w", err)
	}

	v.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE product_variants
		SET name = $1, sku = $2, price = $3, inventory = $4, attributes = $5, updated_at = $6
		WHERE id = $7 AND product_id = $8`

	ct, err := r.db.Exec(ctx, query,
		v.Name, v.SKU, v.Price, v.Inventory, attrsJSON, v.UpdatedAt, v.ID, v.ProductID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("variant", "sku", v.SKU)
		}
		return fmt.Errorf("update variant: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("variant", v.ID)
	}

	return nil
}

// Delete removes a product; variants cascade at the schema level.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
