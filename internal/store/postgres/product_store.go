package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
)

// ProductStore implements domain.ProductStore using PostgreSQL.
type ProductStore struct {
	pool *pgxpool.Pool
}

// NewProductStore creates a ProductStore backed by the given pool.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

const productSelectCols = `id, vendor_id, name, description, base_price, quantity, created_at, updated_at`

// Upsert inserts or updates a product listing.
func (s *ProductStore) Upsert(ctx context.Context, p domain.Product) error {
	const query = `
		INSERT INTO products (id, vendor_id, name, description, base_price, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			vendor_id = EXCLUDED.vendor_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			base_price = EXCLUDED.base_price,
			quantity = EXCLUDED.quantity,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.VendorID, p.Name, p.Description, p.BasePrice, p.Quantity)
	if err != nil {
		return fmt.Errorf("postgres: upsert product %s: %w", p.ID, err)
	}
	return nil
}

// GetByID retrieves a single product.
func (s *ProductStore) GetByID(ctx context.Context, id string) (domain.Product, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+productSelectCols+` FROM products WHERE id = $1`, id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("postgres: get product %s: %w", id, err)
	}
	return p, nil
}

// ListByVendor returns a vendor's products with pagination.
func (s *ProductStore) ListByVendor(ctx context.Context, vendorID string, opts domain.ListOpts) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productSelectCols+` FROM products WHERE vendor_id = $1 ORDER BY id LIMIT $2 OFFSET $3`,
		vendorID, nonZeroLimit(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list products by vendor: %w", err)
	}
	defer rows.Close()

	return scanProductRows(rows)
}

// List returns all products with pagination.
func (s *ProductStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productSelectCols+` FROM products ORDER BY id LIMIT $1 OFFSET $2`,
		nonZeroLimit(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list products: %w", err)
	}
	defer rows.Close()

	return scanProductRows(rows)
}

func nonZeroLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func scanProduct(scanner interface{ Scan(dest ...any) error }) (domain.Product, error) {
	var p domain.Product
	err := scanner.Scan(
		&p.ID, &p.VendorID, &p.Name, &p.Description, &p.BasePrice, &p.Quantity,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func scanProductRows(rows pgx.Rows) ([]domain.Product, error) {
	var ps []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		ps = append(ps, p)
	}
	return ps, rows.Err()
}

// Compile-time interface check.
var _ domain.ProductStore = (*ProductStore)(nil)
