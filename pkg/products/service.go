package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrDuplicateSKU    = errors.New("sku already exists in operation")
)

// Service manages the product catalog for an operation.
type Service struct {
	db *sql.DB
}

// NewService creates a product service backed by the given database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateProduct adds a product to an operation's catalog.
func (s *Service) CreateProduct(ctx context.Context, product *Product) error {
	if product.Currency == "" {
		product.Currency = "USD"
	}
	product.IsActive = true

	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	query := `
		INSERT INTO products (operation_id, sku, name, description, price_cents, currency, stock, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, product.OperationID, product.SKU,
		product.Name, product.Description, product.PriceCents, product.Currency,
		product.Stock, product.IsActive, product.CreatedAt, product.UpdatedAt).
		Scan(&product.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateSKU, product.SKU)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetProduct retrieves a product by ID within an operation.
func (s *Service) GetProduct(ctx context.Context, operationID, id int64) (*Product, error) {
	query := `
		SELECT id, operation_id, sku, name, description, price_cents, currency, stock, is_active, created_at, updated_at
		FROM products
		WHERE id = $1 AND operation_id = $2
	`
	product, err := scanProduct(s.db.QueryRowContext(ctx, query, id, operationID))
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	return product, err
}

// GetProductBySKU retrieves a product by SKU within an operation.
func (s *Service) GetProductBySKU(ctx context.Context, operationID int64, sku string) (*Product, error) {
	query := `
		SELECT id, operation_id, sku, name, description, price_cents, currency, stock, is_active, created_at, updated_at
		FROM products
		WHERE operation_id = $1 AND sku = $2
	`
	product, err := scanProduct(s.db.QueryRowContext(ctx, query, operationID, sku))
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	return product, err
}

// ListProducts lists active products for an operation. Set includeInactive
// to also return delisted products.
func (s *Service) ListProducts(ctx context.Context, operationID int64, includeInactive bool) ([]*Product, error) {
	query := `
		SELECT id, operation_id, sku, name, description, price_cents, currency, stock, is_active, created_at, updated_at
		FROM products
		WHERE operation_id = $1
	`
	if !includeInactive {
		query += " AND is_active = true"
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, query, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// UpdateProduct applies a partial update to a product.
func (s *Service) UpdateProduct(ctx context.Context, operationID, id int64, updates *UpdateProductRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *updates.Name)
		argPos++
	}
	if updates.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *updates.Description)
		argPos++
	}
	if updates.PriceCents != nil {
		setClauses = append(setClauses, fmt.Sprintf("price_cents = $%d", argPos))
		args = append(args, *updates.PriceCents)
		argPos++
	}
	if updates.Stock != nil {
		setClauses = append(setClauses, fmt.Sprintf("stock = $%d", argPos))
		args = append(args, *updates.Stock)
		argPos++
	}
	if updates.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *updates.IsActive)
		argPos++
	}
	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	args = append(args, id, operationID)
	query := fmt.Sprintf("UPDATE products SET %s WHERE id = $%d AND operation_id = $%d",
		strings.Join(setClauses, ", "), argPos, argPos+1)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DeleteProduct removes a product from the catalog.
func (s *Service) DeleteProduct(ctx context.Context, operationID, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM products WHERE id = $1 AND operation_id = $2`, id, operationID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

func scanProduct(row interface{ Scan(dest ...interface{}) error }) (*Product, error) {
	product := &Product{}
	var description sql.NullString
	err := row.Scan(
		&product.ID, &product.OperationID, &product.SKU, &product.Name,
		&description, &product.PriceCents, &product.Currency, &product.Stock,
		&product.IsActive, &product.CreatedAt, &product.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	if description.Valid {
		product.Description = description.String
	}
	return product, nil
}
