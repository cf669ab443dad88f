package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopsim/internal/domain/category"
	"github.com/xenking/shopsim/internal/domain/product"
	"github.com/xenking/shopsim/internal/domain/query"
)

const (
	productColumns = `p.id, p.name, p.description, p.price, p.stock_quantity, p.category_id,
		p.image_url, COALESCE(p.sku, ''), p.is_active, p.created_at, p.updated_at`

	listProductsSQL  = `SELECT ` + productColumns + ` FROM products p`
	countProductsSQL = `SELECT count(*) FROM products p`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	createProductSQL = `INSERT INTO products
		(name, description, price, stock_quantity, category_id, image_url, sku, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)
		RETURNING id`

	upsertProductSQL = `INSERT INTO products
		(name, description, price, stock_quantity, category_id, image_url, sku, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)
		ON CONFLICT (sku) WHERE sku IS NOT NULL AND sku <> '' DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			stock_quantity = EXCLUDED.stock_quantity,
			category_id = EXCLUDED.category_id,
			image_url = EXCLUDED.image_url,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING id`

	updateProductSQL = `UPDATE products SET
		name = $2, description = $3, price = $4, stock_quantity = $5, category_id = $6,
		image_url = $7, sku = NULLIF($8, ''), is_active = $9, updated_at = $10
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var productSortColumns = map[product.SortField]string{
	product.SortByID:        "p.id",
	product.SortByName:      "p.name",
	product.SortByPrice:     "p.price",
	product.SortByStock:     "p.stock_quantity",
	product.SortByCreatedAt: "p.created_at",
	product.SortByUpdatedAt: "p.updated_at",
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List filters, sorts and paginates active products.
func (r *ProductRepository) List(ctx context.Context, f product.ListFilter) (query.Page[product.Product], error) {
	var w where
	w.add("p.is_active")
	w.search(f.SearchTerm, "p.name", "p.description", "p.sku")
	if f.CategoryID != nil {
		w.add("p.category_id = ?", *f.CategoryID)
	}
	if f.MinPrice != nil {
		w.add("p.price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		w.add("p.price <= ?", *f.MaxPrice)
	}
	if f.InStock {
		w.add("p.stock_quantity > 0")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countProductsSQL+w.String(), w.args...).Scan(&total); err != nil {
		return query.Page[product.Product]{}, fmt.Errorf("counting products: %w", err)
	}

	column, ok := productSortColumns[f.Sort]
	if !ok {
		column = "p.id"
	}
	clause, args := w.page(column, "p.id", f.Filter)
	rows, err := r.pool.Query(ctx, listProductsSQL+w.String()+clause, args...)
	if err != nil {
		return query.Page[product.Product]{}, fmt.Errorf("listing products: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return query.Page[product.Product]{}, fmt.Errorf("listing products: %w", err)
	}
	return query.Page[product.Product]{
		Items:      items,
		TotalCount: total,
		Page:       f.Page,
		PageSize:   f.PageSize,
	}, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// Create inserts p and sets its id.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.pool.QueryRow(ctx, createProductSQL,
		p.Name, p.Description, p.Price, p.StockQuantity, p.CategoryID,
		p.ImageURL, p.SKU, p.IsActive, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return productError(err, fmt.Sprintf("creating product %q", p.Name))
	}
	return nil
}

// Upsert inserts p or overwrites the product with the same SKU. Products
// without a SKU are always inserted.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	err := r.pool.QueryRow(ctx, upsertProductSQL,
		p.Name, p.Description, p.Price, p.StockQuantity, p.CategoryID,
		p.ImageURL, p.SKU, p.IsActive, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return productError(err, fmt.Sprintf("upserting product %q", p.Name))
	}
	return nil
}

// Update overwrites the writable fields of p.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.StockQuantity, p.CategoryID,
		p.ImageURL, p.SKU, p.IsActive, p.UpdatedAt,
	)
	if err != nil {
		return productError(err, fmt.Sprintf("updating product %d", p.ID))
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes a product. Order items still referencing it make the
// foreign key reject the delete.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		if code, _ := pgCode(err); code == foreignKeyViolation {
			return product.ErrInUse
		}
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// productError maps constraint violations raised by inserts and updates.
func productError(err error, op string) error {
	switch code, _ := pgCode(err); code {
	case uniqueViolation:
		return product.ErrDuplicateSKU
	case foreignKeyViolation:
		return category.ErrNotFound
	case checkViolation:
		return &product.ValidationError{Field: "product", Reason: "violates a catalog constraint"}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &price, &p.StockQuantity, &p.CategoryID,
		&p.ImageURL, &p.SKU, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	p.Price = price
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, err
}
