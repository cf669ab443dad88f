package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shopsim/internal/domain/category"
	"github.com/xenking/shopsim/internal/domain/query"
)

const (
	categorySelect = `SELECT c.id, c.name, c.description, c.is_active, c.created_at, c.updated_at,
		(SELECT count(*) FROM products p WHERE p.category_id = c.id) AS product_count
		FROM categories c`

	getCategoryByIDSQL = categorySelect + ` WHERE c.id = $1`

	countCategoriesSQL = `SELECT count(*) FROM categories c`

	createCategorySQL = `INSERT INTO categories (name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	upsertCategorySQL = `INSERT INTO categories (name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING id`

	updateCategorySQL = `UPDATE categories SET name = $2, description = $3, is_active = $4, updated_at = $5
		WHERE id = $1`

	deleteCategorySQL = `DELETE FROM categories WHERE id = $1`

	categoryExistsSQL = `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`
)

var categorySortColumns = map[category.SortField]string{
	category.SortByID:        "c.id",
	category.SortByName:      "c.name",
	category.SortByCreatedAt: "c.created_at",
	category.SortByUpdatedAt: "c.updated_at",
}

var _ category.Repository = (*CategoryRepository)(nil)

// CategoryRepository implements category.Repository backed by PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// List filters, sorts and paginates categories with their product counts.
func (r *CategoryRepository) List(ctx context.Context, f category.ListFilter) (query.Page[category.Category], error) {
	var w where
	w.search(f.SearchTerm, "c.name", "c.description")

	var total int
	if err := r.pool.QueryRow(ctx, countCategoriesSQL+w.String(), w.args...).Scan(&total); err != nil {
		return query.Page[category.Category]{}, fmt.Errorf("counting categories: %w", err)
	}

	column, ok := categorySortColumns[f.Sort]
	if !ok {
		column = "c.id"
	}
	clause, args := w.page(column, "c.id", f.Filter)
	rows, err := r.pool.Query(ctx, categorySelect+w.String()+clause, args...)
	if err != nil {
		return query.Page[category.Category]{}, fmt.Errorf("listing categories: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanCategory)
	if err != nil {
		return query.Page[category.Category]{}, fmt.Errorf("listing categories: %w", err)
	}
	return query.Page[category.Category]{
		Items:      items,
		TotalCount: total,
		Page:       f.Page,
		PageSize:   f.PageSize,
	}, nil
}

// GetByID returns the category with its product count.
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*category.Category, error) {
	rows, err := r.pool.Query(ctx, getCategoryByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting category %d: %w", id, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, category.ErrNotFound
		}
		return nil, fmt.Errorf("getting category %d: %w", id, err)
	}
	return &c, nil
}

// Create inserts c and sets its id.
func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) error {
	err := r.pool.QueryRow(ctx, createCategorySQL,
		c.Name, c.Description, c.IsActive, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		return categoryError(err, fmt.Sprintf("creating category %q", c.Name))
	}
	return nil
}

// Upsert inserts c or overwrites the category with the same name.
func (r *CategoryRepository) Upsert(ctx context.Context, c *category.Category) error {
	err := r.pool.QueryRow(ctx, upsertCategorySQL,
		c.Name, c.Description, c.IsActive, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("upserting category %q: %w", c.Name, err)
	}
	return nil
}

// Update overwrites the writable fields of c.
func (r *CategoryRepository) Update(ctx context.Context, c *category.Category) error {
	tag, err := r.pool.Exec(ctx, updateCategorySQL, c.ID, c.Name, c.Description, c.IsActive, c.UpdatedAt)
	if err != nil {
		return categoryError(err, fmt.Sprintf("updating category %d", c.ID))
	}
	if tag.RowsAffected() == 0 {
		return category.ErrNotFound
	}
	return nil
}

// Delete removes a category. Products still referencing it make the foreign
// key reject the delete.
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteCategorySQL, id)
	if err != nil {
		return categoryError(err, fmt.Sprintf("deleting category %d", id))
	}
	if tag.RowsAffected() == 0 {
		return category.ErrNotFound
	}
	return nil
}

// Exists reports whether the category exists.
func (r *CategoryRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, categoryExistsSQL, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking category %d: %w", id, err)
	}
	return ok, nil
}

func categoryError(err error, op string) error {
	switch code, _ := pgCode(err); code {
	case uniqueViolation:
		return category.ErrDuplicateName
	case foreignKeyViolation:
		return category.ErrHasProducts
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanCategory(row pgx.CollectableRow) (category.Category, error) {
	var c category.Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.IsActive, &c.CreatedAt, &c.UpdatedAt, &c.ProductCount)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, err
}
