package category

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/shopsim/internal/domain/query"
)

var (
	// ErrNotFound is returned when a requested category does not exist.
	ErrNotFound = errors.New("category not found")
	// ErrDuplicateName is returned when another category already uses the name.
	ErrDuplicateName = errors.New("category name already exists")
	// ErrHasProducts is returned when deleting a category that still owns products.
	ErrHasProducts = errors.New("cannot delete category with associated products")
	// ErrNameRequired is returned when a category is saved without a name.
	ErrNameRequired = errors.New("category name is required")
)

// Category groups products in the catalog.
type Category struct {
	ID           int64
	Name         string
	Description  string
	IsActive     bool
	ProductCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SortField is a sortable category column.
type SortField int

const (
	SortByID SortField = iota
	SortByName
	SortByCreatedAt
	SortByUpdatedAt
)

// ParseSortField maps a client supplied field name to a SortField.
// Unknown names sort by id.
func ParseSortField(s string) SortField {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name":
		return SortByName
	case "createdat":
		return SortByCreatedAt
	case "updatedat":
		return SortByUpdatedAt
	default:
		return SortByID
	}
}

// Less orders a before b by the field, breaking ties by id so that
// pagination is deterministic.
func (f SortField) Less(a, b Category) bool {
	switch f {
	case SortByName:
		if a.Name != b.Name {
			return a.Name < b.Name
		}
	case SortByCreatedAt:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	case SortByUpdatedAt:
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
	}
	return a.ID < b.ID
}

// ListFilter selects categories. Search matches name and description.
type ListFilter struct {
	query.Filter
	Sort SortField
}

// Input carries the writable fields of a category.
type Input struct {
	Name        string
	Description string
	IsActive    bool
}

// Repository defines persistence operations for categories.
type Repository interface {
	List(ctx context.Context, f ListFilter) (query.Page[Category], error)
	GetByID(ctx context.Context, id int64) (*Category, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id int64) error
	Exists(ctx context.Context, id int64) (bool, error)
}
