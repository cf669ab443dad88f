package product

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopsim/internal/domain/query"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateSKU is returned when another product already uses the SKU.
	ErrDuplicateSKU = errors.New("product sku already exists")
	// ErrInUse is returned when deleting a product that order items still reference.
	ErrInUse = errors.New("cannot delete product referenced by orders")
)

// ValidationError reports an invalid product field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Product represents a catalog item available for purchase. StockQuantity is
// the stock ledger for the product and never goes negative.
type Product struct {
	ID            int64
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	CategoryID    int64
	ImageURL      string
	SKU           string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InStock reports whether at least qty units are available.
func (p *Product) InStock(qty int) bool {
	return p.StockQuantity >= qty
}

// SortField is a sortable product column.
type SortField int

const (
	SortByID SortField = iota
	SortByName
	SortByPrice
	SortByStock
	SortByCreatedAt
	SortByUpdatedAt
)

// ParseSortField maps a client supplied field name to a SortField.
// Unknown names sort by id.
func ParseSortField(s string) SortField {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name":
		return SortByName
	case "price":
		return SortByPrice
	case "stock", "stockquantity":
		return SortByStock
	case "createdat":
		return SortByCreatedAt
	case "updatedat":
		return SortByUpdatedAt
	default:
		return SortByID
	}
}

// Less orders a before b by the field, breaking ties by id.
func (f SortField) Less(a, b Product) bool {
	switch f {
	case SortByName:
		if a.Name != b.Name {
			return a.Name < b.Name
		}
	case SortByPrice:
		if c := a.Price.Cmp(b.Price); c != 0 {
			return c < 0
		}
	case SortByStock:
		if a.StockQuantity != b.StockQuantity {
			return a.StockQuantity < b.StockQuantity
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

// ListFilter selects active products. Search matches name, description and SKU.
type ListFilter struct {
	query.Filter
	Sort       SortField
	CategoryID *int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	// InStock limits the listing to products with stock left. False applies
	// no stock filter.
	InStock bool
}

// Matches reports whether p passes every non-search, non-paging condition.
func (f ListFilter) Matches(p Product) bool {
	if !p.IsActive {
		return false
	}
	if f.CategoryID != nil && p.CategoryID != *f.CategoryID {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.InStock && p.StockQuantity <= 0 {
		return false
	}
	return f.Filter.Matches(p.Name, p.Description, p.SKU)
}

// Input carries the writable fields of a product.
type Input struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	CategoryID    int64
	ImageURL      string
	SKU           string
	IsActive      bool
}

// Validate checks the product invariants: a name, a price that stays positive
// once rounded to cents and a non-negative stock quantity.
func (in Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if !in.Price.Round(2).IsPositive() {
		return &ValidationError{Field: "price", Reason: "must be greater than 0"}
	}
	if in.StockQuantity < 0 {
		return &ValidationError{Field: "stockQuantity", Reason: "must not be negative"}
	}
	return nil
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f ListFilter) (query.Page[Product], error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
}
