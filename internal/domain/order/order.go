package order

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/shopsim/internal/domain/product"
	"github.com/xenking/shopsim/internal/domain/query"
	"github.com/xenking/shopsim/internal/domain/user"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

// Statuses lists every valid status.
var Statuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// ParseStatus validates s against the status enumeration. Matching is exact.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", &InvalidStatusError{Status: s}
}

// Order is a customer order with its line items. TotalAmount is fixed when
// the order is created and never recomputed.
type Order struct {
	ID              int64
	UserID          int64
	TotalAmount     decimal.Decimal
	Status          Status
	ShippingAddress string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Items           []Item
	Customer        *Customer
}

// Item is a single line of an order. UnitPrice is the product price at the
// moment the order was placed.
type Item struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// TotalPrice is quantity times the unit price snapshot.
func (i Item) TotalPrice() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Customer summarizes the user owning an order.
type Customer struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
}

// LineRequest is one requested product and quantity.
type LineRequest struct {
	ProductID int64
	Quantity  int
}

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	UserID          int64
	Items           []LineRequest
	ShippingAddress string
}

// SortField is a sortable order column.
type SortField int

const (
	SortByID SortField = iota
	SortByTotalAmount
	SortByStatus
	SortByCreatedAt
	SortByUpdatedAt
)

// ParseSortField maps a client supplied field name to a SortField.
// Unknown names sort by id.
func ParseSortField(s string) SortField {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "totalamount":
		return SortByTotalAmount
	case "status":
		return SortByStatus
	case "createdat":
		return SortByCreatedAt
	case "updatedat":
		return SortByUpdatedAt
	default:
		return SortByID
	}
}

// Less orders a before b by the field, breaking ties by id.
func (f SortField) Less(a, b Order) bool {
	switch f {
	case SortByTotalAmount:
		if c := a.TotalAmount.Cmp(b.TotalAmount); c != 0 {
			return c < 0
		}
	case SortByStatus:
		if a.Status != b.Status {
			return a.Status < b.Status
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

// ListFilter selects orders. Search matches the status and the owner's email,
// first and last name. UserID restricts the listing to one owner.
type ListFilter struct {
	query.Filter
	Sort   SortField
	UserID *int64
}

// Tx is the unit of work for order workflows. Every read and write goes
// through the same database transaction.
type Tx interface {
	// GetUser loads a user, returning user.ErrNotFound when absent.
	GetUser(ctx context.Context, id int64) (*user.User, error)
	// LockProducts loads and row-locks the given products. Missing ids are
	// absent from the result map.
	LockProducts(ctx context.Context, ids []int64) (map[int64]*product.Product, error)
	// SetProductStock overwrites the stock of a locked product.
	SetProductStock(ctx context.Context, id int64, stock int, at time.Time) error
	// InsertOrder persists o and its items, assigning their ids.
	InsertOrder(ctx context.Context, o *Order) error
	// GetOrderForUpdate loads and row-locks an order with its items,
	// returning ErrNotFound when absent.
	GetOrderForUpdate(ctx context.Context, id int64) (*Order, error)
	// SetOrderStatus overwrites the status of a locked order.
	SetOrderStatus(ctx context.Context, id int64, status Status, at time.Time) error
}

// Repository defines persistence operations for orders.
type Repository interface {
	// WithTx runs fn in a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, f ListFilter) (query.Page[Order], error)
}
