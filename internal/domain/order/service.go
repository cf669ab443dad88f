package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/shopsim/internal/domain/query"
	"github.com/xenking/shopsim/internal/domain/user"
)

// EventKind identifies an order notification.
type EventKind string

const (
	EventPlaced    EventKind = "placed"
	EventCancelled EventKind = "cancelled"
)

// Event is emitted after an order workflow commits.
type Event struct {
	Kind  EventKind
	Order *Order
}

// Notifier delivers order events to customers. Delivery failures never undo
// a committed order.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// errNotOwned marks an order that exists but belongs to another user. Cancel
// reports it exactly like a missing order.
var errNotOwned = errors.New("order not owned by user")

// Service encapsulates the order workflows: placing orders against the stock
// ledger, cancelling them and moving them between statuses.
type Service struct {
	orders   Repository
	notifier Notifier
	tracer   trace.Tracer
	now      func() time.Time

	created   metric.Int64Counter
	cancelled metric.Int64Counter
	rejected  metric.Int64Counter
}

// NewService creates an order Service.
func NewService(
	orders Repository,
	notifier Notifier,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter("github.com/xenking/shopsim/internal/domain/order")
	s := &Service{
		orders:   orders,
		notifier: notifier,
		tracer:   tp.Tracer("github.com/xenking/shopsim/internal/domain/order"),
		now:      time.Now,
	}

	var err error
	if s.created, err = meter.Int64Counter("shop.orders.created",
		metric.WithDescription("Orders placed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.created counter")
	}
	if s.cancelled, err = meter.Int64Counter("shop.orders.cancelled",
		metric.WithDescription("Orders cancelled by their owner"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.cancelled counter")
	}
	if s.rejected, err = meter.Int64Counter("shop.orders.rejected",
		metric.WithDescription("Order placements rejected by validation or stock"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.rejected counter")
	}
	return s, nil
}

// Create places an order. Within a single transaction it loads the user,
// row-locks every requested product, checks and decrements stock in input
// order, snapshots unit prices and stores the order as Pending. Any failure
// rolls the whole transaction back, leaving stock untouched.
func (s *Service) Create(ctx context.Context, req CreateRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Create",
		trace.WithAttributes(
			attribute.Int64("user.id", req.UserID),
			attribute.Int("order.lines", len(req.Items)),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	ids, err := productIDs(req.Items)
	if err != nil {
		s.reject(ctx, "invalid_request")
		return nil, err
	}

	var created *Order
	err = s.orders.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		u, err := tx.GetUser(ctx, req.UserID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return err
			}
			return errors.Wrap(err, "get user")
		}

		locked, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "lock products")
		}

		now := s.now().UTC()
		total := decimal.Zero
		items := make([]Item, 0, len(req.Items))
		for _, line := range req.Items {
			p, ok := locked[line.ProductID]
			if !ok {
				return &ProductNotFoundError{ProductID: line.ProductID}
			}
			if !p.InStock(line.Quantity) {
				return &InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Requested:   line.Quantity,
					Available:   p.StockQuantity,
				}
			}

			item := Item{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    line.Quantity,
				UnitPrice:   p.Price,
			}
			total = total.Add(item.TotalPrice())
			items = append(items, item)

			p.StockQuantity -= line.Quantity
			p.UpdatedAt = now
		}

		for _, id := range ids {
			if err := tx.SetProductStock(ctx, id, locked[id].StockQuantity, now); err != nil {
				return errors.Wrapf(err, "update stock of product %d", id)
			}
		}

		o := &Order{
			UserID:          u.ID,
			TotalAmount:     total.Round(2),
			Status:          StatusPending,
			ShippingAddress: req.ShippingAddress,
			CreatedAt:       now,
			UpdatedAt:       now,
			Items:           items,
			Customer: &Customer{
				ID:        u.ID,
				FirstName: u.FirstName,
				LastName:  u.LastName,
				Email:     u.Email,
			},
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}
		created = o
		return nil
	})
	if err != nil {
		s.reject(ctx, rejectReason(err))
		return nil, err
	}

	s.created.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("order.id", created.ID))
	zctx.From(ctx).Info("Order created",
		zap.Int64("order_id", created.ID),
		zap.Int64("user_id", created.UserID),
		zap.Stringer("total", created.TotalAmount),
	)
	s.notify(ctx, Event{Kind: EventPlaced, Order: created})

	return created, nil
}

// Cancel cancels a pending order owned by userID and returns its items to
// stock in one transaction. It returns false when the order does not exist
// or belongs to someone else, and ErrNotPending for any non-pending order.
func (s *Service) Cancel(ctx context.Context, orderID, userID int64) (_ bool, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Cancel",
		trace.WithAttributes(
			attribute.Int64("order.id", orderID),
			attribute.Int64("user.id", userID),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	var cancelled *Order
	err := s.orders.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return errors.Wrap(err, "get order")
		}
		if o.UserID != userID {
			return errNotOwned
		}
		if o.Status != StatusPending {
			return ErrNotPending
		}

		ids := make([]int64, 0, len(o.Items))
		restore := make(map[int64]int, len(o.Items))
		for _, item := range o.Items {
			if _, seen := restore[item.ProductID]; !seen {
				ids = append(ids, item.ProductID)
			}
			restore[item.ProductID] += item.Quantity
		}

		locked, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "lock products")
		}

		now := s.now().UTC()
		for _, id := range ids {
			p, ok := locked[id]
			if !ok {
				return &ProductNotFoundError{ProductID: id}
			}
			if err := tx.SetProductStock(ctx, id, p.StockQuantity+restore[id], now); err != nil {
				return errors.Wrapf(err, "restore stock of product %d", id)
			}
		}

		if err := tx.SetOrderStatus(ctx, o.ID, StatusCancelled, now); err != nil {
			return errors.Wrap(err, "set order status")
		}
		o.Status = StatusCancelled
		o.UpdatedAt = now
		cancelled = o
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, errNotOwned) {
			return false, nil
		}
		return false, err
	}

	s.cancelled.Add(ctx, 1)
	zctx.From(ctx).Info("Order cancelled",
		zap.Int64("order_id", cancelled.ID),
		zap.Int64("user_id", userID),
	)
	s.notify(ctx, Event{Kind: EventCancelled, Order: cancelled})

	return true, nil
}

// UpdateStatus moves an order to status. Any status may follow any other.
// It returns false when the order does not exist and *InvalidStatusError for
// a status outside the enumeration.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, status string) (_ bool, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus",
		trace.WithAttributes(
			attribute.Int64("order.id", orderID),
			attribute.String("order.status", status),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	err := s.orders.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return errors.Wrap(err, "get order")
		}
		st, err := ParseStatus(status)
		if err != nil {
			return err
		}
		if err := tx.SetOrderStatus(ctx, o.ID, st, s.now().UTC()); err != nil {
			return errors.Wrap(err, "set order status")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	zctx.From(ctx).Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("status", status),
	)
	return true, nil
}

// Get returns a single order with its items.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// List returns a page of orders matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) (query.Page[Order], error) {
	f.Filter = f.Filter.Normalize()
	f.Sort = ParseSortField(f.SortBy)
	page, err := s.orders.List(ctx, f)
	if err != nil {
		return query.Page[Order]{}, errors.Wrap(err, "list orders")
	}
	return page, nil
}

func (s *Service) notify(ctx context.Context, e Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, e); err != nil {
		zctx.From(ctx).Warn("Order notification failed",
			zap.String("kind", string(e.Kind)),
			zap.Int64("order_id", e.Order.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) reject(ctx context.Context, reason string) {
	s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// productIDs validates the requested lines and returns the distinct product
// ids in first-seen order.
func productIDs(lines []LineRequest) ([]int64, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyItems
	}
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: line.ProductID}
		}
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids, nil
}

func rejectReason(err error) string {
	var (
		stockErr   *InsufficientStockError
		productErr *ProductNotFoundError
	)
	switch {
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.As(err, &productErr):
		return "product_not_found"
	case errors.Is(err, user.ErrNotFound):
		return "user_not_found"
	default:
		return "error"
	}
}
