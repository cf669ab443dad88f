package memory

import (
	"context"
	"slices"
	"time"

	"github.com/xenking/shopsim/internal/domain/order"
	"github.com/xenking/shopsim/internal/domain/product"
	"github.com/xenking/shopsim/internal/domain/query"
	"github.com/xenking/shopsim/internal/domain/user"
)

var (
	_ order.Repository = (*OrderRepository)(nil)
	_ order.Tx         = (*orderTx)(nil)
)

// OrderRepository implements order.Repository.
type OrderRepository struct {
	s *Store
}

// WithTx runs fn against a private copy of the store and publishes the copy
// only when fn returns nil.
func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return r.s.write(ctx, func(st *state) error {
		return fn(ctx, &orderTx{st: st})
	})
}

// GetByID returns an order with its items and customer.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var out *order.Order
	err := r.s.read(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return order.ErrNotFound
		}
		out = st.hydrate(o)
		return nil
	})
	return out, err
}

// List filters, sorts and paginates orders.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) (query.Page[order.Order], error) {
	var matched []order.Order
	err := r.s.read(ctx, func(st *state) error {
		for _, o := range st.orders {
			if f.UserID != nil && o.UserID != *f.UserID {
				continue
			}
			h := st.hydrate(o)
			c := h.Customer
			if !f.Matches(string(h.Status), c.Email, c.FirstName, c.LastName) {
				continue
			}
			matched = append(matched, *h)
		}
		return nil
	})
	if err != nil {
		return query.Page[order.Order]{}, err
	}

	desc := f.Descending()
	slices.SortFunc(matched, func(a, b order.Order) int {
		return compare(f.Sort.Less(a, b), f.Sort.Less(b, a), desc)
	})
	return query.Paginate(matched, f.Filter), nil
}

// hydrate returns a copy of o with the customer summary and item product
// names filled in.
func (s *state) hydrate(o order.Order) *order.Order {
	o.Items = slices.Clone(o.Items)
	for i := range o.Items {
		if p, ok := s.products[o.Items[i].ProductID]; ok {
			o.Items[i].ProductName = p.Name
		}
	}
	u := s.users[o.UserID]
	o.Customer = &order.Customer{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
	return &o
}

type orderTx struct {
	st *state
}

func (t *orderTx) GetUser(_ context.Context, id int64) (*user.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (t *orderTx) LockProducts(_ context.Context, ids []int64) (map[int64]*product.Product, error) {
	out := make(map[int64]*product.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.st.products[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (t *orderTx) SetProductStock(_ context.Context, id int64, stock int, at time.Time) error {
	p, ok := t.st.products[id]
	if !ok {
		return product.ErrNotFound
	}
	if stock < 0 {
		return &product.ValidationError{Field: "stockQuantity", Reason: "must not be negative"}
	}
	p.StockQuantity = stock
	p.UpdatedAt = at
	t.st.products[id] = p
	return nil
}

func (t *orderTx) InsertOrder(_ context.Context, o *order.Order) error {
	if _, ok := t.st.users[o.UserID]; !ok {
		return user.ErrNotFound
	}
	t.st.nextOrder++
	o.ID = t.st.nextOrder
	for i := range o.Items {
		if _, ok := t.st.products[o.Items[i].ProductID]; !ok {
			return product.ErrNotFound
		}
		t.st.nextItem++
		o.Items[i].ID = t.st.nextItem
		o.Items[i].OrderID = o.ID
	}
	stored := *o
	stored.Items = slices.Clone(o.Items)
	stored.Customer = nil
	t.st.orders[o.ID] = stored
	return nil
}

func (t *orderTx) GetOrderForUpdate(_ context.Context, id int64) (*order.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return t.st.hydrate(o), nil
}

func (t *orderTx) SetOrderStatus(_ context.Context, id int64, status order.Status, at time.Time) error {
	o, ok := t.st.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = at
	t.st.orders[id] = o
	return nil
}
