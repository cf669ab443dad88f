package postgres

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopsim/internal/domain/order"
	"github.com/xenking/shopsim/internal/domain/product"
	"github.com/xenking/shopsim/internal/domain/query"
	"github.com/xenking/shopsim/internal/domain/user"
)

const (
	orderSelect = `SELECT o.id, o.user_id, o.total_amount, o.status, o.shipping_address, o.created_at, o.updated_at,
		u.first_name, u.last_name, u.email
		FROM orders o JOIN users u ON u.id = o.user_id`

	countOrdersSQL = `SELECT count(*) FROM orders o JOIN users u ON u.id = o.user_id`

	getOrderByIDSQL      = orderSelect + ` WHERE o.id = $1`
	getOrderForUpdateSQL = orderSelect + ` WHERE o.id = $1 FOR UPDATE OF o`

	lockProductsSQL = `SELECT ` + productColumns + ` FROM products p WHERE p.id = ANY($1) ORDER BY p.id FOR UPDATE`

	setProductStockSQL = `UPDATE products SET stock_quantity = $2, updated_at = $3 WHERE id = $1`
	setOrderStatusSQL  = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`

	insertOrderSQL = `INSERT INTO orders (user_id, total_amount, status, shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	listOrderItemsSQL = `SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.unit_price
		FROM order_items oi JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id`
)

var orderSortColumns = map[order.SortField]string{
	order.SortByID:          "o.id",
	order.SortByTotalAmount: "o.total_amount",
	order.SortByStatus:      "o.status",
	order.SortByCreatedAt:   "o.created_at",
	order.SortByUpdatedAt:   "o.updated_at",
}

var (
	_ order.Repository = (*OrderRepository)(nil)
	_ order.Tx         = (*orderTx)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// WithTx runs fn inside a database transaction that commits when fn returns
// nil and rolls back otherwise.
func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
}

// GetByID returns an order with its items and customer.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	return getOrder(ctx, r.pool, getOrderByIDSQL, id)
}

// List filters, sorts and paginates orders with their items.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) (query.Page[order.Order], error) {
	var w where
	if f.UserID != nil {
		w.add("o.user_id = ?", *f.UserID)
	}
	w.search(f.SearchTerm, "o.status", "u.email", "u.first_name", "u.last_name")

	var total int
	if err := r.pool.QueryRow(ctx, countOrdersSQL+w.String(), w.args...).Scan(&total); err != nil {
		return query.Page[order.Order]{}, fmt.Errorf("counting orders: %w", err)
	}

	column, ok := orderSortColumns[f.Sort]
	if !ok {
		column = "o.id"
	}
	clause, args := w.page(column, "o.id", f.Filter)
	rows, err := r.pool.Query(ctx, orderSelect+w.String()+clause, args...)
	if err != nil {
		return query.Page[order.Order]{}, fmt.Errorf("listing orders: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return query.Page[order.Order]{}, fmt.Errorf("listing orders: %w", err)
	}

	ptrs := make([]*order.Order, len(items))
	for i := range items {
		ptrs[i] = &items[i]
	}
	if err := loadItems(ctx, r.pool, ptrs...); err != nil {
		return query.Page[order.Order]{}, err
	}
	return query.Page[order.Order]{
		Items:      items,
		TotalCount: total,
		Page:       f.Page,
		PageSize:   f.PageSize,
	}, nil
}

type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) GetUser(ctx context.Context, id int64) (*user.User, error) {
	return getUser(ctx, t.tx, getUserByIDSQL, id)
}

// LockProducts takes row locks in ascending id order so that concurrent
// workflows touching overlapping products cannot deadlock.
func (t *orderTx) LockProducts(ctx context.Context, ids []int64) (map[int64]*product.Product, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)

	rows, err := t.tx.Query(ctx, lockProductsSQL, sorted)
	if err != nil {
		return nil, fmt.Errorf("locking products: %w", err)
	}
	locked, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("locking products: %w", err)
	}

	out := make(map[int64]*product.Product, len(locked))
	for i := range locked {
		out[locked[i].ID] = &locked[i]
	}
	return out, nil
}

func (t *orderTx) SetProductStock(ctx context.Context, id int64, stock int, at time.Time) error {
	tag, err := t.tx.Exec(ctx, setProductStockSQL, id, stock, at)
	if err != nil {
		if code, _ := pgCode(err); code == checkViolation {
			return &product.ValidationError{Field: "stockQuantity", Reason: "must not be negative"}
		}
		return fmt.Errorf("setting stock of product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (t *orderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, insertOrderSQL,
		o.UserID, o.TotalAmount, string(o.Status), o.ShippingAddress, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	b := &pgx.Batch{}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		b.Queue(insertOrderItemSQL, o.ID, it.ProductID, it.Quantity, it.UnitPrice).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&it.ID)
			})
	}
	if err := t.tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("inserting items of order %d: %w", o.ID, err)
	}
	return nil
}

func (t *orderTx) GetOrderForUpdate(ctx context.Context, id int64) (*order.Order, error) {
	return getOrder(ctx, t.tx, getOrderForUpdateSQL, id)
}

func (t *orderTx) SetOrderStatus(ctx context.Context, id int64, status order.Status, at time.Time) error {
	tag, err := t.tx.Exec(ctx, setOrderStatusSQL, id, string(status), at)
	if err != nil {
		return fmt.Errorf("setting status of order %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func getOrder(ctx context.Context, q querier, sql string, id int64) (*order.Order, error) {
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	if err := loadItems(ctx, q, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// loadItems fetches the items of every order in one query.
func loadItems(ctx context.Context, q querier, orders ...*order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	byID := make(map[int64]*order.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		o.Items = []order.Item{}
		byID[o.ID] = o
	}

	rows, err := q.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	for _, it := range items {
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		c      order.Customer
		total  decimal.Decimal
		status string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &total, &status, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt,
		&c.FirstName, &c.LastName, &c.Email,
	)
	c.ID = o.UserID
	o.TotalAmount = total
	o.Status = order.Status(status)
	o.Customer = &c
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		it    order.Item
		price decimal.Decimal
	)
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &price)
	it.UnitPrice = price
	return it, err
}
