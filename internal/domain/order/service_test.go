package order_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shopsim/internal/domain/category"
	"github.com/xenking/shopsim/internal/domain/order"
	"github.com/xenking/shopsim/internal/domain/product"
	"github.com/xenking/shopsim/internal/domain/query"
	"github.com/xenking/shopsim/internal/domain/user"
	"github.com/xenking/shopsim/internal/storage/memory"
)

// --- Test doubles ---

type recordingNotifier struct {
	mu     sync.Mutex
	events []order.Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, e order.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *recordingNotifier) kinds() []order.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]order.EventKind, len(n.events))
	for i, e := range n.events {
		out[i] = e.Kind
	}
	return out
}

// failingRepo wraps a repository and fails InsertOrder inside the transaction.
type failingRepo struct {
	order.Repository
	err error
}

func (r *failingRepo) WithTx(ctx context.Context, fn func(context.Context, order.Tx) error) error {
	return r.Repository.WithTx(ctx, func(ctx context.Context, tx order.Tx) error {
		return fn(ctx, &failingTx{Tx: tx, err: r.err})
	})
}

type failingTx struct {
	order.Tx
	err error
}

func (t *failingTx) InsertOrder(context.Context, *order.Order) error {
	return t.err
}

// --- Helpers ---

type fixture struct {
	store    *memory.Store
	svc      *order.Service
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	store.PutUser(user.User{ID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Role: user.RoleCustomer, IsActive: true})
	store.PutUser(user.User{ID: 2, FirstName: "Alan", LastName: "Turing", Email: "alan@example.com", Role: user.RoleCustomer, IsActive: true})
	store.PutCategory(category.Category{ID: 1, Name: "Books", IsActive: true})

	n := &recordingNotifier{}
	return &fixture{
		store:    store,
		svc:      newService(t, store.Orders(), n),
		notifier: n,
	}
}

func newService(t *testing.T, repo order.Repository, n order.Notifier) *order.Service {
	t.Helper()

	svc, err := order.NewService(repo, n, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	return svc
}

func (f *fixture) addProduct(id int64, name, price string, stock int) {
	f.store.PutProduct(product.Product{
		ID:            id,
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		CategoryID:    1,
		IsActive:      true,
	})
}

func (f *fixture) stock(t *testing.T, id int64) int {
	t.Helper()

	p, err := f.store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()

	page, err := f.svc.List(context.Background(), order.ListFilter{})
	require.NoError(t, err)
	return page.TotalCount
}

// --- Tests ---

func TestCreate_ReservesStockAndSnapshotsPrice(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 5)

	o, err := f.svc.Create(context.Background(), order.CreateRequest{
		UserID:          1,
		Items:           []order.LineRequest{{ProductID: 10, Quantity: 2}},
		ShippingAddress: "1 Main St",
	})

	require.NoError(t, err)
	assert.NotZero(t, o.ID)
	assert.True(t, decimal.RequireFromString("19.98").Equal(o.TotalAmount), "total %s", o.TotalAmount)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, "1 Main St", o.ShippingAddress)
	require.Len(t, o.Items, 1)
	assert.True(t, decimal.RequireFromString("9.99").Equal(o.Items[0].UnitPrice))
	assert.Equal(t, "Widget", o.Items[0].ProductName)
	assert.Equal(t, 3, f.stock(t, 10))
	assert.Equal(t, []order.EventKind{order.EventPlaced}, f.notifier.kinds())
}

func TestCreate_TotalSumsAllLines(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 5)
	f.addProduct(11, "Gadget", "0.10", 50)

	o, err := f.svc.Create(context.Background(), order.CreateRequest{
		UserID: 1,
		Items: []order.LineRequest{
			{ProductID: 10, Quantity: 1},
			{ProductID: 11, Quantity: 3},
		},
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.29").Equal(o.TotalAmount))
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.TotalPrice())
	}
	assert.True(t, sum.Equal(o.TotalAmount))
}

func TestCreate_TotalSurvivesPriceChange(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 5)
	ctx := context.Background()

	o, err := f.svc.Create(ctx, order.CreateRequest{
		UserID: 1,
		Items:  []order.LineRequest{{ProductID: 10, Quantity: 2}},
	})
	require.NoError(t, err)

	p, err := f.store.Products().GetByID(ctx, 10)
	require.NoError(t, err)
	p.Price = decimal.RequireFromString("100.00")
	require.NoError(t, f.store.Products().Update(ctx, p))

	got, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("19.98").Equal(got.TotalAmount))
	assert.True(t, decimal.RequireFromString("9.99").Equal(got.Items[0].UnitPrice))
}

func TestCreate_InsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 5)
	f.addProduct(11, "Gadget", "1.00", 1)

	_, err := f.svc.Create(context.Background(), order.CreateRequest{
		UserID: 1,
		Items: []order.LineRequest{
			{ProductID: 10, Quantity: 2},
			{ProductID: 11, Quantity: 2},
		},
	})

	var stockErr *order.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(11), stockErr.ProductID)
	assert.Equal(t, "Gadget", stockErr.ProductName)
	assert.Contains(t, err.Error(), "Gadget")
	assert.Equal(t, 5, f.stock(t, 10))
	assert.Equal(t, 1, f.stock(t, 11))
	assert.Zero(t, f.orderCount(t))
	assert.Empty(t, f.notifier.kinds())
}

func TestCreate_ProductNotFoundRollsBack(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 5)

	_, err := f.svc.Create(context.Background(), order.CreateRequest{
		UserID: 1,
		Items: []order.LineRequest{
			{ProductID: 10, Quantity: 1},
			{ProductID: 404, Quantity: 1},
		},
	})

	var pnfErr *order.ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, int64(404), pnfErr.ProductID)
	assert.Equal(t, 5, f.stock(t, 10))
	assert.Zero(t, f.orderCount(t))
}

func TestCreate_FirstFailureInInputOrderWins(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 0)

	_, err := f.svc.Create(context.Background(), order.CreateRequest{
		UserID: 1,
		Items: []order.LineRequest{
			{ProductID: 10, Quantity: 1},
			{ProductID: 404, Quantity: 1},
		},
	})

	var stockErr *order.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
}

func TestCreate_RepeatedProductCountsCumulatively(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 5)

	_, err := f.svc.Create(context.Background(), order.CreateRequest{
		UserID: 1,
		Items: []order.LineRequest{
			{ProductID: 10, Quantity: 3},
			{ProductID: 10, Quantity: 3},
		},
	})

	var stockErr *order.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 5, f.stock(t, 10))
}

func TestCreate_UserNotFound(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 5)

	_, err := f.svc.Create(context.Background(), order.CreateRequest{
		UserID: 99,
		Items:  []order.LineRequest{{ProductID: 10, Quantity: 1}},
	})

	require.ErrorIs(t, err, user.ErrNotFound)
	assert.Equal(t, 5, f.stock(t, 10))
}

func TestCreate_InactiveUserIsAccepted(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 5)
	f.store.PutUser(user.User{ID: 3, Email: "gone@example.com", IsActive: false})

	_, err := f.svc.Create(context.Background(), order.CreateRequest{
		UserID: 3,
		Items:  []order.LineRequest{{ProductID: 10, Quantity: 1}},
	})

	require.NoError(t, err)
}

func TestCreate_InvalidRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), order.CreateRequest{UserID: 1})
	require.ErrorIs(t, err, order.ErrEmptyItems)

	_, err = f.svc.Create(context.Background(), order.CreateRequest{
		UserID: 1,
		Items:  []order.LineRequest{{ProductID: 10, Quantity: 0}},
	})
	var iqErr *order.InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, int64(10), iqErr.ProductID)
}

func TestCreate_PersistFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 5)
	svc := newService(t, &failingRepo{Repository: f.store.Orders(), err: errors.New("disk full")}, nil)

	_, err := svc.Create(context.Background(), order.CreateRequest{
		UserID: 1,
		Items:  []order.LineRequest{{ProductID: 10, Quantity: 2}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert order")
	assert.Equal(t, 5, f.stock(t, 10))
}

func TestCreate_NotificationFailureKeepsOrder(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 5)
	f.notifier.err = errors.New("smtp down")

	o, err := f.svc.Create(context.Background(), order.CreateRequest{
		UserID: 1,
		Items:  []order.LineRequest{{ProductID: 10, Quantity: 1}},
	})

	require.NoError(t, err)
	assert.NotZero(t, o.ID)
	assert.Equal(t, 4, f.stock(t, 10))
}

func TestCreate_ConcurrentOrdersNeverOversell(t *testing.T) {
	f := newFixture(t)
	const stock = 10
	f.addProduct(10, "Widget", "1.00", stock)

	var (
		succeeded atomic.Int64
		rejected  atomic.Int64
	)
	var g errgroup.Group
	for range 25 {
		g.Go(func() error {
			_, err := f.svc.Create(context.Background(), order.CreateRequest{
				UserID: 1,
				Items:  []order.LineRequest{{ProductID: 10, Quantity: 1}},
			})
			var stockErr *order.InsufficientStockError
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.As(err, &stockErr):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(stock), succeeded.Load())
	assert.Equal(t, int64(15), rejected.Load())
	assert.Equal(t, 0, f.stock(t, 10))
}

func TestCancel_RestoresStock(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 5)
	ctx := context.Background()

	o, err := f.svc.Create(ctx, order.CreateRequest{
		UserID: 1,
		Items:  []order.LineRequest{{ProductID: 10, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, f.stock(t, 10))

	ok, err := f.svc.Cancel(ctx, o.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, f.stock(t, 10))

	got, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
	assert.True(t, decimal.RequireFromString("19.98").Equal(got.TotalAmount))
	assert.Len(t, got.Items, 1)

	ok, err = f.svc.Cancel(ctx, o.ID, 1)
	require.ErrorIs(t, err, order.ErrNotPending)
	assert.False(t, ok)
	assert.Equal(t, 5, f.stock(t, 10))
	assert.Equal(t, []order.EventKind{order.EventPlaced, order.EventCancelled}, f.notifier.kinds())
}

func TestCancel_RestoresRepeatedLines(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "1.00", 10)
	ctx := context.Background()

	o, err := f.svc.Create(ctx, order.CreateRequest{
		UserID: 1,
		Items: []order.LineRequest{
			{ProductID: 10, Quantity: 2},
			{ProductID: 10, Quantity: 3},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 5, f.stock(t, 10))

	ok, err := f.svc.Cancel(ctx, o.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, f.stock(t, 10))
}

func TestCancel_NotOwnedLooksLikeNotFound(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 5)
	ctx := context.Background()

	o, err := f.svc.Create(ctx, order.CreateRequest{
		UserID: 1,
		Items:  []order.LineRequest{{ProductID: 10, Quantity: 2}},
	})
	require.NoError(t, err)

	ok, err := f.svc.Cancel(ctx, o.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.Cancel(ctx, 12345, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 3, f.stock(t, 10))
}

func TestCancel_OnlyPending(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 5)
	ctx := context.Background()

	o, err := f.svc.Create(ctx, order.CreateRequest{
		UserID: 1,
		Items:  []order.LineRequest{{ProductID: 10, Quantity: 1}},
	})
	require.NoError(t, err)

	ok, err := f.svc.UpdateStatus(ctx, o.ID, "Shipped")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Cancel(ctx, o.ID, 1)
	require.ErrorIs(t, err, order.ErrNotPending)
	assert.Equal(t, 4, f.stock(t, 10))
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 5)
	ctx := context.Background()

	o, err := f.svc.Create(ctx, order.CreateRequest{
		UserID: 1,
		Items:  []order.LineRequest{{ProductID: 10, Quantity: 1}},
	})
	require.NoError(t, err)

	t.Run("any to any", func(t *testing.T) {
		sequence := []order.Status{
			order.StatusDelivered,
			order.StatusPending,
			order.StatusCancelled,
			order.StatusProcessing,
			order.StatusShipped,
			order.StatusPending,
		}
		for _, st := range sequence {
			ok, err := f.svc.UpdateStatus(ctx, o.ID, string(st))
			require.NoError(t, err)
			require.True(t, ok)

			got, err := f.svc.Get(ctx, o.ID)
			require.NoError(t, err)
			assert.Equal(t, st, got.Status)
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		for _, s := range []string{"", "pending", "Lost", "SHIPPED"} {
			ok, err := f.svc.UpdateStatus(ctx, o.ID, s)
			var isErr *order.InvalidStatusError
			require.ErrorAs(t, err, &isErr, "status %q", s)
			assert.Equal(t, s, isErr.Status)
			assert.False(t, ok)
		}
	})

	t.Run("missing order", func(t *testing.T) {
		ok, err := f.svc.UpdateStatus(ctx, 999, "Shipped")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("status change keeps stock", func(t *testing.T) {
		ok, err := f.svc.UpdateStatus(ctx, o.ID, "Cancelled")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 4, f.stock(t, 10))
	})
}

func TestSpans_RecordWorkflowErrors(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 1)
	ctx := context.Background()

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	svc, err := order.NewService(f.store.Orders(), f.notifier, tp, metricnoop.NewMeterProvider())
	require.NoError(t, err)

	o, err := svc.Create(ctx, order.CreateRequest{
		UserID: 1,
		Items:  []order.LineRequest{{ProductID: 10, Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, order.CreateRequest{
		UserID: 1,
		Items:  []order.LineRequest{{ProductID: 10, Quantity: 1}},
	})
	require.Error(t, err)
	_, err = svc.UpdateStatus(ctx, o.ID, "Lost")
	require.Error(t, err)
	_, err = svc.UpdateStatus(ctx, o.ID, "Shipped")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, o.ID, 1)
	require.ErrorIs(t, err, order.ErrNotPending)

	type got struct {
		name string
		code codes.Code
	}
	var spans []got
	for _, s := range rec.Ended() {
		spans = append(spans, got{name: s.Name(), code: s.Status().Code})
	}
	assert.Equal(t, []got{
		{name: "order.Create", code: codes.Unset},
		{name: "order.Create", code: codes.Error},
		{name: "order.UpdateStatus", code: codes.Error},
		{name: "order.UpdateStatus", code: codes.Unset},
		{name: "order.Cancel", code: codes.Error},
	}, spans)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "1.00", 100)
	ctx := context.Background()

	for i, line := range []struct {
		user int64
		qty  int
	}{{1, 3}, {2, 1}, {1, 2}} {
		_, err := f.svc.Create(ctx, order.CreateRequest{
			UserID: line.user,
			Items:  []order.LineRequest{{ProductID: 10, Quantity: line.qty}},
		})
		require.NoError(t, err, "order %d", i)
	}

	t.Run("sort by total descending", func(t *testing.T) {
		page, err := f.svc.List(ctx, order.ListFilter{
			Filter: query.Filter{SortBy: "totalAmount", SortDirection: "DESC"},
		})
		require.NoError(t, err)
		require.Len(t, page.Items, 3)
		assert.Equal(t, 3, page.TotalCount)
		assert.True(t, decimal.NewFromInt(3).Equal(page.Items[0].TotalAmount))
		assert.True(t, decimal.NewFromInt(1).Equal(page.Items[2].TotalAmount))
	})

	t.Run("owner only", func(t *testing.T) {
		uid := int64(1)
		page, err := f.svc.List(ctx, order.ListFilter{UserID: &uid})
		require.NoError(t, err)
		assert.Equal(t, 2, page.TotalCount)
		for _, o := range page.Items {
			assert.Equal(t, uid, o.UserID)
		}
	})

	t.Run("search by customer", func(t *testing.T) {
		page, err := f.svc.List(ctx, order.ListFilter{Filter: query.Filter{SearchTerm: "turing"}})
		require.NoError(t, err)
		require.Equal(t, 1, page.TotalCount)
		assert.Equal(t, "alan@example.com", page.Items[0].Customer.Email)
	})

	t.Run("unknown sort falls back to id", func(t *testing.T) {
		page, err := f.svc.List(ctx, order.ListFilter{Filter: query.Filter{SortBy: "shoeSize"}})
		require.NoError(t, err)
		require.Len(t, page.Items, 3)
		assert.Less(t, page.Items[0].ID, page.Items[1].ID)
		assert.Less(t, page.Items[1].ID, page.Items[2].ID)
	})
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), 1)
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestCreate_TimestampsAreUTC(t *testing.T) {
	f := newFixture(t)
	f.addProduct(10, "Widget", "9.99", 5)
	before := time.Now().UTC().Add(-time.Second)

	o, err := f.svc.Create(context.Background(), order.CreateRequest{
		UserID: 1,
		Items:  []order.LineRequest{{ProductID: 10, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.True(t, o.CreatedAt.After(before))
	assert.Equal(t, time.UTC, o.CreatedAt.Location())
}
