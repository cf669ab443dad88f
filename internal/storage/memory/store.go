// Package memory implements every repository in process. Transactions copy
// the whole state, run against the copy and swap it in on success, so a
// failed workflow leaves no trace. One mutex serializes all transactions.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/xenking/shopsim/internal/domain/category"
	"github.com/xenking/shopsim/internal/domain/order"
	"github.com/xenking/shopsim/internal/domain/product"
	"github.com/xenking/shopsim/internal/domain/user"
)

type state struct {
	users      map[int64]user.User
	categories map[int64]category.Category
	products   map[int64]product.Product
	orders     map[int64]order.Order

	nextUser     int64
	nextCategory int64
	nextProduct  int64
	nextOrder    int64
	nextItem     int64
}

func newState() *state {
	return &state{
		users:      make(map[int64]user.User),
		categories: make(map[int64]category.Category),
		products:   make(map[int64]product.Product),
		orders:     make(map[int64]order.Order),
	}
}

func (s *state) clone() *state {
	c := *s
	c.users = maps.Clone(s.users)
	c.categories = maps.Clone(s.categories)
	c.products = maps.Clone(s.products)
	c.orders = make(map[int64]order.Order, len(s.orders))
	for id, o := range s.orders {
		o.Items = slices.Clone(o.Items)
		c.orders[id] = o
	}
	return &c
}

// Store holds users, categories, products and orders in memory.
type Store struct {
	mu sync.RWMutex
	st *state
}

// New returns an empty Store.
func New() *Store {
	return &Store{st: newState()}
}

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Categories returns the category repository view of the store.
func (s *Store) Categories() *CategoryRepository { return &CategoryRepository{s: s} }

// Products returns the product repository view of the store.
func (s *Store) Products() *ProductRepository { return &ProductRepository{s: s} }

// Orders returns the order repository view of the store.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

// PutUser stores u under its own id, replacing any existing user.
func (s *Store) PutUser(u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
	s.st.nextUser = max(s.st.nextUser, u.ID)
}

// PutCategory stores c under its own id, replacing any existing category.
func (s *Store) PutCategory(c category.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.categories[c.ID] = c
	s.st.nextCategory = max(s.st.nextCategory, c.ID)
}

// PutProduct stores p under its own id, replacing any existing product.
func (s *Store) PutProduct(p product.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
	s.st.nextProduct = max(s.st.nextProduct, p.ID)
}

func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

// write runs fn against a copy of the state and keeps the copy only when fn
// succeeds.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st.clone()
	if err := fn(next); err != nil {
		return err
	}
	s.st = next
	return nil
}

func (s *state) productCount(categoryID int64) int {
	n := 0
	for _, p := range s.products {
		if p.CategoryID == categoryID {
			n++
		}
	}
	return n
}

func (s *state) productReferenced(productID int64) bool {
	for _, o := range s.orders {
		for _, it := range o.Items {
			if it.ProductID == productID {
				return true
			}
		}
	}
	return false
}
