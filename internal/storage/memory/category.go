package memory

import (
	"context"
	"slices"

	"github.com/xenking/shopsim/internal/domain/category"
	"github.com/xenking/shopsim/internal/domain/query"
)

var _ category.Repository = (*CategoryRepository)(nil)

// CategoryRepository implements category.Repository.
type CategoryRepository struct {
	s *Store
}

// List filters, sorts and paginates categories.
func (r *CategoryRepository) List(ctx context.Context, f category.ListFilter) (query.Page[category.Category], error) {
	var matched []category.Category
	err := r.s.read(ctx, func(st *state) error {
		for _, c := range st.categories {
			if !f.Matches(c.Name, c.Description) {
				continue
			}
			c.ProductCount = st.productCount(c.ID)
			matched = append(matched, c)
		}
		return nil
	})
	if err != nil {
		return query.Page[category.Category]{}, err
	}

	desc := f.Descending()
	slices.SortFunc(matched, func(a, b category.Category) int {
		return compare(f.Sort.Less(a, b), f.Sort.Less(b, a), desc)
	})
	return query.Paginate(matched, f.Filter), nil
}

// GetByID returns the category with its product count.
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*category.Category, error) {
	var out category.Category
	err := r.s.read(ctx, func(st *state) error {
		c, ok := st.categories[id]
		if !ok {
			return category.ErrNotFound
		}
		c.ProductCount = st.productCount(id)
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Create stores c and assigns its id. Names are unique.
func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) error {
	return r.s.write(ctx, func(st *state) error {
		if nameTaken(st, c.Name, 0) {
			return category.ErrDuplicateName
		}
		st.nextCategory++
		c.ID = st.nextCategory
		st.categories[c.ID] = *c
		return nil
	})
}

// Update overwrites a stored category.
func (r *CategoryRepository) Update(ctx context.Context, c *category.Category) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.categories[c.ID]; !ok {
			return category.ErrNotFound
		}
		if nameTaken(st, c.Name, c.ID) {
			return category.ErrDuplicateName
		}
		st.categories[c.ID] = *c
		return nil
	})
}

// Delete removes a category that owns no products.
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.categories[id]; !ok {
			return category.ErrNotFound
		}
		if st.productCount(id) > 0 {
			return category.ErrHasProducts
		}
		delete(st.categories, id)
		return nil
	})
}

// Exists reports whether the category exists.
func (r *CategoryRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.s.read(ctx, func(st *state) error {
		_, ok = st.categories[id]
		return nil
	})
	return ok, err
}

func nameTaken(st *state, name string, except int64) bool {
	for id, c := range st.categories {
		if id != except && c.Name == name {
			return true
		}
	}
	return false
}

// compare turns a pair of Less results into a slices.SortFunc result,
// reversing it for descending order.
func compare(less, greater, desc bool) int {
	c := 0
	switch {
	case less:
		c = -1
	case greater:
		c = 1
	}
	if desc {
		return -c
	}
	return c
}
