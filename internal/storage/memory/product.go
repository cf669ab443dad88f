package memory

import (
	"context"
	"slices"

	"github.com/xenking/shopsim/internal/domain/category"
	"github.com/xenking/shopsim/internal/domain/product"
	"github.com/xenking/shopsim/internal/domain/query"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository.
type ProductRepository struct {
	s *Store
}

// List filters, sorts and paginates active products.
func (r *ProductRepository) List(ctx context.Context, f product.ListFilter) (query.Page[product.Product], error) {
	var matched []product.Product
	err := r.s.read(ctx, func(st *state) error {
		for _, p := range st.products {
			if f.Matches(p) {
				matched = append(matched, p)
			}
		}
		return nil
	})
	if err != nil {
		return query.Page[product.Product]{}, err
	}

	desc := f.Descending()
	slices.SortFunc(matched, func(a, b product.Product) int {
		return compare(f.Sort.Less(a, b), f.Sort.Less(b, a), desc)
	})
	return query.Paginate(matched, f.Filter), nil
}

// GetByID returns a single product.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	var out product.Product
	err := r.s.read(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return product.ErrNotFound
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Create stores p and assigns its id.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	return r.s.write(ctx, func(st *state) error {
		if err := checkProduct(st, p); err != nil {
			return err
		}
		st.nextProduct++
		p.ID = st.nextProduct
		st.products[p.ID] = *p
		return nil
	})
}

// Update overwrites a stored product.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.products[p.ID]; !ok {
			return product.ErrNotFound
		}
		if err := checkProduct(st, p); err != nil {
			return err
		}
		st.products[p.ID] = *p
		return nil
	})
}

// Delete removes a product that no order item references.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.products[id]; !ok {
			return product.ErrNotFound
		}
		if st.productReferenced(id) {
			return product.ErrInUse
		}
		delete(st.products, id)
		return nil
	})
}

// checkProduct enforces the constraints the database schema declares.
func checkProduct(st *state, p *product.Product) error {
	if _, ok := st.categories[p.CategoryID]; !ok {
		return category.ErrNotFound
	}
	if !p.Price.IsPositive() {
		return &product.ValidationError{Field: "price", Reason: "must be greater than 0"}
	}
	if p.StockQuantity < 0 {
		return &product.ValidationError{Field: "stockQuantity", Reason: "must not be negative"}
	}
	if p.SKU == "" {
		return nil
	}
	for id, other := range st.products {
		if id != p.ID && other.SKU == p.SKU {
			return product.ErrDuplicateSKU
		}
	}
	return nil
}
