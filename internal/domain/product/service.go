package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/shopsim/internal/domain/category"
	"github.com/xenking/shopsim/internal/domain/query"
)

// CategoryChecker reports whether a category exists.
type CategoryChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Service implements catalog listing and the administrative product operations.
type Service struct {
	repo       Repository
	categories CategoryChecker
	now        func() time.Time
}

// NewService creates a product Service.
func NewService(repo Repository, categories CategoryChecker) *Service {
	return &Service{repo: repo, categories: categories, now: time.Now}
}

// List returns a page of active products matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) (query.Page[Product], error) {
	f.Filter = f.Filter.Normalize()
	f.Sort = ParseSortField(f.SortBy)
	page, err := s.repo.List(ctx, f)
	if err != nil {
		return query.Page[Product]{}, errors.Wrap(err, "list products")
	}
	return page, nil
}

// Get returns a single product by id.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	if err := s.check(ctx, in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &Product{CreatedAt: now}
	apply(p, in, now)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update overwrites the writable fields of a product. It returns false when
// the product does not exist.
func (s *Service) Update(ctx context.Context, id int64, in Input) (bool, error) {
	if err := s.check(ctx, in); err != nil {
		return false, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "get product")
	}
	apply(p, in, s.now().UTC())
	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes a product. It returns false when the product does not exist
// and ErrInUse when order items reference it.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) check(ctx context.Context, in Input) error {
	if err := in.Validate(); err != nil {
		return err
	}
	ok, err := s.categories.Exists(ctx, in.CategoryID)
	if err != nil {
		return errors.Wrap(err, "check category")
	}
	if !ok {
		return category.ErrNotFound
	}
	return nil
}

func apply(p *Product, in Input, now time.Time) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = in.Price.Round(2)
	p.StockQuantity = in.StockQuantity
	p.CategoryID = in.CategoryID
	p.ImageURL = in.ImageURL
	p.SKU = strings.TrimSpace(in.SKU)
	p.IsActive = in.IsActive
	p.UpdatedAt = now
}
