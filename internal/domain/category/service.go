package category

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/shopsim/internal/domain/query"
)

// Service implements the administrative category operations.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a category Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns a page of categories matching the filter.
func (s *Service) List(ctx context.Context, f query.Filter) (query.Page[Category], error) {
	f = f.Normalize()
	page, err := s.repo.List(ctx, ListFilter{Filter: f, Sort: ParseSortField(f.SortBy)})
	if err != nil {
		return query.Page[Category]{}, errors.Wrap(err, "list categories")
	}
	return page, nil
}

// Get returns a single category with its product count.
func (s *Service) Get(ctx context.Context, id int64) (*Category, error) {
	return s.repo.GetByID(ctx, id)
}

// Create stores a new active category.
func (s *Service) Create(ctx context.Context, in Input) (*Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	now := s.now().UTC()
	c := &Category{
		Name:        name,
		Description: in.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update overwrites the writable fields. It returns false when the category
// does not exist.
func (s *Service) Update(ctx context.Context, id int64, in Input) (bool, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return false, ErrNameRequired
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "get category")
	}
	c.Name = name
	c.Description = in.Description
	c.IsActive = in.IsActive
	c.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, c); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes a category that owns no products. It returns false when the
// category does not exist and ErrHasProducts while products reference it.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "get category")
	}
	if c.ProductCount > 0 {
		return false, ErrHasProducts
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
