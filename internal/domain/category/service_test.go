package category_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shopsim/internal/domain/category"
	"github.com/xenking/shopsim/internal/domain/product"
	"github.com/xenking/shopsim/internal/domain/query"
	"github.com/xenking/shopsim/internal/storage/memory"
)

func TestService_CreateAndGet(t *testing.T) {
	svc := category.NewService(memory.New().Categories())
	ctx := context.Background()

	c, err := svc.Create(ctx, category.Input{Name: "  Books ", Description: "Paper"})
	require.NoError(t, err)
	assert.Equal(t, "Books", c.Name)
	assert.True(t, c.IsActive)
	assert.Equal(t, c.CreatedAt, c.UpdatedAt)

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Paper", got.Description)
	assert.Zero(t, got.ProductCount)

	_, err = svc.Create(ctx, category.Input{Name: "Books"})
	require.ErrorIs(t, err, category.ErrDuplicateName)

	_, err = svc.Create(ctx, category.Input{Name: "   "})
	require.ErrorIs(t, err, category.ErrNameRequired)

	_, err = svc.Get(ctx, 404)
	require.ErrorIs(t, err, category.ErrNotFound)
}

func TestService_Update(t *testing.T) {
	svc := category.NewService(memory.New().Categories())
	ctx := context.Background()

	c, err := svc.Create(ctx, category.Input{Name: "Books"})
	require.NoError(t, err)

	ok, err := svc.Update(ctx, c.ID, category.Input{Name: "Novels", IsActive: false})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Novels", got.Name)
	assert.False(t, got.IsActive)

	ok, err = svc.Update(ctx, 404, category.Input{Name: "Ghost"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_Delete(t *testing.T) {
	store := memory.New()
	svc := category.NewService(store.Categories())
	ctx := context.Background()

	empty, err := svc.Create(ctx, category.Input{Name: "Empty"})
	require.NoError(t, err)
	full, err := svc.Create(ctx, category.Input{Name: "Full"})
	require.NoError(t, err)
	store.PutProduct(product.Product{ID: 1, Name: "Widget", Price: decimal.NewFromInt(1), CategoryID: full.ID, IsActive: true})

	ok, err := svc.Delete(ctx, full.ID)
	require.ErrorIs(t, err, category.ErrHasProducts)
	assert.False(t, ok)

	ok, err = svc.Delete(ctx, empty.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Delete(ctx, empty.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_List(t *testing.T) {
	svc := category.NewService(memory.New().Categories())
	ctx := context.Background()

	for _, name := range []string{"Garden", "Books", "Electronics"} {
		_, err := svc.Create(ctx, category.Input{Name: name})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, query.Filter{SortBy: "name", PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages())
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Books", page.Items[0].Name)
	assert.Equal(t, "Electronics", page.Items[1].Name)

	page, err = svc.List(ctx, query.Filter{SearchTerm: "GARD"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Garden", page.Items[0].Name)
}
