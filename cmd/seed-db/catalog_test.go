package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shopsim/db"
)

func TestParseCatalog_Embedded(t *testing.T) {
	c, err := parseCatalog(bytes.NewReader(db.Catalog), false)
	require.NoError(t, err)
	assert.Len(t, c.Categories, 4)
	assert.Len(t, c.Products, 10)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := c.Products[0].product(7, now)
	assert.Equal(t, int64(7), p.CategoryID)
	assert.Equal(t, "39.99", p.Price.StringFixed(2))
	assert.True(t, p.IsActive)
	assert.Equal(t, now, p.CreatedAt)
}

func TestParseCatalog_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	_, err := zw.Write(db.Catalog)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	c, err := parseCatalog(&buf, true)
	require.NoError(t, err)
	assert.Len(t, c.Products, 10)

	_, err = parseCatalog(strings.NewReader("not gzip"), true)
	require.Error(t, err)
}

func TestParseCatalog_Invalid(t *testing.T) {
	for _, tt := range []struct {
		name    string
		json    string
		wantErr string
	}{
		{
			name:    "UnknownCategory",
			json:    `{"categories":[{"name":"Books"}],"products":[{"name":"X","price":"1","category":"Toys"}]}`,
			wantErr: `unknown category "Toys"`,
		},
		{
			name:    "ZeroPrice",
			json:    `{"categories":[{"name":"Books"}],"products":[{"name":"X","price":"0","category":"Books"}]}`,
			wantErr: "invalid price",
		},
		{
			name:    "NegativeStock",
			json:    `{"categories":[{"name":"Books"}],"products":[{"name":"X","price":"1","stockQuantity":-1,"category":"Books"}]}`,
			wantErr: "invalid stockQuantity",
		},
		{
			name:    "DuplicateCategory",
			json:    `{"categories":[{"name":"Books"},{"name":"Books"}]}`,
			wantErr: "duplicate category",
		},
		{
			name: "DuplicateSKU",
			json: `{"categories":[{"name":"Books"}],"products":[` +
				`{"name":"A","price":"1","category":"Books","sku":"S"},` +
				`{"name":"B","price":"1","category":"Books","sku":"S"}]}`,
			wantErr: `duplicate sku "S"`,
		},
		{
			name:    "Malformed",
			json:    `{"categories":`,
			wantErr: "decode catalog",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCatalog(strings.NewReader(tt.json), false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
