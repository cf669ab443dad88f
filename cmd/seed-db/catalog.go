package main

import (
	"encoding/json"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopsim/internal/domain/product"
)

type catalog struct {
	Categories []catalogCategory `json:"categories"`
	Products   []catalogProduct  `json:"products"`
}

type catalogCategory struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type catalogProduct struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	Category      string          `json:"category"`
	SKU           string          `json:"sku"`
	ImageURL      string          `json:"imageUrl"`
}

func (cp catalogProduct) input(categoryID int64) product.Input {
	return product.Input{
		Name:          cp.Name,
		Description:   cp.Description,
		Price:         cp.Price.Round(2),
		StockQuantity: cp.StockQuantity,
		CategoryID:    categoryID,
		ImageURL:      cp.ImageURL,
		SKU:           cp.SKU,
		IsActive:      true,
	}
}

func (cp catalogProduct) product(categoryID int64, now time.Time) product.Product {
	in := cp.input(categoryID)
	return product.Product{
		Name:          in.Name,
		Description:   in.Description,
		Price:         in.Price,
		StockQuantity: in.StockQuantity,
		CategoryID:    in.CategoryID,
		ImageURL:      in.ImageURL,
		SKU:           in.SKU,
		IsActive:      in.IsActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// parseCatalog decodes a catalog, gunzipping it first when gzipped is set,
// and checks every product against the product invariants.
func parseCatalog(r io.Reader, gzipped bool) (*catalog, error) {
	if gzipped {
		zr, err := pgzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	var c catalog
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}

	names := make(map[string]bool, len(c.Categories))
	for _, cc := range c.Categories {
		if cc.Name == "" {
			return nil, errors.New("category without name")
		}
		if names[cc.Name] {
			return nil, errors.Errorf("duplicate category %q", cc.Name)
		}
		names[cc.Name] = true
	}
	skus := make(map[string]bool, len(c.Products))
	for _, cp := range c.Products {
		if !names[cp.Category] {
			return nil, errors.Errorf("product %q: unknown category %q", cp.Name, cp.Category)
		}
		if err := cp.input(0).Validate(); err != nil {
			return nil, errors.Wrapf(err, "product %q", cp.Name)
		}
		if cp.SKU == "" {
			continue
		}
		if skus[cp.SKU] {
			return nil, errors.Errorf("duplicate sku %q", cp.SKU)
		}
		skus[cp.SKU] = true
	}
	return &c, nil
}
