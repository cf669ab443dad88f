package handler

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopsim/internal/domain/category"
	"github.com/xenking/shopsim/internal/domain/order"
	"github.com/xenking/shopsim/internal/domain/product"
	"github.com/xenking/shopsim/internal/domain/query"
	"github.com/xenking/shopsim/internal/domain/user"
)

// listQuery carries the common listing parameters.
type listQuery struct {
	SearchTerm    string `form:"searchTerm"`
	SortBy        string `form:"sortBy"`
	SortDirection string `form:"sortDirection"`
	Page          int    `form:"page"`
	PageSize      int    `form:"pageSize"`
}

func (q listQuery) filter() query.Filter {
	return query.Filter{
		SearchTerm:    q.SearchTerm,
		SortBy:        q.SortBy,
		SortDirection: q.SortDirection,
		Page:          q.Page,
		PageSize:      q.PageSize,
	}
}

type productQuery struct {
	listQuery
	CategoryID *int64 `form:"categoryId"`
	MinPrice   string `form:"minPrice"`
	MaxPrice   string `form:"maxPrice"`
	InStock    bool   `form:"inStock"`
}

func (q productQuery) filter() (product.ListFilter, error) {
	f := product.ListFilter{
		Filter:     q.listQuery.filter(),
		CategoryID: q.CategoryID,
		InStock:    q.InStock,
	}
	var err error
	if f.MinPrice, err = optionalDecimal(q.MinPrice); err != nil {
		return f, errors.Wrap(err, "minPrice")
	}
	if f.MaxPrice, err = optionalDecimal(q.MaxPrice); err != nil {
		return f, errors.Wrap(err, "maxPrice")
	}
	return f, nil
}

func optionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// --- Auth ---

type registerRequest struct {
	FirstName string `json:"firstName" binding:"required,max=100"`
	LastName  string `json:"lastName" binding:"max=100"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userDTO struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
}

func newUserDTO(u *user.User) userDTO {
	return userDTO{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		CreatedAt: timestamp(u.CreatedAt),
	}
}

type sessionDTO struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expiresAt"`
	User      userDTO `json:"user"`
}

func newSessionDTO(s *user.Session) sessionDTO {
	return sessionDTO{
		Token:     s.Token,
		ExpiresAt: timestamp(s.ExpiresAt),
		User:      newUserDTO(s.User),
	}
}

// --- Categories ---

type categoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
	IsActive    *bool  `json:"isActive"`
}

func (r categoryRequest) input() category.Input {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return category.Input{Name: r.Name, Description: r.Description, IsActive: active}
}

type categoryDTO struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	IsActive     bool   `json:"isActive"`
	ProductCount int    `json:"productCount"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

func newCategoryDTO(c category.Category) categoryDTO {
	return categoryDTO{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		IsActive:     c.IsActive,
		ProductCount: c.ProductCount,
		CreatedAt:    timestamp(c.CreatedAt),
		UpdatedAt:    timestamp(c.UpdatedAt),
	}
}

// --- Products ---

type productRequest struct {
	Name          string          `json:"name" binding:"required,max=200"`
	Description   string          `json:"description" binding:"max=2000"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity" binding:"min=0"`
	CategoryID    int64           `json:"categoryId" binding:"required,min=1"`
	ImageURL      string          `json:"imageUrl" binding:"omitempty,url"`
	SKU           string          `json:"sku" binding:"max=64"`
	IsActive      *bool           `json:"isActive"`
}

func (r productRequest) input() product.Input {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return product.Input{
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price,
		StockQuantity: r.StockQuantity,
		CategoryID:    r.CategoryID,
		ImageURL:      r.ImageURL,
		SKU:           r.SKU,
		IsActive:      active,
	}
}

type productDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Price         string `json:"price"`
	StockQuantity int    `json:"stockQuantity"`
	CategoryID    int64  `json:"categoryId"`
	ImageURL      string `json:"imageUrl,omitempty"`
	SKU           string `json:"sku,omitempty"`
	IsActive      bool   `json:"isActive"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

func newProductDTO(p product.Product) productDTO {
	return productDTO{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         money(p.Price),
		StockQuantity: p.StockQuantity,
		CategoryID:    p.CategoryID,
		ImageURL:      p.ImageURL,
		SKU:           p.SKU,
		IsActive:      p.IsActive,
		CreatedAt:     timestamp(p.CreatedAt),
		UpdatedAt:     timestamp(p.UpdatedAt),
	}
}

// --- Orders ---

type orderLineRequest struct {
	ProductID int64 `json:"productId" binding:"required,min=1"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

type orderRequest struct {
	Items           []orderLineRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddress string             `json:"shippingAddress" binding:"required,max=500"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required,max=50"`
}

type orderItemDTO struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	TotalPrice  string `json:"totalPrice"`
}

type customerDTO struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type orderDTO struct {
	ID              int64          `json:"id"`
	UserID          int64          `json:"userId"`
	TotalAmount     string         `json:"totalAmount"`
	Status          string         `json:"status"`
	ShippingAddress string         `json:"shippingAddress"`
	CreatedAt       string         `json:"createdAt"`
	UpdatedAt       string         `json:"updatedAt"`
	Items           []orderItemDTO `json:"items"`
	User            *customerDTO   `json:"user,omitempty"`
}

func newOrderDTO(o order.Order) orderDTO {
	items := make([]orderItemDTO, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemDTO{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   money(it.UnitPrice),
			TotalPrice:  money(it.TotalPrice()),
		}
	}
	dto := orderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		TotalAmount:     money(o.TotalAmount),
		Status:          string(o.Status),
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       timestamp(o.CreatedAt),
		UpdatedAt:       timestamp(o.UpdatedAt),
		Items:           items,
	}
	if c := o.Customer; c != nil {
		dto.User = &customerDTO{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName, Email: c.Email}
	}
	return dto
}
