// Package handler exposes the shop over HTTP with gin.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/shopsim/internal/auth"
	"github.com/xenking/shopsim/internal/domain/category"
	"github.com/xenking/shopsim/internal/domain/order"
	"github.com/xenking/shopsim/internal/domain/product"
	"github.com/xenking/shopsim/internal/domain/user"
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Handler serves the REST API, delegating business logic to the domain
// services.
type Handler struct {
	users      *user.Service
	categories *category.Service
	products   *product.Service
	orders     *order.Service
	tokens     TokenParser
}

// New constructs a Handler with the required domain dependencies.
func New(
	users *user.Service,
	categories *category.Service,
	products *product.Service,
	orders *order.Service,
	tokens TokenParser,
) *Handler {
	return &Handler{
		users:      users,
		categories: categories,
		products:   products,
		orders:     orders,
		tokens:     tokens,
	}
}

// Router returns a gin engine with every API route registered. Logging,
// recovery and tracing are applied by the net/http middleware around it.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "resource not found")
	})
	r.NoMethod(func(c *gin.Context) {
		fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	api := r.Group("/api")
	authed := api.Group("", h.authenticate)
	admin := authed.Group("", requireRole(user.RoleAdmin))

	api.POST("/auth/register", h.register)
	api.POST("/auth/login", h.login)
	authed.GET("/auth/me", h.me)

	api.GET("/products", h.listProducts)
	api.GET("/products/:id", h.getProduct)
	admin.POST("/products", h.createProduct)
	admin.PUT("/products/:id", h.updateProduct)
	admin.DELETE("/products/:id", h.deleteProduct)

	api.GET("/categories", h.listCategories)
	api.GET("/categories/:id", h.getCategory)
	admin.POST("/categories", h.createCategory)
	admin.PUT("/categories/:id", h.updateCategory)
	admin.DELETE("/categories/:id", h.deleteCategory)

	authed.POST("/orders", h.createOrder)
	authed.GET("/orders/me", h.myOrders)
	authed.GET("/orders/:id", h.getOrder)
	authed.DELETE("/orders/:id", h.cancelOrder)
	admin.GET("/orders", h.listOrders)
	admin.PUT("/orders/:id/status", h.updateOrderStatus)

	return r
}
