package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shopsim/internal/auth"
	"github.com/xenking/shopsim/internal/domain/category"
	"github.com/xenking/shopsim/internal/domain/order"
	"github.com/xenking/shopsim/internal/domain/product"
	"github.com/xenking/shopsim/internal/domain/query"
	"github.com/xenking/shopsim/internal/domain/user"
)

// envelope wraps every response body.
type envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Data    any      `json:"data"`
	Errors  []string `json:"errors,omitempty"`
}

type pageDTO[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

func newPage[S, T any](p query.Page[S], conv func(S) T) pageDTO[T] {
	items := make([]T, len(p.Items))
	for i, it := range p.Items {
		items[i] = conv(it)
	}
	return pageDTO[T]{
		Items:      items,
		TotalCount: p.TotalCount,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages(),
	}
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string, errs ...string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message, Errors: errs})
}

// badRequest reports a malformed request body or query.
func badRequest(c *gin.Context, err error) {
	fail(c, http.StatusBadRequest, "invalid input", err.Error())
}

// pathID parses the :id path parameter.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// writeError maps a domain error to its HTTP status. Unexpected errors are
// logged and hidden behind a generic message.
func writeError(c *gin.Context, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		zctx.From(c.Request.Context()).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	fail(c, status, msg)
}

func classify(err error) (int, string) {
	var (
		pnfErr    *order.ProductNotFoundError
		stockErr  *order.InsufficientStockError
		qtyErr    *order.InvalidQuantityError
		statusErr *order.InvalidStatusError
		validErr  *product.ValidationError
	)
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, category.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.As(err, &pnfErr):
		return http.StatusNotFound, err.Error()

	case errors.As(err, &stockErr),
		errors.Is(err, order.ErrNotPending),
		errors.Is(err, category.ErrHasProducts),
		errors.Is(err, product.ErrInUse),
		errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, category.ErrNameRequired),
		errors.As(err, &qtyErr),
		errors.As(err, &statusErr),
		errors.As(err, &validErr):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, user.ErrEmailTaken),
		errors.Is(err, category.ErrDuplicateName),
		errors.Is(err, product.ErrDuplicateSKU):
		return http.StatusConflict, err.Error()

	case errors.Is(err, user.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, err.Error()

	case errors.Is(err, user.ErrInactive):
		return http.StatusForbidden, err.Error()

	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
