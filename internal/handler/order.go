package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xenking/shopsim/internal/domain/order"
)

func (h *Handler) createOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	lines := make([]order.LineRequest, len(req.Items))
	for i, it := range req.Items {
		lines[i] = order.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	o, err := h.orders.Create(c.Request.Context(), order.CreateRequest{
		UserID:          claimsFrom(c).UserID,
		Items:           lines,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", "/api/orders/"+itoa(o.ID))
	respond(c, http.StatusCreated, newOrderDTO(*o), "order created")
}

func (h *Handler) myOrders(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	uid := claimsFrom(c).UserID
	page, err := h.orders.List(c.Request.Context(), order.ListFilter{Filter: q.filter(), UserID: &uid})
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, newPage(page, newOrderDTO), "")
}

func (h *Handler) listOrders(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.orders.List(c.Request.Context(), order.ListFilter{Filter: q.filter()})
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, newPage(page, newOrderDTO), "")
}

// getOrder serves an order to its owner or an admin. Other callers see a
// missing order.
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	o, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if o.UserID != claimsFrom(c).UserID && !isAdmin(c) {
		fail(c, http.StatusNotFound, order.ErrNotFound.Error())
		return
	}
	respond(c, http.StatusOK, newOrderDTO(*o), "")
}

func (h *Handler) cancelOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	cancelled, err := h.orders.Cancel(c.Request.Context(), id, claimsFrom(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !cancelled {
		fail(c, http.StatusNotFound, "order not found or you don't have permission to cancel it")
		return
	}
	respond(c, http.StatusOK, nil, "order cancelled")
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := h.orders.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	if !updated {
		fail(c, http.StatusNotFound, order.ErrNotFound.Error())
		return
	}
	respond(c, http.StatusOK, nil, "order status updated")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
