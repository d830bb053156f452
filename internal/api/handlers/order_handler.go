package handlers

import (
	"net/http"
	"strconv"

	"github.com/andresuchdata/autoreorder/internal/service"
	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// ListOrders supports ?material=, ?status= and ?active=true.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	active, _ := strconv.ParseBool(c.Query("active"))
	orders, err := h.orders.List(c.Request.Context(), service.OrderQuery{
		MaterialID: c.Query("material"),
		Status:     c.Query("status"),
		ActiveOnly: active,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": len(orders)})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	order, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type transitionRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *OrderHandler) Transition(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	order, err := h.orders.Transition(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
