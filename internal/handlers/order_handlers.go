package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"servex_backend/internal/models"
	"servex_backend/internal/services"
	"servex_backend/pkg/utils"
)

// StatusRequest carries a target status for an order, item or course.
type StatusRequest struct {
	Status models.Status `json:"status" binding:"required"`
}

// OrderHandler holds the order service.
type OrderHandler struct {
	orderService services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(os services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: os}
}

// CreateOrder places a waiter's ticket and reserves its stock.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req services.OrderRequest
	if !bindJSON(c, &req, "CreateOrder") {
		return
	}
	order, err := h.orderService.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "create order")
		return
	}
	c.JSON(http.StatusCreated, order)
}

// GetOrders lists live orders. Supported filters: status, table_number, service_period, station.
func (h *OrderHandler) GetOrders(c *gin.Context) {
	var filters models.OrderFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	orders, err := h.orderService.ListOrders(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err, "fetch orders")
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "fetch order")
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateOrder replaces the items and details of a pending order.
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req services.OrderRequest
	if !bindJSON(c, &req, "UpdateOrder") {
		return
	}
	order, err := h.orderService.EditOrder(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "edit order")
		return
	}
	c.JSON(http.StatusOK, order)
}

// DeleteOrder removes the order and returns its stock.
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.orderService.RemoveOrder(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "delete order")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !bindJSON(c, &req, "UpdateOrderStatus") {
		return
	}
	order, err := h.orderService.SetOrderStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondServiceError(c, err, "update order status")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) UpdateItemStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !bindJSON(c, &req, "UpdateItemStatus") {
		return
	}
	order, err := h.orderService.SetItemStatus(c.Request.Context(), id, c.Param("instanceId"), req.Status)
	if err != nil {
		respondServiceError(c, err, "update item status")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) UpdateCourseStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !bindJSON(c, &req, "UpdateCourseStatus") {
		return
	}
	course := models.Course(c.Param("course"))
	order, err := h.orderService.SetCourseStatus(c.Request.Context(), id, course, req.Status)
	if err != nil {
		respondServiceError(c, err, "update course status")
		return
	}
	c.JSON(http.StatusOK, order)
}

// ServeReady marks every Ready item of the order as Served.
func (h *OrderHandler) ServeReady(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.ServeReadyCourses(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "serve ready items")
		return
	}
	c.JSON(http.StatusOK, order)
}
