package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"servex_backend/internal/models"
	"servex_backend/internal/services"
	"servex_backend/pkg/utils"
)

const defaultMovementLimit = 50

// StockUpdateRequest either sets an absolute count or applies a delta, never both.
type StockUpdateRequest struct {
	Stock  *int   `json:"stock"`
	Delta  *int   `json:"delta"`
	Reason string `json:"reason"`
}

// InventoryHandler exposes stock counts and the movement log.
type InventoryHandler struct {
	stockService services.StockService
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(ss services.StockService) *InventoryHandler {
	return &InventoryHandler{stockService: ss}
}

// UpdateStock handles PATCH /menu-items/:id/stock.
func (h *InventoryHandler) UpdateStock(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req StockUpdateRequest
	if !bindJSON(c, &req, "UpdateStock") {
		return
	}
	if (req.Stock == nil) == (req.Delta == nil) {
		utils.RespondValidationFailed(c, "provide exactly one of stock or delta")
		return
	}

	var err error
	var item *models.MenuItem
	if req.Stock != nil {
		item, err = h.stockService.SetStock(c.Request.Context(), id, *req.Stock, req.Reason)
	} else {
		item, err = h.stockService.AdjustStock(c.Request.Context(), id, *req.Delta, req.Reason)
	}
	if err != nil {
		respondServiceError(c, err, "update stock")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *InventoryHandler) GetLowStock(c *gin.Context) {
	items, err := h.stockService.LowStock(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "fetch low stock items")
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetMovements returns the newest movements of one menu item. ?limit=0 returns all of them.
func (h *InventoryHandler) GetMovements(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	limit := defaultMovementLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.RespondValidationFailed(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	movements, err := h.stockService.Movements(c.Request.Context(), id, limit)
	if err != nil {
		respondServiceError(c, err, "fetch inventory movements")
		return
	}
	c.JSON(http.StatusOK, movements)
}
