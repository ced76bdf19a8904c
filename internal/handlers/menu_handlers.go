package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"servex_backend/internal/models"
	"servex_backend/internal/services"
	"servex_backend/pkg/utils"
)

// MenuHandler serves the menu catalog.
type MenuHandler struct {
	menuService services.MenuService
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(ms services.MenuService) *MenuHandler {
	return &MenuHandler{menuService: ms}
}

func (h *MenuHandler) CreateMenuItem(c *gin.Context) {
	var req services.MenuItemRequest
	if !bindJSON(c, &req, "CreateMenuItem") {
		return
	}
	item, err := h.menuService.CreateMenuItem(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "create menu item")
		return
	}
	c.JSON(http.StatusCreated, item)
}

// GetMenuItems lists the menu, optionally filtered by category, item_type or low_stock.
func (h *MenuHandler) GetMenuItems(c *gin.Context) {
	var filters models.MenuFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	items, err := h.menuService.ListMenuItems(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err, "fetch menu")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *MenuHandler) GetMenuItemByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	item, err := h.menuService.GetMenuItem(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "fetch menu item")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *MenuHandler) UpdateMenuItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req services.MenuItemRequest
	if !bindJSON(c, &req, "UpdateMenuItem") {
		return
	}
	item, err := h.menuService.UpdateMenuItem(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "update menu item")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *MenuHandler) DeleteMenuItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.menuService.DeleteMenuItem(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "delete menu item")
		return
	}
	c.Status(http.StatusNoContent)
}
