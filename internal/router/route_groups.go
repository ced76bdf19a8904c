package router

import (
	"github.com/gin-gonic/gin"

	"servex_backend/internal/handlers"
	"servex_backend/internal/middleware"
	"servex_backend/internal/models"
)

// SetupMenuRoutes sets up the menu and stock routes. Everyone reads the menu; the manager
// edits it and the kitchen may correct stock counts.
func SetupMenuRoutes(authenticatedGroup *gin.RouterGroup, menuHandler *handlers.MenuHandler, inventoryHandler *handlers.InventoryHandler) {
	menuRoutes := authenticatedGroup.Group("/menu-items")
	{
		menuRoutes.GET("", menuHandler.GetMenuItems)
		menuRoutes.GET("/low-stock", inventoryHandler.GetLowStock)
		menuRoutes.GET("/:id", menuHandler.GetMenuItemByID)
		menuRoutes.GET("/:id/movements", inventoryHandler.GetMovements)

		managed := menuRoutes.Group("")
		managed.Use(middleware.RoleAuthMiddleware(models.RoleManager))
		managed.POST("", menuHandler.CreateMenuItem)
		managed.PUT("/:id", menuHandler.UpdateMenuItem)
		managed.DELETE("/:id", menuHandler.DeleteMenuItem)

		menuRoutes.PATCH("/:id/stock", middleware.RoleAuthMiddleware(models.RoleKitchen), inventoryHandler.UpdateStock)
	}
}

// SetupOrderRoutes sets up the order routes. Waiters own the ticket, the kitchen moves
// statuses forward, and ready courses are served by the floor or the pass.
func SetupOrderRoutes(authenticatedGroup *gin.RouterGroup, orderHandler *handlers.OrderHandler) {
	orderRoutes := authenticatedGroup.Group("/orders")
	{
		orderRoutes.GET("", orderHandler.GetOrders)
		orderRoutes.GET("/:id", orderHandler.GetOrderByID)

		waiter := middleware.RoleAuthMiddleware(models.RoleWaiter)
		orderRoutes.POST("", waiter, orderHandler.CreateOrder)
		orderRoutes.PUT("/:id", waiter, orderHandler.UpdateOrder)
		orderRoutes.DELETE("/:id", waiter, orderHandler.DeleteOrder)
		orderRoutes.POST("/:id/serve-ready", middleware.RoleAuthMiddleware(models.RoleWaiter, models.RoleKitchen), orderHandler.ServeReady)

		kitchen := middleware.RoleAuthMiddleware(models.RoleKitchen)
		orderRoutes.PATCH("/:id/status", kitchen, orderHandler.UpdateOrderStatus)
		orderRoutes.PATCH("/:id/items/:instanceId/status", kitchen, orderHandler.UpdateItemStatus)
		orderRoutes.PATCH("/:id/courses/:course/status", kitchen, orderHandler.UpdateCourseStatus)
	}
}

// SetupSessionRoutes sets up the service session routes.
func SetupSessionRoutes(authenticatedGroup *gin.RouterGroup, sessionHandler *handlers.SessionHandler) {
	sessionRoutes := authenticatedGroup.Group("/sessions")
	{
		sessionRoutes.GET("/active", sessionHandler.GetActiveSession)

		manager := middleware.RoleAuthMiddleware(models.RoleManager)
		sessionRoutes.POST("/start", manager, sessionHandler.StartService)
		sessionRoutes.POST("/end", manager, sessionHandler.EndService)
		sessionRoutes.GET("", manager, sessionHandler.GetSessions)
		sessionRoutes.GET("/live-metrics", manager, sessionHandler.GetLiveMetrics)
	}
}
