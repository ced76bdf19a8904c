package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"servex_backend/internal/handlers"
	"servex_backend/internal/middleware"
	"servex_backend/internal/notify"
	"servex_backend/internal/services"
)

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	Auth     services.AuthService
	Menu     services.MenuService
	Stock    services.StockService
	Orders   services.OrderService
	Sessions services.SessionService
	Hub      *notify.Hub
	// Ready reports whether backing stores are reachable, for /health.
	Ready func() error
}

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.Auth)
	menuHandler := handlers.NewMenuHandler(deps.Menu)
	inventoryHandler := handlers.NewInventoryHandler(deps.Stock)
	orderHandler := handlers.NewOrderHandler(deps.Orders)
	sessionHandler := handlers.NewSessionHandler(deps.Sessions)
	eventHandler := handlers.NewEventHandler(deps.Hub)

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	engine.GET("/health", func(c *gin.Context) {
		if deps.Ready != nil {
			if err := deps.Ready(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := engine.Group("/api/v1")
	SetupPublicAuthRoutes(apiV1.Group("/auth"), authHandler)

	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware())
	{
		authenticated.GET("/auth/me", authHandler.Me)
		SetupMenuRoutes(authenticated, menuHandler, inventoryHandler)
		SetupOrderRoutes(authenticated, orderHandler)
		SetupSessionRoutes(authenticated, sessionHandler)
	}

	apiV1.GET("/events", middleware.StreamAuthMiddleware(), eventHandler.Stream)
}

// SetupPublicAuthRoutes registers the routes reachable without a token.
func SetupPublicAuthRoutes(group *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	group.POST("/login", authHandler.Login)
}
