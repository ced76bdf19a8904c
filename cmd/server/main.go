package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"servex_backend/internal/config"
	"servex_backend/internal/database"
	"servex_backend/internal/notify"
	"servex_backend/internal/repositories"
	"servex_backend/internal/router"
	"servex_backend/internal/services"
	"servex_backend/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		utils.LogWarn("Could not read .env file", map[string]interface{}{"error": err.Error()})
	}

	cfg, err := config.Load(os.Getenv(config.EnvConfigPath))
	if err != nil {
		utils.InitLogger("info", true)
		utils.LogError(err, "Invalid configuration")
		os.Exit(1)
	}
	utils.InitLogger(cfg.Log.Level, cfg.PrettyLogs())
	utils.ConfigureJWT(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	ctx := context.Background()

	var db *sql.DB
	var repos repositories.Repositories
	switch cfg.Store {
	case config.BackendMemory:
		repos = repositories.NewMemoryRepositories()
		utils.LogWarn("Using in-memory store, data is lost on restart")
	default:
		db, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			utils.LogError(err, "Failed to connect to database")
			os.Exit(1)
		}
		defer db.Close()
		repos = repositories.NewPostgresRepositories(db)
	}

	hub := notify.NewHub()
	var notifier notify.Notifier = hub
	var broker *notify.AMQPPublisher
	if cfg.AMQP.URL != "" {
		broker, err = notify.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			utils.LogError(err, "Failed to connect to message broker, continuing with in-process events only")
		} else {
			defer broker.Close()
			notifier = notify.Multi(hub, broker)
		}
	}

	stockService := services.NewStockService(repos.Menu, repos.Movements,
		services.WithStockPolicy(services.StockPolicy(cfg.Stock.Policy)),
		services.WithRetryAttempts(cfg.Stock.RetryAttempts),
		services.WithStockNotifier(notifier),
	)
	menuService := services.NewMenuService(repos.Menu, notifier)
	orderService := services.NewOrderService(repos.Orders, repos.Menu, stockService, services.WithOrderNotifier(notifier))
	sessionService := services.NewSessionService(repos.Sessions, repos.Orders, services.WithSessionNotifier(notifier))
	authService := services.NewAuthService(cfg.Auth.RolePINs)

	if cfg.Database.SeedMenu || cfg.Store == config.BackendMemory {
		if n, err := menuService.SeedDefaults(ctx); err != nil {
			utils.LogError(err, "Failed to seed default menu")
		} else if n > 0 {
			utils.LogInfo("Default menu loaded", map[string]interface{}{"items": n})
		}
	}

	if !cfg.PrettyLogs() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(utils.GinLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	router.Setup(engine, router.Dependencies{
		Auth:     authService,
		Menu:     menuService,
		Stock:    stockService,
		Orders:   orderService,
		Sessions: sessionService,
		Hub:      hub,
		Ready: func() error {
			if db != nil {
				pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := db.PingContext(pingCtx); err != nil {
					return err
				}
			}
			if broker != nil {
				return broker.Ping()
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.LogInfo("Server starting", map[string]interface{}{"port": cfg.Server.Port, "store": cfg.Store})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.LogError(err, "Failed to start server")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.LogInfo("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.LogError(err, "Server forced to shutdown")
	}
	utils.LogInfo("Server exited")
}
