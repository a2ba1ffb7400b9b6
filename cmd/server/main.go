package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appsync "github.com/four-bytes-robby/scr-ebay-sync/internal/application/reconcile"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/infrastructure/cache"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/infrastructure/config"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/infrastructure/ebay"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/infrastructure/logger"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/infrastructure/media"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/infrastructure/persistence"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/infrastructure/scheduler"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/interfaces/http/handler"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/interfaces/http/router"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting eBay sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection with zap-backed GORM logger
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	sourceItemRepo := persistence.NewGormSourceItemRepository(db.DB)
	sourceInvoiceRepo := persistence.NewGormSourceInvoiceRepository(db.DB)
	mirrorItemRepo := persistence.NewGormMirrorItemRepository(db.DB)
	mirrorTxRepo := persistence.NewGormMirrorTransactionRepository(db.DB)

	// Marketplace client
	ebayCfg := &ebay.Config{
		BaseURL:           cfg.Ebay.BaseURL,
		TokenURL:          cfg.Ebay.TokenURL,
		ClientID:          cfg.Ebay.ClientID,
		ClientSecret:      cfg.Ebay.ClientSecret,
		RefreshToken:      cfg.Ebay.RefreshToken,
		Currency:          cfg.Sync.Currency,
		MerchantLocation:  cfg.Ebay.MerchantLocation,
		FulfillmentPolicy: cfg.Ebay.FulfillmentPolicy,
		PaymentPolicy:     cfg.Ebay.PaymentPolicy,
		ReturnPolicy:      cfg.Ebay.ReturnPolicy,
		Timeout:           cfg.Ebay.Timeout,
		MaxRetries:        cfg.Ebay.MaxRetries,
		RetryBackoff:      cfg.Ebay.RetryBackoff,
	}
	ebayClient, err := ebay.NewClient(ebayCfg, log)
	if err != nil {
		log.Fatal("Failed to create marketplace client", zap.Error(err))
	}

	// Image URL cache: Redis when configured, in-process otherwise
	var imageCache cache.ImageURLCache
	if cfg.Redis.Host != "" {
		redisCache, err := cache.NewRedisImageURLCache(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Media.CacheTTL)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		imageCache = redisCache
		log.Info("Using Redis image URL cache",
			zap.String("host", cfg.Redis.Host),
			zap.Int("port", cfg.Redis.Port))
	} else {
		imageCache = cache.NewInMemoryImageURLCache(
			cache.WithInMemoryTTL(cfg.Media.CacheTTL),
			cache.WithInMemoryLogger(log),
		)
		log.Info("Using in-memory image URL cache")
	}
	defer func() {
		if err := imageCache.Close(); err != nil {
			log.Error("Error closing image cache", zap.Error(err))
		}
	}()

	imageFinder := media.NewFinder(cfg.Media.BaseURL, cfg.Media.Timeout, imageCache, cfg.Media.CacheTTL, log)

	// Application services
	syncCfg := appsync.DefaultConfig()
	syncCfg.Policy.MaxListedQuantity = cfg.Sync.MaxListedQuantity
	syncCfg.Policy.MinorUnitThreshold = decimal.NewFromFloat(cfg.Sync.MinorUnitThreshold)
	syncCfg.Policy.RepriceThreshold = decimal.NewFromFloat(cfg.Sync.RepriceThreshold)
	syncCfg.Policy.NewCandidateLookback = cfg.Sync.CandidateLookback
	syncCfg.ShipmentFreshness = cfg.Sync.ShipmentFreshness
	syncCfg.CancellationWindow = cfg.Sync.CancellationWindow
	syncCfg.BatchSize = cfg.Sync.BatchSize
	syncCfg.Currency = cfg.Sync.Currency

	listingService := appsync.NewListingService(sourceItemRepo, mirrorItemRepo, ebayClient, imageFinder, syncCfg, log)
	orderService := appsync.NewOrderService(sourceInvoiceRepo, sourceItemRepo, mirrorTxRepo, ebayClient, syncCfg, log)

	// Periodic reconciliation
	if cfg.Scheduler.Enabled {
		syncScheduler := scheduler.NewSyncScheduler(listingService, orderService, cfg.Scheduler, cfg.Sync.OrderLookback, log)
		if err := syncScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := syncScheduler.Stop(stopCtx); err != nil {
				log.Error("Error stopping sync scheduler", zap.Error(err))
			}
		}()
	} else {
		log.Warn("Sync scheduler disabled, only webhooks will trigger reconciliation")
	}

	// HTTP surface: webhooks plus the drift status endpoint
	engine := router.NewEngine(log, version)

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Readiness check includes the database
	engine.GET("/readyz", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
	})

	syncHandler := handler.NewSyncHandler(listingService, orderService, cfg.Webhook.Secret, log)
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(syncHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
