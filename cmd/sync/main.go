package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appsync "github.com/four-bytes-robby/scr-ebay-sync/internal/application/reconcile"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/infrastructure/cache"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/infrastructure/config"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/infrastructure/ebay"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/infrastructure/logger"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/infrastructure/media"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/infrastructure/persistence"
)

const defaultTimeout = 2 * time.Hour

func main() {
	var (
		logLevel    string
		timeout     time.Duration
		listingFile string
		pullLimit   int
	)

	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.DurationVar(&timeout, "timeout", defaultTimeout, "Hard deadline for the whole run")
	flag.StringVar(&listingFile, "file", "", "File with one listing ID per line (for migrate-listings)")
	flag.IntVar(&pullLimit, "limit", 100, "Page size for pull-inventory")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:  logLevel,
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(logLevel))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	listingService, orderService := buildServices(cfg, db, log)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	switch command {
	case "cycle":
		runCycle(ctx, listingService, log)

	case "orders":
		since := time.Now().Add(-cfg.Sync.OrderLookback)
		report, err := orderService.ImportOrders(ctx, since)
		if err != nil {
			log.Fatal("Order import failed", zap.Error(err))
		}
		logReport(log, "import_orders", report)

		report, err = orderService.SynchronizeOrderStatus(ctx)
		if err != nil {
			log.Fatal("Order status sync failed", zap.Error(err))
		}
		logReport(log, "sync_order_status", report)

	case "pull-inventory":
		report, err := listingService.PullRemoteInventory(ctx, pullLimit)
		if err != nil {
			log.Fatal("Inventory pull failed", zap.Error(err))
		}
		logReport(log, "pull_inventory", report)

	case "migrate-listings":
		listingIDs, err := collectListingIDs(listingFile, args[1:])
		if err != nil {
			log.Fatal("Failed to read listing IDs", zap.Error(err))
		}
		if len(listingIDs) == 0 {
			log.Fatal("No listing IDs given. Use -file or pass IDs as arguments.")
		}
		report, err := listingService.MigrateLegacyListings(ctx, listingIDs)
		if err != nil {
			log.Fatal("Listing migration failed", zap.Error(err))
		}
		logReport(log, "migrate_listings", report)

	case "drift":
		counts, err := listingService.DriftCounts(ctx)
		if err != nil {
			log.Fatal("Drift count failed", zap.Error(err))
		}
		log.Info("Current drift backlog",
			zap.Int64("new_candidates", counts.NewCandidates),
			zap.Int64("quantity_drift", counts.QuantityDrift),
			zap.Int64("oversold", counts.Oversold),
			zap.Int64("content_stale", counts.ContentStale),
			zap.Int64("price_drift", counts.PriceDrift),
			zap.Int64("stale_unavailable", counts.StaleUnavailable),
		)

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

// buildServices wires the application services the same way the server does.
func buildServices(cfg *config.Config, db *persistence.Database, log *zap.Logger) (*appsync.ListingService, *appsync.OrderService) {
	sourceItemRepo := persistence.NewGormSourceItemRepository(db.DB)
	sourceInvoiceRepo := persistence.NewGormSourceInvoiceRepository(db.DB)
	mirrorItemRepo := persistence.NewGormMirrorItemRepository(db.DB)
	mirrorTxRepo := persistence.NewGormMirrorTransactionRepository(db.DB)

	ebayClient, err := ebay.NewClient(&ebay.Config{
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
	}, log)
	if err != nil {
		log.Fatal("Failed to create marketplace client", zap.Error(err))
	}

	imageCache := cache.NewInMemoryImageURLCache(
		cache.WithInMemoryTTL(cfg.Media.CacheTTL),
		cache.WithInMemoryLogger(log),
	)
	imageFinder := media.NewFinder(cfg.Media.BaseURL, cfg.Media.Timeout, imageCache, cfg.Media.CacheTTL, log)

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
	return listingService, orderService
}

// runCycle executes one full listing reconciliation cycle in priority order.
func runCycle(ctx context.Context, listings *appsync.ListingService, log *zap.Logger) {
	steps := []struct {
		name string
		run  func(context.Context) (*appsync.RunReport, error)
	}{
		{"reconcile_oversold", listings.ReconcileOversold},
		{"reconcile_quantities", listings.ReconcileQuantities},
		{"reconcile_content", listings.ReconcileContentUpdates},
		{"end_stale_listings", listings.EndStaleListings},
		{"reconcile_new_listings", listings.ReconcileNewListings},
	}

	for _, step := range steps {
		report, err := step.run(ctx)
		if err != nil {
			log.Fatal("Cycle step failed", zap.String("step", step.name), zap.Error(err))
		}
		logReport(log, step.name, report)
	}
}

func collectListingIDs(file string, args []string) ([]string, error) {
	ids := append([]string{}, args...)
	if file == "" {
		return ids, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, scanner.Err()
}

func logReport(log *zap.Logger, step string, report *appsync.RunReport) {
	log.Info("Batch pass finished",
		zap.String("step", step),
		zap.String("run_id", report.RunID.String()),
		zap.Int("processed", report.Processed),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	for _, itemErr := range report.Errors {
		log.Warn("Item failed",
			zap.String("step", step),
			zap.String("id", itemErr.ID),
			zap.String("operation", itemErr.Operation),
			zap.String("message", itemErr.Message),
		)
	}
}

func printUsage() {
	fmt.Println(`eBay Sync Batch Tool

Usage:
  sync [flags] <command> [arguments]

Commands:
  cycle                       Run one full listing reconciliation cycle
  orders                      Import recent orders and push status updates
  pull-inventory              Adopt already-listed remote inventory into the mirror
  migrate-listings [ids...]   Migrate legacy listings to inventory-based ones
  drift                       Show the current drift backlog per category

Flags:
  -log-level string   Log level: debug, info, warn, error (default: info)
  -timeout duration   Hard deadline for the whole run (default: 2h)
  -file string        File with one listing ID per line (migrate-listings)
  -limit int          Page size for pull-inventory (default: 100)

Examples:
  # Repair all drift once
  sync cycle

  # Adopt existing eBay listings after a fresh install
  sync pull-inventory

  # Migrate legacy listings listed in a file
  sync migrate-listings -file legacy_ids.txt`)
}
