// Package app wires configuration, storage, clients, and services into a
// single application core shared by cmd/folio-server and tests.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dstanton/folio/internal/clients/alphavantage"
	"github.com/dstanton/folio/internal/clients/fmp"
	"github.com/dstanton/folio/internal/clients/freecurrency"
	"github.com/dstanton/folio/internal/common"
	"github.com/dstanton/folio/internal/interfaces"
	"github.com/dstanton/folio/internal/services/fx"
	"github.com/dstanton/folio/internal/services/portfolio"
	"github.com/dstanton/folio/internal/services/price"
	"github.com/dstanton/folio/internal/services/snapshot"
	"github.com/dstanton/folio/internal/storage"
)

// App holds all initialized services, clients, and storage.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	FXService        interfaces.FXService
	PriceService     interfaces.PriceService
	PortfolioService interfaces.PortfolioService
	SnapshotService  interfaces.SnapshotService
	StartupTime      time.Time

	schedulerCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, clients, and services from configuration.
// configPath may be empty, in which case FOLIO_CONFIG and default locations
// are tried in order.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("FOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "folio.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/folio.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage paths to the binary directory
	if config.Storage.Internal.Path != "" && !filepath.IsAbs(config.Storage.Internal.Path) {
		config.Storage.Internal.Path = filepath.Join(binDir, config.Storage.Internal.Path)
	}
	if config.Storage.User.Path != "" && !filepath.IsAbs(config.Storage.User.Path) {
		config.Storage.User.Path = filepath.Join(binDir, config.Storage.User.Path)
	}

	logger := common.NewLogger(config.Logging.Level)

	storageManager, err := storage.NewManager(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ctx := context.Background()
	internalStore := storageManager.InternalStore()

	// Resolve API keys: environment, then system KV, then config file
	fxKey := common.ResolveAPIKey(ctx, internalStore, "freecurrency_api_key", config.Clients.FreeCurrency.APIKey)
	if fxKey == "" {
		logger.Warn().Msg("FX API key not configured - currency conversion will be unavailable")
	}

	avKey := common.ResolveAPIKey(ctx, internalStore, "alphavantage_api_key", config.Clients.AlphaVantage.APIKey)
	fmpKey := common.ResolveAPIKey(ctx, internalStore, "fmp_api_key", config.Clients.FMP.APIKey)
	if fmpKey == "" && avKey == "" {
		logger.Warn().Msg("No market data API key configured - quotes will be unavailable")
	}

	// FX client is always constructed; without a key it reports no rates and
	// the FX service degrades conversion to a no-op.
	fxClient := freecurrency.NewClient(fxKey,
		freecurrency.WithBaseURL(config.Clients.FreeCurrency.BaseURL),
		freecurrency.WithLogger(logger),
		freecurrency.WithRateLimit(config.Clients.FreeCurrency.RateLimit),
		freecurrency.WithTimeout(config.Clients.FreeCurrency.GetTimeout()),
	)

	var primary, secondary interfaces.MarketDataClient
	if fmpKey != "" {
		primary = fmp.NewClient(fmpKey,
			fmp.WithBaseURL(config.Clients.FMP.BaseURL),
			fmp.WithLogger(logger),
			fmp.WithRateLimit(config.Clients.FMP.RateLimit),
			fmp.WithTimeout(config.Clients.FMP.GetTimeout()),
		)
	}
	if avKey != "" {
		avClient := alphavantage.NewClient(avKey,
			alphavantage.WithBaseURL(config.Clients.AlphaVantage.BaseURL),
			alphavantage.WithLogger(logger),
			alphavantage.WithRateLimit(config.Clients.AlphaVantage.RateLimit),
			alphavantage.WithTimeout(config.Clients.AlphaVantage.GetTimeout()),
		)
		if primary == nil {
			primary = avClient
		} else {
			secondary = avClient
		}
	}

	fxService := fx.NewService(fxClient, logger)
	priceService := price.NewService(primary, secondary, price.NewMemoryCache(), logger)
	portfolioService := portfolio.NewService(storageManager, priceService, fxService, logger)
	snapshotService := snapshot.NewService(storageManager, fxService, config.BaseCurrency, logger)

	a := &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		FXService:        fxService,
		PriceService:     priceService,
		PortfolioService: portfolioService,
		SnapshotService:  snapshotService,
		StartupTime:      startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// StartScheduler launches the background snapshot and price-refresh loops.
func (a *App) StartScheduler() {
	ctx, cancel := context.WithCancel(context.Background())
	a.schedulerCancel = cancel
	safeGo(a.Logger, "snapshot-loop", func() {
		runSnapshotLoop(ctx, a.SnapshotService, a.Config.Scheduler.SnapshotHourUTC, a.Logger)
	})
	safeGo(a.Logger, "price-refresh-loop", func() {
		runPriceRefreshLoop(ctx, a.Storage, a.PriceService, a.Config.Scheduler, a.Logger)
	})
}

// Close releases all resources. Shutdown order: cancel scheduler, close storage.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
