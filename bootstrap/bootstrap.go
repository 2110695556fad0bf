// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from a YAML file with hot reload for the fields
// that support it.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/meterly/subgate/adapters/auth"
	"github.com/meterly/subgate/adapters/clock"
	"github.com/meterly/subgate/adapters/idgen"
	"github.com/meterly/subgate/adapters/memory"
	"github.com/meterly/subgate/adapters/metrics"
	"github.com/meterly/subgate/adapters/rediscache"
	"github.com/meterly/subgate/adapters/sqlite"
	"github.com/meterly/subgate/adapters/stripe"
	"github.com/meterly/subgate/adapters/textgen"
	"github.com/meterly/subgate/app"
	"github.com/meterly/subgate/config"
	"github.com/meterly/subgate/ports"
	"github.com/meterly/subgate/web"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Holder     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	// Services
	gate      *app.GateService
	meter     *app.MeterService
	generator *app.GenerateService
	usage     ports.UsageResolver
	products  ports.ProductResolver

	// Adapters (for cleanup)
	redisCache *rediscache.CacheStore
}

// New creates and initializes the application from a config file.
func New(configPath string) (*App, error) {
	holder, err := config.NewHolder(configPath, zerolog.New(os.Stderr).With().Timestamp().Logger())
	if err != nil {
		return nil, err
	}

	cfg := holder.Get()
	logger := setupLogger(cfg.Logging)

	logger.Info().Str("config", configPath).Msg("initializing subgate")

	a := &App{
		Logger: logger,
		Holder: holder,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initServices(cfg); err != nil {
		return nil, err
	}
	a.initHTTPServer(cfg)
	a.wireReload()

	return a, nil
}

func (a *App) initServices(cfg *config.Config) error {
	// Provider client shared by all provider-facing adapters
	provider := stripe.NewClient(stripe.Config{
		SecretKey: cfg.Provider.SecretKey,
		BaseURL:   cfg.Provider.BaseURL,
		Timeout:   cfg.Provider.Timeout,
	})
	if a.Metrics != nil {
		provider.SetMetrics(a.Metrics)
	}

	cache, err := a.buildCache(cfg)
	if err != nil {
		return err
	}

	a.gate = app.NewGateService(app.GateDeps{
		Customers:     stripe.NewCustomerResolver(provider, a.Logger),
		Subscriptions: stripe.NewSubscriptionResolver(provider, a.Logger),
		Cache:         cache,
		Logger:        a.Logger,
		Metrics:       a.Metrics,
	}, cfg.SubscriptionTTL())

	a.meter = app.NewMeterService(stripe.NewUsageReporter(provider), a.Logger, a.Metrics, cfg.Usage.QueueSize)
	a.usage = stripe.NewUsageResolver(provider, a.Logger)
	a.products = stripe.NewProductResolver(provider)

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	a.DB = db
	a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("database initialized")

	a.generator = app.NewGenerateService(app.GenerateDeps{
		Generator: textgen.NewClient(textgen.Config{
			URL:     cfg.Generator.URL,
			APIKey:  cfg.Generator.APIKey,
			Timeout: cfg.Generator.Timeout,
		}),
		Docs:    sqlite.NewDocStore(db),
		Meter:   a.meter,
		IDGen:   idgen.UUID{},
		Clock:   clock.Real{},
		Logger:  a.Logger,
		Metrics: a.Metrics,
	})

	return nil
}

func (a *App) buildCache(cfg *config.Config) (ports.SubscriptionCache, error) {
	switch cfg.Cache.Backend {
	case "redis":
		store, err := rediscache.New(rediscache.Opts{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		a.redisCache = store
		a.Logger.Info().Str("addr", cfg.Cache.Redis.Addr).Msg("redis subscription cache enabled")
		return store, nil
	default:
		return memory.NewCacheStore(clock.Real{}), nil
	}
}

func (a *App) initHTTPServer(cfg *config.Config) {
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = web.DefaultMetricsHandler()
	}

	handler := web.NewHandler(web.Deps{
		Gate:      a.gate,
		Generator: a.generator,
		Usage:     a.usage,
		Products:  a.products,
		Tokens:    auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Logger:    a.Logger,

		MetricsHandler: metricsHandler,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.Logger.Info().Str("addr", addr).Msg("http server configured")
}

// wireReload propagates hot-reloadable config fields into running services.
func (a *App) wireReload() {
	a.Holder.OnChange(func(cfg *config.Config) {
		a.gate.UpdateTTL(cfg.SubscriptionTTL())

		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	})
}

// Run starts the server and blocks until interrupted.
func (a *App) Run() error {
	if err := a.Holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable")
	}
	a.Holder.WatchSignals()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a.Holder.Stop()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	// Flush queued usage reports before dropping connections
	if a.meter != nil {
		if err := a.meter.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("usage recorder close error")
		}
	}

	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("redis close error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
