// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/DONALDBZR/Crawly/internal/config"
	"github.com/DONALDBZR/Crawly/internal/engine"
	"github.com/DONALDBZR/Crawly/internal/engine/htmlpage"
	"github.com/DONALDBZR/Crawly/internal/engine/productapi"
	"github.com/DONALDBZR/Crawly/internal/engine/rendered"
	"github.com/DONALDBZR/Crawly/internal/sanitize"
	"github.com/DONALDBZR/Crawly/internal/store"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config     *config.Config
	Logger     *zerolog.Logger
	HTTPClient *http.Client

	storeMu sync.Mutex
	store   *store.Factory

	startTime time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Initializes the HTTP client with proper timeouts
//   - Registers every built-in scraping strategy
//
// The database pool is not opened here; see EnsureStore.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := newLogger(cfg)
	log.Logger = logger

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DisableKeepAlives:   false,
		},
	}
	logger.Debug().
		Dur("timeout", cfg.HTTPTimeout).
		Msg("HTTP client initialized")

	registerStrategies(cfg, httpClient)
	logger.Debug().Strs("strategies", engine.Names()).Msg("Strategies registered")

	app := &Application{
		Config:     cfg,
		Logger:     &logger,
		HTTPClient: httpClient,
		startTime:  time.Now(),
	}

	logger.Debug().Msg("Application initialized")
	return app, nil
}

// newLogger builds the process logger. Logs always go to stderr so stdout
// stays reserved for scraped records.
func newLogger(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.LogLevel {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	if cfg.Quiet && level < zerolog.ErrorLevel {
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if cfg.JSONLog {
		w = os.Stderr
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// registerStrategies binds every built-in strategy to the engine registry.
// Each factory captures the shared HTTP client and config, so every run gets
// a fresh strategy instance wired the same way.
func registerStrategies(cfg *config.Config, client *http.Client) {
	engine.Register(htmlpage.Identifier, func() (engine.Strategy, error) {
		return htmlpage.New(htmlpage.Options{
			Client:         client,
			UserAgent:      cfg.UserAgent,
			RespectRobots:  cfg.RespectRobots,
			RunScripts:     cfg.RunScripts,
			UseReadability: cfg.UseReadability,
		})
	})

	engine.Register(productapi.Identifier, func() (engine.Strategy, error) {
		return productapi.New(productapi.Options{
			Client:    client,
			UserAgent: cfg.UserAgent,
		}), nil
	})

	// The rendered strategy drives its own browser; it only borrows the
	// user agent and selector handling from the shared config.
	engine.Register(rendered.Identifier, func() (engine.Strategy, error) {
		return rendered.New(rendered.Options{
			ChromePath: cfg.Browser.ChromePath,
			Headless:   cfg.Browser.Headless,
			JSWait:     cfg.Browser.JSWait,
			UserAgent:  cfg.UserAgent,
		})
	})
}

// EnsureStore lazily opens the database pool the first time persistence is
// requested. Commands that never store records don't touch the database.
// Callers should provide a context with an appropriate timeout.
func (a *Application) EnsureStore(ctx context.Context) (*store.Factory, error) {
	if a == nil {
		return nil, fmt.Errorf("application is nil")
	}

	a.storeMu.Lock()
	defer a.storeMu.Unlock()

	if a.store != nil {
		return a.store, nil
	}

	a.Logger.Debug().
		Str("driver", a.Config.DB.Driver).
		Int("pool_size", a.Config.DB.PoolSize).
		Msg("Opening store on demand")

	factory, err := store.NewFactory(ctx, store.Config{
		Driver:         a.Config.DB.Driver,
		DSN:            a.Config.DB.DSN,
		PoolSize:       a.Config.DB.PoolSize,
		AcquireTimeout: a.Config.DB.AcquireTimeout,
		ResetSession:   a.Config.DB.ResetSession,
	}, sanitize.NewStrict())
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to open store")
		return nil, err
	}

	a.store = factory
	a.Logger.Info().Int("pool_size", factory.Pool().Cap()).Msg("Store initialized")
	return factory, nil
}

// Close gracefully shuts down the application and all its resources.
//
// It closes the database pool if one was opened and releases idle HTTP
// connections. A context with a timeout should be provided to prevent
// indefinite blocking. Errors during shutdown are logged but do not prevent
// other shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	a.storeMu.Lock()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing store")
		}
		a.store = nil
	}
	a.storeMu.Unlock()

	if a.HTTPClient != nil {
		a.HTTPClient.CloseIdleConnections()
	}

	a.Logger.Debug().Dur("uptime", time.Since(a.startTime)).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
