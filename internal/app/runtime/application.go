// Package runtime wires configuration, storage, the ledger application and
// the HTTP server into a runnable process.
package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	app "github.com/R3E-Network/token_ledger/internal/app"
	"github.com/R3E-Network/token_ledger/internal/app/httpapi"
	"github.com/R3E-Network/token_ledger/internal/app/storage/postgres"
	ledgerredis "github.com/R3E-Network/token_ledger/internal/app/storage/redis"
	"github.com/R3E-Network/token_ledger/internal/config"
	"github.com/R3E-Network/token_ledger/internal/middleware"
	"github.com/R3E-Network/token_ledger/internal/platform/migrations"
	"github.com/R3E-Network/token_ledger/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	db         *sql.DB
}

// NewApplication constructs the process from cfg. Storage is PostgreSQL when
// a database URL is configured and in-memory otherwise.
func NewApplication(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.New(cfg.Logging.Logger())
	}

	ledgerCfg, err := cfg.Ledger.LedgerServiceConfig()
	if err != nil {
		return nil, fmt.Errorf("ledger config: %w", err)
	}

	stores := app.Stores{}
	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("configure database: %w", err)
	}
	if db != nil {
		if cfg.Database.Migrate {
			if err := migrations.Up(db); err != nil {
				db.Close()
				return nil, fmt.Errorf("migrate database: %w", err)
			}
			log.Info("database migrations applied")
		}
		stores.Ledger = postgres.New(db)
	}

	var sink *ledgerredis.StreamSink
	if cfg.Redis.Addr != "" {
		client := ledgerredis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		sink = ledgerredis.NewStreamSink(client, cfg.Redis.Stream, cfg.Redis.MaxLen, cfg.Redis.Buffer, log.Named("stream"))
		stores.Sink = sink
	} else {
		log.Warn("REDIS_ADDR not set; transaction stream disabled")
	}

	application, err := app.New(ctx, stores, app.Options{
		Ledger:         ledgerCfg,
		RewardSchedule: cfg.Ledger.RewardSchedule,
	}, log)
	if err != nil {
		closeDB(db, log)
		return nil, err
	}

	handler, err := buildHandler(cfg, application, log)
	if err != nil {
		closeDB(db, log)
		return nil, err
	}

	return &Application{
		cfg: cfg,
		log: log,
		app: application,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           handler,
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		},
		db: db,
	}, nil
}

// buildHandler assembles the middleware chain around the API router:
// logging, CORS, caller resolution, then rate limiting.
func buildHandler(cfg *config.Config, application *app.Application, log *logger.Logger) (http.Handler, error) {
	publicKey, err := cfg.Auth.PublicKey()
	if err != nil {
		return nil, err
	}
	if publicKey == nil && !cfg.Auth.DevMode {
		log.Warn("no service public key configured; all requests are anonymous")
	}
	if cfg.Auth.DevMode {
		log.Warn("AUTH_DEV_MODE enabled; X-Caller header is trusted")
	}

	router := httpapi.NewHandler(application, log.Named("httpapi"))

	var handler http.Handler = router
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log.Named("ratelimit"))
		if err := application.Attach(limiter); err != nil {
			return nil, err
		}
		handler = limiter.Handler(handler)
	}
	auth := middleware.NewCallerAuthMiddleware(middleware.CallerAuthConfig{
		PublicKey:       publicKey,
		Logger:          log,
		AllowedServices: cfg.Auth.AllowedServices,
		DevMode:         cfg.Auth.DevMode,
		SkipPaths:       []string{"/health", "/metrics"},
	})
	handler = auth.Handler(handler)
	if len(cfg.Server.AllowedOrigins) > 0 {
		handler = middleware.NewCORSMiddleware(cfg.Server.AllowedOrigins).Handler(handler)
	}
	return middleware.LoggingMiddleware(log)(handler), nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts background services and the HTTP server and blocks until ctx
// is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown drains the HTTP server, stops background services and closes the
// database.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop services: %w", err))
	}
	closeDB(a.db, a.log)
	return errors.Join(errs...)
}

// openDatabase returns nil when no URL is configured.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func closeDB(db *sql.DB, log *logger.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.WithError(err).Warn("error closing database connection")
	}
}
