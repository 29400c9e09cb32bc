package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/internal/catalog"
	"github.com/xenking/kart-discounts/internal/discount"
	"github.com/xenking/kart-discounts/internal/domain/checkout"
	"github.com/xenking/kart-discounts/internal/domain/product"
	"github.com/xenking/kart-discounts/internal/handler"
	"github.com/xenking/kart-discounts/internal/storage/memory"
	"github.com/xenking/kart-discounts/internal/storage/postgres"
	"github.com/xenking/kart-discounts/pkg/health"
	"github.com/xenking/kart-discounts/pkg/httpmiddleware"
)

// storage is the product and receipt backend chosen by configuration.
type storage struct {
	products product.Repository
	receipts checkout.ReceiptStore
	pinger   health.Pinger
	close    func()
}

// openStorage uses PostgreSQL when a database URL is configured and the
// catalog's products in memory otherwise.
func openStorage(ctx context.Context, lg *zap.Logger, cfg *Config, cat *catalog.Catalog) (*storage, error) {
	if cfg.DatabaseURL == "" {
		lg.Info("Using in-memory storage", zap.Int("receipt_capacity", cfg.Receipts.Capacity))
		return &storage{
			products: memory.NewProductRepository(cat.Products()),
			receipts: memory.NewReceiptStore(cfg.Receipts.Capacity),
			close:    func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	lg.Info("Using PostgreSQL storage")
	return &storage{
		products: postgres.NewProductRepository(pool),
		receipts: postgres.NewReceiptRepository(pool),
		pinger:   pool,
		close:    pool.Close,
	}, nil
}

// apiServer is the fully wired HTTP surface.
type apiServer struct {
	handler http.Handler
	health  *health.Health
	catalog *catalog.Catalog
	close   func()
}

// newServer loads the catalog, opens storage and builds the router with the
// middleware stack. Callers must call close.
func newServer(ctx context.Context, lg *zap.Logger, tp trace.TracerProvider, mp metric.MeterProvider, cfg *Config) (_ *apiServer, rerr error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}
	for rule, missing := range cat.DanglingExclusions() {
		lg.Warn("Discount excludes unknown rules",
			zap.String("rule", rule),
			zap.Strings("missing", missing),
		)
	}

	policy, err := discount.ParsePolicy(cfg.Discounts.Policy)
	if err != nil {
		return nil, errors.Wrap(err, "discounts policy")
	}
	engine, err := cat.Engine(discount.DefaultRegistry(), discount.WithPolicy(policy))
	if err != nil {
		return nil, errors.Wrap(err, "build discount engine")
	}

	store, err := openStorage(ctx, lg, cfg, cat)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr != nil {
			store.close()
		}
	}()

	products, err := product.NewFilteredRepository(ctx, store.products)
	if err != nil {
		return nil, errors.Wrap(err, "build product filter")
	}

	svc, err := checkout.NewService(products, engine,
		checkout.WithReceiptStore(store.receipts),
		checkout.WithConcurrency(cfg.Discounts.Concurrency),
		checkout.WithTracerProvider(tp),
		checkout.WithMeterProvider(mp),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout service")
	}

	healthSvc := health.New()
	if store.pinger != nil {
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(store.pinger))
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	var guards []func(http.Handler) http.Handler
	if len(cfg.Auth.APIKeyHashes) > 0 {
		auth, err := httpmiddleware.APIKey(httpmiddleware.APIKeyConfig{
			Pepper: []byte(cfg.Auth.APIKeyPepper),
			Hashes: cfg.Auth.APIKeyHashes,
		})
		if err != nil {
			return nil, errors.Wrap(err, "api key auth")
		}
		guards = append(guards, auth)
		lg.Info("API key authentication enabled", zap.Int("keys", len(cfg.Auth.APIKeyHashes)))
	}

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	handler.NewHandler(handler.HandlerConfig{}, products, svc, cat.Rules()).Routes(router, guards...)

	routeFinder := httpmiddleware.MakeRouteFinder(router)
	h := httpmiddleware.Wrap(router,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.APIKeyHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}, lg),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
			Skip:   isProbe,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Instrument("kart-api", routeFinder, tp, mp),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	)

	return &apiServer{
		handler: h,
		health:  healthSvc,
		catalog: cat,
		close:   store.close,
	}, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("catalog", cfg.CatalogPath),
		zap.String("policy", cfg.Discounts.Policy),
	)

	srv, err := newServer(ctx, lg, m.TracerProvider(), m.MeterProvider(), cfg)
	if err != nil {
		return err
	}
	defer srv.close()

	healthSvc := srv.health
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           srv.handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening",
		zap.String("addr", cfg.Addr),
		zap.Int("products", len(srv.catalog.Products())),
		zap.Int("rules", len(srv.catalog.Rules())),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}
