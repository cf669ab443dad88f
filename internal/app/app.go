package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/shopsim/internal/auth"
	"github.com/xenking/shopsim/internal/domain/category"
	"github.com/xenking/shopsim/internal/domain/order"
	"github.com/xenking/shopsim/internal/domain/product"
	"github.com/xenking/shopsim/internal/domain/user"
	"github.com/xenking/shopsim/internal/handler"
	"github.com/xenking/shopsim/internal/notify"
	"github.com/xenking/shopsim/internal/storage/postgres"
	"github.com/xenking/shopsim/pkg/health"
	"github.com/xenking/shopsim/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	srv, err := newServer(ctx, lg, m.TracerProvider(), m.MeterProvider(), pool, cfg)
	if err != nil {
		return err
	}
	healthSvc := srv.health
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	httpServer := &http.Server{
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
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

type server struct {
	handler http.Handler
	health  *health.Health
}

// newServer wires repositories, services and the middleware chain on top of
// an open pool. Health checks are registered but not started.
func newServer(
	ctx context.Context,
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	pool *pgxpool.Pool,
	cfg *Config,
) (*server, error) {
	healthSvc := health.New()
	healthSvc.Add(health.Check{
		Name: "postgres", Kind: health.Readiness, Timeout: 5 * time.Second,
		Func: health.PingCheck(pool),
	})
	healthSvc.Add(health.Check{
		Name: "goroutines", Kind: health.Liveness, Timeout: time.Second,
		Func: health.GoroutineCountCheck(10000),
	})

	// Repositories.
	userRepo := postgres.NewUserRepository(pool)
	categoryRepo := postgres.NewCategoryRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	notifier, err := newNotifier(ctx, lg, cfg.Notify)
	if err != nil {
		return nil, errors.Wrap(err, "create notifier")
	}

	// Domain services.
	issuer := auth.NewIssuer([]byte(cfg.JWT.Secret), cfg.JWT.Issuer, cfg.JWT.TTL)
	orderService, err := order.NewService(orderRepo, notifier, tp, mp)
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}
	h := handler.New(
		user.NewService(userRepo, issuer),
		category.NewService(categoryRepo),
		product.NewService(productRepo, categoryRepo),
		orderService,
		issuer,
	)

	gin.SetMode(gin.ReleaseMode)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Router())

	return &server{
		health: healthSvc,
		handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				ExposeHeaders:    []string{"Location", httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.Instrument("shop-api", tp, mp),
			httpmiddleware.LogRequests(),
		),
	}, nil
}

func newNotifier(ctx context.Context, lg *zap.Logger, cfg NotifyConfig) (order.Notifier, error) {
	if !cfg.Enabled {
		lg.Info("Order emails disabled, logging events only")
		return notify.LogNotifier{}, nil
	}
	client, err := notify.NewSESClient(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}
	n, err := notify.NewSESNotifier(client, cfg.Sender)
	if err != nil {
		return nil, err
	}
	lg.Info("Order emails enabled", zap.String("region", cfg.Region), zap.String("sender", cfg.Sender))
	return n, nil
}
