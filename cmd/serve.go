package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-grading/app/auth"
	"github.com/vibast-solutions/ms-go-grading/app/cache"
	"github.com/vibast-solutions/ms-go-grading/app/controller"
	"github.com/vibast-solutions/ms-go-grading/app/factory"
	gradinggrpc "github.com/vibast-solutions/ms-go-grading/app/grpc"
	"github.com/vibast-solutions/ms-go-grading/app/lock"
	"github.com/vibast-solutions/ms-go-grading/app/provider"
	"github.com/vibast-solutions/ms-go-grading/app/repository"
	"github.com/vibast-solutions/ms-go-grading/app/service"
	"github.com/vibast-solutions/ms-go-grading/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

const readinessInterval = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start the HTTP (Echo) API and the gRPC health server for the grading service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runtime bundles what every command needs once configuration, storage and
// the processor client are up.
type runtime struct {
	cfg               *config.Config
	submissionService *service.SubmissionService
	ready             gradinggrpc.ReadinessCheck
	cleanup           func()
}

func runServe(_ *cobra.Command, _ []string) {
	rt := mustCreateRuntime()
	defer rt.cleanup()
	cfg := rt.cfg

	tokens := auth.NewTokenManager(cfg.Auth)
	authMiddleware := auth.NewEchoMiddleware(tokens)

	e := setupHTTPServer(
		controller.NewSubmissionController(rt.submissionService),
		controller.NewPaymentController(rt.submissionService),
		controller.NewAdminController(rt.submissionService),
		authMiddleware,
	)
	grpcSrv, healthSrv, lis := setupGRPCServer(cfg)

	readinessCtx, stopReadiness := context.WithCancel(context.Background())
	defer stopReadiness()
	go gradinggrpc.WatchReadiness(readinessCtx, healthSrv, cfg.App.ServiceName, readinessInterval, rt.ready)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	stopReadiness()
	healthSrv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	submissionController *controller.SubmissionController,
	paymentController *controller.PaymentController,
	adminController *controller.AdminController,
	authMiddleware *auth.EchoMiddleware,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(requestID())

	e.GET("/health", submissionController.Health)

	// Stripe authenticates itself through the signature header.
	e.POST("/webhooks/stripe", paymentController.StripeWebhook)

	requireAuth := authMiddleware.RequireAuth()
	requireAdmin := authMiddleware.RequireAdmin()

	submissions := e.Group("/submissions", requireAuth)
	submissions.POST("", submissionController.CreateSubmission)
	submissions.GET("", submissionController.ListSubmissions)
	submissions.GET("/dashboard", submissionController.Dashboard)
	submissions.GET("/:id", submissionController.GetSubmission)
	submissions.PATCH("/:id", submissionController.EditSubmission)
	submissions.GET("/:id/payments", submissionController.ListPayments)
	submissions.PATCH("/:id/status", submissionController.UpdateStatus, requireAdmin)

	payments := e.Group("/payments", requireAuth)
	payments.POST("/pay-now", paymentController.PayNow)
	payments.POST("/confirm", paymentController.ConfirmPayNow)
	payments.POST("/pay-later", paymentController.PayLater)
	payments.POST("/confirm-method", paymentController.ConfirmPaymentMethod)

	admin := e.Group("/admin", requireAuth, requireAdmin)
	admin.GET("/submissions", adminController.ListSubmissions)
	admin.PATCH("/submissions/:id/status", submissionController.UpdateStatus)
	admin.GET("/analytics", adminController.Analytics)

	return e
}

// requestID echoes the caller's X-Request-ID or mints one, and carries it on
// the request context for service-level logging.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if id == "" {
				id = uuid.NewString()
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, id)

			req := ctx.Request()
			ctx.SetRequest(req.WithContext(factory.ContextWithRequestID(req.Context(), id)))
			return next(ctx)
		}
	}
}

func setupGRPCServer(cfg *config.Config) (*grpc.Server, *health.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv, healthSrv := gradinggrpc.NewServer(cfg.App.ServiceName)
	return grpcSrv, healthSrv, lis
}

func mustCreateRuntime() *runtime {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db := mustOpenDatabase(cfg)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = db.Close()
			logrus.WithError(err).Fatal("Failed to ping redis")
		}
	} else {
		logrus.Warn("REDIS_ADDR not set, locks and analytics cache are disabled")
	}

	stripeProvider := provider.NewStripeProvider(provider.StripeConfig{
		SecretKey:                 cfg.Stripe.SecretKey,
		WebhookSecret:             cfg.Stripe.WebhookSecret,
		APIBaseURL:                cfg.Stripe.APIBaseURL,
		SignatureToleranceSeconds: cfg.Stripe.SignatureToleranceSeconds,
		HTTPTimeout:               cfg.Stripe.HTTPTimeout,
		Logger:                    factory.NewModuleLogger("stripe-provider"),
	})

	submissionService := service.NewSubmissionService(
		repository.NewSubmissionRepository(db),
		repository.NewPaymentRepository(db),
		repository.NewSubmissionEventRepository(db),
		repository.NewWebhookEventRepository(db),
		repository.NewCustomerProfileRepository(db),
		repository.NewTxManager(db),
		stripeProvider,
		lock.NewRedisLocker(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.LockTTL),
		cache.NewRedisCache(redisClient, cfg.Redis.KeyPrefix),
		cfg.Grading,
	)

	ready := func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if redisClient != nil {
			return redisClient.Ping(ctx).Err()
		}
		return nil
	}

	cleanup := func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close redis")
			}
		}
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return &runtime{cfg: cfg, submissionService: submissionService, ready: ready, cleanup: cleanup}
}

func mustOpenDatabase(cfg *config.Config) *sql.DB {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}
