package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "lexdesk/docs"
	"lexdesk/internal/caching"
	"lexdesk/internal/common"
	"lexdesk/internal/config"
	"lexdesk/internal/handlers"
	"lexdesk/internal/jobs"
	"lexdesk/internal/jobs/background"
	"lexdesk/internal/middleware"
	"lexdesk/internal/repositories"
	"lexdesk/internal/services"
	"lexdesk/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database connection
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.ClosePool(pool)

	if cfg.RunMigrations {
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	location, err := time.LoadLocation(cfg.ScheduleTZ)
	if err != nil {
		log.Fatalf("Invalid SCHEDULE_TZ %q: %v", cfg.ScheduleTZ, err)
	}

	clock := services.Clock(services.SystemClock)

	// Create cache service
	cacheSvc := caching.NewRedisCacheService(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	// Receipts live in MinIO when it is configured
	var minioSvc services.MinioService
	var receiptSvc services.ReceiptService
	if cfg.MinioEnabled() {
		minioSvc, err = services.NewMinioService(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("Failed to initialize MinIO service: %v", err)
		}
		if err := minioSvc.EnsureBucketExists(ctx, cfg.ReceiptBucket); err != nil {
			log.Printf("WARN: receipt bucket %s unavailable: %v", cfg.ReceiptBucket, err)
		}
		receiptSvc = services.NewReceiptService(minioSvc, cfg.ReceiptBucket, clock)
	} else {
		log.Printf("WARN: MinIO credentials not set, receipts disabled")
	}

	if !cfg.RazorpayEnabled() {
		log.Printf("WARN: Razorpay credentials not set, checkout calls will be rejected by the gateway")
	}

	// Create repositories
	subscriptionRepo := repositories.NewSubscriptionRepo(pool)
	paymentRepo := repositories.NewPaymentRepo(pool)

	// Create services
	plans := services.NewPlanCatalog(cfg.TrialDays)
	subscriptionSvc := services.NewSubscriptionService(subscriptionRepo, plans, cacheSvc, clock)
	paymentSvc := services.NewPaymentService(paymentRepo, clock)
	razorpaySvc := services.NewRazorpayService(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret, cfg.RazorpayBaseURL)
	checkoutSvc := services.NewCheckoutService(razorpaySvc, plans, paymentSvc, subscriptionSvc, receiptSvc, clock)

	// Background jobs
	subscriptionJobs := jobs.NewSubscriptionJobs(subscriptionSvc, cacheSvc, clock)
	scheduler, err := background.NewJobScheduler(subscriptionJobs, background.Schedule{
		SweepCron:    cfg.ExpirySweepCron,
		ReminderCron: cfg.ReminderCron,
		Location:     location,
	})
	if err != nil {
		log.Fatalf("Failed to create job scheduler: %v", err)
	}
	scheduler.Start()

	// Authentication
	jwtAuth, err := middleware.NewJWTAuth(middleware.JWTConfig{Secret: cfg.JWTSecret, JWKSURL: cfg.JWKSURL})
	if err != nil {
		log.Fatalf("Failed to configure authentication: %v", err)
	}
	defer jwtAuth.Close()

	webhookLimiter := middleware.NewRateLimiter(cfg.WebhookRateLimit, cfg.WebhookBurst)
	go webhookLimiter.RunJanitor(ctx, time.Minute)

	healthChecks := []handlers.HealthCheck{
		{Name: "database", Critical: true, Check: pool.Ping},
		{Name: "redis", Check: cacheSvc.Ping},
	}
	if minioSvc != nil {
		healthChecks = append(healthChecks, storageCheck(minioSvc, cfg.ReceiptBucket))
	}

	versions := middleware.NewVersionMiddleware()
	if sunset, ok := cfg.V1Sunset(); ok {
		versions.Deprecate("v1", "Billing API v1 is deprecated", sunset)
		log.Printf("WARN: API v1 deprecated, sunset %s", sunset.Format("2006-01-02"))
	}

	router := &handlers.Router{
		Health:         handlers.NewHealthHandlers(version, healthChecks...),
		Subscriptions:  handlers.NewSubscriptionHandlers(subscriptionSvc),
		Checkout:       handlers.NewCheckoutHandlers(checkoutSvc, plans),
		Payments:       handlers.NewPaymentHandlers(paymentSvc, receiptSvc),
		Admin:          handlers.NewAdminHandlers(subscriptionSvc, paymentSvc, checkoutSvc, plans),
		Jobs:           handlers.NewJobHandlers(scheduler),
		Webhooks:       handlers.NewWebhookHandlers(razorpaySvc, checkoutSvc, cacheSvc),
		Versions:       versions,
		Auth:           jwtAuth.Middleware(),
		WebhookLimiter: webhookLimiter.Middleware(),
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = common.NewRequestValidator()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	router.Register(e)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	go func() {
		log.Printf("lexdesk billing v%s starting on port %d", version, cfg.Port)
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: HTTP shutdown: %v", err)
	}
	if err := scheduler.Stop(); err != nil {
		log.Printf("ERROR: scheduler shutdown: %v", err)
	}
}

type bucketChecker interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

func storageCheck(store bucketChecker, bucket string) handlers.HealthCheck {
	return handlers.HealthCheck{
		Name: "storage",
		Check: func(ctx context.Context) error {
			found, err := store.BucketExists(ctx, bucket)
			if err == nil && !found {
				err = fmt.Errorf("bucket %s missing", bucket)
			}
			return err
		},
	}
}
