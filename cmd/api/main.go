package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desafio-dunas/registration-api/internal/config"
	"github.com/desafio-dunas/registration-api/internal/handlers"
	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/middleware"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/desafio-dunas/registration-api/internal/observability"
	"github.com/desafio-dunas/registration-api/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	_ "github.com/desafio-dunas/registration-api/docs"
)

// @title           Rally Registration API
// @version         1.0
// @description     Registration for the rally event. A registration is held until its email is verified with a 6-digit code, then committed with a unique sequence number and a team derived from its group.

// @host      localhost:8080
// @BasePath  /v1

// @securityDefinitions.apikey AdminKey
// @in header
// @name X-Admin-Key

// @tag.name Registrations
// @tag.description Email verification and committed registrations

// @tag.name Teams
// @tag.description Team rosters

// @tag.name Groups
// @tag.description Groups a registration can join

// @tag.name Admin
// @tag.description Administrative operations

// @tag.name Health
// @tag.description Health check operations

func main() {
	// Initialize logger first
	if err := logging.InitLogger(); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = logging.Logger.Sync() }()
	defer zap.RedirectStdLog(logging.Logger.Unwrap())()

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logging.Logger.Fatal("failed to load config", zap.Error(err))
	}

	// Initialize observability
	if err := observability.InitTracer(); err != nil {
		logging.Logger.Warn("tracing unavailable, continuing without it", zap.Error(err))
	}

	// Initialize database connections
	config.InitMongoDB()
	config.InitRedis()

	cfg := config.AppConfig
	logger := observability.Logger()
	db := config.MongoDB

	registrations := db.Collection(cfg.RegistrationCollection)
	groups := db.Collection(cfg.TeamGroupCollection)
	pending := db.Collection(cfg.PendingVerificationCollection)
	counters := db.Collection(cfg.CounterCollection)

	// Storage components
	allocator := services.NewSequenceAllocator(counters, logger.Named("allocator"))
	seedCounters(allocator, registrations, groups)

	registrationStore := services.NewRegistrationStore(registrations, logger.Named("registrations"))
	pendingStore := services.NewPendingVerificationStore(pending)
	guard := services.NewUniquenessGuard(registrations)
	resolver := services.NewTeamResolver(groups, logger.Named("resolver"))
	groupService := services.NewTeamGroupService(groups, allocator, config.Redis, cfg.GroupCacheTTL, logger.Named("groups"))

	// Notifications
	var notifier services.Notifier = services.NewLogNotifier(logger.Named("notifier"))
	if cfg.SMTPEnabled {
		notifier = services.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	}
	queue := services.NewNotificationQueue(notifier, cfg.NotificationWorkers, cfg.NotificationQueueSize,
		cfg.NotificationTimeout, logger.Named("notifications"))

	// Verification core
	issuer := services.NewCodeIssuer(pendingStore, queue, services.IssuerConfig{
		EventName: cfg.EventName,
		CodeTTL:   cfg.VerificationCodeTTL,
		HashCost:  cfg.VerificationCodeHashCost,
	}, logger.Named("issuer"))
	verifier := services.NewCodeVerifier(pendingStore, guard, resolver, allocator, registrationStore, queue,
		services.VerifierConfig{
			EventName:   cfg.EventName,
			MaxAttempts: cfg.VerificationMaxAttempts,
			CommitLease: cfg.VerificationCommitLease,
		}, logger.Named("verifier"))

	sweeper := services.NewPendingSweeper(pendingStore, cfg.PendingSweepInterval, logger.Named("sweeper"))
	sweeper.Start()

	issueLimiter := services.NewIssueRateLimiter(config.Redis, cfg.IssueRateLimit, cfg.IssueRateWindow, logger.Named("ratelimit"))
	verifyLimiter := services.NewRateLimiter(cfg.VerifyRateBurst, cfg.VerifyRateRefill, logger.Named("ratelimit"))

	// Handlers
	registrationHandlers := handlers.NewRegistrationHandlers(logger, issuer, verifier)
	queryHandlers := handlers.NewQueryHandlers(logger, registrationStore)
	groupHandlers := handlers.NewGroupHandlers(logger, groupService)
	adminHandlers := handlers.NewAdminHandlers(logger, registrationStore)
	healthHandlers := handlers.NewHealthHandlers(map[string]handlers.PingFunc{
		"mongodb": func(ctx context.Context) error { return db.Client().Ping(ctx, nil) },
		"redis":   func(ctx context.Context) error { return config.Redis.Ping(ctx).Err() },
		"notifications": func(ctx context.Context) error {
			if !queue.IsHealthy() {
				stats := queue.GetStats()
				return fmt.Errorf("notification queue backlog: %d queued, %d processed", stats.QueueSize, stats.JobsProcessed)
			}
			return nil
		},
	})

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router with middleware
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.RequestTracker(),
		middleware.RequestTiming(),
		cors.New(corsConfig()),
	)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/v1")
	{
		v1.GET("/health", healthHandlers.HealthCheck)

		v1.POST("/registrations/verification-code", middleware.RateLimitByIP(issueLimiter), registrationHandlers.IssueCode)
		v1.POST("/registrations/verify", middleware.RateLimit(verifyLimiter, "verify_code"), registrationHandlers.VerifyCode)

		v1.GET("/registrations", queryHandlers.ListRegistrations)
		v1.GET("/registrations/stats", queryHandlers.GetStats)
		v1.GET("/registrations/:number", queryHandlers.GetRegistration)
		v1.GET("/teams/:team_number", queryHandlers.GetTeam)
		v1.GET("/groups", groupHandlers.ListGroups)
		v1.GET("/groups/:team_number", groupHandlers.GetGroup)

		admin := v1.Group("/admin", middleware.RequireAdminKey(cfg.AdminAPIKey))
		{
			admin.POST("/groups", groupHandlers.CreateGroup)
			admin.PUT("/groups/:team_number", groupHandlers.UpdateGroup)
			admin.DELETE("/groups/:team_number", groupHandlers.DeactivateGroup)
			admin.DELETE("/registrations/:number", adminHandlers.DeactivateRegistration)
		}
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Create server with timeouts
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("starting server",
			zap.Int("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.String("event", cfg.EventName),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	sweeper.Stop()
	if err := queue.Stop(ctx); err != nil {
		logger.Warn("notification queue did not drain", zap.Error(err))
	}
	if err := config.Redis.Close(); err != nil {
		logger.Warn("failed to close redis", zap.Error(err))
	}
	if err := db.Client().Disconnect(ctx); err != nil {
		logger.Warn("failed to disconnect mongodb", zap.Error(err))
	}
	observability.ShutdownTracer(ctx)

	logger.Info("server exited gracefully")
}

// seedCounters raises both sequences to the highest number already stored, so
// a restored or hand-edited database never hands out a number twice.
func seedCounters(allocator *services.SequenceAllocator, registrations, groups *mongo.Collection) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	seeds := []struct {
		key    string
		source *mongo.Collection
		field  string
	}{
		{models.RegistrationNumberCounter, registrations, "number"},
		{models.TeamNumberCounter, groups, "team_number"},
	}
	for _, s := range seeds {
		if _, err := allocator.Seed(ctx, s.key, s.source, s.field); err != nil {
			logging.Logger.Fatal("failed to seed counter", zap.String("counter", s.key), zap.Error(err))
		}
	}
}

func corsConfig() cors.Config {
	c := cors.DefaultConfig()
	c.AllowAllOrigins = true
	c.AllowHeaders = append(c.AllowHeaders, middleware.AdminKeyHeader, middleware.RequestIDHeader)
	c.ExposeHeaders = []string{middleware.RequestIDHeader, middleware.TraceIDHeader, "Retry-After"}
	return c
}
