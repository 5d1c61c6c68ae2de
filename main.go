package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"profitpilot/config"
	"profitpilot/cron"
	"profitpilot/database"
	onboardingRepo "profitpilot/database/repository/onboarding"
	"profitpilot/handlers"
	"profitpilot/middleware"
	"profitpilot/routes"
	"profitpilot/services/backend"
	"profitpilot/services/formstore"
	"profitpilot/services/tasks"
	"profitpilot/services/wizard"
	"profitpilot/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// buildOperations selects the checkout provider and wraps reference lookups in the shared cache.
func buildOperations(logger *zap.Logger) backend.Operations {
	cfg := config.AppConfig
	api := backend.NewClient(cfg.BackendAPIURL, cfg.BackendAPITimeout)

	var checkout backend.CheckoutCreator = api
	if cfg.CheckoutProvider == "stripe" {
		if cfg.StripeKey == "" {
			logger.Fatal("main: CHECKOUT_PROVIDER is stripe but STRIPE_KEY is empty")
		}
		checkout = backend.NewStripeCheckout(cfg.StripeKey, nil, cfg.AppBaseURL)
	}

	return backend.Operations{
		Checkout:  checkout,
		Accounts:  api,
		Reference: backend.NewCachedReferenceSource(api, utils.GetCacheClient(), cfg.ReferenceCacheTTL, logger),
		Profile:   api,
	}
}

func main() {
	config.LoadConfig()
	utils.InitializeLogger()
	logger := utils.GetLogger()
	defer logger.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	database.InitDB()
	utils.InitRedis()

	// repositories.
	recordRepo := onboardingRepo.NewMongoOnboardingRepo(database.Database(), logger)

	// completion queue.
	worker := cron.InitCompletionWorker(ctx, recordRepo)
	queue := asynq.NewClient(cron.RedisOpt())
	defer queue.Close()
	sink := tasks.NewCompletionSink(queue, logger.Named("completion"))

	ops := buildOperations(logger)
	cfg := config.AppConfig
	wizardConfig := wizard.Config{
		PackageSelectionURL: cfg.PackageSelectionURL,
		DashboardURL:        cfg.DashboardURL,
		AmazonConnectURL:    cfg.AmazonConnectURL,
		ReferenceTimeout:    cfg.BackendAPITimeout,
	}

	registry := wizard.NewRegistry(cfg.ControllerIdleTTL, logger.Named("registry"))
	go registry.Run(ctx, time.Minute)

	onboardingHandler := handlers.NewOnboardingHandler(registry, func(sessionID string) *wizard.Controller {
		return wizard.NewController(wizard.Deps{
			Store:  formstore.New(utils.GetSessionClient(), sessionID, cfg.SessionTTL, logger),
			Ops:    ops,
			Sink:   sink,
			Config: wizardConfig,
			Logger: logger.Named("wizard"),
		})
	}, cfg.SessionTTL)

	utils.StartHealthMonitor(ctx, time.Minute, map[string]*redis.Client{
		"session": utils.GetSessionClient(),
		"cache":   utils.GetCacheClient(),
	}, database.MongoClient)

	// Create the Gin router.
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))

	routes.RegisterRoutes(router, handlers.NewHandlerBundle(onboardingHandler, handlers.HealthHandler))

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	stop()
	worker.Shutdown()
	database.CloseDB(shutdownCtx)

	logger.Sugar().Info("main: server stopped gracefully")
}
