package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	balanceapp "github.com/rentledger/backend/internal/application/balance"
	billingapp "github.com/rentledger/backend/internal/application/billing"
	paymentapp "github.com/rentledger/backend/internal/application/payment"
	providerapp "github.com/rentledger/backend/internal/application/provider"
	tenancyapp "github.com/rentledger/backend/internal/application/tenancy"
	domainpayment "github.com/rentledger/backend/internal/domain/payment"
	"github.com/rentledger/backend/internal/infrastructure/auth"
	"github.com/rentledger/backend/internal/infrastructure/cache"
	"github.com/rentledger/backend/internal/infrastructure/config"
	"github.com/rentledger/backend/internal/infrastructure/event"
	"github.com/rentledger/backend/internal/infrastructure/logger"
	"github.com/rentledger/backend/internal/infrastructure/persistence"
	"github.com/rentledger/backend/internal/infrastructure/scheduler"
	"github.com/rentledger/backend/internal/infrastructure/storage"
	"github.com/rentledger/backend/internal/interfaces/http/handler"
	"github.com/rentledger/backend/internal/interfaces/http/middleware"
	"github.com/rentledger/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting rent ledger backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database connection with a zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Repositories
	stayRepo := persistence.NewGormStayRepository(db.DB)
	chargeRepo := persistence.NewGormChargeRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	receiptRepo := persistence.NewGormReceiptRepository(db.DB)
	providerRepo := persistence.NewGormUtilityProviderRepository(db.DB)
	companyRepo := persistence.NewGormManagementCompanyRepository(db.DB)
	txManager := persistence.NewGormTransactionManager(db.DB)

	// Receipt intake idempotency store: Redis when reachable, in-memory
	// fallback otherwise
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Event bus
	eventBus := event.NewInMemoryEventBus(log)

	chargePaidHandler := event.NewIdempotentHandler(
		billingapp.NewChargePaidHandler(billingapp.NoopTenantNotifier{}, log), idempotencyStore, log)
	eventBus.Subscribe(chargePaidHandler)

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Application services
	allocator := domainpayment.NewAllocationService()
	stayService := tenancyapp.NewStayService(stayRepo, eventBus, log)
	billingService := billingapp.NewBillingService(chargeRepo, paymentRepo, stayRepo,
		allocator, txManager, eventBus, log)
	paymentService := paymentapp.NewPaymentService(paymentRepo, receiptRepo, chargeRepo,
		stayRepo, allocator, txManager, idempotencyStore, eventBus, log)
	balanceService := balanceapp.NewBalanceService(chargeRepo, paymentRepo, stayRepo, log)
	providerService := providerapp.NewProviderService(providerRepo, companyRepo, log)

	// Background billing cycle
	if cfg.Billing.CycleEnabled {
		cycleExecutor := scheduler.NewBillingCycleExecutor(billingService, log)
		cycleScheduler := scheduler.NewScheduler(scheduler.DefaultConfig(), cycleExecutor, log)
		if err := cycleScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start billing scheduler", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := cycleScheduler.Stop(ctx); err != nil {
				log.Warn("Billing scheduler shutdown incomplete", zap.Error(err))
			}
		}()

		triggerCfg := scheduler.DefaultBillingCycleTriggerConfig()
		triggerCfg.RunDay = cfg.Billing.CycleRunDay
		triggerCfg.RunHour = cfg.Billing.CycleRunHour
		cycleTrigger := scheduler.NewBillingCycleTrigger(triggerCfg, cycleScheduler, log)
		if err := cycleTrigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start billing cycle trigger", zap.Error(err))
		}
		defer cycleTrigger.Stop()
	}

	// Token validation; issuance happens outside this service
	tokenValidator := auth.NewTokenValidator(&cfg.JWT)

	// HTTP handlers
	stayHandler := handler.NewStayHandler(stayService)
	chargeHandler := handler.NewChargeHandler(billingService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	// Receipt image storage: S3-compatible backend when configured,
	// stub URLs otherwise
	var receiptStorage paymentapp.ReceiptFileStorage
	if cfg.Storage.Enabled {
		s3Storage, err := storage.NewS3ReceiptStorage(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize receipt storage", zap.Error(err))
		}
		if err := s3Storage.EnsureBucket(context.Background()); err != nil {
			log.Fatal("Failed to ensure receipt bucket", zap.Error(err))
		}
		receiptStorage = s3Storage
	} else {
		receiptStorage = storage.NewStubReceiptStorage()
	}
	receiptFileService := paymentapp.NewReceiptFileService(receiptRepo, receiptStorage,
		paymentapp.DefaultReceiptFileServiceConfig(), log)

	receiptHandler := handler.NewReceiptHandler(paymentService, receiptFileService)
	balanceHandler := handler.NewBalanceHandler(balanceService)
	providerHandler := handler.NewProviderHandler(providerService)
	healthHandler := handler.NewHealthHandler(db.DB)

	// Gin engine and middleware
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health endpoints stay outside authentication
	engine.GET("/health", healthHandler.Health)
	engine.GET("/ping", healthHandler.Ping)

	// API routes; everything under /api/v1 requires a valid admin token
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.JWTAuth(tokenValidator))

	stayRoutes := router.NewDomainGroup("stays", "/stays")
	stayRoutes.POST("", stayHandler.Create)
	stayRoutes.GET("", stayHandler.List)
	stayRoutes.GET("/:id", stayHandler.Get)
	stayRoutes.PUT("/:id/rent-terms", stayHandler.UpdateRentTerms)
	stayRoutes.POST("/:id/occupants", stayHandler.AddOccupant)
	stayRoutes.DELETE("/:id/occupants/:occupantID", stayHandler.RemoveOccupant)
	stayRoutes.POST("/:id/archive", stayHandler.Archive)
	stayRoutes.GET("/:id/charges", chargeHandler.ListByStay)
	stayRoutes.GET("/:id/payments", paymentHandler.ListByStay)
	stayRoutes.GET("/:id/receipts", receiptHandler.ListByStay)
	stayRoutes.GET("/:id/balance", balanceHandler.GetByStay)

	chargeRoutes := router.NewDomainGroup("charges", "/charges")
	chargeRoutes.POST("/rent", chargeHandler.EnsureRentCharge)
	chargeRoutes.POST("/utility", chargeHandler.EnsureUtilityCharge)
	chargeRoutes.GET("/:id", chargeHandler.Get)
	chargeRoutes.POST("/:id/mark-paid", chargeHandler.MarkPaid)

	billingRoutes := router.NewDomainGroup("billing", "/billing")
	billingRoutes.POST("/cycle", chargeHandler.RunBillingCycle)
	billingRoutes.POST("/recalculate", chargeHandler.RecalculateRent)

	paymentRoutes := router.NewDomainGroup("payments", "/payments")
	paymentRoutes.POST("", paymentHandler.Record)
	paymentRoutes.GET("/pending", paymentHandler.ListPending)
	paymentRoutes.GET("/:id", paymentHandler.Get)
	paymentRoutes.POST("/:id/confirm", paymentHandler.Confirm)
	paymentRoutes.POST("/:id/reject", paymentHandler.Reject)
	paymentRoutes.POST("/:id/reverse", paymentHandler.Reverse)
	paymentRoutes.PUT("/:id/amount", paymentHandler.CorrectAmount)

	receiptRoutes := router.NewDomainGroup("receipts", "/receipts")
	receiptRoutes.POST("", receiptHandler.Intake)
	receiptRoutes.POST("/upload-url", receiptHandler.UploadURL)
	receiptRoutes.GET("/:id", receiptHandler.Get)
	receiptRoutes.GET("/:id/file", receiptHandler.FileURL)

	unitRoutes := router.NewDomainGroup("units", "/units")
	unitRoutes.GET("/:id/balance", balanceHandler.GetByUnit)

	balanceRoutes := router.NewDomainGroup("balances", "/balances")
	balanceRoutes.GET("/outstanding", balanceHandler.TotalOutstanding)

	providerRoutes := router.NewDomainGroup("providers", "/providers")
	providerRoutes.POST("", providerHandler.Create)
	providerRoutes.GET("", providerHandler.List)
	providerRoutes.GET("/:id", providerHandler.Get)
	providerRoutes.PUT("/:id", providerHandler.Update)
	providerRoutes.POST("/:id/deactivate", providerHandler.Deactivate)

	companyRoutes := router.NewDomainGroup("management-companies", "/management-companies")
	companyRoutes.POST("", providerHandler.CreateCompany)
	companyRoutes.GET("", providerHandler.ListCompanies)
	companyRoutes.GET("/:id", providerHandler.GetCompany)
	companyRoutes.POST("/:id/providers", providerHandler.LinkProvider)
	companyRoutes.DELETE("/:id/providers/:providerID", providerHandler.UnlinkProvider)

	r.Register(stayRoutes).
		Register(chargeRoutes).
		Register(billingRoutes).
		Register(paymentRoutes).
		Register(receiptRoutes).
		Register(unitRoutes).
		Register(balanceRoutes).
		Register(providerRoutes).
		Register(companyRoutes)

	r.Setup()

	// HTTP server
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
