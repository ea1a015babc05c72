package router

import (
	"fmt"

	"github.com/emmanuel-dcoder/teevil-api/config"
	"github.com/emmanuel-dcoder/teevil-api/internal/cache"
	"github.com/emmanuel-dcoder/teevil-api/internal/domain"
	"github.com/emmanuel-dcoder/teevil-api/internal/events"
	"github.com/emmanuel-dcoder/teevil-api/internal/handler"
	"github.com/emmanuel-dcoder/teevil-api/internal/middleware"
	"github.com/emmanuel-dcoder/teevil-api/internal/repository"
	"github.com/emmanuel-dcoder/teevil-api/internal/service"
	"github.com/emmanuel-dcoder/teevil-api/internal/ws"
	"github.com/emmanuel-dcoder/teevil-api/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Dependencies are the long-lived clients the process owns. Everything but
// Config, DB and Logger is optional.
type Dependencies struct {
	Config *config.Config
	DB     *gorm.DB
	Logger zerolog.Logger

	// Gateway defaults to the provider named in config.
	Gateway payment.Gateway
	// Redis enables the shared rate limiter and the webhook redelivery cache.
	Redis *redis.Client
	// Publisher defaults to logging events.
	Publisher events.Publisher
	Pusher    service.Pusher
	Mailer    service.Mailer
}

// NewGateway builds the payment gateway selected by cfg.Provider.
func NewGateway(cfg config.PaymentConfig) (payment.Gateway, error) {
	switch cfg.Provider {
	case "stripe":
		return payment.NewStripeGateway(payment.StripeConfig{
			SecretKey:        cfg.SecretKey,
			WebhookSecret:    cfg.WebhookSecret,
			Timeout:          cfg.GatewayTimeout,
			WebhookTolerance: cfg.WebhookTolerance,
		}), nil
	case "stub":
		return payment.NewStubGateway(cfg.WebhookSecret), nil
	}
	return nil, fmt.Errorf("unsupported payment provider %q", cfg.Provider)
}

func Setup(d Dependencies) (*gin.Engine, error) {
	cfg := d.Config
	logger := d.Logger
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	gateway := d.Gateway
	if gateway == nil {
		var err error
		if gateway, err = NewGateway(cfg.Payment); err != nil {
			return nil, err
		}
	}
	publisher := d.Publisher
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}

	var limiter middleware.Limiter
	var eventCache service.EventCache
	if d.Redis != nil {
		limiter = middleware.NewRedisRateLimiter(d.Redis, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		eventCache = cache.NewWebhookEventCache(d.Redis, cfg.Redis.WebhookTTL)
	} else {
		limiter = middleware.NewInMemoryRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	// Repositories
	store := repository.NewStore(d.DB)
	userRepo := repository.NewUserRepository(d.DB)
	jobRepo := repository.NewJobRepository(d.DB)
	notificationRepo := repository.NewNotificationRepository(d.DB)

	hub := ws.NewHub()

	// Services
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, d.Pusher, logger)
	txSvc := service.NewTransactionService(service.TransactionDeps{
		Store:          store,
		Jobs:           jobRepo,
		Users:          userRepo,
		Gateway:        gateway,
		Notifier:       notifSvc,
		Publisher:      publisher,
		Broadcaster:    hub,
		Currency:       cfg.Payment.Currency,
		GatewayTimeout: cfg.Payment.GatewayTimeout,
		Logger:         logger,
	})
	withdrawalSvc := service.NewWithdrawalService(service.WithdrawalDeps{
		Store:     store,
		Jobs:      jobRepo,
		Users:     userRepo,
		Notifier:  notifSvc,
		Mailer:    d.Mailer,
		Publisher: publisher,
		Logger:    logger,
	})
	webhookSvc := service.NewWebhookService(gateway, txSvc, eventCache, logger)

	// Handlers
	txHandler := handler.NewTransactionHandler(txSvc, logger)
	withdrawalHandler := handler.NewWithdrawalHandler(withdrawalSvc, logger)
	webhookHandler := handler.NewWebhookHandler(webhookSvc, logger)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger))

	var pinger handler.Pinger
	if sqlDB, err := d.DB.DB(); err == nil {
		pinger = sqlDB
	}
	r.GET("/health", handler.Health(pinger))
	r.GET("/ws/transactions", ws.UpgradeTransactionsWS(&cfg.JWT, hub, logger))

	api := r.Group("/api/v1")
	// Gateway callbacks are signed and retried by the gateway; they skip the
	// rate limiter and bearer auth.
	api.POST("/transaction/stripe-webhook", webhookHandler.Stripe)

	authMw := middleware.AuthRequired(&cfg.JWT)
	limited := api.Group("", middleware.RateLimit(limiter, logger), authMw)

	tx := limited.Group("/transaction")
	{
		tx.POST("/initiate", middleware.RequireRole(domain.RoleClient), txHandler.Initiate)
		tx.GET("/verify/:paymentIntentId", txHandler.Verify)
		tx.GET("/escrow", middleware.RequireRole(domain.RoleClient), txHandler.Escrow)
		tx.GET("", txHandler.List)
		tx.GET("/:id", txHandler.Get)
	}

	wd := limited.Group("/withdrawal")
	{
		wd.POST("/wallet", middleware.RequireRole(domain.RoleFreelancer), withdrawalHandler.Create)
		wd.GET("", middleware.RequireRole(domain.RoleFreelancer), withdrawalHandler.ListMine)
		wd.GET("/balance", middleware.RequireRole(domain.RoleFreelancer), withdrawalHandler.Balance)
		wd.GET("/client", middleware.RequireRole(domain.RoleClient), withdrawalHandler.ListClient)
		wd.GET("/all", middleware.RequireRole(domain.RoleAdmin), withdrawalHandler.ListAll)
		wd.PUT("/:id/approval", middleware.RequireRole(domain.RoleClient, domain.RoleAdmin), withdrawalHandler.UpdateApproval)
		wd.PUT("/:id/execution", middleware.RequireRole(domain.RoleAdmin), withdrawalHandler.UpdateExecution)
		wd.GET("/:id", withdrawalHandler.Get)
	}

	return r, nil
}
