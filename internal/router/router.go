// internal/router/router.go
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/vidmarket-backend/internal/config"
	"github.com/javajoker/vidmarket-backend/internal/contentstore"
	"github.com/javajoker/vidmarket-backend/internal/handlers"
	"github.com/javajoker/vidmarket-backend/internal/ledger"
	"github.com/javajoker/vidmarket-backend/internal/middleware"
	"github.com/javajoker/vidmarket-backend/internal/services"
	"github.com/javajoker/vidmarket-backend/internal/store"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

const version = "1.0.0"

// Dependencies are the external collaborators the HTTP surface is built on.
type Dependencies struct {
	Gateway store.Gateway
	Ledger  ledger.Client
	Content *contentstore.Router
	Config  *config.Config
}

func Initialize(deps Dependencies) *gin.Engine {
	cfg := deps.Config

	// Initialize services
	notificationService := services.NewNotificationService(deps.Gateway, cfg)
	paymentService := services.NewPaymentService(cfg)

	authService := services.NewAuthService(deps.Gateway, cfg)
	accountService := services.NewAccountService(deps.Gateway)
	assetService := services.NewAssetService(deps.Gateway, cfg)
	purchaseService := services.NewPurchaseService(deps.Gateway, deps.Ledger, cfg, notificationService,
		services.NewLedgerVerifier(deps.Ledger, cfg.Ledger),
		services.NewTokenVerifier(deps.Ledger, cfg.Ledger),
		paymentService,
	)
	uploadService := services.NewUploadService(deps.Gateway, deps.Content, notificationService, cfg)
	streamingService := services.NewStreamingService(deps.Gateway, purchaseService, deps.Content, cfg)
	subscriptionService := services.NewSubscriptionService(deps.Gateway)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, accountService)
	accountHandler := handlers.NewAccountHandler(accountService)
	assetHandler := handlers.NewAssetHandler(assetService, purchaseService)
	purchaseHandler := handlers.NewPurchaseHandler(purchaseService, paymentService)
	contentHandler := handlers.NewContentHandler(uploadService, cfg.Streaming.UploadMaxBytes)
	streamHandler := handlers.NewStreamHandler(streamingService)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService)
	healthHandler := handlers.NewHealthHandler(deps.Gateway, deps.Content, version)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	limits := middleware.NewRateLimits(cfg.Server.RateLimit)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.AuditLogMiddleware(deps.Gateway))

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/v1")

	// Players seek with many range requests, so streaming has its own budget.
	v1.GET("/assets/:id/stream", limits.Stream(), middleware.OptionalAuth(), streamHandler.Stream)

	api := v1.Group("")
	api.Use(limits.General())
	{
		// Authentication routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", limits.Auth(), authHandler.Register)
			auth.POST("/login", limits.Auth(), authHandler.Login)
			auth.POST("/refresh", limits.Auth(), authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Account routes
		accounts := api.Group("/accounts")
		{
			accounts.PUT("/me", middleware.AuthRequired(), accountHandler.UpdateProfile)
			accounts.GET("/:id", accountHandler.GetPublicProfile)
		}

		// Asset routes
		assets := api.Group("/assets")
		{
			assets.GET("", middleware.OptionalAuth(), assetHandler.GetAssets)
			assets.GET("/:id", middleware.OptionalAuth(), assetHandler.GetAsset)
			assets.PATCH("/:id/views", assetHandler.IncrementViews)
			assets.GET("/:id/access", middleware.OptionalAuth(), assetHandler.GetAccess)
			assets.POST("/:id/purchase", middleware.OptionalAuth(), purchaseHandler.Purchase)
			assets.POST("/:id/checkout", middleware.OptionalAuth(), purchaseHandler.Checkout)

			protected := assets.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", assetHandler.CreateAsset)
				protected.PUT("/:id/content", limits.Upload(), contentHandler.PutContent)
			}
		}

		// Purchase history
		api.GET("/purchases", middleware.AuthRequired(), purchaseHandler.GetPurchases)

		// Subscription routes
		creators := api.Group("/creators")
		creators.Use(middleware.AuthRequired())
		{
			creators.POST("/:id/subscription", subscriptionHandler.Subscribe)
			creators.DELETE("/:id/subscription", subscriptionHandler.Cancel)
		}
		api.GET("/subscriptions", middleware.AuthRequired(), subscriptionHandler.GetSubscriptions)
	}

	return r
}
