package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ikkim/bookstore-backend/config"
	"github.com/ikkim/bookstore-backend/internal/app/controller"
	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/internal/db"
	"github.com/ikkim/bookstore-backend/internal/middleware"
	"github.com/ikkim/bookstore-backend/pkg/metrics"
	"gorm.io/gorm"
)

type Router struct {
	authController    *controller.AuthController
	cartController    *controller.CartController
	orderController   *controller.OrderController
	reviewController  *controller.ReviewController
	messageController *controller.MessageController
	adminController   *controller.AdminController
	authMiddleware    *middleware.AuthMiddleware
	metrics           *metrics.ServerMetrics
	db                *gorm.DB
	config            *config.Config
}

type Controllers struct {
	Auth    *controller.AuthController
	Cart    *controller.CartController
	Order   *controller.OrderController
	Review  *controller.ReviewController
	Message *controller.MessageController
	Admin   *controller.AdminController
}

func NewRouter(
	controllers Controllers,
	authMiddleware *middleware.AuthMiddleware,
	m *metrics.ServerMetrics,
	gdb *gorm.DB,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:    controllers.Auth,
		cartController:    controllers.Cart,
		orderController:   controllers.Order,
		reviewController:  controllers.Review,
		messageController: controllers.Message,
		adminController:   controllers.Admin,
		authMiddleware:    authMiddleware,
		metrics:           m,
		db:                gdb,
		config:            cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.config.Server.GinMode != "" {
		gin.SetMode(r.config.Server.GinMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware(r.metrics))
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", r.health)
	if r.metrics != nil {
		router.GET("/metrics", gin.WrapH(r.metrics.Handler()))
	}

	// Websocket clients cannot set headers, so the token travels as ?token=
	router.GET("/ws", r.authMiddleware.Authenticate(), r.messageController.Connect)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.POST("/admin/login", r.authController.AdminLogin)
			auth.POST("/refresh", r.authController.Refresh)
			auth.POST("/logout", r.authMiddleware.Authenticate(), r.authController.Logout)
			auth.GET("/me", r.authMiddleware.Authenticate(), r.authController.Me)
		}

		cart := v1.Group("/cart")
		cart.Use(r.authMiddleware.Authenticate())
		{
			cart.GET("", r.cartController.GetCart)
			cart.POST("", r.cartController.AddToCart)
			cart.PUT("/:id", r.cartController.UpdateCartItem)
			cart.DELETE("/:id", r.cartController.RemoveFromCart)
			cart.DELETE("", r.cartController.ClearCart)
		}

		orders := v1.Group("/orders")
		orders.Use(r.authMiddleware.Authenticate())
		{
			orders.POST("", r.orderController.PlaceOrder)
			orders.GET("", r.orderController.GetOrders)
			orders.GET("/:id", r.orderController.GetOrderByID)
		}

		reviews := v1.Group("/reviews")
		{
			reviews.GET("/product/:productName", r.reviewController.GetProductReviews)
			reviews.GET("/eligibility", r.authMiddleware.Authenticate(), r.reviewController.Eligibility)
			reviews.GET("/me", r.authMiddleware.Authenticate(), r.reviewController.GetMyReviews)
			reviews.POST("", r.authMiddleware.Authenticate(), r.reviewController.CreateReview)
		}

		v1.GET("/messages", r.authMiddleware.Authenticate(), r.messageController.GetMyMessages)

		admin := v1.Group("/admin")
		admin.Use(r.authMiddleware.Authenticate(), r.authMiddleware.RequireRole(model.RoleAdmin))
		{
			admin.GET("/dashboard", r.adminController.Dashboard)
			admin.POST("/change-password", r.authController.ChangePassword)

			admin.GET("/orders", r.adminController.ListOrders)
			admin.GET("/orders/export", r.adminController.ExportOrders)
			admin.PUT("/orders/:id/status", r.adminController.UpdateOrderStatus)

			admin.GET("/users", r.adminController.ListUsers)
			admin.DELETE("/users/:id", r.adminController.DeleteUser)

			admin.GET("/reviews", r.adminController.ListReviews)
			admin.DELETE("/reviews/:id", r.adminController.DeleteReview)

			admin.GET("/messages", r.adminController.ListMessages)
			admin.POST("/messages/:id/reply", r.adminController.ReplyToMessage)
			admin.DELETE("/messages/:id", r.adminController.DeleteMessage)
		}
	}

	return router
}

func (r *Router) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if r.db != nil {
		if err := db.Ping(ctx, r.db); err != nil {
			middleware.GetLoggerFromContext(c).Warn("Health check failed", map[string]interface{}{
				"error": err.Error(),
			})
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unreachable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "Bookstore API is running",
	})
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control", "X-Requested-With", "X-Request-ID", "Idempotency-Key"},
		ExposeHeaders:    []string{"X-Request-ID", "Retry-After", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			// credentials cannot be combined with a literal wildcard
			cfg.AllowOriginFunc = func(string) bool { return true }
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = allowedOrigins
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return false }
	}
	return cors.New(cfg)
}
