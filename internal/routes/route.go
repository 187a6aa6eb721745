package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/staylink/internal/container"
	"github.com/joshua-takyi/staylink/internal/handlers"
	"github.com/joshua-takyi/staylink/internal/middleware"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/joshua-takyi/staylink/internal/ws"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(container *container.Container) *gin.Engine {
	if container.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     container.Config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
	}))

	// Add middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(container.Logger))
	r.Use(middleware.ErrorHandler(container.Logger))
	r.Use(gin.Recovery())

	secure := container.Config.IsProduction()
	auth := middleware.AuthConfig{
		Validator:     container.Validator,
		Users:         container.UserService,
		Logger:        container.Logger,
		SecureCookies: secure,
	}

	// API version 1
	v1 := r.Group("/api/v1")
	{
		// Health check
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":      "OK",
				"service":     "staylink-api",
				"ws_clients":  container.Hub.ClientCount(),
				"sessions":    container.Sessions.Len(),
				"mongo_ready": container.Mongo != nil,
			})
		})

		// public routes
		v1.POST("/signup", handlers.Signup(container.UserService))
		v1.POST("/login", handlers.Login(container.UserService, secure))
		v1.POST("/logout", handlers.Logout(secure))
		v1.POST("/availability/check", middleware.OptionalAuth(auth), handlers.CheckAvailability(container.AvailabilityService))
	}

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(auth))

	protected.GET("/profile", handlers.Profile(container.UserService))
	protected.GET("/ws/session", ws.ServeSession(container.Hub, ws.NewUpgrader(container.Config.CORSOrigins), container.Logger))

	bookingRoutes := protected.Group("/bookings")
	{
		bookingRoutes.POST("", handlers.CreateBooking(container.BookingService))
		bookingRoutes.GET("", handlers.ListBookings(container.BookingService))
		bookingRoutes.GET("/:id", handlers.GetBooking(container.BookingService))
		bookingRoutes.GET("/:id/refund-quote", handlers.RefundQuote(container.RefundService))
		bookingRoutes.POST("/:id/cancel", handlers.CancelBooking(container.RefundService))
	}

	paymentRoutes := protected.Group("/payments")
	{
		paymentRoutes.GET("", handlers.ListPayments(container.PaymentService))
		paymentRoutes.POST("/intent", handlers.CreatePaymentIntent(container.PaymentService))
		paymentRoutes.POST("/callback", handlers.PaymentCallback(container.PaymentService))
		paymentRoutes.POST("/:booking_id/checkout", handlers.Checkout(container.PaymentService))
		paymentRoutes.POST("/:booking_id/reset", handlers.ResetPayment(container.PaymentService))
		paymentRoutes.GET("/:booking_id/state", handlers.PaymentState(container.PaymentService))
	}

	hostRoutes := protected.Group("/", middleware.RequireRole(models.RoleHost, models.RoleAdmin))
	{
		hostRoutes.POST("/payouts", handlers.RequestPayout(container.PayoutService))
		hostRoutes.GET("/payouts", handlers.ListPayouts(container.PayoutService))
		hostRoutes.GET("/wallet", handlers.WalletMetrics(container.PayoutService))
	}

	protected.POST("/disputes", handlers.OpenDispute(container.AdminService))

	adminRoutes := protected.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	{
		adminRoutes.GET("/overview", handlers.AdminOverview(container.AdminService))
		adminRoutes.GET("/properties/stats", handlers.PropertyStatistics(container.AdminService))
		adminRoutes.GET("/properties/status/:status", handlers.PropertiesByStatus(container.AdminService))
		adminRoutes.POST("/payouts/:id/decision", handlers.DecidePayout(container.PayoutService))
		adminRoutes.GET("/disputes", handlers.ListDisputes(container.AdminService))
		adminRoutes.GET("/disputes/stats", handlers.DisputeStats(container.AdminService))
		adminRoutes.POST("/disputes/:id/resolve", handlers.ResolveDispute(container.AdminService))
	}

	return r
}
