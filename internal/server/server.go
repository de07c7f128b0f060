package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Durgesh2022/yoga-app/internal/astrologer"
	"github.com/Durgesh2022/yoga-app/internal/auth"
	"github.com/Durgesh2022/yoga-app/internal/booking"
	"github.com/Durgesh2022/yoga-app/internal/config"
	"github.com/Durgesh2022/yoga-app/internal/payment"
	"github.com/Durgesh2022/yoga-app/internal/user"
	"github.com/Durgesh2022/yoga-app/internal/wallet"
)

// Handlers is everything the router serves.
type Handlers struct {
	User       *user.Handler
	Wallet     *wallet.Handler
	Payment    *payment.Handler
	Booking    *booking.Handler
	Astrologer *astrologer.Handler

	Email  emailQueue
	Checks map[string]HealthCheck
}

type Server struct {
	router   *gin.Engine
	http     *http.Server
	limiters []*RateLimiter
}

func New(cfg *config.Config, h Handlers) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery(), RequestIDMiddleware(), RequestLoggingMiddleware(), MetricsMiddleware(), corsMiddleware())

	ipLimiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 3*time.Minute)
	// money movement gets a tighter per-user budget
	payLimiter := NewRateLimiter(cfg.RateLimitRPS/2, cfg.RateLimitBurst/2+1, 3*time.Minute)
	router.Use(ipLimiter.Middleware())

	router.GET("/health", Health(h.Checks))
	router.GET("/metrics", Metrics(h.Email))
	SetupSwagger(router, cfg.IsProduction())

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)

	public := router.Group("/auth")
	{
		public.POST("/register", h.User.Register)
		public.POST("/login", h.User.Login)
		public.POST("/refresh", h.User.RefreshToken)
		public.POST("/logout", h.User.Logout)
	}

	// The gateway calls this directly; the body signature is the auth.
	router.POST("/payment/webhook", h.Payment.Webhook)
	router.GET("/bookings/catalog", h.Booking.Catalog)
	router.GET("/astrologers", h.Astrologer.List)

	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", h.User.GetMe)

		protected.GET("/wallet/:user_id", h.Wallet.GetBalance)
		protected.GET("/wallet/:user_id/transactions", h.Wallet.ListTransactions)

		protected.POST("/bookings", h.Booking.Create)
		protected.GET("/bookings", h.Booking.List)
		protected.GET("/bookings/:id", h.Booking.Get)
		protected.POST("/bookings/:id/cancel", h.Booking.Cancel)

		protected.GET("/payment/orders/:order_id", h.Payment.GetOrder)

		protected.GET("/astrologers/me", auth.RequireRole(auth.RoleAstrologer), h.Astrologer.GetMine)
		protected.PUT("/astrologers/me", auth.RequireRole(auth.RoleAstrologer), h.Astrologer.UpdateMine)
	}
	router.GET("/astrologers/:id", optionalAuth(cfg.JWTSecret), h.Astrologer.Get)

	money := router.Group("/")
	money.Use(authMiddleware, payLimiter.Middleware())
	{
		money.POST("/payment/create-order", h.Payment.CreateOrder)
		money.POST("/payment/verify", h.Payment.Verify)
		money.POST("/wallet/deduct", h.Wallet.Deduct)
		money.POST("/bookings/:id/pay", h.Booking.Pay)
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware)
	{
		adminOnly := auth.RequireRole(auth.RoleAdmin)
		staff := auth.RequireRole(auth.RoleAdmin, auth.RoleAstrologer)

		admin.POST("/wallet/adjust", adminOnly, h.Wallet.Adjust)
		admin.GET("/wallet/:user_id/audit", adminOnly, h.Wallet.Audit)

		admin.POST("/astrologers", adminOnly, h.Astrologer.Create)
		admin.PUT("/astrologers/:id", adminOnly, h.Astrologer.Update)
		admin.DELETE("/astrologers/:id", adminOnly, h.Astrologer.Delete)
		admin.GET("/astrologers/:id/bookings", staff, h.Astrologer.Bookings)
		admin.GET("/astrologers/:id/earnings", staff, h.Astrologer.Earnings)

		admin.POST("/bookings/:id/fulfil", staff, h.Booking.Fulfil)

		if h.Email != nil {
			admin.GET("/test-email", adminOnly, TestEmail(h.Email))
		}
	}

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		limiters: []*RateLimiter{ipLimiter, payLimiter},
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server stops. A graceful Shutdown returns nil.
func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	for _, l := range s.limiters {
		l.Stop()
	}
	return s.http.Shutdown(ctx)
}

// optionalAuth sets the caller when a valid bearer token is present and
// lets anonymous requests through untouched.
func optionalAuth(secret string) gin.HandlerFunc {
	required := auth.AuthMiddleware(secret)
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		required(c)
	}
}
