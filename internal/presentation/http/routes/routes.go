package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/smartbill/internal/config"
	"github.com/sangkips/smartbill/internal/domain/enum"
	domainRepo "github.com/sangkips/smartbill/internal/domain/repository"
	"github.com/sangkips/smartbill/internal/presentation/http/handler"
	"github.com/sangkips/smartbill/internal/presentation/http/middleware"
	"github.com/sirupsen/logrus"
)

// Handlers holds all the HTTP handlers used for route registration.
type Handlers struct {
	Session   *handler.SessionHandler
	Bill      *handler.BillHandler
	Sync      *handler.SyncHandler
	Dashboard *handler.DashboardHandler
	Analytics *handler.AnalyticsHandler
	Printer   *handler.PrinterHandler
}

// Deps holds shared dependencies needed by the routes.
type Deps struct {
	Auth            middleware.Authenticator
	Cfg             *config.Config
	Log             logrus.FieldLogger
	IdempotencyRepo domainRepo.IdempotencyRepository
	RateLimiter     *middleware.RateLimiter
}

// NewRateLimiter builds the API rate limiter from the rate limit section
func NewRateLimiter(cfg config.RateLimitConfig) *middleware.RateLimiter {
	rlc := middleware.DefaultRateLimiterConfig()
	if cfg.Requests > 0 && cfg.Duration > 0 {
		rlc.RequestsPerSecond = float64(cfg.Requests) / float64(cfg.Duration)
		rlc.BurstSize = cfg.Requests
	}
	rlc.CleanupInterval = 5 * time.Minute
	rlc.EntryTTL = 10 * time.Minute
	return middleware.NewRateLimiter(rlc)
}

// Setup creates the Gin router and registers all routes.
func Setup(h *Handlers, deps *Deps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(deps.Log))
	router.Use(middleware.CORSMiddleware(&deps.Cfg.CORS))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": deps.Cfg.App.Name,
		})
	})

	rateLimiter := deps.RateLimiter
	if rateLimiter == nil {
		rateLimiter = NewRateLimiter(deps.Cfg.RateLimit)
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(rateLimiter.Middleware())
	{
		// Public routes (no authentication required)
		registerSessionRoutes(v1, h)

		// Protected routes (authentication required)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(deps.Auth))
		protected.Use(middleware.Idempotency(middleware.IdempotencyConfig{
			Repo: deps.IdempotencyRepo,
			Log:  deps.Log,
		}))

		registerProtectedRoutes(protected, h)
	}

	return router
}

func registerSessionRoutes(rg *gin.RouterGroup, h *Handlers) {
	session := rg.Group("/session")
	{
		session.GET("/setup", h.Session.SetupStatus)
		session.POST("/setup", h.Session.Setup)
		session.POST("/owner", h.Session.LoginOwner)
		session.POST("/staff", h.Session.LoginStaff)
	}
}

func registerProtectedRoutes(rg *gin.RouterGroup, h *Handlers) {
	ownerOnly := middleware.RequireRole(enum.RoleOwner)
	anyRole := middleware.RequireRole(enum.RoleOwner, enum.RoleStaff)

	rg.GET("/session/me", h.Session.Me)
	rg.PUT("/session/setup", ownerOnly, h.Session.ResetSetup)

	bills := rg.Group("/bills", anyRole)
	{
		bills.GET("/draft", h.Bill.GetDraft)
		bills.GET("/draft/items", h.Bill.GetDraft)
		bills.POST("/draft/items", h.Bill.AddItem)
		bills.DELETE("/draft/items/:id", h.Bill.RemoveItem)
		bills.DELETE("/draft", h.Bill.DiscardDraft)
		bills.POST("", h.Bill.Generate)
		bills.GET("", h.Bill.List)
		bills.GET("/stream", h.Bill.Stream)
		bills.GET("/:localId", h.Bill.Get)
		bills.POST("/:localId/print", h.Bill.Print)
	}

	sync := rg.Group("/sync", anyRole)
	{
		sync.GET("/status", h.Sync.Status)
		sync.POST("", h.Sync.Trigger)
		sync.PUT("/connectivity", h.Sync.SetConnectivity)
	}

	rg.GET("/dashboard", ownerOnly, h.Dashboard.GetStats)

	analytics := rg.Group("/analytics", ownerOnly)
	{
		analytics.GET("/revenue", h.Analytics.Revenue)
		analytics.GET("/top-customers", h.Analytics.TopCustomers)
		analytics.GET("/peak-hours", h.Analytics.PeakHours)
		analytics.GET("/summary", h.Analytics.Summary)
		analytics.GET("/export", h.Analytics.Export)
	}

	printer := rg.Group("/printer", anyRole)
	{
		printer.GET("/status", h.Printer.GetStatus)
		printer.POST("/test", h.Printer.TestPrint)
	}
}
