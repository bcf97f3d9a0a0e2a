package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/medibook-api/internal/middleware"
	"github.com/jwalitptl/medibook-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// CatalogHandler serves reference data that clients may cache.
type CatalogHandler interface {
	RegisterCatalogRoutes(*gin.RouterGroup)
}

const catalogMaxAge = time.Hour

// Handlers groups every route owner the API mounts.
type Handlers struct {
	Health       Handler
	Patient      Handler
	Auth         Handler
	Admin        Handler
	Notification Handler
}

type Router struct {
	engine      *gin.Engine
	auth        *middleware.AuthMiddleware
	handlers    Handlers
	rateLimiter *middleware.RateLimiter
}

type RouterConfig struct {
	Mode           string
	RateLimit      rate.Limit
	RateBurst      int
	CORSConfig     middleware.CORSConfig
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	handlers Handlers,
	m *metrics.Metrics,
	config RouterConfig,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New()

	sizeLimit := middleware.DefaultSizeLimitConfig()
	if config.MaxBodyBytes > 0 {
		sizeLimit.MaxBodySize = config.MaxBodyBytes
	}

	// Add core middlewares
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(sizeLimit),
		middleware.Timeout(config.RequestTimeout),
	)
	if m != nil {
		engine.Use(middleware.Metrics(m))
	}

	return &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		rateLimiter: middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		}),
	}
}

func (r *Router) Setup() {
	api := r.engine.Group("/api")

	// Confirmation email endpoint used by the booking client
	emails := api.Group("")
	emails.Use(r.rateLimiter.RateLimit(), middleware.Cache(middleware.NoStoreConfig()))
	r.handlers.Notification.RegisterRoutes(emails)

	v1 := api.Group("/v1")
	v1.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.handlers.Health.RegisterRoutes(v1)

	// Public patient flow
	public := v1.Group("")
	public.Use(r.rateLimiter.RateLimit(), middleware.Cache(middleware.NoStoreConfig()))
	r.handlers.Patient.RegisterRoutes(public)

	if catalog, ok := r.handlers.Patient.(CatalogHandler); ok {
		cached := v1.Group("")
		cached.Use(r.rateLimiter.RateLimit(), middleware.Cache(middleware.PublicConfig(catalogMaxAge)))
		catalog.RegisterCatalogRoutes(cached)
	}

	adminGroup := v1.Group("/admin")
	adminGroup.Use(middleware.Cache(middleware.NoStoreConfig()))

	// Passcode exchange
	session := adminGroup.Group("")
	session.Use(r.rateLimiter.RateLimit())
	r.handlers.Auth.RegisterRoutes(session)

	// Protected routes
	protected := adminGroup.Group("")
	protected.Use(r.auth.RequireAdmin())
	r.handlers.Admin.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
