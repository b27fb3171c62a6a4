package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"pushnami/api/handlers"
	"pushnami/api/logger"
	"pushnami/api/middleware"
	"pushnami/api/services"
	"pushnami/api/telemetry"
)

// Services bundles the domain services the HTTP surface exposes.
type Services struct {
	Registry   *services.Registry
	Resolver   *services.Resolver
	Toggles    *services.Toggles
	Ingestor   *services.Ingestor
	Aggregator *services.Aggregator
	Auth       *services.Auth
}

// Options carries the transport settings of the router.
type Options struct {
	AllowedOrigins  []string
	JWTSecret       string
	AdminAPIKey     string
	SecureCookies   bool
	RequestTimeout  time.Duration
	EventsRateLimit float64
	EventsRateBurst int
	MaxBodyBytes    int64
	Tracing         bool
	HealthChecks    map[string]handlers.Pinger
}

// NewRouter builds the gin engine. Reads and event ingestion are public;
// experiment and toggle mutations require an admin credential when one is
// configured.
func NewRouter(svc Services, opts Options, log *logger.Logger) *gin.Engine {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Tracing {
		r.Use(otelgin.Middleware(telemetry.ServiceName))
	}
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORSMiddleware(opts.AllowedOrigins))
	r.Use(middleware.MaxBodyBytes(opts.MaxBodyBytes))

	experimentHandlers := handlers.NewExperimentHandlers(svc.Registry, svc.Resolver, opts.RequestTimeout, log)
	toggleHandlers := handlers.NewToggleHandlers(svc.Toggles, opts.RequestTimeout, log)
	eventHandlers := handlers.NewEventHandlers(svc.Ingestor, opts.RequestTimeout, log)
	statsHandlers := handlers.NewStatsHandlers(svc.Aggregator, opts.RequestTimeout, log)
	authHandlers := handlers.NewAuthHandlers(svc.Auth, opts.SecureCookies, opts.RequestTimeout, log)

	r.GET("/health", handlers.Health(opts.HealthChecks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/auth/login", authHandlers.Login)
		api.POST("/auth/logout", authHandlers.Logout)

		api.GET("/experiments", experimentHandlers.List)
		api.GET("/experiments/active", experimentHandlers.Active)
		api.GET("/experiments/:id", experimentHandlers.Get)
		api.GET("/assign", experimentHandlers.Assign)

		api.GET("/toggles", toggleHandlers.List)
		api.GET("/toggles/:key", toggleHandlers.Get)

		events := api.Group("/events")
		events.Use(middleware.RateLimit(opts.EventsRateLimit, opts.EventsRateBurst))
		{
			events.POST("", eventHandlers.Track)
			events.POST("/batch", eventHandlers.TrackBatch)
		}
		api.GET("/events", eventHandlers.List)

		api.GET("/stats", statsHandlers.GetStats)
		api.GET("/stats/top-pages", statsHandlers.GetTopPages)

		admin := api.Group("/")
		admin.Use(middleware.AuthRequired(opts.JWTSecret, opts.AdminAPIKey, log))
		{
			admin.POST("/experiments", experimentHandlers.Create)
			admin.PUT("/experiments/:id", experimentHandlers.Update)
			admin.DELETE("/experiments/:id", experimentHandlers.Delete)
			admin.PUT("/toggles/:key", toggleHandlers.Update)
		}
	}
	return r
}
