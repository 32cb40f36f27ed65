package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keil-app/keil-server/internal/api/http/handler"
	"github.com/keil-app/keil-server/internal/api/http/middleware"
	"github.com/keil-app/keil-server/internal/logger"
	"github.com/keil-app/keil-server/internal/model"
)

// Router wires HTTP routes to handlers and middleware.
type Router struct {
	gate           middleware.Authenticator
	health         handler.HealthReporter
	contextManager model.ContextManager
	metrics        MetricsProvider
	corsOrigins    []string
	logger         *logger.Logger
}

// MetricsProvider records request metrics and serves the exposition endpoint.
type MetricsProvider interface {
	middleware.RequestObserver
	Handler() http.Handler
}

// New creates new HTTP Router instance.
func New(
	gate middleware.Authenticator,
	health handler.HealthReporter,
	contextManager model.ContextManager,
	metrics MetricsProvider,
	corsOrigins []string,
	logger *logger.Logger,
) *Router {
	return &Router{
		gate:           gate,
		health:         health,
		contextManager: contextManager,
		metrics:        metrics,
		corsOrigins:    corsOrigins,
		logger:         logger,
	}
}

// Register builds the gin engine with every route.
//
//	GET /              welcome
//	GET /metrics       prometheus
//	GET /api/health    health report
//	GET /api/users/me  current user (bearer credential required)
func (r *Router) Register() *gin.Engine {
	engine := gin.New()
	engine.HandleMethodNotAllowed = false

	logging := middleware.NewLogging(r.logger)
	engine.Use(
		middleware.Recovery(r.logger),
		middleware.CORS(r.corsOrigins),
		logging.Handle,
		middleware.Metrics(r.metrics),
	)

	engine.GET("/", handler.Welcome)
	engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))
	engine.NoRoute(handler.NotFound)

	api := engine.Group("/api")
	r.registerHealthRoutes(api)
	r.registerUserRoutes(api)

	return engine
}

func (r *Router) registerHealthRoutes(api *gin.RouterGroup) {
	healthHandler := handler.NewHealth(r.health)
	api.GET("/health", healthHandler.Get)
}

func (r *Router) registerUserRoutes(api *gin.RouterGroup) {
	authenticate := middleware.NewAuthenticate(r.gate, r.contextManager)
	userHandler := handler.NewUser(r.contextManager, r.logger)

	users := api.Group("/users", authenticate.Handle)
	users.GET("/me", userHandler.Me)
}
