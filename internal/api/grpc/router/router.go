package router

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"github.com/keil-app/keil-server/internal/api/grpc/middleware"
	"github.com/keil-app/keil-server/internal/logger"
	"github.com/keil-app/keil-server/internal/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

var healthServicePrefix = "/" + healthpb.Health_ServiceDesc.ServiceName + "/"

// Router builds the operations gRPC server: health checks and reflection.
type Router struct {
	gate           middleware.Authenticator
	health         *health.Server
	contextManager model.ContextManager
	logger         *logger.Logger
}

// New creates new gRPC Router instance. healthServer is registered as the
// grpc.health.v1 service; its serving status is owned by the caller.
func New(
	gate middleware.Authenticator,
	healthServer *health.Server,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Router {
	return &Router{
		gate:           gate,
		health:         healthServer,
		contextManager: contextManager,
		logger:         logger,
	}
}

// requiresAuth exempts the health service so probes need no credential.
func requiresAuth(_ context.Context, c interceptors.CallMeta) bool {
	return !strings.HasPrefix(c.FullMethod(), healthServicePrefix)
}

// Register creates the gRPC server with logging and authentication interceptors.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.gate, r.contextManager, r.logger)

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logging.HandleGRPC,
			selector.UnaryServerInterceptor(
				auth.UnaryServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(requiresAuth),
			),
		),
		grpc.ChainStreamInterceptor(
			logging.HandleGRPCStream,
			selector.StreamServerInterceptor(
				auth.StreamServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(requiresAuth),
			),
		),
	)

	healthpb.RegisterHealthServer(s, r.health)
	reflection.Register(s)

	return s
}
