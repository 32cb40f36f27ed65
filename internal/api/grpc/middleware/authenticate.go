package middleware

import (
	"context"
	"errors"

	"github.com/keil-app/keil-server/internal/logger"
	"github.com/keil-app/keil-server/internal/model"
	"github.com/keil-app/keil-server/internal/service"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Authenticator resolves the local user from an authorization value.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (model.User, error)
}

// Authenticate runs the identity gate on incoming gRPC calls.
type Authenticate struct {
	gate           Authenticator
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(gate Authenticator, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{gate: gate, contextManager: contextManager, logger: logger}
}

// AuthFunc reads the authorization metadata, resolves the user and returns a context carrying it.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	var authorization string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("authorization"); len(values) > 0 {
			authorization = values[0]
		}
	}

	user, err := m.gate.Authenticate(ctx, authorization)
	if err != nil {
		return nil, m.toStatus(err)
	}

	return m.contextManager.SetUserToContext(ctx, user), nil
}

func (m *Authenticate) toStatus(err error) error {
	var authErr *model.AuthError
	if errors.As(err, &authErr) && authErr.Kind == model.AuthUnauthorized {
		return status.Error(codes.Unauthenticated, authErr.Message)
	}

	m.logger.Error("gRPC authentication failed", "error", err.Error())
	return status.Error(codes.Internal, service.MessageInternal)
}
