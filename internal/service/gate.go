package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keil-app/keil-server/internal/logger"
	"github.com/keil-app/keil-server/internal/metrics"
	"github.com/keil-app/keil-server/internal/model"
)

// Client-facing messages of the gate.
const (
	MessageMissingCredential = "missing credential"
	MessageInvalidCredential = "invalid or expired credential"
	MessageInternal          = "internal server error during authentication"
)

const bearerScheme = "bearer"

// Observer receives one outcome per Authenticate call.
type Observer interface {
	ObserveAuth(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveAuth(string) {}

// Gate verifies bearer credentials with the identity authority and mirrors
// the authority's account into the local user store.
type Gate struct {
	verifier model.IdentityVerifier
	users    model.UserStore
	timeout  time.Duration
	observer Observer
	logger   *logger.Logger
	now      func() time.Time
}

// NewGate creates a Gate. verifyTimeout bounds each authority call.
// A nil observer disables outcome reporting.
func NewGate(
	verifier model.IdentityVerifier,
	users model.UserStore,
	verifyTimeout time.Duration,
	observer Observer,
	logger *logger.Logger,
) *Gate {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Gate{
		verifier: verifier,
		users:    users,
		timeout:  verifyTimeout,
		observer: observer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate resolves the local user for a raw Authorization header value.
// Errors are always *model.AuthError.
func (g *Gate) Authenticate(ctx context.Context, authorization string) (model.User, error) {
	token, ok := ParseBearer(authorization)
	if !ok {
		g.observer.ObserveAuth(metrics.OutcomeUnauthorized)
		return model.User{}, model.NewUnauthorized(MessageMissingCredential, nil)
	}

	identity, err := g.verify(ctx, token)
	if err != nil {
		var authErr *model.AuthError
		if errors.As(err, &authErr) && authErr.Kind == model.AuthUnauthorized {
			g.observer.ObserveAuth(metrics.OutcomeUnauthorized)
			g.logger.Debug("Gate: credential rejected", "error", err.Error())
		} else {
			g.observer.ObserveAuth(metrics.OutcomeInternal)
			g.logger.Error("Gate: identity authority failed", "error", err.Error())
		}
		return model.User{}, err
	}

	user, outcome, err := g.resolve(ctx, identity)
	if err != nil {
		g.observer.ObserveAuth(metrics.OutcomeInternal)
		g.logger.Error("Gate: failed to resolve local user",
			"external_id", identity.ExternalID,
			"error", err.Error())
		return model.User{}, model.NewInternal(MessageInternal, err)
	}

	g.observer.ObserveAuth(outcome)
	if outcome != metrics.OutcomeOK {
		g.logger.Info("Gate: local user synced",
			"external_id", user.ExternalID,
			"user_id", user.ID.String(),
			"outcome", outcome)
	}

	return user, nil
}

func (g *Gate) verify(ctx context.Context, token string) (model.ExternalIdentity, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	identity, err := g.verifier.Verify(verifyCtx, token)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredential) {
			return model.ExternalIdentity{}, model.NewUnauthorized(MessageInvalidCredential, err)
		}
		return model.ExternalIdentity{}, model.NewInternal(MessageInternal, fmt.Errorf("verify credential: %w", err))
	}
	if identity.ExternalID == "" {
		return model.ExternalIdentity{}, model.NewUnauthorized(MessageInvalidCredential, errors.New("authority returned no subject"))
	}

	return identity, nil
}

// resolve finds or creates the local user and syncs its profile.
func (g *Gate) resolve(ctx context.Context, identity model.ExternalIdentity) (model.User, string, error) {
	user, err := g.users.FindByExternalID(ctx, identity.ExternalID)
	switch {
	case err == nil:
		return g.sync(ctx, user, identity, metrics.OutcomeUpdated)
	case !errors.Is(err, model.ErrNotFound):
		return model.User{}, "", fmt.Errorf("find user: %w", err)
	}

	created, err := g.users.Create(ctx, model.NewUser(identity, g.now()))
	if err == nil {
		return created, metrics.OutcomeCreated, nil
	}
	if !errors.Is(err, model.ErrDuplicate) {
		return model.User{}, "", fmt.Errorf("create user: %w", err)
	}

	// A concurrent first login created the record first.
	existing, err := g.users.FindByExternalID(ctx, identity.ExternalID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, "", fmt.Errorf("create user: email %q belongs to another account", model.NormalizeEmail(identity.Email))
		}
		return model.User{}, "", fmt.Errorf("find user after duplicate: %w", err)
	}

	return g.sync(ctx, existing, identity, metrics.OutcomeRaceRecovered)
}

func (g *Gate) sync(ctx context.Context, user model.User, identity model.ExternalIdentity, changedOutcome string) (model.User, string, error) {
	if !user.SyncProfile(identity) {
		if changedOutcome == metrics.OutcomeRaceRecovered {
			return user, changedOutcome, nil
		}
		return user, metrics.OutcomeOK, nil
	}

	user.UpdatedAt = g.now()
	saved, err := g.users.Update(ctx, user)
	if err != nil {
		return model.User{}, "", fmt.Errorf("update user: %w", err)
	}

	return saved, changedOutcome, nil
}

// ParseBearer extracts the token from an Authorization header value.
// The scheme is matched case-insensitively and exactly one token must follow.
func ParseBearer(authorization string) (string, bool) {
	fields := strings.Fields(authorization)
	if len(fields) != 2 || !strings.EqualFold(fields[0], bearerScheme) {
		return "", false
	}
	return fields[1], true
}
