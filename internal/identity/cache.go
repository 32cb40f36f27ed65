package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/keil-app/keil-server/internal/logger"
	"github.com/keil-app/keil-server/internal/model"
)

const cacheKeyPrefix = "identity:"

// Cache remembers successful verifications in Redis for a short TTL.
// Redis failures fall through to the wrapped verifier.
type Cache struct {
	next   model.IdentityVerifier
	client redis.Cmdable
	ttl    time.Duration
	logger *logger.Logger
}

var _ model.IdentityVerifier = (*Cache)(nil)

// NewCache wraps next with a Redis-backed verification cache.
func NewCache(next model.IdentityVerifier, client redis.Cmdable, ttl time.Duration, logger *logger.Logger) *Cache {
	return &Cache{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *Cache) Verify(ctx context.Context, token string) (model.ExternalIdentity, error) {
	key := cacheKey(token)

	if identity, ok := c.get(ctx, key); ok {
		return identity, nil
	}

	identity, err := c.next.Verify(ctx, token)
	if err != nil {
		return model.ExternalIdentity{}, err
	}

	c.set(ctx, key, identity, c.entryTTL(token))

	return identity, nil
}

func (c *Cache) get(ctx context.Context, key string) (model.ExternalIdentity, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Identity cache: failed to read", "error", err.Error())
		}
		return model.ExternalIdentity{}, false
	}

	var identity model.ExternalIdentity
	if err := json.Unmarshal(raw, &identity); err != nil || identity.ExternalID == "" {
		c.logger.Warn("Identity cache: dropping malformed entry")
		_ = c.client.Del(ctx, key).Err()
		return model.ExternalIdentity{}, false
	}

	return identity, true
}

// entryTTL never lets an entry outlive the token's own exp claim.
// Tokens that are not JWTs or carry no exp get the configured TTL.
func (c *Cache) entryTTL(token string) time.Duration {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return c.ttl
	}
	return min(c.ttl, time.Until(claims.ExpiresAt.Time))
}

func (c *Cache) set(ctx context.Context, key string, identity model.ExternalIdentity, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(identity)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("Identity cache: failed to write", "error", err.Error())
	}
}

// cacheKey never stores the raw token.
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
