package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keil-app/keil-server/internal/model"
)

// Claims are the claims the identity authority puts into access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// UserMetadata is the free-form profile attached to an authority account.
type UserMetadata struct {
	FullName string `json:"full_name,omitempty"`
}

// JWT verifies access tokens locally with the authority's HMAC secret.
type JWT struct {
	secretKey []byte
	audience  string
}

var _ model.IdentityVerifier = (*JWT)(nil)

// NewJWT creates a verifier for HS256 tokens. An empty audience skips the aud check.
func NewJWT(secretKey, audience string) *JWT {
	return &JWT{secretKey: []byte(secretKey), audience: audience}
}

// Verify validates the token signature and expiry and returns the identity it names.
// Every validation failure is reported as model.ErrInvalidCredential.
func (j *JWT) Verify(_ context.Context, tokenString string) (model.ExternalIdentity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return j.secretKey, nil
	}, opts...)
	if err != nil {
		return model.ExternalIdentity{}, fmt.Errorf("%w: %v", model.ErrInvalidCredential, err)
	}
	if !token.Valid {
		return model.ExternalIdentity{}, model.ErrInvalidCredential
	}
	if claims.Subject == "" {
		return model.ExternalIdentity{}, fmt.Errorf("%w: subject is empty", model.ErrInvalidCredential)
	}

	return model.ExternalIdentity{
		ExternalID:  claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.UserMetadata.FullName,
	}, nil
}
