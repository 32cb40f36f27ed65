package model

import "context"

// ExternalIdentity is the identity authority's view of an account.
type ExternalIdentity struct {
	ExternalID  string `json:"externalId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// IdentityVerifier verifies a bearer credential against the identity authority.
//
// Verify returns ErrInvalidCredential when the authority rejects the token.
// Any other error means the authority could not be asked.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (ExternalIdentity, error)
}
