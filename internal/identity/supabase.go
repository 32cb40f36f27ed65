package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/keil-app/keil-server/internal/model"
)

const userEndpoint = "/auth/v1/user"

// maxUserResponse caps how much of the authority response is read.
const maxUserResponse = 1 << 20

// Supabase verifies access tokens by asking the authority for the token's user.
type Supabase struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

var _ model.IdentityVerifier = (*Supabase)(nil)

// NewSupabase creates a remote verifier. A nil client means http.DefaultClient.
func NewSupabase(baseURL, secretKey string, client *http.Client) *Supabase {
	if client == nil {
		client = http.DefaultClient
	}
	return &Supabase{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    client,
	}
}

type supabaseUser struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// Verify calls GET /auth/v1/user with the token.
// 401, 403 and 404 mean the token was rejected.
func (s *Supabase) Verify(ctx context.Context, token string) (model.ExternalIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+userEndpoint, nil)
	if err != nil {
		return model.ExternalIdentity{}, fmt.Errorf("failed to build authority request: %w", err)
	}
	req.Header.Set("apikey", s.secretKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return model.ExternalIdentity{}, fmt.Errorf("failed to call authority: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxUserResponse))
		return model.ExternalIdentity{}, fmt.Errorf("%w: authority status %d", model.ErrInvalidCredential, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return model.ExternalIdentity{}, fmt.Errorf("unexpected authority status %d", resp.StatusCode)
	}

	var user supabaseUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserResponse)).Decode(&user); err != nil {
		return model.ExternalIdentity{}, fmt.Errorf("failed to decode authority response: %w", err)
	}
	if user.ID == "" {
		return model.ExternalIdentity{}, fmt.Errorf("%w: authority returned no user", model.ErrInvalidCredential)
	}

	return model.ExternalIdentity{
		ExternalID:  user.ID,
		Email:       user.Email,
		DisplayName: user.UserMetadata.FullName,
	}, nil
}
