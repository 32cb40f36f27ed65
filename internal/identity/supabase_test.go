package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keil-app/keil-server/internal/model"
)

func TestSupabase_Verify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		body        string
		want        model.ExternalIdentity
		wantInvalid bool
		wantErr     bool
	}{
		{
			name:   "valid user",
			status: http.StatusOK,
			body:   `{"id":"ext-1","email":"a@x.com","user_metadata":{"full_name":"Alice"}}`,
			want:   model.ExternalIdentity{ExternalID: "ext-1", Email: "a@x.com", DisplayName: "Alice"},
		},
		{
			name:   "no metadata",
			status: http.StatusOK,
			body:   `{"id":"ext-1","email":"a@x.com"}`,
			want:   model.ExternalIdentity{ExternalID: "ext-1", Email: "a@x.com"},
		},
		{
			name:        "unauthorized",
			status:      http.StatusUnauthorized,
			body:        `{"msg":"invalid JWT"}`,
			wantInvalid: true,
		},
		{
			name:        "forbidden",
			status:      http.StatusForbidden,
			body:        `{"msg":"bad_jwt"}`,
			wantInvalid: true,
		},
		{
			name:        "user gone",
			status:      http.StatusNotFound,
			wantInvalid: true,
		},
		{
			name:        "empty user",
			status:      http.StatusOK,
			body:        `{}`,
			wantInvalid: true,
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			wantErr: true,
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `{"id":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/auth/v1/user", r.URL.Path)
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				assert.Equal(t, "service-key", r.Header.Get("apikey"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			v := NewSupabase(srv.URL+"/", "service-key", srv.Client())
			got, err := v.Verify(context.Background(), "tok")

			switch {
			case tt.wantInvalid:
				require.ErrorIs(t, err, model.ErrInvalidCredential)
			case tt.wantErr:
				require.Error(t, err)
				assert.NotErrorIs(t, err, model.ErrInvalidCredential)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSupabase_Verify_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewSupabase(url, "key", nil).Verify(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrInvalidCredential)
}

func TestSupabase_Verify_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewSupabase(srv.URL, "key", srv.Client()).Verify(ctx, "tok")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
