package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/keil-app/keil-server/internal/api/authctx"
	"github.com/keil-app/keil-server/internal/logger"
	"github.com/keil-app/keil-server/internal/mocks"
	"github.com/keil-app/keil-server/internal/model"
	"github.com/keil-app/keil-server/internal/service"
	"github.com/keil-app/keil-server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthenticate_Handle(t *testing.T) {
	t.Parallel()

	user := model.User{ExternalID: "ext-1", Email: "a@x.com", Role: model.RoleUser}

	tests := []struct {
		name       string
		header     string
		setupMock  func(m *mocks.Authenticator)
		wantStatus int
		wantNext   bool
	}{
		{
			name:   "valid credential",
			header: "Bearer good",
			setupMock: func(m *mocks.Authenticator) {
				m.On("Authenticate", mock.Anything, "Bearer good").Return(user, nil)
			},
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
		{
			name:   "missing credential",
			header: "",
			setupMock: func(m *mocks.Authenticator) {
				m.On("Authenticate", mock.Anything, "").
					Return(model.User{}, model.NewUnauthorized(service.MessageMissingCredential, nil))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "store down",
			header: "Bearer good",
			setupMock: func(m *mocks.Authenticator) {
				m.On("Authenticate", mock.Anything, "Bearer good").
					Return(model.User{}, model.NewInternal(service.MessageInternal, errors.New("conn refused")))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gate := mocks.NewAuthenticator(t)
			tt.setupMock(gate)
			manager := authctx.NewManager()
			mw := NewAuthenticate(gate, manager)

			var reached bool
			var got model.User
			engine := gin.New()
			engine.GET("/p", mw.Handle, func(c *gin.Context) {
				reached = true
				got, _ = manager.GetUserFromContext(c.Request.Context())
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantNext, reached)
			if tt.wantNext {
				assert.Equal(t, user, got)
			}
		})
	}
}

type recordedRequest struct {
	method, route, status string
}

type fakeObserver struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (f *fakeObserver) ObserveRequest(method, route, status string, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recordedRequest{method, route, status})
}

func TestMetrics_RecordsRouteTemplate(t *testing.T) {
	t.Parallel()

	observer := &fakeObserver{}
	engine := gin.New()
	engine.Use(Metrics(observer))
	engine.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/items/1", "/items/2", "/nowhere"} {
		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, observer.requests, 3)
	assert.Equal(t, recordedRequest{"GET", "/items/:id", "204"}, observer.requests[0])
	assert.Equal(t, recordedRequest{"GET", "/items/:id", "204"}, observer.requests[1])
	assert.Equal(t, recordedRequest{"GET", unmatchedRoute, "404"}, observer.requests[2])
}

func TestLogging_Handle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantMsg string
	}{
		{name: "success", status: http.StatusOK, wantMsg: "HTTP request completed"},
		{name: "client error", status: http.StatusUnauthorized, wantMsg: "HTTP request rejected"},
		{name: "server error", status: http.StatusInternalServerError, wantMsg: "HTTP request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			l := NewLogging(logger.NewWithWriter(&buf, 0))

			engine := gin.New()
			engine.Use(l.Handle)
			engine.GET("/x", func(c *gin.Context) { c.Status(tt.status) })
			engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

			out := buf.String()
			assert.Contains(t, out, tt.wantMsg)
			assert.Contains(t, out, "path=/x")
		})
	}
}

func TestRecovery_MapsPanicToEnvelope(t *testing.T) {
	t.Parallel()

	engine := gin.New()
	engine.Use(Recovery(testutil.MakeNoopLogger()))
	engine.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil).WithContext(context.Background()))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.NotContains(t, w.Body.String(), "kaboom")
}
