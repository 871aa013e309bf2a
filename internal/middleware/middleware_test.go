package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pascaldekloe/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustbond/api/internal/context"
	"github.com/trustbond/api/internal/errHandler"
	"github.com/trustbond/api/internal/mocks"
	"github.com/trustbond/api/internal/models"
	"github.com/trustbond/api/internal/repository"
)

func newTestMiddleware(users *mocks.MockUserRepo) (*Middleware, *bytes.Buffer) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	cfg := mocks.NewConfig()
	cfg.Limiter.Enabled = true
	cfg.Limiter.Rps = 1
	cfg.Limiter.Burst = 2

	return New(errHandler.New("", cfg.BaseURL, nil, slog.New(slog.NewTextHandler(io.Discard, nil))), logger, users, cfg), &logs
}

func signToken(t *testing.T, subject, secret, issuer string) string {
	t.Helper()

	var claims jwt.Claims
	claims.Subject = subject
	claims.Issued = jwt.NewNumericTime(time.Now())
	claims.NotBefore = jwt.NewNumericTime(time.Now())
	claims.Expires = jwt.NewNumericTime(time.Now().Add(time.Hour))
	claims.Issuer = issuer
	claims.Audiences = []string{issuer}

	token, err := claims.HMACSign(jwt.HS256, []byte(secret))
	require.NoError(t, err)
	return string(token)
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestAuthenticate(t *testing.T) {
	users := new(mocks.MockUserRepo)
	mid, _ := newTestMiddleware(users)
	cfg := mocks.NewConfig()

	users.On("GetOne", "user-1").Return(&models.User{ID: "user-1", Role: models.RoleUser, Status: repository.UserAccountActiveStatus}, true, nil)
	users.On("GetOne", "locked").Return(&models.User{ID: "locked", Status: repository.UserAccountLockedStatus}, true, nil)
	users.On("GetOne", "ghost").Return(nil, false, nil)

	var seen *models.User
	handler := mid.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = context.ContextGetAuthenticatedUser(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
		userID string
	}{
		{"anonymous", "", http.StatusNoContent, ""},
		{"valid", "Bearer " + signToken(t, "user-1", cfg.Jwt.SecretKey, cfg.BaseURL), http.StatusNoContent, "user-1"},
		{"wrong secret", "Bearer " + signToken(t, "user-1", "another_secret_another_secret_xx", cfg.BaseURL), http.StatusUnauthorized, ""},
		{"wrong issuer", "Bearer " + signToken(t, "user-1", cfg.Jwt.SecretKey, "http://evil"), http.StatusUnauthorized, ""},
		{"malformed header", "Token abc", http.StatusUnauthorized, ""},
		{"unknown user", "Bearer " + signToken(t, "ghost", cfg.Jwt.SecretKey, cfg.BaseURL), http.StatusUnauthorized, ""},
		{"locked user", "Bearer " + signToken(t, "locked", cfg.Jwt.SecretKey, cfg.BaseURL), http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			if tt.userID == "" {
				assert.Nil(t, seen)
			} else {
				require.NotNil(t, seen)
				assert.Equal(t, tt.userID, seen.ID)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	mid, _ := newTestMiddleware(new(mocks.MockUserRepo))
	handler := mid.RequireRole(models.RoleBank, models.RoleAdmin)(okHandler)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/kyc/submissions/pending", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	for role, status := range map[string]int{
		models.RoleUser:  http.StatusForbidden,
		models.RoleBank:  http.StatusNoContent,
		models.RoleAdmin: http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodGet, "/kyc/submissions/pending", nil)
		req = context.ContextSetAuthenticatedUser(req, &models.User{ID: "u", Role: role})

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, status, rr.Code, role)
	}
}

func TestRecoverPanic(t *testing.T) {
	mid, _ := newTestMiddleware(new(mocks.MockUserRepo))
	handler := mid.RecoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "close", rr.Header().Get("Connection"))
}

func TestRateLimit(t *testing.T) {
	mid, _ := newTestMiddleware(new(mocks.MockUserRepo))
	handler := mid.RateLimit(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestLogAccess(t *testing.T) {
	mid, logs := newTestMiddleware(new(mocks.MockUserRepo))

	rr := httptest.NewRecorder()
	mid.LogAccess(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Contains(t, logs.String(), `"msg":"access"`)
	assert.Contains(t, logs.String(), `"status":204`)
}
