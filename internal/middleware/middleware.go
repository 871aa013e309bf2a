package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/trustbond/api/internal/config"
	"github.com/trustbond/api/internal/context"
	"github.com/trustbond/api/internal/errHandler"
	"github.com/trustbond/api/internal/repository"
	"github.com/trustbond/api/internal/response"

	"github.com/pascaldekloe/jwt"
	"github.com/tomasen/realip"
)

type Middleware struct {
	errHandler *errHandler.ErrorHandler
	logger     *slog.Logger
	UserRepo   repository.UserRepository
	config     *config.Config
	limiter    *ipLimiter
}

func New(errHandler *errHandler.ErrorHandler, logger *slog.Logger, UserRepo repository.UserRepository, config *config.Config) *Middleware {
	return &Middleware{
		errHandler: errHandler,
		logger:     logger,
		UserRepo:   UserRepo,
		config:     config,
		limiter:    newIPLimiter(config.Limiter.Rps, config.Limiter.Burst),
	}
}

func (mid *Middleware) RecoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err != nil {
				w.Header().Set("Connection", "close")
				mid.errHandler.ServerError(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (mid *Middleware) LogAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mw := response.NewMetricsResponseWriter(w)
		next.ServeHTTP(mw, r)

		var (
			ip     = realip.FromRequest(r)
			method = r.Method
			url    = r.URL.String()
			proto  = r.Proto
		)

		userAttrs := slog.Group("user", "ip", ip)
		requestAttrs := slog.Group("request", "method", method, "url", url, "proto", proto)
		responseAttrs := slog.Group("response", "status", mw.StatusCode, "size", mw.BytesCount, "duration", time.Since(start).String())

		mid.logger.Info("access", userAttrs, requestAttrs, responseAttrs)
	})
}

// Authenticate resolves a bearer token to a profile. Requests without a token
// continue anonymously; RequireAuthenticatedUser rejects them where needed.
func (mid *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Authorization")

		authorizationHeader := r.Header.Get("Authorization")

		if authorizationHeader != "" {
			headerParts := strings.Split(authorizationHeader, " ")

			if len(headerParts) != 2 || headerParts[0] != "Bearer" {
				mid.errHandler.InvalidAuthenticationToken(w, r)
				return
			}

			token := headerParts[1]

			claims, err := jwt.HMACCheck([]byte(token), []byte(mid.config.Jwt.SecretKey))
			if err != nil {
				mid.errHandler.InvalidAuthenticationToken(w, r)
				return
			}

			if !claims.Valid(time.Now()) {
				mid.errHandler.InvalidAuthenticationToken(w, r)
				return
			}

			if claims.Issuer != mid.config.BaseURL {
				mid.errHandler.InvalidAuthenticationToken(w, r)
				return
			}

			if !claims.AcceptAudience(mid.config.BaseURL) {
				mid.errHandler.InvalidAuthenticationToken(w, r)
				return
			}

			user, found, err := mid.UserRepo.GetOne(claims.Subject)
			if err != nil {
				mid.errHandler.ServerError(w, r, err)
				return
			}

			if !found {
				mid.errHandler.InvalidAuthenticationToken(w, r)
				return
			}

			if user.Status == repository.UserAccountLockedStatus {
				mid.errHandler.AccountLocked(w, r)
				return
			}

			r = context.ContextSetAuthenticatedUser(r, user)
		}

		next.ServeHTTP(w, r)
	})
}

func (mid *Middleware) RequireAuthenticatedUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authenticatedUser := context.ContextGetAuthenticatedUser(r)

		if authenticatedUser == nil {
			mid.errHandler.AuthenticationRequired(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireRole allows only authenticated users holding one of roles.
func (mid *Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mid.RequireAuthenticatedUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := context.ContextGetAuthenticatedUser(r)

			if !user.HasRole(roles...) {
				mid.errHandler.NotPermitted(w, r)
				return
			}

			next.ServeHTTP(w, r)
		}))
	}
}

func (mid *Middleware) RateLimit(next http.Handler) http.Handler {
	if !mid.config.Limiter.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !mid.limiter.allow(realip.FromRequest(r)) {
			mid.errHandler.RateLimitExceeded(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}
