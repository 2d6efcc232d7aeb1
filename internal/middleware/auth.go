package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"

	"github.com/2beens/fitanalysis/internal/telemetry/tracing"
	"github.com/2beens/fitanalysis/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=auth_mocks_test.go -package=middleware

const AuthTokenHeader = "X-FIT-TOKEN"

type secretChecker interface {
	IsValid(ctx context.Context, token string) (bool, error)
}

// BcryptSecretChecker validates client tokens against the bcrypt hash of the
// app secret. Verified tokens are remembered, bcrypt is slow on purpose.
type BcryptSecretChecker struct {
	hash     string
	verified sync.Map
}

func NewBcryptSecretChecker(hash string) *BcryptSecretChecker {
	return &BcryptSecretChecker{hash: hash}
}

func (c *BcryptSecretChecker) IsValid(_ context.Context, token string) (bool, error) {
	if c.hash == "" || token == "" {
		return false, nil
	}
	if _, ok := c.verified.Load(token); ok {
		return true, nil
	}
	if !pkg.CheckPasswordHash(token, c.hash) {
		return false, nil
	}
	c.verified.Store(token, struct{}{})
	return true, nil
}

type AuthMiddlewareHandler struct {
	checker      secretChecker
	allowedPaths map[string]bool
}

func NewAuthMiddlewareHandler(checker secretChecker) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		checker: checker,
		allowedPaths: map[string]bool{
			"/":       true,
			"/health": true,
			"/tests":  true,
		},
	}
}

func tokenFromRequest(r *http.Request) string {
	if token := r.Header.Get(AuthTokenHeader); token != "" {
		return token
	}
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(bearer)
	}
	return ""
}

func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, DELETE, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.allowedPaths[r.URL.Path] {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			authToken := tokenFromRequest(r)
			if authToken == "" {
				log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "missing-auth-token")
				return
			}

			valid, err := h.checker.IsValid(ctx, authToken)
			if err != nil {
				log.Errorf("[failed token check] => %s: %s", r.URL.Path, err)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "check-token-err")
				span.RecordError(err)
				return
			}
			if !valid {
				log.Tracef("[invalid token] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "invalid-token")
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
