package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// AdminKeyHeader carries the operator API key on administrative routes
const AdminKeyHeader = "X-API-Key"

type ctxKey string

const userKey ctxKey = "user"

// Authenticator resolves a bearer token to an active account
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*entities.User, error)
}

// UserFromContext returns the authenticated user, or nil for anonymous requests
func UserFromContext(ctx context.Context) *entities.User {
	u, _ := ctx.Value(userKey).(*entities.User)
	return u
}

// WithUser attaches an authenticated user to ctx
func WithUser(ctx context.Context, user *entities.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// OptionalAuth attaches the bearer token's user when one is sent. Requests without a token pass
// through anonymously; a bad token is rejected rather than silently downgraded.
func OptionalAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireUser rejects anonymous requests
func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			WriteError(w, apperrors.NewUnauthorizedError("authentication required"))
			return
		}
		next(w, r)
	}
}

// RequireAdminKey guards operator routes with a static API key. An empty key disables them.
func RequireAdminKey(key string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				WriteError(w, apperrors.NewForbiddenError("admin access is not configured"))
				return
			}
			sent := r.Header.Get(AdminKeyHeader)
			if sent == "" {
				WriteError(w, apperrors.NewUnauthorizedError("admin key required"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(sent), []byte(key)) != 1 {
				WriteError(w, apperrors.NewForbiddenError("invalid admin key"))
				return
			}
			next(w, r)
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", true
	}
	return strings.TrimSpace(token), true
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrorTypeForbidden:
		return http.StatusForbidden
	case apperrors.ErrorTypeStorage:
		return http.StatusServiceUnavailable
	case apperrors.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// WriteError writes err as {"error": kind, "detail": message}. Internal causes are not exposed.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	body := ErrorBody{Error: string(apperrors.TypeOf(err)), Detail: "internal server error"}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Type != apperrors.ErrorTypeInternal {
		body.Detail = appErr.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
