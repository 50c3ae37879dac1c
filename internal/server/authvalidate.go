package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kasirpos/platform/internal/domain"
)

// AuthContext is the authenticated identity attached to a request after
// successful token validation. It lives only for the request; it is never
// persisted or forwarded as a separate call.
type AuthContext struct {
	UserID int64    `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
}

type authContextKey struct{}

// GetAuthContext retrieves the authenticated identity from context.
func GetAuthContext(ctx context.Context) *AuthContext {
	if ac, ok := ctx.Value(authContextKey{}).(*AuthContext); ok {
		return ac
	}
	return nil
}

// TokenValidator delegates bearer-token verification to the auth service.
type TokenValidator struct {
	validateURL string
	client      *http.Client
}

// NewTokenValidator builds a validator for the auth service at base
// (e.g. http://auth-service).
func NewTokenValidator(base string) *TokenValidator {
	return &TokenValidator{
		validateURL: strings.TrimRight(base, "/") + "/api/auth/validate",
		client:      &http.Client{Timeout: 5 * time.Second},
	}
}

// Validate checks the token against the auth service. A non-success
// response maps to an invalid-token error (401); a transport failure maps
// to auth-service-unavailable (503).
func (v *TokenValidator) Validate(ctx context.Context, token string) (*AuthContext, *domain.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.validateURL, nil)
	if err != nil {
		return nil, domain.ErrDependency("Authentication service unavailable").Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, domain.ErrDependency("Authentication service unavailable").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.ErrAuthentication("Invalid token")
	}

	var body struct {
		User AuthContext `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, domain.ErrAuthentication("Invalid token")
	}

	return &body.User, nil
}

// AuthMiddleware validates the bearer token and injects the authenticated
// identity into the request context for downstream handlers.
func AuthMiddleware(validator *TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				WriteError(w, domain.ErrAuthentication("Token not provided"))
				return
			}

			ac, verr := validator.Validate(r.Context(), token)
			if verr != nil {
				WriteError(w, verr)
				return
			}

			ctx := context.WithValue(r.Context(), authContextKey{}, ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the bearer token from the Authorization header.
// Returns an empty string when the header is missing or not Bearer-shaped.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
