package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httputil"
)

type contextKey string

const identityKey contextKey = "identity"

// HeaderGuestToken carries the opaque guest cart token in both directions.
const HeaderGuestToken = "X-Guest-Token"

// Authenticator resolves the caller identity once at the boundary. Downstream
// handlers read the resolved domain.Identity from the request context and
// never look at raw credentials.
type Authenticator struct {
	jwt *auth.JWTManager
}

// NewAuthenticator creates an authenticator backed by the given JWT manager.
func NewAuthenticator(jwt *auth.JWTManager) *Authenticator {
	return &Authenticator{jwt: jwt}
}

// Resolve parses the Authorization header into a user identity when a valid
// bearer token is present, otherwise falls back to the guest token header. An
// invalid bearer token is rejected outright rather than downgraded to guest.
func (a *Authenticator) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := domain.Identity{}

		if header := r.Header.Get("Authorization"); header != "" {
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeUnauthorized(w, "malformed Authorization header")
				return
			}
			claims, err := a.jwt.ValidateToken(token)
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}
			identity = domain.UserIdentity(claims.UserID, claims.Role)
		} else if token := r.Header.Get(HeaderGuestToken); token != "" {
			identity = domain.GuestIdentity(token)
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

// EnsureGuestToken mints a guest token for anonymous callers on cart-facing
// routes and echoes the effective guest token back so clients can persist it.
func EnsureGuestToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := identityFrom(r.Context())

		if identity.IsZero() {
			identity = domain.GuestIdentity(auth.NewGuestToken())
			r = r.WithContext(withIdentity(r.Context(), identity))
		}
		if identity.IsGuest() {
			w.Header().Set(HeaderGuestToken, identity.GuestToken)
		}

		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects callers without a registered-user identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identityFrom(r.Context()).IsUser() {
			writeUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects callers without the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := identityFrom(r.Context())
		if !identity.IsUser() {
			writeUnauthorized(w, "authentication required")
			return
		}
		if !identity.IsAdmin() {
			httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "FORBIDDEN", Message: "admin access required"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func identityFrom(ctx context.Context) domain.Identity {
	if identity, ok := ctx.Value(identityKey).(domain.Identity); ok {
		return identity
	}
	return domain.Identity{}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: message},
	})
}

// ContentTypeJSON sets the response content type for API routes.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
