package session

import (
	"context"
	"net/http"
)

// GuardState is the outcome of checking for a stored token.
type GuardState int

const (
	Unauthenticated GuardState = iota
	Authenticated
)

func (g GuardState) String() string {
	if g == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Check decides the guard state from token presence alone. The token is not
// verified; pages behind the guard must not trust it for authorization.
func Check(s Store) GuardState {
	if _, ok := Token(s); ok {
		return Authenticated
	}
	return Unauthenticated
}

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/login"

type ctxKey struct{}

// WithStore adds s to the context.
func WithStore(ctx context.Context, s Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the store added by Middleware, or an empty memory
// store.
func FromContext(ctx context.Context) Store {
	if s, ok := ctx.Value(ctxKey{}).(Store); ok {
		return s
	}
	return NewMemoryStore()
}

// Middleware attaches a CookieStore for the request to its context.
func Middleware(config CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := NewCookieStore(w, r, config)
			next.ServeHTTP(w, r.WithContext(WithStore(r.Context(), s)))
		})
	}
}

// RequireToken redirects to the login page unless a token is stored.
// Use after Middleware.
func RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Check(FromContext(r.Context())) != Authenticated {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
