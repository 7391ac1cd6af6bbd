// Package backend defines the narrow surface the facade needs from the hosted
// auth and database service.
package backend

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/suanfamama/atelier/internal/domain"
)

// Backend errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrUnknownTable       = errors.New("unknown table")
)

// Table names shared by every backend.
const (
	TableUsers               = "users"
	TableCollections         = "collections"
	TableFeaturedCollections = "featured_collections"
	TableNewsItems           = "news_items"
)

// Session is what the auth backend returns after sign-up or sign-in.
// AccessToken may be empty when the backend requires email confirmation first.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	User        *domain.User
}

// SignUpMetadata is stored alongside the new account.
type SignUpMetadata struct {
	Role domain.Role `json:"role"`
}

// Auth is the authentication half of the backend.
type Auth interface {
	SignUp(ctx context.Context, email, password string, meta SignUpMetadata) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	CurrentUser(ctx context.Context, accessToken string) (*domain.User, error)
	RequestPasswordReset(ctx context.Context, email, redirectURL string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Store is the table half of the backend.
type Store interface {
	// Select decodes matching rows into dest, which must be a pointer to a slice.
	Select(ctx context.Context, q Query, dest any) error
	Count(ctx context.Context, q Query) (int, error)
	// Upsert inserts row or merges it into the existing row with the same key.
	Upsert(ctx context.Context, table string, row any) error
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Client bundles both halves.
type Client interface {
	Auth
	Store
}

// NormalizeEmail is the form emails are stored and compared in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
