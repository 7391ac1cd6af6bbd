// Package facade adapts a backend client to the operations the screens and
// the JSON API consume.
package facade

import (
	"context"
	"fmt"
	"time"

	"github.com/suanfamama/atelier/internal/backend"
	"github.com/suanfamama/atelier/internal/cache"
	"github.com/suanfamama/atelier/internal/domain"
	"github.com/suanfamama/atelier/internal/pkg/ctxlog"
	"github.com/suanfamama/atelier/internal/pkg/metrics"
	"github.com/suanfamama/atelier/internal/validation"
	"golang.org/x/sync/errgroup"
)

// Operation names used in errors, logs and metrics.
const (
	opSignUp         = "sign_up"
	opLogin          = "login"
	opLogout         = "logout"
	opCurrentUser    = "current_user"
	opForgotPassword = "forgot_password"
	opResetPassword  = "reset_password"
	opValidateEmail  = "validate_email"
	opCollections    = "featured_collections"
	opNews           = "latest_news"
	opStats          = "platform_stats"
	opProfileUpsert  = "profile_upsert"
)

const defaultNewsLimit = 5

// Config controls the facade.
type Config struct {
	// Fallback serves cached or sample content when a display read fails.
	Fallback bool
	// NewsLimit caps LatestNews.
	NewsLimit int
	// CacheTTL bounds how long a last-known-good read is kept. Zero keeps it
	// until replaced.
	CacheTTL time.Duration
	// ResetURL is the page reset links point to.
	ResetURL string
}

// Service is the single entry point from the screens to the backend.
type Service struct {
	backend backend.Client
	cache   cache.Cache
	config  Config
}

// NewService creates a new facade. A nil cache disables last-known-good
// fallback; sample content is still used.
func NewService(client backend.Client, c cache.Cache, config Config) *Service {
	if config.NewsLimit <= 0 {
		config.NewsLimit = defaultNewsLimit
	}
	return &Service{
		backend: client,
		cache:   c,
		config:  config,
	}
}

// SignUp registers an account. Mismatched passwords are rejected before the
// backend is called.
func (s *Service) SignUp(ctx context.Context, email, password, confirmPassword string, role domain.Role) (*domain.AuthResponse, error) {
	if password != confirmPassword {
		return nil, &ValidationError{Errors: validation.Errors{
			validation.FieldConfirmPassword: validation.MsgPasswordMismatch,
		}}
	}

	start := time.Now()
	session, err := s.backend.SignUp(ctx, email, password, backend.SignUpMetadata{Role: role})
	metrics.ObserveBackendCall(opSignUp, start, err)
	if err != nil {
		ctxlog.FromContext(ctx).Error("sign up failed", "error", err)
		return nil, wrap(opSignUp, err)
	}

	if session.User != nil {
		s.upsertProfile(ctx, session.User, role)
	}

	return &domain.AuthResponse{Token: session.AccessToken, User: session.User}, nil
}

// upsertProfile mirrors the new account into the users table. Failures are
// logged and otherwise ignored.
func (s *Service) upsertProfile(ctx context.Context, user *domain.User, role domain.Role) {
	profile := *user
	if !profile.Role.IsValid() {
		profile.Role = role
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	err := s.backend.Upsert(ctx, backend.TableUsers, profile)
	metrics.ObserveBackendCall(opProfileUpsert, start, err)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("profile upsert failed", "user_id", user.ID, "error", err)
	}
}

// Login signs in. rememberMe only affects how the caller stores the token.
func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool) (*domain.AuthResponse, error) {
	start := time.Now()
	session, err := s.backend.SignIn(ctx, email, password)
	metrics.ObserveBackendCall(opLogin, start, err)
	if err != nil {
		ctxlog.FromContext(ctx).Info("login failed", "remember_me", rememberMe, "error", err)
		return nil, wrap(opLogin, err)
	}

	return &domain.AuthResponse{Token: session.AccessToken, User: session.User}, nil
}

// Logout ends the session behind token.
func (s *Service) Logout(ctx context.Context, token string) error {
	start := time.Now()
	err := s.backend.SignOut(ctx, token)
	metrics.ObserveBackendCall(opLogout, start, err)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("logout failed", "error", err)
		return wrap(opLogout, err)
	}
	return nil
}

// CurrentUser resolves token to its account.
func (s *Service) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	start := time.Now()
	user, err := s.backend.CurrentUser(ctx, token)
	metrics.ObserveBackendCall(opCurrentUser, start, err)
	if err != nil {
		return nil, wrap(opCurrentUser, err)
	}
	return user, nil
}

// ForgotPassword asks the backend to mail a reset link.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	start := time.Now()
	err := s.backend.RequestPasswordReset(ctx, email, s.config.ResetURL)
	metrics.ObserveBackendCall(opForgotPassword, start, err)
	if err != nil {
		ctxlog.FromContext(ctx).Error("password reset request failed", "error", err)
		return wrap(opForgotPassword, err)
	}
	return nil
}

// ResetPassword sets a new password using a reset token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return wrap(opResetPassword, backend.ErrInvalidToken)
	}

	start := time.Now()
	err := s.backend.ResetPassword(ctx, token, newPassword)
	metrics.ObserveBackendCall(opResetPassword, start, err)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("password reset failed", "error", err)
		return wrap(opResetPassword, err)
	}
	return nil
}

// ValidateEmail reports whether email is free to register. When the lookup
// fails and fallback is on, the address is reported as available and the
// backend decides at sign-up.
func (s *Service) ValidateEmail(ctx context.Context, email string) (bool, error) {
	var rows []struct {
		ID string `json:"id"`
	}

	start := time.Now()
	err := s.backend.Select(ctx,
		backend.From(backend.TableUsers).Select("id").Eq("email", backend.NormalizeEmail(email)).WithLimit(1),
		&rows,
	)
	metrics.ObserveBackendCall(opValidateEmail, start, err)
	if err != nil {
		if !s.config.Fallback {
			return false, wrap(opValidateEmail, err)
		}
		ctxlog.FromContext(ctx).Warn("email lookup failed, assuming available", "error", err)
		metrics.RecordFallback(opValidateEmail, "default")
		return true, nil
	}

	return len(rows) == 0, nil
}

// FeaturedCollections returns the collections shown on the landing page.
func (s *Service) FeaturedCollections(ctx context.Context) ([]domain.FeaturedCollection, error) {
	return read(ctx, s, opCollections, func(ctx context.Context) ([]domain.FeaturedCollection, error) {
		var rows []domain.FeaturedCollection
		err := s.backend.Select(ctx,
			backend.From(backend.TableFeaturedCollections).Eq("is_featured", true),
			&rows,
		)
		return rows, err
	}, isEmpty[domain.FeaturedCollection], sampleCollections)
}

// LatestNews returns the newest published news items.
func (s *Service) LatestNews(ctx context.Context) ([]domain.NewsItem, error) {
	return read(ctx, s, opNews, func(ctx context.Context) ([]domain.NewsItem, error) {
		var rows []domain.NewsItem
		err := s.backend.Select(ctx,
			backend.From(backend.TableNewsItems).
				Eq("is_published", true).
				OrderBy("published_at", true).
				WithLimit(s.config.NewsLimit),
			&rows,
		)
		return rows, err
	}, isEmpty[domain.NewsItem], sampleNews)
}

// PlatformStats counts designers, collections and users.
func (s *Service) PlatformStats(ctx context.Context) (domain.PlatformStats, error) {
	return read(ctx, s, opStats, func(ctx context.Context) (domain.PlatformStats, error) {
		var (
			stats domain.PlatformStats
			err   error
		)
		stats.TotalDesigners, err = s.backend.Count(ctx,
			backend.From(backend.TableUsers).Eq("role", string(domain.RoleDesigner)))
		if err != nil {
			return stats, fmt.Errorf("count designers: %w", err)
		}
		stats.TotalCollections, err = s.backend.Count(ctx, backend.From(backend.TableCollections))
		if err != nil {
			return stats, fmt.Errorf("count collections: %w", err)
		}
		stats.TotalUsers, err = s.backend.Count(ctx, backend.From(backend.TableUsers))
		if err != nil {
			return stats, fmt.Errorf("count users: %w", err)
		}
		return stats, nil
	}, func(domain.PlatformStats) bool { return false }, sampleStats)
}

// LandingContent fetches collections, news and stats concurrently.
func (s *Service) LandingContent(ctx context.Context) (*domain.LandingContent, error) {
	var content domain.LandingContent

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		content.Collections, err = s.FeaturedCollections(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		content.News, err = s.LatestNews(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		content.Stats, err = s.PlatformStats(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &content, nil
}

func isEmpty[T any](rows []T) bool {
	return len(rows) == 0
}

// read runs load and applies the fallback policy: a failed read is answered
// from the last-known-good cache, then from sample content. An empty live
// result is answered with sample content.
func read[T any](
	ctx context.Context,
	s *Service,
	op string,
	load func(context.Context) (T, error),
	empty func(T) bool,
	sample func() T,
) (T, error) {
	logger := ctxlog.FromContext(ctx)

	start := time.Now()
	v, err := load(ctx)
	metrics.ObserveBackendCall(op, start, err)

	if err == nil {
		if !empty(v) {
			s.remember(ctx, op, v)
			return v, nil
		}
		if !s.config.Fallback {
			return v, nil
		}
		logger.Debug("live content empty, serving sample", "content", op)
		metrics.RecordFallback(op, "sample")
		return sample(), nil
	}

	if !s.config.Fallback {
		var zero T
		return zero, wrap(op, err)
	}

	if s.cache != nil {
		var cached T
		found, cerr := s.cache.Get(ctx, op, &cached)
		if cerr != nil {
			logger.Warn("read cached content", "content", op, "error", cerr)
		}
		if found {
			logger.Warn("backend read failed, serving cached content", "content", op, "error", err)
			metrics.RecordFallback(op, "cache")
			return cached, nil
		}
	}

	logger.Warn("backend read failed, serving sample content", "content", op, "error", err)
	metrics.RecordFallback(op, "sample")
	return sample(), nil
}

func (s *Service) remember(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, v, s.config.CacheTTL); err != nil {
		ctxlog.FromContext(ctx).Warn("cache content", "content", key, "error", err)
	}
}
