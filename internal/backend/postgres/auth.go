package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/suanfamama/atelier/internal/backend"
	"github.com/suanfamama/atelier/internal/domain"
	"github.com/suanfamama/atelier/internal/pkg/ctxlog"
)

// ResetMailer delivers password reset links.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

// AuthConfig configures the local auth backend.
type AuthConfig struct {
	ResetTokenDuration time.Duration
	BcryptCost         int
}

// LocalAuth implements backend.Auth against the users table, for
// deployments without a hosted auth service.
type LocalAuth struct {
	db     DB
	tokens *TokenIssuer
	mailer ResetMailer
	config AuthConfig
	now    func() time.Time
}

var _ backend.Auth = (*LocalAuth)(nil)

// NewLocalAuth creates a local auth backend.
func NewLocalAuth(db DB, tokens *TokenIssuer, mailer ResetMailer, config AuthConfig) *LocalAuth {
	if config.ResetTokenDuration == 0 {
		config.ResetTokenDuration = time.Hour
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &LocalAuth{
		db:     db,
		tokens: tokens,
		mailer: mailer,
		config: config,
		now:    time.Now,
	}
}

const userColumns = `id, email, role, created_at, updated_at`

// SignUp creates the account and opens a session for it. Emails are stored
// in lower case.
func (a *LocalAuth) SignUp(ctx context.Context, email, password string, meta backend.SignUpMetadata) (*backend.Session, error) {
	email = backend.NormalizeEmail(email)

	var exists bool
	err := a.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`, email,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, backend.ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := meta.Role
	if !role.IsValid() {
		role = domain.RoleCustomer
	}

	user := &domain.User{
		ID:    uuid.NewString(),
		Email: email,
		Role:  role,
	}

	err = a.db.QueryRow(ctx,
		`INSERT INTO users (id, email, role, password_hash) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		user.ID, user.Email, string(user.Role), string(hash),
	).Scan(&user.CreatedAt)
	if err != nil {
		// A concurrent sign-up can pass the check above and lose on the index.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, backend.ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return a.openSession(ctx, user)
}

// SignIn checks the password and opens a session.
func (a *LocalAuth) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	var (
		user domain.User
		role string
		hash *string
	)
	err := a.db.QueryRow(ctx,
		`SELECT `+userColumns+`, password_hash FROM users WHERE LOWER(email) = LOWER($1)`, email,
	).Scan(&user.ID, &user.Email, &role, &user.CreatedAt, &user.UpdatedAt, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, backend.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.Role = domain.Role(role)

	if hash == nil || bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password)) != nil {
		return nil, backend.ErrInvalidCredentials
	}

	return a.openSession(ctx, &user)
}

// SignOut deletes the session the token belongs to.
func (a *LocalAuth) SignOut(ctx context.Context, accessToken string) error {
	_, sessionID, err := a.tokens.Parse(accessToken)
	if err != nil {
		return err
	}

	if _, err := a.db.Exec(ctx, `DELETE FROM auth_sessions WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CurrentUser resolves a token to its user while the session is still open.
func (a *LocalAuth) CurrentUser(ctx context.Context, accessToken string) (*domain.User, error) {
	userID, sessionID, err := a.tokens.Parse(accessToken)
	if err != nil {
		return nil, err
	}

	var (
		user domain.User
		role string
	)
	err = a.db.QueryRow(ctx,
		`SELECT u.id, u.email, u.role, u.created_at, u.updated_at
		FROM auth_sessions s JOIN users u ON u.id = s.user_id
		WHERE s.id = $1 AND s.user_id = $2 AND s.expires_at > $3`,
		sessionID, userID, a.now(),
	).Scan(&user.ID, &user.Email, &role, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, backend.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("get session user: %w", err)
	}
	user.Role = domain.Role(role)
	return &user, nil
}

// RequestPasswordReset stores a hashed reset token and mails the link.
// Unknown emails succeed silently so the endpoint cannot be used to probe
// for accounts.
func (a *LocalAuth) RequestPasswordReset(ctx context.Context, email, redirectURL string) error {
	var userID, userEmail string
	err := a.db.QueryRow(ctx,
		`SELECT id, email FROM users WHERE LOWER(email) = LOWER($1)`, email,
	).Scan(&userID, &userEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		ctxlog.FromContext(ctx).Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	token, hash, err := newResetToken()
	if err != nil {
		return err
	}

	_, err = a.db.Exec(ctx,
		`INSERT INTO password_resets (token_hash, user_id, expires_at) VALUES ($1, $2, $3)`,
		hash, userID, a.now().Add(a.config.ResetTokenDuration),
	)
	if err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link, err := resetLink(redirectURL, token)
	if err != nil {
		return err
	}

	if err := a.mailer.SendPasswordReset(ctx, userEmail, link); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset token, sets the new password and closes
// every open session of the user.
func (a *LocalAuth) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return backend.ErrInvalidToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), a.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		userID    string
		expiresAt time.Time
	)
	err = tx.QueryRow(ctx,
		`SELECT user_id, expires_at FROM password_resets WHERE token_hash = $1 FOR UPDATE`,
		hashResetToken(token),
	).Scan(&userID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return backend.ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("get reset token: %w", err)
	}
	if !a.now().Before(expiresAt) {
		return backend.ErrTokenExpired
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		string(hash), a.now(), userID,
	); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM password_resets WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete reset tokens: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM auth_sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (a *LocalAuth) openSession(ctx context.Context, user *domain.User) (*backend.Session, error) {
	sessionID := uuid.NewString()

	token, expiresAt, err := a.tokens.Issue(user, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := a.db.Exec(ctx,
		`INSERT INTO auth_sessions (id, user_id, expires_at) VALUES ($1, $2, $3)`,
		sessionID, user.ID, expiresAt,
	); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &backend.Session{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

// resetLink appends the token to the reset page URL.
func resetLink(redirectURL, token string) (string, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("parse reset url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
