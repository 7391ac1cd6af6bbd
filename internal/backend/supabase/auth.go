package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/suanfamama/atelier/internal/backend"
	"github.com/suanfamama/atelier/internal/domain"
)

// gotrueUser is the user object GoTrue returns.
type gotrueUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    *time.Time     `json:"updated_at"`
}

func (u *gotrueUser) toDomain() *domain.User {
	user := &domain.User{
		ID:        u.ID,
		Email:     u.Email,
		Role:      domain.RoleCustomer,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if role, ok := u.UserMetadata["role"].(string); ok && domain.Role(role).IsValid() {
		user.Role = domain.Role(role)
	}
	return user
}

// sessionResponse covers both sign-up answers: a full session, or the bare
// user when email confirmation is pending.
type sessionResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   int         `json:"expires_in"`
	User        *gotrueUser `json:"user"`
	gotrueUser
}

func (r *sessionResponse) toSession() (*backend.Session, error) {
	u := r.User
	if u == nil && r.ID != "" {
		u = &r.gotrueUser
	}
	if u == nil {
		return nil, errors.New("response carries no user")
	}

	s := &backend.Session{
		AccessToken: r.AccessToken,
		User:        u.toDomain(),
	}
	if r.ExpiresIn > 0 {
		s.ExpiresAt = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return s, nil
}

// SignUp registers a new account. The role travels as user metadata.
func (c *Client) SignUp(ctx context.Context, email, password string, meta backend.SignUpMetadata) (*backend.Session, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/signup",
		body: map[string]any{
			"email":    email,
			"password": password,
			"data":     meta,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}

	var out sessionResponse
	if err := decode(resp, &out); err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	return out.toSession()
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/token",
		query:  url.Values{"grant_type": {"password"}},
		body: map[string]string{
			"email":    email,
			"password": password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	var out sessionResponse
	if err := decode(resp, &out); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return out.toSession()
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/logout",
		bearer: accessToken,
	})
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return drain(resp)
}

// CurrentUser resolves the user behind accessToken.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*domain.User, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   authPrefix + "/user",
		bearer: accessToken,
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	var u gotrueUser
	if err := decode(resp, &u); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u.toDomain(), nil
}

// RequestPasswordReset asks GoTrue to mail a recovery link that lands on redirectURL.
func (c *Client) RequestPasswordReset(ctx context.Context, email, redirectURL string) error {
	q := url.Values{}
	if redirectURL != "" {
		q.Set("redirect_to", redirectURL)
	}

	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/recover",
		query:  q,
		body:   map[string]string{"email": email},
	})
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}
	return drain(resp)
}

// ResetPassword verifies the recovery token and sets the new password with
// the short-lived session the verification yields.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/verify",
		body: map[string]string{
			"type":       "recovery",
			"token_hash": token,
		},
	})
	if err != nil {
		return fmt.Errorf("verify reset token: %w", err)
	}

	var out sessionResponse
	if err := decode(resp, &out); err != nil {
		return fmt.Errorf("verify reset token: %w", err)
	}
	if out.AccessToken == "" {
		return fmt.Errorf("verify reset token: %w", backend.ErrInvalidToken)
	}

	resp, err = c.do(ctx, request{
		method: http.MethodPut,
		path:   authPrefix + "/user",
		bearer: out.AccessToken,
		body:   map[string]string{"password": newPassword},
	})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return drain(resp)
}
