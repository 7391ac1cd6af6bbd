package forms

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suanfamama/atelier/internal/backend"
	"github.com/suanfamama/atelier/internal/domain"
	"github.com/suanfamama/atelier/internal/facade"
	"github.com/suanfamama/atelier/internal/session"
	"github.com/suanfamama/atelier/internal/validation"
)

// fakeFacade records calls and returns canned results.
type fakeFacade struct {
	mu    sync.Mutex
	calls []string

	available   bool
	availErr    error
	signUpErr   error
	loginErr    error
	forgotErr   error
	resetErr    error
	remembered  bool
	block       chan struct{}
	loginCalled chan struct{}
}

func newFakeFacade() *fakeFacade {
	return &fakeFacade{available: true}
}

func (f *fakeFacade) record(c string) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeFacade) SignUp(_ context.Context, email, _, _ string, role domain.Role) (*domain.AuthResponse, error) {
	f.record("SignUp")
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return &domain.AuthResponse{Token: "tok", User: &domain.User{ID: "u-1", Email: email, Role: role}}, nil
}

func (f *fakeFacade) Login(_ context.Context, email, _ string, remember bool) (*domain.AuthResponse, error) {
	f.record("Login")
	f.remembered = remember
	if f.loginCalled != nil {
		close(f.loginCalled)
	}
	if f.block != nil {
		<-f.block
	}
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &domain.AuthResponse{Token: "tok", User: &domain.User{ID: "u-1", Email: email}}, nil
}

func (f *fakeFacade) ForgotPassword(context.Context, string) error {
	f.record("ForgotPassword")
	return f.forgotErr
}

func (f *fakeFacade) ResetPassword(context.Context, string, string) error {
	f.record("ResetPassword")
	return f.resetErr
}

func (f *fakeFacade) ValidateEmail(context.Context, string) (bool, error) {
	f.record("ValidateEmail")
	return f.available, f.availErr
}

func fillSignUp(c *SignUp, email, password, confirm, role string) {
	c.Set(validation.FieldEmail, email)
	c.Set(validation.FieldPassword, password)
	c.Set(validation.FieldConfirmPassword, confirm)
	c.Set(validation.FieldRole, role)
}

func TestSignUp_DefaultRole(t *testing.T) {
	c := NewSignUp(newFakeFacade())
	assert.Equal(t, "customer", c.Value(validation.FieldRole))
	assert.Equal(t, Idle, c.State())
}

func TestSignUp_Success(t *testing.T) {
	f := newFakeFacade()
	store := session.NewMemoryStore()
	c := NewSignUp(f)
	fillSignUp(c, "new@x.com", "Abcdef12", "Abcdef12", "designer")

	nav, err := c.Submit(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, "/login", nav.To)
	assert.Equal(t, MsgAccountCreated, nav.Flash)
	assert.Equal(t, "new@x.com", nav.Prefill["email"])
	assert.Equal(t, Success, c.State())

	token, ok := session.Token(store)
	require.True(t, ok)
	assert.Equal(t, "tok", token)
	assert.Equal(t, []string{"ValidateEmail", "SignUp"}, f.calls)
}

func TestSignUp_ValidationFailure(t *testing.T) {
	f := newFakeFacade()
	store := session.NewMemoryStore()
	c := NewSignUp(f)
	fillSignUp(c, "bad", "short", "other", "")

	_, err := c.Submit(context.Background(), store)

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, validation.MsgEmailInvalid, fe.Errors[validation.FieldEmail])
	assert.Equal(t, validation.MsgPasswordTooShort, fe.Errors[validation.FieldPassword])
	assert.Equal(t, validation.MsgPasswordMismatch, fe.Errors[validation.FieldConfirmPassword])
	assert.Equal(t, validation.MsgRoleRequired, fe.Errors[validation.FieldRole])
	assert.Equal(t, Failed, c.State())
	assert.Empty(t, f.calls, "invalid email skips the availability check")

	_, ok := session.Token(store)
	assert.False(t, ok)

	// Values survive the failure, passwords included.
	assert.Equal(t, "short", c.Value(validation.FieldPassword))

	// Editing a field clears its error and returns to Idle.
	c.Set(validation.FieldEmail, "new@x.com")
	assert.Equal(t, Idle, c.State())
	_, has := c.Errors()[validation.FieldEmail]
	assert.False(t, has)
	assert.Contains(t, c.Errors(), validation.FieldPassword)
}

func TestSignUp_EmailTaken(t *testing.T) {
	f := newFakeFacade()
	f.available = false
	c := NewSignUp(f)
	fillSignUp(c, "existing@example.com", "Abcdef12", "Abcdef12", "buyer")

	_, err := c.Submit(context.Background(), session.NewMemoryStore())
	require.Error(t, err)
	assert.Equal(t, validation.MsgEmailTaken, c.Errors()[validation.FieldEmail])
	assert.Equal(t, []string{"ValidateEmail"}, f.calls)
}

func TestSignUp_AvailabilityErrorIgnored(t *testing.T) {
	f := newFakeFacade()
	f.available = false
	f.availErr = errors.New("down")
	c := NewSignUp(f)
	fillSignUp(c, "new@x.com", "Abcdef12", "Abcdef12", "buyer")

	_, err := c.Submit(context.Background(), session.NewMemoryStore())
	require.NoError(t, err)
}

func TestSignUp_BackendFailure(t *testing.T) {
	f := newFakeFacade()
	f.signUpErr = &facade.Error{Op: "sign_up", Message: "Email is already registered"}
	c := NewSignUp(f)
	fillSignUp(c, "new@x.com", "Abcdef12", "Abcdef12", "buyer")

	_, err := c.Submit(context.Background(), session.NewMemoryStore())
	require.Error(t, err)
	assert.Equal(t, "Email is already registered", c.Errors()[validation.FieldForm])
	assert.Equal(t, Failed, c.State())

	// A failed form accepts a new submit.
	f.signUpErr = nil
	_, err = c.Submit(context.Background(), session.NewMemoryStore())
	require.NoError(t, err)
}

func TestLogin_RememberFalse(t *testing.T) {
	f := newFakeFacade()
	store := session.NewMemoryStore()
	store.Set(session.Durable, session.KeyToken, "stale")

	c := NewLogin(f)
	c.Set(validation.FieldEmail, "a@b.co")
	c.Set(validation.FieldPassword, "Abcdef12")
	c.SetRemember(false)

	nav, err := c.Submit(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", nav.To)
	assert.False(t, f.remembered)

	tok, ok := store.Get(session.Session, session.KeyToken)
	require.True(t, ok)
	assert.Equal(t, "tok", tok)
	_, ok = store.Get(session.Durable, session.KeyToken)
	assert.False(t, ok)
}

func TestLogin_RememberTrue(t *testing.T) {
	f := newFakeFacade()
	store := session.NewMemoryStore()

	c := NewLogin(f)
	c.Set(validation.FieldEmail, "a@b.co")
	c.Set(validation.FieldPassword, "Abcdef12")
	c.SetRemember(true)

	_, err := c.Submit(context.Background(), store)
	require.NoError(t, err)
	assert.True(t, f.remembered)

	_, ok := store.Get(session.Durable, session.KeyToken)
	assert.True(t, ok)
}

func TestLogin_Errors(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		f := newFakeFacade()
		c := NewLogin(f)
		c.Set(validation.FieldEmail, "a@b.co")

		_, err := c.Submit(context.Background(), session.NewMemoryStore())
		require.Error(t, err)
		assert.Equal(t, validation.MsgLoginMissing, err.Error())
		assert.Empty(t, f.calls)
	})

	t.Run("facade message", func(t *testing.T) {
		f := newFakeFacade()
		f.loginErr = &facade.Error{Message: "Email not confirmed"}
		c := NewLogin(f)
		c.Set(validation.FieldEmail, "a@b.co")
		c.Set(validation.FieldPassword, "x")

		_, err := c.Submit(context.Background(), session.NewMemoryStore())
		require.Error(t, err)
		assert.Equal(t, "Email not confirmed", c.Errors()[validation.FieldForm])
	})

	t.Run("default message", func(t *testing.T) {
		f := newFakeFacade()
		f.loginErr = errors.New("boom")
		c := NewLogin(f)
		c.Set(validation.FieldEmail, "a@b.co")
		c.Set(validation.FieldPassword, "x")

		_, err := c.Submit(context.Background(), session.NewMemoryStore())
		require.Error(t, err)
		assert.Equal(t, "Invalid email or password", err.Error())
	})
}

func TestLogin_SubmitWhileSubmitting(t *testing.T) {
	f := newFakeFacade()
	f.block = make(chan struct{})
	f.loginCalled = make(chan struct{})

	c := NewLogin(f)
	c.Set(validation.FieldEmail, "a@b.co")
	c.Set(validation.FieldPassword, "x")

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), session.NewMemoryStore())
		done <- err
	}()

	<-f.loginCalled
	assert.Equal(t, Submitting, c.State())

	_, err := c.Submit(context.Background(), session.NewMemoryStore())
	require.ErrorIs(t, err, ErrSubmitInProgress)

	close(f.block)
	require.NoError(t, <-done)
	assert.Equal(t, Success, c.State())
}

func TestForgot(t *testing.T) {
	t.Run("invalid email", func(t *testing.T) {
		c := NewForgot(newFakeFacade())
		c.Set(validation.FieldEmail, "nope")

		err := c.Submit(context.Background())
		require.Error(t, err)
		assert.Equal(t, validation.MsgForgotEmailInvalid, err.Error())
	})

	t.Run("success", func(t *testing.T) {
		c := NewForgot(newFakeFacade())
		c.Set(validation.FieldEmail, "a@b.co")

		require.NoError(t, c.Submit(context.Background()))
		assert.Equal(t, MsgResetLinkSent, c.Notice())
		assert.Equal(t, Success, c.State())
	})

	t.Run("backend failure", func(t *testing.T) {
		f := newFakeFacade()
		f.forgotErr = errors.New("smtp down")
		c := NewForgot(f)
		c.Set(validation.FieldEmail, "a@b.co")

		err := c.Submit(context.Background())
		require.Error(t, err)
		assert.Equal(t, MsgForgotFailed, c.Errors()[validation.FieldForm])
		assert.Empty(t, c.Notice())
	})
}

func TestReset(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		f := newFakeFacade()
		c := NewReset(f, "")
		assert.Equal(t, MsgResetNoToken, c.Errors()[validation.FieldForm])

		c.Set(validation.FieldPassword, "Abcdef12")
		c.Set(validation.FieldConfirmPassword, "Abcdef12")
		err := c.Submit(context.Background())
		require.Error(t, err)
		assert.Equal(t, MsgResetNoToken, err.Error())
		assert.Empty(t, f.calls)
	})

	t.Run("first message in field order", func(t *testing.T) {
		c := NewReset(newFakeFacade(), "tok")
		c.Set(validation.FieldPassword, "short")

		err := c.Submit(context.Background())
		require.Error(t, err)
		assert.Equal(t, validation.MsgPasswordTooShortRst, err.Error())
	})

	t.Run("success", func(t *testing.T) {
		c := NewReset(newFakeFacade(), "tok")
		c.Set(validation.FieldPassword, "Abcdef12")
		c.Set(validation.FieldConfirmPassword, "Abcdef12")

		require.NoError(t, c.Submit(context.Background()))
		assert.Equal(t, MsgResetDone, c.Notice())
	})

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "expired", err: errors.New("Reset token has expired"), want: MsgResetExpired},
		{name: "invalid", err: errors.New("Reset token is invalid"), want: MsgResetBadToken},
		{name: "other", err: errors.New("Password should be different"), want: "Password should be different"},
		{name: "empty", err: errors.New(""), want: MsgResetFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFacade()
			f.resetErr = tt.err
			c := NewReset(f, "tok")
			c.Set(validation.FieldPassword, "Abcdef12")
			c.Set(validation.FieldConfirmPassword, "Abcdef12")

			require.Error(t, c.Submit(context.Background()))
			assert.Equal(t, tt.want, c.Errors()[validation.FieldForm])
		})
	}
}

func TestInflight(t *testing.T) {
	g := NewInflight()

	release, err := g.Acquire("login:a@b.co")
	require.NoError(t, err)

	_, err = g.Acquire("login:a@b.co")
	require.ErrorIs(t, err, ErrSubmitInProgress)

	other, err := g.Acquire("login:c@d.co")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := g.Acquire("login:a@b.co")
	require.NoError(t, err)
	again()
}

// acceptingBackend accepts every call.
type acceptingBackend struct{}

func (acceptingBackend) SignUp(_ context.Context, email, _ string, meta backend.SignUpMetadata) (*backend.Session, error) {
	return &backend.Session{AccessToken: "tok", User: &domain.User{ID: "u-1", Email: email, Role: meta.Role}}, nil
}
func (acceptingBackend) SignIn(context.Context, string, string) (*backend.Session, error) {
	return nil, backend.ErrInvalidCredentials
}
func (acceptingBackend) SignOut(context.Context, string) error { return nil }
func (acceptingBackend) CurrentUser(context.Context, string) (*domain.User, error) {
	return nil, backend.ErrInvalidToken
}
func (acceptingBackend) RequestPasswordReset(context.Context, string, string) error { return nil }
func (acceptingBackend) ResetPassword(context.Context, string, string) error        { return nil }
func (acceptingBackend) Select(context.Context, backend.Query, any) error           { return nil }
func (acceptingBackend) Count(context.Context, backend.Query) (int, error)          { return 0, nil }
func (acceptingBackend) Upsert(context.Context, string, any) error                  { return nil }

func TestSignUp_EndToEnd(t *testing.T) {
	svc := facade.NewService(acceptingBackend{}, nil, facade.Config{Fallback: true})
	store := session.NewMemoryStore()

	c := NewSignUp(svc)
	fillSignUp(c, "new@x.com", "Abcdef12", "Abcdef12", "designer")

	nav, err := c.Submit(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, &Navigation{
		To:      "/login",
		Flash:   "Account created successfully! Please log in to continue.",
		Prefill: map[string]string{"email": "new@x.com"},
	}, nav)

	user, ok := session.User(store)
	require.True(t, ok)
	assert.Equal(t, domain.RoleDesigner, user.Role)
}
