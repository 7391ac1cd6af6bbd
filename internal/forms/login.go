package forms

import (
	"context"
	"errors"

	"github.com/suanfamama/atelier/internal/facade"
	"github.com/suanfamama/atelier/internal/pkg/ctxlog"
	"github.com/suanfamama/atelier/internal/session"
	"github.com/suanfamama/atelier/internal/validation"
)

// FieldRememberMe is the login checkbox.
const FieldRememberMe = "rememberMe"

// Login controls the login form.
type Login struct {
	form
	facade Facade
}

// NewLogin creates a login controller.
func NewLogin(f Facade) *Login {
	return &Login{form: newForm(nil), facade: f}
}

// SetRemember sets the remember-me checkbox.
func (c *Login) SetRemember(remember bool) {
	v := ""
	if remember {
		v = "true"
	}
	c.Set(FieldRememberMe, v)
}

// Submit signs in and stores the token in the scope chosen by remember-me.
func (c *Login) Submit(ctx context.Context, store session.Store) (*Navigation, error) {
	values, err := c.begin()
	if err != nil {
		return nil, err
	}

	email := values[validation.FieldEmail]
	password := values[validation.FieldPassword]
	remember := values[FieldRememberMe] != ""

	if errs := validation.Login(email, password); !errs.Valid() {
		c.fail(errs)
		return nil, &FieldError{Errors: errs}
	}

	resp, err := c.facade.Login(ctx, email, password, remember)
	if err != nil {
		msg := facade.MsgInvalidCredentials
		var ferr *facade.Error
		if errors.As(err, &ferr) && ferr.Message != "" {
			msg = ferr.Message
		}
		fe := formError(msg)
		c.fail(fe.Errors)
		return nil, fe
	}

	if err := session.SaveLogin(store, resp, remember); err != nil {
		ctxlog.FromContext(ctx).Error("store login session", "error", err)
	}

	c.succeed("")
	return &Navigation{To: "/dashboard"}, nil
}
