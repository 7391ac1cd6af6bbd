package forms

import (
	"context"
	"errors"
	"maps"

	"github.com/suanfamama/atelier/internal/domain"
	"github.com/suanfamama/atelier/internal/facade"
	"github.com/suanfamama/atelier/internal/pkg/ctxlog"
	"github.com/suanfamama/atelier/internal/session"
	"github.com/suanfamama/atelier/internal/validation"
)

// MsgAccountCreated is flashed on the login page after sign-up.
const MsgAccountCreated = "Account created successfully! Please log in to continue."

// SignUp controls the sign-up form.
type SignUp struct {
	form
	facade Facade
}

// NewSignUp creates a sign-up controller with the role preset to customer.
func NewSignUp(f Facade) *SignUp {
	return &SignUp{
		form: newForm(map[string]string{
			validation.FieldRole: string(domain.RoleCustomer),
		}),
		facade: f,
	}
}

// Submit validates the form, registers the account, stores the session and
// returns the navigation to the login page.
func (c *SignUp) Submit(ctx context.Context, store session.Store) (*Navigation, error) {
	values, err := c.begin()
	if err != nil {
		return nil, err
	}

	in := validation.SignUpInput{
		Email:           values[validation.FieldEmail],
		Password:        values[validation.FieldPassword],
		ConfirmPassword: values[validation.FieldConfirmPassword],
		Role:            values[validation.FieldRole],
	}

	errs := validation.SignUp(in)
	if _, bad := errs[validation.FieldEmail]; !bad {
		available, err := c.facade.ValidateEmail(ctx, in.Email)
		switch {
		case err != nil:
			ctxlog.FromContext(ctx).Warn("email availability check failed", "error", err)
		case !available:
			errs.Add(validation.FieldEmail, validation.MsgEmailTaken)
		}
	}
	if !errs.Valid() {
		c.fail(errs)
		return nil, &FieldError{Errors: errs}
	}

	resp, err := c.facade.SignUp(ctx, in.Email, in.Password, in.ConfirmPassword, domain.Role(in.Role))
	if err != nil {
		ferr := signUpError(err)
		c.fail(ferr.Errors)
		return nil, ferr
	}

	if err := session.SaveSignUp(store, resp); err != nil {
		ctxlog.FromContext(ctx).Error("store sign-up session", "error", err)
	}

	c.succeed("")
	return &Navigation{
		To:      "/login",
		Flash:   MsgAccountCreated,
		Prefill: map[string]string{validation.FieldEmail: in.Email},
	}, nil
}

func signUpError(err error) *FieldError {
	var verr *facade.ValidationError
	if errors.As(err, &verr) {
		return &FieldError{Errors: maps.Clone(verr.Errors)}
	}
	msg := err.Error()
	if msg == "" {
		msg = facade.MsgSignUpFailed
	}
	return formError(msg)
}
