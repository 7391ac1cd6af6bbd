package forms

import (
	"context"
	"strings"

	"github.com/suanfamama/atelier/internal/validation"
)

// Messages of the password recovery forms.
const (
	MsgResetLinkSent = "If this email exists in our system, we've sent a reset link to your inbox."
	MsgForgotFailed  = "An error occurred. Please try again later."
	MsgResetDone     = "Password reset successful! You can now log in with your new password."
	MsgResetFailed   = "An error occurred. Please try again."
	MsgResetNoToken  = "Invalid or missing reset token. Please request a new password reset."
	MsgResetExpired  = "Reset token has expired. Please request a new password reset."
	MsgResetBadToken = "Invalid reset token. Please request a new password reset."
)

// FieldToken carries the reset token from the link.
const FieldToken = "token"

// Forgot controls the forgot-password form.
type Forgot struct {
	form
	facade Facade
}

// NewForgot creates a forgot-password controller.
func NewForgot(f Facade) *Forgot {
	return &Forgot{form: newForm(nil), facade: f}
}

// Submit requests a reset link. The form stays on the page; on success
// Notice holds the confirmation.
func (c *Forgot) Submit(ctx context.Context) error {
	values, err := c.begin()
	if err != nil {
		return err
	}

	email := values[validation.FieldEmail]
	if errs := validation.ForgotPassword(email); !errs.Valid() {
		c.fail(errs)
		return &FieldError{Errors: errs}
	}

	if err := c.facade.ForgotPassword(ctx, email); err != nil {
		fe := formError(MsgForgotFailed)
		c.fail(fe.Errors)
		return fe
	}

	c.succeed(MsgResetLinkSent)
	return nil
}

// Reset controls the new-password form.
type Reset struct {
	form
	facade Facade
}

// NewReset creates a reset controller for the token from the reset link.
func NewReset(f Facade, token string) *Reset {
	c := &Reset{
		form:   newForm(map[string]string{FieldToken: token}),
		facade: f,
	}
	if token == "" {
		c.errors.Add(validation.FieldForm, MsgResetNoToken)
	}
	return c
}

// Submit sets the new password. The form stays on the page; on success
// Notice holds the confirmation.
func (c *Reset) Submit(ctx context.Context) error {
	values, err := c.begin()
	if err != nil {
		return err
	}

	token := values[FieldToken]
	if token == "" {
		fe := formError(MsgResetNoToken)
		c.fail(fe.Errors)
		return fe
	}

	password := values[validation.FieldPassword]
	errs := validation.ResetPassword(password, values[validation.FieldConfirmPassword])
	if !errs.Valid() {
		// The screen shows one message at a time, in field order.
		errs[validation.FieldForm] = errs.First(validation.FieldPassword, validation.FieldConfirmPassword)
		c.fail(errs)
		return &FieldError{Errors: errs}
	}

	if err := c.facade.ResetPassword(ctx, token, password); err != nil {
		fe := formError(resetMessage(err.Error()))
		c.fail(fe.Errors)
		return fe
	}

	c.succeed(MsgResetDone)
	return nil
}

func resetMessage(msg string) string {
	switch {
	case strings.Contains(msg, "expired"):
		return MsgResetExpired
	case strings.Contains(msg, "invalid"):
		return MsgResetBadToken
	case msg != "":
		return msg
	}
	return MsgResetFailed
}
