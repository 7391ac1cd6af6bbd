package facade

import (
	"errors"

	"github.com/suanfamama/atelier/internal/backend"
	"github.com/suanfamama/atelier/internal/validation"
)

// Error is a backend failure carrying a message fit for display.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError is returned when input is rejected before any backend call.
type ValidationError struct {
	Errors validation.Errors
}

func (e *ValidationError) Error() string {
	if msg := e.Errors.First(
		validation.FieldEmail,
		validation.FieldPassword,
		validation.FieldConfirmPassword,
		validation.FieldRole,
		validation.FieldForm,
	); msg != "" {
		return msg
	}
	return "validation failed"
}

// Display messages for backend failures.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgTokenExpired       = "Reset token has expired"
	MsgTokenInvalid       = "Reset token is invalid"
	MsgSignUpFailed       = "An error occurred during sign up. Please try again."
	MsgRequestFailed      = "An error occurred. Please try again later."
)

// publicMessager is implemented by backend errors that carry a message meant
// for end users.
type publicMessager interface {
	PublicMessage() string
}

func wrap(op string, err error) *Error {
	return &Error{Op: op, Message: messageFor(op, err), Err: err}
}

func messageFor(op string, err error) string {
	switch {
	case errors.Is(err, backend.ErrEmailExists):
		return validation.MsgEmailTaken
	case errors.Is(err, backend.ErrInvalidCredentials):
		return MsgInvalidCredentials
	case errors.Is(err, backend.ErrTokenExpired):
		return MsgTokenExpired
	case errors.Is(err, backend.ErrInvalidToken):
		return MsgTokenInvalid
	}

	var pm publicMessager
	if errors.As(err, &pm) && pm.PublicMessage() != "" {
		return pm.PublicMessage()
	}

	if op == opSignUp {
		return MsgSignUpFailed
	}
	return MsgRequestFailed
}
