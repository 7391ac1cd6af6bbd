// Package forms holds the per-screen form controllers: field state,
// validation, the facade call and the navigation that follows success.
package forms

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/suanfamama/atelier/internal/domain"
	"github.com/suanfamama/atelier/internal/validation"
)

// ErrSubmitInProgress is returned when a form is submitted again before the
// previous submission finished.
var ErrSubmitInProgress = errors.New("submission already in progress")

// State is the submission state of a form.
type State int

const (
	Idle State = iota
	Submitting
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	}
	return "idle"
}

// Navigation tells the caller where to go after a successful submit.
type Navigation struct {
	To      string
	Flash   string
	Prefill map[string]string
}

// Facade is the part of the facade the controllers call.
type Facade interface {
	SignUp(ctx context.Context, email, password, confirmPassword string, role domain.Role) (*domain.AuthResponse, error)
	Login(ctx context.Context, email, password string, rememberMe bool) (*domain.AuthResponse, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ValidateEmail(ctx context.Context, email string) (bool, error)
}

// form is the state shared by every controller.
type form struct {
	mu     sync.Mutex
	state  State
	values map[string]string
	errors validation.Errors
	notice string
}

func newForm(defaults map[string]string) form {
	values := make(map[string]string, len(defaults))
	maps.Copy(values, defaults)
	return form{values: values, errors: validation.Errors{}}
}

// Set updates a field, clears its error and returns the form to Idle.
func (f *form) Set(field, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.values[field] = value
	delete(f.errors, field)
	if f.state != Submitting {
		f.state = Idle
	}
}

// Value returns the current value of field.
func (f *form) Value(field string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[field]
}

// State returns the submission state.
func (f *form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Errors returns a copy of the current field errors.
func (f *form) Errors() validation.Errors {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.errors)
}

// Notice returns the success message of forms that stay on the page.
func (f *form) Notice() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notice
}

// begin enters Submitting and returns a snapshot of the field values.
func (f *form) begin() (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == Submitting {
		return nil, ErrSubmitInProgress
	}
	f.state = Submitting
	f.errors = validation.Errors{}
	f.notice = ""
	return maps.Clone(f.values), nil
}

// fail leaves Submitting with errs. Field values are kept.
func (f *form) fail(errs validation.Errors) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = Failed
	f.errors = errs
}

func (f *form) succeed(notice string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = Success
	f.errors = validation.Errors{}
	f.notice = notice
}

// FieldError is returned by Submit when validation or the backend rejected
// the form. Errors holds the messages to show next to each field.
type FieldError struct {
	Errors validation.Errors
}

func (e *FieldError) Error() string {
	if msg := e.Errors.First(
		validation.FieldForm,
		validation.FieldEmail,
		validation.FieldPassword,
		validation.FieldConfirmPassword,
		validation.FieldRole,
	); msg != "" {
		return msg
	}
	return "form is invalid"
}

func formError(msg string) *FieldError {
	return &FieldError{Errors: validation.Errors{validation.FieldForm: msg}}
}
