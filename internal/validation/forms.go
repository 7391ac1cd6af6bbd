package validation

import "github.com/suanfamama/atelier/internal/domain"

// Field names used as keys in Errors.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldRole            = "role"
	FieldForm            = "form"
)

// Field messages.
const (
	MsgEmailRequired       = "Email is required"
	MsgEmailInvalid        = "Email is invalid"
	MsgEmailTaken          = "Email is already registered"
	MsgPasswordRequired    = "Password is required"
	MsgPasswordTooShort    = "Password must be at least 8 characters"
	MsgPasswordTooShortRst = "Password must be at least 8 characters long"
	MsgPasswordNoUpper     = "Password must contain at least one uppercase letter"
	MsgPasswordNoLower     = "Password must contain at least one lowercase letter"
	MsgPasswordNoDigit     = "Password must contain at least one number"
	MsgConfirmRequired     = "Please confirm your password"
	MsgPasswordMismatch    = "Passwords do not match"
	MsgRoleRequired        = "Please select a role"
	MsgLoginMissing        = "Please enter both email and password"
	MsgForgotEmailRequired = "Please enter your email address"
	MsgForgotEmailInvalid  = "Please enter a valid email address"
)

// Errors maps a field name to the first rule it violated.
type Errors map[string]string

// Valid reports whether no field has an error.
func (e Errors) Valid() bool {
	return len(e) == 0
}

// Add records msg for field unless the field already has an error.
func (e Errors) Add(field, msg string) {
	if _, ok := e[field]; ok {
		return
	}
	e[field] = msg
}

// First returns the first error found in the given field order.
func (e Errors) First(fields ...string) string {
	for _, f := range fields {
		if msg, ok := e[f]; ok {
			return msg
		}
	}
	return ""
}

// SignUpInput is the raw sign-up form payload.
type SignUpInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	Role            string
}

// SignUp validates the sign-up form.
func SignUp(in SignUpInput) Errors {
	errs := Errors{}

	switch {
	case in.Email == "":
		errs.Add(FieldEmail, MsgEmailRequired)
	case !IsEmail(in.Email):
		errs.Add(FieldEmail, MsgEmailInvalid)
	}

	if msg := passwordRule(in.Password, MsgPasswordTooShort); msg != "" {
		errs.Add(FieldPassword, msg)
	}

	if msg := confirmRule(in.Password, in.ConfirmPassword); msg != "" {
		errs.Add(FieldConfirmPassword, msg)
	}

	if in.Role == "" || !domain.Role(in.Role).IsValid() {
		errs.Add(FieldRole, MsgRoleRequired)
	}

	return errs
}

// Login validates the login form. Errors are form-level only.
func Login(email, password string) Errors {
	errs := Errors{}
	if email == "" || password == "" {
		errs.Add(FieldForm, MsgLoginMissing)
	}
	return errs
}

// ForgotPassword validates the forgot-password form.
func ForgotPassword(email string) Errors {
	errs := Errors{}
	switch {
	case email == "":
		errs.Add(FieldEmail, MsgForgotEmailRequired)
	case !IsEmail(email):
		errs.Add(FieldEmail, MsgForgotEmailInvalid)
	}
	return errs
}

// ResetPassword validates the new-password form.
func ResetPassword(password, confirm string) Errors {
	errs := Errors{}
	if msg := passwordRule(password, MsgPasswordTooShortRst); msg != "" {
		errs.Add(FieldPassword, msg)
	}
	if msg := confirmRule(password, confirm); msg != "" {
		errs.Add(FieldConfirmPassword, msg)
	}
	return errs
}

// passwordRule checks presence, length and composition in that order.
func passwordRule(password, tooShort string) string {
	switch {
	case password == "":
		return MsgPasswordRequired
	case !LongEnough(password):
		return tooShort
	case !HasUpper(password):
		return MsgPasswordNoUpper
	case !HasLower(password):
		return MsgPasswordNoLower
	case !HasDigit(password):
		return MsgPasswordNoDigit
	}
	return ""
}

// confirmRule reports a mismatch only once both fields are filled in.
func confirmRule(password, confirm string) string {
	switch {
	case confirm == "":
		return MsgConfirmRequired
	case password != "" && password != confirm:
		return MsgPasswordMismatch
	}
	return ""
}
