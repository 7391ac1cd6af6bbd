// Package web serves the server-rendered screens: landing, sign-up, login,
// password reset and the dashboard.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/suanfamama/atelier/internal/domain"
	"github.com/suanfamama/atelier/internal/forms"
	"github.com/suanfamama/atelier/internal/pkg/ctxlog"
	"github.com/suanfamama/atelier/internal/session"
	"github.com/suanfamama/atelier/internal/validation"
)

//go:embed templates/*.html
var templateFS embed.FS

// Screen messages.
const (
	MsgLoadFailed = "Failed to load content. Please try again later."
	MsgInProgress = "A submission is already in progress. Please wait."
	MsgBadForm    = "The form could not be read. Please try again."
)

// Service is what the screens need from the facade.
type Service interface {
	forms.Facade
	LandingContent(ctx context.Context) (*domain.LandingContent, error)
	Logout(ctx context.Context, token string) error
}

// page is the data every template receives.
type page struct {
	Title    string
	Flash    string
	SignedIn bool
	Notice   string
	Strength string
	Values   map[string]string
	Errors   validation.Errors
	Roles    []domain.Role
	Content  *domain.LandingContent
	User     *domain.User
}

// Handler renders the HTML screens.
type Handler struct {
	service  Service
	inflight *forms.Inflight
	cookies  session.CookieConfig
	pages    map[string]*template.Template
}

// NewHandler parses the embedded templates and creates a handler.
func NewHandler(service Service, cookies session.CookieConfig) (*Handler, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"landing", "error", "signup", "login", "forgot", "reset", "dashboard"} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = t
	}

	return &Handler{
		service:  service,
		inflight: forms.NewInflight(),
		cookies:  cookies,
		pages:    pages,
	}, nil
}

// RegisterRoutes registers the screens. Every route gets a cookie-backed
// session store.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(h.cookies))

		r.Get("/", h.Landing)
		r.Get("/signup", h.SignUpPage)
		r.Post("/signup", h.SignUp)
		r.Get("/login", h.LoginPage)
		r.Post("/login", h.Login)
		r.Get("/forgot-password", h.ForgotPage)
		r.Post("/forgot-password", h.Forgot)
		r.Get("/reset-password", h.ResetPage)
		r.Post("/reset-password", h.Reset)
		r.Post("/logout", h.Logout)

		r.With(session.RequireToken).Get("/dashboard", h.Dashboard)
	})
}

// Landing renders featured collections, stats and news.
func (h *Handler) Landing(w http.ResponseWriter, r *http.Request) {
	content, err := h.service.LandingContent(r.Context())
	if err != nil {
		ctxlog.FromContext(r.Context()).Error("load landing content", "error", err)
		h.render(w, r, http.StatusInternalServerError, "error", &page{Title: "Error", Notice: MsgLoadFailed})
		return
	}
	h.render(w, r, http.StatusOK, "landing", &page{Title: "Fashion Designer Platform", Content: content})
}

// SignUpPage renders an empty sign-up form.
func (h *Handler) SignUpPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signup", &page{
		Title:  "Sign Up",
		Values: map[string]string{validation.FieldRole: string(domain.RoleCustomer)},
	})
}

// SignUp submits the sign-up form.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	fields := []string{validation.FieldEmail, validation.FieldPassword, validation.FieldConfirmPassword, validation.FieldRole}
	p := &page{Title: "Sign Up"}
	if !h.parseForm(w, r, "signup", p) {
		return
	}

	c := forms.NewSignUp(h.service)
	for _, f := range fields {
		if _, ok := r.PostForm[f]; ok {
			c.Set(f, r.PostFormValue(f))
		}
	}
	p.Values = valuesOf(c.Value, fields...)

	release, ok := h.acquire(w, r, "signup", c.Value(validation.FieldEmail), p)
	if !ok {
		return
	}
	defer release()

	nav, err := c.Submit(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		p.Errors = c.Errors()
		p.Strength = strength(c.Value(validation.FieldPassword))
		h.render(w, r, statusFor(err), "signup", p)
		return
	}
	h.navigate(w, r, nav)
}

// LoginPage renders the login form, or redirects to the dashboard when a
// token is already stored. A pending flash is always shown first, since
// sign-up stores a token before sending the user here.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	f := takeFlash(w, r, h.cookies)
	if f.empty() && session.Check(session.FromContext(r.Context())) == session.Authenticated {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	h.render(w, r, http.StatusOK, "login", &page{
		Title:  "Log In",
		Flash:  f.Message,
		Values: map[string]string{validation.FieldEmail: f.Email},
	})
}

// Login submits the login form.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	p := &page{Title: "Log In"}
	if !h.parseForm(w, r, "login", p) {
		return
	}

	c := forms.NewLogin(h.service)
	c.Set(validation.FieldEmail, r.PostFormValue(validation.FieldEmail))
	c.Set(validation.FieldPassword, r.PostFormValue(validation.FieldPassword))
	c.SetRemember(r.PostFormValue(forms.FieldRememberMe) != "")
	p.Values = valuesOf(c.Value, validation.FieldEmail, forms.FieldRememberMe)

	release, ok := h.acquire(w, r, "login", c.Value(validation.FieldEmail), p)
	if !ok {
		return
	}
	defer release()

	nav, err := c.Submit(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		p.Errors = c.Errors()
		h.render(w, r, statusFor(err), "login", p)
		return
	}
	h.navigate(w, r, nav)
}

// ForgotPage renders the forgot-password form.
func (h *Handler) ForgotPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "forgot", &page{Title: "Reset Password"})
}

// Forgot requests a reset link and shows the confirmation in place.
func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) {
	p := &page{Title: "Reset Password"}
	if !h.parseForm(w, r, "forgot", p) {
		return
	}

	c := forms.NewForgot(h.service)
	c.Set(validation.FieldEmail, r.PostFormValue(validation.FieldEmail))
	p.Values = valuesOf(c.Value, validation.FieldEmail)

	release, ok := h.acquire(w, r, "forgot", c.Value(validation.FieldEmail), p)
	if !ok {
		return
	}
	defer release()

	if err := c.Submit(r.Context()); err != nil {
		p.Errors = c.Errors()
		h.render(w, r, statusFor(err), "forgot", p)
		return
	}
	p.Notice = c.Notice()
	h.render(w, r, http.StatusOK, "forgot", p)
}

// ResetPage renders the new-password form for the token in the link.
func (h *Handler) ResetPage(w http.ResponseWriter, r *http.Request) {
	c := forms.NewReset(h.service, r.URL.Query().Get(forms.FieldToken))
	h.render(w, r, http.StatusOK, "reset", &page{
		Title:  "Reset Password",
		Values: valuesOf(c.Value, forms.FieldToken),
		Errors: c.Errors(),
	})
}

// Reset sets the new password and shows the confirmation in place.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	p := &page{Title: "Reset Password"}
	if !h.parseForm(w, r, "reset", p) {
		return
	}

	fields := []string{forms.FieldToken, validation.FieldPassword, validation.FieldConfirmPassword}
	c := forms.NewReset(h.service, r.FormValue(forms.FieldToken))
	c.Set(validation.FieldPassword, r.PostFormValue(validation.FieldPassword))
	c.Set(validation.FieldConfirmPassword, r.PostFormValue(validation.FieldConfirmPassword))
	p.Values = valuesOf(c.Value, fields...)

	release, ok := h.acquire(w, r, "reset", c.Value(forms.FieldToken), p)
	if !ok {
		return
	}
	defer release()

	if err := c.Submit(r.Context()); err != nil {
		p.Errors = c.Errors()
		p.Strength = strength(c.Value(validation.FieldPassword))
		h.render(w, r, statusFor(err), "reset", p)
		return
	}
	p.Notice = c.Notice()
	h.render(w, r, http.StatusOK, "reset", p)
}

// Dashboard greets the signed-in user. Routed behind session.RequireToken.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := session.User(session.FromContext(r.Context()))
	h.render(w, r, http.StatusOK, "dashboard", &page{Title: "Dashboard", User: user})
}

// Logout ends the backend session when possible, clears the stored values
// and returns to the landing page.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	store := session.FromContext(r.Context())
	if token, ok := session.Token(store); ok {
		if err := h.service.Logout(r.Context(), token); err != nil {
			ctxlog.FromContext(r.Context()).Warn("backend logout failed", "error", err)
		}
	}
	session.ClearAll(store)
	clearFlash(w, r, h.cookies)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request, name string, p *page) bool {
	if err := r.ParseForm(); err != nil {
		p.Errors = validation.Errors{validation.FieldForm: MsgBadForm}
		h.render(w, r, http.StatusBadRequest, name, p)
		return false
	}
	return true
}

// acquire holds the in-flight slot for the form named name and the submitted
// key value. A blank key is left to validation and takes no slot.
func (h *Handler) acquire(w http.ResponseWriter, r *http.Request, name, key string, p *page) (func(), bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return func() {}, true
	}
	release, err := h.inflight.Acquire(name + ":" + key)
	if err != nil {
		p.Errors = validation.Errors{validation.FieldForm: MsgInProgress}
		h.render(w, r, http.StatusConflict, name, p)
		return nil, false
	}
	return release, true
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, nav *forms.Navigation) {
	setFlash(w, h.cookies, flash{Message: nav.Flash, Email: nav.Prefill[validation.FieldEmail]})
	http.Redirect(w, r, nav.To, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, p *page) {
	p.SignedIn = session.Check(session.FromContext(r.Context())) == session.Authenticated
	if p.Values == nil {
		p.Values = map[string]string{}
	}
	if p.Errors == nil {
		p.Errors = validation.Errors{}
	}
	p.Roles = domain.Roles

	var buf bytes.Buffer
	if err := h.pages[name].ExecuteTemplate(&buf, "base", p); err != nil {
		ctxlog.FromContext(r.Context()).Error("render template", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		ctxlog.FromContext(r.Context()).Debug("write response", "error", err)
	}
}

func valuesOf(get func(string) string, fields ...string) map[string]string {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		values[f] = get(f)
	}
	return values
}

func strength(password string) string {
	if password == "" {
		return ""
	}
	return validation.StrengthLabel(validation.Strength(password))
}

func statusFor(err error) int {
	var fe *forms.FieldError
	switch {
	case errors.As(err, &fe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, forms.ErrSubmitInProgress):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
