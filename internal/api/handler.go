// Package api provides the JSON endpoints for content and authentication.
package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/suanfamama/atelier/internal/backend"
	"github.com/suanfamama/atelier/internal/domain"
	"github.com/suanfamama/atelier/internal/facade"
	"github.com/suanfamama/atelier/internal/pkg/ctxlog"
	"github.com/suanfamama/atelier/internal/pkg/httputil"
	"github.com/suanfamama/atelier/internal/validation"
)

//go:embed openapi.yaml
var openAPISpec []byte

// Service is the facade surface the API exposes.
type Service interface {
	SignUp(ctx context.Context, email, password, confirmPassword string, role domain.Role) (*domain.AuthResponse, error)
	Login(ctx context.Context, email, password string, rememberMe bool) (*domain.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (*domain.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ValidateEmail(ctx context.Context, email string) (bool, error)
	FeaturedCollections(ctx context.Context) ([]domain.FeaturedCollection, error)
	LatestNews(ctx context.Context) ([]domain.NewsItem, error)
	PlatformStats(ctx context.Context) (domain.PlatformStats, error)
}

// Handler handles HTTP requests for the JSON API.
type Handler struct {
	service   Service
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(service Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
		now:       time.Now,
	}
}

// RegisterRoutes registers the API under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/openapi.yaml", h.OpenAPI)
		r.Get("/featured-collections", h.FeaturedCollections)
		r.Get("/news", h.News)
		r.Get("/platform-stats", h.PlatformStats)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.SignUp)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Post("/reset-password", h.ResetPassword)
			r.Get("/validate-email", h.ValidateEmail)
		})

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(h.service))
			r.Get("/me", h.Me)
		})
	})
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: h.now().UTC()})
}

// OpenAPI serves the API description.
func (h *Handler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	if _, err := w.Write(openAPISpec); err != nil {
		ctxlog.FromContext(r.Context()).Debug("write openapi spec", "error", err)
	}
}

// FeaturedCollections handles GET /api/featured-collections.
func (h *Handler) FeaturedCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := h.service.FeaturedCollections(r.Context())
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	if collections == nil {
		collections = []domain.FeaturedCollection{}
	}
	httputil.JSON(w, http.StatusOK, collections)
}

// News handles GET /api/news.
func (h *Handler) News(w http.ResponseWriter, r *http.Request) {
	news, err := h.service.LatestNews(r.Context())
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	if news == nil {
		news = []domain.NewsItem{}
	}
	httputil.JSON(w, http.StatusOK, news)
}

// PlatformStats handles GET /api/platform-stats.
func (h *Handler) PlatformStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.PlatformStats(r.Context())
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, stats)
}

// SignUpRequest represents the sign-up request body.
type SignUpRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	Role            string `json:"role" validate:"required,oneof=designer buyer customer"`
}

// SignUp handles POST /api/auth/signup.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := validation.SignUpInput(req)
	if errs := validation.SignUp(in); !errs.Valid() {
		httputil.ValidationDetails(w, fieldDetails(errs))
		return
	}

	resp, err := h.service.SignUp(r.Context(), in.Email, in.Password, in.ConfirmPassword, domain.Role(in.Role))
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, resp)
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// Logout handles POST /api/auth/logout. A missing token is not an error.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := httputil.BearerToken(r); ok {
		if err := h.service.Logout(r.Context(), token); err != nil {
			ctxlog.FromContext(r.Context()).Warn("logout error", "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// ForgotPasswordRequest represents the forgot-password request body.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// MessageResponse carries a confirmation for the user.
type MessageResponse struct {
	Message string `json:"message"`
}

// ForgotPassword handles POST /api/auth/forgot-password. The response does
// not reveal whether the address is registered.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, MessageResponse{
		Message: "If this email exists in our system, we've sent a reset link to your inbox.",
	})
}

// ResetPasswordRequest represents the reset-password request body.
type ResetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if errs := validation.ResetPassword(req.NewPassword, req.ConfirmPassword); !errs.Valid() {
		httputil.ValidationDetails(w, fieldDetails(errs))
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, MessageResponse{
		Message: "Password reset successful! You can now log in with your new password.",
	})
}

// EmailAvailability is returned by GET /api/auth/validate-email.
type EmailAvailability struct {
	Email     string `json:"email"`
	Available bool   `json:"available"`
}

// ValidateEmail handles GET /api/auth/validate-email?email=.
func (h *Handler) ValidateEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if err := h.validator.Var(email, "required,email"); err != nil {
		httputil.ValidationDetails(w, []httputil.FieldDetail{{Field: "email", Message: validation.MsgEmailInvalid}})
		return
	}

	available, err := h.service.ValidateEmail(r.Context(), email)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, EmailAvailability{Email: email, Available: available})
}

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := httputil.GetUser(r.Context())
	if user == nil {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	httputil.JSON(w, http.StatusOK, user)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := h.validator.Struct(v); err != nil {
		httputil.ValidationError(w, err)
		return false
	}
	return true
}

var errorMappings = []httputil.ErrorMapping{
	{Error: backend.ErrInvalidCredentials, Status: http.StatusUnauthorized},
	{Error: backend.ErrEmailExists, Status: http.StatusConflict},
	{Error: backend.ErrTokenExpired, Status: http.StatusBadRequest},
	{Error: backend.ErrInvalidToken, Status: http.StatusBadRequest},
	{Error: backend.ErrNotFound, Status: http.StatusNotFound},
}

func (h *Handler) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var verr *facade.ValidationError
	if errors.As(err, &verr) {
		httputil.ValidationDetails(w, fieldDetails(verr.Errors))
		return
	}

	// Sentinels decide the status whichever backend produced them; other
	// upstream client errors surface their message as a 400.
	if _, ok := httputil.MatchError(err, errorMappings); !ok {
		var pub interface{ PublicMessage() string }
		var ferr *facade.Error
		if errors.As(err, &pub) && pub.PublicMessage() != "" && errors.As(err, &ferr) {
			httputil.Error(w, http.StatusBadRequest, ferr.Message)
			return
		}
	}

	httputil.HandleError(ctx, w, err, errorMappings)
}

// fieldDetails orders field errors the way forms display them.
func fieldDetails(errs validation.Errors) []httputil.FieldDetail {
	order := []string{
		validation.FieldEmail,
		validation.FieldPassword,
		validation.FieldConfirmPassword,
		validation.FieldRole,
		validation.FieldForm,
	}
	details := make([]httputil.FieldDetail, 0, len(errs))
	for _, f := range order {
		if msg, ok := errs[f]; ok {
			details = append(details, httputil.FieldDetail{Field: f, Message: msg})
		}
	}
	return details
}
