package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suanfamama/atelier/internal/backend"
	"github.com/suanfamama/atelier/internal/backend/supabase"
	"github.com/suanfamama/atelier/internal/domain"
	"github.com/suanfamama/atelier/internal/facade"
	"github.com/suanfamama/atelier/internal/testutil"
	"github.com/suanfamama/atelier/internal/validation"
)

type publicErr struct{ msg string }

func (e publicErr) Error() string         { return e.msg }
func (e publicErr) PublicMessage() string { return e.msg }

type fakeService struct {
	signUpErr  error
	loginErr   error
	resetErr   error
	contentErr error

	taken      map[string]bool
	loggedOut  []string
	forgotFor  string
	resetToken string
}

var testUser = &domain.User{
	ID:        "6f1c2c9e-1111-4c3e-9a55-000000000001",
	Email:     "ada@example.com",
	Role:      domain.RoleDesigner,
	CreatedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
}

func (f *fakeService) SignUp(_ context.Context, email, _, _ string, role domain.Role) (*domain.AuthResponse, error) {
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	u := *testUser
	u.Email, u.Role = email, role
	return &domain.AuthResponse{Token: "signup-token", User: &u}, nil
}

func (f *fakeService) Login(context.Context, string, string, bool) (*domain.AuthResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &domain.AuthResponse{Token: "good-token", User: testUser}, nil
}

func (f *fakeService) Logout(_ context.Context, token string) error {
	f.loggedOut = append(f.loggedOut, token)
	return nil
}

func (f *fakeService) CurrentUser(_ context.Context, token string) (*domain.User, error) {
	if token != "good-token" {
		return nil, &facade.Error{Op: "current_user", Message: facade.MsgTokenInvalid, Err: backend.ErrInvalidToken}
	}
	return testUser, nil
}

func (f *fakeService) ForgotPassword(_ context.Context, email string) error {
	f.forgotFor = email
	return nil
}

func (f *fakeService) ResetPassword(_ context.Context, token, _ string) error {
	f.resetToken = token
	return f.resetErr
}

func (f *fakeService) ValidateEmail(_ context.Context, email string) (bool, error) {
	return !f.taken[email], nil
}

func (f *fakeService) FeaturedCollections(context.Context) ([]domain.FeaturedCollection, error) {
	if f.contentErr != nil {
		return nil, f.contentErr
	}
	return []domain.FeaturedCollection{{
		ID: 1, Title: "Spring Bloom", Description: "Florals", ImageURL: "https://example.com/a.jpg",
		Designer: "Elena Rodriguez", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), IsFeatured: true,
	}}, nil
}

func (f *fakeService) LatestNews(context.Context) ([]domain.NewsItem, error) {
	if f.contentErr != nil {
		return nil, f.contentErr
	}
	return nil, nil
}

func (f *fakeService) PlatformStats(context.Context) (domain.PlatformStats, error) {
	return domain.PlatformStats{TotalDesigners: 1250, TotalCollections: 3400, TotalUsers: 15600}, f.contentErr
}

func newTestClient(t *testing.T, svc *fakeService) *testutil.Client {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return testutil.NewClientWithValidator(t, srv.URL, testutil.NewOpenAPIValidator(t, "openapi.yaml"))
}

type errorBody struct {
	Error struct {
		Message string              `json:"message"`
		Details []map[string]string `json:"details"`
	} `json:"error"`
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, &fakeService{})

	resp, err := c.GET("/api/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body HealthResponse
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, "healthy", body.Status)
	assert.False(t, body.Timestamp.IsZero())
}

func TestContent(t *testing.T) {
	c := newTestClient(t, &fakeService{})

	resp, err := c.GET("/api/featured-collections")
	require.NoError(t, err)
	var collections []domain.FeaturedCollection
	testutil.DecodeJSON(t, resp, &collections)
	require.Len(t, collections, 1)
	assert.Equal(t, "Spring Bloom", collections[0].Title)

	resp, err = c.GET("/api/news")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", testutil.ReadBody(t, resp))

	resp, err = c.GET("/api/platform-stats")
	require.NoError(t, err)
	var stats domain.PlatformStats
	testutil.DecodeJSON(t, resp, &stats)
	assert.Equal(t, 15600, stats.TotalUsers)
}

func TestContent_Error(t *testing.T) {
	c := newTestClient(t, &fakeService{contentErr: errors.New("backend down")})

	resp, err := c.GET("/api/featured-collections")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body errorBody
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, "internal error", body.Error.Message)
}

func TestSignUp(t *testing.T) {
	c := newTestClient(t, &fakeService{})

	resp, err := c.POST("/api/auth/signup", map[string]any{
		"email":            "new@example.com",
		"password":         "Password1",
		"confirm_password": "Password1",
		"role":             "buyer",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body domain.AuthResponse
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, "signup-token", body.Token)
	assert.Equal(t, domain.RoleBuyer, body.User.Role)
}

func TestSignUp_RuleViolations(t *testing.T) {
	c := newTestClient(t, &fakeService{})

	resp, err := c.POST("/api/auth/signup", map[string]any{
		"email":            "new@example.com",
		"password":         "password1",
		"confirm_password": "password2",
		"role":             "buyer",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorBody
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, "validation error", body.Error.Message)
	assert.Equal(t, []map[string]string{
		{"field": validation.FieldPassword, "message": validation.MsgPasswordNoUpper},
		{"field": validation.FieldConfirmPassword, "message": validation.MsgPasswordMismatch},
	}, body.Error.Details)
}

func TestSignUp_StructValidation(t *testing.T) {
	c := newTestClient(t, &fakeService{})

	resp, err := c.POST("/api/auth/signup", map[string]any{
		"email":            "not-an-email",
		"password":         "Password1",
		"confirm_password": "Password1",
		"role":             "buyer",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorBody
	testutil.DecodeJSON(t, resp, &body)
	require.Len(t, body.Error.Details, 1)
	assert.Equal(t, "Email", body.Error.Details[0]["field"])
	assert.Equal(t, "email", body.Error.Details[0]["message"])
}

func TestSignUp_EmailExists(t *testing.T) {
	c := newTestClient(t, &fakeService{signUpErr: &facade.Error{
		Op: "sign_up", Message: validation.MsgEmailTaken, Err: backend.ErrEmailExists,
	}})

	resp, err := c.POST("/api/auth/signup", map[string]any{
		"email":            "ada@example.com",
		"password":         "Password1",
		"confirm_password": "Password1",
		"role":             "designer",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var body errorBody
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, validation.MsgEmailTaken, body.Error.Message)
}

func TestSignUp_UpstreamRejection(t *testing.T) {
	c := newTestClient(t, &fakeService{signUpErr: &facade.Error{
		Op: "sign_up", Message: "Password should be stronger", Err: publicErr{"Password should be stronger"},
	}})

	resp, err := c.POST("/api/auth/signup", map[string]any{
		"email":            "ada@example.com",
		"password":         "Password1",
		"confirm_password": "Password1",
		"role":             "designer",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorBody
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, "Password should be stronger", body.Error.Message)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, &fakeService{})

	c.Login(t, "ada@example.com", "Password1")
	assert.Equal(t, "good-token", c.Token)

	resp, err := c.GET("/api/me")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user domain.User
	testutil.DecodeJSON(t, resp, &user)
	assert.Equal(t, testUser.Email, user.Email)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	c := newTestClient(t, &fakeService{loginErr: &facade.Error{
		Op: "login", Message: facade.MsgInvalidCredentials, Err: backend.ErrInvalidCredentials,
	}})

	resp, err := c.POST("/api/auth/login", map[string]any{"email": "ada@example.com", "password": "nope"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body errorBody
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, facade.MsgInvalidCredentials, body.Error.Message)
}

func TestSupabaseErrors_UseSentinelStatus(t *testing.T) {
	tests := []struct {
		name   string
		svc    *fakeService
		path   string
		body   map[string]any
		status int
		msg    string
	}{
		{
			name: "invalid credentials",
			svc: &fakeService{loginErr: &facade.Error{
				Op:      "login",
				Message: facade.MsgInvalidCredentials,
				Err: fmt.Errorf("sign in: %w", &supabase.APIError{
					Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials",
				}),
			}},
			path:   "/api/auth/login",
			body:   map[string]any{"email": "ada@example.com", "password": "nope"},
			status: http.StatusUnauthorized,
			msg:    facade.MsgInvalidCredentials,
		},
		{
			name: "email exists",
			svc: &fakeService{signUpErr: &facade.Error{
				Op:      "sign_up",
				Message: validation.MsgEmailTaken,
				Err: fmt.Errorf("sign up: %w", &supabase.APIError{
					Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered",
				}),
			}},
			path: "/api/auth/signup",
			body: map[string]any{
				"email":            "ada@example.com",
				"password":         "Password1",
				"confirm_password": "Password1",
				"role":             "designer",
			},
			status: http.StatusConflict,
			msg:    validation.MsgEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.svc)

			resp, err := c.POST(tt.path, tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body errorBody
			testutil.DecodeJSON(t, resp, &body)
			assert.Equal(t, tt.msg, body.Error.Message)
		})
	}
}

func TestLogin_InvalidJSON(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(&fakeService{}).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":{"message":"invalid json"}}`, rec.Body.String())
}

func TestMe_Unauthorized(t *testing.T) {
	c := newTestClient(t, &fakeService{})

	resp, err := c.GET("/api/me")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)

	c.Token = "stale"
	resp, err = c.GET("/api/me")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body errorBody
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, "invalid or expired token", body.Error.Message)
}

func TestLogout(t *testing.T) {
	svc := &fakeService{}
	c := newTestClient(t, svc)
	c.Token = "good-token"

	resp, err := c.POST("/api/auth/logout", nil)
	require.NoError(t, err)
	_ = testutil.ReadBody(t, resp)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"good-token"}, svc.loggedOut)
}

func TestForgotPassword(t *testing.T) {
	svc := &fakeService{}
	c := newTestClient(t, svc)

	resp, err := c.POST("/api/auth/forgot-password", map[string]any{"email": "ada@example.com"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body MessageResponse
	testutil.DecodeJSON(t, resp, &body)
	assert.Contains(t, body.Message, "reset link")
	assert.Equal(t, "ada@example.com", svc.forgotFor)
}

func TestResetPassword(t *testing.T) {
	svc := &fakeService{}
	c := newTestClient(t, svc)

	resp, err := c.POST("/api/auth/reset-password", map[string]any{
		"token":            "abc",
		"new_password":     "NewPassword1",
		"confirm_password": "NewPassword1",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)
	assert.Equal(t, "abc", svc.resetToken)
}

func TestResetPassword_Expired(t *testing.T) {
	c := newTestClient(t, &fakeService{resetErr: &facade.Error{
		Op: "reset_password", Message: facade.MsgTokenExpired, Err: backend.ErrTokenExpired,
	}})

	resp, err := c.POST("/api/auth/reset-password", map[string]any{
		"token":            "abc",
		"new_password":     "NewPassword1",
		"confirm_password": "NewPassword1",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorBody
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, facade.MsgTokenExpired, body.Error.Message)
}

func TestValidateEmail(t *testing.T) {
	c := newTestClient(t, &fakeService{taken: map[string]bool{"existing@example.com": true}})

	resp, err := c.GET("/api/auth/validate-email?email=existing@example.com")
	require.NoError(t, err)
	var body EmailAvailability
	testutil.DecodeJSON(t, resp, &body)
	assert.False(t, body.Available)

	resp, err = c.GET("/api/auth/validate-email?email=free@example.com")
	require.NoError(t, err)
	testutil.DecodeJSON(t, resp, &body)
	assert.True(t, body.Available)

	resp, err = c.GET("/api/auth/validate-email?email=broken")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)
}

func TestOpenAPIDocument(t *testing.T) {
	c := newTestClient(t, &fakeService{})

	resp, err := c.GET("/api/openapi.yaml")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, testutil.ReadBody(t, resp), "openapi: 3.0.3")
}
