//go:build integration

package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suanfamama/atelier/internal/config"
	"github.com/suanfamama/atelier/internal/testutil"
)

var resetTokenPattern = regexp.MustCompile(`token=([0-9a-f]{64})`)

func TestApp_PostgresBackend_Integration(t *testing.T) {
	ctx := context.Background()

	pg, err := testutil.NewPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	mailpit, err := testutil.NewMailpitContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mailpit.Terminate(ctx) })

	rd, err := testutil.NewRedisContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rd.Terminate(ctx) })

	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Backend.Kind = config.BackendPostgres
	cfg.Database.URL = pg.ConnectionString
	cfg.Database.AutoMigrate = true
	cfg.Auth.JWTSecret = "integration-secret"
	cfg.Mail = config.MailConfig{
		Enabled:     true,
		SMTPHost:    mailpit.SMTPHost,
		SMTPPort:    mailpit.SMTPPort,
		FromAddress: "Suanfamama <no-reply@suanfamama.com>",
	}
	cfg.Cache.Kind = config.CacheRedis
	cfg.Cache.RedisAddr = rd.Addr
	require.NoError(t, cfg.Validate())

	a, err := New(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = a.Shutdown(shutdownCtx)
	})

	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)
	c := testutil.NewClientWithValidator(t, srv.URL, testutil.NewOpenAPIValidator(t, "../api/openapi.yaml"))

	resp, err := c.GET("/readyz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)

	resp, err = c.POST("/api/auth/signup", map[string]any{
		"email":            "ada@example.com",
		"password":         "Password1",
		"confirm_password": "Password1",
		"role":             "designer",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, testutil.ReadBody(t, resp))

	resp, err = c.GET("/api/auth/validate-email?email=ada@example.com")
	require.NoError(t, err)
	var availability struct {
		Available bool `json:"available"`
	}
	testutil.DecodeJSON(t, resp, &availability)
	assert.False(t, availability.Available)

	resp, err = c.GET("/api/platform-stats")
	require.NoError(t, err)
	var stats struct {
		TotalDesigners int `json:"total_designers"`
		TotalUsers     int `json:"total_users"`
	}
	testutil.DecodeJSON(t, resp, &stats)
	assert.Equal(t, 1, stats.TotalDesigners)
	assert.Equal(t, 1, stats.TotalUsers)

	resp, err = c.POST("/api/auth/forgot-password", map[string]any{"email": "ada@example.com"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)

	token := waitForResetToken(t, mailpit, "ada@example.com")

	resp, err = c.POST("/api/auth/reset-password", map[string]any{
		"token":            token,
		"new_password":     "NewPassword2",
		"confirm_password": "NewPassword2",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)

	c.Login(t, "ada@example.com", "NewPassword2")

	resp, err = c.GET("/api/me")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	testutil.DecodeJSON(t, resp, &me)
	assert.Equal(t, "ada@example.com", me.Email)
	assert.Equal(t, "designer", me.Role)
}

func waitForResetToken(t *testing.T, mp *testutil.MailpitContainer, email string) string {
	t.Helper()

	msg, err := mp.Client().WaitForMessage(context.Background(), email, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Reset your Suanfamama password", msg.Subject)

	m := resetTokenPattern.FindStringSubmatch(msg.Text)
	require.NotNil(t, m, "reset link missing from mail body: %s", msg.Text)
	return m[1]
}
