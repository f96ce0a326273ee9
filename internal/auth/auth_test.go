package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/ticket-premerge/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, expires, err := tm.GenerateToken("ops@acme.test", RoleOperator)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expires, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@acme.test", claims.Subject)
	assert.Equal(t, RoleOperator, claims.Role)
}

func TestParseToken_Rejects(t *testing.T) {
	tm := NewTokenManager("secret", 5)

	other, _, err := NewTokenManager("other", 5).GenerateToken("x", RoleOperator)
	require.NoError(t, err)
	_, err = tm.ParseToken(other)
	assert.Error(t, err, "wrong secret")

	expired := NewTokenManager("secret", 5)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _, err := expired.GenerateToken("x", RoleOperator)
	require.NoError(t, err)
	_, err = tm.ParseToken(stale)
	assert.Error(t, err, "expired")

	unknown, _, err := tm.GenerateToken("x", Role("admin"))
	require.NoError(t, err)
	_, err = tm.ParseToken(unknown)
	assert.Error(t, err, "unknown role")
}

func newApp(tm *TokenManager) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.SendStatus(domainErr.HTTPStatus)
		},
	})
	mw := NewAuthMiddleware(tm)
	app.Post("/runs", mw.Handle, RequireRole(RoleOperator), func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.SendString(principal.Subject)
	})
	return app
}

func TestMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	operator, _, err := tm.GenerateToken("op", RoleOperator)
	require.NoError(t, err)
	viewer, _, err := tm.GenerateToken("view", RoleViewer)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"viewer forbidden", "Bearer " + viewer, http.StatusForbidden},
		{"operator allowed", "Bearer " + operator, http.StatusOK},
	}

	app := newApp(tm)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/runs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
