package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/apperrors"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/gotrue-go/types"
)

type fakeValidator map[string]string

func (f fakeValidator) Validate(token string) (*helpers.CustomClaims, error) {
	sub, ok := f[token]
	if !ok {
		return nil, errors.New("token is expired")
	}
	return &helpers.CustomClaims{
		Email:            "guest@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub},
	}, nil
}

type fakeSessions struct {
	role       string
	refreshed  *types.TokenResponse
	refreshErr error
}

func (f *fakeSessions) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	return f.refreshed, f.refreshErr
}

func (f *fakeSessions) GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*models.User, error) {
	if f.role == "" {
		return nil, models.ErrUserNotFound
	}
	return &models.User{ID: id, Role: f.role, Username: "ama"}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuthRouter(validator fakeValidator, sessions *fakeSessions, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(AuthConfig{Validator: validator, Users: sessions, Logger: testLogger()})}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		p := helpers.GetPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"user_id": p.UserID, "role": p.Role, "token": p.AccessToken})
	})
	r.GET("/me", handlers...)
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthMiddlewareBearer(t *testing.T) {
	user := uuid.New()
	r := newAuthRouter(fakeValidator{"good": user.String()}, &fakeSessions{role: models.RoleHost})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, user.String(), body["user_id"])
	assert.Equal(t, models.RoleHost, body["role"])
	assert.Equal(t, "good", body["token"])
}

func TestAuthMiddlewareDefaultsToGuest(t *testing.T) {
	user := uuid.New()
	r := newAuthRouter(fakeValidator{"good": user.String()}, &fakeSessions{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: helpers.AccessTokenCookie, Value: "good"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleGuest, decode(t, w)["role"])
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	r := newAuthRouter(fakeValidator{}, &fakeSessions{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperrors.CodeAuthenticationRequired, decode(t, w)["code"])
}

func TestAuthMiddlewareRefreshesExpiredToken(t *testing.T) {
	user := uuid.New()
	refreshed := &types.TokenResponse{}
	refreshed.AccessToken = "fresh"
	refreshed.RefreshToken = "next-refresh"
	refreshed.ExpiresIn = 3600
	r := newAuthRouter(fakeValidator{"fresh": user.String()}, &fakeSessions{role: models.RoleGuest, refreshed: refreshed})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: helpers.AccessTokenCookie, Value: "stale"})
	req.AddCookie(&http.Cookie{Name: helpers.RefreshTokenCookie, Value: "refresh"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fresh", decode(t, w)["token"])

	cookies := strings.Join(w.Header().Values("Set-Cookie"), ";")
	assert.Contains(t, cookies, helpers.AccessTokenCookie+"=fresh")
	assert.Contains(t, cookies, helpers.RefreshTokenCookie+"=next-refresh")
}

func TestAuthMiddlewareRefreshFailure(t *testing.T) {
	r := newAuthRouter(fakeValidator{}, &fakeSessions{refreshErr: errors.New("invalid refresh token")})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: helpers.RefreshTokenCookie, Value: "refresh"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	user := uuid.New()
	r := newAuthRouter(fakeValidator{"good": user.String()}, &fakeSessions{role: models.RoleGuest}, RequireRole(models.RoleAdmin))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperrors.CodeForbidden, decode(t, w)["code"])
}

func TestOptionalAuthAllowsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/open", OptionalAuth(AuthConfig{Validator: fakeValidator{}, Users: &fakeSessions{}, Logger: testLogger()}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"anonymous": helpers.GetPrincipal(c) == nil})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["anonymous"])
}

func TestErrorHandlerRendersAppError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), ErrorHandler(testLogger()))
	r.GET("/conflict", func(c *gin.Context) {
		_ = c.Error(apperrors.AvailabilityConflict("dates taken"))
	})
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("nil pointer somewhere"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conflict", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.CodeAvailabilityConflict, decode(t, w)["code"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "nil pointer")
}
