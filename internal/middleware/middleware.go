package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/apperrors"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/supabase-community/gotrue-go/types"
)

const (
	RequestIDKey        = "request_id"
	refreshCookieMaxAge = 3600 * 24 * 30
)

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger provides structured logging middleware
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		requestID, _ := c.Get(RequestIDKey)

		attrs := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if p := helpers.GetPrincipal(c); p != nil {
			attrs = append(attrs, "user_id", p.UserID)
		}
		logger.Info("HTTP Request", attrs...)
	}
}

// ErrorHandler renders errors pushed with c.Error when the handler wrote nothing itself.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		requestID, _ := c.Get(RequestIDKey)
		appErr := apperrors.As(err)

		logger.Error("Request error",
			"request_id", requestID,
			"code", appErr.Code,
			"error", err.Error(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)

		if c.Writer.Written() {
			return
		}
		message := appErr.Message
		if appErr.Code == apperrors.CodeInternal {
			// never leak internals
			message = "internal server error"
		}
		c.JSON(apperrors.StatusCode(appErr), models.CodedErrorResponse(appErr.Code, message, appErr.Details))
	}
}

type TokenValidator interface {
	Validate(token string) (*helpers.CustomClaims, error)
}

// SessionService refreshes expired sessions and loads the profile behind a token.
type SessionService interface {
	RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error)
	GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*models.User, error)
}

type AuthConfig struct {
	Validator     TokenValidator
	Users         SessionService
	Logger        *slog.Logger
	SecureCookies bool
}

var errNoToken = errors.New("no access token in header or cookie")

// SetSessionCookies stores the token pair the way login does.
func SetSessionCookies(c *gin.Context, tokens *types.TokenResponse, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(helpers.AccessTokenCookie, tokens.AccessToken, tokens.ExpiresIn, "/", "", secure, true)
	c.SetCookie(helpers.RefreshTokenCookie, tokens.RefreshToken, refreshCookieMaxAge, "/", "", secure, true)
}

func ClearSessionCookies(c *gin.Context, secure bool) {
	c.SetCookie(helpers.AccessTokenCookie, "", -1, "/", "", secure, true)
	c.SetCookie(helpers.RefreshTokenCookie, "", -1, "/", "", secure, true)
}

func authenticate(c *gin.Context, cfg AuthConfig) (*helpers.EnhancedClaims, string, error) {
	token := helpers.AccessToken(c)
	var claims *helpers.CustomClaims
	var err error
	if token == "" {
		err = errNoToken
	} else {
		claims, err = cfg.Validator.Validate(token)
	}

	if err != nil {
		refreshToken, cookieErr := c.Cookie(helpers.RefreshTokenCookie)
		if cookieErr != nil || refreshToken == "" {
			return nil, "", err
		}

		refreshed, refreshErr := cfg.Users.RefreshToken(c.Request.Context(), refreshToken)
		if refreshErr != nil || refreshed == nil || refreshed.AccessToken == "" {
			cfg.Logger.Info("Token refresh failed", "error", refreshErr)
			return nil, "", errors.New("token expired and refresh failed")
		}
		cfg.Logger.Info("Token refreshed successfully",
			"user_id", refreshed.User.ID,
			"expires_in", refreshed.ExpiresIn,
		)
		SetSessionCookies(c, refreshed, cfg.SecureCookies)

		token = refreshed.AccessToken
		claims, err = cfg.Validator.Validate(token)
		if err != nil {
			return nil, "", errors.New("refreshed token validation failed")
		}
	}

	enhanced := &helpers.EnhancedClaims{
		CustomClaims: claims,
		Role:         models.RoleGuest,
		UserID:       claims.Subject,
		Email:        claims.Email,
	}

	userID, parseErr := uuid.Parse(claims.Subject)
	if parseErr != nil {
		cfg.Logger.Error("Invalid user ID in token", "user_id", claims.Subject, "error", parseErr)
		return enhanced, token, nil
	}

	user, err := cfg.Users.GetUser(c.Request.Context(), userID, token)
	if err != nil {
		cfg.Logger.Info("Profile not found, using default role", "user_id", claims.Subject, "error", err)
		return enhanced, token, nil
	}
	if user.Role != "" {
		enhanced.Role = user.Role
	}
	enhanced.Username = user.Username
	enhanced.Fullname = user.FullName
	enhanced.PhoneNumber = user.PhoneNumber
	enhanced.AvatarURL = user.AvatarURL
	if !user.CreatedAt.IsZero() {
		enhanced.CreatedAt = user.CreatedAt.Format(time.RFC3339)
	}
	return enhanced, token, nil
}

func AuthMiddleware(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, token, err := authenticate(c, cfg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.CodedErrorResponse(
				apperrors.CodeAuthenticationRequired,
				"Unauthorized access",
				map[string]any{"reason": err.Error()},
			))
			return
		}
		c.Set(helpers.ContextUserKey, claims)
		c.Set(helpers.ContextAccessTokenKey, token)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid session is present and never rejects.
func OptionalAuth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, token, err := authenticate(c, cfg); err == nil {
			c.Set(helpers.ContextUserKey, claims)
			c.Set(helpers.ContextAccessTokenKey, token)
		}
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := helpers.GetClaims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.CodedErrorResponse(apperrors.CodeAuthenticationRequired, "Unauthorized access", nil))
			return
		}
		for _, role := range roles {
			if claims.HasRole(role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, models.CodedErrorResponse(apperrors.CodeForbidden, "insufficient permissions", nil))
	}
}
