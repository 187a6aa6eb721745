package helpers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/models"
)

const (
	ContextUserKey        = "user"
	ContextAccessTokenKey = "access_token"
	AccessTokenCookie     = "access_token"
	RefreshTokenCookie    = "refresh_token"
)

type EnhancedClaims struct {
	*CustomClaims
	Role        string `json:"role"`
	UserID      string `json:"id"`
	Email       string `json:"email,omitempty"`
	Username    string `json:"username,omitempty"`
	Fullname    string `json:"fullname,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

func (ec *EnhancedClaims) IsAdmin() bool {
	return ec.Role == models.RoleAdmin
}

func (ec *EnhancedClaims) IsHost() bool {
	return ec.Role == models.RoleHost
}

func (ec *EnhancedClaims) HasRole(role string) bool {
	return ec.Role == role
}

func (ec *EnhancedClaims) IsOwner(userID string) bool {
	return ec.UserID == userID
}

func (ec *EnhancedClaims) GetSafeRole() string {
	if ec.Role == "" {
		return models.RoleGuest
	}
	return ec.Role
}

// Principal is the caller identity handed to services, together with the
// session token used for row level security on the backend.
type Principal struct {
	UserID      uuid.UUID
	Email       string
	Role        string
	AccessToken string
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == models.RoleAdmin
}

func (p *Principal) IsHost() bool {
	return p != nil && p.Role == models.RoleHost
}

func (ec *EnhancedClaims) Principal(accessToken string) (*Principal, error) {
	id, err := uuid.Parse(ec.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in token: %v", err)
	}
	return &Principal{
		UserID:      id,
		Email:       ec.Email,
		Role:        ec.GetSafeRole(),
		AccessToken: accessToken,
	}, nil
}

// GetClaims returns the claims AuthMiddleware stored on the request.
func GetClaims(c *gin.Context) (*EnhancedClaims, bool) {
	v, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*EnhancedClaims)
	return claims, ok
}

// GetPrincipal returns nil when the request is anonymous.
func GetPrincipal(c *gin.Context) *Principal {
	claims, ok := GetClaims(c)
	if !ok {
		return nil
	}
	p, err := claims.Principal(AccessToken(c))
	if err != nil {
		return nil
	}
	return p
}

// AccessToken prefers the token the middleware resolved (it may have been refreshed),
// then the Authorization header, then the cookie.
func AccessToken(c *gin.Context) string {
	if token := c.GetString(ContextAccessTokenKey); token != "" {
		return token
	}
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	token, _ := c.Cookie(AccessTokenCookie)
	return token
}

// ParsePagination reads limit/offset query params and returns the 1-based page too.
func ParsePagination(c *gin.Context, defaultLimit, maxLimit int) (offset, limit, page int, err error) {
	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		return 0, 0, 0, fmt.Errorf("invalid limit parameter")
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0, 0, 0, fmt.Errorf("invalid offset parameter")
	}
	return offset, limit, offset/limit + 1, nil
}
