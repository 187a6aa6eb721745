package helpers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joshua-takyi/staylink/internal/models"
)

type CustomClaims struct {
	Role        string `json:"role"`
	Email       string `json:"email"`
	AppMetadata struct {
		Provider  string   `json:"provider"`
		Providers []string `json:"providers"`
		Roles     []string `json:"roles,omitempty"`
	} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// TokenValidator verifies Supabase access tokens against the project's JWKS.
// The key set is fetched once and refreshed in the background.
type TokenValidator struct {
	jwksURL         string
	allowUnverified bool

	mu   sync.Mutex
	jwks *keyfunc.JWKS
}

func NewTokenValidator(supabaseURL string, allowUnverified bool) *TokenValidator {
	return &TokenValidator{
		jwksURL:         fmt.Sprintf("%s/auth/v1/.well-known/jwks.json", strings.TrimRight(supabaseURL, "/")),
		allowUnverified: allowUnverified,
	}
}

func (tv *TokenValidator) keySet() (*keyfunc.JWKS, error) {
	tv.mu.Lock()
	defer tv.mu.Unlock()
	if tv.jwks != nil {
		return tv.jwks, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jwks, err := keyfunc.Get(tv.jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, err
	}
	tv.jwks = jwks
	return jwks, nil
}

func (tv *TokenValidator) Validate(tokenStr string) (*CustomClaims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, errors.New("token is empty")
	}

	jwks, err := tv.keySet()
	if err != nil {
		if !tv.allowUnverified {
			return nil, fmt.Errorf("failed to load signing keys: %v", err)
		}
		// development only: the JWKS endpoint is often unreachable locally
		token, _, parseErr := jwt.NewParser().ParseUnverified(tokenStr, &CustomClaims{})
		if parseErr != nil {
			return nil, fmt.Errorf("JWKS validation failed and fallback parsing failed: %v", parseErr)
		}
		claims, ok := token.Claims.(*CustomClaims)
		if !ok {
			return nil, errors.New("invalid token claims")
		}
		if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
			return nil, errors.New("token is expired")
		}
		return claims, nil
	}

	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %v", err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	return claims, nil
}

func (tv *TokenValidator) Close() {
	tv.mu.Lock()
	defer tv.mu.Unlock()
	if tv.jwks != nil {
		tv.jwks.EndBackground()
		tv.jwks = nil
	}
}

var (
	lowerRe   = regexp.MustCompile(`[a-z]`)
	upperRe   = regexp.MustCompile(`[A-Z]`)
	numberRe  = regexp.MustCompile(`\d`)
	specialRe = regexp.MustCompile(`[@$!%*?&]`)
)

func IsPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}
	return lowerRe.MatchString(password) &&
		upperRe.MatchString(password) &&
		numberRe.MatchString(password) &&
		specialRe.MatchString(password)
}

// zero-decimal currencies used by the payment provider
var zeroDecimalCurrencies = map[string]bool{
	"XOF": true,
	"XAF": true,
	"GNF": true,
	"JPY": true,
}

// RoundCurrency rounds amount to the minor unit of currency.
func RoundCurrency(amount float64, currency string) float64 {
	if zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))] {
		return math.Round(amount)
	}
	return math.Round(amount*100) / 100
}

func SuccessResponse(data interface{}, message string) models.ApiResponse {
	return models.SuccessResponse(data, message)
}

func ErrorResponse(err string) models.ApiResponse {
	return models.ErrorResponse(err)
}

func PaginatedResponse(data interface{}, page, limit, total int) models.ApiResponse {
	return models.PaginatedResponse(data, page, limit, total)
}
