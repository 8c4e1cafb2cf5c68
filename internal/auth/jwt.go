package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/craftflow/mes-api/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrMissingTenant = errors.New("token missing tenant claim")
)

// Claims is the token payload. The tid claim carries the tenant scope
// and is required on every token.
type Claims struct {
	TenantID    uint     `json:"tid"`
	DisplayName string   `json:"name,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTValidator validates HMAC-signed tokens.
type JWTValidator struct {
	secret []byte
	issuer string
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(cfg *config.AuthConfig) *JWTValidator {
	return &JWTValidator{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}
}

// ValidateToken validates a JWT token and returns user context
func (v *JWTValidator) ValidateToken(tokenString string) (*UserContext, error) {
	claims := &Claims{}
	parsedToken, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !parsedToken.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TenantID == 0 {
		return nil, ErrMissingTenant
	}

	return &UserContext{
		TenantID:    claims.TenantID,
		UserID:      claims.Subject,
		DisplayName: claims.DisplayName,
		Roles:       claims.Roles,
	}, nil
}

// IssueToken signs a token for the given user. Used by the login
// endpoint and by tests.
func IssueToken(cfg *config.AuthConfig, user *UserContext) (string, error) {
	now := time.Now()
	claims := &Claims{
		TenantID:    user.TenantID,
		DisplayName: user.DisplayName,
		Roles:       user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTLDuration())),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}
