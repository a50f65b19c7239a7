// Package auth issues and validates operator tokens for the HTTP API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"invclose/internal/config"
	"invclose/internal/core/clock"
	appctx "invclose/internal/core/context"
)

// Roles understood by the API.
const (
	// RoleOperator may run reconciliation, reports and the regular close.
	RoleOperator = "operator"
	// RoleAdmin may additionally reset failed closes and run development closes.
	RoleAdmin = "admin"
)

// ErrNoSecret is returned when tokens are requested without a signing secret.
var ErrNoSecret = errors.New("jwt secret is not configured")

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// JWTConfigFrom maps the auth section of the configuration.
func JWTConfigFrom(cfg config.AuthConfig) JWTConfig {
	return JWTConfig{
		Secret:         cfg.JWTSecret,
		Issuer:         cfg.Issuer,
		AccessTokenTTL: cfg.TokenTTL,
	}
}

// Claims are the operator token claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID string   `json:"uid"`
	Name   string   `json:"name,omitempty"`
	Roles  []string `json:"roles"`
}

// JWTService signs and validates HS256 tokens.
type JWTService struct {
	config JWTConfig
	clock  clock.Clock
}

// NewJWTService creates a JWT service.
func NewJWTService(cfg JWTConfig, clk clock.Clock) *JWTService {
	return &JWTService{config: cfg, clock: clk}
}

// GenerateAccessToken issues a token for an operator.
func (s *JWTService) GenerateAccessToken(userID, name string, roles []string) (string, time.Time, error) {
	if s.config.Secret == "" {
		return "", time.Time{}, ErrNoSecret
	}
	now := s.clock.Now()
	expiresAt := now.Add(s.config.AccessTokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
		Name:   name,
		Roles:  roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a token and returns the operator it names.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.UserContext, error) {
	if s.config.Secret == "" {
		return nil, ErrNoSecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user id")
	}

	return &appctx.UserContext{
		UserID: claims.UserID,
		Name:   claims.Name,
		Roles:  claims.Roles,
	}, nil
}
