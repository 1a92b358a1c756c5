package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/models"
)

// Token type claim values.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenManager signs and parses the HMAC token pair. Access tokens carry the
// role for the middleware; refresh tokens carry only the subject and a JTI
// that must match the server-side record to be honored.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager builds a token manager for the given secret and lifetimes.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// AccessTTL exposes the access token lifetime for expires_in reporting.
func (m *TokenManager) AccessTTL() time.Duration {
	return m.accessTTL
}

// RefreshTTL exposes the refresh token lifetime for store expiry.
func (m *TokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

// IssuePair mints a fresh access/refresh pair and returns the refresh JTI the
// caller must persist.
func (m *TokenManager) IssuePair(user models.User) (dto.TokenPairResponse, string, error) {
	issuedAt := m.now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  string(user.Role),
		"typ":   tokenTypeAccess,
		"iat":   issuedAt.Unix(),
		"exp":   issuedAt.Add(m.accessTTL).Unix(),
	})
	accessString, err := access.SignedString(m.secret)
	if err != nil {
		return dto.TokenPairResponse{}, "", fmt.Errorf("signing access token: %w", err)
	}

	jti := uuid.NewString()
	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"jti": jti,
		"typ": tokenTypeRefresh,
		"iat": issuedAt.Unix(),
		"exp": issuedAt.Add(m.refreshTTL).Unix(),
	})
	refreshString, err := refresh.SignedString(m.secret)
	if err != nil {
		return dto.TokenPairResponse{}, "", fmt.Errorf("signing refresh token: %w", err)
	}

	return dto.TokenPairResponse{
		AccessToken:  accessString,
		RefreshToken: refreshString,
		TokenType:    "Bearer",
		ExpiresIn:    int64(m.accessTTL.Seconds()),
	}, jti, nil
}

// ParseRefresh validates a refresh token and returns its subject and JTI.
func (m *TokenManager) ParseRefresh(tokenString string) (uint, string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, "", apperror.TokenExpired
		}
		return 0, "", apperror.TokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, "", apperror.TokenInvalid
	}

	if typ, _ := claims["typ"].(string); typ != tokenTypeRefresh {
		return 0, "", apperror.TokenInvalid
	}

	subject, ok := claims["sub"].(float64)
	if !ok || subject <= 0 {
		return 0, "", apperror.TokenInvalid
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return 0, "", apperror.TokenInvalid
	}

	return uint(subject), jti, nil
}
