package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/models"
)

const testTokenSecret = "test-secret-at-least-32-characters"

func TestIssuePairCarriesClaims(t *testing.T) {
	manager := NewTokenManager(testTokenSecret, 15*time.Minute, 7*24*time.Hour)
	user := models.User{Email: "leader@srm.edu", Role: models.RoleStudent}
	user.ID = 7

	pair, jti, err := manager.IssuePair(user)
	require.NoError(t, err)
	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, int64(900), pair.ExpiresIn)
	require.NotEmpty(t, jti)

	token, err := jwt.Parse(pair.AccessToken, func(*jwt.Token) (interface{}, error) {
		return []byte(testTokenSecret), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	require.Equal(t, float64(7), claims["sub"])
	require.Equal(t, "leader@srm.edu", claims["email"])
	require.Equal(t, "student", claims["role"])
	require.Equal(t, "access", claims["typ"])

	subject, parsedJTI, err := manager.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, uint(7), subject)
	require.Equal(t, jti, parsedJTI)
}

func TestIssuePairMintsFreshJTIs(t *testing.T) {
	manager := NewTokenManager(testTokenSecret, 15*time.Minute, 7*24*time.Hour)
	user := models.User{Email: "leader@srm.edu", Role: models.RoleStudent}
	user.ID = 7

	_, first, err := manager.IssuePair(user)
	require.NoError(t, err)
	_, second, err := manager.IssuePair(user)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestParseRefreshRejectsAccessToken(t *testing.T) {
	manager := NewTokenManager(testTokenSecret, 15*time.Minute, 7*24*time.Hour)
	user := models.User{Email: "leader@srm.edu", Role: models.RoleStudent}
	user.ID = 7

	pair, _, err := manager.IssuePair(user)
	require.NoError(t, err)

	// The typ claim keeps the two halves of the pair from being swapped.
	_, _, err = manager.ParseRefresh(pair.AccessToken)
	require.ErrorIs(t, err, apperror.TokenInvalid)
}

func TestParseRefreshRejectsForeignSecret(t *testing.T) {
	issuer := NewTokenManager(testTokenSecret, 15*time.Minute, 7*24*time.Hour)
	verifier := NewTokenManager("another-secret-also-32-characters!!", 15*time.Minute, 7*24*time.Hour)
	user := models.User{Email: "leader@srm.edu", Role: models.RoleStudent}
	user.ID = 7

	pair, _, err := issuer.IssuePair(user)
	require.NoError(t, err)

	_, _, err = verifier.ParseRefresh(pair.RefreshToken)
	require.ErrorIs(t, err, apperror.TokenInvalid)
}

func TestParseRefreshRejectsExpired(t *testing.T) {
	manager := NewTokenManager(testTokenSecret, 15*time.Minute, time.Hour)
	manager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	user := models.User{Email: "leader@srm.edu", Role: models.RoleStudent}
	user.ID = 7

	pair, _, err := manager.IssuePair(user)
	require.NoError(t, err)

	_, _, err = manager.ParseRefresh(pair.RefreshToken)
	require.ErrorIs(t, err, apperror.TokenExpired)
}

func TestParseRefreshRejectsGarbage(t *testing.T) {
	manager := NewTokenManager(testTokenSecret, 15*time.Minute, 7*24*time.Hour)

	_, _, err := manager.ParseRefresh("not-a-token")
	require.ErrorIs(t, err, apperror.TokenInvalid)
}
