package utils_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/haramapp/internal/utils"
)

const jwtTestSecret = "unit-test-secret"

func TestTokenPairRoundTrip(t *testing.T) {
	userID := uuid.New()

	pair, err := utils.GenerateTokenPair(jwtTestSecret, userID, time.Hour, 7*24*time.Hour)
	require.NoError(t, err)
	require.NotEqual(t, pair.Access, pair.Refresh)

	got, err := utils.ParseToken(jwtTestSecret, pair.Access, utils.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	got, err = utils.ParseToken(jwtTestSecret, pair.Refresh, utils.TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestParseTokenEnforcesType(t *testing.T) {
	userID := uuid.New()

	pair, err := utils.GenerateTokenPair(jwtTestSecret, userID, time.Hour, 7*24*time.Hour)
	require.NoError(t, err)

	_, err = utils.ParseToken(jwtTestSecret, pair.Refresh, utils.TokenTypeAccess)
	assert.ErrorIs(t, err, utils.ErrWrongTokenType)

	_, err = utils.ParseToken(jwtTestSecret, pair.Access, utils.TokenTypeRefresh)
	assert.ErrorIs(t, err, utils.ErrWrongTokenType)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := utils.GenerateToken(jwtTestSecret, uuid.New(), utils.TokenTypeAccess, time.Hour)
	require.NoError(t, err)

	_, err = utils.ParseToken("other-secret", token, utils.TokenTypeAccess)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := utils.GenerateToken(jwtTestSecret, uuid.New(), utils.TokenTypeAccess, -time.Minute)
	require.NoError(t, err)

	_, err = utils.ParseToken(jwtTestSecret, token, utils.TokenTypeAccess)
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := utils.ParseToken(jwtTestSecret, "not.a.token", utils.TokenTypeAccess)
	assert.Error(t, err)
}
