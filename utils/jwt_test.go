package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audittool/config"
)

func setupJWTConfig(t *testing.T) {
	t.Helper()
	config.JWTKey = []byte("test-signing-key")
	config.JWTExpiration = time.Hour
}

func TestGenerateAndValidateJWT(t *testing.T) {
	setupJWTConfig(t)

	token, err := GenerateJWT("65f000000000000000000001", "Asha Rao", "asha.rao@onextel.com", "auditor")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	require.NotNil(t, claims)

	assert.Equal(t, "65f000000000000000000001", claims.UserID)
	assert.Equal(t, "Asha Rao", claims.Name)
	assert.Equal(t, "asha.rao@onextel.com", claims.Email)
	assert.Equal(t, "auditor", claims.Role)
}

func TestValidateJWT_RejectsTamperedToken(t *testing.T) {
	setupJWTConfig(t)

	token, err := GenerateJWT("65f000000000000000000001", "Asha Rao", "asha.rao@onextel.com", "user")
	require.NoError(t, err)

	claims, err := ValidateJWT(token + "x")
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestValidateJWT_RejectsWrongKey(t *testing.T) {
	setupJWTConfig(t)
	token, err := GenerateJWT("65f000000000000000000001", "Asha Rao", "asha.rao@onextel.com", "user")
	require.NoError(t, err)

	config.JWTKey = []byte("a-different-key")
	claims, err := ValidateJWT(token)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestValidateJWT_RejectsExpiredToken(t *testing.T) {
	setupJWTConfig(t)
	config.JWTExpiration = -time.Minute

	token, err := GenerateJWT("65f000000000000000000001", "Asha Rao", "asha.rao@onextel.com", "user")
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	assert.Error(t, err)
	assert.Nil(t, claims)
}
