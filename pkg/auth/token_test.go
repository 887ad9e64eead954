package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oficinahub/oficina-backend/pkg/config"
	"github.com/oficinahub/oficina-backend/pkg/enums"
)

func jwtConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "oficina-api",
		ExpirationMinutes: 15,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := jwtConfig()
	payload := AccessTokenPayload{
		UserID:     uuid.New(),
		WorkshopID: uuid.New(),
		Role:       enums.MemberRoleMechanic,
	}

	token, err := MintAccessToken(cfg, time.Now().UTC(), payload)
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, payload.UserID, claims.UserID)
	assert.Equal(t, payload.WorkshopID, claims.WorkshopID)
	assert.Equal(t, enums.MemberRoleMechanic, claims.Role)
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	cfg := jwtConfig()
	token, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{
		UserID:     uuid.New(),
		WorkshopID: uuid.New(),
		Role:       enums.MemberRoleManager,
	})
	require.NoError(t, err)

	other := cfg
	other.Secret = "another-secret"
	_, err = ParseAccessToken(other, token)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := jwtConfig()
	issued := time.Now().UTC().Add(-time.Hour)
	token, err := MintAccessToken(cfg, issued, AccessTokenPayload{
		UserID:     uuid.New(),
		WorkshopID: uuid.New(),
		Role:       enums.MemberRoleStaff,
	})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.Error(t, err)
}

func TestMintAccessTokenRejectsInvalidRole(t *testing.T) {
	_, err := MintAccessToken(jwtConfig(), time.Now().UTC(), AccessTokenPayload{
		UserID:     uuid.New(),
		WorkshopID: uuid.New(),
		Role:       enums.MemberRole("janitor"),
	})
	require.Error(t, err)
}
