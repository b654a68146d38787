package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("kiosk-1", RoleKiosk, "gympass", "secret", time.Minute, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := Parse(pair.AccessToken, "secret", "gympass")
	require.NoError(t, err)
	assert.Equal(t, "kiosk-1", claims.Subject)
	assert.Equal(t, RoleKiosk, claims.Role)
}

func TestParseRejectsBadKeyAndIssuer(t *testing.T) {
	pair, err := Issue("kiosk-1", RoleKiosk, "gympass", "secret", time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, "other-secret", "gympass")
	assert.Error(t, err)

	_, err = Parse(pair.AccessToken, "secret", "someone-else")
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	pair, err := Issue("kiosk-1", RoleKiosk, "gympass", "secret", -time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, "secret", "gympass")
	assert.Error(t, err)
}
