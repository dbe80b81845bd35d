package remoteclient_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeforge/crawlcore/pkg/remoteclient"
)

func TestSignAndVerifyTokenRoundTrips(t *testing.T) {
	t.Parallel()
	secret := []byte("test-secret")
	claims := remoteclient.NewClaims("crawler-1", "queue-abc", time.Hour)

	signed, err := remoteclient.SignToken(claims, secret)
	require.NoError(t, err)
	assert.NotEmpty(t, signed)

	got, err := remoteclient.VerifyToken(signed, secret)
	require.NoError(t, err)
	assert.Equal(t, "crawler-1", got.Subject)
	assert.Equal(t, "queue-abc", got.QueueID)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	t.Parallel()
	claims := remoteclient.NewClaims("crawler-1", "", time.Hour)
	signed, err := remoteclient.SignToken(claims, []byte("secret-a"))
	require.NoError(t, err)

	_, err = remoteclient.VerifyToken(signed, []byte("secret-b"))
	require.Error(t, err)
}

func TestVerifyTokenRejectsExpiredToken(t *testing.T) {
	t.Parallel()
	secret := []byte("test-secret")
	claims := remoteclient.NewClaims("crawler-1", "", -time.Minute)
	signed, err := remoteclient.SignToken(claims, secret)
	require.NoError(t, err)

	_, err = remoteclient.VerifyToken(signed, secret)
	require.Error(t, err)
}
