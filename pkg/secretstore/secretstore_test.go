package secretstore

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsRoundTrip(t *testing.T) {
	s, err := Open(OpenOptions{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	_, _, err = s.Credentials()
	assert.ErrorIs(t, err, ErrCredentialsMissing)

	require.NoError(t, s.SaveCredentials("key-1", "secret-1"))
	key, secret, err := s.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "key-1", key)
	assert.Equal(t, "secret-1", secret)
}

func TestGetStringDistinguishesEmptyValue(t *testing.T) {
	s, err := Open(OpenOptions{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetString("empty", ""))
	v, ok, err := s.GetString("empty")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", v)

	_, ok, err = s.GetString("absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseKey(t *testing.T) {
	hexKey := strings.Repeat("ab", 32)
	b, err := ParseKey(hexKey)
	require.NoError(t, err)
	assert.Len(t, b, 32)

	b, err = ParseKey("0x" + hexKey)
	require.NoError(t, err)
	assert.Len(t, b, 32)

	raw := make([]byte, 32)
	b, err = ParseKey(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Len(t, b, 32)

	b, err = ParseKey("")
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = ParseKey("abcd")
	assert.Error(t, err)
}
