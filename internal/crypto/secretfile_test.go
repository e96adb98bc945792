package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptSecret("admin-key-123", "correct horse")
	require.NoError(t, err)

	secret, err := DecryptSecret(blob, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "admin-key-123", secret)
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptSecret("admin-key-123", "correct horse")
	require.NoError(t, err)

	_, err = DecryptSecret(blob, "battery staple")
	require.Error(t, err)
}

func TestEncryptValidation(t *testing.T) {
	_, err := EncryptSecret("", "pw")
	require.Error(t, err)

	_, err = EncryptSecret("secret", "")
	require.Error(t, err)
}

func TestLoadSecret(t *testing.T) {
	t.Run("raw secret wins", func(t *testing.T) {
		secret, err := LoadSecret(SecretConfig{RawSecret: "plain"})
		require.NoError(t, err)
		assert.Equal(t, "plain", secret)
	})

	t.Run("encrypted file", func(t *testing.T) {
		blob, err := EncryptSecret("from-file", "pw")
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "admin.key")
		require.NoError(t, os.WriteFile(path, blob, 0o600))

		secret, err := LoadSecret(SecretConfig{EncryptedPath: path, Password: "pw"})
		require.NoError(t, err)
		assert.Equal(t, "from-file", secret)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSecret(SecretConfig{EncryptedPath: "/nonexistent/admin.key", Password: "pw"})
		require.Error(t, err)
	})

	t.Run("unset", func(t *testing.T) {
		secret, err := LoadSecret(SecretConfig{})
		require.NoError(t, err)
		assert.Empty(t, secret)
	})
}
