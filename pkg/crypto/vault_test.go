package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
)

// Test key: 32 bytes base64-encoded
const testKey = "dGVzdC1rZXktZm9yLXVuaXQtdGVzdHMtMzItYnl0ZXM="

func newTestVault(t *testing.T, cfg VaultConfig) *Vault {
	t.Helper()
	v, err := NewVault(cfg, zap.NewNop())
	require.NoError(t, err)
	return v
}

func TestNewVault(t *testing.T) {
	tests := []struct {
		name string
		cfg  VaultConfig
	}{
		{name: "base64 primary key", cfg: VaultConfig{PrimaryKey: testKey}},
		{name: "passphrase primary key", cfg: VaultConfig{PrimaryKey: "my-secret-passphrase"}},
		{name: "no primary key", cfg: VaultConfig{}},
		{name: "explicit fallback", cfg: VaultConfig{PrimaryKey: testKey, FallbackKey: "older-key"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVault(tt.cfg, nil)
			require.NoError(t, err)
			require.NotNil(t, v)
		})
	}
}

func TestNewAEAD_EmptyKey(t *testing.T) {
	_, err := newAEAD("")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestPassphraseKeyConsistency(t *testing.T) {
	v1 := newTestVault(t, VaultConfig{PrimaryKey: "my-secret-passphrase"})
	v2 := newTestVault(t, VaultConfig{PrimaryKey: "my-secret-passphrase"})

	token := v1.Encrypt("hello")
	require.NotEmpty(t, token)

	plaintext, status := v2.DecryptWithStatus(token)
	assert.Equal(t, "hello", plaintext)
	assert.Equal(t, DecryptedPrimary, status)
}

func TestEncryptDecrypt(t *testing.T) {
	v := newTestVault(t, VaultConfig{PrimaryKey: testKey})

	tests := []struct {
		name      string
		plaintext string
	}{
		{"simple password", "mypassword123"},
		{"special characters", "p@ss!w0rd#$%^&*()"},
		{"unicode", "密码🔐"},
		{"long password", "this-is-a-very-long-password-that-exceeds-typical-lengths-for-testing-purposes"},
		{"json config", `{"host":"localhost","port":5432,"password":"secret"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := v.Encrypt(tt.plaintext)
			require.NotEmpty(t, token)
			assert.NotEqual(t, tt.plaintext, token)
			assert.Equal(t, tt.plaintext, v.Decrypt(token))
		})
	}
}

func TestEncrypt_EmptyPlaintext(t *testing.T) {
	v := newTestVault(t, VaultConfig{PrimaryKey: testKey})
	assert.Equal(t, "", v.Encrypt(""))
	assert.Equal(t, "", v.Decrypt(""))
}

func TestEncryptProducesUniqueNonces(t *testing.T) {
	v := newTestVault(t, VaultConfig{PrimaryKey: testKey})

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := v.Encrypt("same-password")
		require.False(t, seen[token], "duplicate ciphertext on iteration %d", i)
		seen[token] = true
	}
}

func TestDecrypt_FallbackKey(t *testing.T) {
	old := newTestVault(t, VaultConfig{})
	token := old.Encrypt("legacy-secret")

	rotated := newTestVault(t, VaultConfig{PrimaryKey: testKey})
	plaintext, status := rotated.DecryptWithStatus(token)
	assert.Equal(t, "legacy-secret", plaintext)
	assert.Equal(t, DecryptedFallback, status)
}

func TestDecrypt_DegradesToDefaultCredential(t *testing.T) {
	other := newTestVault(t, VaultConfig{PrimaryKey: "some-other-key", FallbackKey: "another-fallback"})
	token := other.Encrypt("secret")

	v := newTestVault(t, VaultConfig{PrimaryKey: testKey, DefaultCredential: "changeme"})
	plaintext, status := v.DecryptWithStatus(token)
	assert.Equal(t, "changeme", plaintext)
	assert.Equal(t, Degraded, status)
	assert.Equal(t, "degraded", status.String())
}

func TestDecryptInvalidInput(t *testing.T) {
	v := newTestVault(t, VaultConfig{PrimaryKey: testKey, DefaultCredential: "fallback-password"})

	tests := []struct {
		name  string
		input string
	}{
		{"invalid base64", "not-valid-base64!!!"},
		{"too short", base64.StdEncoding.EncodeToString([]byte("short"))},
		{"random bytes", randomToken(t, 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "fallback-password", v.Decrypt(tt.input))
		})
	}
}

func TestStrict(t *testing.T) {
	v := newTestVault(t, VaultConfig{PrimaryKey: testKey, DefaultCredential: "changeme"})

	plaintext, err := v.Strict(v.Encrypt("pw"))
	require.NoError(t, err)
	assert.Equal(t, "pw", plaintext)

	_, err = v.Strict("garbage")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCredential)
	assert.True(t, errors.Is(err, ErrDecryptionFailed))

	var credErr *apperrors.CredentialError
	assert.ErrorAs(t, err, &credErr)
}

func TestOpen_ErrorMessages(t *testing.T) {
	gcm, err := newAEAD(testKey)
	require.NoError(t, err)

	_, err = open(gcm, "%%%")
	assert.ErrorContains(t, err, "base64 decode failed")

	_, err = open(gcm, base64.StdEncoding.EncodeToString([]byte("x")))
	assert.ErrorContains(t, err, "ciphertext too short")

	_, err = open(gcm, randomToken(t, 64))
	assert.ErrorContains(t, err, "authentication failed")
}

func randomToken(t *testing.T, n int) string {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(b)
}
