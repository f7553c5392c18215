// Package crypto provides the credential vault for stored secrets
// (datasource passwords, model API keys).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
)

// DefaultFallbackKey is the compiled-in key used when no primary key is configured
// and as the second decryption attempt for tokens written before a key rotation.
const DefaultFallbackKey = "wenshu-engine-default-credential-key"

var (
	// ErrInvalidKey is returned when no usable encryption key is configured.
	ErrInvalidKey = errors.New("invalid encryption key: must not be empty")
	// ErrDecryptionFailed is returned when decryption fails due to invalid ciphertext or wrong key.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or wrong key")
)

// DecryptStatus reports which key, if any, opened a token.
type DecryptStatus int

const (
	DecryptedPrimary DecryptStatus = iota
	DecryptedFallback
	// Degraded means no key opened the token and the default credential was returned.
	Degraded
)

func (s DecryptStatus) String() string {
	switch s {
	case DecryptedPrimary:
		return "primary"
	case DecryptedFallback:
		return "fallback"
	default:
		return "degraded"
	}
}

// VaultConfig is injected at construction; the vault holds no global state.
type VaultConfig struct {
	// PrimaryKey is a base64-encoded 32-byte key or any passphrase (SHA-256 hashed).
	PrimaryKey string
	// FallbackKey is tried when the primary key fails. Defaults to DefaultFallbackKey.
	FallbackKey string
	// DefaultCredential is returned when no key can decrypt a token.
	DefaultCredential string
}

// Vault encrypts and decrypts secrets with AES-256-GCM.
// Tokens are base64(nonce || ciphertext || tag).
type Vault struct {
	primary           cipher.AEAD
	fallback          cipher.AEAD
	defaultCredential string
	logger            *zap.Logger
}

// NewVault creates a vault. An empty primary key means the fallback key is used for
// both encryption and decryption.
func NewVault(cfg VaultConfig, logger *zap.Logger) (*Vault, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fallbackKey := cfg.FallbackKey
	if fallbackKey == "" {
		fallbackKey = DefaultFallbackKey
	}

	fallback, err := newAEAD(fallbackKey)
	if err != nil {
		return nil, fmt.Errorf("fallback key: %w", err)
	}

	primary := fallback
	if cfg.PrimaryKey != "" {
		primary, err = newAEAD(cfg.PrimaryKey)
		if err != nil {
			return nil, fmt.Errorf("primary key: %w", err)
		}
	} else {
		logger.Warn("No encryption key configured, using built-in fallback key")
	}

	return &Vault{
		primary:           primary,
		fallback:          fallback,
		defaultCredential: cfg.DefaultCredential,
		logger:            logger.Named("vault"),
	}, nil
}

// newAEAD derives a GCM cipher from a key string.
// A valid base64 string decoding to exactly 32 bytes is used directly;
// anything else is hashed with SHA-256.
func newAEAD(keyInput string) (cipher.AEAD, error) {
	if keyInput == "" {
		return nil, ErrInvalidKey
	}

	var key []byte
	decoded, err := base64.StdEncoding.DecodeString(keyInput)
	if err == nil && len(decoded) == 32 {
		key = decoded
	} else {
		hash := sha256.Sum256([]byte(keyInput))
		key = hash[:]
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt returns the token for plaintext. Empty input, or any internal
// failure, yields "" which callers treat as "no credential configured".
func (v *Vault) Encrypt(plaintext string) string {
	if plaintext == "" {
		return ""
	}

	nonce := make([]byte, v.primary.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		v.logger.Error("Failed to generate nonce", zap.Error(err))
		return ""
	}

	sealed := v.primary.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed)
}

// Decrypt never fails: when neither key opens the token the configured
// default credential is returned and a warning is logged.
func (v *Vault) Decrypt(token string) string {
	plaintext, _ := v.DecryptWithStatus(token)
	return plaintext
}

// DecryptWithStatus is Decrypt plus the key that succeeded. A Degraded status
// means the returned value is the default credential, not the stored secret.
func (v *Vault) DecryptWithStatus(token string) (string, DecryptStatus) {
	if token == "" {
		return "", DecryptedPrimary
	}

	if plaintext, err := open(v.primary, token); err == nil {
		return plaintext, DecryptedPrimary
	}

	if v.fallback != v.primary {
		if plaintext, err := open(v.fallback, token); err == nil {
			v.logger.Info("Credential decrypted with fallback key")
			return plaintext, DecryptedFallback
		}
	}

	v.logger.Warn("Credential could not be decrypted with any configured key, using default credential")
	return v.defaultCredential, Degraded
}

// Strict decrypts without degrading, returning a CredentialError on failure.
func (v *Vault) Strict(token string) (string, error) {
	plaintext, status := v.DecryptWithStatus(token)
	if status == Degraded {
		return "", &apperrors.CredentialError{Subject: "token", Cause: ErrDecryptionFailed}
	}
	return plaintext, nil
}

func open(gcm cipher.AEAD, token string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrDecryptionFailed)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize+gcm.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
	}
	return string(plaintext), nil
}
