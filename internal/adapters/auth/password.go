package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"eventmanager/internal/domain"
)

const (
	// SaltSize is the salt length in bytes for every scheme.
	SaltSize = 16
	// KeySize is the derived key length in bytes before base64 encoding.
	KeySize = 32
	// DefaultPBKDF2Iterations is the iteration count of untagged credentials.
	DefaultPBKDF2Iterations = 10000
)

type pbkdf2Hasher struct {
	kdf        KeyDeriver
	iterations int
	scheme     string
}

// NewPBKDF2Hasher returns a PasswordHasher that derives a 32-byte PBKDF2-HMAC-SHA256
// key from a 16-byte random salt and stores it base64 encoded.
func NewPBKDF2Hasher(kdf KeyDeriver, iterations int) domain.PasswordHasher {
	return newPBKDF2Hasher(kdf, iterations)
}

func newPBKDF2Hasher(kdf KeyDeriver, iterations int) *pbkdf2Hasher {
	return &pbkdf2Hasher{
		kdf:        kdf,
		iterations: iterations,
		scheme:     pbkdf2Scheme(iterations),
	}
}

func (h *pbkdf2Hasher) Scheme() string { return h.scheme }

func (h *pbkdf2Hasher) Derive(password string) (domain.Credential, error) {
	salt, err := h.kdf.GenerateSalt(SaltSize)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	digest, err := h.digest(password, salt)
	if err != nil {
		return domain.Credential{}, err
	}
	return domain.Credential{Digest: digest, Salt: salt, Scheme: h.scheme}, nil
}

func (h *pbkdf2Hasher) Verify(password string, cred domain.Credential) (bool, error) {
	if len(cred.Salt) != SaltSize {
		return false, fmt.Errorf("%w: want %d bytes, got %d", domain.ErrInvalidSalt, SaltSize, len(cred.Salt))
	}
	digest, err := h.digest(password, cred.Salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(digest), []byte(cred.Digest)) == 1, nil
}

func (h *pbkdf2Hasher) NeedsRehash(cred domain.Credential) bool {
	return effectiveScheme(cred) != h.scheme
}

func (h *pbkdf2Hasher) digest(password string, salt []byte) (string, error) {
	key, err := h.kdf.DeriveKey([]byte(password), salt, h.iterations, KeySize, sha256.New)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
