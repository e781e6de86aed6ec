package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"eventmanager/internal/domain"
)

type bcryptHasher struct {
	kdf    KeyDeriver
	cost   int
	scheme string
}

// NewBcryptHasher returns a PasswordHasher that runs bcrypt over the hex SHA-256 of
// the hex salt concatenated with the password. The SHA-256 step keeps long
// passwords under bcrypt's 72-byte input limit.
func NewBcryptHasher(kdf KeyDeriver, cost int) domain.PasswordHasher {
	return newBcryptHasher(kdf, cost)
}

func newBcryptHasher(kdf KeyDeriver, cost int) *bcryptHasher {
	return &bcryptHasher{kdf: kdf, cost: cost, scheme: bcryptScheme(cost)}
}

func (h *bcryptHasher) Scheme() string { return h.scheme }

func (h *bcryptHasher) Derive(password string) (domain.Credential, error) {
	salt, err := h.kdf.GenerateSalt(SaltSize)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(salt, password), h.cost)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to hash password: %w", err)
	}
	return domain.Credential{Digest: string(hash), Salt: salt, Scheme: h.scheme}, nil
}

func (h *bcryptHasher) Verify(password string, cred domain.Credential) (bool, error) {
	if len(cred.Salt) != SaltSize {
		return false, fmt.Errorf("%w: want %d bytes, got %d", domain.ErrInvalidSalt, SaltSize, len(cred.Salt))
	}
	err := bcrypt.CompareHashAndPassword([]byte(cred.Digest), bcryptInput(cred.Salt, password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to compare bcrypt hash: %w", err)
	}
	return true, nil
}

func (h *bcryptHasher) NeedsRehash(cred domain.Credential) bool {
	return effectiveScheme(cred) != h.scheme
}

func bcryptInput(salt []byte, password string) []byte {
	sum := sha256.Sum256([]byte(hex.EncodeToString(salt) + password))
	return []byte(hex.EncodeToString(sum[:]))
}
