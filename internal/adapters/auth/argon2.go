package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"

	"eventmanager/internal/domain"
)

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
}

// DefaultArgon2Params are used when PASSWORD_SCHEME selects argon2id.
var DefaultArgon2Params = Argon2Params{Memory: 64 * 1024, Time: 3, Threads: 2}

type argon2Hasher struct {
	kdf    KeyDeriver
	params Argon2Params
	scheme string
}

// NewArgon2Hasher returns a PasswordHasher using argon2id with a 16-byte salt and 32-byte key.
func NewArgon2Hasher(kdf KeyDeriver, params Argon2Params) domain.PasswordHasher {
	return newArgon2Hasher(kdf, params)
}

func newArgon2Hasher(kdf KeyDeriver, params Argon2Params) *argon2Hasher {
	return &argon2Hasher{kdf: kdf, params: params, scheme: argon2Scheme(params)}
}

func (h *argon2Hasher) Scheme() string { return h.scheme }

func (h *argon2Hasher) Derive(password string) (domain.Credential, error) {
	salt, err := h.kdf.GenerateSalt(SaltSize)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	return domain.Credential{Digest: h.digest(password, salt), Salt: salt, Scheme: h.scheme}, nil
}

func (h *argon2Hasher) Verify(password string, cred domain.Credential) (bool, error) {
	if len(cred.Salt) != SaltSize {
		return false, fmt.Errorf("%w: want %d bytes, got %d", domain.ErrInvalidSalt, SaltSize, len(cred.Salt))
	}
	digest := h.digest(password, cred.Salt)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(cred.Digest)) == 1, nil
}

func (h *argon2Hasher) NeedsRehash(cred domain.Credential) bool {
	return effectiveScheme(cred) != h.scheme
}

func (h *argon2Hasher) digest(password string, salt []byte) string {
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, KeySize)
	return base64.StdEncoding.EncodeToString(key)
}
