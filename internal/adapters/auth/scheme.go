package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"eventmanager/internal/domain"
)

// Scheme names accepted by NewRegistry.
const (
	SchemePBKDF2   = "pbkdf2-sha256"
	SchemeArgon2id = "argon2id"
	SchemeBcrypt   = "bcrypt-sha256"
)

// schemeHasher is a PasswordHasher that knows the tag it writes into credentials.
type schemeHasher interface {
	domain.PasswordHasher
	Scheme() string
}

func pbkdf2Scheme(iterations int) string {
	return fmt.Sprintf("%s$i=%d", SchemePBKDF2, iterations)
}

func argon2Scheme(p Argon2Params) string {
	return fmt.Sprintf("%s$m=%d,t=%d,p=%d", SchemeArgon2id, p.Memory, p.Time, p.Threads)
}

func bcryptScheme(cost int) string {
	return fmt.Sprintf("%s$cost=%d", SchemeBcrypt, cost)
}

// effectiveScheme returns the scheme tag of cred, mapping untagged records to
// the original PBKDF2 parameters.
func effectiveScheme(cred domain.Credential) string {
	if cred.Scheme == "" {
		return pbkdf2Scheme(DefaultPBKDF2Iterations)
	}
	return cred.Scheme
}

// parseScheme builds a verifying hasher for a stored scheme tag. The tag must
// round-trip exactly; anything else is ErrUnknownScheme.
func parseScheme(kdf KeyDeriver, tag string) (schemeHasher, error) {
	name, params, ok := strings.Cut(tag, "$")
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownScheme, tag)
	}
	var h schemeHasher
	switch name {
	case SchemePBKDF2:
		var iterations int
		if _, err := fmt.Sscanf(params, "i=%d", &iterations); err != nil || iterations < 1 {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownScheme, tag)
		}
		h = newPBKDF2Hasher(kdf, iterations)
	case SchemeArgon2id:
		var p Argon2Params
		if _, err := fmt.Sscanf(params, "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownScheme, tag)
		}
		if p.Time < 1 || p.Threads < 1 || p.Memory < 8*uint32(p.Threads) {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownScheme, tag)
		}
		h = newArgon2Hasher(kdf, p)
	case SchemeBcrypt:
		var cost int
		if _, err := fmt.Sscanf(params, "cost=%d", &cost); err != nil || cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownScheme, tag)
		}
		h = newBcryptHasher(kdf, cost)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownScheme, tag)
	}
	if h.Scheme() != tag {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownScheme, tag)
	}
	return h, nil
}
