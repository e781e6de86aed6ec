package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"eventmanager/internal/domain"
)

// Options selects the scheme new credentials are derived with.
type Options struct {
	Scheme           string // SchemePBKDF2 (default), SchemeArgon2id or SchemeBcrypt
	PBKDF2Iterations int
	BcryptCost       int
	Argon2           Argon2Params
}

type registry struct {
	kdf     KeyDeriver
	current schemeHasher
}

// NewRegistry returns a PasswordHasher that derives with the scheme chosen in opts
// and verifies credentials of any known scheme, dispatching on their tag.
func NewRegistry(kdf KeyDeriver, opts Options) (domain.PasswordHasher, error) {
	var current schemeHasher
	switch opts.Scheme {
	case "", SchemePBKDF2:
		iterations := opts.PBKDF2Iterations
		if iterations == 0 {
			iterations = DefaultPBKDF2Iterations
		}
		if iterations < 1 {
			return nil, fmt.Errorf("invalid pbkdf2 iterations %d", iterations)
		}
		current = newPBKDF2Hasher(kdf, iterations)
	case SchemeArgon2id:
		params := opts.Argon2
		if params == (Argon2Params{}) {
			params = DefaultArgon2Params
		}
		current = newArgon2Hasher(kdf, params)
	case SchemeBcrypt:
		cost := opts.BcryptCost
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return nil, fmt.Errorf("invalid bcrypt cost %d", cost)
		}
		current = newBcryptHasher(kdf, cost)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownScheme, opts.Scheme)
	}
	return &registry{kdf: kdf, current: current}, nil
}

func (r *registry) Derive(password string) (domain.Credential, error) {
	return r.current.Derive(password)
}

func (r *registry) Verify(password string, cred domain.Credential) (bool, error) {
	tag := effectiveScheme(cred)
	h := r.current
	if tag != h.Scheme() {
		var err error
		if h, err = parseScheme(r.kdf, tag); err != nil {
			return false, err
		}
	}
	return h.Verify(password, cred)
}

func (r *registry) NeedsRehash(cred domain.Credential) bool {
	return r.current.NeedsRehash(cred)
}
