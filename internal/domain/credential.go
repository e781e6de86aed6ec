package domain

import "errors"

// Sentinel errors returned by PasswordHasher implementations.
var (
	// ErrInvalidSalt is returned when a stored salt does not have the length the scheme expects.
	ErrInvalidSalt = errors.New("invalid salt")
	// ErrCryptoUnavailable is returned when the system CSPRNG cannot be read.
	ErrCryptoUnavailable = errors.New("crypto random source unavailable")
	// ErrUnknownScheme is returned when a credential names a scheme no hasher can verify.
	ErrUnknownScheme = errors.New("unknown password scheme")
)

// Credential is a stored password digest together with the salt and the scheme
// that produced it. Digest and Salt are always replaced together.
//
// An empty Scheme marks a record written before schemes were tagged; those are
// PBKDF2-HMAC-SHA256 with 10,000 iterations.
type Credential struct {
	Digest string
	Salt   []byte
	Scheme string
}

// IsZero reports whether no credential has been set.
func (c Credential) IsZero() bool {
	return c.Digest == "" && len(c.Salt) == 0
}

// PasswordHasher derives and verifies salted password digests.
// Implementations must be safe for concurrent use.
type PasswordHasher interface {
	// Derive generates a fresh salt and returns the digest of password under it.
	Derive(password string) (Credential, error)
	// Verify reports whether password matches cred. A mismatch is (false, nil);
	// errors are reserved for malformed credentials and crypto failures.
	Verify(password string, cred Credential) (bool, error)
	// NeedsRehash reports whether cred was produced by a scheme other than the
	// one Derive currently uses.
	NeedsRehash(cred Credential) bool
}
