package auth

import (
	"crypto/rand"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"eventmanager/internal/domain"
)

// KeyDeriver is the random source and key-derivation capability the hashers are built on.
type KeyDeriver interface {
	GenerateSalt(n int) ([]byte, error)
	DeriveKey(password, salt []byte, iterations, keyLen int, prf func() hash.Hash) ([]byte, error)
}

type systemKeyDeriver struct {
	rand io.Reader
}

// NewKeyDeriver returns a KeyDeriver backed by crypto/rand and PBKDF2.
func NewKeyDeriver() KeyDeriver {
	return &systemKeyDeriver{rand: rand.Reader}
}

func (d *systemKeyDeriver) GenerateSalt(n int) ([]byte, error) {
	salt := make([]byte, n)
	if _, err := io.ReadFull(d.rand, salt); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCryptoUnavailable, err)
	}
	return salt, nil
}

func (d *systemKeyDeriver) DeriveKey(password, salt []byte, iterations, keyLen int, prf func() hash.Hash) ([]byte, error) {
	if iterations < 1 || keyLen < 1 {
		return nil, fmt.Errorf("invalid pbkdf2 parameters: iterations=%d key_len=%d", iterations, keyLen)
	}
	return pbkdf2.Key(password, salt, iterations, keyLen, prf), nil
}
