package models

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashCost is the bcrypt cost used when hashing raw credentials.
var HashCost = bcrypt.DefaultCost

// MaxPasswordBytes is the longest raw credential bcrypt accepts.
const MaxPasswordBytes = 72

var (
	// ErrEmptyPassword is returned when hashing an empty raw credential.
	ErrEmptyPassword = errors.New("password cannot be empty")
	// ErrPasswordTooLong is returned when a raw credential exceeds MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password must not exceed 72 bytes")
)

// Credential is either a raw secret awaiting hashing or a stored bcrypt hash.
// The zero value is an empty raw credential.
type Credential struct {
	value  string
	hashed bool
}

// RawCredential wraps a plaintext password.
func RawCredential(password string) Credential {
	return Credential{value: password}
}

// HashedCredential wraps a hash loaded from the store.
func HashedCredential(hash string) Credential {
	return Credential{value: hash, hashed: true}
}

// IsHashed reports whether the credential already holds a hash.
func (c Credential) IsHashed() bool {
	return c.hashed
}

// Hash returns a hashed credential. Hashed credentials are returned unchanged.
func (c Credential) Hash() (Credential, error) {
	if c.hashed {
		return c, nil
	}
	if c.value == "" {
		return Credential{}, ErrEmptyPassword
	}
	if len(c.value) > MaxPasswordBytes {
		return Credential{}, ErrPasswordTooLong
	}
	h, err := bcrypt.GenerateFromPassword([]byte(c.value), HashCost)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to hash password: %w", err)
	}
	return HashedCredential(string(h)), nil
}

// Encoded returns the stored hash. It panics on a raw credential so plaintext
// can never reach the store.
func (c Credential) Encoded() string {
	if !c.hashed {
		panic("models: encoding a raw credential")
	}
	return c.value
}

// Verify compares password against the stored hash. Raw credentials never
// verify; plaintext is not compared.
func (c Credential) Verify(password string) bool {
	if !c.hashed {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.value), []byte(password)) == nil
}

// String keeps credentials out of logs.
func (c Credential) String() string {
	if c.hashed {
		return "[hashed credential]"
	}
	return "[raw credential]"
}
