package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidPasswordHash         = errors.New("invalid password hash format")
	ErrIncompatiblePasswordVersion = errors.New("incompatible password hash version")
)

const (
	minPasswordLength = 8
	maxPasswordLength = 256
)

// Argon2idParams tunes the argon2id key derivation.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// PasswordHasher turns a plaintext password into a storable hash.
type PasswordHasher func(password string) (string, error)

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// HashPassword hashes with DefaultArgon2idParams.
func HashPassword(password string) (string, error) {
	return CreatePasswordHash(password, DefaultArgon2idParams)
}

// CreatePasswordHash encodes the hash as $argon2id$v=19$m=...,t=...,p=...$salt$hash.
func CreatePasswordHash(password string, params Argon2idParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		params.Memory,
		params.Iterations,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword returns nil when password matches hashedPassword and
// ErrInvalidCredentials when it does not.
func VerifyPassword(hashedPassword, password string) error {
	params, salt, key, err := decodePasswordHash(hashedPassword)
	if err != nil {
		return err
	}

	candidate := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	if subtle.ConstantTimeCompare(key, candidate) == 1 {
		return nil
	}
	return ErrInvalidCredentials
}

func decodePasswordHash(encoded string) (Argon2idParams, []byte, []byte, error) {
	var params Argon2idParams
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, ErrInvalidPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, ErrInvalidPasswordHash
	}
	if version != argon2.Version {
		return params, nil, nil, ErrIncompatiblePasswordVersion
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return params, nil, nil, ErrInvalidPasswordHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, ErrInvalidPasswordHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, ErrInvalidPasswordHash
	}
	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))
	return params, salt, key, nil
}

func validatePassword(password string) string {
	switch n := utf8.RuneCountInString(password); {
	case n == 0:
		return "password is required"
	case n < minPasswordLength:
		return fmt.Sprintf("password must be at least %d characters", minPasswordLength)
	case n > maxPasswordLength:
		return fmt.Sprintf("password must be at most %d characters", maxPasswordLength)
	}
	return ""
}
