package services

import (
	"errors"
	"fmt"

	"github.com/alexedwards/argon2id"
)

var ErrMalformedHash = errors.New("malformed password hash")

type Argon2Params = argon2id.Params

// DefaultArgon2Params follows the OWASP argon2id baseline (19 MiB, t=2, p=1).
var DefaultArgon2Params = Argon2Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func HashPassword(password string) (string, error) {
	return HashPasswordWithParams(password, DefaultArgon2Params)
}

// HashPasswordWithParams returns a PHC-formatted argon2id hash:
// $argon2id$v=19$m=...,t=...,p=...$salt$key
func HashPasswordWithParams(password string, p Argon2Params) (string, error) {
	hash, err := argon2id.CreateHash(password, &p)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// VerifyPassword re-derives the key with the parameters stored in the hash.
// Any malformed hash verifies as false.
func VerifyPassword(password, encoded string) bool {
	if err := checkHash(encoded); err != nil {
		return false
	}

	match, err := argon2id.ComparePasswordAndHash(password, encoded)
	return err == nil && match
}

// checkHash rejects hashes whose parameters would make key derivation panic.
func checkHash(encoded string) error {
	p, _, _, err := argon2id.DecodeHash(encoded)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return ErrMalformedHash
	}
	return nil
}
