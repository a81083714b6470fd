package util

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	KDFProfileInteractive = "interactive"
	KDFProfileModerate    = "moderate"
)

// Argon2idParams are the tunable Argon2id costs, stored alongside each hash
// so costs can change without invalidating existing hashes.
type Argon2idParams struct {
	Time        uint32 `json:"time"`
	MemoryKiB   uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
	KeyLen      uint32 `json:"key_len"`
}

func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		KeyLen:      32,
	}
}

// Argon2idProfile returns named parameter sets.
func Argon2idProfile(name string) (Argon2idParams, error) {
	switch name {
	case KDFProfileInteractive:
		return Argon2idParams{Time: 2, MemoryKiB: 19 * 1024, Parallelism: 1, KeyLen: 32}, nil
	case KDFProfileModerate:
		return Argon2idParams{Time: 3, MemoryKiB: 64 * 1024, Parallelism: 4, KeyLen: 32}, nil
	default:
		return Argon2idParams{}, fmt.Errorf("unknown kdf profile %q", name)
	}
}

func ValidateArgon2idParams(p Argon2idParams) error {
	if p.KeyLen != 32 {
		return fmt.Errorf("argon2id key length must be 32 bytes")
	}
	if p.Time < 1 {
		return fmt.Errorf("argon2id time must be at least 1")
	}
	if p.MemoryKiB < 8*uint32(p.Parallelism) || p.MemoryKiB == 0 {
		return fmt.Errorf("argon2id memory too small for parallelism %d", p.Parallelism)
	}
	if p.Parallelism < 1 {
		return fmt.Errorf("argon2id parallelism must be at least 1")
	}
	return nil
}

func DeriveArgon2idKey(secret string, salt []byte, params Argon2idParams) ([]byte, error) {
	if err := ValidateArgon2idParams(params); err != nil {
		return nil, err
	}
	key := argon2.IDKey([]byte(secret), salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen)
	return key, nil
}

func CompareArgon2idKey(secret string, salt []byte, params Argon2idParams, expectedKey []byte) (bool, error) {
	key, err := DeriveArgon2idKey(secret, salt, params)
	if err != nil {
		return false, err
	}
	defer WipeBytes(key)
	return subtle.ConstantTimeCompare(key, expectedKey) == 1, nil
}

// SecretHash is a salted Argon2id hash of a password or security answer.
type SecretHash struct {
	Salt   []byte         `json:"salt"`
	Hash   []byte         `json:"hash"`
	Params Argon2idParams `json:"params"`
}

// HashSecret derives a SecretHash with a fresh 16-byte salt.
func HashSecret(secret string, params Argon2idParams) (SecretHash, error) {
	salt, err := RandomBytes(16)
	if err != nil {
		return SecretHash{}, err
	}
	key, err := DeriveArgon2idKey(secret, salt, params)
	if err != nil {
		return SecretHash{}, err
	}
	return SecretHash{Salt: salt, Hash: key, Params: params}, nil
}

// Verify reports whether secret matches h in constant time.
func (h SecretHash) Verify(secret string) bool {
	ok, err := CompareArgon2idKey(secret, h.Salt, h.Params, h.Hash)
	return err == nil && ok
}
