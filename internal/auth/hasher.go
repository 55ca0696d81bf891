// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2Params is the argon2id work factor.
type Argon2Params struct {
	Time      uint32 // iterations
	MemoryKiB uint32 // memory in KiB
	Threads   uint8  // parallelism
	SaltLen   uint32 // salt length in bytes
	KeyLen    uint32 // output length in bytes
}

// DefaultArgon2Params are the OWASP-recommended argon2id parameters.
var DefaultArgon2Params = Argon2Params{
	Time:      1,
	MemoryKiB: 64 * 1024,
	Threads:   4,
	SaltLen:   16,
	KeyLen:    32,
}

// MinArgon2Params is the weakest configuration NewArgon2idHasher accepts.
var MinArgon2Params = Argon2Params{
	Time:      1,
	MemoryKiB: 8 * 1024,
	Threads:   1,
	SaltLen:   16,
	KeyLen:    16,
}

// Upper bounds on the argon2 work factor, applied both to configured
// parameters and to parameters parsed from stored hashes. A corrupt record
// cannot make Verify allocate more than MaxArgon2MemoryKiB or run more than
// MaxArgon2Time passes.
const (
	MaxArgon2MemoryKiB = 1024 * 1024
	MaxArgon2Time      = 32
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code(CodeEmptyPassword).Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade returns true if the hash should be re-computed with the current parameters.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id.
// Legacy bcrypt hashes are accepted by Verify and always need an upgrade.
type Argon2idHasher struct {
	params Argon2Params
	dummy  string
}

// NewArgon2idHasher creates an Argon2idHasher with the given parameters.
// It hashes a random secret once to back DummyHash.
func NewArgon2idHasher(params Argon2Params) (*Argon2idHasher, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	h := &Argon2idHasher{params: params}
	dummy, err := h.Hash(rand.Text())
	if err != nil {
		return nil, oops.Code(CodeHasherConfig).Wrapf(err, "derive dummy hash")
	}
	h.dummy = dummy
	return h, nil
}

// DummyHash returns a hash of an unknown random secret, produced with the
// hasher's own parameters. Verifying against it costs the same as verifying
// a real password.
func (h *Argon2idHasher) DummyHash() string {
	return h.dummy
}

// Params returns the configured work factor.
func (h *Argon2idHasher) Params() Argon2Params {
	return h.params
}

func (p Argon2Params) validate() error {
	switch {
	case p.Time < MinArgon2Params.Time:
		return oops.Code(CodeHasherConfig).With("time", p.Time).Errorf("argon2 time must be >= %d", MinArgon2Params.Time)
	case p.Time > MaxArgon2Time:
		return oops.Code(CodeHasherConfig).With("time", p.Time).Errorf("argon2 time must be <= %d", MaxArgon2Time)
	case p.MemoryKiB < MinArgon2Params.MemoryKiB:
		return oops.Code(CodeHasherConfig).With("memory_kib", p.MemoryKiB).Errorf("argon2 memory must be >= %d KiB", MinArgon2Params.MemoryKiB)
	case p.MemoryKiB > MaxArgon2MemoryKiB:
		return oops.Code(CodeHasherConfig).With("memory_kib", p.MemoryKiB).Errorf("argon2 memory must be <= %d KiB", MaxArgon2MemoryKiB)
	case p.Threads < MinArgon2Params.Threads:
		return oops.Code(CodeHasherConfig).With("threads", p.Threads).Errorf("argon2 threads must be >= %d", MinArgon2Params.Threads)
	case p.SaltLen < MinArgon2Params.SaltLen:
		return oops.Code(CodeHasherConfig).With("salt_len", p.SaltLen).Errorf("argon2 salt length must be >= %d", MinArgon2Params.SaltLen)
	case p.KeyLen < MinArgon2Params.KeyLen:
		return oops.Code(CodeHasherConfig).With("key_len", p.KeyLen).Errorf("argon2 key length must be >= %d", MinArgon2Params.KeyLen)
	}
	return nil
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	if isBcryptHash(encodedHash) {
		return verifyBcrypt(password, encodedHash)
	}

	stored, err := parseArgon2idHash(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), stored.salt, stored.params.Time, stored.params.MemoryKiB, stored.params.Threads, stored.params.KeyLen)
	return subtle.ConstantTimeCompare(computed, stored.key) == 1, nil
}

// NeedsUpgrade returns true if the hash is not argon2id or was produced with
// weaker parameters than the hasher's.
func (h *Argon2idHasher) NeedsUpgrade(encodedHash string) bool {
	stored, err := parseArgon2idHash(encodedHash)
	if err != nil {
		return true
	}
	return stored.params.MemoryKiB < h.params.MemoryKiB ||
		stored.params.Time < h.params.Time ||
		stored.params.Threads < h.params.Threads ||
		stored.params.KeyLen != h.params.KeyLen
}

type argon2idHash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func parseArgon2idHash(encodedHash string) (*argon2idHash, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, oops.Code(CodeInvalidHash).Errorf("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return nil, oops.Code(CodeInvalidHash).Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code(CodeInvalidHash).Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code(CodeInvalidHash).Errorf("unsupported argon2 version: %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, oops.Code(CodeInvalidHash).Wrap(err)
	}
	if threads > 255 {
		return nil, oops.Code(CodeInvalidHash).Errorf("threads value %d exceeds uint8 max", threads)
	}
	if time < 1 || time > MaxArgon2Time || threads < 1 || memory < 1 || memory > MaxArgon2MemoryKiB {
		return nil, oops.Code(CodeInvalidHash).
			With("m", memory).With("t", time).With("p", threads).
			Errorf("hash parameters out of range")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code(CodeInvalidHash).Wrap(err)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code(CodeInvalidHash).Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return nil, oops.Code(CodeInvalidHash).Errorf("invalid hash key length: %d", len(key))
	}

	return &argon2idHash{
		params: Argon2Params{
			Time:      time,
			MemoryKiB: memory,
			Threads:   uint8(threads),
			SaltLen:   uint32(len(salt)),
			KeyLen:    uint32(len(key)),
		},
		salt: salt,
		key:  key,
	}, nil
}

func isBcryptHash(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}

func verifyBcrypt(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, oops.Code(CodeInvalidHash).With("algorithm", "bcrypt").Wrap(err)
	}
}
