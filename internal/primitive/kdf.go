package primitive

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"

	"github.com/cysec-io/cysec/internal/errors"
)

// KDFAlgorithm identifies a key derivation function.
type KDFAlgorithm string

const (
	Argon2id KDFAlgorithm = "Argon2id"
	PBKDF2   KDFAlgorithm = "PBKDF2"
	HKDF     KDFAlgorithm = "HKDF"

	// MinPBKDF2Iterations is the floor the spec requires for PBKDF2.
	MinPBKDF2Iterations = 10000
)

// Argon2Params configures Argon2id derivation.
type Argon2Params struct {
	Iterations  uint32
	MemoryKB    uint32
	Parallelism uint8
}

// PBKDF2Params configures PBKDF2 derivation.
type PBKDF2Params struct {
	Iterations int
}

// HKDFParams configures HKDF derivation.
type HKDFParams struct {
	Info []byte
}

// DeriveArgon2id derives outLen bytes from input and salt using Argon2id.
func DeriveArgon2id(input, salt []byte, params Argon2Params, outLen uint32) []byte {
	if params.Iterations == 0 {
		params.Iterations = 3
	}
	if params.MemoryKB == 0 {
		params.MemoryKB = 65536
	}
	if params.Parallelism == 0 {
		params.Parallelism = 4
	}
	return argon2.IDKey(input, salt, params.Iterations, params.MemoryKB, params.Parallelism, outLen)
}

// DerivePBKDF2 derives outLen bytes from input and salt using PBKDF2-SHA256.
// Iteration counts below MinPBKDF2Iterations are raised to the floor
// rather than rejected.
func DerivePBKDF2(input, salt []byte, params PBKDF2Params, outLen int) []byte {
	iterations := params.Iterations
	if iterations < MinPBKDF2Iterations {
		iterations = MinPBKDF2Iterations
	}
	return pbkdf2.Key(input, salt, iterations, outLen, sha256.New)
}

// DeriveHKDF derives outLen bytes from input and salt using HKDF-SHA256.
func DeriveHKDF(input, salt []byte, params HKDFParams, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, input, salt, params.Info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, errors.Wrap(errors.ErrInternal, err.Error())
	}
	return out, nil
}
