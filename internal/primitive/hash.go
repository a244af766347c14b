package primitive

import (
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"

	"github.com/cysec-io/cysec/internal/errors"
)

// HashAlgorithm identifies a digest function.
type HashAlgorithm string

const (
	SHA256    HashAlgorithm = "SHA-256"
	SHA3_256  HashAlgorithm = "SHA3-256"
	SHA3_384  HashAlgorithm = "SHA3-384"
	SHA3_512  HashAlgorithm = "SHA3-512"
	Blake2b   HashAlgorithm = "Blake2b"
	Blake3    HashAlgorithm = "Blake3"
)

// Hash computes the digest of data under alg. size selects the output
// length for the variable-length algorithms (Blake2b, Blake3); it is
// ignored for the fixed-size algorithms. size must be in [1,64] when used.
func Hash(alg HashAlgorithm, data []byte, size int) ([]byte, error) {
	switch alg {
	case SHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	case SHA3_256:
		sum := sha3.Sum256(data)
		return sum[:], nil
	case SHA3_384:
		sum := sha3.Sum384(data)
		return sum[:], nil
	case SHA3_512:
		sum := sha3.Sum512(data)
		return sum[:], nil
	case Blake2b:
		if size <= 0 {
			size = 32
		}
		if size < 1 || size > 64 {
			return nil, errors.Wrap(errors.ErrInvalidParameters, "blake2b size must be in [1,64]")
		}
		sum, err := blake2b.New(size, nil)
		if err != nil {
			return nil, errors.Wrap(errors.ErrInvalidParameters, err.Error())
		}
		sum.Write(data)
		return sum.Sum(nil), nil
	case Blake3:
		if size <= 0 {
			size = 32
		}
		h := blake3.New(size, nil)
		h.Write(data)
		return h.Sum(nil), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidParameters, "unsupported hash algorithm %q", alg)
	}
}

// newHasher returns a streaming hash.Hash for alg, used by HMAC.
func newHasher(alg HashAlgorithm) (func() hash.Hash, error) {
	switch alg {
	case SHA256:
		return sha256.New, nil
	case SHA3_256:
		return sha3.New256, nil
	case SHA3_384:
		return sha3.New384, nil
	case SHA3_512:
		return sha3.New512, nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidParameters, "unsupported HMAC hash %q", alg)
	}
}
