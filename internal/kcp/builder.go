// Package kcp implements the keyed cryptographic pipeline: a builder over
// an AEAD algorithm and a key that produces one-shot and streaming
// encrypt/decrypt/compress operations. The builder is phase-typed rather
// than a single mutable struct: the unconfigured phase only exposes
// Algorithm, and compression/AAD/chunk-size/callback options and the
// terminal operations only exist once a key has been set, so a caller
// cannot reach Encrypt without first supplying both an algorithm and a
// key — the compiler enforces the ordering, not a runtime check.
package kcp

import (
	"context"

	"github.com/cysec-io/cysec/internal/primitive"
	"github.com/cysec-io/cysec/internal/workerpool"
)

// Unconfigured is the entry point of the pipeline builder. No operations
// are available until Algorithm has been called.
type Unconfigured struct{}

// New starts building a keyed cryptographic pipeline.
func New() *Unconfigured {
	return &Unconfigured{}
}

// Algorithm selects the AEAD cipher, advancing the builder to the phase
// where a key can be set.
func (*Unconfigured) Algorithm(alg primitive.Algorithm) *AlgorithmSet {
	return &AlgorithmSet{alg: alg}
}

// AlgorithmSet has an algorithm but no key yet. Compression, AAD, and the
// terminal operations are unavailable until Key or KeyRef is called.
type AlgorithmSet struct {
	alg primitive.Algorithm
}

// Key sets the pipeline's key to fixed, already-resolved bytes, advancing
// to the keyed phase where terminal operations become available. key is
// copied; the caller retains ownership of the slice it passed in.
func (a *AlgorithmSet) Key(key []byte) *Keyed {
	return a.KeyRef(directKey{key: append([]byte(nil), key...)})
}

// KeyRef sets the pipeline's key to one resolved lazily (e.g. from KLM) at
// the moment a terminal operation runs.
func (a *AlgorithmSet) KeyRef(resolver KeyResolver) *Keyed {
	return &Keyed{alg: a.alg, resolver: resolver, chunkSize: DefaultChunkSize}
}

// compressOption pairs a compression algorithm with its level.
type compressOption struct {
	alg   primitive.CompressionAlgorithm
	level int
}

// Keyed is the fully configured phase: algorithm and key are fixed, and
// AAD/compression/chunk size/callbacks may still be set before calling one
// of the terminal operations.
type Keyed struct {
	alg       primitive.Algorithm
	resolver  KeyResolver
	aad       []byte
	compress  *compressOption
	chunkSize int
	onResult  OnResultFunc
	onChunk   OnChunkFunc
	pool      *workerpool.Pool
}

// AAD binds additional authenticated data to the ciphertext; a mismatch on
// decrypt fails with AuthenticationFailed.
func (k *Keyed) AAD(aad []byte) *Keyed {
	k.aad = aad
	return k
}

// CompressWith enables compress-then-encrypt (and decrypt-then-decompress)
// composition using alg at level.
func (k *Keyed) CompressWith(alg primitive.CompressionAlgorithm, level int) *Keyed {
	k.compress = &compressOption{alg: alg, level: level}
	return k
}

// ChunkSize overrides the streaming chunk size. Values <= 0 are ignored.
func (k *Keyed) ChunkSize(n int) *Keyed {
	if n > 0 {
		k.chunkSize = n
	}
	return k
}

// OnResult registers a hook invoked with the error (nil on success) of a
// one-shot terminal operation.
func (k *Keyed) OnResult(fn OnResultFunc) *Keyed {
	k.onResult = fn
	return k
}

// OnChunk registers a hook that can drop or replace each produced chunk
// during a streaming operation.
func (k *Keyed) OnChunk(fn OnChunkFunc) *Keyed {
	k.onChunk = fn
	return k
}

// WithWorkerPool offloads this pipeline's CPU-bound primitive calls
// (AEAD, compression) onto pool instead of running them inline on the
// calling goroutine, one offload per primitive call.
func (k *Keyed) WithWorkerPool(pool *workerpool.Pool) *Keyed {
	k.pool = pool
	return k
}

func (k *Keyed) resolveKey(ctx context.Context) ([]byte, error) {
	return k.resolver.ResolveKey(ctx)
}
