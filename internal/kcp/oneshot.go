package kcp

import (
	"context"

	"github.com/cysec-io/cysec/internal/primitive"
	"github.com/cysec-io/cysec/internal/workerpool"
)

// Encrypt is the one-shot operation: resolve the key, compress the
// plaintext if CompressWith was set, then AEAD-seal it into a single
// nonce ‖ ciphertext ‖ tag blob.
func (k *Keyed) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	out, err := k.encryptOnce(ctx, plaintext)
	if k.onResult != nil {
		k.onResult(err)
	}
	return out, err
}

// Decrypt inverts Encrypt. A tag mismatch fails with
// errors.ErrAuthenticationFailed; a blob shorter than 28 bytes fails with
// errors.ErrMalformed (both surfaced by internal/primitive).
func (k *Keyed) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	out, err := k.decryptOnce(ctx, ciphertext)
	if k.onResult != nil {
		k.onResult(err)
	}
	return out, err
}

func (k *Keyed) encryptOnce(ctx context.Context, plaintext []byte) ([]byte, error) {
	key, err := k.resolveKey(ctx)
	if err != nil {
		return nil, err
	}
	defer zero(key)

	data := plaintext
	if k.compress != nil {
		data, err = k.compress0(ctx, data)
		if err != nil {
			return nil, err
		}
	}
	return k.seal(ctx, key, data)
}

func (k *Keyed) decryptOnce(ctx context.Context, ciphertext []byte) ([]byte, error) {
	key, err := k.resolveKey(ctx)
	if err != nil {
		return nil, err
	}
	defer zero(key)

	plaintext, err := k.open(ctx, key, ciphertext)
	if err != nil {
		return nil, err
	}
	if k.compress != nil {
		plaintext, err = k.decompress0(ctx, plaintext)
		if err != nil {
			return nil, err
		}
	}
	return plaintext, nil
}

// seal and open run the AEAD call through the worker pool when one is
// configured, otherwise inline.
func (k *Keyed) seal(ctx context.Context, key, plaintext []byte) ([]byte, error) {
	if k.pool == nil {
		return primitive.SealBlob(k.alg, key, k.aad, plaintext)
	}
	var blob []byte
	var err error
	if werr := workerpool.Submit(ctx, k.pool, func() {
		blob, err = primitive.SealBlob(k.alg, key, k.aad, plaintext)
	}); werr != nil {
		return nil, werr
	}
	return blob, err
}

func (k *Keyed) open(ctx context.Context, key, blob []byte) ([]byte, error) {
	if k.pool == nil {
		return primitive.OpenBlob(k.alg, key, k.aad, blob)
	}
	var plaintext []byte
	var err error
	if werr := workerpool.Submit(ctx, k.pool, func() {
		plaintext, err = primitive.OpenBlob(k.alg, key, k.aad, blob)
	}); werr != nil {
		return nil, werr
	}
	return plaintext, err
}

func (k *Keyed) compress0(ctx context.Context, data []byte) ([]byte, error) {
	if k.pool == nil {
		return primitive.Compress(k.compress.alg, k.compress.level, data)
	}
	var out []byte
	var err error
	if werr := workerpool.Submit(ctx, k.pool, func() {
		out, err = primitive.Compress(k.compress.alg, k.compress.level, data)
	}); werr != nil {
		return nil, werr
	}
	return out, err
}

func (k *Keyed) decompress0(ctx context.Context, data []byte) ([]byte, error) {
	if k.pool == nil {
		return primitive.Decompress(k.compress.alg, data)
	}
	var out []byte
	var err error
	if werr := workerpool.Submit(ctx, k.pool, func() {
		out, err = primitive.Decompress(k.compress.alg, data)
	}); werr != nil {
		return nil, werr
	}
	return out, err
}
