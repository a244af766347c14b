package kcp

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/primitive"
	"github.com/cysec-io/cysec/internal/workerpool"
)

// Streaming frame layout, adapted from absfs-encryptfs's chunk header:
// each AEAD frame is
// plaintext_size(u32 LE) ‖ nonce(12) ‖ ciphertext‖tag, so a reader consumes
// exactly 4 + 12 + plaintext_size + 16 bytes per frame with no separate
// chunk index — KCP streams are write-once, read-forward.
const frameHeaderSize = 4

func buildAEADFrame(plaintextSize uint32, nonce, ciphertext []byte) []byte {
	frame := make([]byte, frameHeaderSize+len(nonce)+len(ciphertext))
	binary.LittleEndian.PutUint32(frame[:frameHeaderSize], plaintextSize)
	copy(frame[frameHeaderSize:], nonce)
	copy(frame[frameHeaderSize+len(nonce):], ciphertext)
	return frame
}

// readAEADFrame returns io.EOF (unwrapped) when the stream ends cleanly
// between frames.
func readAEADFrame(r io.Reader) (plaintextSize uint32, nonce, ciphertext []byte, err error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return 0, nil, nil, io.EOF
		}
		return 0, nil, nil, errors.Wrap(errors.ErrMalformed, "truncated frame header")
	}
	plaintextSize = binary.LittleEndian.Uint32(hdr[:])

	nonce = make([]byte, primitive.NonceSize)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return 0, nil, nil, errors.Wrap(errors.ErrMalformed, "truncated frame nonce")
	}

	ciphertext = make([]byte, int(plaintextSize)+primitive.TagSize)
	if _, err := io.ReadFull(r, ciphertext); err != nil {
		return 0, nil, nil, errors.Wrap(errors.ErrMalformed, "truncated frame ciphertext")
	}
	return plaintextSize, nonce, ciphertext, nil
}

// readLengthFrame and writeLengthFrame are the plain (unencrypted)
// length(u32 LE) ‖ payload framing used by CompressStream/DecompressStream,
// which have no nonce or tag to carry.
func writeLengthFrame(w io.Writer, payload []byte) error {
	var hdr [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrap(errors.ErrInternal, err.Error())
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(errors.ErrInternal, err.Error())
	}
	return nil
}

func readLengthFrame(r io.Reader) ([]byte, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(errors.ErrMalformed, "truncated frame header")
	}
	size := binary.LittleEndian.Uint32(hdr[:])
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(errors.ErrMalformed, "truncated frame payload")
	}
	return payload, nil
}

// readChunk reads up to len(buf) bytes. A full chunk returns last=false; a
// short final chunk returns its bytes with last=true; a stream that ended
// exactly on a chunk boundary returns n=0, last=true. End of input is never
// reported as an error.
func readChunk(r io.Reader, buf []byte) (n int, last bool, err error) {
	n, err = io.ReadFull(r, buf)
	switch err {
	case nil:
		return n, false, nil
	case io.ErrUnexpectedEOF:
		return n, true, nil
	case io.EOF:
		return 0, true, nil
	default:
		return 0, false, errors.Wrap(errors.ErrInternal, err.Error())
	}
}

// EncryptStream reads input in ChunkSize pieces, compresses each (if
// CompressWith is set) and AEAD-seals it into its own frame, forwarding
// each produced frame through OnChunk if set, and writes frames to output
// in production order.
func (k *Keyed) EncryptStream(ctx context.Context, input io.Reader, output io.Writer) error {
	key, err := k.resolveKey(ctx)
	if err != nil {
		return err
	}
	defer zero(key)

	buf := make([]byte, k.chunkSize)
	for {
		n, last, err := readChunk(input, buf)
		if err != nil {
			return err
		}
		if n == 0 && last {
			return nil
		}
		chunk := append([]byte(nil), buf[:n]...)

		data := chunk
		if k.compress != nil {
			data, err = k.compress0(ctx, data)
			if err != nil {
				return err
			}
		}

		ciphertext, nonce, err := k.sealChunk(ctx, key, data)
		if err != nil {
			return err
		}

		if err := k.emitAEADFrame(output, uint32(len(data)), nonce, ciphertext); err != nil {
			return err
		}
		if last {
			return nil
		}
	}
}

func (k *Keyed) sealChunk(ctx context.Context, key, plaintext []byte) (ciphertext, nonce []byte, err error) {
	if k.pool == nil {
		return primitive.AEADEncrypt(k.alg, key, k.aad, plaintext)
	}
	if werr := workerpool.Submit(ctx, k.pool, func() {
		ciphertext, nonce, err = primitive.AEADEncrypt(k.alg, key, k.aad, plaintext)
	}); werr != nil {
		return nil, nil, werr
	}
	return ciphertext, nonce, err
}

func (k *Keyed) emitAEADFrame(output io.Writer, plaintextSize uint32, nonce, ciphertext []byte) error {
	frame := buildAEADFrame(plaintextSize, nonce, ciphertext)

	if k.onChunk != nil {
		replacement, keep := k.onChunk(ChunkResult{Data: frame})
		if !keep {
			return nil
		}
		frame = replacement
	}
	_, err := output.Write(frame)
	if err != nil {
		return errors.Wrap(errors.ErrInternal, err.Error())
	}
	return nil
}

// DecryptStream reads frames produced by EncryptStream, authenticates and
// decrypts each one, decompresses if CompressWith is set, and writes the
// recovered plaintext chunks to output in order. A tag mismatch is fatal
// and terminates the stream; OnChunk never sees it.
func (k *Keyed) DecryptStream(ctx context.Context, input io.Reader, output io.Writer) error {
	key, err := k.resolveKey(ctx)
	if err != nil {
		return err
	}
	defer zero(key)

	for {
		plaintextSize, nonce, ciphertext, err := readAEADFrame(input)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		plaintext, err := k.openChunk(ctx, key, nonce, ciphertext)
		if err != nil {
			return err
		}
		if uint32(len(plaintext)) != plaintextSize {
			return errors.Wrap(errors.ErrMalformed, "frame plaintext size mismatch")
		}

		if k.compress != nil {
			plaintext, err = k.decompress0(ctx, plaintext)
			if err != nil {
				return err
			}
		}

		if k.onChunk != nil {
			replacement, keep := k.onChunk(ChunkResult{Data: plaintext})
			if !keep {
				continue
			}
			plaintext = replacement
		}

		if _, err := output.Write(plaintext); err != nil {
			return errors.Wrap(errors.ErrInternal, err.Error())
		}
	}
}

func (k *Keyed) openChunk(ctx context.Context, key, nonce, ciphertext []byte) (plaintext []byte, err error) {
	if k.pool == nil {
		return primitive.AEADDecrypt(k.alg, key, nonce, k.aad, ciphertext)
	}
	if werr := workerpool.Submit(ctx, k.pool, func() {
		plaintext, err = primitive.AEADDecrypt(k.alg, key, nonce, k.aad, ciphertext)
	}); werr != nil {
		return nil, werr
	}
	return plaintext, err
}

// CompressStream reads input in ChunkSize pieces and writes each
// compressed chunk as a length-prefixed frame. CompressWith must be set.
func (k *Keyed) CompressStream(ctx context.Context, input io.Reader, output io.Writer) error {
	if k.compress == nil {
		return errors.Wrap(errors.ErrInvalidParameters, "compress_with not set")
	}
	buf := make([]byte, k.chunkSize)
	for {
		n, last, err := readChunk(input, buf)
		if err != nil {
			return err
		}
		if n == 0 && last {
			return nil
		}
		compressed, err := k.compress0(ctx, append([]byte(nil), buf[:n]...))
		if err != nil {
			return err
		}
		if k.onChunk != nil {
			replacement, keep := k.onChunk(ChunkResult{Data: compressed})
			if !keep {
				if last {
					return nil
				}
				continue
			}
			compressed = replacement
		}
		if err := writeLengthFrame(output, compressed); err != nil {
			return err
		}
		if last {
			return nil
		}
	}
}

// DecompressStream inverts CompressStream.
func (k *Keyed) DecompressStream(ctx context.Context, input io.Reader, output io.Writer) error {
	if k.compress == nil {
		return errors.Wrap(errors.ErrInvalidParameters, "compress_with not set")
	}
	for {
		payload, err := readLengthFrame(input)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		decompressed, err := k.decompress0(ctx, payload)
		if err != nil {
			return err
		}
		if k.onChunk != nil {
			replacement, keep := k.onChunk(ChunkResult{Data: decompressed})
			if !keep {
				continue
			}
			decompressed = replacement
		}
		if _, err := output.Write(decompressed); err != nil {
			return errors.Wrap(errors.ErrInternal, err.Error())
		}
	}
}
