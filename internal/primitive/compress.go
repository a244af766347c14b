package primitive

import (
	"bytes"
	stdbzip2 "compress/bzip2"
	"compress/gzip"
	"io"

	dsnetbzip2 "github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"

	"github.com/cysec-io/cysec/internal/errors"
)

// CompressionAlgorithm identifies a compression codec.
type CompressionAlgorithm string

const (
	Zstd  CompressionAlgorithm = "zstd"
	Gzip  CompressionAlgorithm = "gzip"
	Bzip2 CompressionAlgorithm = "bzip2"
)

// clampLevel restricts level to [lo,hi], matching §4.1's invalid-levels-are-
// clamped-not-rejected rule.
func clampLevel(level, lo, hi int) int {
	if level < lo {
		return lo
	}
	if level > hi {
		return hi
	}
	return level
}

// Compress compresses data using alg at level, clamping level into the
// algorithm's valid range rather than rejecting it.
func Compress(alg CompressionAlgorithm, level int, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch alg {
	case Zstd:
		level = clampLevel(level, 1, 22)
		w, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstdLevel(level)))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCompressionFailure, err.Error())
		}
		if _, err := w.Write(data); err != nil {
			_ = w.Close()
			return nil, errors.Wrap(errors.ErrCompressionFailure, err.Error())
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(errors.ErrCompressionFailure, err.Error())
		}
	case Gzip:
		level = clampLevel(level, 1, 9)
		w, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCompressionFailure, err.Error())
		}
		if _, err := w.Write(data); err != nil {
			_ = w.Close()
			return nil, errors.Wrap(errors.ErrCompressionFailure, err.Error())
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(errors.ErrCompressionFailure, err.Error())
		}
	case Bzip2:
		level = clampLevel(level, 1, 9)
		w, err := dsnetbzip2.NewWriter(&buf, &dsnetbzip2.WriterConfig{Level: level})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCompressionFailure, err.Error())
		}
		if _, err := w.Write(data); err != nil {
			_ = w.Close()
			return nil, errors.Wrap(errors.ErrCompressionFailure, err.Error())
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(errors.ErrCompressionFailure, err.Error())
		}
	default:
		return nil, errors.Wrapf(errors.ErrInvalidParameters, "unsupported compression algorithm %q", alg)
	}
	return buf.Bytes(), nil
}

// Decompress inverts Compress.
func Decompress(alg CompressionAlgorithm, data []byte) ([]byte, error) {
	switch alg {
	case Zstd:
		r, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(errors.ErrDecompressionFailure, err.Error())
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDecompressionFailure, err.Error())
		}
		return out, nil
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(errors.ErrDecompressionFailure, err.Error())
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDecompressionFailure, err.Error())
		}
		return out, nil
	case Bzip2:
		r := stdbzip2.NewReader(bytes.NewReader(data))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDecompressionFailure, err.Error())
		}
		return out, nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidParameters, "unsupported compression algorithm %q", alg)
	}
}

// zstdLevel maps a 1-22 level scale (matching zstd's conventional CLI range)
// onto the library's coarser EncoderLevel enum.
func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 9:
		return zstd.SpeedDefault
	case level <= 15:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}
