// Package armor implements the whole-file dual-layer protection over an
// unlocked vault database file: a fresh symmetric outer key AEAD-encrypts
// the file contents, and the outer key itself is wrapped with a
// post-quantum KEM under a long-lived keypair.
package armor

import (
	"encoding/binary"

	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/primitive"
)

const (
	magic          = "CYVA"
	formatVersion  = byte(1)
	outerAlgorithm = primitive.AES256GCM
)

// container is the parsed form of the armor file layout:
// magic(4) ‖ version(1) ‖ kem_ct_len(u32 LE) ‖ kem_ct ‖ outer_nonce(12) ‖
// outer_tag(16) ‖ body.
type container struct {
	version    byte
	kemCt      []byte
	outerNonce []byte
	outerTag   []byte
	body       []byte
}

func marshalContainer(c container) []byte {
	out := make([]byte, 0, 4+1+4+len(c.kemCt)+len(c.outerNonce)+len(c.outerTag)+len(c.body))
	out = append(out, magic...)
	out = append(out, c.version)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(c.kemCt)))
	out = append(out, lenBuf[:]...)
	out = append(out, c.kemCt...)
	out = append(out, c.outerNonce...)
	out = append(out, c.outerTag...)
	out = append(out, c.body...)
	return out
}

func unmarshalContainer(data []byte) (container, error) {
	const headerMin = 4 + 1 + 4 + primitive.NonceSize + primitive.TagSize
	if len(data) < headerMin {
		return container{}, errors.Wrap(errors.ErrMalformed, "armor container shorter than fixed header")
	}
	if string(data[:4]) != magic {
		return container{}, errors.Wrap(errors.ErrMalformed, "armor container has wrong magic")
	}
	version := data[4]
	if version != formatVersion {
		return container{}, errors.Wrapf(errors.ErrMalformed, "unsupported armor container version %d", version)
	}
	kemCtLen := binary.LittleEndian.Uint32(data[5:9])
	offset := 9
	if uint64(offset)+uint64(kemCtLen)+primitive.NonceSize+primitive.TagSize > uint64(len(data)) {
		return container{}, errors.Wrap(errors.ErrMalformed, "armor container truncated before body")
	}
	kemCt := data[offset : offset+int(kemCtLen)]
	offset += int(kemCtLen)
	outerNonce := data[offset : offset+primitive.NonceSize]
	offset += primitive.NonceSize
	outerTag := data[offset : offset+primitive.TagSize]
	offset += primitive.TagSize
	body := data[offset:]

	return container{
		version:    version,
		kemCt:      kemCt,
		outerNonce: outerNonce,
		outerTag:   outerTag,
		body:       body,
	}, nil
}
