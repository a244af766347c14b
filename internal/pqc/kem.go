// Package pqc wraps the post-quantum key encapsulation mechanism the vault
// armor layer uses to wrap its outer content-encryption key, keeping the
// armor container format independent of any one KEM's wire sizes by going
// through a single narrow interface.
package pqc

import (
	circlkem "github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"

	"github.com/cysec-io/cysec/internal/errors"
)

// KEM is the narrow surface the armor layer needs from a key encapsulation
// scheme: mint a keypair, and encapsulate/decapsulate a shared secret
// against a public/private key given only as bytes.
type KEM interface {
	Name() string
	PublicKeySize() int
	PrivateKeySize() int
	CiphertextSize() int
	SharedKeySize() int

	// GenerateKeyPair returns a freshly generated (public, private) keypair,
	// both marshalled to bytes.
	GenerateKeyPair() (publicKey, privateKey []byte, err error)

	// Encapsulate derives a shared secret against publicKey, returning the
	// encapsulated ciphertext alongside it.
	Encapsulate(publicKey []byte) (ciphertext, sharedSecret []byte, err error)

	// Decapsulate recovers the shared secret privateKey's owner would see
	// from ciphertext.
	Decapsulate(privateKey, ciphertext []byte) (sharedSecret []byte, err error)
}

// MLKEM768 returns the ML-KEM-768 (FIPS 203) scheme from circl.
func MLKEM768() KEM {
	return circlScheme{scheme: mlkem768.Scheme()}
}

// circlScheme adapts a circl kem.Scheme to KEM.
type circlScheme struct {
	scheme circlkem.Scheme
}

func (c circlScheme) Name() string        { return c.scheme.Name() }
func (c circlScheme) PublicKeySize() int  { return c.scheme.PublicKeySize() }
func (c circlScheme) PrivateKeySize() int { return c.scheme.PrivateKeySize() }
func (c circlScheme) CiphertextSize() int { return c.scheme.CiphertextSize() }
func (c circlScheme) SharedKeySize() int  { return c.scheme.SharedKeySize() }

func (c circlScheme) GenerateKeyPair() ([]byte, []byte, error) {
	pub, priv, err := c.scheme.GenerateKeyPair()
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrInternal, err.Error())
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrInternal, err.Error())
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrInternal, err.Error())
	}
	return pubBytes, privBytes, nil
}

func (c circlScheme) Encapsulate(publicKey []byte) ([]byte, []byte, error) {
	pub, err := c.scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrInvalidKey, err.Error())
	}
	ct, ss, err := c.scheme.Encapsulate(pub)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrInternal, err.Error())
	}
	return ct, ss, nil
}

func (c circlScheme) Decapsulate(privateKey, ciphertext []byte) ([]byte, error) {
	priv, err := c.scheme.UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidKey, err.Error())
	}
	if len(ciphertext) != c.scheme.CiphertextSize() {
		return nil, errors.Wrap(errors.ErrMalformed, "unexpected kem ciphertext size")
	}
	ss, err := c.scheme.Decapsulate(priv, ciphertext)
	if err != nil {
		return nil, errors.Wrap(errors.ErrAuthenticationFailed, err.Error())
	}
	return ss, nil
}
