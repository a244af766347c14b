// Package jwtsign issues and verifies the short-lived session tokens the
// vault's crypto layer gates every operation on: a
// {sub, exp, nbf, jti} claims set, signed HS256 with a key scoped to the
// current unlocked session and zeroized on lock. This is not a general
// purpose JWT issuer — just enough of golang-jwt/jwt/v5 to back one
// session token per unlocked vault.
package jwtsign

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cysec-io/cysec/internal/errors"
)

// Signer issues and verifies session tokens under a single HS256 key, and
// tracks revoked token IDs in a TTL-swept deny-list.
type Signer struct {
	mu  sync.RWMutex
	key []byte

	denyMu sync.Mutex
	deny   map[string]time.Time
}

// New generates a fresh random signing key.
func New() (*Signer, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(errors.ErrInternal, err.Error())
	}
	return &Signer{key: key, deny: make(map[string]time.Time)}, nil
}

// Issue mints a token for sub, valid from now until ttl from now.
func (s *Signer) Issue(sub string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	s.mu.RLock()
	key := s.key
	s.mu.RUnlock()
	if key == nil {
		return "", errors.Wrap(errors.ErrUnauthenticated, "signer is locked")
	}

	signed, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(errors.ErrInternal, err.Error())
	}
	return signed, nil
}

// Verify parses and validates tokenString, rejecting expired, not-yet-valid,
// badly signed, or revoked tokens with errors.ErrUnauthenticated.
func (s *Signer) Verify(tokenString string) (*jwt.RegisteredClaims, error) {
	s.mu.RLock()
	key := s.key
	s.mu.RUnlock()
	if key == nil {
		return nil, errors.Wrap(errors.ErrUnauthenticated, "signer is locked")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Wrap(errors.ErrUnauthenticated, err.Error())
	}

	if s.isRevoked(claims.ID) {
		return nil, errors.Wrap(errors.ErrUnauthenticated, "token revoked")
	}
	return claims, nil
}

// Revoke adds jti to the deny-list until expiresAt.
func (s *Signer) Revoke(jti string, expiresAt time.Time) {
	s.denyMu.Lock()
	s.deny[jti] = expiresAt
	s.denyMu.Unlock()
}

func (s *Signer) isRevoked(jti string) bool {
	s.denyMu.Lock()
	defer s.denyMu.Unlock()
	_, revoked := s.deny[jti]
	return revoked
}

// SweepDenyList removes deny-list entries whose expiry has passed,
// returning the count removed.
func (s *Signer) SweepDenyList() int {
	now := time.Now()
	s.denyMu.Lock()
	defer s.denyMu.Unlock()
	n := 0
	for jti, exp := range s.deny {
		if exp.Before(now) {
			delete(s.deny, jti)
			n++
		}
	}
	return n
}

// Close zeroizes the signing key. Tokens issued before Close continue to
// verify only until the key is overwritten; Verify afterward fails with
// errors.ErrUnauthenticated.
func (s *Signer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.key {
		s.key[i] = 0
	}
	s.key = nil
}
