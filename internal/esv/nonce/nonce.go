// Package nonce implements the keyed nonce manager: mint tamper-evident,
// time-stamped nonces and reject ones that are expired or already seen.
// Modeled on a NonceSecretKey/NonceManager/ParsedNonce shape, reworked
// onto an HMAC tag over {timestamp, random} so a nonce carries its own
// authenticity instead of only an opaque random value.
package nonce

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"sync"
	"time"

	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/primitive"
)

const (
	randomSize  = 16
	tagSize     = 8 // truncated HMAC, enough to deter forgery without bloating the wire form
	defaultTTL  = 5 * time.Minute
	hashForHMAC = primitive.SHA256
)

// Nonce is a freshly minted, not-yet-verified nonce, opaque to callers
// beyond its wire encoding.
type Nonce struct {
	Encoded     string
	TimestampNs int64
	Random      []byte
}

// ParsedNonce is the result of a successful Verify: the fields Encoded
// carried, now trusted.
type ParsedNonce struct {
	TimestampNs int64
	Random      []byte
}

// seenEntry records when a tracked nonce is due to fall out of the replay
// set, and whether Verify has already accepted it.
type seenEntry struct {
	expiresAt time.Time
	accepted  bool
}

// Manager mints and verifies nonces keyed by secretKey, rejecting expired
// or replayed ones. Nonces minted by one Manager are totally ordered by
// TimestampNs: nextTimestamp never issues the same timestamp twice.
type Manager struct {
	secretKey []byte
	ttl       time.Duration

	mu   sync.Mutex
	seen map[string]seenEntry

	lastTimestampNs int64
}

// New builds a Manager keyed by secretKey (any length; passed straight to
// HMAC) with nonces expiring after ttl. ttl<=0 uses defaultTTL.
func New(secretKey []byte, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Manager{
		secretKey: append([]byte(nil), secretKey...),
		ttl:       ttl,
		seen:      make(map[string]seenEntry),
	}
}

// Generate mints a fresh nonce and records it in the seen set so Sweep
// tracks it. The first Verify of the nonce accepts it; every later Verify
// of the same nonce is rejected as a replay.
func (m *Manager) Generate() (Nonce, error) {
	random := make([]byte, randomSize)
	if _, err := rand.Read(random); err != nil {
		return Nonce{}, errors.Wrap(errors.ErrInternal, err.Error())
	}

	ts := m.nextTimestamp()
	encoded, err := m.encode(ts, random)
	if err != nil {
		return Nonce{}, err
	}

	m.mu.Lock()
	m.seen[encoded] = seenEntry{expiresAt: time.Now().Add(m.ttl)}
	m.mu.Unlock()

	return Nonce{Encoded: encoded, TimestampNs: ts, Random: random}, nil
}

// nextTimestamp returns a timestamp at least one nanosecond after the
// last one this Manager issued, so concurrent Generate calls within the
// same clock tick still produce a total order.
func (m *Manager) nextTimestamp() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := time.Now().UnixNano()
	if ts <= m.lastTimestampNs {
		ts = m.lastTimestampNs + 1
	}
	m.lastTimestampNs = ts
	return ts
}

// Verify parses and authenticates encoded, rejecting it with
// errors.ErrExpired if its TTL has passed or errors.ErrReplay if it has
// already been accepted. A valid, fresh nonce is marked accepted in the
// seen set before being returned.
func (m *Manager) Verify(encoded string) (ParsedNonce, error) {
	ts, random, err := m.decode(encoded)
	if err != nil {
		return ParsedNonce{}, err
	}

	issuedAt := time.Unix(0, ts)
	if time.Since(issuedAt) > m.ttl {
		return ParsedNonce{}, errors.Wrap(errors.ErrExpired, "nonce TTL exceeded")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.seen[encoded]; ok && entry.accepted {
		return ParsedNonce{}, errors.Wrap(errors.ErrReplay, "nonce already accepted")
	}
	m.seen[encoded] = seenEntry{expiresAt: time.Now().Add(m.ttl), accepted: true}

	return ParsedNonce{TimestampNs: ts, Random: random}, nil
}

// Sweep removes seen-set entries whose expiry has passed, returning the
// count removed.
func (m *Manager) Sweep() int {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for encoded, e := range m.seen {
		if e.expiresAt.Before(now) {
			delete(m.seen, encoded)
			n++
		}
	}
	return n
}

// encode lays out timestamp_ns(8 LE) ‖ random ‖ hmac_tag(tagSize),
// base64-encoded.
func (m *Manager) encode(ts int64, random []byte) (string, error) {
	buf := make([]byte, 8+len(random))
	binary.LittleEndian.PutUint64(buf[:8], uint64(ts))
	copy(buf[8:], random)

	tag, err := primitive.HMAC(hashForHMAC, m.secretKey, buf)
	if err != nil {
		return "", err
	}
	buf = append(buf, tag[:tagSize]...)
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (m *Manager) decode(encoded string) (ts int64, random []byte, err error) {
	buf, decErr := base64.RawURLEncoding.Strict().DecodeString(encoded)
	if decErr != nil {
		return 0, nil, errors.Wrap(errors.ErrMalformed, "nonce is not valid base64")
	}
	if len(buf) < 8+randomSize+tagSize {
		return 0, nil, errors.Wrap(errors.ErrMalformed, "nonce shorter than fixed layout")
	}

	body, gotTag := buf[:len(buf)-tagSize], buf[len(buf)-tagSize:]
	wantTag, err := primitive.HMAC(hashForHMAC, m.secretKey, body)
	if err != nil {
		return 0, nil, err
	}
	if !primitive.ConstantTimeEqual(gotTag, wantTag[:tagSize]) {
		return 0, nil, errors.Wrap(errors.ErrAuthenticationFailed, "nonce tag mismatch")
	}

	ts = int64(binary.LittleEndian.Uint64(body[:8]))
	random = append([]byte(nil), body[8:]...)
	return ts, random, nil
}
