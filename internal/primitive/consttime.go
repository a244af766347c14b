package primitive

import "crypto/subtle"

// ConstantTimeEqual reports whether a and b are equal in time independent
// of their contents, to avoid leaking comparison results through timing.
// Slices of differing length are never equal, but the length check itself
// is not constant-time (matching crypto/subtle.ConstantTimeCompare).
func ConstantTimeEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
