package primitive

import "crypto/hmac"

// HMAC computes a message authentication tag over data keyed by key, using
// the digest family identified by alg. Key length is unrestricted, matching
// the underlying HMAC construction.
func HMAC(alg HashAlgorithm, key, data []byte) ([]byte, error) {
	newHash, err := newHasher(alg)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(newHash, key)
	mac.Write(data)
	return mac.Sum(nil), nil
}
