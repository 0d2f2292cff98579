package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests. The version suffix allows the
// encoding to change without colliding with stored digests.
const (
	DomainCorpus = "audiomark/corpus/v1"
	DomainGolden = "audiomark/golden/v1"
	DomainConfig = "audiomark/config/v1"
	DomainReport = "audiomark/report/v1"
)

// DigestBytes computes SHA256(domain + 0x00 + data) as lowercase hex.
func DigestBytes(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest canonicalizes v and digests it under domain.
func Digest(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return DigestBytes(domain, data), nil
}
