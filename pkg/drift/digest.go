package drift

import (
	"fmt"
	"time"
)

// Digest is a cached cross-article synthesis. ScopeKey names the article set
// it was built from, Fingerprint the exact content state of that set at
// generation time. A cached digest is served only while a freshly computed
// fingerprint still equals the stored one; there is no time-based expiry.
type Digest struct {
	ScopeKey    string
	Fingerprint string
	Text        string
	GeneratedAt time.Time
}

// Validate reports whether the digest can be persisted.
func (d Digest) Validate() error {
	if d.ScopeKey == "" {
		return fmt.Errorf("digest: empty scope key")
	}
	if d.Fingerprint == "" {
		return fmt.Errorf("digest: empty fingerprint")
	}

	return nil
}
