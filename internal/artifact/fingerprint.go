// Package artifact decides when cached AI output may be served and when it
// must be regenerated. Validity is pure content equality: a digest is fresh
// while the fingerprint of its source articles matches the one stored with
// it, regardless of age.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"driftline/pkg/drift"
)

// Fingerprint hashes the identity and mutation stamp of every source
// article. The pairs are sorted first, so listing order never changes the
// result; adding, removing, or editing an article always does. Bookmark
// memo and tag edits count as edits because the store moves the article's
// stamp for them.
func Fingerprint(articles []drift.Article) string {
	pairs := make([]string, 0, len(articles))
	for _, article := range articles {
		pairs = append(pairs, article.ID+"@"+article.UpdatedAt.UTC().Format(time.RFC3339Nano))
	}
	sort.Strings(pairs)

	h := sha256.New()
	for _, pair := range pairs {
		h.Write([]byte(pair))
		h.Write([]byte{'\n'})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// BookmarkScope is the scope key for the digest over all bookmarks.
const BookmarkScope = "bookmarks"

// TagScope returns the scope key for a digest over one bookmark tag.
func TagScope(tag string) string {
	return "tag:" + tag
}
