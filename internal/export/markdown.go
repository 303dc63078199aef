// Package export writes articles and digests out of the reader: bookmark
// markdown notes, Obsidian vault notes, and Notion database pages.
package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"driftline/pkg/drift"
)

const slugRuneLimit = 50

// slugify converts a title into a filename-safe slug. Letters and digits
// of any script survive, whitespace runs become single dashes, everything
// else is dropped. The result is capped at slugRuneLimit runes.
func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.TrimSpace(title) {
		switch {
		case unicode.IsSpace(r):
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
			b.WriteRune(r)
			lastDash = false
		}
	}

	slug := strings.Trim(b.String(), "-")
	runes := []rune(slug)
	if len(runes) > slugRuneLimit {
		slug = string(runes[:slugRuneLimit])
	}
	if slug == "" {
		return "untitled"
	}

	return slug
}

// feedFolder sanitizes a feed name for use as a directory name.
func feedFolder(feedName string) string {
	folder := slugify(feedName)
	if folder == "untitled" {
		return "unknown"
	}

	return folder
}

// articleDate returns the article's display date, preferring the published
// time and falling back to the fetch time.
func articleDate(article drift.Article) string {
	at := article.PublishedAt
	if at.IsZero() {
		at = article.FetchedAt
	}

	return at.Format("2006-01-02")
}

// securePath joins name under base and rejects any result that escapes
// base, such as names carrying dot-dot segments.
func securePath(base, name string) (string, error) {
	path := filepath.Join(base, name)
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %s", name, base)
	}

	return path, nil
}

func noteDateStamp(clock func() time.Time) string {
	return clock().Format("2006-01-02")
}
