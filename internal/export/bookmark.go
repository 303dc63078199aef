package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"driftline/pkg/drift"
)

// BookmarkNotes writes one markdown note per bookmarked article into a
// flat directory, named <date>-<slug>.md. Removing a bookmark removes
// its note.
type BookmarkNotes struct {
	dir string
}

// NewBookmarkNotes returns a writer rooted at dir. The directory is
// created on first save.
func NewBookmarkNotes(dir string) *BookmarkNotes {
	return &BookmarkNotes{dir: dir}
}

// Save writes the note for article and returns the file path. An existing
// note for the same article is overwritten.
func (n *BookmarkNotes) Save(article drift.Article, memo string, tags []string) (string, error) {
	path, err := n.notePath(article)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(n.dir, 0o755); err != nil {
		return "", fmt.Errorf("save bookmark note: %w", err)
	}
	if err := os.WriteFile(path, []byte(bookmarkNote(article, memo, tags)), 0o644); err != nil {
		return "", fmt.Errorf("save bookmark note: %w", err)
	}

	return path, nil
}

// Remove deletes the note for article. A missing note is not an error.
func (n *BookmarkNotes) Remove(article drift.Article) error {
	path, err := n.notePath(article)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove bookmark note: %w", err)
	}

	return nil
}

func (n *BookmarkNotes) notePath(article drift.Article) (string, error) {
	filename := fmt.Sprintf("%s-%s.md", articleDate(article), slugify(article.Title))
	path, err := securePath(n.dir, filename)
	if err != nil {
		return "", fmt.Errorf("bookmark note path: %w", err)
	}

	return path, nil
}

func bookmarkNote(article drift.Article, memo string, tags []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", article.Title)
	fmt.Fprintf(&b, "- **Source**: %s\n", article.FeedName)
	fmt.Fprintf(&b, "- **Date**: %s\n", articleDate(article))
	fmt.Fprintf(&b, "- **Link**: %s\n", article.Link)
	if len(tags) > 0 {
		fmt.Fprintf(&b, "- **Tags**: %s\n", strings.Join(tags, ", "))
	}
	if article.Insight != "" {
		fmt.Fprintf(&b, "- **Insight**: %s\n", article.Insight)
	}
	b.WriteString("\n## Memo\n\n")
	if memo == "" {
		memo = "(no memo)"
	}
	b.WriteString(memo)
	b.WriteString("\n")

	return b.String()
}
