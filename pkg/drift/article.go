package drift

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// idLength is the hex length of derived article and feed identifiers.
const idLength = 16

// Article is one stored feed entry together with its read state, its AI
// artifacts, and its bookmark when one exists.
type Article struct {
	// ID is the stable content-derived identifier (see DeriveArticleID).
	ID string
	// FeedID identifies the owning feed.
	FeedID string
	// FeedName is the display name of the owning feed.
	FeedName string
	// Title is the entry title as fetched.
	Title string
	// Link is the entry URL.
	Link string
	// Description is the sanitized, truncated entry summary.
	Description string
	// PublishedAt is the entry publication time (or the fetch time when unknown).
	PublishedAt time.Time
	// FetchedAt records when this entry was last seen by a refresh.
	FetchedAt time.Time
	// UpdatedAt records the last mutation of this article or its bookmark.
	// It feeds the digest fingerprint.
	UpdatedAt time.Time
	// Read reports whether the reader opened this article.
	Read bool
	// Insight is the cached AI insight text, empty when none was generated.
	Insight string
	// InsightLang is the language the cached insight was generated in.
	InsightLang string
	// TranslatedTitle is the cached title translation, empty when none exists.
	TranslatedTitle string
	// TranslatedDescription is the cached description translation.
	TranslatedDescription string
	// TranslatedBody is the cached full-body translation.
	TranslatedBody string
	// Bookmark is present only while the article is bookmarked.
	Bookmark *Bookmark
}

// Bookmarked reports whether the article currently carries a bookmark.
func (a Article) Bookmarked() bool {
	return a.Bookmark != nil
}

// Translated reports whether any translated field has been generated.
func (a Article) Translated() bool {
	return a.TranslatedTitle != "" || a.TranslatedDescription != "" || a.TranslatedBody != ""
}

// Bookmark is the reader's per-article annotation record.
type Bookmark struct {
	// ArticleID identifies the owning article.
	ArticleID string
	// BookmarkedAt records when the bookmark was created.
	BookmarkedAt time.Time
	// Memo is the free-form user note, empty when unset.
	Memo string
	// Tags is the ordered tag set attached to the bookmark.
	Tags []string
}

// Feed is one subscribed source.
type Feed struct {
	// ID is the stable URL-derived identifier (see DeriveFeedID).
	ID string
	// URL is the feed document URL.
	URL string
	// Name is the display name used in listings and article ids.
	Name string
	// LastFetchedAt records the most recent successful refresh, zero when never fetched.
	LastFetchedAt time.Time
}

// TagCount pairs one tag with the number of bookmarks carrying it.
type TagCount struct {
	Tag   string
	Count int
}

// Stats summarizes the store for the status line.
type Stats struct {
	Total      int
	Unread     int
	Bookmarked int
}

// ArticleInput carries one fetched entry into the store upsert.
type ArticleInput struct {
	// FeedID identifies the owning feed.
	FeedID string
	// FeedName is the feed display name used for id derivation.
	FeedName string
	// GUID is the entry's own identifier when the feed provides one.
	GUID string
	// Title is the entry title.
	Title string
	// Link is the entry URL.
	Link string
	// Description is the sanitized summary text.
	Description string
	// PublishedAt is the entry publication time; zero means unknown.
	PublishedAt time.Time
}

// Validate checks that mandatory upsert fields are present.
func (in ArticleInput) Validate() error {
	if strings.TrimSpace(in.FeedID) == "" {
		return fmt.Errorf("validate article input: missing feed id")
	}
	if strings.TrimSpace(in.FeedName) == "" {
		return fmt.Errorf("validate article input: missing feed name")
	}
	if strings.TrimSpace(in.GUID) == "" && strings.TrimSpace(in.Link) == "" {
		return fmt.Errorf("validate article input: missing both guid and link")
	}

	return nil
}

// EntryRef returns the identity component of the input: the GUID when the
// feed provides one, otherwise the link.
func (in ArticleInput) EntryRef() string {
	if ref := strings.TrimSpace(in.GUID); ref != "" {
		return ref
	}

	return strings.TrimSpace(in.Link)
}

// Translation carries translated title and description metadata for one article.
type Translation struct {
	Title       string
	Description string
}

// ArticleFilter restricts and shapes ListArticles results.
//
// The zero value selects every article, newest first.
type ArticleFilter struct {
	// FeedID restricts results to one feed when non-empty.
	FeedID string
	// UnreadOnly keeps only unread articles.
	UnreadOnly bool
	// BookmarkedOnly keeps only bookmarked articles.
	BookmarkedOnly bool
	// Tag keeps only articles whose bookmark carries the exact tag.
	Tag string
	// Query keeps only articles whose title or description contains the text.
	Query string
	// Limit caps the result count; zero means no cap.
	Limit int
}

// DeriveArticleID returns the stable identifier for one feed entry.
//
// The same feed name and entry reference always derive the same id, which is
// what turns a re-fetch into an upsert instead of a duplicate row.
func DeriveArticleID(feedName, entryRef string) string {
	sum := sha256.Sum256([]byte(feedName + ":" + entryRef))

	return hex.EncodeToString(sum[:])[:idLength]
}

// DeriveFeedID returns the stable identifier for one feed URL.
func DeriveFeedID(url string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(url)))

	return hex.EncodeToString(sum[:])[:idLength]
}
