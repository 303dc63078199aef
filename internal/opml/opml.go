// Package opml reads and writes OPML subscription lists. Import walks
// nested outline elements recursively and keeps only http/https feed
// entries; export produces a flat OPML 2.0 document.
package opml

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"driftline/pkg/drift"
)

// maxImportBytes caps the accepted OPML file size. Larger files are
// rejected before any XML is parsed.
const maxImportBytes = 1 << 20

const (
	exportTitle      = "driftline feeds"
	exportTimeLayout = "Mon, 02 Jan 2006 15:04:05 GMT"
)

type opmlDocument struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    opmlHead `xml:"head"`
	Body    opmlBody `xml:"body"`
}

type opmlHead struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

// opmlOutline is one <outline> element. Category folders carry child
// outlines and no xmlUrl; feed entries carry an xmlUrl attribute.
type opmlOutline struct {
	Type     string        `xml:"type,attr,omitempty"`
	Text     string        `xml:"text,attr,omitempty"`
	Title    string        `xml:"title,attr,omitempty"`
	XMLURL   string        `xml:"xmlUrl,attr,omitempty"`
	Outlines []opmlOutline `xml:"outline,omitempty"`
}

// Parse extracts feed subscriptions from OPML data. Outlines are walked
// depth-first in document order; entries without an http or https xmlUrl
// are skipped, and a repeated URL keeps its first occurrence. The display
// name prefers the title attribute, then text, then the URL itself.
func Parse(data []byte) ([]drift.Feed, error) {
	var doc opmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse opml: %w", err)
	}

	var feeds []drift.Feed
	seen := make(map[string]bool)
	collectFeeds(doc.Body.Outlines, seen, &feeds)

	return feeds, nil
}

// ParseFile reads and parses an OPML file, rejecting files larger than
// maxImportBytes before reading them.
func ParseFile(path string) ([]drift.Feed, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read opml %s: %w", path, err)
	}
	if info.Size() > maxImportBytes {
		return nil, fmt.Errorf("read opml %s: file exceeds %d bytes", path, maxImportBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read opml %s: %w", path, err)
	}

	return Parse(data)
}

func collectFeeds(outlines []opmlOutline, seen map[string]bool, feeds *[]drift.Feed) {
	for _, outline := range outlines {
		rawURL := strings.TrimSpace(outline.XMLURL)
		if isFeedURL(rawURL) && !seen[rawURL] {
			seen[rawURL] = true
			*feeds = append(*feeds, drift.Feed{URL: rawURL, Name: outlineName(outline, rawURL)})
		}
		collectFeeds(outline.Outlines, seen, feeds)
	}
}

func isFeedURL(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}

func outlineName(outline opmlOutline, rawURL string) string {
	if title := strings.TrimSpace(outline.Title); title != "" {
		return title
	}
	if text := strings.TrimSpace(outline.Text); text != "" {
		return text
	}

	return rawURL
}

// Marshal renders feeds as an OPML 2.0 document with an XML declaration.
func Marshal(feeds []drift.Feed, generatedAt time.Time) ([]byte, error) {
	doc := opmlDocument{
		Version: "2.0",
		Head: opmlHead{
			Title:       exportTitle,
			DateCreated: generatedAt.UTC().Format(exportTimeLayout),
		},
	}
	for _, feed := range feeds {
		doc.Body.Outlines = append(doc.Body.Outlines, opmlOutline{
			Type:   "rss",
			Text:   feed.Name,
			Title:  feed.Name,
			XMLURL: feed.URL,
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal opml: %w", err)
	}

	return append([]byte(xml.Header), append(body, '\n')...), nil
}

// Export writes feeds as an OPML 2.0 file, creating parent directories
// as needed.
func Export(path string, feeds []drift.Feed) error {
	data, err := Marshal(feeds, time.Now())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export opml %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export opml %s: %w", path, err)
	}

	return nil
}
