package opml

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"driftline/pkg/drift"
)

const basicOPML = `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head><title>Test</title></head>
  <body>
    <outline type="rss" text="Feed A" title="Feed A" xmlUrl="https://a.com/feed" />
    <outline type="rss" text="Feed B" title="Feed B" xmlUrl="https://b.com/feed" />
  </body>
</opml>`

func TestParseBasic(t *testing.T) {
	t.Parallel()

	feeds, err := Parse([]byte(basicOPML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := []drift.Feed{
		{URL: "https://a.com/feed", Name: "Feed A"},
		{URL: "https://b.com/feed", Name: "Feed B"},
	}
	if !reflect.DeepEqual(feeds, want) {
		t.Errorf("feeds = %+v, want %+v", feeds, want)
	}
}

func TestParseNestedCategories(t *testing.T) {
	t.Parallel()

	doc := `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head><title>Nested</title></head>
  <body>
    <outline text="Tech">
      <outline type="rss" text="Feed A" xmlUrl="https://a.com/feed" />
      <outline text="Sub Category">
        <outline type="rss" text="Feed B" xmlUrl="https://b.com/feed" />
      </outline>
    </outline>
    <outline type="rss" text="Feed C" xmlUrl="https://c.com/feed" />
  </body>
</opml>`

	feeds, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(feeds) != 3 {
		t.Fatalf("parsed %d feeds, want 3", len(feeds))
	}

	urls := make([]string, 0, len(feeds))
	for _, feed := range feeds {
		urls = append(urls, feed.URL)
	}
	want := []string{"https://a.com/feed", "https://b.com/feed", "https://c.com/feed"}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("urls = %v, want document order %v", urls, want)
	}
}

func TestParseEmptyDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "empty body",
			doc:  `<opml version="2.0"><head><title>Empty</title></head><body></body></opml>`,
		},
		{
			name: "no body element",
			doc:  `<opml version="2.0"><head><title>No Body</title></head></opml>`,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			feeds, err := Parse([]byte(testCase.doc))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(feeds) != 0 {
				t.Errorf("feeds = %+v, want none", feeds)
			}
		})
	}
}

func TestParseInvalidXML(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("this is not xml")); err == nil {
		t.Fatal("Parse should fail on non-XML input")
	}
	if _, err := Parse([]byte("<rss><channel></channel></rss>")); err == nil {
		t.Fatal("Parse should fail on a non-opml root element")
	}
}

func TestParseNameFallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		outline  string
		wantName string
	}{
		{
			name:     "title preferred",
			outline:  `<outline title="Titled" text="Texted" xmlUrl="https://a.com/feed" />`,
			wantName: "Titled",
		},
		{
			name:     "text when no title",
			outline:  `<outline text="Text Name" xmlUrl="https://a.com/feed" />`,
			wantName: "Text Name",
		},
		{
			name:     "url when neither",
			outline:  `<outline xmlUrl="https://a.com/feed" />`,
			wantName: "https://a.com/feed",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			doc := `<opml version="2.0"><body>` + testCase.outline + `</body></opml>`
			feeds, err := Parse([]byte(doc))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(feeds) != 1 || feeds[0].Name != testCase.wantName {
				t.Errorf("feeds = %+v, want one named %q", feeds, testCase.wantName)
			}
		})
	}
}

func TestParseSkipsNonHTTPURLs(t *testing.T) {
	t.Parallel()

	doc := `<opml version="2.0"><body>
    <outline text="FTP" xmlUrl="ftp://a.com/feed" />
    <outline text="Scheme" xmlUrl="feed://b.com/feed" />
    <outline text="Blank" xmlUrl="" />
    <outline text="Kept" xmlUrl="http://c.com/feed" />
  </body></opml>`

	feeds, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(feeds) != 1 || feeds[0].URL != "http://c.com/feed" {
		t.Errorf("feeds = %+v, want only the http entry", feeds)
	}
}

func TestParseDeduplicatesByURL(t *testing.T) {
	t.Parallel()

	doc := `<opml version="2.0"><body>
    <outline title="First" xmlUrl="https://a.com/feed" />
    <outline title="Second" xmlUrl="https://a.com/feed" />
  </body></opml>`

	feeds, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(feeds) != 1 || feeds[0].Name != "First" {
		t.Errorf("feeds = %+v, want the first occurrence only", feeds)
	}
}

func TestParseFileRejectsOversizedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "huge.opml")
	if err := os.WriteFile(path, make([]byte, maxImportBytes+1), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := ParseFile(path)
	if err == nil {
		t.Fatal("ParseFile should reject files over the size cap")
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("error = %v, want size cap message", err)
	}
}

func TestParseFileMissing(t *testing.T) {
	t.Parallel()

	if _, err := ParseFile(filepath.Join(t.TempDir(), "absent.opml")); err == nil {
		t.Fatal("ParseFile should fail for a missing file")
	}
}

func TestMarshalRendersDocument(t *testing.T) {
	t.Parallel()

	feeds := []drift.Feed{{URL: "https://a.com/feed", Name: "Feed A"}}
	generatedAt := time.Date(2026, 8, 21, 10, 30, 0, 0, time.UTC)

	data, err := Marshal(feeds, generatedAt)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	content := string(data)
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<opml version="2.0">`,
		`<dateCreated>Fri, 21 Aug 2026 10:30:00 GMT</dateCreated>`,
		`type="rss"`,
		`title="Feed A"`,
		`xmlUrl="https://a.com/feed"`,
	} {
		if !strings.Contains(content, want) {
			t.Errorf("document missing %q:\n%s", want, content)
		}
	}
}

func TestExportWritesFileAndCreatesParents(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sub", "dir", "feeds.opml")
	feeds := []drift.Feed{{URL: "https://a.com/feed", Name: "Feed A"}}

	if err := Export(path, feeds); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read exported file: %v", err)
	}
	if !strings.Contains(string(data), "https://a.com/feed") {
		t.Errorf("exported document missing feed url:\n%s", data)
	}
}

func TestExportEmptyFeedList(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.opml")
	if err := Export(path, nil); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	feeds, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(feeds) != 0 {
		t.Errorf("feeds = %+v, want none", feeds)
	}
}

func TestRoundtrip(t *testing.T) {
	t.Parallel()

	original := []drift.Feed{
		{URL: "https://a.com/feed", Name: "Feed A"},
		{URL: "https://b.com/feed", Name: "Feed B"},
		{URL: "https://c.com/rss", Name: "Feed C"},
	}
	path := filepath.Join(t.TempDir(), "roundtrip.opml")

	if err := Export(path, original); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	imported, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if !reflect.DeepEqual(imported, original) {
		t.Errorf("imported = %+v, want %+v", imported, original)
	}
}
