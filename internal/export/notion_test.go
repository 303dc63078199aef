package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"driftline/pkg/drift"
)

type notionServerStub struct {
	mu       sync.Mutex
	calls    int
	pages    []notionPage
	paths    []string
	headers  []http.Header
	statuses []int
}

// handler records every request and answers with the configured status
// sequence; the last status repeats once the sequence is exhausted.
func (s *notionServerStub) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.paths = append(s.paths, r.Method+" "+r.URL.Path)
	s.headers = append(s.headers, r.Header.Clone())

	var page notionPage
	if err := json.NewDecoder(r.Body).Decode(&page); err == nil {
		s.pages = append(s.pages, page)
	}

	status := http.StatusOK
	if len(s.statuses) > 0 {
		idx := s.calls - 1
		if idx >= len(s.statuses) {
			idx = len(s.statuses) - 1
		}
		status = s.statuses[idx]
	}

	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
		fmt.Fprint(w, `{"message":"boom"}`)
		return
	}
	fmt.Fprint(w, `{"id":"page-123"}`)
}

func (s *notionServerStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

func (s *notionServerStub) lastPage(t *testing.T) notionPage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pages) == 0 {
		t.Fatal("no page payload recorded")
	}

	return s.pages[len(s.pages)-1]
}

func newTestNotion(t *testing.T, stub *notionServerStub) *Notion {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(stub.handler))
	t.Cleanup(server.Close)

	clock := func() time.Time { return time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC) }
	n, err := NewNotion(
		NotionConfig{Token: "secret-token", DatabaseID: "db-1"},
		WithNotionBaseURL(server.URL),
		WithNotionRetryInterval(time.Millisecond),
		WithNotionClock(clock),
	)
	if err != nil {
		t.Fatalf("NewNotion failed: %v", err)
	}

	return n
}

func TestNewNotionValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewNotion(NotionConfig{DatabaseID: "db"}); err == nil {
		t.Error("NewNotion should reject a missing token")
	}
	if _, err := NewNotion(NotionConfig{Token: "tok"}); err == nil {
		t.Error("NewNotion should reject a missing database id")
	}
}

func TestNotionSaveArticleCreatesPage(t *testing.T) {
	t.Parallel()

	stub := &notionServerStub{}
	n := newTestNotion(t, stub)

	pageID, err := n.SaveArticle(context.Background(), exportArticle(), "my note", []string{"go"})
	if err != nil {
		t.Fatalf("SaveArticle failed: %v", err)
	}
	if pageID != "page-123" {
		t.Errorf("page id = %q", pageID)
	}
	if stub.paths[0] != "POST /v1/pages" {
		t.Errorf("request = %q, want POST /v1/pages", stub.paths[0])
	}
	if got := stub.headers[0].Get("Authorization"); got != "Bearer secret-token" {
		t.Errorf("authorization header = %q", got)
	}
	if got := stub.headers[0].Get("Notion-Version"); got != notionVersion {
		t.Errorf("notion version header = %q", got)
	}

	page := stub.lastPage(t)
	if page.Parent.DatabaseID != "db-1" {
		t.Errorf("parent database = %q", page.Parent.DatabaseID)
	}
	name := page.Properties["Name"]
	if len(name.Title) == 0 || name.Title[0].Text.Content != "Quantum Leap" {
		t.Errorf("Name property = %+v", name)
	}
	if page.Properties["URL"].URL != "https://example.com/quantum" {
		t.Errorf("URL property = %+v", page.Properties["URL"])
	}
	if page.Properties["Date"].Date == nil || page.Properties["Date"].Date.Start != "2026-08-18" {
		t.Errorf("Date property = %+v", page.Properties["Date"])
	}
	tags := page.Properties["Tags"].MultiSelect
	if len(tags) != 2 || tags[0].Name != "driftline" || tags[1].Name != "driftline/go" {
		t.Errorf("Tags property = %+v", tags)
	}

	if len(page.Children) == 0 || page.Children[0].Type != "heading_2" {
		t.Fatalf("children = %+v, want leading Summary heading", page.Children)
	}
	var sawNotes bool
	for _, block := range page.Children {
		if block.Type == "paragraph" && len(block.Paragraph.RichText) > 0 &&
			block.Paragraph.RichText[0].Text.Content == "my note" {
			sawNotes = true
		}
	}
	if !sawNotes {
		t.Errorf("children missing memo paragraph: %+v", page.Children)
	}
}

func TestNotionChunksLongText(t *testing.T) {
	t.Parallel()

	article := exportArticle()
	article.Description = strings.Repeat("글", notionTextLimit) + "tail"
	stub := &notionServerStub{}
	n := newTestNotion(t, stub)

	if _, err := n.SaveArticle(context.Background(), article, "", nil); err != nil {
		t.Fatalf("SaveArticle failed: %v", err)
	}

	page := stub.lastPage(t)
	var summary *notionBlock
	for i, block := range page.Children {
		if block.Type == "paragraph" {
			summary = &page.Children[i]
			break
		}
	}
	if summary == nil {
		t.Fatal("no paragraph block found")
	}
	chunks := summary.Paragraph.RichText
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if got := len([]rune(chunks[0].Text.Content)); got != notionTextLimit {
		t.Errorf("first chunk = %d runes, want %d", got, notionTextLimit)
	}
	if chunks[1].Text.Content != "tail" {
		t.Errorf("second chunk = %q", chunks[1].Text.Content)
	}
}

func TestNotionRetriesRateLimitThenSucceeds(t *testing.T) {
	t.Parallel()

	stub := &notionServerStub{statuses: []int{http.StatusTooManyRequests, http.StatusOK}}
	n := newTestNotion(t, stub)

	pageID, err := n.SaveArticle(context.Background(), exportArticle(), "", nil)
	if err != nil {
		t.Fatalf("SaveArticle failed after retry: %v", err)
	}
	if pageID != "page-123" {
		t.Errorf("page id = %q", pageID)
	}
	if stub.callCount() != 2 {
		t.Errorf("calls = %d, want 2", stub.callCount())
	}
}

func TestNotionDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	stub := &notionServerStub{statuses: []int{http.StatusBadRequest}}
	n := newTestNotion(t, stub)

	_, err := n.SaveArticle(context.Background(), exportArticle(), "", nil)
	taskErr, ok := drift.AsTaskError(err)
	if !ok {
		t.Fatalf("error = %v, want task error", err)
	}
	if taskErr.Kind != drift.FailureKindPermanent || taskErr.Code != http.StatusBadRequest {
		t.Errorf("task error = %+v", taskErr)
	}
	if !strings.Contains(taskErr.Error(), "boom") {
		t.Errorf("error %q missing server message", taskErr.Error())
	}
	if stub.callCount() != 1 {
		t.Errorf("calls = %d, want no retries", stub.callCount())
	}
}

func TestNotionGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	stub := &notionServerStub{statuses: []int{http.StatusServiceUnavailable}}
	n := newTestNotion(t, stub)

	_, err := n.SaveArticle(context.Background(), exportArticle(), "", nil)
	taskErr, ok := drift.AsTaskError(err)
	if !ok || taskErr.Kind != drift.FailureKindTransient {
		t.Fatalf("error = %v, want transient task error", err)
	}
	if stub.callCount() != notionMaxRetries+1 {
		t.Errorf("calls = %d, want %d", stub.callCount(), notionMaxRetries+1)
	}
}

func TestNotionSaveDigestSplitsParagraphs(t *testing.T) {
	t.Parallel()

	stub := &notionServerStub{}
	n := newTestNotion(t, stub)

	if _, err := n.SaveDigest(context.Background(), "Theme one.\n\nTheme two.", 5, 7); err != nil {
		t.Fatalf("SaveDigest failed: %v", err)
	}

	page := stub.lastPage(t)
	name := page.Properties["Name"]
	if len(name.Title) == 0 || name.Title[0].Text.Content != "Weekly Digest 2026-08-21" {
		t.Errorf("Name property = %+v", name)
	}

	var paragraphs []string
	for _, block := range page.Children {
		if block.Type == "paragraph" {
			paragraphs = append(paragraphs, block.Paragraph.RichText[0].Text.Content)
		}
	}
	want := []string{
		"5 articles from the past 7 days",
		"Theme one.",
		"Theme two.",
		"Generated by driftline on 2026-08-21",
	}
	if len(paragraphs) != len(want) {
		t.Fatalf("paragraphs = %v, want %v", paragraphs, want)
	}
	for i := range want {
		if paragraphs[i] != want[i] {
			t.Errorf("paragraph %d = %q, want %q", i, paragraphs[i], want[i])
		}
	}
}

func TestNotionCheckConnection(t *testing.T) {
	t.Parallel()

	stub := &notionServerStub{}
	n := newTestNotion(t, stub)

	if err := n.CheckConnection(context.Background()); err != nil {
		t.Fatalf("CheckConnection failed: %v", err)
	}
	if stub.paths[0] != "GET /v1/databases/db-1" {
		t.Errorf("request = %q", stub.paths[0])
	}

	failing := &notionServerStub{statuses: []int{http.StatusNotFound}}
	n = newTestNotion(t, failing)
	err := n.CheckConnection(context.Background())
	if err == nil {
		t.Fatal("CheckConnection should fail on 404")
	}
	var taskErr *drift.TaskError
	if !errors.As(err, &taskErr) || taskErr.Code != http.StatusNotFound {
		t.Errorf("error = %v, want task error with 404", err)
	}
}
