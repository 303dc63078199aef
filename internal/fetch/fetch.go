// Package fetch pulls feeds and full article bodies over HTTP and lands the
// results in the store. Feed failures are isolated per feed: one unreachable
// host never aborts the refresh of the others.
package fetch

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"driftline/pkg/drift"
)

const (
	defaultParallelism = 4
	defaultHTTPTimeout = 30 * time.Second

	// descriptionRuneLimit caps stored descriptions; list rows and prompts
	// only ever need the lead of the text.
	descriptionRuneLimit = 500
	// bodyRuneLimit caps extracted article bodies fed to translation.
	bodyRuneLimit = 10000
	// maxBodyBytes bounds how much of a page is read before extraction.
	maxBodyBytes = 2 << 20

	userAgent = "driftline/1.0"
)

// textPolicy strips every tag; what remains is the text content.
var textPolicy = bluemonday.StrictPolicy()

// ArticleStore is the persistence slice the fetcher writes through.
type ArticleStore interface {
	UpsertArticle(ctx context.Context, in drift.ArticleInput) (drift.Article, bool, error)
	TouchFeed(ctx context.Context, id string) error
}

// FeedError records one failed feed inside an otherwise successful refresh.
type FeedError struct {
	Feed drift.Feed
	Err  error
}

// Summary aggregates one refresh run across all feeds.
type Summary struct {
	// Created counts articles stored for the first time.
	Created int
	// Updated counts re-fetched articles whose content changed.
	Updated int
	// Failed lists feeds that could not be fetched or parsed.
	Failed []FeedError
}

// String renders the short result line shown in task notices.
func (s Summary) String() string {
	line := fmt.Sprintf("%d new, %d updated", s.Created, s.Updated)
	if len(s.Failed) > 0 {
		line += fmt.Sprintf(", %d feeds failed", len(s.Failed))
	}

	return line
}

// Fetcher downloads and parses feeds and article pages.
type Fetcher struct {
	store  ArticleStore
	parser *gofeed.Parser
	client *http.Client

	parallelism int
	logger      *slog.Logger
}

// Option adjusts fetcher construction.
type Option func(*Fetcher)

// WithParallelism bounds how many feeds are fetched at once.
func WithParallelism(limit int) Option {
	return func(f *Fetcher) {
		if limit > 0 {
			f.parallelism = limit
		}
	}
}

// WithHTTPClient replaces the HTTP client used for feeds and bodies.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
			f.parser.Client = client
		}
	}
}

// WithLogger configures the fetch logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a fetcher writing through the given store.
func New(store ArticleStore, options ...Option) (*Fetcher, error) {
	if store == nil {
		return nil, fmt.Errorf("new fetcher: nil store")
	}

	client := &http.Client{
		Timeout: defaultHTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 2,
		},
	}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = userAgent

	f := &Fetcher{
		store:       store,
		parser:      parser,
		client:      client,
		parallelism: defaultParallelism,
		logger:      slog.Default(),
	}
	for _, option := range options {
		option(f)
	}

	return f, nil
}

// RefreshAll fetches every feed with bounded parallelism and upserts the
// entries. Per-feed failures land in the summary; the returned error is
// non-nil only when the whole run was canceled.
func (f *Fetcher) RefreshAll(ctx context.Context, feeds []drift.Feed) (Summary, error) {
	var (
		mu      sync.Mutex
		summary Summary
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(f.parallelism)
	for _, feed := range feeds {
		feed := feed
		group.Go(func() error {
			created, updated, err := f.refreshFeed(groupCtx, feed)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				f.logger.Warn("feed refresh failed", "feed", feed.Name, "url", feed.URL, "error", err)
				summary.Failed = append(summary.Failed, FeedError{Feed: feed, Err: err})

				return nil
			}
			summary.Created += created
			summary.Updated += updated

			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return summary, fmt.Errorf("refresh feeds: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("refresh feeds: %w", err)
	}

	return summary, nil
}

// refreshFeed fetches one feed and stores its entries.
func (f *Fetcher) refreshFeed(ctx context.Context, feed drift.Feed) (int, int, error) {
	parsed, err := f.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return 0, 0, classifyFetchErr("fetch feed", err)
	}

	created, updated := 0, 0
	for _, item := range parsed.Items {
		input := drift.ArticleInput{
			FeedID:      feed.ID,
			FeedName:    feed.Name,
			GUID:        strings.TrimSpace(item.GUID),
			Title:       plainText(item.Title),
			Link:        strings.TrimSpace(item.Link),
			Description: truncateRunes(plainText(itemDescription(item)), descriptionRuneLimit),
			PublishedAt: itemPublished(item),
		}
		if input.EntryRef() == "" {
			f.logger.Debug("skipping entry without guid or link", "feed", feed.Name, "title", input.Title)
			continue
		}

		article, isNew, err := f.store.UpsertArticle(ctx, input)
		if err != nil {
			return created, updated, fmt.Errorf("store entry %q: %w", input.Title, err)
		}
		switch {
		case isNew:
			created++
		case article.UpdatedAt.Equal(article.FetchedAt):
			// A content change sets updated_at and fetched_at to the same
			// instant inside one transaction; equality detects it.
			updated++
		}
	}

	if err := f.store.TouchFeed(ctx, feed.ID); err != nil {
		return created, updated, fmt.Errorf("touch feed: %w", err)
	}

	return created, updated, nil
}

// FetchBody downloads one article page and extracts its readable text,
// capped at bodyRuneLimit runes.
func (f *Fetcher) FetchBody(ctx context.Context, link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("fetch body: empty link")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("fetch body: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", classifyFetchErr("fetch body", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", httpStatusErr("fetch body", resp)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", classifyFetchErr("fetch body", err)
	}

	text := truncateRunes(plainText(string(raw)), bodyRuneLimit)
	if text == "" {
		return "", &drift.TaskError{
			Op:    "fetch body",
			Kind:  drift.FailureKindPermanent,
			Cause: fmt.Errorf("no readable text at %s", link),
		}
	}

	return text, nil
}

// itemDescription prefers the summary field and falls back to full content.
func itemDescription(item *gofeed.Item) string {
	if strings.TrimSpace(item.Description) != "" {
		return item.Description
	}

	return item.Content
}

// itemPublished resolves the entry timestamp, leaving zero for the store to
// default when the feed carries none.
func itemPublished(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}

	return time.Time{}
}

// plainText strips markup, decodes entities, and collapses whitespace.
func plainText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(textPolicy.Sanitize(s))), " ")
}

// truncateRunes caps s at limit runes, marking the cut with an ellipsis.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}

	return string(runes[:limit-3]) + "..."
}

// classifyFetchErr maps transport-level failures onto task failure kinds so
// the coordinator retries what is worth retrying.
func classifyFetchErr(op string, err error) error {
	return &drift.TaskError{Op: op, Kind: drift.ClassifyTransport(err), Cause: err}
}

// httpStatusErr maps HTTP status codes onto task failure kinds, honoring
// Retry-After on 429 responses.
func httpStatusErr(op string, resp *http.Response) error {
	taskErr := &drift.TaskError{
		Op:    op,
		Kind:  drift.ClassifyStatus(resp.StatusCode),
		Code:  resp.StatusCode,
		Cause: fmt.Errorf("unexpected status %s", resp.Status),
	}
	if taskErr.Kind == drift.FailureKindRateLimited {
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
			taskErr.RetryAfter = time.Duration(seconds) * time.Second
		}
	}

	return taskErr
}
