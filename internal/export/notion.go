package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"driftline/pkg/drift"
)

const (
	notionAPIBase = "https://api.notion.com"
	notionVersion = "2022-06-28"

	// notionTextLimit is the Notion rich_text content cap per chunk.
	notionTextLimit = 2000

	notionTimeout       = 30 * time.Second
	notionMaxRetries    = 3
	notionRetryInterval = 500 * time.Millisecond
)

// NotionConfig holds the integration token and the target database.
type NotionConfig struct {
	Token      string
	DatabaseID string
}

// Notion creates article and digest pages as rows of one Notion database.
// Rate-limited and server-side failures retry with exponential backoff.
type Notion struct {
	cfg           NotionConfig
	client        *http.Client
	baseURL       string
	clock         func() time.Time
	retryInterval time.Duration
}

// NotionOption adjusts construction.
type NotionOption func(*Notion)

// WithNotionHTTPClient replaces the HTTP client.
func WithNotionHTTPClient(client *http.Client) NotionOption {
	return func(n *Notion) {
		if client != nil {
			n.client = client
		}
	}
}

// WithNotionBaseURL points the client at a different API host.
func WithNotionBaseURL(baseURL string) NotionOption {
	return func(n *Notion) {
		if baseURL != "" {
			n.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithNotionClock replaces the wall clock used for page dates.
func WithNotionClock(clock func() time.Time) NotionOption {
	return func(n *Notion) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithNotionRetryInterval shrinks the backoff base interval; tests use it.
func WithNotionRetryInterval(interval time.Duration) NotionOption {
	return func(n *Notion) {
		if interval > 0 {
			n.retryInterval = interval
		}
	}
}

// NewNotion validates cfg and returns a client.
func NewNotion(cfg NotionConfig, options ...NotionOption) (*Notion, error) {
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.DatabaseID = strings.TrimSpace(cfg.DatabaseID)
	if cfg.Token == "" {
		return nil, errors.New("notion: token is required")
	}
	if cfg.DatabaseID == "" {
		return nil, errors.New("notion: database id is required")
	}

	n := &Notion{
		cfg:           cfg,
		client:        &http.Client{Timeout: notionTimeout},
		baseURL:       notionAPIBase,
		clock:         time.Now,
		retryInterval: notionRetryInterval,
	}
	for _, option := range options {
		option(n)
	}

	return n, nil
}

type notionRichText struct {
	Type string         `json:"type"`
	Text notionTextBody `json:"text"`
}

type notionTextBody struct {
	Content string `json:"content"`
}

type notionBlockBody struct {
	RichText []notionRichText `json:"rich_text"`
}

// notionBlock is one content block; exactly one of the typed bodies is set,
// matching the Type field.
type notionBlock struct {
	Object    string           `json:"object"`
	Type      string           `json:"type"`
	Paragraph *notionBlockBody `json:"paragraph,omitempty"`
	Heading1  *notionBlockBody `json:"heading_1,omitempty"`
	Heading2  *notionBlockBody `json:"heading_2,omitempty"`
	Divider   *struct{}        `json:"divider,omitempty"`
}

type notionDate struct {
	Start string `json:"start"`
}

type notionSelectOption struct {
	Name string `json:"name"`
}

type notionProperty struct {
	Title       []notionRichText     `json:"title,omitempty"`
	RichText    []notionRichText     `json:"rich_text,omitempty"`
	URL         string               `json:"url,omitempty"`
	Date        *notionDate          `json:"date,omitempty"`
	MultiSelect []notionSelectOption `json:"multi_select,omitempty"`
}

type notionParent struct {
	DatabaseID string `json:"database_id"`
}

type notionPage struct {
	Parent     notionParent              `json:"parent"`
	Properties map[string]notionProperty `json:"properties"`
	Children   []notionBlock             `json:"children"`
}

type notionPageResult struct {
	ID string `json:"id"`
}

type notionErrorBody struct {
	Message string `json:"message"`
}

// notionText builds a rich_text array, chunking long text at the API's
// per-chunk content limit.
func notionText(text string) []notionRichText {
	if text == "" {
		return []notionRichText{{Type: "text"}}
	}

	runes := []rune(text)
	parts := make([]notionRichText, 0, len(runes)/notionTextLimit+1)
	for start := 0; start < len(runes); start += notionTextLimit {
		end := min(start+notionTextLimit, len(runes))
		parts = append(parts, notionRichText{Type: "text", Text: notionTextBody{Content: string(runes[start:end])}})
	}

	return parts
}

func paragraphBlock(text string) notionBlock {
	return notionBlock{Object: "block", Type: "paragraph", Paragraph: &notionBlockBody{RichText: notionText(text)}}
}

func headingBlock(text string, level int) notionBlock {
	block := notionBlock{Object: "block"}
	body := &notionBlockBody{RichText: notionText(text)}
	if level == 1 {
		block.Type = "heading_1"
		block.Heading1 = body
	} else {
		block.Type = "heading_2"
		block.Heading2 = body
	}

	return block
}

func dividerBlock() notionBlock {
	return notionBlock{Object: "block", Type: "divider", Divider: &struct{}{}}
}

// SaveArticle creates a database row for article and returns the page id.
func (n *Notion) SaveArticle(ctx context.Context, article drift.Article, memo string, tags []string) (string, error) {
	page := notionPage{
		Parent:     notionParent{DatabaseID: n.cfg.DatabaseID},
		Properties: n.articleProperties(article, tags),
		Children:   n.articleBlocks(article, memo),
	}

	return n.createPage(ctx, "notion save article", page)
}

// SaveDigest creates a database row for digest text and returns the page id.
func (n *Notion) SaveDigest(ctx context.Context, text string, articleCount, periodDays int) (string, error) {
	date := noteDateStamp(n.clock)
	blocks := []notionBlock{
		headingBlock(fmt.Sprintf("Weekly Digest (%s)", date), 1),
		paragraphBlock(fmt.Sprintf("%d articles from the past %d days", articleCount, periodDays)),
	}
	for _, paragraph := range strings.Split(text, "\n\n") {
		if trimmed := strings.TrimSpace(paragraph); trimmed != "" {
			blocks = append(blocks, paragraphBlock(trimmed))
		}
	}
	blocks = append(blocks, dividerBlock(), paragraphBlock("Generated by driftline on "+date))

	page := notionPage{
		Parent: notionParent{DatabaseID: n.cfg.DatabaseID},
		Properties: map[string]notionProperty{
			"Name":   {Title: notionText("Weekly Digest " + date)},
			"Date":   {Date: &notionDate{Start: date}},
			"Source": {RichText: notionText(createdBy)},
			"Tags": {MultiSelect: []notionSelectOption{
				{Name: createdBy},
				{Name: createdBy + "/digest"},
			}},
		},
		Children: blocks,
	}

	return n.createPage(ctx, "notion save digest", page)
}

// CheckConnection verifies the token can read the configured database.
func (n *Notion) CheckConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/v1/databases/"+n.cfg.DatabaseID, nil)
	if err != nil {
		return fmt.Errorf("notion check connection: %w", err)
	}
	n.authorize(req)

	resp, err := n.client.Do(req)
	if err != nil {
		return &drift.TaskError{Op: "notion check connection", Kind: drift.ClassifyTransport(err), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return n.statusError("notion check connection", resp)
	}

	return nil
}

func (n *Notion) articleProperties(article drift.Article, tags []string) map[string]notionProperty {
	props := map[string]notionProperty{
		"Name":   {Title: notionText(article.Title)},
		"URL":    {URL: article.Link},
		"Feed":   {RichText: notionText(article.FeedName)},
		"Date":   {Date: &notionDate{Start: articleDate(article)}},
		"Source": {RichText: notionText(createdBy)},
	}
	if len(tags) > 0 {
		values := []notionSelectOption{{Name: createdBy}}
		for _, tag := range tags {
			values = append(values, notionSelectOption{Name: createdBy + "/" + tag})
		}
		props["Tags"] = notionProperty{MultiSelect: values}
	}

	return props
}

func (n *Notion) articleBlocks(article drift.Article, memo string) []notionBlock {
	blocks := []notionBlock{headingBlock("Summary", 2)}
	if article.Description != "" {
		blocks = append(blocks, paragraphBlock(article.Description))
	} else {
		blocks = append(blocks, paragraphBlock("(No summary available)"))
	}

	if article.Insight != "" {
		blocks = append(blocks, headingBlock("AI Insight", 2), paragraphBlock(article.Insight))
	}

	if article.Translated() {
		blocks = append(blocks, headingBlock("Translation", 2))
		if article.TranslatedTitle != "" {
			blocks = append(blocks, paragraphBlock("Title: "+article.TranslatedTitle))
		}
		if article.TranslatedDescription != "" {
			blocks = append(blocks, paragraphBlock("Description: "+article.TranslatedDescription))
		}
		if article.TranslatedBody != "" {
			blocks = append(blocks, paragraphBlock(article.TranslatedBody))
		}
	}

	blocks = append(blocks, headingBlock("My Notes", 2))
	if memo == "" {
		memo = "(No notes yet)"
	}
	blocks = append(blocks,
		paragraphBlock(memo),
		dividerBlock(),
		paragraphBlock("Saved from driftline on "+noteDateStamp(n.clock)),
		paragraphBlock("Original: "+article.Link),
	)

	return blocks
}

// createPage POSTs one page, retrying rate-limited and server-side
// failures with exponential backoff up to notionMaxRetries attempts.
func (n *Notion) createPage(ctx context.Context, op string, page notionPage) (string, error) {
	body, err := json.Marshal(page)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = n.retryInterval
	policy.MaxElapsedTime = 0

	var pageID string
	err = backoff.Retry(func() error {
		id, err := n.postPage(ctx, op, body)
		if err == nil {
			pageID = id
			return nil
		}
		if taskErr, ok := drift.AsTaskError(err); ok && taskErr.Kind.Retryable() {
			return err
		}

		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, notionMaxRetries), ctx))
	if err != nil {
		return "", err
	}

	return pageID, nil
}

func (n *Notion) postPage(ctx context.Context, op string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/v1/pages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	n.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", &drift.TaskError{Op: op, Kind: drift.ClassifyTransport(err), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", n.statusError(op, resp)
	}

	var result notionPageResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", op, err)
	}

	return result.ID, nil
}

func (n *Notion) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+n.cfg.Token)
	req.Header.Set("Notion-Version", notionVersion)
}

func (n *Notion) statusError(op string, resp *http.Response) error {
	taskErr := &drift.TaskError{
		Op:   op,
		Kind: drift.ClassifyStatus(resp.StatusCode),
		Code: resp.StatusCode,
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body notionErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		taskErr.Cause = errors.New(body.Message)
	} else {
		taskErr.Cause = errors.New(http.StatusText(resp.StatusCode))
	}

	if taskErr.Kind == drift.FailureKindRateLimited {
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
			taskErr.RetryAfter = time.Duration(seconds) * time.Second
		}
	}

	return taskErr
}
