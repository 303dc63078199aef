package tui

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"driftline/internal/ai"
	"driftline/internal/config"
	"driftline/internal/export"
	"driftline/internal/fetch"
	"driftline/internal/i18n"
	"driftline/internal/store"
	"driftline/internal/tasks"
	"driftline/pkg/drift"
)

// storeTimeout bounds synchronous store reads and writes issued from the UI.
const storeTimeout = 5 * time.Second

// NotifyFunc publishes one event onto the coordinator bridge.
type NotifyFunc func(drift.Event) error

// bodyCache shares fetched article bodies between task goroutines and the
// model. Bodies live for the session only and are never persisted.
type bodyCache struct {
	mu    sync.Mutex
	texts map[string]string
}

func newBodyCache() *bodyCache {
	return &bodyCache{texts: make(map[string]string)}
}

func (c *bodyCache) get(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	text, ok := c.texts[id]
	return text, ok
}

func (c *bodyCache) set(id, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.texts[id] = text
}

// waitForEvent blocks on the bridge channel and converts one event into a
// message. The model re-arms it after every delivery.
func waitForEvent(events <-chan drift.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		return bridgeEventMsg{event: event, ok: ok}
	}
}

// scheduleRefresh arms the next tick of the periodic feed refresh.
func scheduleRefresh(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return autoRefreshMsg{}
	})
}

// loadArticles reads the filtered article list together with the counters
// shown in the status bar.
func loadArticles(st *store.Store, filter drift.ArticleFilter) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		articles, err := st.ListArticles(ctx, filter)
		if err != nil {
			return loadFailedMsg{err: err}
		}
		stats, err := st.Stats(ctx)
		if err != nil {
			return loadFailedMsg{err: err}
		}

		return articlesLoadedMsg{articles: articles, stats: stats}
	}
}

func loadTags(st *store.Store) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		tags, err := st.ListTags(ctx)
		if err != nil {
			return loadFailedMsg{err: err}
		}

		return tagsLoadedMsg{tags: tags}
	}
}

// loadDigest reads the current digest artifact. It runs after the digest
// task reports done, so the read is served from the cache and never reaches
// the provider.
func loadDigest(svc *ai.Service) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		digest, count, err := svc.Digest(ctx)
		if err != nil {
			return noticeMsg{text: i18n.T("digest_generation_failed", errText(err)), failed: true}
		}

		return digestLoadedMsg{digest: digest, count: count}
	}
}

func markRead(st *store.Store, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		if err := st.SetRead(ctx, id, true); err != nil {
			return mutatedMsg{notice: errText(err), failed: true}
		}

		return mutatedMsg{}
	}
}

// toggleBookmark flips the bookmark and keeps the note exports in step.
func toggleBookmark(st *store.Store, notes *export.BookmarkNotes, obs *export.Obsidian, autoSave bool, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		bookmarked, err := st.ToggleBookmark(ctx, id)
		if err != nil {
			return mutatedMsg{notice: errText(err), failed: true}
		}
		article, found, err := st.GetArticle(ctx, id)
		if err != nil || !found {
			return mutatedMsg{}
		}

		title := truncate(displayTitle(article), 40)
		if !bookmarked {
			if notes != nil {
				_ = notes.Remove(article)
			}
			if obs != nil && autoSave {
				_ = obs.RemoveArticle(article)
			}
			return mutatedMsg{notice: i18n.T("bookmark_removed", title)}
		}

		if err := exportBookmarkFiles(article, notes, obs, autoSave); err != nil {
			return mutatedMsg{notice: i18n.T("export_failed", errText(err)), failed: true}
		}

		return mutatedMsg{notice: i18n.T("bookmark_added", title)}
	}
}

func saveMemo(st *store.Store, notes *export.BookmarkNotes, obs *export.Obsidian, autoSave bool, id, memo string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		if err := st.SetMemo(ctx, id, memo); err != nil {
			return mutatedMsg{notice: errText(err), failed: true}
		}
		if article, found, err := st.GetArticle(ctx, id); err == nil && found {
			if err := exportBookmarkFiles(article, notes, obs, autoSave); err != nil {
				return mutatedMsg{notice: i18n.T("export_failed", errText(err)), failed: true}
			}
		}

		return mutatedMsg{notice: i18n.T("memo_saved")}
	}
}

func saveTags(st *store.Store, notes *export.BookmarkNotes, obs *export.Obsidian, autoSave bool, id string, tags []string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		if err := st.SetTags(ctx, id, tags); err != nil {
			return mutatedMsg{notice: errText(err), failed: true}
		}
		if article, found, err := st.GetArticle(ctx, id); err == nil && found {
			if err := exportBookmarkFiles(article, notes, obs, autoSave); err != nil {
				return mutatedMsg{notice: i18n.T("export_failed", errText(err)), failed: true}
			}
		}

		return mutatedMsg{notice: i18n.T("tag_saved")}
	}
}

// exportBookmarkFiles rewrites the local note and the Obsidian note for a
// bookmarked article.
func exportBookmarkFiles(article drift.Article, notes *export.BookmarkNotes, obs *export.Obsidian, autoSave bool) error {
	var memo string
	var tags []string
	if article.Bookmark != nil {
		memo = article.Bookmark.Memo
		tags = article.Bookmark.Tags
	}

	if notes != nil {
		if _, err := notes.Save(article, memo, tags); err != nil {
			return err
		}
	}
	if obs != nil && autoSave {
		if _, err := obs.SaveArticle(article, memo, tags); err != nil {
			return err
		}
	}

	return nil
}

// addFeed appends the feed to the config file and registers it in the store.
func addFeed(st *store.Store, configPath, feedURL, name string) tea.Cmd {
	return func() tea.Msg {
		if name == "" {
			name = feedURL
		}
		added, err := config.AddFeed(configPath, config.FeedConfig{Name: name, URL: feedURL})
		if err != nil {
			return mutatedMsg{notice: errText(err), failed: true}
		}

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if _, err := st.UpsertFeed(ctx, feedURL, name); err != nil {
			return mutatedMsg{notice: errText(err), failed: true}
		}
		if !added {
			return mutatedMsg{}
		}

		return feedAddedMsg{name: name}
	}
}

// submitTask hands one task to the coordinator. Duplicate submissions attach
// to the running task and need no further handling here.
func submitTask(coord *tasks.Coordinator, key drift.TaskKey, run tasks.RunFunc) tea.Cmd {
	return func() tea.Msg {
		if _, _, err := coord.Submit(context.Background(), tasks.TaskSpec{Key: key, Run: run}); err != nil {
			return taskSubmitFailedMsg{key: key, err: err}
		}

		return nil
	}
}

// refreshRun fetches every feed and announces changed articles on the bridge.
func refreshRun(st *store.Store, fetcher *fetch.Fetcher, notify NotifyFunc) tasks.RunFunc {
	return func(ctx context.Context) (string, error) {
		feeds, err := st.ListFeeds(ctx)
		if err != nil {
			return "", err
		}
		summary, err := fetcher.RefreshAll(ctx, feeds)
		if err != nil {
			return "", err
		}

		if summary.Created > 0 || summary.Updated > 0 {
			publishChange(notify, drift.EventKindArticlesChanged, drift.ChangeNotice{
				Created: summary.Created,
				Updated: summary.Updated,
			})
		}
		if summary.Created > 0 {
			return i18n.T("new_articles_found", summary.Created), nil
		}

		return i18n.T("no_new_articles"), nil
	}
}

// bodyRun fetches the readable article body into the session cache.
func bodyRun(fetcher *fetch.Fetcher, bodies *bodyCache, id, link string) tasks.RunFunc {
	return func(ctx context.Context) (string, error) {
		if _, ok := bodies.get(id); ok {
			return "", nil
		}
		body, err := fetcher.FetchBody(ctx, link)
		if err != nil {
			return "", err
		}
		bodies.set(id, body)

		return "", nil
	}
}

func insightRun(svc *ai.Service, id string, notify NotifyFunc) tasks.RunFunc {
	return func(ctx context.Context) (string, error) {
		if _, err := svc.Insight(ctx, id); err != nil {
			return "", err
		}
		publishChange(notify, drift.EventKindArticleUpdated, drift.ChangeNotice{ArticleID: id, Updated: 1})

		return "", nil
	}
}

func translateRun(svc *ai.Service, id string, notify NotifyFunc) tasks.RunFunc {
	return func(ctx context.Context) (string, error) {
		translation, err := svc.TranslateMeta(ctx, id)
		if err != nil {
			return "", err
		}
		publishChange(notify, drift.EventKindArticleUpdated, drift.ChangeNotice{ArticleID: id, Updated: 1})

		return i18n.T("translated_preview", truncate(translation.Title, 40)), nil
	}
}

// translateBodyRun fetches the body first when the session cache has none,
// then persists the translation.
func translateBodyRun(svc *ai.Service, fetcher *fetch.Fetcher, bodies *bodyCache, id, link string, notify NotifyFunc) tasks.RunFunc {
	return func(ctx context.Context) (string, error) {
		body, ok := bodies.get(id)
		if !ok {
			fetched, err := fetcher.FetchBody(ctx, link)
			if err != nil {
				return "", err
			}
			bodies.set(id, fetched)
			body = fetched
		}

		if _, err := svc.TranslateBody(ctx, id, body); err != nil {
			return "", err
		}
		publishChange(notify, drift.EventKindArticleUpdated, drift.ChangeNotice{ArticleID: id, Updated: 1})

		return "", nil
	}
}

func digestRun(svc *ai.Service) tasks.RunFunc {
	return func(ctx context.Context) (string, error) {
		if _, _, err := svc.Digest(ctx); err != nil {
			return "", err
		}

		return "", nil
	}
}

// exportArticleRun pushes one article to every configured destination.
func exportArticleRun(obs *export.Obsidian, notion *export.Notion, article drift.Article) tasks.RunFunc {
	return func(ctx context.Context) (string, error) {
		var memo string
		var tags []string
		if article.Bookmark != nil {
			memo = article.Bookmark.Memo
			tags = article.Bookmark.Tags
		}

		parts := make([]string, 0, 2)
		if obs != nil {
			path, err := obs.SaveArticle(article, memo, tags)
			if err != nil {
				return "", err
			}
			parts = append(parts, i18n.T("obsidian_saved", filepath.Base(path)))
		}
		if notion != nil {
			if _, err := notion.SaveArticle(ctx, article, memo, tags); err != nil {
				return "", err
			}
			parts = append(parts, i18n.T("notion_saved", truncate(displayTitle(article), 40)))
		}

		return strings.Join(parts, " · "), nil
	}
}

func exportDigestRun(obs *export.Obsidian, notion *export.Notion, text string, count, periodDays int) tasks.RunFunc {
	return func(ctx context.Context) (string, error) {
		parts := make([]string, 0, 2)
		if obs != nil {
			path, err := obs.SaveDigest(text, count, periodDays)
			if err != nil {
				return "", err
			}
			parts = append(parts, i18n.T("obsidian_saved", filepath.Base(path)))
		}
		if notion != nil {
			if _, err := notion.SaveDigest(ctx, text, count, periodDays); err != nil {
				return "", err
			}
			parts = append(parts, i18n.T("notion_saved", i18n.T("digest_title")))
		}

		return strings.Join(parts, " · "), nil
	}
}

// publishChange emits one change event; delivery failures only mean the UI
// is shutting down.
func publishChange(notify NotifyFunc, kind drift.EventKind, change drift.ChangeNotice) {
	if notify == nil {
		return
	}
	_ = notify(drift.Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
		Change:     &change,
	})
}

// errText unwraps task errors to their root cause for status notices.
func errText(err error) string {
	if err == nil {
		return ""
	}
	if taskErr, ok := drift.AsTaskError(err); ok && taskErr.Cause != nil {
		return taskErr.Cause.Error()
	}

	return err.Error()
}

// parseTags splits comma separated input into trimmed, de-duplicated tags.
func parseTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "#"))
		if tag == "" {
			continue
		}
		lowered := strings.ToLower(tag)
		if _, dup := seen[lowered]; dup {
			continue
		}
		seen[lowered] = struct{}{}
		tags = append(tags, tag)
	}

	return tags
}
