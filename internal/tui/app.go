// Package tui renders the terminal reader: an article list beside a detail
// pane, driven by coordinator events and keyboard commands.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"driftline/internal/ai"
	"driftline/internal/config"
	"driftline/internal/export"
	"driftline/internal/fetch"
	"driftline/internal/i18n"
	"driftline/internal/store"
	"driftline/internal/tasks"
	"driftline/pkg/drift"
)

// mode selects which screen owns the keyboard.
type mode int

const (
	modeBrowse mode = iota
	modeSearch
	modeMemo
	modeTags
	modeAddFeed
	modeTagList
	modeDigest
	modeHelp
)

// focusArea selects the active pane in browse mode.
type focusArea int

const (
	focusList focusArea = iota
	focusDetail
)

// Detail pane tabs.
const (
	tabOriginal = iota
	tabTranslation
	tabInsight
	tabCount
)

// Read filter cycle positions for the f key.
const (
	filterAll = iota
	filterUnread
	filterBookmarked
	filterCount
)

// Layout constants. Panes draw a one-cell border plus one cell of horizontal
// padding, so frames cost four columns and two rows.
const (
	chromeHeight     = 3
	paneFrameWidth   = 4
	paneFrameHeight  = 2
	detailHeaderRows = 4
	minListWidth     = 28
	minContentHeight = 5
	overlayWidth     = 64
)

// Deps wires the reader to the rest of the application. Config, Store,
// Fetcher, Coordinator, and Events are required; AI and the exporters stay
// nil when not configured.
type Deps struct {
	Config      *config.Config
	ConfigPath  string
	Store       *store.Store
	Fetcher     *fetch.Fetcher
	AI          *ai.Service
	Coordinator *tasks.Coordinator
	Events      <-chan drift.Event
	Notify      NotifyFunc
	Notes       *export.BookmarkNotes
	Obsidian    *export.Obsidian
	Notion      *export.Notion
	Logger      *slog.Logger
}

// Model is the bubbletea model for the whole reader.
type Model struct {
	deps   Deps
	keys   keyMap
	styles styles

	mode  mode
	focus focusArea

	list      list.Model
	articles  []drift.Article
	stats     drift.Stats
	filter    drift.ArticleFilter
	filterPos int

	detailView viewport.Model
	detailTab  int
	detailKey  string
	bodies     *bodyCache

	digestView  viewport.Model
	digest      drift.Digest
	digestCount int

	searchInput textinput.Model
	tagsInput   textinput.Model
	memoInput   textarea.Model
	feedURL     textinput.Model
	feedName    textinput.Model
	feedField   int

	tagRows   []drift.TagCount
	tagCursor int

	help help.Model

	active       map[drift.TaskKey]string
	notice       string
	noticeFailed bool
	lastRefresh  time.Time

	width  int
	height int
}

// New builds the reader model. The UI language must be set before New so
// key hints and notices pick up the right locale.
func New(deps Deps) (Model, error) {
	if deps.Config == nil {
		return Model{}, fmt.Errorf("new tui: nil config")
	}
	if deps.Store == nil {
		return Model{}, fmt.Errorf("new tui: nil store")
	}
	if deps.Fetcher == nil {
		return Model{}, fmt.Errorf("new tui: nil fetcher")
	}
	if deps.Coordinator == nil {
		return Model{}, fmt.Errorf("new tui: nil coordinator")
	}
	if deps.Events == nil {
		return Model{}, fmt.Errorf("new tui: nil event channel")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	st := newStyles(deps.Config.Theme)

	articleList := list.New(nil, articleDelegate{st: st}, 0, 0)
	articleList.SetShowTitle(false)
	articleList.SetShowStatusBar(false)
	articleList.SetShowHelp(false)
	articleList.SetShowPagination(false)
	articleList.SetFilteringEnabled(false)
	articleList.DisableQuitKeybindings()

	search := textinput.New()
	search.Placeholder = i18n.T("search_placeholder")
	search.Prompt = "/ "
	search.CharLimit = 120

	tagsInput := textinput.New()
	tagsInput.Placeholder = i18n.T("tag_placeholder")
	tagsInput.Prompt = "# "
	tagsInput.CharLimit = 200

	memo := textarea.New()
	memo.Placeholder = i18n.T("memo_input_help")
	memo.CharLimit = 2000
	memo.ShowLineNumbers = false

	feedURL := textinput.New()
	feedURL.Placeholder = i18n.T("rss_url_placeholder")
	feedURL.Prompt = "> "
	feedURL.CharLimit = 300

	feedName := textinput.New()
	feedName.Placeholder = i18n.T("feed_name_placeholder")
	feedName.Prompt = "> "
	feedName.CharLimit = 120

	return Model{
		deps:        deps,
		keys:        newKeyMap(),
		styles:      st,
		list:        articleList,
		detailView:  viewport.New(0, 0),
		digestView:  viewport.New(0, 0),
		bodies:      newBodyCache(),
		searchInput: search,
		tagsInput:   tagsInput,
		memoInput:   memo,
		feedURL:     feedURL,
		feedName:    feedName,
		help:        help.New(),
		active:      make(map[drift.TaskKey]string),
	}, nil
}

// Run starts the reader on the alternate screen and blocks until quit or
// context cancellation.
func Run(ctx context.Context, deps Deps) error {
	model, err := New(deps)
	if err != nil {
		return err
	}
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		if ctx.Err() != nil {
			// A canceled context is the signal-driven exit path, not a failure.
			return nil
		}

		return fmt.Errorf("run tui: %w", err)
	}

	return nil
}

// Init loads the list, arms the event pump, and kicks the first refresh. The
// immediate autoRefreshMsg starts the single periodic refresh chain.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadArticles(m.deps.Store, m.filter),
		waitForEvent(m.deps.Events),
		func() tea.Msg { return autoRefreshMsg{} },
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		// Any keypress dismisses the current notice.
		m.notice = ""
		m.noticeFailed = false
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeMemo:
			return m.updateMemo(msg)
		case modeTags:
			return m.updateTags(msg)
		case modeAddFeed:
			return m.updateAddFeed(msg)
		case modeTagList:
			return m.updateTagList(msg)
		case modeDigest:
			return m.updateDigest(msg)
		case modeHelp:
			return m.updateHelp(msg)
		}
		return m.updateBrowse(msg)

	case bridgeEventMsg:
		return m.handleEvent(msg)

	case articlesLoadedMsg:
		m.setArticles(msg.articles, msg.stats)
		return m, nil

	case digestLoadedMsg:
		m.digest = msg.digest
		m.digestCount = msg.count
		if m.mode == modeDigest {
			m.digestView.SetContent(m.renderDigest())
			m.digestView.GotoTop()
		}
		return m, nil

	case tagsLoadedMsg:
		m.tagRows = msg.tags
		m.tagCursor = 0
		return m, nil

	case autoRefreshMsg:
		return m, tea.Batch(m.submitRefresh(), scheduleRefresh(m.deps.Config.RefreshInterval()))

	case mutatedMsg:
		if msg.notice != "" {
			m.setNotice(msg.notice, msg.failed)
		}
		return m, loadArticles(m.deps.Store, m.filter)

	case feedAddedMsg:
		m.setNotice(i18n.T("feed_added", msg.name), false)
		return m, tea.Batch(m.submitRefresh(), loadArticles(m.deps.Store, m.filter))

	case noticeMsg:
		if msg.text != "" {
			m.setNotice(msg.text, msg.failed)
		}
		return m, nil

	case taskSubmitFailedMsg:
		delete(m.active, msg.key)
		m.setNotice(errText(msg.err), true)
		return m, nil

	case loadFailedMsg:
		m.setNotice(errText(msg.err), true)
		return m, nil
	}

	return m, nil
}

// handleEvent applies one bridge event and re-arms the pump. Task events
// drive notices and running markers; change events drive list reloads.
func (m Model) handleEvent(msg bridgeEventMsg) (tea.Model, tea.Cmd) {
	if !msg.ok {
		return m, nil
	}

	event := msg.event
	cmds := []tea.Cmd{waitForEvent(m.deps.Events)}

	switch event.Kind {
	case drift.EventKindTaskDone, drift.EventKindTaskFailed, drift.EventKindTaskCanceled:
		if event.Task != nil {
			cmds = append(cmds, m.finishTask(event)...)
		}
	case drift.EventKindArticlesChanged, drift.EventKindArticleUpdated,
		drift.EventKindBookmarkChanged, drift.EventKindFeedsChanged:
		cmds = append(cmds, loadArticles(m.deps.Store, m.filter))
	}

	return m, tea.Batch(cmds...)
}

// finishTask clears the running marker and reacts to the outcome.
func (m *Model) finishTask(event drift.Event) []tea.Cmd {
	taskKey := event.Task.Key
	delete(m.active, taskKey)

	var cmds []tea.Cmd
	switch event.Kind {
	case drift.EventKindTaskDone:
		switch taskKey.Kind {
		case drift.TaskKindRefresh:
			m.lastRefresh = event.OccurredAt
		case drift.TaskKindBody:
			if article, ok := m.selectedArticle(); ok && article.ID == taskKey.ID {
				m.refreshDetail()
			}
		case drift.TaskKindDigest:
			if m.deps.AI != nil {
				cmds = append(cmds, loadDigest(m.deps.AI))
			}
		}
		if detail := event.Task.Outcome.Detail; detail != "" {
			m.setNotice(detail, false)
		}

	case drift.EventKindTaskFailed:
		failure := event.Task.Outcome.Failure
		m.setNotice(failureNotice(taskKey.Kind, failure), true)
		if failure != nil {
			m.deps.Logger.Warn("task failed", "task", taskKey.String(), "error", failure.Error())
		}
		if taskKey.Kind == drift.TaskKindDigest && m.mode == modeDigest {
			m.mode = modeBrowse
		}
		if taskKey.Kind == drift.TaskKindBody {
			m.refreshDetail()
		}
	}

	return cmds
}

// failureNotice maps a failed task to its localized status line.
func failureNotice(kind drift.TaskKind, failure *drift.TaskError) string {
	reason := string(drift.FailureKindUnknown)
	if failure != nil {
		reason = errText(failure)
	}

	switch kind {
	case drift.TaskKindRefresh, drift.TaskKindBody:
		return i18n.T("fetch_error", reason)
	case drift.TaskKindInsight:
		return i18n.T("insight_failed")
	case drift.TaskKindTranslate, drift.TaskKindTranslateBody:
		return i18n.T("translation_failed")
	case drift.TaskKindDigest:
		return i18n.T("digest_generation_failed", reason)
	case drift.TaskKindExport:
		return i18n.T("export_failed", reason)
	}

	return reason
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.mode = modeHelp
		m.help.ShowAll = true
		return m, nil

	case key.Matches(msg, m.keys.Back):
		switch {
		case m.focus == focusDetail:
			m.focus = focusList
		case m.filter.Query != "":
			m.filter.Query = ""
			m.setNotice(i18n.T("search_cleared"), false)
			return m, loadArticles(m.deps.Store, m.filter)
		case m.filter.Tag != "":
			m.filter.Tag = ""
			m.setNotice(i18n.T("tag_filter_cleared"), false)
			return m, loadArticles(m.deps.Store, m.filter)
		}
		return m, nil

	case key.Matches(msg, m.keys.Open):
		article, ok := m.selectedArticle()
		if !ok {
			return m, nil
		}
		m.focus = focusDetail
		m.detailTab = tabOriginal
		var cmds []tea.Cmd
		if !article.Read {
			cmds = append(cmds, markRead(m.deps.Store, article.ID))
		}
		if _, cached := m.bodies.get(article.ID); !cached && article.Link != "" {
			cmds = append(cmds, m.submitBody(article))
		}
		m.refreshDetail()
		return m, tea.Batch(cmds...)

	case key.Matches(msg, m.keys.Tab):
		if m.focus == focusDetail {
			m.detailTab = (m.detailTab + 1) % tabCount
			m.refreshDetail()
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.submitRefresh()

	case key.Matches(msg, m.keys.Browser):
		if article, ok := m.selectedArticle(); ok && article.Link != "" {
			return m, openBrowser(article.Link)
		}
		return m, nil

	case key.Matches(msg, m.keys.Bookmark):
		if article, ok := m.selectedArticle(); ok {
			return m, toggleBookmark(m.deps.Store, m.deps.Notes, m.deps.Obsidian, m.deps.Config.Obsidian.AutoSave, article.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Memo):
		article, ok := m.selectedArticle()
		if !ok {
			return m, nil
		}
		if !article.Bookmarked() {
			m.setNotice(i18n.T("bookmark_first"), false)
			return m, nil
		}
		m.memoInput.SetValue(article.Bookmark.Memo)
		m.mode = modeMemo
		return m, m.memoInput.Focus()

	case key.Matches(msg, m.keys.Tags):
		article, ok := m.selectedArticle()
		if !ok {
			return m, nil
		}
		if !article.Bookmarked() {
			m.setNotice(i18n.T("bookmark_first_for_tag"), false)
			return m, nil
		}
		m.tagsInput.SetValue(strings.Join(article.Bookmark.Tags, ", "))
		m.mode = modeTags
		return m, m.tagsInput.Focus()

	case key.Matches(msg, m.keys.TagList):
		m.mode = modeTagList
		m.tagRows = nil
		m.tagCursor = 0
		return m, loadTags(m.deps.Store)

	case key.Matches(msg, m.keys.Search):
		m.searchInput.SetValue(m.filter.Query)
		m.mode = modeSearch
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.Filter):
		m.filterPos = (m.filterPos + 1) % filterCount
		m.filter.UnreadOnly = m.filterPos == filterUnread
		m.filter.BookmarkedOnly = m.filterPos == filterBookmarked
		m.setNotice(filterLabel(m.filterPos), false)
		return m, loadArticles(m.deps.Store, m.filter)

	case key.Matches(msg, m.keys.AddFeed):
		m.feedURL.SetValue("")
		m.feedName.SetValue("")
		m.feedName.Blur()
		m.feedField = 0
		m.mode = modeAddFeed
		return m, m.feedURL.Focus()

	case key.Matches(msg, m.keys.Insight):
		article, ok := m.selectedArticle()
		if !ok {
			return m, nil
		}
		if m.deps.AI == nil || !m.deps.Config.Insight.Enabled {
			m.setNotice(i18n.T("ai_not_configured"), true)
			return m, nil
		}
		m.detailTab = tabInsight
		return m, m.submitInsight(article)

	case key.Matches(msg, m.keys.Translate):
		article, ok := m.selectedArticle()
		if !ok {
			return m, nil
		}
		if m.deps.AI == nil {
			m.setNotice(i18n.T("ai_not_configured"), true)
			return m, nil
		}
		m.detailTab = tabTranslation
		if article.Translated() {
			m.setNotice(i18n.T("already_translated"), false)
			m.refreshDetail()
			return m, nil
		}
		return m, m.submitTranslate(article)

	case key.Matches(msg, m.keys.TranslateBody):
		article, ok := m.selectedArticle()
		if !ok {
			return m, nil
		}
		if m.deps.AI == nil {
			m.setNotice(i18n.T("ai_not_configured"), true)
			return m, nil
		}
		m.detailTab = tabTranslation
		return m, m.submitTranslateBody(article)

	case key.Matches(msg, m.keys.Digest):
		if m.deps.AI == nil || !m.deps.Config.Digest.Enabled {
			m.setNotice(i18n.T("ai_not_configured"), true)
			return m, nil
		}
		m.mode = modeDigest
		cmd := m.submitDigest()
		m.digestView.SetContent(m.renderDigest())
		m.digestView.GotoTop()
		return m, cmd

	case key.Matches(msg, m.keys.Export):
		article, ok := m.selectedArticle()
		if !ok {
			return m, nil
		}
		if m.deps.Obsidian == nil && m.deps.Notion == nil {
			m.setNotice(i18n.T("obsidian_not_configured"), true)
			return m, nil
		}
		return m, m.submitExportArticle(article)
	}

	var cmd tea.Cmd
	if m.focus == focusDetail {
		m.detailView, cmd = m.detailView.Update(msg)
		return m, cmd
	}

	before := m.list.Index()
	m.list, cmd = m.list.Update(msg)
	if m.list.Index() != before {
		m.detailTab = tabOriginal
		m.refreshDetail()
	}
	return m, cmd
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.searchInput.Blur()
		return m, nil
	case tea.KeyEnter:
		m.filter.Query = strings.TrimSpace(m.searchInput.Value())
		m.searchInput.Blur()
		m.mode = modeBrowse
		return m, loadArticles(m.deps.Store, m.filter)
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) updateMemo(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.memoInput.Blur()
		return m, nil
	case tea.KeyCtrlS:
		article, ok := m.selectedArticle()
		m.mode = modeBrowse
		m.memoInput.Blur()
		if !ok {
			return m, nil
		}
		return m, saveMemo(m.deps.Store, m.deps.Notes, m.deps.Obsidian, m.deps.Config.Obsidian.AutoSave, article.ID, m.memoInput.Value())
	}

	var cmd tea.Cmd
	m.memoInput, cmd = m.memoInput.Update(msg)
	return m, cmd
}

func (m Model) updateTags(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.tagsInput.Blur()
		return m, nil
	case tea.KeyEnter:
		article, ok := m.selectedArticle()
		m.mode = modeBrowse
		m.tagsInput.Blur()
		if !ok {
			return m, nil
		}
		return m, saveTags(m.deps.Store, m.deps.Notes, m.deps.Obsidian, m.deps.Config.Obsidian.AutoSave, article.ID, parseTags(m.tagsInput.Value()))
	}

	var cmd tea.Cmd
	m.tagsInput, cmd = m.tagsInput.Update(msg)
	return m, cmd
}

func (m Model) updateAddFeed(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.feedURL.Blur()
		m.feedName.Blur()
		return m, nil

	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		return m, m.toggleFeedField()

	case tea.KeyEnter:
		if m.feedField == 0 {
			return m, m.toggleFeedField()
		}
		feedURL := strings.TrimSpace(m.feedURL.Value())
		if feedURL == "" {
			return m, m.toggleFeedField()
		}
		if parsed, err := url.Parse(feedURL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			m.setNotice(i18n.T("invalid_url_scheme"), true)
			return m, nil
		}
		name := strings.TrimSpace(m.feedName.Value())
		m.mode = modeBrowse
		m.feedURL.Blur()
		m.feedName.Blur()
		return m, addFeed(m.deps.Store, m.deps.ConfigPath, feedURL, name)
	}

	var cmd tea.Cmd
	if m.feedField == 0 {
		m.feedURL, cmd = m.feedURL.Update(msg)
	} else {
		m.feedName, cmd = m.feedName.Update(msg)
	}
	return m, cmd
}

func (m Model) updateTagList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case msg.Type == tea.KeyEsc, key.Matches(msg, m.keys.TagList):
		m.mode = modeBrowse
		return m, nil
	case msg.Type == tea.KeyUp, msg.String() == "k":
		if m.tagCursor > 0 {
			m.tagCursor--
		}
		return m, nil
	case msg.Type == tea.KeyDown, msg.String() == "j":
		if m.tagCursor < len(m.tagRows)-1 {
			m.tagCursor++
		}
		return m, nil
	case msg.Type == tea.KeyEnter:
		m.mode = modeBrowse
		if m.tagCursor >= 0 && m.tagCursor < len(m.tagRows) {
			m.filter.Tag = m.tagRows[m.tagCursor].Tag
			m.filterPos = filterAll
			m.filter.UnreadOnly = false
			m.filter.BookmarkedOnly = false
			return m, loadArticles(m.deps.Store, m.filter)
		}
		return m, nil
	}

	return m, nil
}

func (m Model) updateDigest(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.mode = modeBrowse
		return m, nil
	case key.Matches(msg, m.keys.Export):
		if m.digest.Text == "" {
			return m, nil
		}
		if m.deps.Obsidian == nil && m.deps.Notion == nil {
			m.setNotice(i18n.T("obsidian_not_configured"), true)
			return m, nil
		}
		return m, m.submitExportDigest()
	}

	var cmd tea.Cmd
	m.digestView, cmd = m.digestView.Update(msg)
	return m, cmd
}

func (m Model) updateHelp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case msg.Type == tea.KeyEsc, key.Matches(msg, m.keys.Help):
		m.mode = modeBrowse
		m.help.ShowAll = false
		return m, nil
	}

	return m, nil
}

// setArticles swaps the list contents, keeping the selection on the same
// article when it survived the reload.
func (m *Model) setArticles(articles []drift.Article, stats drift.Stats) {
	selectedID := ""
	if article, ok := m.selectedArticle(); ok {
		selectedID = article.ID
	}

	m.articles = articles
	m.stats = stats

	items := make([]list.Item, len(articles))
	index := -1
	for i, article := range articles {
		items[i] = articleItem{article: article}
		if article.ID == selectedID {
			index = i
		}
	}
	m.list.SetItems(items)
	if index >= 0 {
		m.list.Select(index)
	} else if len(articles) > 0 && m.list.Index() >= len(articles) {
		m.list.Select(len(articles) - 1)
	}

	if m.filter.Query != "" && len(articles) == 0 {
		m.setNotice(i18n.T("search_no_results", m.filter.Query), false)
	}

	m.refreshDetail()
}

func (m Model) selectedArticle() (drift.Article, bool) {
	index := m.list.Index()
	if index < 0 || index >= len(m.articles) {
		return drift.Article{}, false
	}

	return m.articles[index], true
}

func (m Model) taskActive(kind drift.TaskKind, id string) bool {
	_, ok := m.active[drift.TaskKey{Kind: kind, ID: id}]
	return ok
}

func (m *Model) setNotice(text string, failed bool) {
	m.notice = text
	m.noticeFailed = failed
}

func (m *Model) toggleFeedField() tea.Cmd {
	if m.feedField == 0 {
		m.feedField = 1
		m.feedURL.Blur()
		return m.feedName.Focus()
	}
	m.feedField = 0
	m.feedName.Blur()
	return m.feedURL.Focus()
}

// refreshDetail rebuilds the detail viewport for the selected article and
// active tab, preserving scroll position while both stay the same.
func (m *Model) refreshDetail() {
	article, ok := m.selectedArticle()
	if !ok {
		m.detailKey = ""
		m.detailView.SetContent(m.styles.hint.Render(i18n.T("select_article")))
		return
	}

	contentKey := fmt.Sprintf("%s/%d", article.ID, m.detailTab)
	m.detailView.SetContent(m.renderTab(article))
	if contentKey != m.detailKey {
		m.detailKey = contentKey
		m.detailView.GotoTop()
	}
}

// submitRefresh queues the feed refresh task and marks it running.
func (m *Model) submitRefresh() tea.Cmd {
	taskKey := drift.TaskKey{Kind: drift.TaskKindRefresh, ID: "all"}
	m.active[taskKey] = i18n.T("refreshing")
	return submitTask(m.deps.Coordinator, taskKey, refreshRun(m.deps.Store, m.deps.Fetcher, m.deps.Notify))
}

func (m *Model) submitBody(article drift.Article) tea.Cmd {
	taskKey := drift.TaskKey{Kind: drift.TaskKindBody, ID: article.ID}
	m.active[taskKey] = i18n.T("loading_body")
	return submitTask(m.deps.Coordinator, taskKey, bodyRun(m.deps.Fetcher, m.bodies, article.ID, article.Link))
}

func (m *Model) submitInsight(article drift.Article) tea.Cmd {
	taskKey := drift.TaskKey{Kind: drift.TaskKindInsight, ID: article.ID}
	m.active[taskKey] = i18n.T("generating_insight")
	cmd := submitTask(m.deps.Coordinator, taskKey, insightRun(m.deps.AI, article.ID, m.deps.Notify))
	m.refreshDetail()
	return cmd
}

func (m *Model) submitTranslate(article drift.Article) tea.Cmd {
	taskKey := drift.TaskKey{Kind: drift.TaskKindTranslate, ID: article.ID}
	m.active[taskKey] = i18n.T("translating")
	cmd := submitTask(m.deps.Coordinator, taskKey, translateRun(m.deps.AI, article.ID, m.deps.Notify))
	m.refreshDetail()
	return cmd
}

func (m *Model) submitTranslateBody(article drift.Article) tea.Cmd {
	taskKey := drift.TaskKey{Kind: drift.TaskKindTranslateBody, ID: article.ID}
	m.active[taskKey] = i18n.T("translating")
	cmd := submitTask(m.deps.Coordinator, taskKey, translateBodyRun(m.deps.AI, m.deps.Fetcher, m.bodies, article.ID, article.Link, m.deps.Notify))
	m.refreshDetail()
	return cmd
}

func (m *Model) submitDigest() tea.Cmd {
	taskKey := drift.TaskKey{Kind: drift.TaskKindDigest, ID: "all"}
	m.active[taskKey] = i18n.T("generating_digest")
	return submitTask(m.deps.Coordinator, taskKey, digestRun(m.deps.AI))
}

func (m *Model) submitExportArticle(article drift.Article) tea.Cmd {
	taskKey := drift.TaskKey{Kind: drift.TaskKindExport, ID: article.ID}
	m.active[taskKey] = i18n.T("save_to_obsidian")
	return submitTask(m.deps.Coordinator, taskKey, exportArticleRun(m.deps.Obsidian, m.deps.Notion, article))
}

func (m *Model) submitExportDigest() tea.Cmd {
	taskKey := drift.TaskKey{Kind: drift.TaskKindExport, ID: "digest"}
	m.active[taskKey] = i18n.T("save_to_obsidian")
	return submitTask(m.deps.Coordinator, taskKey, exportDigestRun(m.deps.Obsidian, m.deps.Notion, m.digest.Text, m.digestCount, m.deps.Config.Digest.Period()))
}

// resize recomputes every pane size from the terminal dimensions.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	contentHeight := m.contentHeight()
	listWidth := m.listWidth()

	m.list.SetSize(listWidth-paneFrameWidth, contentHeight-paneFrameHeight)
	m.detailView.Width = width - listWidth - paneFrameWidth
	m.detailView.Height = contentHeight - paneFrameHeight - detailHeaderRows

	// The digest screen drops the filter bar, so its pane gains one row.
	m.digestView.Width = width - paneFrameWidth
	m.digestView.Height = height - 2 - paneFrameHeight

	m.searchInput.Width = width - 8
	inner := min(width-16, overlayWidth-8)
	m.tagsInput.Width = inner
	m.feedURL.Width = inner
	m.feedName.Width = inner
	m.memoInput.SetWidth(inner)
	m.memoInput.SetHeight(8)
	m.help.Width = width

	m.refreshDetail()
	if m.mode == modeDigest {
		m.digestView.SetContent(m.renderDigest())
	}
}

func (m Model) listWidth() int {
	w := m.width * 2 / 5
	if w < minListWidth {
		w = minListWidth
	}

	return w
}

func (m Model) contentHeight() int {
	h := m.height - chromeHeight
	if h < minContentHeight {
		h = minContentHeight
	}

	return h
}
