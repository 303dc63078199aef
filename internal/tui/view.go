package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"driftline/internal/i18n"
	"driftline/pkg/drift"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	switch m.mode {
	case modeHelp:
		return m.viewHelp()
	case modeDigest:
		return m.viewDigest()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewHeader(),
		m.viewFilterBar(),
		m.viewContent(),
		m.viewStatus(),
	)
}

func (m Model) viewHeader() string {
	left := m.styles.appTitle.Render("driftline")
	right := ""
	if !m.lastRefresh.IsZero() {
		right = m.styles.headerInfo.Render(i18n.T("last_refresh", relativeTime(time.Now(), m.lastRefresh)))
	}

	return barLine(m.width, left, right)
}

// viewFilterBar shows the active filters, or the search input while typing.
func (m Model) viewFilterBar() string {
	if m.mode == modeSearch {
		return " " + m.searchInput.View()
	}

	segments := []string{m.styles.filterBar.Render(filterLabel(m.filterPos))}
	if m.filter.Tag != "" {
		segments = append(segments, m.styles.filterActive.Render(i18n.T("tag_filter_active", m.filter.Tag)))
	}
	if m.filter.Query != "" {
		segments = append(segments, m.styles.filterActive.Render(i18n.T("searching", m.filter.Query)))
	}

	return " " + strings.Join(segments, "  ")
}

// filterLabel names one read filter position.
func filterLabel(pos int) string {
	switch pos {
	case filterUnread:
		return i18n.T("unread_only")
	case filterBookmarked:
		return i18n.T("bookmarks_only")
	}

	return i18n.T("all_articles")
}

func (m Model) viewContent() string {
	switch m.mode {
	case modeMemo:
		return m.overlay(i18n.T("memo_input_help"), m.memoInput.View(),
			"ctrl+s: "+i18n.T("memo_label")+"  esc: "+i18n.T("cancel"))
	case modeTags:
		return m.overlay(i18n.T("tag_edit_help"), m.tagsInput.View(),
			"enter: "+i18n.T("tags_label")+"  esc: "+i18n.T("cancel"))
	case modeAddFeed:
		form := lipgloss.JoinVertical(lipgloss.Left, m.feedURL.View(), "", m.feedName.View())
		return m.overlay(i18n.T("add_feed_help"), form,
			"enter: "+i18n.T("add_feed")+"  esc: "+i18n.T("cancel"))
	case modeTagList:
		return m.overlay(i18n.T("tag_list_title"), m.renderTagRows(),
			"enter: "+i18n.T("filter")+"  esc: "+i18n.T("close"))
	}

	contentHeight := m.contentHeight()
	listWidth := m.listWidth()

	listPane := m.styles.paneFor(m.focus == focusList).
		Width(listWidth - 2).
		Height(contentHeight - 2).
		Render(m.list.View())
	detailPane := m.styles.paneFor(m.focus == focusDetail).
		Width(m.width - listWidth - 2).
		Height(contentHeight - 2).
		Render(m.renderDetailPane())

	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)
}

// renderDetailPane stacks the article header, tab bar, and scrolling body.
func (m Model) renderDetailPane() string {
	article, ok := m.selectedArticle()
	if !ok {
		return m.styles.hint.Render(i18n.T("select_article"))
	}

	width := m.detailView.Width
	title := m.styles.detailTitle.Render(truncate(displayTitle(article), width))
	meta := m.styles.detailMeta.Render(truncate(detailMeta(article), width))

	return lipgloss.JoinVertical(lipgloss.Left, title, meta, m.renderTabBar(), "", m.detailView.View())
}

// detailMeta lists feed, timestamp, and bookmark annotations on one line.
func detailMeta(article drift.Article) string {
	parts := make([]string, 0, 3)
	if article.FeedName != "" {
		parts = append(parts, article.FeedName)
	}
	if at := displayTime(article); !at.IsZero() {
		parts = append(parts, at.Format("2006-01-02 15:04"))
	}
	if article.Bookmarked() {
		mark := "★"
		if len(article.Bookmark.Tags) > 0 {
			mark += " #" + strings.Join(article.Bookmark.Tags, " #")
		}
		parts = append(parts, mark)
	}

	return strings.Join(parts, " · ")
}

func (m Model) renderTabBar() string {
	labels := []string{i18n.T("original"), i18n.T("translation_tab"), i18n.T("insight_tab")}
	rendered := make([]string, len(labels))
	for i, label := range labels {
		if i == m.detailTab {
			rendered[i] = m.styles.tabActive.Render(label)
		} else {
			rendered[i] = m.styles.tabInactive.Render(label)
		}
	}

	return strings.Join(rendered, "  ")
}

// renderTab builds the viewport text for the active detail tab.
func (m Model) renderTab(article drift.Article) string {
	width := m.detailView.Width
	if width <= 0 {
		width = 60
	}
	wrap := lipgloss.NewStyle().Width(width)

	switch m.detailTab {
	case tabTranslation:
		active := m.taskActive(drift.TaskKindTranslate, article.ID) ||
			m.taskActive(drift.TaskKindTranslateBody, article.ID)
		sections := make([]string, 0, 4)
		if article.TranslatedTitle != "" {
			sections = append(sections, wrap.Bold(true).Render(article.TranslatedTitle))
		}
		switch {
		case article.TranslatedBody != "":
			sections = append(sections, wrap.Render(article.TranslatedBody))
		case article.TranslatedDescription != "":
			sections = append(sections, wrap.Render(article.TranslatedDescription))
			if !active {
				sections = append(sections, m.styles.hint.Render("[B] "+i18n.T("translate_body_label")))
			}
		}
		if active {
			sections = append(sections, m.styles.hint.Render(i18n.T("translating")))
		}
		if len(sections) == 0 {
			return m.styles.hint.Render(i18n.T("press_t_to_translate"))
		}
		return strings.Join(sections, "\n\n")

	case tabInsight:
		if article.Insight != "" {
			return wrap.Render(article.Insight)
		}
		if m.taskActive(drift.TaskKindInsight, article.ID) {
			return m.styles.hint.Render(i18n.T("generating_insight"))
		}
		return m.styles.hint.Render(i18n.T("press_i_for_insight"))
	}

	sections := make([]string, 0, 3)
	if body, ok := m.bodies.get(article.ID); ok {
		sections = append(sections, wrap.Render(body))
	} else {
		if article.Description != "" {
			sections = append(sections, wrap.Render(article.Description))
		}
		if m.taskActive(drift.TaskKindBody, article.ID) {
			sections = append(sections, m.styles.hint.Render(i18n.T("loading_body")))
		}
	}
	if article.Link != "" {
		sections = append(sections, m.styles.hint.Render(article.Link))
	}
	if memo := articleMemo(article); memo != "" {
		sections = append(sections, m.styles.detailMeta.Render(i18n.T("memo_label")+": "+memo))
	}
	if len(sections) == 0 {
		return m.styles.hint.Render(i18n.T("extract_error"))
	}

	return strings.Join(sections, "\n\n")
}

// viewStatus shows counters, outcome notices, and the running task label.
func (m Model) viewStatus() string {
	left := m.styles.statusInfo.Render(m.statusCounts())
	if m.notice != "" {
		style := m.styles.statusNotice
		if m.noticeFailed {
			style = m.styles.statusError
		}
		left = style.Render(truncate(m.notice, m.width*2/3))
	}

	right := m.styles.statusInfo.Render("? " + i18n.T("help_label"))
	if label := m.runningLabel(); label != "" {
		right = m.styles.statusTask.Render(label)
	}

	return barLine(m.width, left, right)
}

// statusCounts renders total, unread, and bookmarked counters.
func (m Model) statusCounts() string {
	return fmt.Sprintf("%s · ● %d · ★ %d",
		i18n.T("article_count", m.stats.Total), m.stats.Unread, m.stats.Bookmarked)
}

// runningLabel picks one active task label for the status bar.
func (m Model) runningLabel() string {
	for _, label := range m.active {
		return label
	}

	return ""
}

// viewDigest renders the full screen digest reader.
func (m Model) viewDigest() string {
	title := m.styles.cardTitle.Render(i18n.T("digest_title"))
	info := ""
	if m.digestCount > 0 {
		info = m.styles.headerInfo.Render(i18n.T("article_count", m.digestCount))
	}

	body := m.styles.paneActive.
		Width(m.width - 2).
		Height(m.height - 4).
		Render(m.digestView.View())

	return lipgloss.JoinVertical(lipgloss.Left, barLine(m.width, title, info), body, m.viewStatus())
}

// renderDigest formats the digest text for its viewport.
func (m Model) renderDigest() string {
	width := m.digestView.Width
	if width <= 0 {
		width = 72
	}

	if m.digest.Text == "" {
		if m.taskActive(drift.TaskKindDigest, "all") {
			return m.styles.hint.Render(i18n.T("generating_digest"))
		}
		return m.styles.hint.Render(i18n.T("no_recent_articles_for_digest"))
	}

	return lipgloss.NewStyle().Width(width).Render(m.digest.Text)
}

// viewHelp renders the full key binding reference.
func (m Model) viewHelp() string {
	card := m.styles.card.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.styles.cardTitle.Render(i18n.T("help_label")),
		"",
		m.help.View(m.keys),
	))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, card)
}

// overlay centers one input card over the content area.
func (m Model) overlay(title, body, hints string) string {
	card := m.styles.card.Width(min(m.width-6, overlayWidth)).Render(lipgloss.JoinVertical(lipgloss.Left,
		m.styles.cardTitle.Render(title),
		"",
		body,
		"",
		m.styles.hint.Render(hints),
	))

	return lipgloss.Place(m.width, m.contentHeight(), lipgloss.Center, lipgloss.Center, card)
}

// renderTagRows lists every tag with its bookmark count.
func (m Model) renderTagRows() string {
	if len(m.tagRows) == 0 {
		return m.styles.hint.Render(i18n.T("no_tags"))
	}

	rows := make([]string, len(m.tagRows))
	for i, row := range m.tagRows {
		line := fmt.Sprintf("#%s  %s", row.Tag, i18n.T("tag_count", row.Count))
		if i == m.tagCursor {
			rows[i] = m.styles.cursorRow.Render("> " + line)
		} else {
			rows[i] = "  " + line
		}
	}

	return strings.Join(rows, "\n")
}

// barLine lays out left and right segments on one padded row.
func barLine(width int, left, right string) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}

	return " " + left + strings.Repeat(" ", gap) + right + " "
}

// displayTitle prefers the translated title and falls back through the
// original to a placeholder.
func displayTitle(article drift.Article) string {
	if title := strings.TrimSpace(article.TranslatedTitle); title != "" {
		return title
	}
	if title := strings.TrimSpace(article.Title); title != "" {
		return title
	}

	return i18n.T("no_title")
}

// displayTime picks the publish timestamp, falling back to fetch time.
func displayTime(article drift.Article) time.Time {
	if !article.PublishedAt.IsZero() {
		return article.PublishedAt
	}

	return article.FetchedAt
}

func articleMemo(article drift.Article) string {
	if article.Bookmark == nil {
		return ""
	}

	return article.Bookmark.Memo
}

// relativeTime formats an age like "12m ago", switching to a date after a
// week.
func relativeTime(now, at time.Time) string {
	if at.IsZero() {
		return ""
	}

	age := now.Sub(at)
	switch {
	case age < time.Minute:
		return i18n.T("just_now")
	case age < time.Hour:
		return i18n.T("minutes_ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return i18n.T("hours_ago", int(age.Hours()))
	case age < 7*24*time.Hour:
		return i18n.T("days_ago", int(age.Hours()/24))
	}

	return at.Format("2006-01-02")
}

// truncate shortens s to max runes, appending an ellipsis. Styling happens
// after truncation, so s must be plain text.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}

	return string(runes[:max-1]) + "…"
}
