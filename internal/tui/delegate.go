package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"driftline/pkg/drift"
)

// articleItem adapts one article to the list widget.
type articleItem struct {
	article drift.Article
}

func (i articleItem) FilterValue() string {
	return i.article.Title
}

// articleDelegate renders two-line rows: unread marker and title first, then
// feed name, age, and bookmark annotations.
type articleDelegate struct {
	st styles
}

func (d articleDelegate) Height() int  { return 2 }
func (d articleDelegate) Spacing() int { return 1 }

func (d articleDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d articleDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(articleItem)
	if !ok {
		return
	}

	width := m.Width()
	if width <= 4 {
		return
	}

	article := it.article
	marker := "  "
	if !article.Read {
		marker = d.st.unreadMark.Render("●") + " "
	}

	title := truncate(displayTitle(article), width-2)
	meta := truncate(metaLine(article, time.Now()), width-2)

	if index == m.Index() {
		title = d.st.itemTitleSel.Render(title)
		meta = d.st.itemMetaSel.Render(meta)
	} else {
		title = d.st.itemTitle.Render(title)
		meta = d.st.itemMeta.Render(meta)
	}

	fmt.Fprintf(w, "%s%s\n  %s", marker, title, meta)
}

// metaLine builds the second row: feed, age, and bookmark annotations.
func metaLine(article drift.Article, now time.Time) string {
	parts := make([]string, 0, 3)
	if article.FeedName != "" {
		parts = append(parts, article.FeedName)
	}
	if at := displayTime(article); !at.IsZero() {
		parts = append(parts, relativeTime(now, at))
	}
	if article.Bookmarked() {
		mark := "★"
		if article.Bookmark.Memo != "" {
			mark += " ✎"
		}
		if len(article.Bookmark.Tags) > 0 {
			mark += " #" + strings.Join(article.Bookmark.Tags, " #")
		}
		parts = append(parts, mark)
	}

	return strings.Join(parts, " · ")
}
