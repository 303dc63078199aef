package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"driftline/internal/i18n"
)

// keyMap binds every reader action. Labels come from the active locale, so
// the map is built after the language is set.
type keyMap struct {
	Up            key.Binding
	Down          key.Binding
	Open          key.Binding
	Tab           key.Binding
	Back          key.Binding
	Refresh       key.Binding
	Search        key.Binding
	Filter        key.Binding
	AddFeed       key.Binding
	Browser       key.Binding
	Bookmark      key.Binding
	Memo          key.Binding
	Tags          key.Binding
	TagList       key.Binding
	Insight       key.Binding
	Translate     key.Binding
	TranslateBody key.Binding
	Digest        key.Binding
	Export        key.Binding
	Help          key.Binding
	Quit          key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:            key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", i18n.T("nav_move"))),
		Down:          key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", i18n.T("nav_move"))),
		Open:          key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", i18n.T("read"))),
		Tab:           key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", i18n.T("translation_tab"))),
		Back:          key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", i18n.T("close"))),
		Refresh:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", i18n.T("refresh"))),
		Search:        key.NewBinding(key.WithKeys("/"), key.WithHelp("/", i18n.T("search"))),
		Filter:        key.NewBinding(key.WithKeys("f"), key.WithHelp("f", i18n.T("filter"))),
		AddFeed:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", i18n.T("add_feed"))),
		Browser:       key.NewBinding(key.WithKeys("o"), key.WithHelp("o", i18n.T("browser"))),
		Bookmark:      key.NewBinding(key.WithKeys("b"), key.WithHelp("b", i18n.T("bookmark"))),
		Memo:          key.NewBinding(key.WithKeys("m"), key.WithHelp("m", i18n.T("memo_label"))),
		Tags:          key.NewBinding(key.WithKeys("c"), key.WithHelp("c", i18n.T("tags_label"))),
		TagList:       key.NewBinding(key.WithKeys("T"), key.WithHelp("T", i18n.T("tag_list_title"))),
		Insight:       key.NewBinding(key.WithKeys("i"), key.WithHelp("i", i18n.T("insight"))),
		Translate:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", i18n.T("translate"))),
		TranslateBody: key.NewBinding(key.WithKeys("B"), key.WithHelp("B", i18n.T("translate_body_label"))),
		Digest:        key.NewBinding(key.WithKeys("d"), key.WithHelp("d", i18n.T("digest_label"))),
		Export:        key.NewBinding(key.WithKeys("S"), key.WithHelp("S", i18n.T("save_to_obsidian"))),
		Help:          key.NewBinding(key.WithKeys("?"), key.WithHelp("?", i18n.T("help_label"))),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", i18n.T("quit"))),
	}
}

// ShortHelp lists the bindings shown in the status bar.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Bookmark, k.Refresh, k.Search, k.Help, k.Quit}
}

// FullHelp lists the binding columns for the help screen.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Tab, k.Back},
		{k.Refresh, k.Search, k.Filter, k.AddFeed, k.Browser},
		{k.Bookmark, k.Memo, k.Tags, k.TagList},
		{k.Insight, k.Translate, k.TranslateBody, k.Digest},
		{k.Export, k.Help, k.Quit},
	}
}
