package tui

import "github.com/charmbracelet/lipgloss"

// palette holds the raw colors for one theme.
type palette struct {
	text      lipgloss.Color
	dim       lipgloss.Color
	accent    lipgloss.Color
	green     lipgloss.Color
	yellow    lipgloss.Color
	red       lipgloss.Color
	border    lipgloss.Color
	selection lipgloss.Color
}

func darkPalette() palette {
	return palette{
		text:      lipgloss.Color("#CDD6F4"),
		dim:       lipgloss.Color("#6C7086"),
		accent:    lipgloss.Color("#89B4FA"),
		green:     lipgloss.Color("#A6E3A1"),
		yellow:    lipgloss.Color("#F9E2AF"),
		red:       lipgloss.Color("#F38BA8"),
		border:    lipgloss.Color("#45475A"),
		selection: lipgloss.Color("#B4BEFE"),
	}
}

func lightPalette() palette {
	return palette{
		text:      lipgloss.Color("#4C4F69"),
		dim:       lipgloss.Color("#8C8FA1"),
		accent:    lipgloss.Color("#1E66F5"),
		green:     lipgloss.Color("#40A02B"),
		yellow:    lipgloss.Color("#DF8E1D"),
		red:       lipgloss.Color("#D20F39"),
		border:    lipgloss.Color("#BCC0CC"),
		selection: lipgloss.Color("#7287FD"),
	}
}

// styles carries the prebuilt lipgloss styles for every screen region.
type styles struct {
	appTitle     lipgloss.Style
	headerInfo   lipgloss.Style
	filterBar    lipgloss.Style
	filterActive lipgloss.Style

	paneActive   lipgloss.Style
	paneInactive lipgloss.Style

	itemTitle    lipgloss.Style
	itemTitleSel lipgloss.Style
	itemMeta     lipgloss.Style
	itemMetaSel  lipgloss.Style
	unreadMark   lipgloss.Style

	detailTitle lipgloss.Style
	detailMeta  lipgloss.Style
	tabActive   lipgloss.Style
	tabInactive lipgloss.Style
	hint        lipgloss.Style

	statusInfo   lipgloss.Style
	statusNotice lipgloss.Style
	statusError  lipgloss.Style
	statusTask   lipgloss.Style

	card      lipgloss.Style
	cardTitle lipgloss.Style
	cursorRow lipgloss.Style
}

// newStyles builds the style set for the configured theme. Unknown theme
// names fall back to dark.
func newStyles(theme string) styles {
	p := darkPalette()
	if theme == "light" {
		p = lightPalette()
	}

	return styles{
		appTitle:     lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		headerInfo:   lipgloss.NewStyle().Foreground(p.dim),
		filterBar:    lipgloss.NewStyle().Foreground(p.dim),
		filterActive: lipgloss.NewStyle().Foreground(p.yellow),

		paneActive:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.accent).Padding(0, 1),
		paneInactive: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.border).Padding(0, 1),

		itemTitle:    lipgloss.NewStyle().Foreground(p.text),
		itemTitleSel: lipgloss.NewStyle().Bold(true).Foreground(p.selection),
		itemMeta:     lipgloss.NewStyle().Foreground(p.dim),
		itemMetaSel:  lipgloss.NewStyle().Foreground(p.selection),
		unreadMark:   lipgloss.NewStyle().Foreground(p.green),

		detailTitle: lipgloss.NewStyle().Bold(true).Foreground(p.text),
		detailMeta:  lipgloss.NewStyle().Foreground(p.dim),
		tabActive:   lipgloss.NewStyle().Bold(true).Foreground(p.accent).Underline(true),
		tabInactive: lipgloss.NewStyle().Foreground(p.dim),
		hint:        lipgloss.NewStyle().Foreground(p.dim).Italic(true),

		statusInfo:   lipgloss.NewStyle().Foreground(p.dim),
		statusNotice: lipgloss.NewStyle().Foreground(p.green),
		statusError:  lipgloss.NewStyle().Foreground(p.red),
		statusTask:   lipgloss.NewStyle().Foreground(p.yellow),

		card:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.accent).Padding(1, 2),
		cardTitle: lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		cursorRow: lipgloss.NewStyle().Bold(true).Foreground(p.selection),
	}
}

// paneFor picks the pane frame by focus state.
func (s styles) paneFor(active bool) lipgloss.Style {
	if active {
		return s.paneActive
	}

	return s.paneInactive
}
