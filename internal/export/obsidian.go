package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"driftline/pkg/drift"
)

const (
	obsidianDefaultFolder = "driftline"
	obsidianDefaultPrefix = "driftline"
	createdBy             = "driftline"
	noSummaryText         = "*(No summary available)*"
	noNotesText           = "*(No notes yet)*"
	notesHeading          = "## My Notes"
)

// ObsidianConfig locates the vault and shapes the notes written into it.
type ObsidianConfig struct {
	// VaultPath is the vault root. It must already exist; only folders
	// inside it are created.
	VaultPath string
	// Folder is the subfolder receiving notes, default "driftline".
	Folder string
	// TagsPrefix prefixes every frontmatter tag, default "driftline".
	TagsPrefix string
	// IncludeInsight adds an AI Insight section when the article has one.
	IncludeInsight bool
	// IncludeTranslation adds a Translation section when any translated
	// field is present.
	IncludeTranslation bool
}

// Obsidian writes articles and digests as notes into an Obsidian vault,
// one feed subfolder per feed.
type Obsidian struct {
	cfg   ObsidianConfig
	clock func() time.Time
}

// ObsidianOption adjusts construction.
type ObsidianOption func(*Obsidian)

// WithObsidianClock replaces the wall clock used for footer dates.
func WithObsidianClock(clock func() time.Time) ObsidianOption {
	return func(o *Obsidian) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewObsidian validates cfg and returns a vault writer.
func NewObsidian(cfg ObsidianConfig, options ...ObsidianOption) (*Obsidian, error) {
	if strings.TrimSpace(cfg.VaultPath) == "" {
		return nil, errors.New("obsidian: vault path is required")
	}
	if strings.TrimSpace(cfg.Folder) == "" {
		cfg.Folder = obsidianDefaultFolder
	}
	if strings.TrimSpace(cfg.TagsPrefix) == "" {
		cfg.TagsPrefix = obsidianDefaultPrefix
	}

	o := &Obsidian{cfg: cfg, clock: time.Now}
	for _, option := range options {
		option(o)
	}

	return o, nil
}

type noteFrontmatter struct {
	Title     string   `yaml:"title"`
	Source    string   `yaml:"source"`
	Feed      string   `yaml:"feed"`
	Date      string   `yaml:"date"`
	Tags      []string `yaml:"tags"`
	CreatedBy string   `yaml:"created_by"`
}

type digestFrontmatter struct {
	Title        string   `yaml:"title"`
	Date         string   `yaml:"date"`
	PeriodDays   int      `yaml:"period_days"`
	ArticleCount int      `yaml:"article_count"`
	Tags         []string `yaml:"tags"`
	CreatedBy    string   `yaml:"created_by"`
}

// SaveArticle writes the note for article and returns the file path.
// When the note already exists and memo is empty, the note's existing
// My Notes section is preserved.
func (o *Obsidian) SaveArticle(article drift.Article, memo string, tags []string) (string, error) {
	if err := o.checkVault(); err != nil {
		return "", err
	}
	path, err := o.articlePath(article)
	if err != nil {
		return "", err
	}

	if memo == "" {
		if existing, err := os.ReadFile(path); err == nil {
			memo = extractNotes(string(existing))
		}
	}

	front, err := yaml.Marshal(noteFrontmatter{
		Title:     article.Title,
		Source:    article.Link,
		Feed:      article.FeedName,
		Date:      articleDate(article),
		Tags:      o.noteTags(article, tags),
		CreatedBy: createdBy,
	})
	if err != nil {
		return "", fmt.Errorf("obsidian frontmatter: %w", err)
	}

	content := "---\n" + string(front) + "---\n\n" + o.articleBody(article, memo)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("save obsidian note: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("save obsidian note: %w", err)
	}

	return path, nil
}

// RemoveArticle deletes the note for article, if present.
func (o *Obsidian) RemoveArticle(article drift.Article) error {
	path, err := o.articlePath(article)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove obsidian note: %w", err)
	}

	return nil
}

// SaveDigest writes a digest note under <folder>/digests and returns the
// file path.
func (o *Obsidian) SaveDigest(text string, articleCount, periodDays int) (string, error) {
	if err := o.checkVault(); err != nil {
		return "", err
	}

	date := noteDateStamp(o.clock)
	dir := filepath.Join(o.cfg.VaultPath, o.cfg.Folder, "digests")
	path := filepath.Join(dir, date+"-weekly-digest.md")

	front, err := yaml.Marshal(digestFrontmatter{
		Title:        "Weekly Digest " + date,
		Date:         date,
		PeriodDays:   periodDays,
		ArticleCount: articleCount,
		Tags:         []string{o.cfg.TagsPrefix, o.cfg.TagsPrefix + "/digest"},
		CreatedBy:    createdBy,
	})
	if err != nil {
		return "", fmt.Errorf("obsidian frontmatter: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Weekly Digest (%s)\n\n", date)
	fmt.Fprintf(&b, "*%d articles from the past %d days*\n\n", articleCount, periodDays)
	b.WriteString(text)
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "*Generated by driftline on %s*\n", date)

	content := "---\n" + string(front) + "---\n\n" + b.String()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("save digest note: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("save digest note: %w", err)
	}

	return path, nil
}

func (o *Obsidian) checkVault() error {
	info, err := os.Stat(o.cfg.VaultPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("obsidian vault %s not found", o.cfg.VaultPath)
	}

	return nil
}

func (o *Obsidian) articlePath(article drift.Article) (string, error) {
	base := filepath.Join(o.cfg.VaultPath, o.cfg.Folder)
	filename := fmt.Sprintf("%s-%s.md", articleDate(article), slugify(article.Title))
	path, err := securePath(base, filepath.Join(feedFolder(article.FeedName), filename))
	if err != nil {
		return "", fmt.Errorf("obsidian note path: %w", err)
	}

	return path, nil
}

func (o *Obsidian) noteTags(article drift.Article, tags []string) []string {
	prefix := o.cfg.TagsPrefix
	noteTags := []string{prefix, prefix + "/" + feedFolder(article.FeedName)}
	for _, tag := range tags {
		noteTags = append(noteTags, prefix+"/"+tag)
	}

	return noteTags
}

func (o *Obsidian) articleBody(article drift.Article, memo string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", article.Title)

	b.WriteString("## Summary\n\n")
	if article.Description != "" {
		b.WriteString(article.Description)
	} else {
		b.WriteString(noSummaryText)
	}
	b.WriteString("\n\n")

	if o.cfg.IncludeInsight && article.Insight != "" {
		b.WriteString("## AI Insight\n\n")
		b.WriteString(article.Insight)
		b.WriteString("\n\n")
	}

	if o.cfg.IncludeTranslation && article.Translated() {
		b.WriteString("## Translation\n\n")
		if article.TranslatedTitle != "" {
			fmt.Fprintf(&b, "**Title**: %s\n\n", article.TranslatedTitle)
		}
		if article.TranslatedDescription != "" {
			fmt.Fprintf(&b, "**Description**: %s\n\n", article.TranslatedDescription)
		}
		if article.TranslatedBody != "" {
			b.WriteString(article.TranslatedBody)
			b.WriteString("\n\n")
		}
	}

	b.WriteString(notesHeading + "\n\n")
	if memo == "" {
		memo = noNotesText
	}
	b.WriteString(memo)
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "*Saved from driftline on %s*\n", noteDateStamp(o.clock))
	fmt.Fprintf(&b, "*Original: [%s](%s)*\n", article.Title, article.Link)

	return b.String()
}

// extractNotes pulls the My Notes section text out of an existing note.
// It returns empty when the section is absent or holds only the
// placeholder.
func extractNotes(content string) string {
	_, rest, found := strings.Cut(content, notesHeading)
	if !found {
		return ""
	}

	var notes []string
	for _, line := range strings.Split(rest, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "---" {
			break
		}
		if strings.HasPrefix(stripped, "## ") && len(notes) > 0 {
			break
		}
		notes = append(notes, line)
	}

	text := strings.TrimSpace(strings.Join(notes, "\n"))
	if text == noNotesText {
		return ""
	}

	return text
}
