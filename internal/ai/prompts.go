// Package ai turns articles into AI-derived artifacts: insights, metadata and
// body translations, the cross-bookmark digest, and bookmark collection
// analysis. Prompts are English templates with the output language injected so
// one catalog serves every locale.
package ai

import (
	"fmt"
	"strings"

	"driftline/pkg/drift"
)

// noneText stands in for empty article fields inside prompts.
const noneText = "(none)"

// Parsing keys for the metadata translation output contract. Always English
// regardless of output language.
const (
	metaTitleKey       = "Title:"
	metaDescriptionKey = "Description:"
)

var langNames = map[string]string{
	"en":    "English",
	"ko":    "Korean",
	"ja":    "Japanese",
	"zh-CN": "Simplified Chinese",
	"es":    "Spanish",
	"de":    "German",
}

var translatableLangs = map[string]struct{}{
	"ko":    {},
	"ja":    {},
	"zh-CN": {},
	"es":    {},
	"de":    {},
}

// LangName converts a language code to its display name, falling back to the
// code itself for unknown languages.
func LangName(code string) string {
	if name, known := langNames[code]; known {
		return name
	}

	return code
}

// Translatable reports whether lang is a supported translation target.
// English is the source language and never a target.
func Translatable(lang string) bool {
	_, supported := translatableLangs[lang]

	return supported
}

const insightTemplate = "You are an intelligent reader analyzing an article. " +
	"First identify the article's domain " +
	"(e.g., tech, politics, business, economics, science, culture, sports), " +
	"then analyze it from that domain's own perspective: " +
	"political articles from a political/policy perspective, " +
	"business articles from a market/strategy perspective, and so on. " +
	"Do NOT analyze non-tech articles from a technical perspective. " +
	"Based on the title and description below, provide a sharp, opinionated insight in 1-2 sentences. " +
	"Focus on WHY this matters: its practical impact, hidden implications, or what readers should watch out for. " +
	"Do NOT simply restate the title or summarize. Instead, add your own analytical perspective. " +
	"Keep technical terms as-is. " +
	"Respond in %[1]s.\n\n" +
	"<article>\n" +
	"<title>%[2]s</title>\n" +
	"<description>%[3]s</description>\n" +
	"</article>"

const insightPersonaTemplate = "You are an intelligent reader providing personalized insights.\n\n" +
	"<reader_profile>\n%[1]s\n</reader_profile>\n\n" +
	"First identify the article's domain " +
	"(e.g., tech, politics, business, economics, science, culture, sports). " +
	"When the article falls within the reader's primary domain, provide a sharp insight " +
	"in 1-2 sentences tailored to their role: practical implications, opportunities they " +
	"should notice, or risks to watch out for. " +
	"When the article falls outside the reader's primary domain, analyze it from the " +
	"article's own domain perspective first, then note a connection to the reader's " +
	"context only where one genuinely exists. " +
	"Do NOT force a technical analysis on non-tech articles. " +
	"Do NOT simply restate the title or summarize. " +
	"Keep technical terms as-is. " +
	"Respond in %[2]s.\n\n" +
	"<article>\n" +
	"<title>%[3]s</title>\n" +
	"<description>%[4]s</description>\n" +
	"</article>"

const translateMetaTemplate = "Translate the title and description of the English article below " +
	"into natural %[1]s. " +
	"For technical terms, include the English in parentheses " +
	"(e.g., Container(Container)). " +
	"Output only in the following format:\n" +
	"Title: (translated title)\n" +
	"Description: (translated description)\n\n" +
	"<article>\n" +
	"<title>%[2]s</title>\n" +
	"<description>%[3]s</description>\n" +
	"</article>"

const translateBodyTemplate = "Translate the English text below into natural %[1]s. " +
	"For technical terms, include the English in parentheses " +
	"(e.g., Container(Container)). " +
	"Output only the translation without any other explanation.\n\n" +
	"<text>\n%[2]s\n</text>"

const digestTemplate = "You are a senior editor writing a digest of the articles a reader " +
	"bookmarked over the last %[2]d days.\n\n" +
	"<bookmarks>\n%[3]s\n</bookmarks>\n\n" +
	"Write a digest that:\n" +
	"1. Groups the bookmarks into their main themes\n" +
	"2. Covers each theme from its own domain perspective, whether tech, politics, business, " +
	"economics, science, culture, or sports\n" +
	"3. Closes with what the reader should keep an eye on next\n" +
	"Prioritize what matters instead of covering every article. " +
	"Keep technical terms as-is. " +
	"Respond in %[1]s."

const digestItemTemplate = "- Title: %s\n  Feed: %s\n  Date: %s\n  Description: %s\n  Insight: %s"

const analysisTemplate = "Below are articles I bookmarked.\n\n" +
	"<bookmarks>\n%[2]s\n</bookmarks>\n\n" +
	"Please analyze the following and respond in %[1]s:\n" +
	"1. Common themes and topics across these bookmarks\n" +
	"2. Key insights and takeaways\n" +
	"3. Suggested areas to explore further"

const analysisPersonaTemplate = "Below are articles I bookmarked.\n\n" +
	"<reader_profile>\n%[1]s\n</reader_profile>\n\n" +
	"<bookmarks>\n%[3]s\n</bookmarks>\n\n" +
	"Based on the reader's background and interests, analyze the following " +
	"and respond in %[2]s:\n" +
	"1. Common themes and topics across these bookmarks\n" +
	"2. Key insights and takeaways, highlighting what is most relevant to THIS reader\n" +
	"3. Suggested areas to explore further, tailored to their role and goals"

const analysisItemTemplate = "- Title: %s\n  Description: %s\n  Insight: %s"

func insightPrompt(article drift.Article, lang, persona string) string {
	if persona != "" {
		return fmt.Sprintf(insightPersonaTemplate,
			persona, LangName(lang), article.Title, orNone(article.Description))
	}

	return fmt.Sprintf(insightTemplate,
		LangName(lang), article.Title, orNone(article.Description))
}

func metaTranslationPrompt(article drift.Article, lang string) string {
	return fmt.Sprintf(translateMetaTemplate,
		LangName(lang), article.Title, orNone(article.Description))
}

func bodyTranslationPrompt(body, lang string) string {
	return fmt.Sprintf(translateBodyTemplate, LangName(lang), body)
}

func digestPrompt(articles []drift.Article, periodDays int, lang string) string {
	items := make([]string, 0, len(articles))
	for _, article := range articles {
		items = append(items, fmt.Sprintf(digestItemTemplate,
			article.Title,
			article.FeedName,
			digestDate(article),
			orNone(article.Description),
			orNone(article.Insight)))
	}

	return fmt.Sprintf(digestTemplate, LangName(lang), periodDays, strings.Join(items, "\n"))
}

func analysisPrompt(articles []drift.Article, lang, persona string) string {
	items := make([]string, 0, len(articles))
	for _, article := range articles {
		items = append(items, fmt.Sprintf(analysisItemTemplate,
			article.Title,
			orNone(article.Description),
			orNone(article.Insight)))
	}
	joined := strings.Join(items, "\n")

	if persona != "" {
		return fmt.Sprintf(analysisPersonaTemplate, persona, LangName(lang), joined)
	}

	return fmt.Sprintf(analysisTemplate, LangName(lang), joined)
}

// parseMetaTranslation extracts the translated title and description from
// provider output following the Title:/Description: contract. When no title
// line parses, the first output line serves as the title; an empty or key-only
// first line falls back to the original title.
func parseMetaTranslation(output, fallbackTitle string) drift.Translation {
	var tr drift.Translation
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, metaTitleKey):
			tr.Title = strings.TrimSpace(strings.TrimPrefix(line, metaTitleKey))
		case strings.HasPrefix(line, metaDescriptionKey):
			tr.Description = strings.TrimSpace(strings.TrimPrefix(line, metaDescriptionKey))
		}
	}

	if tr.Title == "" {
		firstLine := strings.TrimSpace(strings.SplitN(output, "\n", 2)[0])
		switch firstLine {
		case "", metaTitleKey, strings.TrimSuffix(metaTitleKey, ":"):
			tr.Title = fallbackTitle
		default:
			tr.Title = firstLine
		}
	}

	return tr
}

func digestDate(article drift.Article) string {
	when := article.PublishedAt
	if when.IsZero() {
		when = article.FetchedAt
	}

	return when.Format("2006-01-02")
}

func orNone(text string) string {
	if strings.TrimSpace(text) == "" {
		return noneText
	}

	return text
}
