package ai

import (
	"strings"
	"testing"
	"time"

	"driftline/pkg/drift"
)

func promptArticle(title, description string) drift.Article {
	return drift.Article{
		ID:          "abc123",
		FeedName:    "TestFeed",
		Title:       title,
		Link:        "https://example.com/article",
		Description: description,
		PublishedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		FetchedAt:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestInsightPromptIsDomainAware(t *testing.T) {
	t.Parallel()

	prompt := insightPrompt(promptArticle("Election Results", "New government formed."), "en", "")

	required := []string{
		"identify the article's domain",
		"politics",
		"business",
		"economics",
		"science",
		"culture",
		"sports",
		"Do NOT analyze non-tech articles from a technical perspective",
		"political/policy perspective",
		"market/strategy perspective",
		"Respond in English",
		"<title>Election Results</title>",
		"<description>New government formed.</description>",
	}
	for _, want := range required {
		if !strings.Contains(prompt, want) {
			t.Errorf("insight prompt missing %q", want)
		}
	}
}

func TestInsightPromptPersonaHandlesCrossDomainArticles(t *testing.T) {
	t.Parallel()

	prompt := insightPrompt(
		promptArticle("대통령 탄핵안 가결", "국회에서 대통령 탄핵소추안이 가결되었다."),
		"ko",
		"Senior backend engineer",
	)

	required := []string{
		"identify the article's domain",
		"Do NOT force a technical analysis on non-tech articles",
		"outside the reader's primary domain",
		"article's own domain perspective first",
		"within the reader's primary domain",
		"tailored to their role",
		"Senior backend engineer",
		"대통령 탄핵안 가결",
		"Respond in Korean",
	}
	for _, want := range required {
		if !strings.Contains(prompt, want) {
			t.Errorf("persona insight prompt missing %q", want)
		}
	}
}

func TestInsightPromptSubstitutesNoneForEmptyDescription(t *testing.T) {
	t.Parallel()

	prompt := insightPrompt(promptArticle("Bare Title", ""), "en", "")

	if !strings.Contains(prompt, "<description>(none)</description>") {
		t.Fatalf("prompt should carry the (none) placeholder, got:\n%s", prompt)
	}
}

func TestDigestPromptIsDomainNeutral(t *testing.T) {
	t.Parallel()

	articles := []drift.Article{
		promptArticle("Election Results", "New government formed."),
		promptArticle("New JS Framework", "A new frontend framework."),
	}
	prompt := digestPrompt(articles, 7, "en")

	for _, want := range []string{
		"senior editor",
		"from its own domain perspective",
		"tech, politics, business",
		"last 7 days",
		"Election Results",
		"New JS Framework",
		"Date: 2026-08-01",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("digest prompt missing %q", want)
		}
	}
	for _, forbidden := range []string{"tech editor", "implications for engineers"} {
		if strings.Contains(prompt, forbidden) {
			t.Errorf("digest prompt must not contain %q", forbidden)
		}
	}
}

func TestDigestPromptFallsBackToFetchDate(t *testing.T) {
	t.Parallel()

	article := promptArticle("Undated", "")
	article.PublishedAt = time.Time{}
	article.FetchedAt = time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC)

	prompt := digestPrompt([]drift.Article{article}, 3, "ko")

	if !strings.Contains(prompt, "Date: 2026-08-19") {
		t.Fatalf("digest prompt should fall back to the fetch date, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Respond in Korean") {
		t.Fatal("digest prompt should name the output language")
	}
}

func TestAnalysisPromptListsEveryBookmark(t *testing.T) {
	t.Parallel()

	articles := []drift.Article{
		promptArticle("First", "desc one"),
		promptArticle("Second", ""),
	}
	articles[1].Insight = "worth a follow-up"

	prompt := analysisPrompt(articles, "de", "")

	for _, want := range []string{
		"- Title: First",
		"Description: desc one",
		"- Title: Second",
		"Description: (none)",
		"Insight: worth a follow-up",
		"Respond in German",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("analysis prompt missing %q", want)
		}
	}

	personaPrompt := analysisPrompt(articles, "de", "Data analyst")
	for _, want := range []string{"Data analyst", "tailored to their role and goals"} {
		if !strings.Contains(personaPrompt, want) {
			t.Errorf("persona analysis prompt missing %q", want)
		}
	}
}

func TestParseMetaTranslation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		output          string
		fallbackTitle   string
		wantTitle       string
		wantDescription string
	}{
		{
			name:            "both lines present",
			output:          "Title: Übersetzter Titel\nDescription: Übersetzte Beschreibung",
			fallbackTitle:   "Original",
			wantTitle:       "Übersetzter Titel",
			wantDescription: "Übersetzte Beschreibung",
		},
		{
			name:          "surrounding chatter ignored",
			output:        "Sure, here it is:\nTitle: Titel\nDescription: Text\nHope that helps!",
			fallbackTitle: "Original",
			// The Title: line wins over the leading chatter line.
			wantTitle:       "Titel",
			wantDescription: "Text",
		},
		{
			name:            "missing keys uses first line as title",
			output:          "Ein nackter Titel ohne Format",
			fallbackTitle:   "Original",
			wantTitle:       "Ein nackter Titel ohne Format",
			wantDescription: "",
		},
		{
			name:            "bare key line falls back to original title",
			output:          "Title:",
			fallbackTitle:   "Original",
			wantTitle:       "Original",
			wantDescription: "",
		},
		{
			name:            "empty output falls back to original title",
			output:          "",
			fallbackTitle:   "Original",
			wantTitle:       "Original",
			wantDescription: "",
		},
		{
			name:            "indented lines still parse",
			output:          "  Title: Indented\n\tDescription: Tabbed",
			fallbackTitle:   "Original",
			wantTitle:       "Indented",
			wantDescription: "Tabbed",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			tr := parseMetaTranslation(testCase.output, testCase.fallbackTitle)
			if tr.Title != testCase.wantTitle {
				t.Errorf("title = %q, want %q", tr.Title, testCase.wantTitle)
			}
			if tr.Description != testCase.wantDescription {
				t.Errorf("description = %q, want %q", tr.Description, testCase.wantDescription)
			}
		})
	}
}

func TestLangName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want string
	}{
		{code: "en", want: "English"},
		{code: "ko", want: "Korean"},
		{code: "zh-CN", want: "Simplified Chinese"},
		{code: "pt-BR", want: "pt-BR"},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.code, func(t *testing.T) {
			t.Parallel()

			if got := LangName(testCase.code); got != testCase.want {
				t.Errorf("LangName(%q) = %q, want %q", testCase.code, got, testCase.want)
			}
		})
	}
}

func TestTranslatable(t *testing.T) {
	t.Parallel()

	for lang, want := range map[string]bool{
		"ko":    true,
		"ja":    true,
		"zh-CN": true,
		"es":    true,
		"de":    true,
		"en":    false,
		"fr":    false,
		"":      false,
	} {
		if got := Translatable(lang); got != want {
			t.Errorf("Translatable(%q) = %v, want %v", lang, got, want)
		}
	}
}
