package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"driftline/internal/artifact"
	"driftline/pkg/drift"
)

const (
	defaultLanguage          = "en"
	defaultDigestPeriodDays  = 7
	defaultDigestMaxArticles = 20

	// translateBodyRuneLimit caps body text embedded in translation prompts.
	translateBodyRuneLimit = 10000
)

// Store is the persistence slice the generator reads and writes through.
type Store interface {
	GetArticle(ctx context.Context, id string) (drift.Article, bool, error)
	WriteInsight(ctx context.Context, id, text, lang string) error
	WriteTranslation(ctx context.Context, id string, tr drift.Translation) error
	WriteTranslatedBody(ctx context.Context, id, body string) error
	RecentBookmarked(ctx context.Context, limit int) ([]drift.Article, error)
}

// DigestCache guards digest regeneration behind fingerprint freshness.
type DigestCache interface {
	Fresh(ctx context.Context, scopeKey string, source []drift.Article) (drift.Digest, bool, error)
	Save(ctx context.Context, scopeKey, text string, source []drift.Article) (drift.Digest, error)
}

// Service generates AI artifacts and persists them on their articles.
//
// Every method first serves from persisted state when it is still valid:
// insights are cached per language on the article row, digests behind the
// fingerprint cache. Only a miss reaches the provider, so repeating a request
// with no intervening mutation never costs a second AI call.
type Service struct {
	store    Store
	cache    DigestCache
	provider drift.Provider
	logger   *slog.Logger

	language          string
	insightLanguage   string
	digestLanguage    string
	persona           string
	digestPeriodDays  int
	digestMaxArticles int
}

// ServiceOption adjusts service construction.
type ServiceOption func(*Service)

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLanguage sets the base output language code for generated artifacts.
// Translations always target this language.
func WithLanguage(lang string) ServiceOption {
	return func(s *Service) {
		if strings.TrimSpace(lang) != "" {
			s.language = strings.TrimSpace(lang)
		}
	}
}

// WithInsightLanguage overrides the insight output language. Unset, insights
// follow the base language.
func WithInsightLanguage(lang string) ServiceOption {
	return func(s *Service) {
		s.insightLanguage = strings.TrimSpace(lang)
	}
}

// WithDigestLanguage overrides the digest and bookmark-analysis output
// language. Unset, both follow the base language.
func WithDigestLanguage(lang string) ServiceOption {
	return func(s *Service) {
		s.digestLanguage = strings.TrimSpace(lang)
	}
}

// WithPersona sets a reader profile that personalizes insights and analysis.
func WithPersona(persona string) ServiceOption {
	return func(s *Service) {
		s.persona = strings.TrimSpace(persona)
	}
}

// WithDigestWindow sets the digest period in days and the article cap.
func WithDigestWindow(periodDays, maxArticles int) ServiceOption {
	return func(s *Service) {
		if periodDays > 0 {
			s.digestPeriodDays = periodDays
		}
		if maxArticles > 0 {
			s.digestMaxArticles = maxArticles
		}
	}
}

// NewService builds one artifact generator.
func NewService(store Store, cache DigestCache, provider drift.Provider, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("new ai service: nil store")
	}
	if cache == nil {
		return nil, fmt.Errorf("new ai service: nil cache")
	}
	if provider == nil {
		return nil, fmt.Errorf("new ai service: nil provider")
	}

	service := &Service{
		store:             store,
		cache:             cache,
		provider:          provider,
		logger:            slog.Default(),
		language:          defaultLanguage,
		digestPeriodDays:  defaultDigestPeriodDays,
		digestMaxArticles: defaultDigestMaxArticles,
	}
	for _, option := range options {
		option(service)
	}
	if service.insightLanguage == "" {
		service.insightLanguage = service.language
	}
	if service.digestLanguage == "" {
		service.digestLanguage = service.language
	}

	return service, nil
}

// Language returns the base output language code.
func (s *Service) Language() string {
	return s.language
}

// Insight returns the article's insight, generating and persisting one when
// no insight in the configured language is stored yet.
func (s *Service) Insight(ctx context.Context, articleID string) (string, error) {
	article, err := s.loadArticle(ctx, articleID, "generate insight")
	if err != nil {
		return "", err
	}
	if article.Insight != "" && article.InsightLang == s.insightLanguage {
		s.logger.Debug("insight cache hit", "article_id", articleID, "lang", s.insightLanguage)
		return article.Insight, nil
	}

	text, err := s.generate(ctx, "generate insight", insightPrompt(article, s.insightLanguage, s.persona))
	if err != nil {
		return "", err
	}
	if err := s.store.WriteInsight(ctx, articleID, text, s.insightLanguage); err != nil {
		return "", fmt.Errorf("persist insight %s: %w", articleID, err)
	}
	s.logger.Info("insight generated", "article_id", articleID, "lang", s.insightLanguage)

	return text, nil
}

// TranslateMeta translates title and description, persisting both fields.
// A stored translation is served as-is.
func (s *Service) TranslateMeta(ctx context.Context, articleID string) (drift.Translation, error) {
	if err := s.requireTranslatable("translate metadata"); err != nil {
		return drift.Translation{}, err
	}

	article, err := s.loadArticle(ctx, articleID, "translate metadata")
	if err != nil {
		return drift.Translation{}, err
	}
	if article.TranslatedTitle != "" {
		s.logger.Debug("metadata translation cache hit", "article_id", articleID)
		return drift.Translation{
			Title:       article.TranslatedTitle,
			Description: article.TranslatedDescription,
		}, nil
	}

	output, err := s.generate(ctx, "translate metadata", metaTranslationPrompt(article, s.language))
	if err != nil {
		return drift.Translation{}, err
	}

	tr := parseMetaTranslation(output, article.Title)
	if err := s.store.WriteTranslation(ctx, articleID, tr); err != nil {
		return drift.Translation{}, fmt.Errorf("persist translation %s: %w", articleID, err)
	}
	s.logger.Info("metadata translated", "article_id", articleID, "lang", s.language)

	return tr, nil
}

// TranslateBody translates the fetched article body and persists the result.
// The caller supplies the body text; an empty body is a permanent failure
// because there is nothing to translate until a body fetch succeeds.
func (s *Service) TranslateBody(ctx context.Context, articleID, body string) (string, error) {
	if err := s.requireTranslatable("translate body"); err != nil {
		return "", err
	}

	article, err := s.loadArticle(ctx, articleID, "translate body")
	if err != nil {
		return "", err
	}
	if article.TranslatedBody != "" {
		s.logger.Debug("body translation cache hit", "article_id", articleID)
		return article.TranslatedBody, nil
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return "", &drift.TaskError{
			Op:       "translate body",
			Kind:     drift.FailureKindPermanent,
			Provider: s.provider.Name(),
			Cause:    errors.New("article body not fetched"),
		}
	}
	if runes := []rune(body); len(runes) > translateBodyRuneLimit {
		body = string(runes[:translateBodyRuneLimit])
	}

	text, err := s.generate(ctx, "translate body", bodyTranslationPrompt(body, s.language))
	if err != nil {
		return "", err
	}
	if err := s.store.WriteTranslatedBody(ctx, articleID, text); err != nil {
		return "", fmt.Errorf("persist body translation %s: %w", articleID, err)
	}
	s.logger.Info("body translated", "article_id", articleID, "lang", s.language)

	return text, nil
}

// Digest returns the cross-bookmark digest and the number of articles in its
// scope. The cached digest is served while its fingerprint still matches the
// current bookmark scope; any bookmark, tag, memo, or article change since
// generation forces a regeneration.
func (s *Service) Digest(ctx context.Context) (drift.Digest, int, error) {
	articles, err := s.store.RecentBookmarked(ctx, s.digestMaxArticles)
	if err != nil {
		return drift.Digest{}, 0, fmt.Errorf("load digest scope: %w", err)
	}
	if len(articles) == 0 {
		return drift.Digest{}, 0, &drift.TaskError{
			Op:       "generate digest",
			Kind:     drift.FailureKindPermanent,
			Provider: s.provider.Name(),
			Cause:    errors.New("no bookmarked articles"),
		}
	}

	cached, fresh, err := s.cache.Fresh(ctx, artifact.BookmarkScope, articles)
	if err != nil {
		return drift.Digest{}, 0, err
	}
	if fresh {
		s.logger.Debug("digest cache hit",
			"scope", artifact.BookmarkScope, "articles", len(articles))
		return cached, len(articles), nil
	}

	text, err := s.generate(ctx, "generate digest",
		digestPrompt(articles, s.digestPeriodDays, s.digestLanguage))
	if err != nil {
		return drift.Digest{}, 0, err
	}

	digest, err := s.cache.Save(ctx, artifact.BookmarkScope, text, articles)
	if err != nil {
		return drift.Digest{}, 0, err
	}
	s.logger.Info("digest generated",
		"scope", artifact.BookmarkScope, "articles", len(articles), "lang", s.digestLanguage)

	return digest, len(articles), nil
}

// AnalyzeBookmarks synthesizes themes and follow-up suggestions across the
// given bookmarked articles. The result is not cached; the bookmark screen
// regenerates it on open.
func (s *Service) AnalyzeBookmarks(ctx context.Context, articles []drift.Article) (string, error) {
	if len(articles) == 0 {
		return "", &drift.TaskError{
			Op:       "analyze bookmarks",
			Kind:     drift.FailureKindPermanent,
			Provider: s.provider.Name(),
			Cause:    errors.New("no bookmarked articles"),
		}
	}

	return s.generate(ctx, "analyze bookmarks", analysisPrompt(articles, s.digestLanguage, s.persona))
}

func (s *Service) loadArticle(ctx context.Context, articleID, op string) (drift.Article, error) {
	article, found, err := s.store.GetArticle(ctx, articleID)
	if err != nil {
		return drift.Article{}, fmt.Errorf("%s: load article %s: %w", op, articleID, err)
	}
	if !found {
		return drift.Article{}, fmt.Errorf("%s: article %s: %w", op, articleID, drift.ErrNotFound)
	}

	return article, nil
}

func (s *Service) requireTranslatable(op string) error {
	if Translatable(s.language) {
		return nil
	}

	return &drift.TaskError{
		Op:       op,
		Kind:     drift.FailureKindPermanent,
		Provider: s.provider.Name(),
		Cause:    fmt.Errorf("output language %q is not a translation target", s.language),
	}
}

// generate runs one provider call, normalizing every failure into a
// classified task error so the coordinator's retry policy stays structural.
func (s *Service) generate(ctx context.Context, op, prompt string) (string, error) {
	if !s.provider.Available(ctx) {
		return "", &drift.TaskError{
			Op:       op,
			Kind:     drift.FailureKindPermanent,
			Provider: s.provider.Name(),
			Cause:    drift.ErrProviderUnavailable,
		}
	}

	text, err := s.provider.Generate(ctx, drift.GenerateRequest{Prompt: prompt})
	if err != nil {
		if _, ok := drift.AsTaskError(err); ok {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return "", &drift.TaskError{
			Op:       op,
			Kind:     drift.ClassifyError(err),
			Provider: s.provider.Name(),
			Cause:    err,
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &drift.TaskError{
			Op:       op,
			Kind:     drift.FailureKindPermanent,
			Provider: s.provider.Name(),
			Cause:    errors.New("empty completion"),
		}
	}

	return text, nil
}
