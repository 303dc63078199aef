package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"driftline/internal/ai"
	"driftline/internal/artifact"
	"driftline/internal/bridge"
	"driftline/internal/config"
	"driftline/internal/export"
	"driftline/internal/fetch"
	"driftline/internal/i18n"
	"driftline/internal/store"
	"driftline/internal/tasks"
	"driftline/internal/tui"
	"driftline/pkg/drift"
)

const (
	// shutdownTimeout bounds draining in-flight background tasks on exit.
	shutdownTimeout = 10 * time.Second
	// eventBuffer sizes the bridge-to-UI event channel.
	eventBuffer = 64
)

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, registry, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closeLog, err := openLogger(config.LogPath(), cfg.Runtime.SlogLevel())
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	st, err := store.Open(config.DBPath(), store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer st.Close()

	if err := syncFeeds(cmd.Context(), cfg, st); err != nil {
		return err
	}

	cache := artifact.NewCache(st)

	fetcher, err := fetch.New(st, fetch.WithLogger(logger))
	if err != nil {
		return err
	}

	service := buildAIService(cfg, registry, st, cache, logger)

	events := make(chan drift.Event, eventBuffer)
	eventBridge, err := bridge.New(func(event drift.Event) { events <- event }, bridge.WithLogger(logger))
	if err != nil {
		return err
	}

	coordinator, err := tasks.New(eventBridge,
		tasks.WithWorkers(cfg.Runtime.WorkerCount()),
		tasks.WithTaskTimeout(cfg.Runtime.TaskTimeoutDuration()),
		tasks.WithLogger(logger),
	)
	if err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = eventBridge.Close(closeCtx)

		return err
	}

	obsidian, notion := buildExporters(cfg, logger)

	logger.Info("starting", "version", version, "db", config.DBPath())

	runErr := tui.Run(cmd.Context(), tui.Deps{
		Config:      cfg,
		ConfigPath:  configPath(),
		Store:       st,
		Fetcher:     fetcher,
		AI:          service,
		Coordinator: coordinator,
		Events:      events,
		Notify:      eventBridge.Notify,
		Notes:       export.NewBookmarkNotes(cfg.BookmarkPath()),
		Obsidian:    obsidian,
		Notion:      notion,
		Logger:      logger,
	})

	return errors.Join(runErr, shutdown(coordinator, eventBridge, events, logger))
}

// openLogger opens the JSON log file. Logging goes to a file because the
// TUI owns the terminal.
func openLogger(path string, level slog.Level) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level,
	}))

	return logger, func() { _ = file.Close() }, nil
}

// syncFeeds makes the stored feed set match the configured one. Configured
// feeds are upserted; stored feeds no longer configured lose their feed row
// but keep their fetched articles.
func syncFeeds(ctx context.Context, cfg *config.Config, st *store.Store) error {
	configured := make(map[string]struct{}, len(cfg.Feeds))
	for _, feed := range cfg.DriftFeeds() {
		configured[feed.ID] = struct{}{}
		if _, err := st.UpsertFeed(ctx, feed.URL, feed.Name); err != nil {
			return fmt.Errorf("seed feed %s: %w", feed.URL, err)
		}
	}

	stored, err := st.ListFeeds(ctx)
	if err != nil {
		return err
	}
	for _, feed := range stored {
		if _, ok := configured[feed.ID]; ok {
			continue
		}
		if err := st.DeleteFeed(ctx, feed.ID); err != nil {
			return fmt.Errorf("drop feed %s: %w", feed.URL, err)
		}
	}

	return nil
}

// newAIService wires the configured provider into the artifact pipeline.
func newAIService(cfg *config.Config, registry *ai.Registry, st *store.Store, cache *artifact.Cache, logger *slog.Logger) (*ai.Service, error) {
	provider, err := registry.Build(ai.ProviderConfig{
		Name:    cfg.AI.Provider,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		BaseURL: cfg.AI.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	return ai.NewService(st, cache, provider,
		ai.WithLogger(logger),
		ai.WithLanguage(i18n.Lang()),
		ai.WithInsightLanguage(cfg.Insight.Language),
		ai.WithDigestLanguage(cfg.Digest.Language),
		ai.WithPersona(cfg.Insight.Persona),
		ai.WithDigestWindow(cfg.Digest.Period(), cfg.Digest.ArticleLimit()),
	)
}

// buildAIService is the reader-startup wrapper around newAIService. A
// provider that cannot be built degrades the reader to feeds-only instead
// of failing startup.
func buildAIService(cfg *config.Config, registry *ai.Registry, st *store.Store, cache *artifact.Cache, logger *slog.Logger) *ai.Service {
	service, err := newAIService(cfg, registry, st, cache, logger)
	if err != nil {
		logger.Warn("ai unavailable, running feeds-only",
			"provider", cfg.AI.Provider, "error", err)

		return nil
	}

	return service
}

// buildExporters constructs the optional exporters. A misconfigured exporter
// logs a warning and stays off rather than blocking startup.
func buildExporters(cfg *config.Config, logger *slog.Logger) (*export.Obsidian, *export.Notion) {
	var obsidian *export.Obsidian
	if cfg.Obsidian.Enabled {
		built, err := export.NewObsidian(export.ObsidianConfig{
			VaultPath:          cfg.Obsidian.Vault(),
			Folder:             cfg.Obsidian.Folder,
			TagsPrefix:         cfg.Obsidian.TagsPrefix,
			IncludeInsight:     cfg.Obsidian.IncludeInsight,
			IncludeTranslation: cfg.Obsidian.IncludeTranslation,
		})
		if err != nil {
			logger.Warn("obsidian export disabled", "error", err)
		} else {
			obsidian = built
		}
	}

	var notion *export.Notion
	if cfg.Notion.Enabled {
		built, err := export.NewNotion(export.NotionConfig{
			Token:      cfg.Notion.Token,
			DatabaseID: cfg.Notion.DatabaseID,
		})
		if err != nil {
			logger.Warn("notion export disabled", "error", err)
		} else {
			notion = built
		}
	}

	return obsidian, notion
}

// shutdown drains the task machinery after the UI stopped reading events.
//
// The drain goroutine keeps consuming the events channel so late worker
// notifications never block. The channel is closed only after a clean bridge
// close; a timed-out bridge leaves its pump running, and that pump must not
// find the channel closed.
func shutdown(coordinator *tasks.Coordinator, eventBridge *bridge.Bridge, events chan drift.Event, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range events {
		}
	}()

	coordErr := coordinator.Close(ctx)
	bridgeErr := eventBridge.Close(ctx)
	if bridgeErr == nil {
		close(events)
		<-drained
	}

	err := errors.Join(coordErr, bridgeErr)
	if err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}

	return err
}
