package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"driftline/internal/artifact"
	"driftline/internal/config"
	"driftline/internal/store"
)

// runDigest generates (or reuses) the cross-bookmark digest and prints it
// to stdout.
func runDigest(cmd *cobra.Command, _ []string) error {
	cfg, registry, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Digest.Enabled {
		return errors.New("digest is disabled in the config")
	}

	logger := stderrLogger(cfg.Runtime.SlogLevel())
	st, err := store.Open(config.DBPath(), store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer st.Close()

	service, err := newAIService(cfg, registry, st, artifact.NewCache(st), logger)
	if err != nil {
		return fmt.Errorf("ai provider %s: %w", cfg.AI.Provider, err)
	}

	digest, articles, err := service.Digest(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println(digest.Text)
	logger.Info("digest ready", "articles", articles, "generated_at", digest.GeneratedAt)

	return nil
}
