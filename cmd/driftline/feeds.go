package main

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/spf13/cobra"

	"driftline/internal/artifact"
	"driftline/internal/config"
	"driftline/internal/opml"
	"driftline/internal/store"
	"driftline/pkg/drift"
)

func runFeedsList(*cobra.Command, []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	feeds := cfg.DriftFeeds()
	if len(feeds) == 0 {
		fmt.Println("no feeds subscribed")

		return nil
	}
	for _, feed := range feeds {
		fmt.Printf("%s\t%s\n", feed.Name, feed.URL)
	}

	return nil
}

// runFeedsAdd edits the config file only; the store picks the feed up on
// the next startup sync.
func runFeedsAdd(_ *cobra.Command, args []string) error {
	feedURL := args[0]
	if err := checkFeedURL(feedURL); err != nil {
		return err
	}

	added, err := config.AddFeed(configPath(), config.FeedConfig{Name: flagFeedName, URL: feedURL})
	if err != nil {
		return err
	}
	if !added {
		fmt.Printf("already subscribed: %s\n", feedURL)

		return nil
	}
	fmt.Printf("subscribed to %s\n", feedURL)

	return nil
}

func runFeedsRemove(cmd *cobra.Command, args []string) error {
	feedURL := args[0]

	removed, err := config.RemoveFeed(configPath(), feedURL)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Printf("not subscribed: %s\n", feedURL)

		return nil
	}

	st, err := store.Open(config.DBPath(), store.WithLogger(stderrLogger(slog.LevelWarn)))
	if err != nil {
		return err
	}
	defer st.Close()

	id := drift.DeriveFeedID(feedURL)
	if !flagPurge {
		if err := st.DeleteFeed(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("unsubscribed from %s (articles kept)\n", feedURL)

		return nil
	}

	purged, err := st.PurgeFeed(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Printf("unsubscribed from %s, purged %d stored articles\n", feedURL, purged)

	return nil
}

func runOPMLImport(cmd *cobra.Command, args []string) error {
	feeds, err := opml.ParseFile(args[0])
	if err != nil {
		return err
	}
	if len(feeds) == 0 {
		fmt.Printf("no feeds found in %s\n", args[0])

		return nil
	}

	st, err := store.Open(config.DBPath(), store.WithLogger(stderrLogger(slog.LevelWarn)))
	if err != nil {
		return err
	}
	defer st.Close()

	added := 0
	for _, feed := range feeds {
		ok, err := config.AddFeed(configPath(), config.FeedConfig{Name: feed.Name, URL: feed.URL})
		if err != nil {
			return fmt.Errorf("import %s: %w", feed.URL, err)
		}
		if ok {
			added++
		}
		if _, err := st.UpsertFeed(cmd.Context(), feed.URL, feed.Name); err != nil {
			return fmt.Errorf("import %s: %w", feed.URL, err)
		}
	}

	// The subscription scope changed under every cached digest.
	if _, err := artifact.NewCache(st).Invalidate(cmd.Context()); err != nil {
		return err
	}

	fmt.Printf("imported %d feeds (%d new)\n", len(feeds), added)

	return nil
}

func runOPMLExport(_ *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	feeds := cfg.DriftFeeds()
	if err := opml.Export(args[0], feeds); err != nil {
		return err
	}
	fmt.Printf("exported %d feeds to %s\n", len(feeds), args[0])

	return nil
}

// checkFeedURL enforces the same scheme rule config validation applies, so
// an added feed never bricks the next load.
func checkFeedURL(feedURL string) error {
	parsed, err := url.Parse(feedURL)
	if err != nil {
		return fmt.Errorf("invalid feed url %q: %w", feedURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("feed url %q: scheme must be http or https", feedURL)
	}

	return nil
}
