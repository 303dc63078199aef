package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"driftline/internal/ai"
	"driftline/internal/config"
	"driftline/internal/i18n"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig   string
	flagFeedName string
	flagPurge    bool
)

var rootCmd = &cobra.Command{
	Use:   "driftline",
	Short: "Terminal feed reader with AI insights",
	Long: "driftline reads RSS and Atom feeds in the terminal and enriches articles\n" +
		"with AI insights, translations, and a cross-bookmark digest.",
	SilenceUsage: true,
	RunE:         runTUI,
}

var feedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "Manage feed subscriptions",
}

var feedsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscribed feeds",
	RunE:  runFeedsList,
}

var feedsAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Subscribe to a feed",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeedsAdd,
}

var feedsRemoveCmd = &cobra.Command{
	Use:   "remove <url>",
	Short: "Unsubscribe from a feed",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeedsRemove,
}

var opmlCmd = &cobra.Command{
	Use:   "opml",
	Short: "Import and export subscriptions as OPML",
}

var opmlImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Subscribe to every feed in an OPML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runOPMLImport,
}

var opmlExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the subscriptions to an OPML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runOPMLExport,
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Print the cross-bookmark digest",
	RunE:  runDigest,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(*cobra.Command, []string) {
		fmt.Printf("driftline %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	feedsAddCmd.Flags().StringVar(&flagFeedName, "name", "", "display name for the feed")
	feedsRemoveCmd.Flags().BoolVar(&flagPurge, "purge", false, "also delete the feed's stored articles")

	feedsCmd.AddCommand(feedsListCmd, feedsAddCmd, feedsRemoveCmd)
	opmlCmd.AddCommand(opmlImportCmd, opmlExportCmd)
	rootCmd.AddCommand(feedsCmd, opmlCmd, digestCmd, versionCmd)
}

// configPath resolves the --config flag, defaulting to the XDG location.
func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}

	return config.DefaultPath()
}

// loadConfig builds the provider registry, loads the configuration against
// its provider names, and activates the UI language.
func loadConfig() (*config.Config, *ai.Registry, error) {
	registry, err := ai.DefaultRegistry()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(configPath(), registry.Names())
	if err != nil {
		return nil, nil, err
	}
	i18n.SetLang(cfg.Language)

	return cfg, registry, nil
}

// stderrLogger is the logger for headless commands, which keep stdout for
// their own output.
func stderrLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
