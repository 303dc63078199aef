package store

import (
	"context"
	"fmt"
)

// migration is one schema step applied exactly once, inside one transaction.
type migration struct {
	version    int
	name       string
	statements []string
}

// migrations is the append-only schema history. Versions must stay strictly
// ascending; the runner refuses to start otherwise.
var migrations = []migration{
	{
		version: 1,
		name:    "articles and feeds",
		statements: []string{
			`CREATE TABLE feeds (
				id              TEXT PRIMARY KEY,
				url             TEXT NOT NULL UNIQUE,
				name            TEXT NOT NULL,
				last_fetched_at TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE articles (
				id           TEXT PRIMARY KEY,
				feed_id      TEXT NOT NULL,
				title        TEXT NOT NULL DEFAULT '',
				link         TEXT NOT NULL DEFAULT '',
				description  TEXT NOT NULL DEFAULT '',
				published_at TEXT NOT NULL DEFAULT '',
				fetched_at   TEXT NOT NULL DEFAULT '',
				read         INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX idx_articles_published ON articles(published_at DESC)`,
			`CREATE INDEX idx_articles_feed ON articles(feed_id)`,
		},
	},
	{
		version: 2,
		name:    "bookmarks",
		statements: []string{
			`CREATE TABLE bookmarks (
				article_id    TEXT PRIMARY KEY REFERENCES articles(id) ON DELETE CASCADE,
				bookmarked_at TEXT NOT NULL,
				memo          TEXT NOT NULL DEFAULT '',
				tags          TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX idx_bookmarks_at ON bookmarks(bookmarked_at DESC)`,
		},
	},
	{
		version: 3,
		name:    "ai artifacts",
		statements: []string{
			`ALTER TABLE articles ADD COLUMN insight TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE articles ADD COLUMN insight_lang TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE articles ADD COLUMN translated_title TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE articles ADD COLUMN translated_description TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE articles ADD COLUMN translated_body TEXT NOT NULL DEFAULT ''`,
		},
	},
	{
		version: 4,
		name:    "digest cache and mutation stamps",
		statements: []string{
			`ALTER TABLE articles ADD COLUMN updated_at TEXT NOT NULL DEFAULT ''`,
			`CREATE TABLE digests (
				scope_key    TEXT PRIMARY KEY,
				fingerprint  TEXT NOT NULL,
				text         TEXT NOT NULL,
				generated_at TEXT NOT NULL
			)`,
		},
	},
}

// migrate applies every pending migration in ascending order before any other
// access. Each migration commits atomically together with its version bump,
// so a failure aborts startup without leaving a partially applied schema
// behind.
func (s *Store) migrate(ctx context.Context) error {
	if err := validateMigrations(migrations); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	for _, step := range migrations {
		if step.version <= current {
			continue
		}
		if err := s.applyMigration(ctx, step); err != nil {
			return fmt.Errorf("migrate to version %d (%s): %w", step.version, step.name, err)
		}
		s.cfg.logger.InfoContext(ctx, "store schema migrated",
			"version", step.version, "name", step.name)
		current = step.version
	}

	return nil
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.writeDB.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	return version, nil
}

func (s *Store) applyMigration(ctx context.Context, step migration) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	for idx, statement := range step.statements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("statement %d: %w", idx+1, err)
		}
	}
	// PRAGMA does not accept bound parameters; version is a trusted literal
	// from the migration table above.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, step.version)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("bump schema version: %w", err)
	}

	return tx.Commit()
}

func validateMigrations(steps []migration) error {
	previous := 0
	for idx, step := range steps {
		if step.version <= previous {
			return fmt.Errorf("migration %d: version %d not ascending after %d", idx, step.version, previous)
		}
		if len(step.statements) == 0 {
			return fmt.Errorf("migration %d: no statements", idx)
		}
		previous = step.version
	}

	return nil
}
