package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"driftline/pkg/drift"
)

// UpsertFeed registers a feed by URL, updating the display name on
// conflict. The id is derived from the URL so the same feed always maps to
// the same row.
func (s *Store) UpsertFeed(ctx context.Context, url, name string) (drift.Feed, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return drift.Feed{}, fmt.Errorf("upsert feed: empty url")
	}
	if name == "" {
		name = url
	}

	feed := drift.Feed{ID: drift.DeriveFeedID(url), URL: url, Name: name}
	err := s.withWrite(ctx, "upsert feed "+feed.ID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO feeds (id, url, name, last_fetched_at) VALUES (?, ?, ?, '')
			 ON CONFLICT(url) DO UPDATE SET name = excluded.name`,
			feed.ID, feed.URL, feed.Name)

		return err
	})
	if err != nil {
		return drift.Feed{}, err
	}

	return feed, nil
}

// ListFeeds returns all registered feeds ordered by name.
func (s *Store) ListFeeds(ctx context.Context) ([]drift.Feed, error) {
	var feeds []drift.Feed
	err := s.withRead(ctx, "list feeds", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT id, url, name, last_fetched_at FROM feeds ORDER BY name ASC, url ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		feeds = feeds[:0]
		for rows.Next() {
			var (
				feed    drift.Feed
				fetched string
			)
			if err := rows.Scan(&feed.ID, &feed.URL, &feed.Name, &fetched); err != nil {
				return err
			}
			feed.LastFetchedAt = timeFromDB(fetched)
			feeds = append(feeds, feed)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return feeds, nil
}

// TouchFeed records a completed fetch attempt.
func (s *Store) TouchFeed(ctx context.Context, id string) error {
	return s.withWrite(ctx, "touch feed "+id, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE feeds SET last_fetched_at = ? WHERE id = ?`, timeToDB(s.now()), id)
		if err != nil {
			return err
		}

		return requireRow(result)
	})
}

// DeleteFeed removes the feed row while keeping every article fetched from
// it. Orphaned articles list with an empty feed name and stop refreshing.
func (s *Store) DeleteFeed(ctx context.Context, id string) error {
	return s.withWrite(ctx, "delete feed "+id, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id)

		return err
	})
}

// PurgeFeed removes a feed and every article fetched from it, bookmarks
// included via cascade. Normal operation never deletes articles; this runs
// only from the explicit feed-removal maintenance path.
func (s *Store) PurgeFeed(ctx context.Context, id string) (int64, error) {
	var removed int64
	err := s.withWrite(ctx, "purge feed "+id, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM articles WHERE feed_id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete articles: %w", err)
		}
		removed, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM feeds WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete feed: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}
