package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"driftline/pkg/drift"
)

// ToggleBookmark flips bookmark state for an article and reports the state
// after the call. Removing a bookmark cascades its memo and tags away. Both
// directions move the article's mutation stamp so digest fingerprints built
// over bookmark scopes go stale.
func (s *Store) ToggleBookmark(ctx context.Context, id string) (bool, error) {
	var bookmarked bool
	err := s.withWrite(ctx, "toggle bookmark "+id, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM articles WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return drift.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("probe article: %w", err)
		}

		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM bookmarks WHERE article_id = ?`, id).Scan(&exists)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO bookmarks (article_id, bookmarked_at, memo, tags) VALUES (?, ?, '', '')`,
				id, timeToDB(s.now()),
			); err != nil {
				return fmt.Errorf("insert bookmark: %w", err)
			}
			bookmarked = true
		case err != nil:
			return fmt.Errorf("probe bookmark: %w", err)
		default:
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM bookmarks WHERE article_id = ?`, id,
			); err != nil {
				return fmt.Errorf("delete bookmark: %w", err)
			}
			bookmarked = false
		}

		return s.stampArticle(ctx, tx, id)
	})
	if err != nil {
		return false, err
	}

	return bookmarked, nil
}

// SetMemo replaces the memo on a bookmarked article. Returns
// drift.ErrNotBookmarked when no bookmark exists.
func (s *Store) SetMemo(ctx context.Context, id, memo string) error {
	return s.withWrite(ctx, "set memo "+id, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE bookmarks SET memo = ? WHERE article_id = ?`, memo, id)
		if err != nil {
			return err
		}
		if err := requireBookmark(result); err != nil {
			return err
		}

		return s.stampArticle(ctx, tx, id)
	})
}

// SetTags replaces the tag set on a bookmarked article. Tags are trimmed,
// de-duplicated, and stored in the order given.
func (s *Store) SetTags(ctx context.Context, id string, tags []string) error {
	return s.withWrite(ctx, "set tags "+id, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE bookmarks SET tags = ? WHERE article_id = ?`, joinTags(tags), id)
		if err != nil {
			return err
		}
		if err := requireBookmark(result); err != nil {
			return err
		}

		return s.stampArticle(ctx, tx, id)
	})
}

// ListTags returns every distinct tag across bookmarks with usage counts,
// most used first, ties alphabetical.
func (s *Store) ListTags(ctx context.Context) ([]drift.TagCount, error) {
	counts := make(map[string]int)
	err := s.withRead(ctx, "list tags", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT tags FROM bookmarks WHERE tags != ''`)
		if err != nil {
			return err
		}
		defer rows.Close()

		clear(counts)
		for rows.Next() {
			var csv string
			if err := rows.Scan(&csv); err != nil {
				return err
			}
			for _, tag := range splitTags(csv) {
				counts[tag]++
			}
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	tags := make([]drift.TagCount, 0, len(counts))
	for name, count := range counts {
		tags = append(tags, drift.TagCount{Tag: name, Count: count})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}

		return tags[i].Tag < tags[j].Tag
	})

	return tags, nil
}

// RecentBookmarked returns bookmarked articles, newest bookmark first. A
// limit of zero means no limit. Digest generation reads its source set
// through this.
func (s *Store) RecentBookmarked(ctx context.Context, limit int) ([]drift.Article, error) {
	query := `SELECT ` + articleColumns + articleFrom + `
		WHERE b.article_id IS NOT NULL
		ORDER BY b.bookmarked_at DESC, a.rowid ASC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var articles []drift.Article
	err := s.withRead(ctx, "recent bookmarked", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		articles = articles[:0]
		for rows.Next() {
			article, err := scanArticle(rows)
			if err != nil {
				return fmt.Errorf("scan article: %w", err)
			}
			articles = append(articles, article)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return articles, nil
}

// stampArticle moves the mutation stamp inside the caller's transaction so
// bookmark-side edits and the stamp land atomically.
func (s *Store) stampArticle(ctx context.Context, tx *sql.Tx, id string) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE articles SET updated_at = ? WHERE id = ?`, timeToDB(s.now()), id)
	if err != nil {
		return fmt.Errorf("stamp article: %w", err)
	}

	return requireRow(result)
}

func requireBookmark(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return drift.ErrNotBookmarked
	}

	return nil
}

func joinTags(tags []string) string {
	seen := make(map[string]struct{}, len(tags))
	kept := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		kept = append(kept, tag)
	}

	return strings.Join(kept, ",")
}

func splitTags(csv string) []string {
	if csv == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(csv, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}

	return tags
}
