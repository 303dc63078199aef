package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"driftline/pkg/drift"
)

// querier is satisfied by *sql.DB and *sql.Tx so lookups can run either on
// the read pool or inside a write transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const articleColumns = `
	a.id, a.feed_id, COALESCE(f.name, ''),
	a.title, a.link, a.description,
	a.published_at, a.fetched_at, a.updated_at, a.read,
	a.insight, a.insight_lang,
	a.translated_title, a.translated_description, a.translated_body,
	b.article_id, b.bookmarked_at, b.memo, b.tags`

const articleFrom = `
	FROM articles a
	LEFT JOIN feeds f ON f.id = a.feed_id
	LEFT JOIN bookmarks b ON b.article_id = a.id`

// UpsertArticle inserts a fetched entry or updates the mutable fields of the
// existing row: title, link, description, published_at, fetched_at. Read
// state and AI artifacts are never touched, so a re-fetch cannot clobber
// them. The mutation stamp moves only when fetched content actually changed.
func (s *Store) UpsertArticle(ctx context.Context, in drift.ArticleInput) (drift.Article, bool, error) {
	if err := in.Validate(); err != nil {
		return drift.Article{}, false, fmt.Errorf("upsert article: %w", err)
	}

	id := drift.DeriveArticleID(in.FeedName, in.EntryRef())
	now := s.now()
	published := in.PublishedAt
	if published.IsZero() {
		published = now
	}

	var (
		article drift.Article
		isNew   bool
	)
	err := s.withWrite(ctx, "upsert article "+id, func(tx *sql.Tx) error {
		var curTitle, curLink, curDescription, curPublished string
		err := tx.QueryRowContext(ctx,
			`SELECT title, link, description, published_at FROM articles WHERE id = ?`, id,
		).Scan(&curTitle, &curLink, &curDescription, &curPublished)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			isNew = true
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO articles (id, feed_id, title, link, description, published_at, fetched_at, updated_at, read)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
				id, in.FeedID, in.Title, in.Link, in.Description,
				timeToDB(published), timeToDB(now), timeToDB(now),
			); err != nil {
				return fmt.Errorf("insert: %w", err)
			}
		case err != nil:
			return fmt.Errorf("probe existing: %w", err)
		default:
			isNew = false
			changed := curTitle != in.Title ||
				curLink != in.Link ||
				curDescription != in.Description ||
				curPublished != timeToDB(published)
			if changed {
				if _, err := tx.ExecContext(ctx,
					`UPDATE articles
					 SET title = ?, link = ?, description = ?, published_at = ?, fetched_at = ?, updated_at = ?
					 WHERE id = ?`,
					in.Title, in.Link, in.Description, timeToDB(published),
					timeToDB(now), timeToDB(now), id,
				); err != nil {
					return fmt.Errorf("update: %w", err)
				}
			} else {
				if _, err := tx.ExecContext(ctx,
					`UPDATE articles SET fetched_at = ? WHERE id = ?`,
					timeToDB(now), id,
				); err != nil {
					return fmt.Errorf("touch: %w", err)
				}
			}
		}

		loaded, found, err := getArticle(ctx, tx, id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("read back: %w", drift.ErrNotFound)
		}
		article = loaded

		return nil
	})
	if err != nil {
		return drift.Article{}, false, err
	}

	return article, isNew, nil
}

// GetArticle returns one article by id. found is false on a lookup miss.
func (s *Store) GetArticle(ctx context.Context, id string) (drift.Article, bool, error) {
	var (
		article drift.Article
		found   bool
	)
	err := s.withRead(ctx, "get article "+id, func(db *sql.DB) error {
		loaded, ok, err := getArticle(ctx, db, id)
		if err != nil {
			return err
		}
		article, found = loaded, ok

		return nil
	})
	if err != nil {
		return drift.Article{}, false, err
	}

	return article, found, nil
}

func getArticle(ctx context.Context, q querier, id string) (drift.Article, bool, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+articleColumns+articleFrom+` WHERE a.id = ?`, id)

	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return drift.Article{}, false, nil
	}
	if err != nil {
		return drift.Article{}, false, fmt.Errorf("scan article: %w", err)
	}

	return article, true, nil
}

// ListArticles returns articles matching the filter, newest published first,
// ties broken by fetch order.
func (s *Store) ListArticles(ctx context.Context, filter drift.ArticleFilter) ([]drift.Article, error) {
	query, args := buildListQuery(filter)

	var articles []drift.Article
	err := s.withRead(ctx, "list articles", func(db *sql.DB) error {
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

func buildListQuery(filter drift.ArticleFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.FeedID != "" {
		where = append(where, "a.feed_id = ?")
		args = append(args, filter.FeedID)
	}
	if filter.UnreadOnly {
		where = append(where, "a.read = 0")
	}
	if filter.BookmarkedOnly {
		where = append(where, "b.article_id IS NOT NULL")
	}
	if filter.Tag != "" {
		where = append(where, "',' || COALESCE(b.tags, '') || ',' LIKE '%,' || ? || ',%'")
		args = append(args, strings.TrimSpace(filter.Tag))
	}
	if filter.Query != "" {
		where = append(where, "(a.title LIKE '%' || ? || '%' OR a.description LIKE '%' || ? || '%')")
		args = append(args, filter.Query, filter.Query)
	}

	query := `SELECT ` + articleColumns + articleFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.published_at DESC, a.rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return query, args
}

// SetRead flips the read flag. Read state is display state, not content, so
// it does not move the mutation stamp.
func (s *Store) SetRead(ctx context.Context, id string, read bool) error {
	return s.withWrite(ctx, "set read "+id, func(tx *sql.Tx) error {
		readValue := 0
		if read {
			readValue = 1
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE articles SET read = ? WHERE id = ?`, readValue, id)
		if err != nil {
			return err
		}

		return requireRow(result)
	})
}

// WriteInsight stores the generated insight and its language, replacing any
// prior value.
func (s *Store) WriteInsight(ctx context.Context, id, text, lang string) error {
	return s.withWrite(ctx, "write insight "+id, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE articles SET insight = ?, insight_lang = ?, updated_at = ? WHERE id = ?`,
			text, lang, timeToDB(s.now()), id)
		if err != nil {
			return err
		}

		return requireRow(result)
	})
}

// WriteTranslation stores translated title and description metadata.
func (s *Store) WriteTranslation(ctx context.Context, id string, tr drift.Translation) error {
	return s.withWrite(ctx, "write translation "+id, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE articles SET translated_title = ?, translated_description = ?, updated_at = ? WHERE id = ?`,
			tr.Title, tr.Description, timeToDB(s.now()), id)
		if err != nil {
			return err
		}

		return requireRow(result)
	})
}

// WriteTranslatedBody stores the full-body translation.
func (s *Store) WriteTranslatedBody(ctx context.Context, id, body string) error {
	return s.withWrite(ctx, "write translated body "+id, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE articles SET translated_body = ?, updated_at = ? WHERE id = ?`,
			body, timeToDB(s.now()), id)
		if err != nil {
			return err
		}

		return requireRow(result)
	})
}

// Stats returns the counters shown in the status line.
func (s *Store) Stats(ctx context.Context) (drift.Stats, error) {
	var stats drift.Stats
	err := s.withRead(ctx, "stats", func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `
			SELECT COUNT(*),
			       COALESCE(SUM(CASE WHEN read = 0 THEN 1 ELSE 0 END), 0),
			       (SELECT COUNT(*) FROM bookmarks)
			FROM articles`,
		).Scan(&stats.Total, &stats.Unread, &stats.Bookmarked)
	})
	if err != nil {
		return drift.Stats{}, err
	}

	return stats, nil
}

// requireRow converts a zero-row mutation into drift.ErrNotFound.
func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return drift.ErrNotFound
	}

	return nil
}

// scanner is the shared subset of sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (drift.Article, error) {
	var (
		article      drift.Article
		published    string
		fetched      string
		updated      string
		read         int
		bmArticleID  sql.NullString
		bmBookmarked sql.NullString
		bmMemo       sql.NullString
		bmTags       sql.NullString
	)
	if err := row.Scan(
		&article.ID, &article.FeedID, &article.FeedName,
		&article.Title, &article.Link, &article.Description,
		&published, &fetched, &updated, &read,
		&article.Insight, &article.InsightLang,
		&article.TranslatedTitle, &article.TranslatedDescription, &article.TranslatedBody,
		&bmArticleID, &bmBookmarked, &bmMemo, &bmTags,
	); err != nil {
		return drift.Article{}, err
	}

	article.PublishedAt = timeFromDB(published)
	article.FetchedAt = timeFromDB(fetched)
	article.UpdatedAt = timeFromDB(updated)
	article.Read = read != 0

	if bmArticleID.Valid {
		article.Bookmark = &drift.Bookmark{
			ArticleID:    bmArticleID.String,
			BookmarkedAt: timeFromDB(bmBookmarked.String),
			Memo:         bmMemo.String,
			Tags:         splitTags(bmTags.String),
		}
	}

	return article, nil
}
