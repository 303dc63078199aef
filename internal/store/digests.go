package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"driftline/pkg/drift"
)

// GetDigest returns the cached digest for a scope. found is false when no
// digest was ever stored for it. Fingerprint comparison is the caller's job;
// the store hands back whatever was persisted last.
func (s *Store) GetDigest(ctx context.Context, scopeKey string) (drift.Digest, bool, error) {
	var (
		digest drift.Digest
		found  bool
	)
	err := s.withRead(ctx, "get digest "+scopeKey, func(db *sql.DB) error {
		var generated string
		err := db.QueryRowContext(ctx,
			`SELECT scope_key, fingerprint, text, generated_at FROM digests WHERE scope_key = ?`,
			scopeKey,
		).Scan(&digest.ScopeKey, &digest.Fingerprint, &digest.Text, &generated)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		digest.GeneratedAt = timeFromDB(generated)
		found = true

		return nil
	})
	if err != nil {
		return drift.Digest{}, false, err
	}

	return digest, found, nil
}

// PutDigest stores a digest, replacing any prior one for the same scope.
func (s *Store) PutDigest(ctx context.Context, digest drift.Digest) error {
	if err := digest.Validate(); err != nil {
		return fmt.Errorf("put digest: %w", err)
	}

	return s.withWrite(ctx, "put digest "+digest.ScopeKey, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO digests (scope_key, fingerprint, text, generated_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(scope_key) DO UPDATE SET
			   fingerprint = excluded.fingerprint,
			   text = excluded.text,
			   generated_at = excluded.generated_at`,
			digest.ScopeKey, digest.Fingerprint, digest.Text, timeToDB(digest.GeneratedAt))

		return err
	})
}

// ClearDigests drops every cached digest and reports how many were removed.
func (s *Store) ClearDigests(ctx context.Context) (int64, error) {
	var removed int64
	err := s.withWrite(ctx, "clear digests", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM digests`)
		if err != nil {
			return err
		}
		removed, err = result.RowsAffected()

		return err
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}
