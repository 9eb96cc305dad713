package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/platform/logger"
	"github.com/phrazzld/patentgate/internal/store"
)

// CatalogStore implements store.ArtifactCatalog on the artifacts table.
type CatalogStore struct {
	db *sql.DB
}

var _ store.ArtifactCatalog = (*CatalogStore)(nil)

// NewCatalogStore creates a catalog backed by db.
func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// Record upserts the artifact. Re-fetching a document replaces its metadata
// and bumps fetch_count.
func (s *CatalogStore) Record(ctx context.Context, artifact domain.Artifact) error {
	log := logger.FromContext(ctx)

	if artifact.Name == "" {
		return store.NewStoreError("artifact", "record", "name is required", store.ErrInvalidEntity)
	}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO artifacts (name, resource_key, size_bytes, digest, mime_type, fetched_at, fetch_count)
			VALUES ($1, $2, $3, $4, $5, $6, 1)
			ON CONFLICT (name) DO UPDATE SET
				resource_key = EXCLUDED.resource_key,
				size_bytes   = EXCLUDED.size_bytes,
				digest       = EXCLUDED.digest,
				mime_type    = EXCLUDED.mime_type,
				fetched_at   = EXCLUDED.fetched_at,
				fetch_count  = artifacts.fetch_count + 1
		`,
			artifact.Name,
			artifact.ResourceKey,
			artifact.Size,
			artifact.Digest,
			artifact.MIMEType,
			artifact.FetchedAt.UTC(),
		)
		return err
	})
	if err != nil {
		log.Error("failed to record artifact",
			slog.String("artifact", artifact.Name),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to record artifact: %w", MapError(err))
	}
	return nil
}

// List returns all recorded artifacts, most recently fetched first.
func (s *CatalogStore) List(ctx context.Context) ([]domain.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, resource_key, size_bytes, digest, mime_type, fetched_at, fetch_count
		FROM artifacts
		ORDER BY fetched_at DESC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	artifacts := []domain.Artifact{}
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(&a.Name, &a.ResourceKey, &a.Size, &a.Digest, &a.MIMEType, &a.FetchedAt, &a.FetchCount); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", MapError(err))
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate artifacts: %w", MapError(err))
	}
	return artifacts, nil
}
