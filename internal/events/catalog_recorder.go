package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/store"
)

// ArtifactDescriber computes catalog metadata for a stored artifact.
type ArtifactDescriber interface {
	Describe(ctx context.Context, name string) (domain.Artifact, error)
}

// CatalogRecorder records every completed artifact in the catalog.
type CatalogRecorder struct {
	files   ArtifactDescriber
	catalog store.ArtifactCatalog
	logger  *slog.Logger
}

var _ EventHandler = (*CatalogRecorder)(nil)

// NewCatalogRecorder creates the handler.
func NewCatalogRecorder(files ArtifactDescriber, catalog store.ArtifactCatalog, logger *slog.Logger) *CatalogRecorder {
	return &CatalogRecorder{
		files:   files,
		catalog: catalog,
		logger:  logger.With(slog.String("component", "catalog_recorder")),
	}
}

// HandleEvent ignores everything but completed tasks.
func (r *CatalogRecorder) HandleEvent(ctx context.Context, event *TaskEvent) error {
	if event.Status != domain.FetchStatusCompleted || event.ArtifactName == "" {
		return nil
	}

	artifact, err := r.files.Describe(ctx, event.ArtifactName)
	if err != nil {
		return fmt.Errorf("failed to describe artifact %s: %w", event.ArtifactName, err)
	}
	artifact.ResourceKey = event.ResourceKey
	artifact.FetchedAt = event.OccurredAt

	if err := r.catalog.Record(ctx, artifact); err != nil {
		return fmt.Errorf("failed to record artifact %s: %w", event.ArtifactName, err)
	}

	r.logger.InfoContext(ctx, "artifact recorded",
		slog.String("task_id", event.TaskID),
		slog.String("artifact", artifact.Name),
		slog.Int64("size", artifact.Size),
		slog.String("digest", artifact.Digest))
	return nil
}
