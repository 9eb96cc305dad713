package artifacts

import (
	"context"
	"log/slog"

	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/store"
)

// DirCatalog is the catalog used when no database is configured: the
// directory itself is the record, so Record only logs.
type DirCatalog struct {
	files *LocalStore
}

var _ store.ArtifactCatalog = (*DirCatalog)(nil)

// NewDirCatalog wraps files as a catalog.
func NewDirCatalog(files *LocalStore) *DirCatalog {
	return &DirCatalog{files: files}
}

// Record logs the fetched artifact.
func (c *DirCatalog) Record(ctx context.Context, artifact domain.Artifact) error {
	c.files.logger.DebugContext(ctx, "artifact recorded",
		slog.String("artifact", artifact.Name),
		slog.String("digest", artifact.Digest))
	return nil
}

// List scans the directory.
func (c *DirCatalog) List(ctx context.Context) ([]domain.Artifact, error) {
	return c.files.List(ctx)
}
