package artifacts

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/phrazzld/patentgate/internal/domain"
	"golang.org/x/crypto/blake2b"
)

const (
	pdfMIME    = "application/pdf"
	pdfExt     = ".pdf"
	partSuffix = ".part"
)

// Errors returned by LocalStore.
var (
	ErrInvalidName = fmt.Errorf("%w: invalid artifact name", domain.ErrValidation)
	ErrNotPDF      = fmt.Errorf("%w: downloaded content is not a PDF", domain.ErrTransientExternal)
)

// LocalStore is the artifact directory.
type LocalStore struct {
	dir    string
	logger *slog.Logger
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string, logger *slog.Logger) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("artifact directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStore{
		dir:    dir,
		logger: logger.With(slog.String("component", "artifact_store")),
	}, nil
}

// Dir returns the directory root.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Path resolves name inside the directory. Only bare *.pdf file names are accepted.
func (s *LocalStore) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, `/\`) || !strings.HasSuffix(strings.ToLower(name), pdfExt) {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

// Lookup reports whether the artifact for resourceKey already exists locally.
func (s *LocalStore) Lookup(resourceKey string) (string, bool) {
	name := domain.ArtifactFileName(resourceKey)
	path, err := s.Path(name)
	if err != nil {
		return name, false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return name, false
	}
	return name, true
}

// Save streams r into name via a temporary .part file unique to this call. The
// content must sniff as PDF, otherwise the partial file is removed and ErrNotPDF
// is returned. Concurrent saves of one name never share a partial file; the
// last rename wins.
func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(s.dir, name+".*"+partSuffix)
	if err != nil {
		return "", fmt.Errorf("failed to create partial file: %w", err)
	}
	partPath := f.Name()
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		_ = os.Remove(partPath)
		return "", fmt.Errorf("failed to create partial file: %w", err)
	}

	written, copyErr := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(partPath)
		if copyErr != nil {
			return "", fmt.Errorf("failed to write artifact: %w", copyErr)
		}
		return "", fmt.Errorf("failed to close artifact: %w", closeErr)
	}

	mt, err := mimetype.DetectFile(partPath)
	if err != nil || !mt.Is(pdfMIME) {
		_ = os.Remove(partPath)
		detected := "unknown"
		if mt != nil {
			detected = mt.String()
		}
		s.logger.WarnContext(ctx, "rejected non-PDF artifact",
			slog.String("artifact", name),
			slog.String("detected_mime", detected),
			slog.Int64("bytes", written))
		return "", ErrNotPDF
	}

	if err := os.Rename(partPath, path); err != nil {
		_ = os.Remove(partPath)
		return "", fmt.Errorf("failed to finalize artifact: %w", err)
	}

	s.logger.InfoContext(ctx, "artifact saved",
		slog.String("artifact", name),
		slog.Int64("bytes", written))
	return path, nil
}

// Describe builds the catalog metadata for name.
func (s *LocalStore) Describe(_ context.Context, name string) (domain.Artifact, error) {
	path, err := s.Path(name)
	if err != nil {
		return domain.Artifact{}, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Artifact{}, domain.ErrArtifactNotFound
	}
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("failed to stat artifact: %w", err)
	}

	digest, err := fileDigest(path)
	if err != nil {
		return domain.Artifact{}, err
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("failed to detect artifact type: %w", err)
	}

	return domain.Artifact{
		Name:        name,
		ResourceKey: strings.TrimSuffix(name, pdfExt),
		Size:        info.Size(),
		Digest:      digest,
		MIMEType:    mt.String(),
		FetchedAt:   info.ModTime().UTC(),
	}, nil
}

// List scans the directory for PDFs, newest first.
func (s *LocalStore) List(_ context.Context) ([]domain.Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	artifacts := make([]domain.Artifact, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(name), pdfExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, domain.Artifact{
			Name:        name,
			ResourceKey: strings.TrimSuffix(name, pdfExt),
			Size:        info.Size(),
			MIMEType:    pdfMIME,
			FetchedAt:   info.ModTime().UTC(),
		})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].FetchedAt.Equal(artifacts[j].FetchedAt) {
			return artifacts[i].Name < artifacts[j].Name
		}
		return artifacts[i].FetchedAt.After(artifacts[j].FetchedAt)
	})
	return artifacts, nil
}

// Open opens the artifact for reading.
func (s *LocalStore) Open(name string) (*os.File, fs.FileInfo, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, domain.ErrArtifactNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("failed to stat artifact: %w", err)
	}
	return f, info, nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create hash: %w", err)
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash artifact: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
