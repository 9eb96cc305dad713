package artifacts

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func newStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "pdfs"), nil)
	require.NoError(t, err)
	return s
}

func TestLocalStore_Path(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	path, err := s.Path("CN1234567A.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "CN1234567A.pdf"), path)

	for _, bad := range []string{"", "../etc/passwd.pdf", "a/b.pdf", `a\b.pdf`, ".hidden.pdf", "notes.txt", ".."} {
		_, err := s.Path(bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
		assert.ErrorIs(t, err, domain.ErrValidation, bad)
	}
}

func TestLocalStore_SaveAndDescribe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	path, err := s.Save(ctx, "CN1234567A.pdf", bytes.NewReader(samplePDF))
	require.NoError(t, err)
	assert.FileExists(t, path)
	leftovers, err := filepath.Glob(filepath.Join(s.Dir(), "*"+partSuffix))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	name, ok := s.Lookup("CN1234567A")
	assert.True(t, ok)
	assert.Equal(t, "CN1234567A.pdf", name)

	artifact, err := s.Describe(ctx, "CN1234567A.pdf")
	require.NoError(t, err)
	assert.Equal(t, "CN1234567A", artifact.ResourceKey)
	assert.Equal(t, int64(len(samplePDF)), artifact.Size)
	assert.Equal(t, "application/pdf", artifact.MIMEType)
	assert.Len(t, artifact.Digest, 64)

	_, err = s.Describe(ctx, "CN7654321A.pdf")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}

func TestLocalStore_OverlappingSavesOfOneName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	payload := func(fill byte) []byte {
		return append(append([]byte{}, samplePDF...), bytes.Repeat([]byte{fill}, 8000)...)
	}
	first, second := payload('A'), payload('B')
	split := len(samplePDF)

	type result struct {
		path string
		err  error
	}
	save := func(r io.Reader) <-chan result {
		done := make(chan result, 1)
		go func() {
			path, err := s.Save(ctx, "CN1234567A.pdf", r)
			done <- result{path, err}
		}()
		return done
	}

	firstR, firstW := io.Pipe()
	secondR, secondW := io.Pipe()
	firstDone := save(firstR)

	// The first save has consumed its header before the second one starts.
	_, err := firstW.Write(first[:split])
	require.NoError(t, err)
	secondDone := save(secondR)
	_, err = secondW.Write(second[:split])
	require.NoError(t, err)

	_, err = firstW.Write(first[split:])
	require.NoError(t, err)
	require.NoError(t, firstW.Close())
	res := <-firstDone
	require.NoError(t, res.err)

	_, err = secondW.Write(second[split:])
	require.NoError(t, err)
	require.NoError(t, secondW.Close())
	res = <-secondDone
	require.NoError(t, res.err)

	got, err := os.ReadFile(res.path)
	require.NoError(t, err)
	assert.Equal(t, second, got, "last finished save must win intact")

	leftovers, err := filepath.Glob(filepath.Join(s.Dir(), "*"+partSuffix))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestLocalStore_SaveRejectsNonPDF(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Save(ctx, "CN1234567A.pdf", strings.NewReader("<html><body>session expired</body></html>"))
	assert.ErrorIs(t, err, ErrNotPDF)
	assert.ErrorIs(t, err, domain.ErrTransientExternal)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "partial file must be removed")

	_, ok := s.Lookup("CN1234567A")
	assert.False(t, ok)
}

func TestLocalStore_SaveStopsOnCancelledContext(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Save(ctx, "CN1234567A.pdf", bytes.NewReader(samplePDF))
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := s.Lookup("CN1234567A")
	assert.False(t, ok)
}

func TestLocalStore_ListNewestFirstPDFOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	old := filepath.Join(s.Dir(), "CN1111111A.pdf")
	recent := filepath.Join(s.Dir(), "CN2222222A.pdf")
	require.NoError(t, os.WriteFile(old, samplePDF, 0o644))
	require.NoError(t, os.WriteFile(recent, samplePDF, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "CN3333333A.pdf.part"), []byte("x"), 0o644))

	now := time.Now()
	require.NoError(t, os.Chtimes(old, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(recent, now, now))

	artifacts, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, "CN2222222A.pdf", artifacts[0].Name)
	assert.Equal(t, "CN1111111A.pdf", artifacts[1].Name)

	catalog := NewDirCatalog(s)
	require.NoError(t, catalog.Record(ctx, artifacts[0]))
	listed, err := catalog.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, artifacts, listed)
}

func TestLocalStore_Open(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "CN1234567A.pdf"), samplePDF, 0o644))

	f, info, err := s.Open("CN1234567A.pdf")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, int64(len(samplePDF)), info.Size())

	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, content)

	_, _, err = s.Open("CN0000000A.pdf")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
	_, _, err = s.Open("../secret.pdf")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestLocalStore_LookupIgnoresEmptyFiles(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "CN1234567A.pdf"), nil, 0o644))

	_, ok := s.Lookup("CN1234567A")
	assert.False(t, ok)
}
