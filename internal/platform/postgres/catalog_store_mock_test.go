package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogStore_RecordUpsertsInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	fetchedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO artifacts")).
		WithArgs("CN1234567A.pdf", "CN1234567A", int64(42), "abc", "application/pdf", fetchedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = NewCatalogStore(db).Record(context.Background(), domain.Artifact{
		Name:        "CN1234567A.pdf",
		ResourceKey: "CN1234567A",
		Size:        42,
		Digest:      "abc",
		MIMEType:    "application/pdf",
		FetchedAt:   fetchedAt,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogStore_RecordRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO artifacts")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = NewCatalogStore(db).Record(context.Background(), domain.Artifact{Name: "CN1234567A.pdf"})

	assert.ErrorContains(t, err, "failed to record artifact")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogStore_ListScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	fetchedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"name", "resource_key", "size_bytes", "digest", "mime_type", "fetched_at", "fetch_count"}).
		AddRow("CN1234567A.pdf", "CN1234567A", int64(42), "abc", "application/pdf", fetchedAt, 3)
	mock.ExpectQuery(regexp.QuoteMeta("FROM artifacts")).WillReturnRows(rows)

	artifacts, err := NewCatalogStore(db).List(context.Background())

	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "CN1234567A.pdf", artifacts[0].Name)
	assert.Equal(t, 3, artifacts[0].FetchCount)
	assert.True(t, fetchedAt.Equal(artifacts[0].FetchedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}
