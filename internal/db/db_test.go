package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func newMockDB(t *testing.T) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = bunDB.Close() })
	return bunDB, mock
}

func TestInitDB_CreatesTables(t *testing.T) {
	bunDB, mock := newMockDB(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "uploads"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "exchanges"`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, InitDB(context.Background(), bunDB))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDropAll(t *testing.T) {
	bunDB, mock := newMockDB(t)
	mock.ExpectExec(`DROP TABLE IF EXISTS "uploads"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP TABLE IF EXISTS "exchanges"`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, DropAll(context.Background(), bunDB))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDropAll_PropagatesError(t *testing.T) {
	bunDB, mock := newMockDB(t)
	mock.ExpectExec(`DROP TABLE IF EXISTS "uploads"`).WillReturnError(assert.AnError)

	require.Error(t, DropAll(context.Background(), bunDB))
}

func TestListUploads_OldestFirst(t *testing.T) {
	bunDB, mock := newMockDB(t)
	rows := sqlmock.NewRows([]string{"id", "filename", "media_type", "chunk_count", "created_at"}).
		AddRow(int64(1), "report.pdf", "document", 12, time.Now().Add(-time.Hour)).
		AddRow(int64(2), "talk.mp3", "audio", 4, time.Now())
	mock.ExpectQuery(`SELECT (.+) FROM "uploads" (.+) ORDER BY "created_at" ASC`).WillReturnRows(rows)

	uploads, err := ListUploads(context.Background(), bunDB)
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, "report.pdf", uploads[0].Filename)
	assert.Equal(t, "audio", uploads[1].MediaType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListExchanges_Limit(t *testing.T) {
	bunDB, mock := newMockDB(t)
	rows := sqlmock.NewRows([]string{"id", "question", "answer", "source", "created_at"}).
		AddRow(int64(1), "q1", "a1", "s1", time.Now())
	mock.ExpectQuery(`SELECT (.+) FROM "exchanges" (.+) ORDER BY "created_at" ASC LIMIT 1`).WillReturnRows(rows)

	exchanges, err := ListExchanges(context.Background(), bunDB, 1)
	require.NoError(t, err)
	require.Len(t, exchanges, 1)
	assert.Equal(t, "q1", exchanges[0].Question)
	assert.NoError(t, mock.ExpectationsWereMet())
}
