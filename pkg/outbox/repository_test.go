package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return gdb, mock
}

func TestRepository_MarkPublished(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `outbox` SET `published_at`").
		WithArgs(sqlmock.AnyArg(), "o-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.MarkPublished(context.Background(), "o-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_MarkPublished_NotFound(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `outbox`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.MarkPublished(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRepository_MarkFailed(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `outbox` SET `attempts`=attempts \\+ 1,`last_error`=\\?").
		WithArgs("boom", "o-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.MarkFailed(context.Background(), "o-1", errors.New("boom")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Pending(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewRepository(gdb)

	rows := sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "topic", "message_key", "payload", "headers", "attempts"}).
		AddRow("o-1", "req-1", "request.accepted", "booking.notifications", "req-1", []byte(`{}`), []byte(`{"trace_id":"t"}`), 0)
	mock.ExpectQuery("SELECT \\* FROM `outbox` WHERE published_at IS NULL ORDER BY attempts ASC, created_at ASC LIMIT \\?").
		WithArgs(10).
		WillReturnRows(rows)

	recs, err := repo.Pending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "req-1", recs[0].Key)
	assert.Equal(t, "t", recs[0].Headers["trace_id"])
}
