package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/social-backbone/internal/domain"
	"github.com/cuongbtq/social-backbone/shared/logger"
	"github.com/cuongbtq/social-backbone/shared/postgresql"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client := postgresql.NewFromDB(sqlx.NewDb(db, "postgres"), logger.Nop())
	return NewStorage(client, logger.Nop()), mock
}

func TestStorage_EnsureSchema(t *testing.T) {
	s, mock := newMockStorage(t)
	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_UpsertUser(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("u1", "", "a@b.com", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpsertUser(context.Background(), domain.User{ID: "u1", Email: "a@b.com"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_UpdateMissingUser(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateBasicInfo(context.Background(), "u404", domain.BasicInfo{Quote: "hi"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_GetNotificationSettings(t *testing.T) {
	s, mock := newMockStorage(t)
	rows := sqlmock.NewRows([]string{"messages", "reactions", "comments", "follows"}).
		AddRow(true, false, true, false)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).WithArgs("u1").WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).WithArgs("u404").WillReturnError(sql.ErrNoRows)

	settings, err := s.GetNotificationSettings(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationSettings{Messages: true, Comments: true}, settings)

	_, err = s.GetNotificationSettings(context.Background(), "u404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_UpsertPostUsesNamedParameters(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO posts")).
		WithArgs("p1", "u1", "alice", "hello", "", "", "", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertPost(context.Background(), domain.Post{ID: "p1", UserID: "u1", Username: "alice", Text: "hello"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_SetBlockedRunsInTransaction(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blocks")).WithArgs("u1", "u2").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM followers")).WithArgs("u1", "u2").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, s.SetBlocked(context.Background(), domain.BlockUser{UserID: "u1", BlockedUserID: "u2", Blocked: true}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_SetBlockedRollsBack(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blocks")).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := s.SetBlocked(context.Background(), domain.BlockUser{UserID: "u1", BlockedUserID: "u2", Blocked: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to block user")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_Unblock(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM blocks")).WithArgs("u1", "u2").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SetBlocked(context.Background(), domain.BlockUser{UserID: "u1", BlockedUserID: "u2"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_MarkNotificationRead(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications")).WithArgs("n1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications")).WithArgs("n2").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.MarkNotificationRead(context.Background(), "n1"))
	assert.ErrorIs(t, s.MarkNotificationRead(context.Background(), "n2"), domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_WrapsDriverErrors(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM images")).WillReturnError(errors.New("boom"))

	err := s.DeleteImage(context.Background(), "u1", "i1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete image")
}
