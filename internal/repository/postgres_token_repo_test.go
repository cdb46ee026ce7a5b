package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/todoapi/internal/model"
)

var tokenRowColumns = []string{"id", "public_id", "user_id", "name", "token_hash", "last_used_at", "expires_at", "created_at"}

func newTokenRepoMock(t *testing.T) (*PostgresTokenRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresTokenRepo(db), mock
}

func TestPostgresTokenRepo_Create_SetsID(t *testing.T) {
	repo, mock := newTokenRepoMock(t)
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	token := &model.AccessToken{
		PublicID: "0b7f2c1e-6c1a-4f3e-9d52-0f8f6a3a9e11", UserID: 3, Name: "api-token", TokenHash: "abc", CreatedAt: now,
	}

	mock.ExpectQuery(`INSERT INTO personal_access_tokens`).
		WithArgs(token.PublicID, int64(3), "api-token", "abc", sqlmock.AnyArg(), now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	require.NoError(t, repo.Create(context.Background(), token))
	assert.Equal(t, int64(11), token.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTokenRepo_FindByPublicID_MapsNullableTimes(t *testing.T) {
	repo, mock := newTokenRepoMock(t)
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	expires := now.Add(24 * time.Hour)

	mock.ExpectQuery(`SELECT .* FROM personal_access_tokens\s+WHERE public_id = \$1`).
		WithArgs("pid").
		WillReturnRows(sqlmock.NewRows(tokenRowColumns).
			AddRow(int64(11), "pid", int64(3), "api-token", "abc", nil, expires, now))

	token, err := repo.FindByPublicID(context.Background(), "pid")
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Nil(t, token.LastUsedAt)
	require.NotNil(t, token.ExpiresAt)
	assert.True(t, expires.Equal(*token.ExpiresAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTokenRepo_FindByPublicID_NotFoundReturnsNil(t *testing.T) {
	repo, mock := newTokenRepoMock(t)

	mock.ExpectQuery(`SELECT .* FROM personal_access_tokens`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	token, err := repo.FindByPublicID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestPostgresTokenRepo_TouchAndDelete(t *testing.T) {
	repo, mock := newTokenRepoMock(t)
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE personal_access_tokens SET last_used_at = \$1 WHERE id = \$2`).
		WithArgs(now, int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM personal_access_tokens WHERE id = \$1`).
		WithArgs(int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Touch(context.Background(), 11, now))
	require.NoError(t, repo.DeleteByID(context.Background(), 11))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTokenRepo_DeleteByID_WrapsError(t *testing.T) {
	repo, mock := newTokenRepoMock(t)

	mock.ExpectExec(`DELETE FROM personal_access_tokens`).
		WillReturnError(errors.New("connection reset"))

	err := repo.DeleteByID(context.Background(), 11)
	assert.ErrorContains(t, err, "failed to delete token")
}
