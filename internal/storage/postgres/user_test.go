package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rryowa/blogauth/internal/models"
	"github.com/rryowa/blogauth/internal/storage"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var userColumns = []string{"id", "username", "email", "password_hash", "created_at"}

func TestUserRepository_ExistsByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`)).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ExistsByUsername_DBError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`)).
		WithArgs("alice01").
		WillReturnError(errors.New("db down"))

	_, err := repo.ExistsByUsername(context.Background(), "alice01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check username exists")
}

func TestUserRepository_CreateUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users\s+\(id, username, email, password_hash\)`).
		WithArgs("u-1", "alice01", "alice@example.com", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	user, err := repo.CreateUser(context.Background(), models.User{
		ID: "u-1", Username: "alice01", Email: "alice@example.com", PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.True(t, user.CreatedAt.Equal(created))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateUser_UniqueViolation(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo.CreateUser(context.Background(), models.User{ID: "u-1", Username: "alice01"})
	assert.ErrorIs(t, err, storage.ErrUserExists)
}

func TestUserRepository_GetUserByUsername(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	created := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE username = $1`)).
		WithArgs("alice01").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow("u-1", "alice01", "alice@example.com", "hash", created))

	user, err := repo.GetUserByUsername(context.Background(), "alice01")
	require.NoError(t, err)
	assert.Equal(t, "hash", user.PasswordHash)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestUserRepository_GetUserByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}
