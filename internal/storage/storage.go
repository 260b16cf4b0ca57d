package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rryowa/blogauth/internal/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Storage interface {
	UserRepository
	RefreshTokenRepository
}

// UserRepository is the credential store. Existence checks and CreateUser are
// separate calls; callers that check first must still handle ErrUserExists.
type UserRepository interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// RefreshTokenRepository keeps at most one record per user. Upsert replaces
// the previous token atomically; there is no TTL at this layer.
//
// RotateRefreshToken swaps oldToken for newToken only while oldToken is still
// the user's record, and returns ErrRefreshTokenNotFound otherwise.
type RefreshTokenRepository interface {
	UpsertRefreshToken(ctx context.Context, userID, token string) error
	RotateRefreshToken(ctx context.Context, userID, oldToken, newToken string) error
	FindMatchingRefreshToken(ctx context.Context, userID, token string) (*models.RefreshTokenRecord, error)
	DeleteRefreshToken(ctx context.Context, token string) error
}

// TokenStorage is a denylist of access tokens revoked before their expiry.
type TokenStorage interface {
	InvalidateToken(ctx context.Context, token string, expiration time.Duration) error
	IsTokenInvalidated(ctx context.Context, token string) (bool, error)
}
