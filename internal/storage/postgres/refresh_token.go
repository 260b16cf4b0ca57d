package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rryowa/blogauth/internal/models"
	"github.com/rryowa/blogauth/internal/storage"
)

type RefreshTokenRepository struct {
	db storage.DBTX
}

func NewRefreshTokenRepository(db storage.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// UpsertRefreshToken replaces the user's token in one statement, so concurrent
// logins for the same user serialize on the primary key and the last one wins.
func (r *RefreshTokenRepository) UpsertRefreshToken(ctx context.Context, userID, token string) error {
	query := `INSERT INTO refresh_tokens (user_id, token, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, userID, token); err != nil {
		return fmt.Errorf("upsert refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) RotateRefreshToken(ctx context.Context, userID, oldToken, newToken string) error {
	query := `UPDATE refresh_tokens SET token = $3, updated_at = now() WHERE user_id = $1 AND token = $2`
	res, err := r.db.ExecContext(ctx, query, userID, oldToken, newToken)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if n == 0 {
		return storage.ErrRefreshTokenNotFound
	}
	return nil
}

func (r *RefreshTokenRepository) FindMatchingRefreshToken(
	ctx context.Context,
	userID, token string,
) (*models.RefreshTokenRecord, error) {
	var record models.RefreshTokenRecord
	query := `SELECT user_id, token, updated_at FROM refresh_tokens WHERE user_id = $1 AND token = $2`
	err := r.db.QueryRowContext(ctx, query, userID, token).Scan(&record.UserID, &record.Token, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &record, nil
}

func (r *RefreshTokenRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	query := `DELETE FROM refresh_tokens WHERE token = $1`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
