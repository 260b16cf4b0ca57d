package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/blogauth/internal/models"
	"github.com/rryowa/blogauth/internal/storage"
)

const (
	refreshUserPrefix  = "refresh:user:"
	refreshTokenPrefix = "refresh:token:"
)

// Each user has refresh:user:<id> -> token and refresh:token:<token> -> id.
// Both keys change inside one script, so a reader never sees half an upsert.
//
//nolint:gochecknoglobals // compiled scripts
var (
	upsertScript = redis.NewScript(`
local old = redis.call('GET', KEYS[1])
if old then
	redis.call('DEL', ARGV[3] .. old)
end
redis.call('SET', KEYS[1], ARGV[2])
redis.call('SET', ARGV[3] .. ARGV[2], ARGV[1])
redis.call('SET', KEYS[1] .. ':updated_at', ARGV[4])
return 1
`)

	rotateScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[2] then
	return 0
end
redis.call('DEL', ARGV[4] .. ARGV[2])
redis.call('SET', KEYS[1], ARGV[3])
redis.call('SET', ARGV[4] .. ARGV[3], ARGV[1])
redis.call('SET', KEYS[1] .. ':updated_at', ARGV[5])
return 1
`)

	deleteByTokenScript = redis.NewScript(`
local uid = redis.call('GET', KEYS[1])
if not uid then
	return 0
end
redis.call('DEL', KEYS[1])
local userKey = ARGV[1] .. uid
if redis.call('GET', userKey) == ARGV[2] then
	redis.call('DEL', userKey, userKey .. ':updated_at')
end
return 1
`)
)

type RefreshTokenStorage struct {
	client *redis.Client
}

func NewRefreshTokenStorage(client *redis.Client) *RefreshTokenStorage {
	return &RefreshTokenStorage{client: client}
}

func (s *RefreshTokenStorage) UpsertRefreshToken(ctx context.Context, userID, token string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := upsertScript.Run(ctx, s.client,
		[]string{refreshUserPrefix + userID},
		userID, token, refreshTokenPrefix, now,
	).Err()
	if err != nil {
		return fmt.Errorf("upsert refresh token: %w", err)
	}
	return nil
}

func (s *RefreshTokenStorage) RotateRefreshToken(ctx context.Context, userID, oldToken, newToken string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	swapped, err := rotateScript.Run(ctx, s.client,
		[]string{refreshUserPrefix + userID},
		userID, oldToken, newToken, refreshTokenPrefix, now,
	).Int()
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if swapped == 0 {
		return storage.ErrRefreshTokenNotFound
	}
	return nil
}

func (s *RefreshTokenStorage) FindMatchingRefreshToken(
	ctx context.Context,
	userID, token string,
) (*models.RefreshTokenRecord, error) {
	values, err := s.client.MGet(ctx, refreshUserPrefix+userID, refreshUserPrefix+userID+":updated_at").Result()
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	current, _ := values[0].(string)
	if current == "" || current != token {
		return nil, storage.ErrRefreshTokenNotFound
	}

	record := &models.RefreshTokenRecord{UserID: userID, Token: current}
	if raw, ok := values[1].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			record.UpdatedAt = ts
		}
	}
	return record, nil
}

func (s *RefreshTokenStorage) DeleteRefreshToken(ctx context.Context, token string) error {
	err := deleteByTokenScript.Run(ctx, s.client,
		[]string{refreshTokenPrefix + token},
		refreshUserPrefix, token,
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
