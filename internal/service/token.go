package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rryowa/blogauth/internal/storage"
	"github.com/rryowa/blogauth/internal/util"
)

var (
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenInvalid         = errors.New("token invalid")
	ErrTokenMalformed       = errors.New("token is malformed")
	ErrTokenRevoked         = errors.New("token revoked")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)

const (
	audienceAccess  = "access"
	audienceRefresh = "refresh"
)

type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	tokenStorage  storage.TokenStorage
	now           func() time.Time
}

func NewTokenService(cfg *util.TokenConfig, tokenStorage storage.TokenStorage) *TokenService {
	return &TokenService{
		accessSecret:  cfg.AccessSecretKey,
		refreshSecret: cfg.RefreshSecretKey,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		tokenStorage:  tokenStorage,
		now:           time.Now,
	}
}

type jwtClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

func (ts *TokenService) SignAccess(userID string) (string, error) {
	return ts.sign(userID, audienceAccess, ts.accessSecret, ts.accessTTL)
}

func (ts *TokenService) SignRefresh(userID string) (string, error) {
	return ts.sign(userID, audienceRefresh, ts.refreshSecret, ts.refreshTTL)
}

// sign issues an HS512 token. The random JTI keeps two tokens signed for the
// same user within one second distinct.
func (ts *TokenService) sign(userID, audience string, secret []byte, ttl time.Duration) (string, error) {
	now := ts.now()
	claims := &jwtClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signed string: %w", err)
	}

	return signedToken, nil
}

// VerifyAccess checks the denylist first, then signature and expiry. There is
// no leeway: a token is rejected from the second its exp passes.
func (ts *TokenService) VerifyAccess(ctx context.Context, token string) (string, error) {
	isInvalidated, err := ts.IsAccessTokenInvalidated(ctx, token)
	if err != nil {
		return "", fmt.Errorf("failed to check if token is invalidated: %w", err)
	}
	if isInvalidated {
		return "", ErrTokenRevoked
	}

	claims, err := ts.parse(token, audienceAccess, ts.accessSecret)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (ts *TokenService) VerifyRefresh(token string) (string, error) {
	claims, err := ts.parse(token, audienceRefresh, ts.refreshSecret)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (ts *TokenService) parse(token, audience string, secret []byte) (*jwtClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(ts.now),
	}

	parsedToken, err := jwt.ParseWithClaims(
		token,
		&jwtClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return secret, nil
		},
		opts...,
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
		default:
			return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
		}
	}

	if parsedToken == nil || !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(*jwtClaims)
	if !ok || claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// InvalidateAccessToken denylists the token until it would have expired anyway.
func (ts *TokenService) InvalidateAccessToken(ctx context.Context, accessToken string) error {
	claims, err := ts.getClaimsFromToken(accessToken)
	if err != nil {
		return fmt.Errorf("get claims from token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return nil
	}

	expiration := claims.ExpiresAt.Sub(ts.now())

	if err := ts.tokenStorage.InvalidateToken(ctx, accessToken, expiration); err != nil {
		return fmt.Errorf("invalidate token: %w", err)
	}
	return nil
}

func (ts *TokenService) IsAccessTokenInvalidated(ctx context.Context, accessToken string) (bool, error) {
	isInvalidated, err := ts.tokenStorage.IsTokenInvalidated(ctx, accessToken)
	if err != nil {
		return false, fmt.Errorf("is token invalidated: %w", err)
	}
	return isInvalidated, nil
}

func (ts *TokenService) getClaimsFromToken(token string) (*jwtClaims, error) {
	parsedToken, _, err := new(jwt.Parser).ParseUnverified(token, &jwtClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	claims, ok := parsedToken.Claims.(*jwtClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
