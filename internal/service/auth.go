package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rryowa/blogauth/internal/models"
	"github.com/rryowa/blogauth/internal/storage"
	"github.com/rryowa/blogauth/internal/util"
)

const (
	msgEmailTaken          = "email is already registered, please use another email"
	msgUsernameTaken       = "username is already taken, please try another name"
	msgInvalidCredentials  = "invalid username or password"
	msgInvalidPassword     = "invalid password"
	msgUnauthorizedRefresh = "unauthorized refresh token"
	msgUnauthorized        = "unauthorized"
	msgUserNotFound        = "user not found"
)

type SessionNotifier interface {
	NotifySessionEvent(ctx context.Context, event models.SessionEvent)
}

// Session is what a successful register, login or refresh hands to the
// transport: the caller's public view and a freshly signed token pair.
type Session struct {
	User         models.UserView
	AccessToken  string
	RefreshToken string
}

type AuthService struct {
	users         storage.UserRepository
	refreshTokens storage.RefreshTokenRepository
	tokens        *TokenService
	hasher        PasswordHasher
	validator     *RequestValidator
	notifier      SessionNotifier
	log           *zap.SugaredLogger
}

func NewAuthService(
	users storage.UserRepository,
	refreshTokens storage.RefreshTokenRepository,
	tokens *TokenService,
	hasher PasswordHasher,
	notifier SessionNotifier,
	log *zap.SugaredLogger,
) *AuthService {
	return &AuthService{
		users:         users,
		refreshTokens: refreshTokens,
		tokens:        tokens,
		hasher:        hasher,
		validator:     NewRequestValidator(),
		notifier:      notifier,
		log:           log,
	}
}

// Register creates the user and opens its first session.
//
// The email and username checks run before the insert and outside any
// transaction, so two concurrent registrations with the same name can both
// pass them. The unique constraints of the store reject the second insert,
// which surfaces as a conflict as well.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, meta models.ClientMeta) (*Session, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	emailInUse, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, s.storageError("check email", err)
	}
	if emailInUse {
		return nil, util.NewConflictError(msgEmailTaken)
	}

	usernameInUse, err := s.users.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, s.storageError("check username", err)
	}
	if usernameInUse {
		return nil, util.NewConflictError(msgUsernameTaken)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return nil, util.NewConflictError(msgUsernameTaken)
		}
		return nil, s.storageError("create user", err)
	}

	session, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Infow("User registered", "userID", user.ID, "ip", meta.IPAddress)
	s.notify(ctx, models.EventRegister, user.ID, meta)

	return session, nil
}

// Login replaces whatever session the user had before: there is one active
// refresh token per account.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest, meta models.ClientMeta) (*Session, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, util.NewAuthenticationError(msgInvalidCredentials, nil)
		}
		return nil, s.storageError("get user", err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, util.NewAuthenticationError(msgInvalidPassword, nil)
	}

	session, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Infow("User logged in", "userID", user.ID, "ip", meta.IPAddress)
	s.notify(ctx, models.EventLogin, user.ID, meta)

	return session, nil
}

// Logout ends the session of userID, the identity the auth gate resolved from
// accessToken. The access token is denylisted before the refresh record is
// touched, so a denylist failure leaves the session intact for a retry. A
// refresh token that is not userID's current record is left alone; unknown
// tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, userID, accessToken, refreshToken string, meta models.ClientMeta) error {
	if accessToken != "" {
		err := s.tokens.InvalidateAccessToken(ctx, accessToken)
		if err != nil && !errors.Is(err, ErrTokenMalformed) {
			return s.storageError("invalidate access token", err)
		}
	}

	_, err := s.refreshTokens.FindMatchingRefreshToken(ctx, userID, refreshToken)
	switch {
	case errors.Is(err, storage.ErrRefreshTokenNotFound):
		s.log.Debugw("Logout without a matching refresh token", "userID", userID)
	case err != nil:
		return s.storageError("find refresh token", err)
	default:
		if err := s.refreshTokens.DeleteRefreshToken(ctx, refreshToken); err != nil {
			return s.storageError("delete refresh token", err)
		}
	}

	s.log.Infow("User logged out", "userID", userID, "ip", meta.IPAddress)
	s.notify(ctx, models.EventLogout, userID, meta)

	return nil
}

// Refresh rotates the pair. A token that verifies but is no longer the stored
// one for its subject was superseded and is rejected.
//
// Two concurrent calls with the same token can both pass the lookup. The
// final swap only succeeds while the presented token is still current, so
// exactly one of them gets a new pair and the other is rejected.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, util.NewAuthenticationError(msgUnauthorizedRefresh, err)
	}

	if _, err := s.refreshTokens.FindMatchingRefreshToken(ctx, userID, refreshToken); err != nil {
		if errors.Is(err, storage.ErrRefreshTokenNotFound) {
			return nil, util.NewAuthenticationError(msgUnauthorizedRefresh, err)
		}
		return nil, s.storageError("find refresh token", err)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, util.NewNotFoundError(msgUserNotFound)
		}
		return nil, s.storageError("get user", err)
	}

	session, err := s.signSession(user)
	if err != nil {
		return nil, err
	}

	err = s.refreshTokens.RotateRefreshToken(ctx, userID, refreshToken, session.RefreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrRefreshTokenNotFound) {
			return nil, util.NewAuthenticationError(msgUnauthorizedRefresh, err)
		}
		return nil, s.storageError("rotate refresh token", err)
	}

	return session, nil
}

// Authenticate resolves an access token to the public view of its user. It
// never looks at the refresh token and never refreshes.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.UserView, error) {
	userID, err := s.tokens.VerifyAccess(ctx, accessToken)
	if err != nil {
		if isTokenError(err) {
			return nil, util.NewAuthenticationError(msgUnauthorized, err)
		}
		return nil, s.storageError("verify access token", err)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, util.NewAuthenticationError(msgUnauthorized, err)
		}
		return nil, s.storageError("get user", err)
	}

	view := models.ToPublicView(*user)
	return &view, nil
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User) (*Session, error) {
	session, err := s.signSession(user)
	if err != nil {
		return nil, err
	}

	if err := s.refreshTokens.UpsertRefreshToken(ctx, user.ID, session.RefreshToken); err != nil {
		return nil, s.storageError("upsert refresh token", err)
	}

	return session, nil
}

func (s *AuthService) signSession(user *models.User) (*Session, error) {
	accessToken, err := s.tokens.SignAccess(user.ID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := s.tokens.SignRefresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &Session{
		User:         models.ToPublicView(*user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *AuthService) notify(ctx context.Context, event, userID string, meta models.ClientMeta) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifySessionEvent(ctx, models.SessionEvent{
		Event:      event,
		UserID:     userID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		OccurredAt: time.Now().UTC(),
	})
}

func (s *AuthService) storageError(op string, err error) error {
	s.log.Errorw("storage failure", "op", op, "error", err)
	return util.NewStorageError(fmt.Errorf("%s: %w", op, err))
}

func isTokenError(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenRevoked)
}
