package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rryowa/blogauth/internal/models"
	"github.com/rryowa/blogauth/internal/storage"
	"github.com/rryowa/blogauth/internal/storage/memory"
	"github.com/rryowa/blogauth/internal/util"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.SessionEvent
}

func (n *recordingNotifier) NotifySessionEvent(_ context.Context, e models.SessionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Event)
	}
	return out
}

type fixture struct {
	svc      *AuthService
	users    *memory.InMemoryUserManager
	refresh  *memory.InMemoryRefreshTokenManager
	tokens   *TokenService
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	users := memory.NewUserRepository()
	refresh := memory.NewRefreshTokenRepository(log)
	tokens := newTestTokenService(t)
	notifier := &recordingNotifier{}
	svc := NewAuthService(users, refresh, tokens, NewBcryptHasher(bcrypt.MinCost), notifier, log)
	return &fixture{svc: svc, users: users, refresh: refresh, tokens: tokens, notifier: notifier}
}

func aliceRegistration() models.RegisterRequest {
	return models.RegisterRequest{
		Username:        "alice01",
		Email:           "alice@example.com",
		Password:        "Passw0rd1",
		ConfirmPassword: "Passw0rd1",
	}
}

func requireKind(t *testing.T, err error, kind util.ErrorKind, status int) util.ResponseError {
	t.Helper()
	var re util.ResponseError
	require.True(t, errors.As(err, &re), "expected ResponseError, got %v", err)
	assert.Equal(t, kind, re.Kind)
	assert.Equal(t, status, re.Status)
	return re
}

func TestAuthService_Register(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Register(ctx, aliceRegistration(), models.ClientMeta{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "alice01", session.User.Username)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)

	stored, err := f.users.GetUserByID(ctx, session.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "Passw0rd1", stored.PasswordHash)

	record, ok := f.refresh.Get(session.User.ID)
	require.True(t, ok)
	assert.Equal(t, session.RefreshToken, record.Token)

	assert.Equal(t, []string{models.EventRegister}, f.notifier.names())
}

func TestAuthService_Register_Conflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, aliceRegistration(), models.ClientMeta{})
	require.NoError(t, err)

	sameName := aliceRegistration()
	sameName.Email = "other@example.com"
	_, err = f.svc.Register(ctx, sameName, models.ClientMeta{})
	re := requireKind(t, err, util.KindConflict, http.StatusConflict)
	assert.Contains(t, re.Msg, "username")

	sameEmail := aliceRegistration()
	sameEmail.Username = "alice02"
	_, err = f.svc.Register(ctx, sameEmail, models.ClientMeta{})
	re = requireKind(t, err, util.KindConflict, http.StatusConflict)
	assert.Contains(t, re.Msg, "email")

	// both taken: the email check runs first
	_, err = f.svc.Register(ctx, aliceRegistration(), models.ClientMeta{})
	re = requireKind(t, err, util.KindConflict, http.StatusConflict)
	assert.Contains(t, re.Msg, "email")

	assert.Equal(t, 1, f.users.Count())
}

func TestAuthService_Register_ValidationHasNoSideEffects(t *testing.T) {
	f := newFixture(t)

	req := aliceRegistration()
	req.ConfirmPassword = "Different1"
	_, err := f.svc.Register(context.Background(), req, models.ClientMeta{})
	requireKind(t, err, util.KindValidation, http.StatusBadRequest)

	assert.Equal(t, 0, f.users.Count())
	assert.Equal(t, 0, f.refresh.Count())
}

type failingUsers struct {
	storage.UserRepository
	createErr error
	existsErr error
}

func (f failingUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.UserRepository.ExistsByEmail(ctx, email)
}

func (f failingUsers) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.UserRepository.CreateUser(ctx, u)
}

func TestAuthService_Register_StorageFailureIssuesNoTokens(t *testing.T) {
	log := zap.NewNop().Sugar()
	refresh := memory.NewRefreshTokenRepository(log)
	users := failingUsers{UserRepository: memory.NewUserRepository(), createErr: errors.New("disk full")}
	svc := NewAuthService(users, refresh, newTestTokenService(t), NewBcryptHasher(bcrypt.MinCost), nil, log)

	session, err := svc.Register(context.Background(), aliceRegistration(), models.ClientMeta{})
	assert.Nil(t, session)
	re := requireKind(t, err, util.KindStorage, http.StatusInternalServerError)
	assert.Equal(t, "internal server error", re.Msg)
	assert.Equal(t, 0, refresh.Count())
}

func TestAuthService_Register_StoreLevelDuplicateIsConflict(t *testing.T) {
	log := zap.NewNop().Sugar()
	users := failingUsers{UserRepository: memory.NewUserRepository(), createErr: storage.ErrUserExists}
	svc := NewAuthService(users, memory.NewRefreshTokenRepository(log), newTestTokenService(t), NewBcryptHasher(bcrypt.MinCost), nil, log)

	_, err := svc.Register(context.Background(), aliceRegistration(), models.ClientMeta{})
	requireKind(t, err, util.KindConflict, http.StatusConflict)
}

func TestAuthService_ConcurrentRegistrationsCreateOneUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Register(ctx, aliceRegistration(), models.ClientMeta{})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		requireKind(t, err, util.KindConflict, http.StatusConflict)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.users.Count())
}

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, aliceRegistration(), models.ClientMeta{})
	require.NoError(t, err)

	session, err := f.svc.Login(ctx, models.LoginRequest{Username: "alice01", Password: "Passw0rd1"}, models.ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, registered.User, session.User)
	assert.NotEqual(t, registered.RefreshToken, session.RefreshToken)

	record, ok := f.refresh.Get(session.User.ID)
	require.True(t, ok)
	assert.Equal(t, session.RefreshToken, record.Token)
	assert.Equal(t, 1, f.refresh.Count())

	assert.Equal(t, []string{models.EventRegister, models.EventLogin}, f.notifier.names())
}

func TestAuthService_Login_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, aliceRegistration(), models.ClientMeta{})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, models.LoginRequest{Username: "alice01", Password: "Wrongpass1"}, models.ClientMeta{})
	re := requireKind(t, err, util.KindAuthentication, http.StatusUnauthorized)
	assert.Equal(t, "invalid password", re.Msg)

	_, err = f.svc.Login(ctx, models.LoginRequest{Username: "nobody1", Password: "Passw0rd1"}, models.ClientMeta{})
	re = requireKind(t, err, util.KindAuthentication, http.StatusUnauthorized)
	assert.Equal(t, "invalid username or password", re.Msg)

	_, err = f.svc.Login(ctx, models.LoginRequest{Username: "alice01", Password: "short"}, models.ClientMeta{})
	requireKind(t, err, util.KindValidation, http.StatusBadRequest)

	// failed logins leave the registration session in place
	record, ok := f.refresh.Get(registered.User.ID)
	require.True(t, ok)
	assert.Equal(t, registered.RefreshToken, record.Token)
}

func TestAuthService_Refresh_Rotates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Register(ctx, aliceRegistration(), models.ClientMeta{})
	require.NoError(t, err)

	second, err := f.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, "alice01", second.User.Username)

	record, ok := f.refresh.Get(first.User.ID)
	require.True(t, ok)
	assert.Equal(t, second.RefreshToken, record.Token)

	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	re := requireKind(t, err, util.KindAuthentication, http.StatusUnauthorized)
	assert.Equal(t, "unauthorized refresh token", re.Msg)
}

func TestAuthService_Refresh_SupersededByLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Register(ctx, aliceRegistration(), models.ClientMeta{})
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, models.LoginRequest{Username: "alice01", Password: "Passw0rd1"}, models.ClientMeta{})
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	requireKind(t, err, util.KindAuthentication, http.StatusUnauthorized)
}

func TestAuthService_Refresh_InvalidTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Register(ctx, aliceRegistration(), models.ClientMeta{})
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "abc.def.ghi",
		"access token": session.AccessToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Refresh(ctx, token)
			requireKind(t, err, util.KindAuthentication, http.StatusUnauthorized)
		})
	}

	t.Run("expired", func(t *testing.T) {
		f.tokens.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
		expired, err := f.tokens.SignRefresh(session.User.ID)
		f.tokens.now = time.Now
		require.NoError(t, err)
		require.NoError(t, f.refresh.UpsertRefreshToken(ctx, session.User.ID, expired))

		_, err = f.svc.Refresh(ctx, expired)
		requireKind(t, err, util.KindAuthentication, http.StatusUnauthorized)
	})
}

func TestAuthService_Logout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Register(ctx, aliceRegistration(), models.ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, session.User.ID, session.AccessToken, session.RefreshToken, models.ClientMeta{}))
	assert.Equal(t, 0, f.refresh.Count())

	_, err = f.svc.Refresh(ctx, session.RefreshToken)
	requireKind(t, err, util.KindAuthentication, http.StatusUnauthorized)

	_, err = f.svc.Authenticate(ctx, session.AccessToken)
	requireKind(t, err, util.KindAuthentication, http.StatusUnauthorized)

	// a second logout with the same tokens is not an error
	require.NoError(t, f.svc.Logout(ctx, session.User.ID, session.AccessToken, session.RefreshToken, models.ClientMeta{}))

	assert.Contains(t, f.notifier.names(), models.EventLogout)
}

func TestAuthService_Logout_LeavesOtherUsersSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice, err := f.svc.Register(ctx, aliceRegistration(), models.ClientMeta{})
	require.NoError(t, err)
	bob, err := f.svc.Register(ctx, models.RegisterRequest{
		Username:        "bobby01",
		Email:           "bob@example.com",
		Password:        "Passw0rd1",
		ConfirmPassword: "Passw0rd1",
	}, models.ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, alice.User.ID, alice.AccessToken, bob.RefreshToken, models.ClientMeta{}))

	record, ok := f.refresh.Get(bob.User.ID)
	require.True(t, ok)
	assert.Equal(t, bob.RefreshToken, record.Token)

	_, err = f.svc.Refresh(ctx, bob.RefreshToken)
	require.NoError(t, err)
}

type failingDenylist struct {
	storage.TokenStorage
}

func (failingDenylist) InvalidateToken(context.Context, string, time.Duration) error {
	return errors.New("redis unavailable")
}

func TestAuthService_Logout_DenylistFailureKeepsRefreshRecord(t *testing.T) {
	log := zap.NewNop().Sugar()
	refresh := memory.NewRefreshTokenRepository(log)
	tokens := NewTokenService(&util.TokenConfig{
		AccessSecretKey:  []byte("access-secret"),
		RefreshSecretKey: []byte("refresh-secret"),
		AccessTTL:        30 * time.Minute,
		RefreshTTL:       60 * time.Minute,
	}, failingDenylist{TokenStorage: memory.NewTokenStorage()})
	svc := NewAuthService(memory.NewUserRepository(), refresh, tokens, NewBcryptHasher(bcrypt.MinCost), nil, log)
	ctx := context.Background()

	session, err := svc.Register(ctx, aliceRegistration(), models.ClientMeta{})
	require.NoError(t, err)

	err = svc.Logout(ctx, session.User.ID, session.AccessToken, session.RefreshToken, models.ClientMeta{})
	requireKind(t, err, util.KindStorage, http.StatusInternalServerError)

	record, ok := refresh.Get(session.User.ID)
	require.True(t, ok)
	assert.Equal(t, session.RefreshToken, record.Token)
}

func TestAuthService_ConcurrentRefreshIssuesOnePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Register(ctx, aliceRegistration(), models.ClientMeta{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Session, 8)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Refresh(ctx, session.RefreshToken)
		}(i)
	}
	wg.Wait()

	var winner *Session
	for i, err := range errs {
		if err == nil {
			require.Nil(t, winner, "more than one refresh succeeded")
			winner = results[i]
			continue
		}
		requireKind(t, err, util.KindAuthentication, http.StatusUnauthorized)
	}
	require.NotNil(t, winner)

	record, ok := f.refresh.Get(session.User.ID)
	require.True(t, ok)
	assert.Equal(t, winner.RefreshToken, record.Token)
}

func TestAuthService_Authenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Register(ctx, aliceRegistration(), models.ClientMeta{})
	require.NoError(t, err)

	view, err := f.svc.Authenticate(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User, *view)

	_, err = f.svc.Authenticate(ctx, session.RefreshToken)
	requireKind(t, err, util.KindAuthentication, http.StatusUnauthorized)

	orphan, err := f.tokens.SignAccess("00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, orphan)
	requireKind(t, err, util.KindAuthentication, http.StatusUnauthorized)
}
