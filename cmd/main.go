package main

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rryowa/blogauth/internal/api"
	"github.com/rryowa/blogauth/internal/controller"
	"github.com/rryowa/blogauth/internal/migrations"
	"github.com/rryowa/blogauth/internal/service"
	"github.com/rryowa/blogauth/internal/storage"
	"github.com/rryowa/blogauth/internal/storage/memory"
	"github.com/rryowa/blogauth/internal/storage/postgres"
	"github.com/rryowa/blogauth/internal/storage/redis"
	"github.com/rryowa/blogauth/internal/util"
)

type stores struct {
	users         storage.UserRepository
	refreshTokens storage.RefreshTokenRepository
	denylist      storage.TokenStorage
	cleanupFuncs  []func()
}

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()
	defer func() { _ = logger.Sync() }()

	s, err := newStores(logger, util.NewStorageConfig(), util.NewRedisConfig())
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	tokenService := service.NewTokenService(util.NewTokenConfig(), s.denylist)
	webhookService := service.NewWebhookService(logger, util.GetWebhookURL())
	authService := service.NewAuthService(
		s.users,
		s.refreshTokens,
		tokenService,
		service.NewBcryptHasher(util.PasswordHashCost),
		webhookService,
		logger,
	)

	controller := controller.NewController(logger, authService, util.NewCookieConfig())

	apiServer := api.NewAPI(controller, authService, logger, util.NewServerConfig(), s.cleanupFuncs)
	apiServer.Run(ctx)
}

func newStores(logger *zap.SugaredLogger, cfg *util.StorageConfig, redisCfg *util.RedisConfig) (*stores, error) {
	s := &stores{}

	switch cfg.Backend {
	case util.BackendMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		s.users = memory.NewUserRepository()
		s.refreshTokens = memory.NewRefreshTokenRepository(logger)
	case util.BackendPostgres:
		db, dbCleanup, err := util.NewDBConnection(logger, util.NewDBConfig())
		if err != nil {
			return nil, err
		}
		s.cleanupFuncs = append(s.cleanupFuncs, dbCleanup)
		if err := migrations.RunMigrations(db, logger); err != nil {
			return nil, err
		}
		pg := postgres.NewStorage(db)
		s.users = pg
		s.refreshTokens = pg
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Backend)
	}

	var redisClient *goredis.Client
	if redisCfg.Enabled() {
		client, redisCleanup, err := util.NewRedisClient(logger, redisCfg)
		if err != nil {
			return nil, err
		}
		redisClient = client
		s.cleanupFuncs = append(s.cleanupFuncs, redisCleanup)
	}

	switch cfg.RefreshTokenStore {
	case util.BackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("REFRESH_TOKEN_STORE=redis requires REDIS_ADDR")
		}
		s.refreshTokens = redis.NewRefreshTokenStorage(redisClient)
	case cfg.Backend:
	default:
		return nil, fmt.Errorf("REFRESH_TOKEN_STORE %q does not match backend %q", cfg.RefreshTokenStore, cfg.Backend)
	}

	if redisClient != nil {
		s.denylist = redis.NewTokenStorage(redisClient)
	} else {
		logger.Warn("REDIS_ADDR is not set, access token denylist is kept in memory")
		s.denylist = memory.NewTokenStorage()
	}

	return s, nil
}
