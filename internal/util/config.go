package util

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultServerAddr      = "localhost:8080"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 60 * time.Minute

	// Cookies outlive the tokens they carry. A browser may keep sending a
	// refresh cookie whose token already fails the signed expiry check.
	defaultCookieMaxAge = 24 * time.Hour

	// PasswordHashCost is the bcrypt cost used for every stored credential.
	PasswordHashCost = 10
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
}

func NewServerConfig() *ServerConfig {
	addr := os.Getenv("SERVER_ADDRESS")
	if addr == "" {
		addr = defaultServerAddr
	}

	return &ServerConfig{
		ServerAddr:      addr,
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
	}
}

// TokenConfig holds the signing material. Access and refresh tokens get their
// own secrets; both fall back to JWT_SECRET.
type TokenConfig struct {
	AccessSecretKey  []byte
	RefreshSecretKey []byte
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
}

func NewTokenConfig() *TokenConfig {
	fallback := os.Getenv("JWT_SECRET")
	access := firstNonEmpty(os.Getenv("ACCESS_TOKEN_SECRET"), fallback)
	refresh := firstNonEmpty(os.Getenv("REFRESH_TOKEN_SECRET"), fallback)
	if access == "" || refresh == "" {
		log.Fatal("ACCESS_TOKEN_SECRET/REFRESH_TOKEN_SECRET (or JWT_SECRET) is not set")
	}
	return &TokenConfig{
		AccessSecretKey:  []byte(access),
		RefreshSecretKey: []byte(refresh),
		AccessTTL:        parseDurationOrDefault("ACCESS_TOKEN_TTL", defaultAccessTTL),
		RefreshTTL:       parseDurationOrDefault("REFRESH_TOKEN_TTL", defaultRefreshTTL),
	}
}

type CookieConfig struct {
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
	Domain   string
	Path     string
}

func NewCookieConfig() *CookieConfig {
	return &CookieConfig{
		MaxAge:   parseDurationOrDefault("COOKIE_MAX_AGE", defaultCookieMaxAge),
		Secure:   parseBoolOrDefault("COOKIE_SECURE", false),
		SameSite: parseSameSite(os.Getenv("COOKIE_SAMESITE")),
		Domain:   os.Getenv("COOKIE_DOMAIN"),
		Path:     "/",
	}
}

// DefaultCookieConfig mirrors NewCookieConfig with every variable unset.
func DefaultCookieConfig() *CookieConfig {
	return &CookieConfig{MaxAge: defaultCookieMaxAge, Path: "/"}
}

type StorageConfig struct {
	Backend           string
	RefreshTokenStore string
}

func NewStorageConfig() *StorageConfig {
	backend := strings.ToLower(os.Getenv("STORAGE_BACKEND"))
	if backend == "" {
		backend = BackendPostgres
	}
	refreshStore := strings.ToLower(os.Getenv("REFRESH_TOKEN_STORE"))
	if refreshStore == "" {
		refreshStore = backend
	}
	return &StorageConfig{
		Backend:           backend,
		RefreshTokenStore: refreshStore,
	}
}

func GetWebhookURL() string {
	return os.Getenv("WEBHOOK_URL")
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}

func parseBoolOrDefault(varName string, def bool) bool {
	if v := os.Getenv(varName); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("Invalid bool in %s: %s, using default %t", varName, v, def)
	}
	return def
}

func parseIntOrDefault(varName string, def int) int {
	if v := os.Getenv(varName); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("Invalid int in %s: %s, using default %d", varName, v, def)
	}
	return def
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "":
		return 0
	default:
		log.Printf("Invalid COOKIE_SAMESITE: %s, leaving attribute unset", v)
		return 0
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
