package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// EnvProduction selects production defaults (e.g. 15-minute egress segments).
	EnvProduction = "production"

	devSegmentDurationSec  = 60
	prodSegmentDurationSec = 900
)

// Config holds application configuration loaded from environment.
type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LiveKit  LiveKitConfig
	Egress   EgressConfig
	Storage  StorageConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/bodycam?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig controls bearer credential verification.
// JWTSecret is optional: when empty only the credential structure and claims are checked
// and signature verification is left to the gateway that terminates TLS.
type AuthConfig struct {
	JWTSecret string
}

// LiveKitConfig holds provider credentials and call limits. APISecret also verifies
// webhook callbacks.
type LiveKitConfig struct {
	APIURL      string
	APIKey      string
	APISecret   string
	TokenTTL    time.Duration
	CallTimeout time.Duration
	MaxAttempts int
}

// EgressConfig holds segmented-recording settings.
type EgressConfig struct {
	SegmentDuration time.Duration
	Layout          string
}

// StorageConfig holds S3-compatible (DigitalOcean Spaces) settings for recorded chunks.
type StorageConfig struct {
	Endpoint             string
	Bucket               string
	AccessKeyID          string
	SecretAccessKey      string
	Region               string // optional; derived from the endpoint host when empty
	PresignExpireMinutes int
}

// Configured reports whether the provider credentials are present.
func (c LiveKitConfig) Configured() bool {
	return c.APIURL != "" && c.APIKey != "" && c.APISecret != ""
}

// Configured reports whether storage credentials are present.
func (c StorageConfig) Configured() bool {
	return c.Endpoint != "" && c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env: env,
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "bodycam"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		LiveKit: LiveKitConfig{
			APIURL:      strings.TrimRight(getEnv("LIVEKIT_API_URL", ""), "/"),
			APIKey:      getEnv("LIVEKIT_API_KEY", ""),
			APISecret:   getEnv("LIVEKIT_API_SECRET", ""),
			TokenTTL:    getEnvDuration("LIVEKIT_TOKEN_TTL", 8*time.Hour),
			CallTimeout: getEnvDuration("LIVEKIT_CALL_TIMEOUT", 2*time.Minute),
			MaxAttempts: getEnvInt("LIVEKIT_MAX_ATTEMPTS", 3),
		},
		Egress: EgressConfig{
			SegmentDuration: time.Duration(getEnvInt("EGRESS_SEGMENT_DURATION_SEC", defaultSegmentDurationSec(env))) * time.Second,
			Layout:          getEnv("EGRESS_LAYOUT", "grid"),
		},
		Storage: StorageConfig{
			Endpoint:             getEnv("DO_SPACES_ENDPOINT", ""),
			Bucket:               getEnv("DO_SPACES_BUCKET", ""),
			AccessKeyID:          getEnv("DO_SPACES_KEY", ""),
			SecretAccessKey:      getEnv("DO_SPACES_SECRET", ""),
			Region:               getEnv("S3_REGION", ""),
			PresignExpireMinutes: getEnvInt("PRESIGN_EXPIRE_MINUTES", 15),
		},
	}
	if cfg.Egress.SegmentDuration <= 0 {
		return nil, fmt.Errorf("EGRESS_SEGMENT_DURATION_SEC must be positive")
	}
	if cfg.LiveKit.MaxAttempts < 1 {
		return nil, fmt.Errorf("LIVEKIT_MAX_ATTEMPTS must be at least 1")
	}
	return cfg, nil
}

func defaultSegmentDurationSec(env string) int {
	if env == EnvProduction {
		return prodSegmentDurationSec
	}
	return devSegmentDurationSec
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("5m") or bare seconds ("300").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
