package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// データベース接続設定
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	// サーバー設定
	ServerPort string
	Env        string
	LogLevel   string

	// CORS設定
	AllowedOrigins []string

	// 認証
	JWTSecret      string
	AccessTokenTTL time.Duration

	// リレー設定 (none | nats | redis)
	Relay    string
	NatsURL  string
	RedisURL string

	// WebSocket
	SendBuffer      int
	MaxMessageBytes int64
}

// Load reads .env if present and then loads configuration from the environment.
// Missing required values in production return an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		SQLitePath: getEnv("SQLITE_PATH", "./data/ainet.db"),

		ServerPort: getEnv("SERVER_PORT", "8080"),
		Env:        getEnv("ENV", "development"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		Relay:    strings.ToLower(getEnv("RELAY", "none")),
		NatsURL:  getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		RedisURL: getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),
	}

	// DB_NAME があれば MySQL、なければ SQLite
	defaultDriver := "sqlite"
	if cfg.DBName != "" {
		defaultDriver = "mysql"
	}
	cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", defaultDriver))

	allowedOrigins := getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	for _, origin := range strings.Split(allowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	ttl, err := time.ParseDuration(getEnv("ACCESS_TOKEN_TTL", "15m"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ACCESS_TOKEN_TTL: %w", err)
	}
	cfg.AccessTokenTTL = ttl

	if cfg.SendBuffer, err = strconv.Atoi(getEnv("WS_SEND_BUFFER", "64")); err != nil || cfg.SendBuffer <= 0 {
		return Config{}, fmt.Errorf("invalid WS_SEND_BUFFER %q", os.Getenv("WS_SEND_BUFFER"))
	}
	if cfg.MaxMessageBytes, err = strconv.ParseInt(getEnv("WS_MAX_MESSAGE_BYTES", "10485760"), 10, 64); err != nil || cfg.MaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("invalid WS_MAX_MESSAGE_BYTES %q", os.Getenv("WS_MAX_MESSAGE_BYTES"))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = DevJWTSecret
	}
	return cfg, nil
}

// DevJWTSecret signs tokens in development when JWT_SECRET is unset
const DevJWTSecret = "ainet-insecure-development-secret"

// Validate checks cross-field constraints
func (c Config) Validate() error {
	switch c.DBDriver {
	case "mysql":
		if c.DBName == "" {
			return fmt.Errorf("DB_NAME is required for the mysql driver")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.Relay {
	case "none", "nats", "redis":
	default:
		return fmt.Errorf("unsupported RELAY %q", c.Relay)
	}

	// 開発環境以外では公開済みの開発用シークレットを使わない
	if c.JWTSecret == "" && !c.IsDevelopment() {
		return fmt.Errorf("JWT_SECRET is required when ENV=%s", c.Env)
	}
	return nil
}

// MySQLDSN builds the go-sql-driver DSN
func (c Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC&charset=utf8mb4",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c Config) IsDevelopment() bool { return c.Env == "development" }
func (c Config) IsProduction() bool  { return c.Env == "production" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
