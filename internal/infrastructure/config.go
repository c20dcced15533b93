package infrastructure

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Telemetry TelemetryConfig
	LeetCode  LeetCodeConfig
	Sync      SyncConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Environment  string
	CORSOrigins  []string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// JWTConfig holds JWT authentication configuration
type JWTConfig struct {
	SecretKey          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled         bool
	ServiceName     string
	ServiceVersion  string
	OTLPEndpoint    string
	MetricsEndpoint string
}

// LeetCodeConfig holds judge API client configuration
type LeetCodeConfig struct {
	BaseURL         string
	Timeout         time.Duration // per-call network timeout
	MaxRetries      int
	BackoffBase     time.Duration
	ProfileCacheTTL time.Duration
}

// SyncConfig holds sync engine cooldowns and pacing
type SyncConfig struct {
	UserCooldown      time.Duration
	BulkCooldown      time.Duration
	GraceBulkCooldown time.Duration
	FeedLimit         int
	PacingMin         time.Duration
	PacingMax         time.Duration
}

// LoadConfig loads configuration from environment variables with
// sensible defaults. A .env file is honored when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT", 10)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT", 120)) * time.Second,
			Environment:  getEnv("ENVIRONMENT", "development"),
			CORSOrigins:  getEnvList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "leetclash"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			SecretKey:          getEnv("JWT_SECRET", "your-super-secret-key-change-in-production"),
			AccessTokenExpiry:  time.Duration(getEnvInt("JWT_ACCESS_EXPIRY_MINUTES", 15)) * time.Minute,
			RefreshTokenExpiry: time.Duration(getEnvInt("JWT_REFRESH_EXPIRY_HOURS", 168)) * time.Hour, // 7 days
			Issuer:             getEnv("JWT_ISSUER", "leetclash"),
		},
		Telemetry: TelemetryConfig{
			Enabled:         getEnvBool("TELEMETRY_ENABLED", true),
			ServiceName:     getEnv("SERVICE_NAME", "leetclash-api"),
			ServiceVersion:  getEnv("SERVICE_VERSION", "1.0.0"),
			OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://otel-collector:4318"),
			MetricsEndpoint: getEnv("METRICS_ENDPOINT", "/metrics"),
		},
		LeetCode: LeetCodeConfig{
			BaseURL:         getEnv("LEETCODE_GRAPHQL_URL", "https://leetcode.com/graphql"),
			Timeout:         time.Duration(getEnvInt("LEETCODE_TIMEOUT_SECONDS", 15)) * time.Second,
			MaxRetries:      getEnvInt("LEETCODE_MAX_RETRIES", 5),
			BackoffBase:     time.Duration(getEnvInt("LEETCODE_BACKOFF_BASE_SECONDS", 2)) * time.Second,
			ProfileCacheTTL: time.Duration(getEnvInt("LEETCODE_PROFILE_CACHE_TTL_MINUTES", 10)) * time.Minute,
		},
		Sync: SyncConfig{
			UserCooldown:      time.Duration(getEnvInt("SYNC_USER_COOLDOWN_SECONDS", 30)) * time.Second,
			BulkCooldown:      time.Duration(getEnvInt("SYNC_BULK_COOLDOWN_MINUTES", 10)) * time.Minute,
			GraceBulkCooldown: time.Duration(getEnvInt("SYNC_GRACE_BULK_COOLDOWN_MINUTES", 2)) * time.Minute,
			FeedLimit:         getEnvInt("SYNC_FEED_LIMIT", 20),
			PacingMin:         time.Duration(getEnvInt("SYNC_PACING_MIN_MS", 2000)) * time.Millisecond,
			PacingMax:         time.Duration(getEnvInt("SYNC_PACING_MAX_MS", 3000)) * time.Millisecond,
		},
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable or returns a default value
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// getEnvBool retrieves an environment variable as a boolean or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}
