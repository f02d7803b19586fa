package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"jsonbench-api/internal/model"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Store types accepted by STORE_TYPE.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMySQL    = "mysql"
	StoreMongoDB  = "mongodb"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Bench     BenchConfig
	Storage   StorageConfig
	Postgres  PostgresConfig
	MySQL     MySQLConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Retention RetentionConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"3001"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"jsonbench-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// BenchConfig controls how request bodies are validated and errors reported.
type BenchConfig struct {
	IngestMode          string `envconfig:"INGEST_MODE" default:"typed"`
	Strict              bool   `envconfig:"VALIDATION_STRICT" default:"false"`
	ExposeStorageErrors bool   `envconfig:"EXPOSE_STORAGE_ERRORS" default:"false"`
	MaxBodyBytes        int64  `envconfig:"MAX_BODY_BYTES" default:"4194304"`
}

// StorageConfig selects the storage backend and its shared pool settings.
type StorageConfig struct {
	Type            string        `envconfig:"STORE_TYPE" default:"postgres"`
	SQLitePath      string        `envconfig:"SQLITE_PATH" default:"./data/bench.db"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	Timeout         time.Duration `envconfig:"STORAGE_TIMEOUT" default:"0"` // 0 = request lifetime
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	URL      string `envconfig:"DATABASE_URL" default:""`
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"jsonbench"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASS" default:""`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// MySQLConfig holds MySQL connection settings.
type MySQLConfig struct {
	Host     string `envconfig:"MYSQL_HOST" default:"localhost"`
	Port     int    `envconfig:"MYSQL_PORT" default:"3306"`
	Name     string `envconfig:"MYSQL_DATABASE" default:"jsonbench"`
	User     string `envconfig:"MYSQL_USER" default:"root"`
	Password string `envconfig:"MYSQL_PASSWORD" default:""`
}

// MongoDBConfig holds MongoDB connection settings.
type MongoDBConfig struct {
	URI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	Database string `envconfig:"MONGODB_DATABASE" default:"jsonbench"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host      string `envconfig:"REDIS_HOST" default:"localhost"`
	Port      int    `envconfig:"REDIS_PORT" default:"6379"`
	Password  string `envconfig:"REDIS_PASSWORD" default:""`
	DB        int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"jsonbench"`
}

// RetentionConfig controls periodic deletion of old records.
type RetentionConfig struct {
	Period   time.Duration `envconfig:"RETENTION_PERIOD" default:"0"` // 0 = keep forever
	Interval time.Duration `envconfig:"RETENTION_INTERVAL" default:"10m"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `envconfig:"METRICS_ENABLED" default:"true"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Mode returns the parsed ingest mode.
func (b *BenchConfig) Mode() (model.IngestMode, error) {
	return model.ParseIngestMode(b.IngestMode)
}

// DSN returns the PostgreSQL connection string. DATABASE_URL wins when set.
func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Name, p.SSLMode)
}

// Address returns the Redis address in host:port format.
func (r *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Enabled reports whether retention cleanup should run.
func (r *RetentionConfig) Enabled() bool {
	return r.Period > 0
}

// Validate rejects settings that would only fail later at startup.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorePostgres, StoreSQLite, StoreMySQL, StoreMongoDB, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_TYPE %q", c.Storage.Type)
	}
	if _, err := c.Bench.Mode(); err != nil {
		return err
	}
	if c.Bench.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.Bench.MaxBodyBytes)
	}
	if c.Storage.Timeout < 0 {
		return fmt.Errorf("STORAGE_TIMEOUT must not be negative, got %s", c.Storage.Timeout)
	}
	if c.Retention.Enabled() && c.Retention.Interval <= 0 {
		return fmt.Errorf("RETENTION_INTERVAL must be positive when RETENTION_PERIOD is set")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Storage.Type = strings.ToLower(strings.TrimSpace(cfg.Storage.Type))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
