// Package config loads clover settings from the environment, with an
// optional .env file layered underneath.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/detection"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"clover"`
	Version                       string `env:"APP_VERSION" env-default:"dev"`
	Port                          int    `env:"PORT" env-default:"3010"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int    `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int    `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	StartupMaxAttempts            int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// postgres or memory
	StoreDriver string `env:"STORE_DRIVER" env-default:"postgres"`

	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`
	DatabaseMigrateOnStart        bool          `env:"DB_MIGRATE_ON_START" env-default:"true"`

	// Scan cache: redis when enabled, otherwise in-process
	RedisEnabled  bool          `env:"REDIS_ENABLED" env-default:"false"`
	RedisHost     string        `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	ScanCacheTTL  time.Duration `env:"SCAN_CACHE_TTL" env-default:"5m"`

	// record.merged events
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"clover.records"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Graph mirror (Memgraph)
	GraphEnabled    bool          `env:"GRAPH_ENABLED" env-default:"false"`
	GraphDBHost     string        `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int           `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string        `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string        `env:"GRAPH_DB_PASSWORD" env-default:""`
	GraphDBName     string        `env:"GRAPH_DB_NAME" env-default:""`
	GraphMaxPool    int           `env:"GRAPH_MAX_POOL_SIZE" env-default:"50"`
	GraphTimeout    time.Duration `env:"GRAPH_CONNECT_TIMEOUT" env-default:"10s"`

	TracingExporter string        `env:"TRACING_EXPORTER" env-default:"none"`
	TracingEndpoint string        `env:"TRACING_ENDPOINT" env-default:"localhost:4317"`
	TracingProtocol string        `env:"TRACING_PROTOCOL" env-default:"grpc"`
	TracingInsecure bool          `env:"TRACING_INSECURE" env-default:"true"`
	TracingTimeout  time.Duration `env:"TRACING_TIMEOUT" env-default:"10s"`

	// Detection
	DetectionDefaultThreshold int    `env:"DETECTION_DEFAULT_THRESHOLD" env-default:"70"`
	DetectionMaxCandidates    int    `env:"DETECTION_MAX_CANDIDATES" env-default:"50"`
	DetectionMaxResults       int    `env:"DETECTION_MAX_RESULTS" env-default:"10"`
	ScanMaxRecords            int    `env:"SCAN_MAX_RECORDS" env-default:"5000"`
	ScanWorkers               int    `env:"SCAN_WORKERS" env-default:"0"`
	ScanRatePerMinute         int    `env:"SCAN_RATE_PER_MINUTE" env-default:"6"`
	ScanRateBurst             int    `env:"SCAN_RATE_BURST" env-default:"2"`
	MatchAlgorithm            string `env:"MATCH_ALGORITHM" env-default:"levenshtein"`

	// YAML file of extra reference tables, registered on top of the built-in manifest
	ManifestExtensionPath string `env:"MANIFEST_EXTENSION_PATH" env-default:""`
}

// Load layers the sources in order of increasing precedence: configFile (if
// set), .env (if present), the process environment. Neither file overrides a
// variable that is already set.
func Load(configFile string) (*Config, error) {
	if configFile != "" {
		if err := loadFile(configFile); err != nil {
			return nil, err
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv binds the process environment over the tag defaults.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFile reads a YAML, JSON or TOML file keyed by variable name (either
// case) and exports each entry that is not already in the environment.
// Godotenv applies the same rule to .env.
func loadFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		value := v.GetString(key)
		if value == "" {
			value = strings.Join(v.GetStringSlice(key), ",")
		}
		if err := os.Setenv(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}
	if c.DetectionDefaultThreshold < 0 || c.DetectionDefaultThreshold > 100 {
		return fmt.Errorf("DETECTION_DEFAULT_THRESHOLD must be between 0 and 100, got %d", c.DetectionDefaultThreshold)
	}
	switch matching.Algorithm(c.MatchAlgorithm) {
	case matching.AlgorithmLevenshtein, matching.AlgorithmJaroWinkler:
	default:
		return fmt.Errorf("MATCH_ALGORITHM %q is not supported", c.MatchAlgorithm)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	return nil
}

func (c *Config) Database() database.Config {
	return database.Config{
		Driver:          c.DatabaseDriver,
		Host:            c.DatabaseHost,
		Port:            c.DatabasePort,
		User:            c.DatabaseUserName,
		Password:        c.DatabasePassword,
		Name:            c.DatabaseName,
		SSLMode:         c.DatabaseSSLMode,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

func (c *Config) Migration() *database.MigrationConfig {
	return &database.MigrationConfig{
		MigrationFolderPath: c.DatabaseMigrationFolderPath,
		Version:             uint(max(c.DatabaseMigrationVersion, 0)),
		Force:               c.DatabaseMigrationForce,
		AutoRollback:        c.DatabaseMigrationAutoRollback,
	}
}

func (c *Config) Redis() redis.Config {
	return redis.Config{Host: c.RedisHost, Port: c.RedisPort, Password: c.RedisPassword, DB: c.RedisDB}
}

func (c *Config) Kafka() kafka.ProducerConfig {
	brokers := make([]string, 0, len(c.KafkaBrokers))
	for _, b := range c.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return kafka.ProducerConfig{
		Brokers:      brokers,
		Topic:        c.KafkaOutputTopic,
		BatchSize:    c.KafkaBatchSize,
		BatchTimeout: time.Duration(c.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: c.KafkaRequiredAcks,
		Compression:  c.KafkaCompression,
	}
}

func (c *Config) Graph() graph.Config {
	return graph.Config{
		Host:           c.GraphDBHost,
		Port:           c.GraphDBPort,
		Username:       c.GraphDBUser,
		Password:       c.GraphDBPassword,
		Database:       c.GraphDBName,
		MaxPoolSize:    c.GraphMaxPool,
		ConnectTimeout: c.GraphTimeout,
	}
}

func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		ServiceName: c.AppName,
		Exporter:    c.TracingExporter,
		Endpoint:    c.TracingEndpoint,
		Protocol:    c.TracingProtocol,
		Insecure:    c.TracingInsecure,
		Timeout:     c.TracingTimeout,
	}
}

func (c *Config) Detection() detection.Config {
	return detection.Config{
		MaxCandidates:  c.DetectionMaxCandidates,
		MaxResults:     c.DetectionMaxResults,
		MaxScanRecords: c.ScanMaxRecords,
		ScanWorkers:    c.ScanWorkers,
	}
}
