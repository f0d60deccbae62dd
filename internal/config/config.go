package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tablebook/internal/models"
)

type Config struct {
	App         AppConfig           `yaml:"app"`
	Database    DatabaseConfig      `yaml:"database"`
	Redis       RedisConfig         `yaml:"redis"`
	Backup      BackupConfig        `yaml:"backup"`
	Monitoring  MonitoringConfig    `yaml:"monitoring"`
	Logging     LoggingConfig       `yaml:"logging"`
	API         APIConfig           `yaml:"api"`
	Scheduler   SchedulerConfig     `yaml:"scheduler"`
	Events      EventsConfig        `yaml:"events"`
	Outbox      OutboxConfig        `yaml:"outbox"`
	Exports     ExportConfig        `yaml:"exports"`
	Restaurants []models.Restaurant `yaml:"restaurants"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled bool         `yaml:"enabled"`
	Port    int          `yaml:"port"`
	TLS     APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// DSN builds a libpq style connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode, p.MaxConnections)
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// SchedulerConfig tunes alternative slot search and the booking writer.
type SchedulerConfig struct {
	SuggestWindowMinutes int           `yaml:"suggest_window_minutes"`
	SuggestStepMinutes   int           `yaml:"suggest_step_minutes"`
	SuggestConcurrency   int           `yaml:"suggest_concurrency"`
	LockTTL              time.Duration `yaml:"lock_ttl"`
	LockWait             time.Duration `yaml:"lock_wait"`
	MaxBookingDays       int           `yaml:"max_booking_days"`
}

const (
	BrokerNone = "none"
	BrokerNATS = "nats"
	BrokerAMQP = "amqp"
)

type EventsConfig struct {
	Broker string     `yaml:"broker"`
	NATS   NATSConfig `yaml:"nats"`
	AMQP   AMQPConfig `yaml:"amqp"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type OutboxConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional, but a broken one is an error
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// expand ${VAR} references before parsing
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case DriverPostgres:
		if c.Database.Postgres.Host == "" || c.Database.Postgres.DBName == "" {
			return errors.New("postgres host and dbname are required")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Events.Broker {
	case BrokerNone:
	case BrokerNATS:
		if c.Events.NATS.URL == "" {
			return errors.New("events.nats.url is required for nats broker")
		}
	case BrokerAMQP:
		if c.Events.AMQP.URL == "" {
			return errors.New("events.amqp.url is required for amqp broker")
		}
	default:
		return fmt.Errorf("unknown events broker %q", c.Events.Broker)
	}

	if c.Scheduler.SuggestStepMinutes <= 0 || c.Scheduler.SuggestWindowMinutes < 0 {
		return errors.New("scheduler suggest window and step must be positive")
	}

	return ValidateRestaurants(c.Restaurants)
}

// ValidateRestaurants checks the seed catalog: unique ids, sane hours and
// uniquely numbered tables with positive capacity.
func ValidateRestaurants(restaurants []models.Restaurant) error {
	ids := make(map[int64]bool)
	for _, r := range restaurants {
		if r.ID == 0 {
			return fmt.Errorf("restaurant '%s' has invalid ID 0", r.Name)
		}
		if ids[r.ID] {
			return fmt.Errorf("duplicate restaurant ID found: %d", r.ID)
		}
		ids[r.ID] = true

		if _, _, err := r.Hours(); err != nil {
			return fmt.Errorf("restaurant %d: %w", r.ID, err)
		}
		if r.InitialStatus != "" && r.InitialStatus != models.StatusPending && r.InitialStatus != models.StatusConfirmed {
			return fmt.Errorf("restaurant %d: initial_status must be pending or confirmed", r.ID)
		}

		numbers := make(map[string]bool)
		for _, t := range r.Tables {
			if t.Number == "" {
				return fmt.Errorf("restaurant %d: table without number", r.ID)
			}
			if numbers[t.Number] {
				return fmt.Errorf("restaurant %d: duplicate table number %s", r.ID, t.Number)
			}
			numbers[t.Number] = true
			if t.Capacity <= 0 {
				return fmt.Errorf("restaurant %d: table %s capacity must be positive", r.ID, t.Number)
			}
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "tablebook"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = 5432
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}
	if c.Database.Postgres.MaxConnections == 0 {
		c.Database.Postgres.MaxConnections = 10
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	// Scheduler defaults
	if c.Scheduler.SuggestWindowMinutes == 0 {
		c.Scheduler.SuggestWindowMinutes = models.DefaultSuggestWindowMinutes
	}
	if c.Scheduler.SuggestStepMinutes == 0 {
		c.Scheduler.SuggestStepMinutes = models.DefaultSuggestStepMinutes
	}
	if c.Scheduler.SuggestConcurrency == 0 {
		c.Scheduler.SuggestConcurrency = 4
	}
	if c.Scheduler.LockTTL == 0 {
		c.Scheduler.LockTTL = 10 * time.Second
	}
	if c.Scheduler.LockWait == 0 {
		c.Scheduler.LockWait = 3 * time.Second
	}
	if c.Scheduler.MaxBookingDays == 0 {
		c.Scheduler.MaxBookingDays = models.DefaultMaxBookingDays
	}

	if c.Events.Broker == "" {
		c.Events.Broker = BrokerNone
	}
	if c.Events.NATS.SubjectPrefix == "" {
		c.Events.NATS.SubjectPrefix = "tablebook"
	}
	if c.Events.AMQP.Exchange == "" {
		c.Events.AMQP.Exchange = "tablebook.events"
	}

	if c.Outbox.PollInterval == 0 {
		c.Outbox.PollInterval = 5 * time.Second
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 50
	}
	if c.Outbox.MaxRetries == 0 {
		c.Outbox.MaxRetries = 5
	}
	if c.Outbox.InitialDelay == 0 {
		c.Outbox.InitialDelay = 2 * time.Second
	}
	if c.Outbox.MaxDelay == 0 {
		c.Outbox.MaxDelay = 5 * time.Minute
	}

	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "./backups"
	}

	for i := range c.Restaurants {
		c.Restaurants[i].ApplyDefaults()
	}
}
