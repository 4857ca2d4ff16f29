package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	RabbitMQ  RabbitMQConfig
	Dispatch  DispatchConfig
	Scheduler SchedulerConfig
	Transport TransportConfig
	Log       LogConfig
	Env       string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds storage configuration
type DatabaseConfig struct {
	Driver      string
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SQLitePath  string
	AutoMigrate bool
}

// RabbitMQConfig holds RabbitMQ configuration
type RabbitMQConfig struct {
	Enabled     bool
	Host        string
	Port        string
	User        string
	Password    string
	SendQueue   string
	EventsQueue string
}

// DispatchConfig holds batch pacing for campaign and ad-hoc sends
type DispatchConfig struct {
	BatchSize       int
	BatchDelay      time.Duration
	AdHocBatchSize  int
	AdHocBatchDelay time.Duration
	SendTimeout     time.Duration
	RatePerSec      int
}

// SchedulerConfig holds the due-campaign poller timing
type SchedulerConfig struct {
	Enabled      bool
	PollInterval time.Duration
	InitialDelay time.Duration
}

// TransportConfig tunes the simulated outbound transport
type TransportConfig struct {
	SuccessRate float64
	MinLatency  time.Duration
	MaxLatency  time.Duration
}

// LogConfig holds logger level and format
type LogConfig struct {
	Level  string
	Format string
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Database: DatabaseConfig{
			Driver:     "postgres",
			Host:       "localhost",
			Port:       "5432",
			User:       "ebrevsmotor",
			DBName:     "ebrevsmotor",
			SQLitePath: "./data/ebrevsmotor.db",
		},
		RabbitMQ: RabbitMQConfig{
			Host:        "localhost",
			Port:        "5672",
			User:        "guest",
			Password:    "guest",
			SendQueue:   "campaign_sends",
			EventsQueue: "campaign_events",
		},
		Dispatch: DispatchConfig{
			BatchSize:       50,
			BatchDelay:      time.Second,
			AdHocBatchSize:  5,
			AdHocBatchDelay: 2 * time.Second,
			SendTimeout:     30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			PollInterval: 60 * time.Second,
			InitialDelay: 5 * time.Second,
		},
		Transport: TransportConfig{SuccessRate: 1.0},
		Log:       LogConfig{Level: "info", Format: "console"},
		Env:       "development",
	}
}

// Load reads configuration from defaults, the optional CONFIG_FILE overlay, then environment variables
func Load() (*Config, error) {
	config := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func applyEnv(c *Config) error {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Env = getEnv("ENV", c.Env)

	c.Database.Driver = strings.ToLower(getEnv("DB_DRIVER", c.Database.Driver))
	c.Database.Host = getEnv("POSTGRES_HOST", c.Database.Host)
	c.Database.Port = getEnv("POSTGRES_PORT", c.Database.Port)
	c.Database.User = getEnv("POSTGRES_USER", c.Database.User)
	c.Database.Password = getEnv("POSTGRES_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("POSTGRES_DB", c.Database.DBName)
	c.Database.SQLitePath = getEnv("SQLITE_PATH", c.Database.SQLitePath)
	c.Database.AutoMigrate = getEnvAsBool("DB_AUTO_MIGRATE", c.Database.AutoMigrate || c.Database.Driver == "sqlite")

	c.RabbitMQ.Enabled = getEnvAsBool("RABBITMQ_ENABLED", c.RabbitMQ.Enabled)
	c.RabbitMQ.Host = getEnv("RABBITMQ_HOST", c.RabbitMQ.Host)
	c.RabbitMQ.Port = getEnv("RABBITMQ_PORT", c.RabbitMQ.Port)
	c.RabbitMQ.User = getEnv("RABBITMQ_DEFAULT_USER", c.RabbitMQ.User)
	c.RabbitMQ.Password = getEnv("RABBITMQ_DEFAULT_PASS", c.RabbitMQ.Password)
	c.RabbitMQ.SendQueue = getEnv("RABBITMQ_SEND_QUEUE", c.RabbitMQ.SendQueue)
	c.RabbitMQ.EventsQueue = getEnv("RABBITMQ_EVENTS_QUEUE", c.RabbitMQ.EventsQueue)

	c.Dispatch.BatchSize = getEnvAsInt("DISPATCH_BATCH_SIZE", c.Dispatch.BatchSize)
	c.Dispatch.AdHocBatchSize = getEnvAsInt("ADHOC_BATCH_SIZE", c.Dispatch.AdHocBatchSize)
	c.Dispatch.RatePerSec = getEnvAsInt("DISPATCH_RATE_PER_SEC", c.Dispatch.RatePerSec)
	c.Scheduler.Enabled = getEnvAsBool("SCHEDULER_ENABLED", c.Scheduler.Enabled)
	c.Transport.SuccessRate = getEnvAsFloat("TRANSPORT_SUCCESS_RATE", c.Transport.SuccessRate)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"DISPATCH_BATCH_DELAY", &c.Dispatch.BatchDelay},
		{"ADHOC_BATCH_DELAY", &c.Dispatch.AdHocBatchDelay},
		{"DISPATCH_SEND_TIMEOUT", &c.Dispatch.SendTimeout},
		{"SCHEDULER_POLL_INTERVAL", &c.Scheduler.PollInterval},
		{"SCHEDULER_INITIAL_DELAY", &c.Scheduler.InitialDelay},
		{"TRANSPORT_MIN_LATENCY", &c.Transport.MinLatency},
		{"TRANSPORT_MAX_LATENCY", &c.Transport.MaxLatency},
	}
	for _, d := range durations {
		v, err := getEnvAsDuration(d.key, *d.dst)
		if err != nil {
			return err
		}
		*d.dst = v
	}

	return nil
}

// Validate rejects configurations the engine cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Password == "" {
			return fmt.Errorf("POSTGRES_PASSWORD is required")
		}
	case "sqlite":
		if strings.TrimSpace(c.Database.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q: must be postgres, sqlite or memory", c.Database.Driver)
	}

	if c.Dispatch.BatchSize < 1 {
		return fmt.Errorf("DISPATCH_BATCH_SIZE must be at least 1")
	}
	if c.Dispatch.AdHocBatchSize < 1 {
		return fmt.Errorf("ADHOC_BATCH_SIZE must be at least 1")
	}
	if c.Dispatch.BatchDelay < 0 || c.Dispatch.AdHocBatchDelay < 0 {
		return fmt.Errorf("batch delays must not be negative")
	}
	if c.Dispatch.RatePerSec < 0 {
		return fmt.Errorf("DISPATCH_RATE_PER_SEC must not be negative")
	}
	if c.Scheduler.PollInterval < time.Second {
		return fmt.Errorf("SCHEDULER_POLL_INTERVAL must be at least 1s")
	}
	if c.Scheduler.InitialDelay < 0 {
		return fmt.Errorf("SCHEDULER_INITIAL_DELAY must not be negative")
	}
	if c.Transport.SuccessRate < 0 || c.Transport.SuccessRate > 1 {
		return fmt.Errorf("TRANSPORT_SUCCESS_RATE must be between 0 and 1")
	}
	if c.Transport.MaxLatency < c.Transport.MinLatency {
		return fmt.Errorf("TRANSPORT_MAX_LATENCY must not be below TRANSPORT_MIN_LATENCY")
	}
	if c.RabbitMQ.Enabled && (c.RabbitMQ.SendQueue == "" || c.RabbitMQ.EventsQueue == "") {
		return fmt.Errorf("queue names are required when RABBITMQ_ENABLED is set")
	}
	return nil
}

// GetDatabaseDSN returns PostgreSQL connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// GetRabbitMQURL returns RabbitMQ connection URL
func (c *Config) GetRabbitMQURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		c.RabbitMQ.User,
		c.RabbitMQ.Password,
		c.RabbitMQ.Host,
		c.RabbitMQ.Port,
	)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer or returns default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("1500ms") or bare milliseconds ("1500")
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	if ms, err := strconv.Atoi(value); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("%s: duration must be >= 0", key)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	return ParseDurationField(key, value)
}
