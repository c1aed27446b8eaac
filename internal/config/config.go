package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	DefaultPort        = 5500
	DefaultConcurrency = 5
)

// Broker drivers.
const (
	DriverRabbitMQ = "rabbitmq"
	DriverMemory   = "memory"
)

// Adapter backends.
const (
	BackendBroker = "broker"
	BackendRedis  = "redis"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Broker   BrokerConfig   `yaml:"broker"`
	Adapter  AdapterConfig  `yaml:"adapter"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Queue    QueueConfig    `yaml:"queue"`
	Database DatabaseConfig `yaml:"database"`
	Email    EmailConfig    `yaml:"email"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Worker   WorkerConfig   `yaml:"worker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// BrokerConfig selects and configures the shared store behind the queues.
type BrokerConfig struct {
	Driver             string        `yaml:"driver" env:"BROKER_DRIVER"`
	URL                string        `yaml:"url" env:"BROKER_URL"`
	RetryAttempts      int           `yaml:"retry_attempts"`
	RetryInterval      time.Duration `yaml:"retry_interval"`
	Heartbeat          time.Duration `yaml:"heartbeat"`
	ConnectionTimeout  time.Duration `yaml:"connection_timeout"`
	ConfirmTimeout     time.Duration `yaml:"confirm_timeout"`
	MaxDeliveries      int           `yaml:"max_deliveries"`
	DeadLetterExchange string        `yaml:"dead_letter_exchange"`
}

// AdapterConfig configures cross-process broadcast replication.
type AdapterConfig struct {
	Backend        string        `yaml:"backend" env:"ADAPTER_BACKEND"`
	Channel        string        `yaml:"channel"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	RedisURL       string        `yaml:"redis_url" env:"REDIS_URL"`
}

// GatewayConfig holds websocket gateway settings
type GatewayConfig struct {
	Path           string        `yaml:"path"`
	AllowedOrigin  string        `yaml:"allowed_origin" env:"CLIENT_URL"`
	SendBuffer     int           `yaml:"send_buffer"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	WriteWait      time.Duration `yaml:"write_wait"`
	PongWait       time.Duration `yaml:"pong_wait"`
	InboundRPS     float64       `yaml:"inbound_rps"`
	InboundBurst   int           `yaml:"inbound_burst"`
}

// QueueConfig holds dispatch settings. Concurrency maps "queue.job" to a
// per-job override of DefaultConcurrency.
type QueueConfig struct {
	DefaultConcurrency int            `yaml:"default_concurrency"`
	Concurrency        map[string]int `yaml:"concurrency"`
	JobTimeout         time.Duration  `yaml:"job_timeout"`
	ReconsumeInterval  time.Duration  `yaml:"reconsume_interval"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled" env:"DATABASE_ENABLED"`
	Host            string        `yaml:"host" env:"DATABASE_HOST"`
	Port            int           `yaml:"port" env:"DATABASE_PORT"`
	User            string        `yaml:"user" env:"DATABASE_USER"`
	Password        string        `yaml:"password" env:"DATABASE_PASSWORD"`
	Database        string        `yaml:"database" env:"DATABASE_NAME"`
	SSLMode         string        `yaml:"sslmode" env:"DATABASE_SSLMODE"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// EmailConfig holds outbound mail settings. Without a Mailgun domain mails
// are logged instead of sent.
type EmailConfig struct {
	Sender         string `yaml:"sender" env:"SENDER_EMAIL"`
	MailgunDomain  string `yaml:"mailgun_domain" env:"MAILGUN_DOMAIN"`
	MailgunAPIKey  string `yaml:"mailgun_api_key" env:"MAILGUN_API_KEY"`
	MailgunBaseURL string `yaml:"mailgun_base_url" env:"MAILGUN_API_BASE"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" env:"LOG_LEVEL"`
	Format       string `yaml:"format" env:"LOG_FORMAT"`
	Output       string `yaml:"output"`
	EnableSource bool   `yaml:"enable_source"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment" env:"APP_ENV"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	// Embedded runs the queue workers inside the api-service process.
	Embedded        bool          `yaml:"embedded" env:"WORKER_EMBEDDED"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Load reads the configuration file and applies environment overrides and
// defaults. It does not validate.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	setDuration(&c.Server.ReadTimeout, 15*time.Second)
	setDuration(&c.Server.WriteTimeout, 15*time.Second)
	setDuration(&c.Server.IdleTimeout, 60*time.Second)
	setDuration(&c.Server.ShutdownTimeout, 10*time.Second)

	if c.Broker.Driver == "" {
		c.Broker.Driver = DriverRabbitMQ
	}
	if c.Broker.RetryAttempts == 0 {
		c.Broker.RetryAttempts = 5
	}
	setDuration(&c.Broker.RetryInterval, 2*time.Second)
	setDuration(&c.Broker.Heartbeat, 10*time.Second)
	setDuration(&c.Broker.ConnectionTimeout, 5*time.Second)
	setDuration(&c.Broker.ConfirmTimeout, 5*time.Second)
	if c.Broker.MaxDeliveries == 0 {
		c.Broker.MaxDeliveries = 5
	}
	if c.Broker.DeadLetterExchange == "" {
		c.Broker.DeadLetterExchange = "backbone.dlx"
	}

	if c.Adapter.Backend == "" {
		c.Adapter.Backend = BackendBroker
	}
	if c.Adapter.Channel == "" {
		c.Adapter.Channel = "gateway.broadcast"
	}
	setDuration(&c.Adapter.RetryInterval, 2*time.Second)
	setDuration(&c.Adapter.PublishTimeout, 2*time.Second)

	if c.Gateway.Path == "" {
		c.Gateway.Path = "/socket"
	}
	if c.Gateway.AllowedOrigin == "" {
		c.Gateway.AllowedOrigin = "*"
	}
	if c.Gateway.SendBuffer == 0 {
		c.Gateway.SendBuffer = 256
	}
	if c.Gateway.MaxMessageSize == 0 {
		c.Gateway.MaxMessageSize = 64 << 10
	}
	setDuration(&c.Gateway.WriteWait, 10*time.Second)
	setDuration(&c.Gateway.PongWait, 60*time.Second)
	if c.Gateway.InboundRPS == 0 {
		c.Gateway.InboundRPS = 20
	}
	if c.Gateway.InboundBurst == 0 {
		c.Gateway.InboundBurst = 40
	}

	if c.Queue.DefaultConcurrency == 0 {
		c.Queue.DefaultConcurrency = DefaultConcurrency
	}
	setDuration(&c.Queue.ReconsumeInterval, 2*time.Second)

	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	setDuration(&c.Worker.ShutdownTimeout, 30*time.Second)
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}

// ConcurrencyFor returns the concurrency configured for queueName/jobName.
func (c *Config) ConcurrencyFor(queueName, jobName string) int {
	if n, ok := c.Queue.Concurrency[queueName+"."+jobName]; ok && n > 0 {
		return n
	}
	if c.Queue.DefaultConcurrency > 0 {
		return c.Queue.DefaultConcurrency
	}
	return DefaultConcurrency
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	switch c.Broker.Driver {
	case DriverRabbitMQ:
		if c.Broker.URL == "" {
			return fmt.Errorf("broker url is required for the %s driver", DriverRabbitMQ)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown broker driver: %q", c.Broker.Driver)
	}

	if c.Broker.RetryAttempts < 1 {
		return fmt.Errorf("broker retry_attempts must be greater than 0")
	}

	switch c.Adapter.Backend {
	case BackendBroker:
	case BackendRedis:
		if c.Adapter.RedisURL == "" {
			return fmt.Errorf("adapter redis_url is required for the %s backend", BackendRedis)
		}
	default:
		return fmt.Errorf("unknown adapter backend: %q", c.Adapter.Backend)
	}

	if c.Queue.DefaultConcurrency < 1 {
		return fmt.Errorf("queue default_concurrency must be greater than 0")
	}
	for key, n := range c.Queue.Concurrency {
		if n < 1 {
			return fmt.Errorf("queue concurrency for %s must be greater than 0", key)
		}
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Email.MailgunDomain != "" && c.Email.MailgunAPIKey == "" {
		return fmt.Errorf("email mailgun_api_key is required when mailgun_domain is set")
	}

	return nil
}
