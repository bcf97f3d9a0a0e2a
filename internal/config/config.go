package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Email    EmailConfig    `mapstructure:"email"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Lock     LockConfig     `mapstructure:"lock"`

	Secrets Secrets `mapstructure:"-"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN is the lib/pq keyword form.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL is the form golang-migrate expects.
func (c DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	Channel      string        `mapstructure:"channel"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type JWTConfig struct {
	Issuer      string `mapstructure:"issuer"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

func (c JWTConfig) TTL() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

type EmailConfig struct {
	// Provider is one of smtp, sendgrid, ses or log.
	Provider  string        `mapstructure:"provider"`
	FromName  string        `mapstructure:"from_name"`
	Timeout   time.Duration `mapstructure:"timeout"`
	SMTP      SMTPConfig    `mapstructure:"smtp"`
	SESRegion string        `mapstructure:"ses_region"`
	// Timezone the appointment date is rendered in.
	Timezone string `mapstructure:"timezone"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
}

type OutboxConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	Lease           time.Duration `mapstructure:"lease"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
	InProcess       bool          `mapstructure:"in_process"`
}

type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	// GenerationKey is the Redis counter every API instance checks before serving the listing.
	GenerationKey string `mapstructure:"generation_key"`
}

type LimitsConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	MaxBodyBytes      int64   `mapstructure:"max_body_bytes"`
}

type LockConfig struct {
	IntakeTTL time.Duration `mapstructure:"intake_ttl"`
}

// Secrets come only from the process environment.
type Secrets struct {
	NotifyAPIKey string `envconfig:"NOTIFY_API_KEY"`
	FromEmail    string `envconfig:"FROM_EMAIL"`
	AdminPasskey string `envconfig:"ADMIN_PASSKEY"`
	JWTSecret    string `envconfig:"JWT_SECRET"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
}

const envPrefix = "MEDIBOOK"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "medibook")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.channel", "medibook.appointments")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("jwt.issuer", "medibook-api")
	v.SetDefault("jwt.expiry_hours", 8)

	v.SetDefault("email.provider", "log")
	v.SetDefault("email.from_name", "MediBook Clinic")
	v.SetDefault("email.timezone", "UTC")
	v.SetDefault("email.timeout", 10*time.Second)
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.ses_region", "us-east-1")

	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", 2*time.Second)
	v.SetDefault("outbox.max_attempts", 5)
	v.SetDefault("outbox.retry_delay", 5*time.Second)
	v.SetDefault("outbox.lease", time.Minute)
	v.SetDefault("outbox.retention", 7*24*time.Hour)
	v.SetDefault("outbox.cleanup_schedule", "0 3 * * *")
	v.SetDefault("outbox.in_process", true)

	v.SetDefault("cache.ttl", 30*time.Second)
	v.SetDefault("cache.cleanup_interval", time.Minute)
	v.SetDefault("cache.generation_key", "medibook:admin:listing:generation")

	v.SetDefault("limits.requests_per_second", 5)
	v.SetDefault("limits.burst", 10)
	v.SetDefault("limits.max_body_bytes", 1<<20)

	v.SetDefault("lock.intake_ttl", 5*time.Second)
}

// LoadConfig reads .env, then config.yaml (optional), then MEDIBOOK_* overrides and secrets.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app/config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &config.Secrets); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return &config, nil
}

// Validate rejects configurations the API cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Secrets.AdminPasskey == "" {
		errs = append(errs, errors.New("ADMIN_PASSKEY is required"))
	}
	if len(c.Secrets.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}
	switch c.Email.Provider {
	case "log":
	case "smtp":
		if c.Email.SMTP.Host == "" {
			errs = append(errs, errors.New("email.smtp.host is required for the smtp provider"))
		}
	case "sendgrid":
		if c.Secrets.NotifyAPIKey == "" {
			errs = append(errs, errors.New("NOTIFY_API_KEY is required for the sendgrid provider"))
		}
	case "ses":
	default:
		errs = append(errs, fmt.Errorf("unknown email provider %q", c.Email.Provider))
	}
	if c.Email.Provider != "log" && c.Secrets.FromEmail == "" {
		errs = append(errs, errors.New("FROM_EMAIL is required"))
	}
	if _, err := time.LoadLocation(c.Email.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid email.timezone: %w", err))
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.MaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox batch_size and max_attempts must be positive"))
	}
	return errors.Join(errs...)
}
