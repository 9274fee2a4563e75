package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	JobStore     JobStoreConfig     `mapstructure:"job_store"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Admin        AdminConfig        `mapstructure:"admin"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Log          LogConfig          `mapstructure:"log"`
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	Sync         SyncConfig         `mapstructure:"sync"`
	Scaling      ScalingConfig      `mapstructure:"scaling"`
	Bulk         BulkConfig         `mapstructure:"bulk"`
	Registration RegistrationConfig `mapstructure:"registration"`
	Events       EventsConfig       `mapstructure:"events"`
	Sentry       SentryConfig       `mapstructure:"sentry"`
}

type ServerConfig struct {
	Host                    string        `mapstructure:"host"`
	Port                    int           `mapstructure:"port" validate:"gt=0,lt=65536"`
	Mode                    string        `mapstructure:"mode" validate:"omitempty,oneof=debug release test"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            int           `mapstructure:"port" validate:"gt=0"`
	DB              string        `mapstructure:"db" validate:"required"`
	User            string        `mapstructure:"user" validate:"required"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JobStoreConfig struct {
	Backend string        `mapstructure:"backend" validate:"oneof=redis memory"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type JWTConfig struct {
	SigningKey     string        `mapstructure:"signing_key" validate:"required"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type AdminConfig struct {
	UserIDs []string `mapstructure:"user_ids" validate:"dive,uuid"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GatewayConfig configures the WhatsApp gateway HTTP client.
type GatewayConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	APIKey         string        `mapstructure:"api_key" validate:"required"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	CreateTimeout  time.Duration `mapstructure:"create_timeout"`
	PictureTimeout time.Duration `mapstructure:"picture_timeout"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	Burst          int           `mapstructure:"burst"`
}

type SyncConfig struct {
	Enabled      bool                     `mapstructure:"enabled"`
	Interval     time.Duration            `mapstructure:"interval"`
	HotInterval  time.Duration            `mapstructure:"hot_interval"`
	HotCampaigns map[string]time.Duration `mapstructure:"hot_campaigns"`
}

type ScalingConfig struct {
	MinGroupSize     int     `mapstructure:"min_group_size"`
	WarningThreshold float64 `mapstructure:"warning_threshold" validate:"gt=0,lte=1"`
}

type BulkConfig struct {
	MinDelay time.Duration `mapstructure:"min_delay"`
	MaxDelay time.Duration `mapstructure:"max_delay" validate:"gtefield=MinDelay"`
}

type RegistrationConfig struct {
	DefaultRegion string `mapstructure:"default_region" validate:"len=2"`
}

type EventsConfig struct {
	Backend string      `mapstructure:"backend" validate:"oneof=none kafka"`
	Kafka   KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.graceful_shutdown_timeout", 30*time.Second)

	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.redis.port", 6379)

	v.SetDefault("job_store.backend", "memory")
	v.SetDefault("job_store.ttl", 7*24*time.Hour)

	v.SetDefault("jwt.issuer", "groupflow")
	v.SetDefault("jwt.access_token_ttl", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("gateway.timeout", 15*time.Second)
	v.SetDefault("gateway.read_timeout", 10*time.Second)
	v.SetDefault("gateway.create_timeout", 20*time.Second)
	v.SetDefault("gateway.picture_timeout", 30*time.Second)
	v.SetDefault("gateway.rate_per_second", 5.0)
	v.SetDefault("gateway.burst", 5)

	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.interval", 30*time.Second)
	v.SetDefault("sync.hot_interval", 10*time.Second)

	v.SetDefault("scaling.min_group_size", 5)
	v.SetDefault("scaling.warning_threshold", 0.9)

	v.SetDefault("bulk.min_delay", 2*time.Second)
	v.SetDefault("bulk.max_delay", 5*time.Second)

	v.SetDefault("registration.default_region", "BR")

	v.SetDefault("events.backend", "none")
	v.SetDefault("events.kafka.topic", "campaign-events")

	v.SetDefault("sentry.sample_rate", 1.0)
}

// Load reads config.yaml, overlays .env and environment variables, and returns a validated Config.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	// Environment variable override: GATEWAY_API_KEY -> gateway.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize clamps values that have hard floors.
func (c *Config) normalize() {
	if c.Scaling.MinGroupSize < 5 {
		c.Scaling.MinGroupSize = 5
	}
	if c.Bulk.MinDelay < 2*time.Second {
		c.Bulk.MinDelay = 2 * time.Second
	}
	if c.Bulk.MaxDelay < c.Bulk.MinDelay {
		c.Bulk.MaxDelay = c.Bulk.MinDelay
	}
	c.Registration.DefaultRegion = strings.ToUpper(c.Registration.DefaultRegion)
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Events.Backend == "kafka" && len(c.Events.Kafka.Brokers) == 0 {
		return fmt.Errorf("invalid config: events.kafka.brokers required for kafka backend")
	}
	return nil
}
