package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the full configuration surface for the application.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Postgres     PostgresConfig     `mapstructure:"postgres"`
	Scylla       ScyllaConfig       `mapstructure:"scylla"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Room         RoomConfig         `mapstructure:"room"`
	Cache        CacheConfig        `mapstructure:"cache"`
	CallBridge   CallBridgeConfig   `mapstructure:"call_bridge"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

type ScyllaConfig struct {
	Hosts       []string      `mapstructure:"hosts"`
	Port        int           `mapstructure:"port"`
	Keyspace    string        `mapstructure:"keyspace"`
	Consistency string        `mapstructure:"consistency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers            []string      `mapstructure:"brokers"`
	ClientID           string        `mapstructure:"client_id"`
	NotificationsTopic string        `mapstructure:"notifications_topic"`
	ConsumerGroupID    string        `mapstructure:"consumer_group_id"`
	CommitInterval     time.Duration `mapstructure:"commit_interval"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

type TelemetryConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	ServiceName     string        `mapstructure:"service_name"`
	SampleRatio     float64       `mapstructure:"sample_ratio"`
	TracingEnabled  bool          `mapstructure:"tracing_enabled"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// OrchestratorConfig tunes the outbound call loop.
type OrchestratorConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	AttemptTimeout  time.Duration `mapstructure:"attempt_timeout"`
	LockWaitTimeout time.Duration `mapstructure:"lock_wait_timeout"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
	InterCallDelay  time.Duration `mapstructure:"inter_call_delay"`
}

// RoomConfig tunes room provisioning and its creation retry policy.
type RoomConfig struct {
	ServiceURL     string        `mapstructure:"service_url"`
	APIKey         string        `mapstructure:"api_key"`
	APISecret      string        `mapstructure:"api_secret"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CreateAttempts int           `mapstructure:"create_attempts"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
}

type CacheConfig struct {
	AppointmentTTL time.Duration `mapstructure:"appointment_ttl"`
	EventLogMax    int64         `mapstructure:"event_log_max"`
}

type CallBridgeConfig struct {
	ProviderName   string        `mapstructure:"provider_name"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	SuccessRate    float64       `mapstructure:"success_rate"`
}

// SchedulerConfig tunes the daemon that runs call batches on an interval.
// Window times are HH:MM in the local time of the deployment.
type SchedulerConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	WindowStart  string        `mapstructure:"window_start"`
	WindowEnd    string        `mapstructure:"window_end"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("VOICEAGENT")
	v.SetEnvKeyReplacer(NewEnvReplacer())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	// The mock provisioner (empty service_url) needs no credentials.
	if cfg.Room.ServiceURL != "" && (cfg.Room.APIKey == "" || cfg.Room.APISecret == "") {
		return nil, fmt.Errorf("config: room service api_key and api_secret are required")
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Orchestrator.MaxRetries <= 0 {
		cfg.Orchestrator.MaxRetries = 3
	}
	if cfg.Orchestrator.RetryDelay <= 0 {
		cfg.Orchestrator.RetryDelay = 5 * time.Second
	}
	if cfg.Orchestrator.AttemptTimeout <= 0 {
		cfg.Orchestrator.AttemptTimeout = 30 * time.Second
	}
	if cfg.Orchestrator.LockWaitTimeout <= 0 {
		cfg.Orchestrator.LockWaitTimeout = 60 * time.Second
	}
	if cfg.Orchestrator.LockTTL <= 0 {
		cfg.Orchestrator.LockTTL = 90 * time.Second
	}
	if cfg.Orchestrator.InterCallDelay <= 0 {
		cfg.Orchestrator.InterCallDelay = 2 * time.Second
	}
	if cfg.Room.CreateAttempts <= 0 {
		cfg.Room.CreateAttempts = 3
	}
	if cfg.Room.BackoffBase <= 0 {
		cfg.Room.BackoffBase = time.Second
	}
	if cfg.Room.BackoffMax <= 0 {
		cfg.Room.BackoffMax = 10 * time.Second
	}
	if cfg.Cache.AppointmentTTL <= 0 {
		cfg.Cache.AppointmentTTL = time.Hour
	}
	if cfg.Cache.EventLogMax <= 0 {
		cfg.Cache.EventLogMax = 1000
	}
	if cfg.Scheduler.TickInterval <= 0 {
		cfg.Scheduler.TickInterval = time.Minute
	}
	if cfg.Scheduler.WindowStart == "" {
		cfg.Scheduler.WindowStart = "09:00"
	}
	if cfg.Scheduler.WindowEnd == "" {
		cfg.Scheduler.WindowEnd = "20:00"
	}
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}
