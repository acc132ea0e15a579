package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"dining-concierge/internal/logging"
)

// Config is the full process configuration, shared by the worker, the
// router API and the seeding job. Values come from config.yaml when present,
// overridden by environment variables.
type Config struct {
	Log      logging.Config
	Server   ServerConfig
	Kafka    KafkaConfig
	Search   SearchConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	Dispatch DispatchConfig
}

type ServerConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers        string
	Topic          string
	GroupID        string        `mapstructure:"group_id"`
	DLQTopic       string        `mapstructure:"dlq_topic"`
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
}

// BrokerList splits the comma-separated broker string.
func (c KafkaConfig) BrokerList() []string {
	return strings.Split(c.Brokers, ",")
}

type SearchConfig struct {
	Endpoint  string
	Index     string
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type DispatchConfig struct {
	WaitWindow  time.Duration `mapstructure:"wait_window"`
	ResultCap   int           `mapstructure:"result_cap"`
	SampleSize  int           `mapstructure:"sample_size"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
}

// Load reads configuration with defaults, an optional config.yaml in the
// working directory, and environment overrides.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	// Set defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "dining-concierge")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("kafka.brokers", "kafka:9092")
	v.SetDefault("kafka.topic", "dining.requests")
	v.SetDefault("kafka.group_id", "dispatch-worker")
	v.SetDefault("kafka.dlq_topic", "dining.requests.dlq")
	v.SetDefault("kafka.session_timeout", "30s")
	v.SetDefault("search.endpoint", "http://opensearch:9200")
	v.SetDefault("search.index", "restaurants")
	v.SetDefault("search.access_key", "")
	v.SetDefault("search.secret_key", "")
	v.SetDefault("redis.address", "redis:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "concierge@example.com")
	v.SetDefault("smtp.timeout", "30s")
	v.SetDefault("dispatch.wait_window", "5s")
	v.SetDefault("dispatch.result_cap", 50)
	v.SetDefault("dispatch.sample_size", 5)
	v.SetDefault("dispatch.max_retries", 3)
	v.SetDefault("dispatch.base_backoff", "500ms")
	v.SetDefault("dispatch.max_backoff", "5s")

	// Override from environment
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("server.addr", "HTTP_ADDR")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("kafka.group_id", "KAFKA_GROUP_ID")
	v.BindEnv("kafka.dlq_topic", "KAFKA_DLQ_TOPIC")
	v.BindEnv("search.endpoint", "SEARCH_ENDPOINT")
	v.BindEnv("search.index", "SEARCH_INDEX")
	v.BindEnv("search.access_key", "SEARCH_ACCESS_KEY")
	v.BindEnv("search.secret_key", "SEARCH_SECRET_KEY")
	v.BindEnv("redis.address", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("smtp.host", "SMTP_HOST")
	v.BindEnv("smtp.port", "SMTP_PORT")
	v.BindEnv("smtp.username", "SMTP_USERNAME")
	v.BindEnv("smtp.password", "SMTP_PASSWORD")
	v.BindEnv("smtp.from", "SMTP_FROM")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Kafka.SessionTimeout = parseDuration(v, "kafka.session_timeout", 30*time.Second)
	cfg.SMTP.Timeout = parseDuration(v, "smtp.timeout", 30*time.Second)
	cfg.Dispatch.WaitWindow = parseDuration(v, "dispatch.wait_window", 5*time.Second)
	cfg.Dispatch.BaseBackoff = parseDuration(v, "dispatch.base_backoff", 500*time.Millisecond)
	cfg.Dispatch.MaxBackoff = parseDuration(v, "dispatch.max_backoff", 5*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
