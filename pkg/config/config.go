package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Data struct {
		PricesCSV   string   `yaml:"prices_csv"`
		DateFormats []string `yaml:"date_formats"`
		MinDate     string   `yaml:"min_date"`
		MaxDate     string   `yaml:"max_date"`
		SampleRate  int      `yaml:"sample_rate"` // chart downsampling: keep every Nth point
	} `yaml:"data"`
	Model struct {
		Segments         int     `yaml:"segments"`
		MinSegmentLength int     `yaml:"min_segment_length"`
		Chains           int     `yaml:"chains"`
		Draws            int     `yaml:"draws"`
		Warmup           int     `yaml:"warmup"`
		Seed             int64   `yaml:"seed"`
		MaxRHat          float64 `yaml:"max_rhat"`
		MinESS           float64 `yaml:"min_ess"`
	} `yaml:"model"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Queue    struct {
			Workers    int           `yaml:"workers"`
			RetryLimit int           `yaml:"retry_limit"`
			RetryDelay time.Duration `yaml:"retry_delay"`
			KeyPrefix  string        `yaml:"key_prefix"`
		} `yaml:"queue"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		ResultsTopic string   `yaml:"results_topic"`
		PricesTopic  string   `yaml:"prices_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Consumer     struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Cache struct {
		ResultTTL time.Duration `yaml:"result_ttl"`
		PricesTTL time.Duration `yaml:"prices_ttl"`
	} `yaml:"cache"`
	RateLimit struct {
		AnalysesPerMinute float64 `yaml:"analyses_per_minute"`
		Burst             float64 `yaml:"burst"`
	} `yaml:"ratelimit"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PRICES_CSV"); v != "" {
		c.Data.PricesCSV = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MODEL_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse MODEL_SEED: %w", err)
		}
		c.Model.Seed = seed
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Data.PricesCSV == "" && !c.ClickHouse.Enabled {
		return fmt.Errorf("either data.prices_csv or clickhouse must be configured as a price source")
	}
	if c.Model.Segments != 0 && c.Model.Segments < 2 {
		return fmt.Errorf("model.segments must be >= 2, got %d", c.Model.Segments)
	}
	if c.Model.Chains != 0 && c.Model.Chains < 2 {
		return fmt.Errorf("model.chains must be >= 2, got %d", c.Model.Chains)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Data.SampleRate < 0 {
		return fmt.Errorf("data.sample_rate must be >= 0, got %d", c.Data.SampleRate)
	}
	return nil
}
