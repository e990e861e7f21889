package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stderr"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10m"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		RatePerSec      float64       `yaml:"rate_per_sec" default:"1"`
		RateBurst       int           `yaml:"rate_burst" default:"3"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	MarketData struct {
		Provider   string        `yaml:"provider" default:"alpaca" validate:"oneof=alpaca alphavantage clickhouse"`
		Lookback   time.Duration `yaml:"lookback" default:"672h" validate:"gt=0"`
		Timeout    time.Duration `yaml:"timeout" default:"10s"`
		Attempts   int           `yaml:"attempts" default:"3" validate:"gte=1,lte=10"`
		Backoff    time.Duration `yaml:"backoff" default:"200ms"`
		RatePerSec float64       `yaml:"rate_per_sec" default:"3"`
		RateBurst  int           `yaml:"rate_burst" default:"1"`
		// Mirror writes fetched closes into ClickHouse daily_closes.
		Mirror bool `yaml:"mirror"`
		Alpaca     struct {
			KeyID     string `yaml:"key_id"`
			SecretKey string `yaml:"secret_key"`
			BaseURL   string `yaml:"base_url"`
			Feed      string `yaml:"feed" default:"iex" validate:"oneof=iex sip"`
		} `yaml:"alpaca"`
		AlphaVantage struct {
			APIKey     string `yaml:"api_key"`
			BaseURL    string `yaml:"base_url"`
			OutputSize string `yaml:"output_size" default:"compact" validate:"oneof=compact full"`
		} `yaml:"alphavantage"`
		Cache struct {
			Enabled bool          `yaml:"enabled"`
			Backend string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered"`
			TTL     time.Duration `yaml:"ttl" default:"1h"`
		} `yaml:"cache"`
	} `yaml:"market_data"`
	Forecast struct {
		FitWindow        int     `yaml:"fit_window" default:"2" validate:"gte=1,lte=120"`
		Window           int     `yaml:"window" default:"30" validate:"gte=0,lte=365"`
		Epochs           int     `yaml:"epochs" default:"5" validate:"gte=1"`
		BatchSize        int     `yaml:"batch_size" default:"2" validate:"gte=1"`
		TrainFraction    float64 `yaml:"train_fraction" default:"0.8" validate:"gt=0,lte=1"`
		RefitEpochs      int     `yaml:"refit_epochs" default:"10" validate:"gte=0"`
		RefitBatchSize   int     `yaml:"refit_batch_size" default:"1" validate:"gte=1"`
		Dropout          float64 `yaml:"dropout" default:"0.2" validate:"gte=0,lt=1"`
		LearningRate     float64 `yaml:"learning_rate" default:"0.001" validate:"gt=0"`
		Seed             uint64  `yaml:"seed"`
		ScaleOnTrainOnly bool    `yaml:"scale_on_train_only"`
		Policy           string  `yaml:"policy" default:"fail_fast" validate:"oneof=fail_fast collect"`
		Concurrency      int     `yaml:"concurrency" default:"1" validate:"gte=1,lte=64"`
	} `yaml:"forecast"`
	Models struct {
		Store string        `yaml:"store" default:"none" validate:"oneof=none file cache"`
		Dir   string        `yaml:"dir" default:"models"`
		Reuse bool          `yaml:"reuse"`
		TTL   time.Duration `yaml:"ttl" default:"168h"`
	} `yaml:"models"`
	Results struct {
		Store   bool `yaml:"store"`
		Publish bool `yaml:"publish"`
	} `yaml:"results"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"forecast.results"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`

		// AutoCreateTopic lets the producer create a missing result topic.
		AutoCreateTopic bool `yaml:"auto_create_topic"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"fincast"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"fincast"`
	} `yaml:"redis"`
}

// Load reads a YAML configuration file, fills defaults and validates it.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables
// before validating.
func LoadWithEnv(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func (c *Config) applyEnv() {
	if v := firstEnv("FINCAST_ENV"); v != "" {
		c.Environment = v
	}
	if v := firstEnv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := firstEnv("FINCAST_PROVIDER"); v != "" {
		c.MarketData.Provider = v
	}
	if v := firstEnv("ALPACA_API_KEY_ID", "APCA_API_KEY_ID"); v != "" {
		c.MarketData.Alpaca.KeyID = v
	}
	if v := firstEnv("ALPACA_SECRET_KEY", "APCA_API_SECRET_KEY"); v != "" {
		c.MarketData.Alpaca.SecretKey = v
	}
	if v := firstEnv("ALPHAVANTAGE_API_KEY"); v != "" {
		c.MarketData.AlphaVantage.APIKey = v
	}
	if v := firstEnv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := firstEnv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := firstEnv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := firstEnv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := firstEnv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	switch c.MarketData.Provider {
	case "alpaca":
		if c.MarketData.Alpaca.KeyID == "" || c.MarketData.Alpaca.SecretKey == "" {
			return fmt.Errorf("market_data.alpaca key_id and secret_key are required (ALPACA_API_KEY_ID / ALPACA_SECRET_KEY)")
		}
	case "alphavantage":
		if c.MarketData.AlphaVantage.APIKey == "" {
			return fmt.Errorf("market_data.alphavantage.api_key is required (ALPHAVANTAGE_API_KEY)")
		}
	}
	if c.MarketData.Mirror && c.MarketData.Provider == "clickhouse" {
		return fmt.Errorf("market_data.mirror needs a remote provider")
	}
	if c.Results.Publish && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when results.publish is set")
	}
	if c.Models.Store == "cache" && !c.MarketData.Cache.Enabled {
		return fmt.Errorf("models.store 'cache' requires market_data.cache.enabled")
	}
	return nil
}
