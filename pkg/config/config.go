package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Tables struct {
		Calendar      string `yaml:"calendar"`
		MarketHistory string `yaml:"market_history"`
		RatesPrefix   string `yaml:"rates_prefix"`
	} `yaml:"tables"`
	Snapshot struct {
		RefreshInterval   time.Duration      `yaml:"refresh_interval"`
		ShiftWindow       int                `yaml:"shift_window"`
		ShortWindow       int                `yaml:"short_window"`
		LongWindow        int                `yaml:"long_window"`
		CalendarThreshold float64            `yaml:"calendar_threshold"`
		DefaultThreshold  float64            `yaml:"default_threshold"`
		Instruments       []string           `yaml:"instruments"`
		Thresholds        map[string]float64 `yaml:"thresholds"`
		Modifications     map[string]float64 `yaml:"modifications"`
	} `yaml:"snapshot"`
	Alerts struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
	} `yaml:"alerts"`
	Cache struct {
		Enabled bool          `yaml:"enabled"`
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
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

	if v := os.Getenv("INSTRUMENTS"); v != "" {
		c.Snapshot.Instruments = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Alerts.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ALERTS_TOPIC"); v != "" {
		c.Alerts.Topic = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Tables.Calendar == "" || c.Tables.MarketHistory == "" || c.Tables.RatesPrefix == "" {
		return fmt.Errorf("tables.calendar, tables.market_history and tables.rates_prefix are required")
	}
	if len(c.Snapshot.Instruments) == 0 {
		return fmt.Errorf("snapshot.instruments cannot be empty")
	}
	if c.Snapshot.ShiftWindow <= 0 {
		return fmt.Errorf("snapshot.shift_window must be positive")
	}
	if c.Snapshot.RefreshInterval <= 0 {
		return fmt.Errorf("snapshot.refresh_interval must be positive")
	}
	if c.Alerts.Enabled && len(c.Alerts.Brokers) == 0 {
		return fmt.Errorf("alerts.brokers cannot be empty when alerts are enabled")
	}
	return nil
}
