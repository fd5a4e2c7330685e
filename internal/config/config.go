// Package config loads visitlog settings from an optional YAML file, a .env
// file and VISITLOG_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration.
type Config struct {
	DB      string        `yaml:"db"`
	Listen  string        `yaml:"listen"`
	Log     LogConfig     `yaml:"log"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Redis   RedisConfig   `yaml:"redis"`
	Export  ExportConfig  `yaml:"export"`
	Geocode GeocodeConfig `yaml:"geocode"`
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// KafkaConfig selects the topic the consume command reads fixes from.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// RedisConfig enables the last-ingest mirror when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// ExportConfig picks the export sink: S3 when a bucket is set, Dir otherwise.
type ExportConfig struct {
	Dir string   `yaml:"dir"`
	S3  S3Config `yaml:"s3"`
}

// S3Config enables the S3 export sink when Bucket is set.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	Prefix string `yaml:"prefix"`
}

// GeocodeConfig points at a Nominatim-compatible reverse geocoder.
type GeocodeConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		DB:     filepath.Join(dataDir(), "visitlog.db"),
		Listen: ":8080",
		Log:    LogConfig{Level: "info"},
		Kafka: KafkaConfig{
			Topic:   "visitlog.fixes",
			GroupID: "visitlog",
		},
		Export: ExportConfig{Dir: "."},
	}
}

// DefaultPath returns the default config file path under XDG_CONFIG_HOME.
func DefaultPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "visitlog", "config.yaml")
}

func dataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "visitlog")
}

// Load reads the file at path (DefaultPath when empty) over the defaults and
// applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.DB = getEnv("VISITLOG_DB", c.DB)
	c.Listen = getEnv("VISITLOG_LISTEN", c.Listen)
	c.Log.Level = getEnv("VISITLOG_LOG_LEVEL", c.Log.Level)

	if v := os.Getenv("VISITLOG_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	c.Kafka.Topic = getEnv("VISITLOG_KAFKA_TOPIC", c.Kafka.Topic)
	c.Kafka.GroupID = getEnv("VISITLOG_KAFKA_GROUP", c.Kafka.GroupID)

	c.Redis.Addr = getEnv("VISITLOG_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("VISITLOG_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.Key = getEnv("VISITLOG_REDIS_KEY", c.Redis.Key)

	c.Export.Dir = getEnv("VISITLOG_EXPORT_DIR", c.Export.Dir)
	c.Export.S3.Bucket = getEnv("VISITLOG_S3_BUCKET", c.Export.S3.Bucket)
	c.Export.S3.Region = getEnv("VISITLOG_S3_REGION", c.Export.S3.Region)
	c.Export.S3.Prefix = getEnv("VISITLOG_S3_PREFIX", c.Export.S3.Prefix)

	c.Geocode.BaseURL = getEnv("VISITLOG_NOMINATIM_URL", c.Geocode.BaseURL)
	c.Geocode.UserAgent = getEnv("VISITLOG_NOMINATIM_USER_AGENT", c.Geocode.UserAgent)

	var err error
	if c.Log.Development, err = getEnvAsBool("VISITLOG_LOG_DEVELOPMENT", c.Log.Development); err != nil {
		return err
	}
	if c.Redis.DB, err = getEnvAsInt("VISITLOG_REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	return nil
}

// KafkaEnabled reports whether a broker and topic are configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0 && c.Kafka.Topic != ""
}

// RedisEnabled reports whether the status mirror should run.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
