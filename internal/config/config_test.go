package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/var/lib/test")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.DB != "/var/lib/test/visitlog/visitlog.db" {
		t.Errorf("DB = %q", cfg.DB)
	}
	if cfg.KafkaEnabled() || cfg.RedisEnabled() {
		t.Error("optional integrations should be off by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
db: /tmp/visits.db
listen: 127.0.0.1:9000
log:
  level: debug
kafka:
  brokers: [k1:9092, k2:9092]
  topic: fixes
redis:
  addr: localhost:6379
  db: 2
export:
  s3:
    bucket: exports
    region: eu-west-1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Default()
	want.DB = "/tmp/visits.db"
	want.Listen = "127.0.0.1:9000"
	want.Log.Level = "debug"
	want.Kafka.Brokers = []string{"k1:9092", "k2:9092"}
	want.Kafka.Topic = "fixes"
	want.Redis = RedisConfig{Addr: "localhost:6379", DB: 2}
	want.Export.S3 = S3Config{Bucket: "exports", Region: "eu-west-1"}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if !cfg.KafkaEnabled() || !cfg.RedisEnabled() {
		t.Error("kafka and redis should be enabled")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "db: /from/file.db\nlisten: \":1\"\n")
	t.Setenv("VISITLOG_DB", "/from/env.db")
	t.Setenv("VISITLOG_KAFKA_BROKERS", " a:1 , b:2 ,")
	t.Setenv("VISITLOG_REDIS_DB", "5")
	t.Setenv("VISITLOG_LOG_DEVELOPMENT", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB != "/from/env.db" {
		t.Errorf("DB = %q, want env value", cfg.DB)
	}
	if cfg.Listen != ":1" {
		t.Errorf("Listen = %q, want file value", cfg.Listen)
	}
	if diff := cmp.Diff([]string{"a:1", "b:2"}, cfg.Kafka.Brokers); diff != "" {
		t.Errorf("brokers mismatch (-want +got):\n%s", diff)
	}
	if cfg.Redis.DB != 5 || !cfg.Log.Development {
		t.Errorf("redis db = %d, development = %v", cfg.Redis.DB, cfg.Log.Development)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(writeConfig(t, "db: [unterminated")); err == nil {
		t.Error("expected a parse error")
	}

	t.Setenv("VISITLOG_REDIS_DB", "two")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a non-numeric VISITLOG_REDIS_DB")
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/etc/xdg-test")
	if got := DefaultPath(); got != "/etc/xdg-test/visitlog/config.yaml" {
		t.Errorf("DefaultPath = %q", got)
	}
}
