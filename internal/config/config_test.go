package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: oracled\n"))
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Oracle.HistoryCapacity)
	assert.Equal(t, "pebble", cfg.Storage.Driver)
	assert.Equal(t, "lz4", cfg.Storage.Compression)
	assert.Equal(t, "127.0.0.1:8420", cfg.HTTP.Addr)
	assert.Equal(t, "X-Oracle-Sender", cfg.HTTP.SenderHeader)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, []string{"127.0.0.1:9092"}, cfg.Kafka.Brokers)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
oracle:
  admin_address: stride1admin
  history_capacity: 10
storage:
  driver: memory
feed:
  enabled: true
  denom: stuatom
  base_denom: ibc/ATOM
scheduler:
  interval: 1m
`)
	t.Setenv("ORACLE_HTTP_ADDR", "0.0.0.0:9000")
	t.Setenv("ORACLE_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "stride1admin", cfg.Oracle.AdminAddress)
	assert.Equal(t, 10, cfg.Oracle.HistoryCapacity)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.True(t, cfg.Feed.Enabled)
	assert.Equal(t, "redemption_rate", cfg.Feed.RedemptionKey)
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "0.0.0.0:9000", cfg.HTTP.Addr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"capacity":      "oracle:\n  history_capacity: 0\n",
		"driver":        "storage:\n  driver: sqlite\n",
		"postgres dsn":  "storage:\n  driver: postgres\n",
		"feed denoms":   "feed:\n  enabled: true\noracle:\n  admin_address: a\n",
		"feed admin":    "feed:\n  enabled: true\n  denom: a\n  base_denom: b\n",
		"kafka topic":   "kafka:\n  enabled: true\n  topic: \"\"\n",
		"telegram chat": "alerting:\n  telegram:\n    enabled: true\n    bot_token: t\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 50}}
	assert.Equal(t, 50, cfg.ResolveMaxPoints(0))
	assert.Equal(t, 7, cfg.ResolveMaxPoints(7))
}
