package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadResolvesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"postgres": {"host": "localhost", "port": 5432, "user": "trader", "database": "trader"},
		"broker": {"baseUrl": "https://api.example.com", "streamUrl": "wss://stream.example.com"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NatsURL)
	assert.Equal(t, 3*time.Second, cfg.TickInterval)
	assert.Empty(t, cfg.ProfilerAddr)
	assert.Equal(t, 10*time.Second, cfg.Broker.HTTPTimeout())
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
		"postgres": {"host": "db", "database": "trader", "sslMode": "require"},
		"broker": {"baseUrl": "https://api.example.com", "httpTimeoutSec": 30},
		"nats": {"url": "nats://bus:4222"},
		"metrics": {"listen": ":9200"},
		"profiler": {"address": "http://pyroscope:4040"},
		"scheduler": {"tickIntervalSec": 5}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "require", cfg.Postgres.SSLMode)
	assert.Equal(t, "nats://bus:4222", cfg.NatsURL)
	assert.Equal(t, ":9200", cfg.MetricsAddr)
	assert.Equal(t, "http://pyroscope:4040", cfg.ProfilerAddr)
	assert.Equal(t, 5*time.Second, cfg.TickInterval)
	assert.Equal(t, 30*time.Second, cfg.Broker.HTTPTimeout())
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing postgres host",
			body: `{"postgres": {"database": "trader"}, "broker": {"baseUrl": "x"}}`,
			want: "postgres host is empty",
		},
		{
			name: "missing database",
			body: `{"postgres": {"host": "db"}, "broker": {"baseUrl": "x"}}`,
			want: "postgres database is empty",
		},
		{
			name: "missing broker baseUrl",
			body: `{"postgres": {"host": "db", "database": "trader"}}`,
			want: "broker baseUrl is empty",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
