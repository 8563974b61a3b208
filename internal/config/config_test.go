package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `
database_path: /var/lib/marquee/marquee.db
outlet_registry_path: /etc/marquee/outlets.yaml
metrics_addr: ":9090"
parallelism: 4

primary_oracle:
  provider: anthropic
  name: oracle-a
  api_key_env: ORACLE_A_KEY
  rate_per_second: 5
  burst: 10

secondary_oracle:
  provider: openai
  name: oracle-b
  api_key_env: ORACLE_B_KEY

tiebreaker_oracle:
  provider: google
  name: oracle-c
  api_key_env: ORACLE_C_KEY

ensemble:
  medium_disagreement: 10
  high_disagreement: 20
  max_attempts: 3
  base_delay: 1s

calibration:
  min_samples: 10
  recompute_schedule: "0 3 * * *"

aggregate:
  min_reviews: 5
  high_total: 15
  high_tier1: 3
`

func TestLoad_ValidFile(t *testing.T) {
	path := writeFile(t, "marquee.yaml", validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/marquee/marquee.db", cfg.DatabasePath)
	assert.Equal(t, "anthropic", cfg.Primary.Provider)
	assert.Equal(t, "oracle-a", cfg.Primary.Name)
	assert.Equal(t, 5.0, cfg.Primary.RatePerSecond)
	require.NotNil(t, cfg.Tiebreaker)
	assert.Equal(t, "google", cfg.Tiebreaker.Provider)
	assert.Equal(t, time.Second, cfg.Ensemble.BaseDelay)
	assert.Equal(t, "0 3 * * *", cfg.Calibration.RecomputeSchedule)
	assert.Equal(t, 15, cfg.Aggregate.HighTotal)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "marquee.yaml", validConfig)
	t.Setenv("MARQUEE_DATABASE_PATH", "/tmp/override.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.DatabasePath)
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	bad := `
database_path: /tmp/m.db
outlet_registry_path: /tmp/outlets.yaml
primary_oracle:
  provider: carrier-pigeon
  name: oracle-a
  api_key_env: KEY_A
secondary_oracle:
  provider: openai
  name: oracle-b
  api_key_env: KEY_B
`
	path := writeFile(t, "marquee.yaml", bad)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	path := writeFile(t, "marquee.yaml", "metrics_addr: ':9090'\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestOracleConfig_APIKeyFromEnv(t *testing.T) {
	t.Setenv("TEST_ORACLE_KEY", "sk-test")
	o := OracleConfig{APIKeyEnv: "TEST_ORACLE_KEY"}
	assert.Equal(t, "sk-test", o.APIKey())
}

func TestLoadOutlets(t *testing.T) {
	path := writeFile(t, "outlets.yaml", `
outlets:
  - id: nytimes
    display_name: The New York Times
    tier: 1
    weight: 2.0
    aliases: ["NY Times", "NYT"]
    domain: nytimes.com
  - id: timeout-ny
    display_name: Time Out New York
    tier: 2
    weight: 1.0
`)

	registry, err := LoadOutlets(path)
	require.NoError(t, err)
	assert.Equal(t, 2, registry.Len())

	res := registry.Resolve("NY Times", "")
	assert.Equal(t, "nytimes", res.Outlet.ID)
}

func TestLoadOutlets_BadYAML(t *testing.T) {
	path := writeFile(t, "outlets.yaml", "outlets: [not a mapping")
	_, err := LoadOutlets(path)
	assert.Error(t, err)
}

func TestLoadOffsetTable(t *testing.T) {
	t.Run("empty path is inert", func(t *testing.T) {
		table, err := LoadOffsetTable("")
		require.NoError(t, err)
		for _, b := range table.Buckets {
			assert.Zero(t, b.Samples)
		}
	})

	t.Run("seeded table", func(t *testing.T) {
		path := writeFile(t, "calibration.yaml", `
min_samples: 10
buckets:
  - {offset: 0, samples: 0}
  - {offset: -2.5, samples: 14}
  - {offset: 4, samples: 25}
  - {offset: 6, samples: 31}
  - {offset: -1, samples: 12}
`)
		table, err := LoadOffsetTable(path)
		require.NoError(t, err)
		assert.Equal(t, 10, table.MinSamples)
		assert.Equal(t, -2.5, table.Buckets[1].Offset)
		assert.Equal(t, 31, table.Buckets[3].Samples)
	})
}
