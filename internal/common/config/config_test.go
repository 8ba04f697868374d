package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: matching
    user: matcher
  redis:
    address: localhost:6379
workers:
  run-person-matching:
    enabled: true
    max_jobs_active: 4
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, 0.3, cfg.Matching.Settings.MinimumMatchScore)
	assert.Equal(t, 0.6, cfg.Matching.Settings.FuzzyThreshold)
	assert.Equal(t, 10, cfg.Matching.Settings.PartialTierTrigger)
	assert.Equal(t, 50, cfg.Matching.Settings.PartialLimit)
	assert.Equal(t, 0.45, cfg.Matching.Settings.Weights.ExactName)
	assert.Equal(t, 0.1, cfg.Matching.Settings.LocationWeights.Neighborhood)
	assert.Equal(t, FuzzyBackendPostgres, cfg.Matching.FuzzyBackend)

	assert.Equal(t, 10, cfg.Batch.Size)
	assert.Equal(t, 7*24*time.Hour, cfg.Batch.StaleAfter)
	assert.Equal(t, "person-matching", cfg.Batch.ProcessID)
	assert.True(t, cfg.Lock.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Lock.TTL)
	assert.Equal(t, "matching:run:", cfg.Lock.KeyPrefix)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)

	w := GetWorkerConfig(cfg, "run-person-matching")
	assert.Equal(t, 4, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)
	assert.True(t, IsWorkerEnabled(cfg, "sync-candidate-index"))
}

func TestLoadFromFile_Overrides(t *testing.T) {
	body := baseYAML + `
matching:
  minimum_match_score: 0.5
  max_results: 25
  fuzzy_backend: none
  weights:
    location: 0.2
  location_aliases:
    santafe de bogota: bogota
batch:
  size: 50
  stale_after: 48h
lock:
  ttl: 2m
`
	cfg, err := LoadFromFile(writeConfig(t, body))
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Matching.Settings.MinimumMatchScore)
	assert.Equal(t, 25, cfg.Matching.Settings.MaxResults)
	assert.Equal(t, 0.2, cfg.Matching.Settings.Weights.Location)
	assert.Equal(t, 0.45, cfg.Matching.Settings.Weights.ExactName)
	assert.Equal(t, FuzzyBackendNone, cfg.Matching.FuzzyBackend)
	assert.Equal(t, "bogota", cfg.Matching.LocationAliases["santafe de bogota"])
	assert.Equal(t, 50, cfg.Batch.Size)
	assert.Equal(t, 48*time.Hour, cfg.Batch.StaleAfter)
	assert.Equal(t, 2*time.Minute, cfg.Lock.TTL)
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_PG_HOST", "db.internal")
	t.Setenv("SNS_TOPIC_ARN", "arn:aws:sns:us-east-1:000000000000:matching")

	body := `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: ${TEST_PG_HOST}
    database: matching
    user: matcher
  redis:
    address: localhost:6379
notifications:
  sns:
    enabled: true
`
	cfg, err := LoadFromFile(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, "arn:aws:sns:us-east-1:000000000000:matching", cfg.Notifications.SNS.TopicARN)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing broker", `
database:
  postgres: {host: h, database: d, user: u}
  redis: {address: r}
`, "camunda.broker_address"},
		{"bad backend", baseYAML + `
matching:
  fuzzy_backend: solr
`, "fuzzy_backend"},
		{"es backend without address", baseYAML + `
matching:
  fuzzy_backend: elasticsearch
`, "elasticsearch"},
		{"weight out of range", baseYAML + `
matching:
  weights:
    exact_name: 1.5
`, "weights.exact_name"},
		{"lock without redis", `
camunda: {broker_address: b}
database:
  postgres: {host: h, database: d, user: u}
`, "redis.address"},
		{"batch too large", baseYAML + `
batch:
  size: 5000
`, "batch.size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "h", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", p.GetDSN())
}
