package batchpersonmatching

import (
	"fmt"
	"time"

	"matching-workers/internal/common/config"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	// BatchSize is used when the job does not carry batchSize.
	BatchSize int `mapstructure:"batch_size"`
	// Profiles whose matches are older than StaleAfter are selected again.
	StaleAfter time.Duration `mapstructure:"stale_after"`
	ProcessID  string        `mapstructure:"process_id"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 1,
		Timeout:       120 * time.Second,
		BatchSize:     10,
		StaleAfter:    7 * 24 * time.Hour,
		ProcessID:     "person-matching",
	}
}

func ConfigFromApp(appCfg *config.Config) *Config {
	cfg := DefaultConfig()
	if appCfg == nil {
		return cfg
	}
	if appCfg.Batch.Size > 0 {
		cfg.BatchSize = appCfg.Batch.Size
	}
	if appCfg.Batch.StaleAfter > 0 {
		cfg.StaleAfter = appCfg.Batch.StaleAfter
	}
	if appCfg.Batch.ProcessID != "" {
		cfg.ProcessID = appCfg.Batch.ProcessID
	}
	if wcfg, ok := appCfg.Workers[TaskType]; ok {
		cfg.Enabled = wcfg.Enabled
		if wcfg.MaxJobsActive > 0 {
			cfg.MaxJobsActive = wcfg.MaxJobsActive
		}
		if wcfg.Timeout > 0 {
			cfg.Timeout = time.Duration(wcfg.Timeout) * time.Millisecond
		}
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.BatchSize < 1 || c.BatchSize > 1000 {
		return fmt.Errorf("batch_size must be between 1 and 1000")
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("stale_after must be positive")
	}
	if c.ProcessID == "" {
		return fmt.Errorf("process_id is required")
	}
	return nil
}
