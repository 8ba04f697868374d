package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuzzyResult_Err(t *testing.T) {
	assert.NoError(t, FuzzyResult{Availability: Available}.Err())

	err := FuzzyUnavailable("pg_trgm extension not installed").Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)
	assert.Contains(t, err.Error(), "pg_trgm extension not installed")
}

func TestDefaultSettingsValidate(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.Weights.Location = 1.5
	assert.Error(t, s.Validate())
}
