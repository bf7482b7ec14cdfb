package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytesOverridesDefaults(t *testing.T) {
	cfg := Default()
	err := LoadBytes([]byte(`
engine:
  provider: anthropic
  api_key: sk-test
  model: some-model
agent:
  max_steps: 40
  step_timeout: 2m
`), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Engine.Provider)
	assert.Equal(t, 40, cfg.Agent.MaxSteps)
	assert.Equal(t, 2*time.Minute, cfg.Agent.StepTimeout.Std())
	// Untouched sections keep their defaults.
	assert.Equal(t, ":8700", cfg.Server.Addr)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoadBytesExpandsEnv(t *testing.T) {
	t.Setenv("TEST_ENGINE_KEY", "sk-from-env")
	cfg := Default()
	err := LoadBytes([]byte(`
engine:
  api_key: ${TEST_ENGINE_KEY}
  model: m
`), &cfg)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Engine.APIKey)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Engine.APIKey = "sk-x"
	cfg.Engine.Model = "m"
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.Engine.Provider = "mystery"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Engine.APIKey = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Engine.Model = ""
	assert.Error(t, bad.Validate())
}

func TestDurationForms(t *testing.T) {
	cfg := Default()
	require.NoError(t, LoadBytes([]byte("browser:\n  action_timeout: 15\n"), &cfg))
	assert.Equal(t, 15*time.Second, cfg.Browser.ActionTimeout.Std())

	require.NoError(t, LoadBytes([]byte("browser:\n  action_timeout: 1500ms\n"), &cfg))
	assert.Equal(t, 1500*time.Millisecond, cfg.Browser.ActionTimeout.Std())

	assert.Error(t, LoadBytes([]byte("browser:\n  action_timeout: soon\n"), &cfg))
}

func TestLoadMissingPath(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Agent.MaxSteps)
}
