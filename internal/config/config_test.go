package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
database:
  postgres:
    host: localhost
    db: groupflow
    user: groupflow
jwt:
  signing_key: secret
gateway:
  base_url: http://gateway.local
  api_key: from-file
sync:
  hot_campaigns:
    6f1c2d3e-4b5a-4c6d-8e7f-9a0b1c2d3e4f: 5s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.JobStore.Backend)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 5, cfg.Scaling.MinGroupSize)
	assert.InDelta(t, 0.9, cfg.Scaling.WarningThreshold, 1e-9)
	assert.Equal(t, 2*time.Second, cfg.Bulk.MinDelay)
	assert.Equal(t, 5*time.Second, cfg.Bulk.MaxDelay)
	assert.Equal(t, "BR", cfg.Registration.DefaultRegion)
	assert.Equal(t, "none", cfg.Events.Backend)
	assert.Equal(t, 5*time.Second, cfg.Sync.HotCampaigns["6f1c2d3e-4b5a-4c6d-8e7f-9a0b1c2d3e4f"])
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GATEWAY_API_KEY", "from-env")
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Gateway.APIKey)
}

func TestLoad_ClampsFloors(t *testing.T) {
	body := minimalYAML + `
scaling:
  min_group_size: 1
bulk:
  min_delay: 500ms
  max_delay: 1s
registration:
  default_region: us
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Scaling.MinGroupSize)
	assert.Equal(t, 2*time.Second, cfg.Bulk.MinDelay)
	assert.Equal(t, 2*time.Second, cfg.Bulk.MaxDelay)
	assert.Equal(t, "US", cfg.Registration.DefaultRegion)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		extra string
	}{
		{"kafka without brokers", "events:\n  backend: kafka\n"},
		{"unknown job store", "job_store:\n  backend: etcd\n"},
		{"threshold above one", "scaling:\n  warning_threshold: 1.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, minimalYAML+tt.extra))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
