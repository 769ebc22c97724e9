// internal/config/config_test.go
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
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
discovery:
  ranges:
    - range: "10.0.11"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Port)
	assert.Equal(t, "./data/lanmap.db", cfg.Database.Path)
	assert.Equal(t, 30*time.Minute, cfg.Discovery.Interval)
	assert.Equal(t, 32, cfg.Discovery.SweepBatchSize)
	assert.Equal(t, 16, cfg.Discovery.RefreshBatchSize)
	assert.Equal(t, time.Second, cfg.Discovery.ProbeTimeout)
	assert.Equal(t, "public", cfg.Discovery.SNMPCommunity)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.Len(t, cfg.Discovery.Ranges, 1)
	assert.Equal(t, 1, cfg.Discovery.Ranges[0].Start)
	assert.Equal(t, 254, cfg.Discovery.Ranges[0].End)
	assert.Equal(t, "devices", cfg.Discovery.Ranges[0].Type)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: ":9090"
discovery:
  interval: 15m
  auto_enabled: true
  sweep_batch_size: 64
  probe_timeout: 500ms
  ranges:
    - range: "10.0.11"
      start: 1
      end: 100
      type: devices
    - range: "10.0.20"
      type: vlan
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Discovery.Interval)
	assert.True(t, cfg.Discovery.AutoEnabled)
	assert.Equal(t, 64, cfg.Discovery.SweepBatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Discovery.ProbeTimeout)
	require.Len(t, cfg.Discovery.Ranges, 2)
	assert.Equal(t, "vlan", cfg.Discovery.Ranges[1].Type)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadRejectsInvalidRanges(t *testing.T) {
	cases := map[string]string{
		"missing base": `
discovery:
  ranges:
    - start: 1
      end: 100
`,
		"inverted bounds": `
discovery:
  ranges:
    - range: "10.0.11"
      start: 200
      end: 100
`,
		"octet out of bounds": `
discovery:
  ranges:
    - range: "10.0.11"
      start: 1
      end: 255
`,
		"unknown table type": `
discovery:
  ranges:
    - range: "10.0.11"
      type: printers
`,
		"duplicate range": `
discovery:
  ranges:
    - range: "10.0.11"
    - range: "10.0.11"
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
