package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
service:
  http_listen: ":9000"
  data_dir: /var/lib/samplebound
bounds:
  confidence: 0.99
  success_limit: 0.9
  audit_schedule: ["720h", "90m"]
campaigns:
  - id: lot-42
    name: Lot 42 bottles
    population: 500
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, ":9000", c.Service.HTTPListen)
	assert.Equal(t, "/metrics", c.Service.MetricsPath)
	assert.Equal(t, "/var/lib/samplebound/snapshots", c.Service.SnapshotsDir)
	assert.Equal(t, 8, c.Service.Concurrency)
	assert.Equal(t, DefaultMaxPopulation, c.Service.MaxPopulation)
	assert.Equal(t, 0.99, c.Bounds.Confidence)
	assert.Equal(t, 0.01, c.Bounds.Accuracy)
	assert.Equal(t, 0.9, c.Bounds.Threshold)
	assert.Equal(t, 0.9, c.Bounds.SuccessLimit)
	require.Len(t, c.Campaigns, 1)
	assert.Equal(t, 500, c.Campaigns[0].Population)

	offs, err := c.AuditOffsets()
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{720 * time.Hour, 90 * time.Minute}, offs)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParseBadYAML(t *testing.T) {
	_, err := Parse([]byte("service: [1, 2"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"confidence":    func(c *Config) { c.Bounds.Confidence = 1 },
		"threshold":     func(c *Config) { c.Bounds.Threshold = -0.1 },
		"accuracy":      func(c *Config) { c.Bounds.Accuracy = 1.5 },
		"success_limit": func(c *Config) { c.Bounds.SuccessLimit = 2 },
		"audit":         func(c *Config) { c.Bounds.AuditSchedule = []string{"soon"} },
		"no id":         func(c *Config) { c.Campaigns = []Campaign{{Population: 3}} },
		"population":    func(c *Config) { c.Campaigns = []Campaign{{ID: "a"}} },
		"duplicate":     func(c *Config) { c.Campaigns = []Campaign{{ID: "a", Population: 1}, {ID: "a", Population: 2}} },
		"too large":     func(c *Config) { c.Campaigns = []Campaign{{ID: "a", Population: DefaultMaxPopulation + 1}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			require.NoError(t, c.Validate())
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
