package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/yasi-python/samplebound/pkg/stats"
)

// DefaultMaxPopulation keeps a single MinTestLength search to seconds.
const DefaultMaxPopulation = 10000

type ServiceCfg struct {
	HTTPListen   string `yaml:"http_listen"`
	MetricsPath  string `yaml:"metrics_path"`
	HealthzPath  string `yaml:"healthz_path"`
	LogLevel     string `yaml:"log_level"`
	DataDir      string `yaml:"data_dir"`
	SnapshotsDir string `yaml:"snapshots_dir"`
	Concurrency  int    `yaml:"concurrency"`

	// MaxPopulation caps N for API queries and campaigns.
	MaxPopulation int `yaml:"max_population"`
}

type BoundsCfg struct {
	Threshold     float64  `yaml:"threshold"`
	Confidence    float64  `yaml:"confidence"`
	Accuracy      float64  `yaml:"accuracy"`
	SuccessLimit  float64  `yaml:"success_limit"`
	WilsonZ       float64  `yaml:"wilson_z"`
	AuditSchedule []string `yaml:"audit_schedule"`
}

// Campaign is a population registered at startup.
type Campaign struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Population int    `yaml:"population"`
}

type Config struct {
	Service   ServiceCfg `yaml:"service"`
	Bounds    BoundsCfg  `yaml:"bounds"`
	Campaigns []Campaign `yaml:"campaigns"`
}

func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	s := &c.Service
	if s.HTTPListen == "" {
		s.HTTPListen = ":8090"
	}
	if s.MetricsPath == "" {
		s.MetricsPath = "/metrics"
	}
	if s.HealthzPath == "" {
		s.HealthzPath = "/healthz"
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.DataDir == "" {
		s.DataDir = "./data"
	}
	if s.SnapshotsDir == "" {
		s.SnapshotsDir = s.DataDir + "/snapshots"
	}
	if s.Concurrency <= 0 {
		s.Concurrency = 8
	}
	if s.MaxPopulation <= 0 {
		s.MaxPopulation = DefaultMaxPopulation
	}
	b := &c.Bounds
	if b.Threshold == 0 {
		b.Threshold = stats.DefaultThreshold
	}
	if b.Confidence == 0 {
		b.Confidence = stats.DefaultConfidence
	}
	if b.Accuracy == 0 {
		b.Accuracy = stats.DefaultAccuracy
	}
	if b.SuccessLimit == 0 {
		b.SuccessLimit = stats.DefaultSuccessLimit
	}
	if b.WilsonZ == 0 {
		b.WilsonZ = 1.959964
	}
}

func (c *Config) Validate() error {
	b := c.Bounds
	if b.Threshold <= 0 || b.Threshold >= 1 {
		return errors.Errorf("bounds.threshold %v outside (0,1)", b.Threshold)
	}
	if b.Confidence <= 0 || b.Confidence >= 1 {
		return errors.Errorf("bounds.confidence %v outside (0,1)", b.Confidence)
	}
	if b.Accuracy <= 0 || b.Accuracy > 1 {
		return errors.Errorf("bounds.accuracy %v outside (0,1]", b.Accuracy)
	}
	if b.SuccessLimit <= 0 || b.SuccessLimit > 1 {
		return errors.Errorf("bounds.success_limit %v outside (0,1]", b.SuccessLimit)
	}
	if _, err := c.AuditOffsets(); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, cp := range c.Campaigns {
		if cp.ID == "" {
			return errors.New("campaign without id")
		}
		if seen[cp.ID] {
			return errors.Errorf("duplicate campaign %q", cp.ID)
		}
		seen[cp.ID] = true
		if cp.Population <= 0 {
			return errors.Errorf("campaign %q: population must be positive", cp.ID)
		}
		if cp.Population > c.Service.MaxPopulation {
			return errors.Errorf("campaign %q: population %d above service.max_population %d",
				cp.ID, cp.Population, c.Service.MaxPopulation)
		}
	}
	return nil
}

// AuditOffsets parses bounds.audit_schedule.
func (c *Config) AuditOffsets() ([]time.Duration, error) {
	var out []time.Duration
	for _, s := range c.Bounds.AuditSchedule {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, errors.Wrapf(err, "bounds.audit_schedule %q", s)
		}
		out = append(out, d)
	}
	return out, nil
}
