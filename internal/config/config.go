// Package config holds the immutable runtime configuration for a
// traffic-generation run. It is constructed once at startup and threaded
// into every component; nothing mutates it afterwards.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	RunDuration time.Duration `yaml:"run_duration"`
	ListenAddr  string        `yaml:"listen_addr"`

	Storage StorageConfig `yaml:"storage"`
	TTL     TTLConfig     `yaml:"ttl"`
	Traffic TrafficConfig `yaml:"traffic"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type StorageConfig struct {
	Mode           string        `yaml:"mode"` // "s3" or "local"
	Endpoint       string        `yaml:"endpoint"`
	Region         string        `yaml:"region"`
	AccessKey      string        `yaml:"access_key"`
	SecretKey      string        `yaml:"secret_key"`
	PathStyle      bool          `yaml:"path_style"`
	LocalPath      string        `yaml:"local_path"`
	OpTimeout      time.Duration `yaml:"op_timeout"`
	BandwidthLimit int           `yaml:"bandwidth_limit"` // bytes/sec per run, 0 = unlimited
}

type TTLConfig struct {
	RegularTTL     time.Duration `yaml:"regular_ttl"`
	LargeTTL       time.Duration `yaml:"large_ttl"`
	SizeThreshold  int64         `yaml:"size_threshold"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	SweepMaxRetry  int           `yaml:"sweep_max_retry"`
}

type TrafficConfig struct {
	UploadRatio    float64       `yaml:"upload_ratio"`
	BaseRatePerMin float64       `yaml:"base_rate_per_min"`
	OffPeakFactor  float64       `yaml:"off_peak_factor"`
	JitterFraction float64       `yaml:"jitter_fraction"`
	FailureRate    float64       `yaml:"failure_rate"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
	GraceTimeout   time.Duration `yaml:"grace_timeout"`
}

type MetricsConfig struct {
	OTLPEndpoint   string        `yaml:"otlp_endpoint"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	ReportInterval time.Duration `yaml:"report_interval"`
	BufferSize     int           `yaml:"buffer_size"`
}

// Default returns the configuration used when nothing is overridden. The
// TTL and traffic numbers mirror the ones the generator has always run
// with: 3h/60m TTLs split at 100MB, 80/20 upload mix, 10 ops/min base.
func Default() *Config {
	return &Config{
		RunDuration: 12 * time.Hour,
		Storage: StorageConfig{
			Mode:      "s3",
			Endpoint:  "http://127.0.0.1:9000",
			Region:    "us-east-1",
			PathStyle: true,
			LocalPath: "/tmp/trafficgen-data",
			OpTimeout: 2 * time.Minute,
		},
		TTL: TTLConfig{
			RegularTTL:    3 * time.Hour,
			LargeTTL:      60 * time.Minute,
			SizeThreshold: 100 * 1024 * 1024,
			SweepInterval: 5 * time.Minute,
			SweepMaxRetry: 3,
		},
		Traffic: TrafficConfig{
			UploadRatio:    0.8,
			BaseRatePerMin: 10,
			OffPeakFactor:  0.3,
			JitterFraction: 0.2,
			FailureRate:    0,
			BackoffBase:    2 * time.Second,
			BackoffMax:     2 * time.Minute,
			GraceTimeout:   45 * time.Second,
		},
		Metrics: MetricsConfig{
			FlushInterval:  30 * time.Second,
			ReportInterval: 5 * time.Minute,
			BufferSize:     4096,
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that would make the run meaningless or
// divide by zero somewhere down the line. A non-nil error here is fatal;
// no worker starts with an invalid config.
func (c *Config) Validate() error {
	if c.RunDuration <= 0 {
		return fmt.Errorf("config: run_duration must be positive, got %v", c.RunDuration)
	}
	switch c.Storage.Mode {
	case "s3", "local":
	default:
		return fmt.Errorf("config: unknown storage mode %q", c.Storage.Mode)
	}
	if c.Storage.OpTimeout <= 0 {
		return fmt.Errorf("config: op_timeout must be positive, got %v", c.Storage.OpTimeout)
	}
	if c.Storage.BandwidthLimit < 0 {
		return fmt.Errorf("config: bandwidth_limit must not be negative")
	}
	if c.TTL.RegularTTL <= 0 || c.TTL.LargeTTL <= 0 {
		return fmt.Errorf("config: TTLs must be positive (regular=%v large=%v)", c.TTL.RegularTTL, c.TTL.LargeTTL)
	}
	if c.TTL.SizeThreshold <= 0 {
		return fmt.Errorf("config: size_threshold must be positive, got %d", c.TTL.SizeThreshold)
	}
	if c.TTL.SweepInterval <= 0 {
		return fmt.Errorf("config: sweep_interval must be positive, got %v", c.TTL.SweepInterval)
	}
	if c.TTL.SweepMaxRetry < 1 {
		return fmt.Errorf("config: sweep_max_retry must be at least 1, got %d", c.TTL.SweepMaxRetry)
	}
	if c.Traffic.UploadRatio < 0 || c.Traffic.UploadRatio > 1 {
		return fmt.Errorf("config: upload_ratio must be in [0,1], got %v", c.Traffic.UploadRatio)
	}
	if c.Traffic.BaseRatePerMin <= 0 {
		return fmt.Errorf("config: base_rate_per_min must be positive, got %v", c.Traffic.BaseRatePerMin)
	}
	if c.Traffic.OffPeakFactor <= 0 || c.Traffic.OffPeakFactor > 1 {
		return fmt.Errorf("config: off_peak_factor must be in (0,1], got %v", c.Traffic.OffPeakFactor)
	}
	if c.Traffic.JitterFraction < 0 || c.Traffic.JitterFraction >= 1 {
		return fmt.Errorf("config: jitter_fraction must be in [0,1), got %v", c.Traffic.JitterFraction)
	}
	if c.Traffic.FailureRate < 0 || c.Traffic.FailureRate > 1 {
		return fmt.Errorf("config: failure_rate must be in [0,1], got %v", c.Traffic.FailureRate)
	}
	if c.Traffic.BackoffBase <= 0 || c.Traffic.BackoffMax < c.Traffic.BackoffBase {
		return fmt.Errorf("config: backoff_base must be positive and backoff_max >= backoff_base")
	}
	if c.Traffic.GraceTimeout <= 0 {
		return fmt.Errorf("config: grace_timeout must be positive, got %v", c.Traffic.GraceTimeout)
	}
	if c.Metrics.ReportInterval <= 0 {
		return fmt.Errorf("config: report_interval must be positive, got %v", c.Metrics.ReportInterval)
	}
	if c.Metrics.FlushInterval <= 0 {
		return fmt.Errorf("config: flush_interval must be positive, got %v", c.Metrics.FlushInterval)
	}
	if c.Metrics.BufferSize < 1 {
		return fmt.Errorf("config: metrics buffer_size must be at least 1, got %d", c.Metrics.BufferSize)
	}
	return nil
}
