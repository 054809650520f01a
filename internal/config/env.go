package config

import (
	"os"
	"strconv"
	"time"
)

// LoadFromEnv applies TRAFFICGEN_* environment overrides on top of cfg.
// Unparseable values are ignored in favor of the existing setting.
func LoadFromEnv(cfg *Config) {
	envDuration("TRAFFICGEN_RUN_DURATION", &cfg.RunDuration)
	envString("TRAFFICGEN_LISTEN_ADDR", &cfg.ListenAddr)

	envString("TRAFFICGEN_STORAGE_MODE", &cfg.Storage.Mode)
	envString("TRAFFICGEN_S3_ENDPOINT", &cfg.Storage.Endpoint)
	envString("TRAFFICGEN_S3_REGION", &cfg.Storage.Region)
	envString("TRAFFICGEN_S3_ACCESS_KEY", &cfg.Storage.AccessKey)
	envString("TRAFFICGEN_S3_SECRET_KEY", &cfg.Storage.SecretKey)
	envString("TRAFFICGEN_LOCAL_PATH", &cfg.Storage.LocalPath)
	envDuration("TRAFFICGEN_OP_TIMEOUT", &cfg.Storage.OpTimeout)
	envInt("TRAFFICGEN_BANDWIDTH_LIMIT", &cfg.Storage.BandwidthLimit)

	envDuration("TRAFFICGEN_REGULAR_TTL", &cfg.TTL.RegularTTL)
	envDuration("TRAFFICGEN_LARGE_TTL", &cfg.TTL.LargeTTL)
	envInt64("TRAFFICGEN_SIZE_THRESHOLD", &cfg.TTL.SizeThreshold)
	envDuration("TRAFFICGEN_SWEEP_INTERVAL", &cfg.TTL.SweepInterval)
	envInt("TRAFFICGEN_SWEEP_MAX_RETRY", &cfg.TTL.SweepMaxRetry)

	envFloat("TRAFFICGEN_UPLOAD_RATIO", &cfg.Traffic.UploadRatio)
	envFloat("TRAFFICGEN_BASE_RATE_PER_MIN", &cfg.Traffic.BaseRatePerMin)
	envFloat("TRAFFICGEN_OFF_PEAK_FACTOR", &cfg.Traffic.OffPeakFactor)
	envFloat("TRAFFICGEN_JITTER_FRACTION", &cfg.Traffic.JitterFraction)
	envFloat("TRAFFICGEN_FAILURE_RATE", &cfg.Traffic.FailureRate)
	envDuration("TRAFFICGEN_BACKOFF_BASE", &cfg.Traffic.BackoffBase)
	envDuration("TRAFFICGEN_BACKOFF_MAX", &cfg.Traffic.BackoffMax)
	envDuration("TRAFFICGEN_GRACE_TIMEOUT", &cfg.Traffic.GraceTimeout)

	envString("TRAFFICGEN_OTLP_ENDPOINT", &cfg.Metrics.OTLPEndpoint)
	envDuration("TRAFFICGEN_FLUSH_INTERVAL", &cfg.Metrics.FlushInterval)
	envDuration("TRAFFICGEN_REPORT_INTERVAL", &cfg.Metrics.ReportInterval)
	envInt("TRAFFICGEN_METRICS_BUFFER", &cfg.Metrics.BufferSize)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
