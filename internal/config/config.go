package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default NSDF climate origin hosting the LLC4320 IDX datasets.
const defaultOriginURL = "https://nsdf-climate1-origin.nationalresearchplatform.org:50098/mod_visus"

// Config holds all gateway settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// OpenVisus origin serving the LLC4320 datasets.
	OpenVisusBaseURL string
	OpenVisusTimeout time.Duration

	// Local NetCDF file with the 2-D curvilinear lat/lon grids.
	LatLonFile string

	// Directory with the static heatmap frontend.
	FrontendDir string

	// Quality applied when a request omits the parameter. -12..0, where
	// more negative values return coarser, faster-to-fetch data.
	DefaultQuality int

	CORSAllowedOrigins []string

	// Kafka usage-event publishing (KAFKA_ENABLED / KAFKA_BROKERS).
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaUsageTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	upstreamTimeout, err := parseDurationEnv("OPENVISUS_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	defaultQuality, err := parseIntEnv("DEFAULT_QUALITY", -12)
	if err != nil {
		return nil, err
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:           envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		OpenVisusBaseURL:   envOrDefault("OPENVISUS_BASE_URL", defaultOriginURL),
		OpenVisusTimeout:   upstreamTimeout,
		LatLonFile:         envOrDefault("LATLON_FILE", "data/llc4320_latlon.nc"),
		FrontendDir:        envOrDefault("FRONTEND_DIR", "web"),
		DefaultQuality:     defaultQuality,
		CORSAllowedOrigins: splitList(envOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaUsageTopic:    envOrDefault("KAFKA_USAGE_TOPIC", "llc4320-usage-events"),
	}

	if cfg.OpenVisusBaseURL == "" {
		return nil, errors.New("OPENVISUS_BASE_URL is required")
	}
	if cfg.LatLonFile == "" {
		return nil, errors.New("LATLON_FILE is required")
	}
	if cfg.DefaultQuality < -12 || cfg.DefaultQuality > 0 {
		return nil, errors.New("DEFAULT_QUALITY must be between -12 and 0")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaUsageTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_USAGE_TOPIC is empty")
		}
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseIntEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
