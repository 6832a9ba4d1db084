package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
)

// Config holds all ingester settings, populated from environment variables.
// It is built once at startup and not mutated afterwards.
type Config struct {
	DMIAPIKey   string
	DMIAPIHost  string
	HTTPTimeout time.Duration

	BucketEndpoint string
	BucketName     string
	BucketBasePath string
	BucketKey      string
	BucketSecret   string
	Upload         bool

	Collection     string
	Parameters     []string
	BBox           domain.BBox
	DataDir        string
	ManifestFormat domain.ManifestFormat

	LogLevel  string
	LogFormat string

	// Scheduled mode. An empty Schedule runs the pipeline once and exits.
	Schedule        string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	PushgatewayURL string

	// Publication notifications, disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	httpTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("HTTP_TIMEOUT", "60s"))
	if err != nil || httpTimeout <= 0 {
		return nil, errors.New("invalid HTTP_TIMEOUT")
	}

	bbox, err := domain.ParseBBox(sharedcfg.EnvOrDefault("BBOX", "11.5,55.5,12.2,56.1"))
	if err != nil {
		return nil, fmt.Errorf("invalid BBOX: %w", err)
	}

	manifestFormat, err := domain.ParseManifestFormat(sharedcfg.EnvOrDefault("MANIFEST_FORMAT", string(domain.ManifestURLs)))
	if err != nil {
		return nil, fmt.Errorf("invalid MANIFEST_FORMAT: %w", err)
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		DMIAPIKey:   os.Getenv("DMI_API_KEY"),
		DMIAPIHost:  sharedcfg.EnvOrDefault("DMI_API_HOST", "dmigw.govcloud.dk"),
		HTTPTimeout: httpTimeout,

		BucketEndpoint: sharedcfg.EnvOrDefault("BUCKET_ENDPOINT", "https://obs.eu-de.otc.t-systems.com"),
		BucketName:     os.Getenv("BUCKET_NAME"),
		BucketBasePath: sharedcfg.EnvOrDefault("BUCKET_BASE_PATH", "data/dmi/forecasts"),
		BucketKey:      os.Getenv("BUCKET_KEY"),
		BucketSecret:   os.Getenv("BUCKET_SECRET"),
		Upload:         strings.EqualFold(sharedcfg.EnvOrDefault("UPLOAD_TO_BUCKET", "true"), "true"),

		Collection:     sharedcfg.EnvOrDefault("COLLECTION", "dkss_if"),
		Parameters:     parseParameters(),
		BBox:           bbox,
		DataDir:        sharedcfg.EnvOrDefault("DATA_DIR", "/app/data"),
		ManifestFormat: manifestFormat,

		LogLevel:  sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),

		Schedule:        os.Getenv("SCHEDULE"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout: shutdownTimeout,

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "forecast-publications"),
	}

	if len(cfg.Parameters) == 0 {
		return nil, errors.New("PARAMETERS must name at least one parameter")
	}
	if cfg.Upload {
		if err := validateBucket(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// parseParameters reads PARAMETERS, falling back to the single-valued
// PARAMETER used by older deployments.
func parseParameters() []string {
	raw := os.Getenv("PARAMETERS")
	if raw == "" {
		raw = sharedcfg.EnvOrDefault("PARAMETER", "sea-mean-deviation")
	}
	var params []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}
	return params
}

func validateBucket(cfg *Config) error {
	if cfg.BucketName == "" {
		return errors.New("BUCKET_NAME is required when UPLOAD_TO_BUCKET is true")
	}
	if cfg.BucketKey == "" || cfg.BucketSecret == "" {
		return errors.New("BUCKET_KEY and BUCKET_SECRET are required when UPLOAD_TO_BUCKET is true")
	}
	u, err := url.Parse(cfg.BucketEndpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid BUCKET_ENDPOINT %q", cfg.BucketEndpoint)
	}
	return nil
}
