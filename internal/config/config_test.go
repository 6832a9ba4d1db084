package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
)

const (
	testBucket = "forecast-bucket"
	testKey    = "AKIATEST"
	testSecret = "s3cr3t"
)

func setBucketEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BUCKET_NAME", testBucket)
	t.Setenv("BUCKET_KEY", testKey)
	t.Setenv("BUCKET_SECRET", testSecret)
}

func TestLoad_Defaults(t *testing.T) {
	setBucketEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dmigw.govcloud.dk", cfg.DMIAPIHost)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "https://obs.eu-de.otc.t-systems.com", cfg.BucketEndpoint)
	assert.Equal(t, testBucket, cfg.BucketName)
	assert.Equal(t, "data/dmi/forecasts", cfg.BucketBasePath)
	assert.True(t, cfg.Upload)
	assert.Equal(t, "dkss_if", cfg.Collection)
	assert.Equal(t, []string{"sea-mean-deviation"}, cfg.Parameters)
	assert.Equal(t, domain.BBox{MinLon: 11.5, MinLat: 55.5, MaxLon: 12.2, MaxLat: 56.1}, cfg.BBox)
	assert.Equal(t, "/app/data", cfg.DataDir)
	assert.Equal(t, domain.ManifestURLs, cfg.ManifestFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.Schedule)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.PushgatewayURL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "forecast-publications", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	setBucketEnv(t)
	t.Setenv("DMI_API_KEY", "dmi-key")
	t.Setenv("BUCKET_ENDPOINT", "http://localhost:9000")
	t.Setenv("BUCKET_BASE_PATH", "custom/base")
	t.Setenv("COLLECTION", "harmonie_dini_sf")
	t.Setenv("PARAMETERS", "temperature-2m, wind-speed-10m,,")
	t.Setenv("BBOX", "8,54,15,58")
	t.Setenv("DATA_DIR", "/tmp/ingest")
	t.Setenv("MANIFEST_FORMAT", "legacy")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SCHEDULE", "0 */6 * * *")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("PUSHGATEWAY_URL", "http://pushgateway:9091")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-topic")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dmi-key", cfg.DMIAPIKey)
	assert.Equal(t, "http://localhost:9000", cfg.BucketEndpoint)
	assert.Equal(t, "custom/base", cfg.BucketBasePath)
	assert.Equal(t, "harmonie_dini_sf", cfg.Collection)
	assert.Equal(t, []string{"temperature-2m", "wind-speed-10m"}, cfg.Parameters)
	assert.Equal(t, "8,54,15,58", cfg.BBox.String())
	assert.Equal(t, "/tmp/ingest", cfg.DataDir)
	assert.Equal(t, domain.ManifestLegacy, cfg.ManifestFormat)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "0 */6 * * *", cfg.Schedule)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://pushgateway:9091", cfg.PushgatewayURL)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-topic", cfg.KafkaTopic)
}

func TestLoad_LegacyParameterFallback(t *testing.T) {
	setBucketEnv(t)
	t.Setenv("PARAMETER", "salinity")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"salinity"}, cfg.Parameters)
}

func TestLoad_ParametersOverrideLegacy(t *testing.T) {
	setBucketEnv(t)
	t.Setenv("PARAMETER", "salinity")
	t.Setenv("PARAMETERS", "sea-mean-deviation,water-temperature")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"sea-mean-deviation", "water-temperature"}, cfg.Parameters)
}

func TestLoad_UploadDisabledNeedsNoBucket(t *testing.T) {
	t.Setenv("UPLOAD_TO_BUCKET", "FALSE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Upload)
	assert.Empty(t, cfg.BucketName)
}

func TestLoad_UploadFlagCaseInsensitive(t *testing.T) {
	setBucketEnv(t)
	t.Setenv("UPLOAD_TO_BUCKET", "True")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Upload)
}

func TestLoad_MissingBucketName(t *testing.T) {
	t.Setenv("BUCKET_KEY", testKey)
	t.Setenv("BUCKET_SECRET", testSecret)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BUCKET_NAME")
}

func TestLoad_MissingBucketCredentials(t *testing.T) {
	t.Setenv("BUCKET_NAME", testBucket)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BUCKET_KEY")
}

func TestLoad_InvalidBucketEndpoint(t *testing.T) {
	setBucketEnv(t)
	t.Setenv("BUCKET_ENDPOINT", "obs.eu-de.otc.t-systems.com")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BUCKET_ENDPOINT")
}

func TestLoad_InvalidBBox(t *testing.T) {
	setBucketEnv(t)
	t.Setenv("BBOX", "11.5,55.5,12.2")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BBOX")
}

func TestLoad_InvalidManifestFormat(t *testing.T) {
	setBucketEnv(t)
	t.Setenv("MANIFEST_FORMAT", "yaml")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MANIFEST_FORMAT")
}

func TestLoad_InvalidHTTPTimeout(t *testing.T) {
	setBucketEnv(t)
	t.Setenv("HTTP_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_TIMEOUT")
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	setBucketEnv(t)
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_EmptyParameters(t *testing.T) {
	setBucketEnv(t)
	t.Setenv("PARAMETERS", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PARAMETERS")
}
