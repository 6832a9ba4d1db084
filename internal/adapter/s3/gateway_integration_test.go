//go:build integration

package s3_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/adapter/s3"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
)

const testBucket = "forecasts"

func startMinio(ctx context.Context, t *testing.T) *s3.Gateway {
	t.Helper()

	ctr, err := tcminio.Run(ctx, "minio/minio:RELEASE.2024-01-16T16-07-38Z")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	addr, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	admin, err := minio.New(addr, &minio.Options{Creds: credentials.NewStaticV4(ctr.Username, ctr.Password, "")})
	require.NoError(t, err)
	require.NoError(t, admin.MakeBucket(ctx, testBucket, minio.MakeBucketOptions{}))

	g, err := s3.NewGateway(s3.Options{
		Endpoint: "http://" + addr,
		Bucket:   testBucket,
		Key:      ctr.Username,
		Secret:   ctr.Password,
	}, slog.Default())
	require.NoError(t, err)
	return g
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGateway_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	g := startMinio(ctx, t)
	prefix := "data/dmi/forecasts/dkss_if/sea-mean-deviation"

	t.Run("delete of absent prefix succeeds", func(t *testing.T) {
		n, err := g.DeletePrefix(ctx, prefix)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	src := writeFile(t, "20240301000000.tif", "band-0")
	_, err := g.PutFile(ctx, src, prefix+"/20240301000000.tif", domain.ContentTypeGeoTIFF)
	require.NoError(t, err)
	_, err = g.PutFile(ctx, writeFile(t, "forecasts.json", "{}"), prefix+"/forecasts.json", domain.ContentTypeJSON)
	require.NoError(t, err)
	// A sibling parameter whose name shares the prefix must survive deletion.
	_, err = g.PutFile(ctx, src, prefix+"-anomaly/20240301000000.tif", domain.ContentTypeGeoTIFF)
	require.NoError(t, err)

	keys, err := g.List(ctx, prefix)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{prefix + "/20240301000000.tif", prefix + "/forecasts.json"}, keys)

	data, err := g.Get(ctx, prefix+"/forecasts.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	n, err := g.DeletePrefix(ctx, prefix)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err = g.List(ctx, prefix)
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = g.List(ctx, prefix+"-anomaly")
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	_, err = g.Get(ctx, prefix+"/forecasts.json")
	require.Error(t, err)
	assert.True(t, s3.IsNotFound(err))
}
