// Package s3 is the object-storage gateway for S3-compatible endpoints.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Gateway reads, writes, and deletes objects in one bucket. Credentials and
// endpoint are fixed at construction. Calls are never retried.
type Gateway struct {
	client *minio.Client
	bucket string
	scheme string
	host   string
	logger *slog.Logger
}

// Options configures a Gateway.
type Options struct {
	Endpoint string // e.g. https://obs.eu-de.otc.t-systems.com
	Bucket   string
	Key      string
	Secret   string
	Region   string
}

// NewGateway creates a Gateway. The endpoint must be an absolute http(s) URL.
func NewGateway(opts Options, logger *slog.Logger) (*Gateway, error) {
	u, err := parseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(u.Host, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.Key, opts.Secret, ""),
		Secure:       u.Scheme == "https",
		Region:       opts.Region,
		MaxRetries:   1,
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Gateway{
		client: client,
		bucket: opts.Bucket,
		scheme: u.Scheme,
		host:   u.Host,
		logger: logger,
	}, nil
}

func parseEndpoint(endpoint string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse storage endpoint: %w", err)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("storage endpoint %q must be an http(s) URL", endpoint)
	}
	return u, nil
}

// Bucket is the bucket the gateway operates on.
func (g *Gateway) Bucket() string {
	return g.bucket
}

// PublicURL returns the virtual-hosted-style address of key.
func (g *Gateway) PublicURL(key string) string {
	return publicURL(g.scheme, g.bucket, g.host, key)
}

func publicURL(scheme, bucket, host, key string) string {
	return fmt.Sprintf("%s://%s.%s/%s", scheme, bucket, host, strings.TrimLeft(key, "/"))
}

// ErrEmptyPrefix guards against deleting a whole bucket.
var ErrEmptyPrefix = errors.New("refusing to delete with an empty prefix")

// DeletePrefix removes every object under prefix. A prefix with no objects is
// not an error. It returns the number of objects removed.
func (g *Gateway) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	prefix = dirPrefix(prefix)
	if prefix == "" {
		return 0, ErrEmptyPrefix
	}
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// removed is written by the lister before each send; RemoveObjects has
	// received every object by the time its error channel closes.
	var removed int
	objects := make(chan minio.ObjectInfo)
	listErr := make(chan error, 1)
	go func() {
		defer close(objects)
		for obj := range g.client.ListObjects(listCtx, g.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
			if obj.Err != nil {
				listErr <- obj.Err
				return
			}
			removed++
			select {
			case objects <- obj:
			case <-listCtx.Done():
				return
			}
		}
	}()

	var errs []error
	for rerr := range g.client.RemoveObjects(ctx, g.bucket, objects, minio.RemoveObjectsOptions{}) {
		if IsNotFound(rerr.Err) {
			continue
		}
		errs = append(errs, fmt.Errorf("remove %s: %w", rerr.ObjectName, rerr.Err))
	}

	select {
	case err := <-listErr:
		if !IsNotFound(err) {
			errs = append(errs, fmt.Errorf("list %s: %w", prefix, err))
		}
	default:
	}

	if err := errors.Join(errs...); err != nil {
		return removed, err
	}
	if removed == 0 {
		g.logger.Debug("nothing to delete", "bucket", g.bucket, "prefix", prefix)
	}
	return removed, nil
}

// PutFile uploads the local file to key, overwriting any existing object. It
// returns the number of bytes written.
func (g *Gateway) PutFile(ctx context.Context, localPath, key, contentType string) (int64, error) {
	g.logger.Debug("uploading object", "src", localPath, "bucket", g.bucket, "key", key)
	info, err := g.client.FPutObject(ctx, g.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return 0, fmt.Errorf("upload %s to %s/%s: %w", localPath, g.bucket, key, err)
	}
	return info.Size, nil
}

// Get reads the object at key.
func (g *Gateway) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := g.client.GetObject(ctx, g.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", g.bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", g.bucket, key, err)
	}
	return data, nil
}

// List returns the keys of all objects under prefix.
func (g *Gateway) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range g.client.ListObjects(ctx, g.bucket, minio.ListObjectsOptions{Prefix: dirPrefix(prefix), Recursive: true}) {
		if obj.Err != nil {
			if IsNotFound(obj.Err) {
				return nil, nil
			}
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// dirPrefix makes sure a prefix only matches its own subtree, so deleting
// ".../sea-mean" cannot touch ".../sea-mean-deviation".
func dirPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// IsNotFound reports whether err is a missing-object error from storage.
func IsNotFound(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return false
	}
	switch resp.Code {
	case "NoSuchKey", "NoSuchPrefix":
		return true
	}
	return false
}
