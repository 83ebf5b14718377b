package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

const (
	pingTimeout = 5 * time.Second
	// DefaultMaxObjectBytes bounds how much of an object is buffered for upload.
	DefaultMaxObjectBytes = 512 << 20
)

var (
	ErrObjectNotFound    = errors.New("gcs object not found")
	ErrObjectTooLarge    = errors.New("gcs object exceeds read limit")
	errBucketRequired    = errors.New("gcs bucket name is required")
	errClientUnavailable = errors.New("gcs client not initialized")
)

// Client reads already-stored asset bytes from Cloud Storage.
type Client struct {
	svc           *storage.Service
	defaultBucket string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	client, err := newClient(ctx, cfg.BucketName, clientOptions(gcp)...)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(ctx, "gcs client initialized")
	}
	return client, nil
}

func newClient(ctx context.Context, bucket string, opts ...option.ClientOption) (*Client, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errBucketRequired
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage service: %w", err)
	}
	return &Client{svc: svc, defaultBucket: bucket}, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(storage.DevstorageReadOnlyScope)}
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	return opts
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.svc == nil {
		return errClientUnavailable
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := c.svc.Buckets.Get(c.defaultBucket).Context(pingCtx).Do(); err != nil {
		return fmt.Errorf("get bucket %s: %w", c.defaultBucket, err)
	}
	return nil
}

// ReadObject downloads an object into memory. ref is either an object name in
// the default bucket or a gs:// / storage.googleapis.com URL.
func (c *Client) ReadObject(ctx context.Context, ref string, maxBytes int64) ([]byte, error) {
	if c == nil || c.svc == nil {
		return nil, errClientUnavailable
	}
	bucket, object, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxObjectBytes
	}

	resp, err := c.svc.Objects.Get(bucket, object).Context(ctx).Download()
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, object)
		}
		return nil, fmt.Errorf("download %s/%s: %w", bucket, object, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", bucket, object, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectTooLarge, bucket, object)
	}
	return data, nil
}

func (c *Client) resolve(ref string) (string, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", errors.New("object reference is required")
	}
	if !strings.Contains(ref, "://") {
		return c.defaultBucket, strings.TrimPrefix(ref, "/"), nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", fmt.Errorf("parse object url: %w", err)
	}
	switch {
	case u.Scheme == "gs":
		return u.Host, strings.TrimPrefix(u.Path, "/"), nil
	case u.Host == "storage.googleapis.com":
		parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
		if len(parts) != 2 || parts[1] == "" {
			return "", "", fmt.Errorf("object url %q has no object path", ref)
		}
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("unsupported object url %q", ref)
	}
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code == http.StatusNotFound
	}
	return false
}
