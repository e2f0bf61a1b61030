// Package storage uploads journal exports to object storage.
package storage

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/leonardo-meireles/vm-remediator/pkg/errors"

	gcs "cloud.google.com/go/storage"
)

// Archiver writes objects under a fixed bucket and prefix.
type Archiver interface {
	Upload(ctx context.Context, name string, body io.Reader) (string, error)
	Close() error
}

// Location is a parsed archive destination such as s3://bucket/prefix.
type Location struct {
	Scheme string
	Bucket string
	Prefix string
}

// ParseLocation parses an s3:// or gs:// URL.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, errors.Wrap(err, "invalid archive URL")
	}
	if u.Scheme != "s3" && u.Scheme != "gs" {
		return Location{}, errors.Wrap(errUnsupportedScheme(u.Scheme), "invalid archive URL")
	}
	if u.Host == "" {
		return Location{}, errors.Wrap(errMissingBucket, "invalid archive URL")
	}
	return Location{Scheme: u.Scheme, Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
}

// Key joins the location prefix and an object name.
func (l Location) Key(name string) string {
	if l.Prefix == "" {
		return name
	}
	return path.Join(l.Prefix, name)
}

// String renders the location back as a URL.
func (l Location) String() string {
	if l.Prefix == "" {
		return l.Scheme + "://" + l.Bucket
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Prefix
}

// NewArchiver picks the backend from the URL scheme. region applies to S3.
func NewArchiver(ctx context.Context, rawURL, region string) (Archiver, error) {
	loc, err := ParseLocation(rawURL)
	if err != nil {
		return nil, err
	}
	switch loc.Scheme {
	case "s3":
		return NewS3Client(ctx, loc, region)
	default:
		return NewGCSClient(ctx, loc)
	}
}

// S3Client provides S3 storage operations
type S3Client struct {
	s3Client *s3.Client
	loc      Location
}

// NewS3Client creates a new S3 client using the default credential chain
func NewS3Client(ctx context.Context, loc Location, region string) (*S3Client, error) {
	slog.Info("s3_client_init", "bucket", loc.Bucket, "region", region)

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	slog.Info("s3_client_created", "bucket", loc.Bucket)

	return &S3Client{
		s3Client: s3.NewFromConfig(cfg),
		loc:      loc,
	}, nil
}

// Upload puts one object and returns its URL
func (c *S3Client) Upload(ctx context.Context, name string, body io.Reader) (string, error) {
	key := c.loc.Key(name)
	slog.Info("s3_upload_start", "bucket", c.loc.Bucket, "s3_key", key)

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.loc.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		slog.Error("s3_put_object_failed", "s3_key", key, "error", err)
		return "", errors.Wrap(err, "failed to put object to S3")
	}

	slog.Info("s3_upload_complete", "bucket", c.loc.Bucket, "s3_key", key)
	return "s3://" + c.loc.Bucket + "/" + key, nil
}

// Close is a no-op; the S3 client holds no connections of its own.
func (c *S3Client) Close() error { return nil }

// GCSClient provides Cloud Storage operations
type GCSClient struct {
	client *gcs.Client
	loc    Location
}

// NewGCSClient creates a Cloud Storage client from application default credentials
func NewGCSClient(ctx context.Context, loc Location) (*GCSClient, error) {
	slog.Info("gcs_client_init", "bucket", loc.Bucket)

	client, err := gcs.NewClient(ctx)
	if err != nil {
		slog.Error("gcs_client_init_failed", "error", err)
		return nil, errors.Wrap(err, "failed to create GCS client")
	}

	return &GCSClient{client: client, loc: loc}, nil
}

// Upload writes one object and returns its URL
func (c *GCSClient) Upload(ctx context.Context, name string, body io.Reader) (string, error) {
	key := c.loc.Key(name)
	slog.Info("gcs_upload_start", "bucket", c.loc.Bucket, "object", key)

	w := c.client.Bucket(c.loc.Bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType(name)

	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		slog.Error("gcs_write_failed", "object", key, "error", err)
		return "", errors.Wrap(err, "failed to write object to GCS")
	}
	if err := w.Close(); err != nil {
		slog.Error("gcs_close_failed", "object", key, "error", err)
		return "", errors.Wrap(err, "failed to finalize GCS object")
	}

	slog.Info("gcs_upload_complete", "bucket", c.loc.Bucket, "object", key)
	return "gs://" + c.loc.Bucket + "/" + key, nil
}

// Close releases the underlying client
func (c *GCSClient) Close() error {
	return c.client.Close()
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}
