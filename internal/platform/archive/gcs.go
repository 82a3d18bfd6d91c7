// Package archive keeps the original statement files in Google Cloud Storage.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const uploadTimeout = 2 * time.Minute

// Store archives uploaded statements and reads them back by URI
type Store interface {
	Put(ctx context.Context, budgetID uuid.UUID, filename, contentType string, data []byte) (string, error)
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// bucketClient is the part of storage.Client the store needs
type bucketClient interface {
	NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

type gcsClient struct {
	client *storage.Client
}

func (c gcsClient) NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (c gcsClient) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return c.client.Bucket(bucket).Object(object).NewReader(ctx)
}

// GCSStore writes statements to statements/<budget>/<uuid>/<filename> in one bucket
type GCSStore struct {
	bucket string
	client bucketClient
	closer io.Closer
	logger *slog.Logger
}

// NewGCSStore uses Application Default Credentials
func NewGCSStore(ctx context.Context, logger *slog.Logger, bucket string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{bucket: bucket, client: gcsClient{client: client}, closer: client, logger: logger}, nil
}

func (s *GCSStore) Put(ctx context.Context, budgetID uuid.UUID, filename, contentType string, data []byte) (string, error) {
	object := ObjectName(budgetID, uuid.New(), filename)

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.NewWriter(ctx, s.bucket, object, contentType)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write statement to gs://%s/%s: %w", s.bucket, object, err)
	}
	// Close finalizes the upload; the object does not exist before it returns.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload of gs://%s/%s: %w", s.bucket, object, err)
	}

	uri := "gs://" + s.bucket + "/" + object
	s.logger.Info("Archived statement file", "uri", uri, "bytes", len(data))
	return uri, nil
}

func (s *GCSStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	r, err := s.client.NewReader(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", uri, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", uri, err)
	}
	return data, nil
}

func (s *GCSStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// ObjectName builds the object path for an upload
func ObjectName(budgetID, uploadID uuid.UUID, filename string) string {
	return path.Join("statements", budgetID.String(), uploadID.String(), safeFilename(filename))
}

func safeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "statement"
	}
	return name
}

// ParseURI splits gs://bucket/object
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}
