package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const gcsObjectPrefix = "reports/"

// GCSBlobStore keeps blobs as objects in a Google Cloud Storage bucket.
type GCSBlobStore struct {
	client *storage.Client
	bucket string
}

// NewGCSClient prefers explicit service-account JSON and falls back to
// Application Default Credentials.
func NewGCSClient(ctx context.Context, credentialsJSON string) (*storage.Client, error) {
	if strings.TrimSpace(credentialsJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	return storage.NewClient(ctx)
}

// NewGCSBlobStore checks that the bucket is reachable before returning.
func NewGCSBlobStore(ctx context.Context, client *storage.Client, bucket string) (*GCSBlobStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		return nil, fmt.Errorf("gcs bucket %q not found or not accessible: %w", bucket, err)
	}
	return &GCSBlobStore{client: client, bucket: bucket}, nil
}

func (s *GCSBlobStore) Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}

	object := gcsObjectPrefix + StoredName(meta)
	wc := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	wc.ContentType = meta.ContentType
	wc.Metadata = map[string]string{
		"blob-id":    meta.ID,
		"file-name":  meta.FileName,
		"category":   meta.Category,
		"sha256":     meta.Hash,
		"created-by": meta.CreatedBy,
	}

	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return nil, fmt.Errorf("writing gcs object: %w", err)
	}
	if err := wc.Close(); err != nil {
		return nil, fmt.Errorf("closing gcs writer: %w", err)
	}

	meta.URL = GCSObjectURL(s.bucket, object)
	return &meta, nil
}

func (s *GCSBlobStore) Download(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	if id == "" {
		return nil, nil, ErrBlobNotFound
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: gcsObjectPrefix + id + "_"})
	attrs, err := it.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("listing gcs objects: %w", err)
	}

	rc, err := s.client.Bucket(s.bucket).Object(attrs.Name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading gcs object: %w", err)
	}

	return rc, &BlobMetadata{
		ID:          id,
		FileName:    attrs.Metadata["file-name"],
		ContentType: attrs.ContentType,
		Size:        attrs.Size,
		Category:    attrs.Metadata["category"],
		Hash:        attrs.Metadata["sha256"],
		URL:         GCSObjectURL(s.bucket, attrs.Name),
		CreatedAt:   attrs.Created,
		CreatedBy:   attrs.Metadata["created-by"],
	}, nil
}

// GCSObjectURL is the https URL of an object in bucket.
func GCSObjectURL(bucket, object string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, object)
}
