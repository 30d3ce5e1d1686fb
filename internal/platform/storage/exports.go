package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

const defaultSignedURLExpiry = 15 * time.Minute

// ExportStore writes generated export files to a Cloud Storage bucket and
// issues time-limited download URLs for them.
type ExportStore struct {
	client   *gcs.Client
	bucket   string
	accessID string
	key      []byte
	ttl      time.Duration
	clock    func() time.Time
}

// ExportStoreOption customises an ExportStore.
type ExportStoreOption func(*ExportStore)

// WithSignedURLTTL overrides the default download URL lifetime.
func WithSignedURLTTL(ttl time.Duration) ExportStoreOption {
	return func(s *ExportStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) ExportStoreOption {
	return func(s *ExportStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewExportStore builds a store over the given bucket. The access id and PEM
// key are optional; without them Write works but SignedURL returns an error.
func NewExportStore(client *gcs.Client, bucket, accessID string, key []byte, opts ...ExportStoreOption) (*ExportStore, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}

	store := &ExportStore{
		client:   client,
		bucket:   bucket,
		accessID: strings.TrimSpace(accessID),
		key:      key,
		ttl:      defaultSignedURLExpiry,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Bucket returns the configured bucket name.
func (s *ExportStore) Bucket() string {
	if s == nil {
		return ""
	}
	return s.bucket
}

// Write uploads the payload to the given object with the content type set.
func (s *ExportStore) Write(ctx context.Context, object, contentType string, payload []byte) error {
	if s == nil || s.client == nil {
		return errors.New("storage: export store not initialised")
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return errors.New("storage: object name is required")
	}

	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return fmt.Errorf("storage: write object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: finalise object %s: %w", object, err)
	}
	return nil
}

// SignedURL issues a GET download URL for a previously written object.
func (s *ExportStore) SignedURL(object string) (string, time.Time, error) {
	if s == nil {
		return "", time.Time{}, errors.New("storage: export store not initialised")
	}
	if s.accessID == "" || len(s.key) == 0 {
		return "", time.Time{}, errors.New("storage: signing credentials are not configured")
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return "", time.Time{}, errors.New("storage: object name is required")
	}

	expires := s.clock().UTC().Add(s.ttl)
	url, err := gcs.SignedURL(s.bucket, object, &gcs.SignedURLOptions{
		GoogleAccessID: s.accessID,
		PrivateKey:     s.key,
		Method:         "GET",
		Expires:        expires,
		Scheme:         gcs.SigningSchemeV4,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("storage: sign url for %s: %w", object, err)
	}
	return url, expires, nil
}
