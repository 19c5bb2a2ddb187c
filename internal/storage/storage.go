// Package storage keeps hotel images in an object bucket and hands out
// time-limited read URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/google/uuid"
)

type Bucket interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader) error
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func BannerKey(hotelID string) string {
	return fmt.Sprintf("hotel/%s/banner/%s.jpg", hotelID, uuid.NewString())
}

func PhotoKey(hotelID, photoID string) string {
	return fmt.Sprintf("hotel/%s/photos/%s.jpg", hotelID, photoID)
}

type GCSBucket struct {
	handle *gcs.BucketHandle
}

// NewFirebaseBucket opens the app's default bucket.
func NewFirebaseBucket(ctx context.Context, app *firebase.App) (*GCSBucket, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase storage: %w", err)
	}
	handle, err := client.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("open default bucket: %w", err)
	}
	return &GCSBucket{handle: handle}, nil
}

func (b *GCSBucket) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	w := b.handle.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "private, max-age=3600"

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", key, err)
	}
	return nil
}

// Delete removes key. A missing object is not an error.
func (b *GCSBucket) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := b.handle.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (b *GCSBucket) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	url, err := b.handle.SignedURL(key, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", key, err)
	}
	return url, nil
}

// Disabled fails every call. It stands in when no bucket is configured.
type Disabled struct{}

var errDisabled = errors.New("STORAGE_BUCKET is not configured")

func (Disabled) Upload(context.Context, string, string, io.Reader) error {
	return apperror.Internal(errDisabled, "storage not configured")
}

func (Disabled) Delete(context.Context, string) error {
	return apperror.Internal(errDisabled, "storage not configured")
}

func (Disabled) SignedURL(context.Context, string, time.Duration) (string, error) {
	return "", apperror.Internal(errDisabled, "storage not configured")
}
