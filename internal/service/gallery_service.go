package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/diagnosis/reservou/internal/domain"
	"github.com/diagnosis/reservou/internal/repository"
	"github.com/diagnosis/reservou/internal/storage"
	"github.com/diagnosis/reservou/pkg/auth"
	"github.com/diagnosis/reservou/pkg/events"
	"github.com/diagnosis/reservou/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// MaxImageSize is the largest banner or photo accepted.
const MaxImageSize = 5 << 20

const parallelTransfers = 4

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Upload is a single image taken from a multipart form.
type Upload struct {
	Alt         string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (u Upload) validate(label string) error {
	if !allowedImageTypes[u.ContentType] {
		return apperror.BadRequest(fmt.Sprintf("%s must be a jpeg, png or gif image", label))
	}
	if u.Size <= 0 {
		return apperror.BadRequest(fmt.Sprintf("%s is empty", label))
	}
	if u.Size > MaxImageSize {
		return apperror.BadRequest(fmt.Sprintf("%s must be at most 5MB", label))
	}
	return nil
}

type GalleryService interface {
	ListPhotos(ctx context.Context, p *auth.Payload) ([]domain.Photo, error)
	UpdateGallery(ctx context.Context, p *auth.Payload, deleted []string, uploads []Upload) ([]domain.Photo, error)
	UpdateBanner(ctx context.Context, p *auth.Payload, banner Upload) (string, error)
}

type galleryService struct {
	hotels    repository.HotelRepository
	bucket    storage.Bucket
	bus       events.Publisher
	maxPhotos int
	urlTTL    time.Duration
}

func NewGalleryService(hotels repository.HotelRepository, bucket storage.Bucket, bus events.Publisher, maxPhotos int, urlTTL time.Duration) GalleryService {
	return &galleryService{
		hotels:    hotels,
		bucket:    bucket,
		bus:       bus,
		maxPhotos: maxPhotos,
		urlTTL:    urlTTL,
	}
}

// signPhotos fills URL on a copy of photos, one signing call per photo.
func signPhotos(ctx context.Context, bucket storage.Bucket, photos []domain.Photo, ttl time.Duration) ([]domain.Photo, error) {
	out := make([]domain.Photo, len(photos))
	copy(out, photos)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelTransfers)
	for i := range out {
		g.Go(func() error {
			url, err := bucket.SignedURL(gctx, out[i].FileKey, ttl)
			if err != nil {
				return err
			}
			out[i].URL = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperror.Internal(err, "sign photo urls")
	}
	return out, nil
}

func (s *galleryService) ListPhotos(ctx context.Context, p *auth.Payload) ([]domain.Photo, error) {
	hotel, err := requireHotel(ctx, s.hotels, p)
	if err != nil {
		return nil, err
	}
	return signPhotos(ctx, s.bucket, hotel.Photos, s.urlTTL)
}

// UpdateGallery removes the photos named in deleted and appends uploads.
// Objects are uploaded before the rows are written; a failed write removes
// them again. Objects of deleted photos are removed once the rows are gone.
func (s *galleryService) UpdateGallery(ctx context.Context, p *auth.Payload, deleted []string, uploads []Upload) ([]domain.Photo, error) {
	hotel, err := requireHotel(ctx, s.hotels, p)
	if err != nil {
		return nil, err
	}

	removed := make([]domain.Photo, 0, len(deleted))
	seen := make(map[string]bool, len(deleted))
	for _, id := range deleted {
		if seen[id] {
			continue
		}
		seen[id] = true
		photo := hotel.FindPhoto(id)
		if photo == nil {
			return nil, apperror.BadRequest(fmt.Sprintf("photo not found: %s", id))
		}
		removed = append(removed, *photo)
	}

	for i, u := range uploads {
		if err := u.validate(fmt.Sprintf("photo %d", i+1)); err != nil {
			return nil, err
		}
	}
	if total := len(hotel.Photos) - len(removed) + len(uploads); total > s.maxPhotos {
		return nil, apperror.BadRequest(fmt.Sprintf("a hotel can have at most %d photos", s.maxPhotos))
	}
	if len(removed) == 0 && len(uploads) == 0 {
		return signPhotos(ctx, s.bucket, hotel.Photos, s.urlTTL)
	}

	added := make([]domain.Photo, len(uploads))
	for i, u := range uploads {
		id := uuid.NewString()
		added[i] = domain.Photo{ID: id, FileKey: storage.PhotoKey(hotel.ID, id), Alt: u.Alt}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelTransfers)
	for i := range uploads {
		g.Go(func() error {
			return s.bucket.Upload(gctx, added[i].FileKey, uploads[i].ContentType, uploads[i].Body)
		})
	}
	if err := g.Wait(); err != nil {
		s.deleteObjects(ctx, keysOf(added))
		return nil, apperror.Internal(err, "upload photos")
	}

	deletedIDs := make([]string, len(removed))
	for i := range removed {
		deletedIDs[i] = removed[i].ID
	}
	photos, err := s.hotels.ReplacePhotos(ctx, hotel.ID, deletedIDs, added)
	if err != nil {
		s.deleteObjects(ctx, keysOf(added))
		return nil, apperror.Internal(err, "save gallery")
	}
	s.deleteObjects(ctx, keysOf(removed))

	events.PublishAsync(ctx, s.bus, events.HotelUpdated, events.HotelUpdatedEvent{
		HotelID:   hotel.ID,
		Slug:      hotel.Slug,
		Changes:   []string{"photos"},
		UpdatedAt: time.Now(),
	})
	return signPhotos(ctx, s.bucket, photos, s.urlTTL)
}

func keysOf(photos []domain.Photo) []string {
	keys := make([]string, len(photos))
	for i := range photos {
		keys[i] = photos[i].FileKey
	}
	return keys
}

// deleteObjects removes objects best effort; leftovers are only logged.
func (s *galleryService) deleteObjects(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(parallelTransfers)
	for _, key := range keys {
		g.Go(func() error {
			if err := s.bucket.Delete(ctx, key); err != nil {
				logger.WarnContext(ctx, "failed to delete stored object", "key", key, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// UpdateBanner stores a new banner and returns its signed URL. The previous
// object is removed after the hotel points at the new one.
func (s *galleryService) UpdateBanner(ctx context.Context, p *auth.Payload, banner Upload) (string, error) {
	hotel, err := requireHotel(ctx, s.hotels, p)
	if err != nil {
		return "", err
	}
	if err := banner.validate("banner"); err != nil {
		return "", err
	}

	key := storage.BannerKey(hotel.ID)
	if err := s.bucket.Upload(ctx, key, banner.ContentType, banner.Body); err != nil {
		return "", apperror.Internal(err, "upload banner")
	}

	updated, err := s.hotels.Update(ctx, hotel.ID, repository.HotelPatch{BannerFileKey: &key})
	if err != nil || updated == nil {
		s.deleteObjects(ctx, []string{key})
		if err == nil {
			err = fmt.Errorf("hotel %s vanished during banner update", hotel.ID)
		}
		return "", apperror.Internal(err, "save banner")
	}
	if hotel.BannerFileKey != "" && hotel.BannerFileKey != key {
		s.deleteObjects(ctx, []string{hotel.BannerFileKey})
	}

	url, err := s.bucket.SignedURL(ctx, key, s.urlTTL)
	if err != nil {
		return "", apperror.Internal(err, "sign banner url")
	}

	events.PublishAsync(ctx, s.bus, events.HotelUpdated, events.HotelUpdatedEvent{
		HotelID:   hotel.ID,
		Slug:      hotel.Slug,
		Changes:   []string{"banner"},
		UpdatedAt: updated.UpdatedAt,
	})
	return url, nil
}
