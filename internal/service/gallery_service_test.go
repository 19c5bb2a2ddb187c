package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/diagnosis/reservou/internal/domain"
	"github.com/diagnosis/reservou/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type galleryEnv struct {
	svc     *galleryService
	hotels  *fakeHotels
	bucket  *fakeBucket
	hotel   *domain.Hotel
	payload *auth.Payload
}

func newGalleryEnv(t *testing.T, maxPhotos int, existing ...domain.Photo) *galleryEnv {
	t.Helper()
	users := newFakeUsers()
	hotels := newFakeHotels(users)
	bucket := newFakeBucket()

	owner := users.add("ana@example.com", "Ana")
	h := hotels.seed(owner, "pousada-sol")
	if len(existing) > 0 {
		_, err := hotels.ReplacePhotos(context.Background(), h.ID, nil, existing)
		require.NoError(t, err)
		for _, p := range existing {
			require.NoError(t, bucket.Upload(context.Background(), p.FileKey, "image/jpeg", strings.NewReader("img")))
		}
	}

	return &galleryEnv{
		svc:     NewGalleryService(hotels, bucket, &fakeBus{}, maxPhotos, time.Hour).(*galleryService),
		hotels:  hotels,
		bucket:  bucket,
		hotel:   h,
		payload: &auth.Payload{UID: owner.ID, HID: h.ID},
	}
}

func photo(id string) domain.Photo {
	return domain.Photo{ID: id, FileKey: "hotel/h/photos/" + id + ".jpg", Alt: "photo " + id}
}

func TestListPhotos_SignsEveryPhoto(t *testing.T) {
	env := newGalleryEnv(t, 10, photo("a"), photo("b"))

	photos, err := env.svc.ListPhotos(context.Background(), env.payload)
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, "https://storage.test/hotel/h/photos/a.jpg?sig=1", photos[0].URL)
	assert.Equal(t, "https://storage.test/hotel/h/photos/b.jpg?sig=1", photos[1].URL)

	_, err = env.svc.ListPhotos(context.Background(), &auth.Payload{UID: "x"})
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
}

func TestUpdateGallery_AddsAndDeletes(t *testing.T) {
	env := newGalleryEnv(t, 3, photo("a"), photo("b"))
	ctx := context.Background()

	uploads := []Upload{image("image/png", 1024), image("image/jpeg", 2048)}
	uploads[0].Alt = "Piscina"

	photos, err := env.svc.UpdateGallery(ctx, env.payload, []string{"a"}, uploads)
	require.NoError(t, err)
	require.Len(t, photos, 3)

	assert.Equal(t, "b", photos[0].ID)
	assert.Equal(t, "Piscina", photos[1].Alt)
	for _, p := range photos[1:] {
		assert.Equal(t, "hotel/"+env.hotel.ID+"/photos/"+p.ID+".jpg", p.FileKey)
		assert.True(t, env.bucket.has(p.FileKey))
		assert.NotEmpty(t, p.URL)
	}
	assert.False(t, env.bucket.has(photo("a").FileKey))
	assert.Contains(t, env.bucket.deleted, photo("a").FileKey)
}

func TestUpdateGallery_Rejections(t *testing.T) {
	env := newGalleryEnv(t, 3, photo("a"), photo("b"))
	ctx := context.Background()

	_, err := env.svc.UpdateGallery(ctx, env.payload, []string{"zzz"}, nil)
	require.Error(t, err)
	assert.Equal(t, "photo not found: zzz", apperror.From(err).Message)

	_, err = env.svc.UpdateGallery(ctx, env.payload, nil, []Upload{image("image/webp", 10)})
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))

	_, err = env.svc.UpdateGallery(ctx, env.payload, nil, []Upload{image("image/jpeg", MaxImageSize+1)})
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))

	_, err = env.svc.UpdateGallery(ctx, env.payload, nil, []Upload{image("image/jpeg", 10), image("image/jpeg", 10)})
	require.Error(t, err)
	assert.Equal(t, "a hotel can have at most 3 photos", apperror.From(err).Message)

	assert.Equal(t, 2, env.bucket.count())
}

func TestUpdateGallery_StoreFailureRemovesUploads(t *testing.T) {
	env := newGalleryEnv(t, 10, photo("a"))
	env.hotels.replaceErr = errors.New("connection reset")

	_, err := env.svc.UpdateGallery(context.Background(), env.payload, []string{"a"}, []Upload{image("image/gif", 10), image("image/gif", 10)})
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))

	assert.Equal(t, 1, env.bucket.count())
	assert.True(t, env.bucket.has(photo("a").FileKey))
}

func TestUpdateGallery_UploadFailure(t *testing.T) {
	env := newGalleryEnv(t, 10)
	env.bucket.uploadErr = errors.New("bucket unavailable")

	_, err := env.svc.UpdateGallery(context.Background(), env.payload, nil, []Upload{image("image/gif", 10)})
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))

	photos, _ := env.hotels.ListPhotos(context.Background(), env.hotel.ID)
	assert.Empty(t, photos)
}

func TestUpdateBanner(t *testing.T) {
	env := newGalleryEnv(t, 10)
	ctx := context.Background()

	_, err := env.svc.UpdateBanner(ctx, env.payload, image("text/plain", 10))
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))

	first, err := env.svc.UpdateBanner(ctx, env.payload, image("image/jpeg", 100))
	require.NoError(t, err)
	h, _ := env.hotels.FindByID(ctx, env.hotel.ID)
	firstKey := h.BannerFileKey
	assert.True(t, strings.HasPrefix(firstKey, "hotel/"+env.hotel.ID+"/banner/"))
	assert.Equal(t, "https://storage.test/"+firstKey+"?sig=1", first)

	_, err = env.svc.UpdateBanner(ctx, env.payload, image("image/png", 100))
	require.NoError(t, err)
	h, _ = env.hotels.FindByID(ctx, env.hotel.ID)
	assert.NotEqual(t, firstKey, h.BannerFileKey)
	assert.False(t, env.bucket.has(firstKey))
	assert.True(t, env.bucket.has(h.BannerFileKey))
}

func TestUpdateBanner_StoreFailureRemovesUpload(t *testing.T) {
	env := newGalleryEnv(t, 10)
	env.hotels.updateErr = errors.New("connection reset")

	_, err := env.svc.UpdateBanner(context.Background(), env.payload, image("image/jpeg", 100))
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	assert.Equal(t, 0, env.bucket.count())
}
