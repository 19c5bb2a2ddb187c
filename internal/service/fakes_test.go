package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/diagnosis/reservou/internal/domain"
	"github.com/diagnosis/reservou/internal/geocode"
	"github.com/diagnosis/reservou/internal/identity"
	"github.com/diagnosis/reservou/internal/mailer"
	"github.com/diagnosis/reservou/internal/repository"
	"github.com/diagnosis/reservou/internal/zipcode"
	"github.com/google/uuid"
)

// ---------- Users ----------

type fakeUsers struct {
	mu        sync.Mutex
	byID      map[string]*domain.User
	createErr error
	findErr   error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[string]*domain.User)}
}

func (f *fakeUsers) add(email, name string) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &domain.User{ID: uuid.NewString(), Email: email, Name: name, Role: domain.RoleHotel, CreatedAt: time.Now()}
	f.byID[u.ID] = u
	return u
}

func (f *fakeUsers) Create(_ context.Context, email, name string, role domain.Role) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			return nil, apperror.ConflictCause(repository.ErrEmailTaken.Error(), repository.ErrEmailTaken)
		}
	}
	u := &domain.User{ID: uuid.NewString(), Email: email, Name: name, Role: role, CreatedAt: time.Now()}
	f.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	if u, ok := f.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeUsers) UpdateName(_ context.Context, id, name string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	u.Name = name
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) linkHotel(userID, hotelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[userID]; ok {
		u.HotelID = &hotelID
	}
}

// ---------- Hotels ----------

type fakeHotels struct {
	mu         sync.Mutex
	byID       map[string]*domain.Hotel
	users      *fakeUsers
	raceSlugs  int // CreateForOwner reports a slug conflict this many times
	createCall int
	updateErr  error
	replaceErr error
}

func newFakeHotels(users *fakeUsers) *fakeHotels {
	return &fakeHotels{byID: make(map[string]*domain.Hotel), users: users}
}

func clone(h *domain.Hotel) *domain.Hotel {
	cp := *h
	cp.Photos = append([]domain.Photo{}, h.Photos...)
	cp.Amenities = append([]string{}, h.Amenities...)
	return &cp
}

func (f *fakeHotels) seed(owner *domain.User, slug string) *domain.Hotel {
	f.mu.Lock()
	h := &domain.Hotel{
		ID:        uuid.NewString(),
		OwnerID:   owner.ID,
		Name:      "Pousada Sol",
		Slug:      slug,
		Location:  domain.Location{Address: "Rua das Flores 10", City: "Salvador", State: "BA", Country: "Brasil", ZipCode: "40000000"},
		Photos:    []domain.Photo{},
		Amenities: []string{},
		Plan:      domain.PlanBasic,
	}
	f.byID[h.ID] = h
	f.mu.Unlock()
	if f.users != nil {
		f.users.linkHotel(owner.ID, h.ID)
	}
	return clone(h)
}

func (f *fakeHotels) CreateForOwner(_ context.Context, h *domain.Hotel) (*domain.Hotel, error) {
	f.mu.Lock()
	f.createCall++
	if f.raceSlugs > 0 {
		f.raceSlugs--
		f.mu.Unlock()
		return nil, apperror.ConflictCause(repository.ErrSlugTaken.Error(), repository.ErrSlugTaken)
	}
	for _, existing := range f.byID {
		if existing.Slug == h.Slug {
			f.mu.Unlock()
			return nil, apperror.ConflictCause(repository.ErrSlugTaken.Error(), repository.ErrSlugTaken)
		}
		if existing.OwnerID == h.OwnerID {
			f.mu.Unlock()
			return nil, apperror.ConflictCause(repository.ErrOwnerHasHotel.Error(), repository.ErrOwnerHasHotel)
		}
	}
	created := clone(h)
	created.ID = uuid.NewString()
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	f.byID[created.ID] = created
	f.mu.Unlock()

	if f.users != nil {
		f.users.linkHotel(h.OwnerID, created.ID)
	}
	return clone(created), nil
}

func (f *fakeHotels) FindByID(_ context.Context, id string) (*domain.Hotel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.byID[id]; ok {
		return clone(h), nil
	}
	return nil, nil
}

func (f *fakeHotels) FindBySlug(_ context.Context, slug string) (*domain.Hotel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.byID {
		if h.Slug == slug {
			return clone(h), nil
		}
	}
	return nil, nil
}

func (f *fakeHotels) SlugExists(_ context.Context, slug string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.byID {
		if h.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeHotels) Update(_ context.Context, id string, p repository.HotelPatch) (*domain.Hotel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	h, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	if p.Name != nil {
		h.Name = *p.Name
	}
	if p.Slug != nil {
		h.Slug = *p.Slug
	}
	if p.Description != nil {
		h.Description = *p.Description
	}
	if p.Location != nil {
		h.Location = *p.Location
	}
	if p.FormattedAddress != nil {
		h.FormattedAddress = *p.FormattedAddress
	}
	if p.Geo != nil {
		h.Geo = *p.Geo
	}
	if p.Geohash != nil {
		h.Geohash = *p.Geohash
	}
	if p.Amenities != nil {
		h.Amenities = append([]string{}, (*p.Amenities)...)
	}
	if p.BannerFileKey != nil {
		h.BannerFileKey = *p.BannerFileKey
	}
	h.UpdatedAt = time.Now()
	return clone(h), nil
}

func (f *fakeHotels) ReplacePhotos(_ context.Context, hotelID string, deleted []string, added []domain.Photo) ([]domain.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return nil, f.replaceErr
	}
	h, ok := f.byID[hotelID]
	if !ok {
		return nil, errors.New("hotel not found")
	}
	drop := make(map[string]bool, len(deleted))
	for _, id := range deleted {
		drop[id] = true
	}
	kept := []domain.Photo{}
	for _, p := range h.Photos {
		if !drop[p.ID] {
			kept = append(kept, p)
		}
	}
	h.Photos = append(kept, added...)
	return append([]domain.Photo{}, h.Photos...), nil
}

func (f *fakeHotels) ListPhotos(_ context.Context, hotelID string) ([]domain.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.byID[hotelID]; ok {
		return append([]domain.Photo{}, h.Photos...), nil
	}
	return []domain.Photo{}, nil
}

func (f *fakeHotels) ListByGeohashPrefixes(_ context.Context, prefixes []string, limit int) ([]domain.Hotel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Hotel{}
	for _, h := range f.byID {
		for _, p := range prefixes {
			if strings.HasPrefix(h.Geohash, p) {
				out = append(out, *clone(h))
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ---------- Mailer ----------

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.MagicLink
	err  error
}

func (m *fakeMailer) SendMagicLink(_ context.Context, ml mailer.MagicLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, ml)
	return nil
}

func (m *fakeMailer) last() mailer.MagicLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return mailer.MagicLink{}
	}
	return m.sent[len(m.sent)-1]
}

// ---------- Identity ----------

type fakeVerifier struct {
	identities map[string]*identity.Identity
}

func (v *fakeVerifier) Verify(_ context.Context, idToken string) (*identity.Identity, error) {
	id, ok := v.identities[idToken]
	if !ok {
		return nil, errors.New("token signature mismatch")
	}
	return id, nil
}

// ---------- Events ----------

type published struct {
	subject string
	data    any
}

type fakeBus struct {
	mu     sync.Mutex
	events []published
}

func (b *fakeBus) Publish(_ context.Context, subject string, data interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{subject: subject, data: data})
	return nil
}

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) subjects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.subject
	}
	return out
}

// ---------- Storage ----------

type fakeBucket struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	uploadErr error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: make(map[string][]byte)}
}

func (b *fakeBucket) Upload(_ context.Context, key, _ string, r io.Reader) error {
	if b.uploadErr != nil {
		return b.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *fakeBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *fakeBucket) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.test/" + key + "?sig=1", nil
}

func (b *fakeBucket) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *fakeBucket) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// ---------- Geocoding / zip codes ----------

type fakeGeocoder struct {
	queries []string
	result  geocode.Result
	err     error
}

func (g *fakeGeocoder) Geocode(_ context.Context, address string) (*geocode.Result, error) {
	g.queries = append(g.queries, address)
	if g.err != nil {
		return nil, g.err
	}
	r := g.result
	return &r, nil
}

type fakeZipcodes struct {
	addresses map[string]zipcode.Address
}

func (z *fakeZipcodes) Lookup(_ context.Context, zip string) (*zipcode.Address, error) {
	a, ok := z.addresses[zipcode.Digits(zip)]
	if !ok {
		return nil, apperror.NotFound(fmt.Sprintf("zip code not found: %s", zip))
	}
	return &a, nil
}

func image(contentType string, size int) Upload {
	return Upload{ContentType: contentType, Size: int64(size), Body: bytes.NewReader(make([]byte, size))}
}
