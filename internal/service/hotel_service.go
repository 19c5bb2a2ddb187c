package service

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/diagnosis/reservou/internal/domain"
	"github.com/diagnosis/reservou/internal/geocode"
	"github.com/diagnosis/reservou/internal/repository"
	"github.com/diagnosis/reservou/internal/slug"
	"github.com/diagnosis/reservou/internal/storage"
	"github.com/diagnosis/reservou/internal/zipcode"
	"github.com/diagnosis/reservou/pkg/auth"
	"github.com/diagnosis/reservou/pkg/events"
	"github.com/diagnosis/reservou/pkg/logger"
	"github.com/mmcloughlin/geohash"
)

const (
	setupAttempts      = 3
	geohashPrecision   = 9
	defaultNearbyCells = 5
	nearbyLimit        = 50
)

// SetupResult carries the created hotel and the session re-issued with its id.
type SetupResult struct {
	Hotel *domain.Hotel
	Token string
}

type HotelService interface {
	SetupHotel(ctx context.Context, p *auth.Payload, req *domain.HotelSetupRequest) (*SetupResult, error)
	CurrentHotel(ctx context.Context, p *auth.Payload) (*domain.Hotel, error)
	PublicHotel(ctx context.Context, slug string) (*domain.PublicHotel, error)
	Nearby(ctx context.Context, lat, lng float64, precision uint) ([]domain.PublicHotel, error)
	UpdateGeneralInfo(ctx context.Context, p *auth.Payload, req *domain.GeneralInfoRequest) (*domain.Hotel, error)
	UpdateAmenities(ctx context.Context, p *auth.Payload, req *domain.AmenitiesRequest) (*domain.Hotel, error)
	UpdateLocation(ctx context.Context, p *auth.Payload, req *domain.LocationRequest) (*domain.Hotel, error)
	UpdateLandingPage(ctx context.Context, p *auth.Payload, req *domain.LandingPageRequest) (*domain.Hotel, error)
	ZipCode(ctx context.Context, zip string) (*zipcode.Address, error)
}

type hotelService struct {
	users    repository.UserRepository
	hotels   repository.HotelRepository
	geocoder geocode.Geocoder
	zipcodes zipcode.Lookup
	bucket   storage.Bucket
	codec    *auth.Codec
	bus      events.Publisher
	slugs    *slug.Allocator
	urlTTL   time.Duration
	now      func() time.Time
}

func NewHotelService(
	users repository.UserRepository,
	hotels repository.HotelRepository,
	geocoder geocode.Geocoder,
	zipcodes zipcode.Lookup,
	bucket storage.Bucket,
	codec *auth.Codec,
	bus events.Publisher,
	urlTTL time.Duration,
) HotelService {
	s := &hotelService{
		users:    users,
		hotels:   hotels,
		geocoder: geocoder,
		zipcodes: zipcodes,
		bucket:   bucket,
		codec:    codec,
		bus:      bus,
		urlTTL:   urlTTL,
		now:      time.Now,
	}
	s.slugs = slug.NewAllocator(s.slugTaken)
	return s
}

// slugTaken treats reserved words as taken so they are never allocated.
func (s *hotelService) slugTaken(ctx context.Context, candidate string) (bool, error) {
	if domain.IsReservedSlug(candidate) {
		return true, nil
	}
	return s.hotels.SlugExists(ctx, candidate)
}

// requireHotel resolves the hotel of the signed-in user.
func requireHotel(ctx context.Context, hotels repository.HotelRepository, p *auth.Payload) (*domain.Hotel, error) {
	if p == nil || p.UID == "" {
		return nil, apperror.Unauthorized("user not authenticated")
	}
	if !p.HasHotel() {
		return nil, apperror.Forbidden("user has no hotel")
	}
	hotel, err := hotels.FindByID(ctx, p.HID)
	if err != nil {
		return nil, apperror.Internal(err, "find hotel by id")
	}
	if hotel == nil || hotel.OwnerID != p.UID {
		return nil, apperror.Internal(errors.New("session hotel id does not match a hotel owned by the user"), "hotel not found").
			WithDetails(map[string]any{"user_id": p.UID, "hotel_id": p.HID})
	}
	return hotel, nil
}

func (s *hotelService) SetupHotel(ctx context.Context, p *auth.Payload, req *domain.HotelSetupRequest) (*SetupResult, error) {
	if p == nil || p.UID == "" {
		return nil, apperror.Unauthorized("user not authenticated")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	user, err := s.users.FindByID(ctx, p.UID)
	if err != nil {
		return nil, apperror.Internal(err, "find user by id")
	}
	if user == nil {
		return nil, apperror.Unauthorized("user not found")
	}
	if user.HotelRef() != "" || p.HasHotel() {
		return nil, apperror.Conflict("user already has a hotel")
	}

	location := req.Location()
	geo, err := s.geocoder.Geocode(ctx, location.AddressString())
	if err != nil {
		return nil, err
	}

	now := s.now()
	hotel := &domain.Hotel{
		OwnerID:          user.ID,
		Name:             req.Name,
		Description:      req.Description,
		Category:         req.Category,
		Location:         location,
		FormattedAddress: geo.FormattedAddress,
		Geo:              domain.GeoPoint{Lat: geo.Lat, Lng: geo.Lng},
		Geohash:          geohash.EncodeWithPrecision(geo.Lat, geo.Lng, geohashPrecision),
		Contact:          req.Contact(),
		Amenities:        []string{},
		Plan:             domain.PlanBasic,
		PlanExpiresAt:    now.Add(domain.PlanDuration),
	}

	var created *domain.Hotel
	for attempt := 1; attempt <= setupAttempts; attempt++ {
		hotel.Slug, err = s.slugs.Allocate(ctx, slug.Params{Name: req.Name, City: req.City, Country: req.Country})
		if err != nil {
			return nil, err
		}
		hotel.ID = ""

		created, err = s.hotels.CreateForOwner(ctx, hotel)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrSlugTaken) {
			if apperror.Is(err, apperror.KindConflict) {
				return nil, err
			}
			return nil, apperror.Internal(err, "create hotel")
		}
		logger.WarnContext(ctx, "slug taken concurrently, retrying", "slug", hotel.Slug, "attempt", attempt)
	}
	if err != nil {
		return nil, err
	}

	token, err := s.codec.Encode(auth.Payload{UID: user.ID, HID: created.ID})
	if err != nil {
		return nil, err
	}

	events.PublishAsync(ctx, s.bus, events.HotelCreated, events.HotelCreatedEvent{
		HotelID:   created.ID,
		OwnerID:   user.ID,
		Slug:      created.Slug,
		Name:      created.Name,
		Plan:      string(created.Plan),
		CreatedAt: created.CreatedAt,
	})
	logger.InfoContext(ctx, "hotel created", "hotel_id", created.ID, "slug", created.Slug)

	return &SetupResult{Hotel: created, Token: token}, nil
}

func (s *hotelService) CurrentHotel(ctx context.Context, p *auth.Payload) (*domain.Hotel, error) {
	hotel, err := requireHotel(ctx, s.hotels, p)
	if err != nil {
		return nil, err
	}
	if err := s.signBanner(ctx, hotel); err != nil {
		return nil, err
	}
	return hotel, nil
}

func (s *hotelService) signBanner(ctx context.Context, hotel *domain.Hotel) error {
	if hotel.BannerFileKey == "" {
		return nil
	}
	url, err := s.bucket.SignedURL(ctx, hotel.BannerFileKey, s.urlTTL)
	if err != nil {
		return apperror.Internal(err, "sign banner url")
	}
	hotel.BannerURL = url
	return nil
}

func (s *hotelService) PublicHotel(ctx context.Context, hotelSlug string) (*domain.PublicHotel, error) {
	hotel, err := s.hotels.FindBySlug(ctx, hotelSlug)
	if err != nil {
		return nil, apperror.Internal(err, "find hotel by slug")
	}
	if hotel == nil {
		return nil, apperror.NotFound("hotel not found")
	}
	if err := s.signBanner(ctx, hotel); err != nil {
		return nil, err
	}
	if hotel.Photos, err = signPhotos(ctx, s.bucket, hotel.Photos, s.urlTTL); err != nil {
		return nil, err
	}
	public := hotel.ToPublic()
	return &public, nil
}

// Nearby lists hotels in the geohash cell around the point and its eight
// neighbours. precision is the geohash length, 1 (continent) to 9 (meters).
func (s *hotelService) Nearby(ctx context.Context, lat, lng float64, precision uint) ([]domain.PublicHotel, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, apperror.BadRequest("coordinates out of range")
	}
	if precision == 0 {
		precision = defaultNearbyCells
	}
	if precision > geohashPrecision {
		return nil, apperror.BadRequest("precision must be between 1 and 9")
	}

	center := geohash.EncodeWithPrecision(lat, lng, precision)
	cells := append([]string{center}, geohash.Neighbors(center)...)

	hotels, err := s.hotels.ListByGeohashPrefixes(ctx, cells, nearbyLimit)
	if err != nil {
		return nil, apperror.Internal(err, "list nearby hotels")
	}
	out := make([]domain.PublicHotel, 0, len(hotels))
	for i := range hotels {
		out = append(out, hotels[i].ToPublic())
	}
	return out, nil
}

func (s *hotelService) UpdateGeneralInfo(ctx context.Context, p *auth.Payload, req *domain.GeneralInfoRequest) (*domain.Hotel, error) {
	hotel, err := requireHotel(ctx, s.hotels, p)
	if err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}
	if req.Empty() {
		return hotel, nil
	}
	if err := s.checkSlugChange(ctx, hotel, req.Slug); err != nil {
		return nil, err
	}

	return s.apply(ctx, hotel, repository.HotelPatch{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
	}, changedFields(req.Name, "name", req.Slug, "slug", req.Description, "description"))
}

func (s *hotelService) checkSlugChange(ctx context.Context, hotel *domain.Hotel, newSlug *string) error {
	if newSlug == nil || *newSlug == hotel.Slug {
		return nil
	}
	taken, err := s.hotels.SlugExists(ctx, *newSlug)
	if err != nil {
		return apperror.Internal(err, "check slug availability")
	}
	if taken {
		return apperror.ConflictCause(repository.ErrSlugTaken.Error(), repository.ErrSlugTaken)
	}
	return nil
}

func (s *hotelService) UpdateAmenities(ctx context.Context, p *auth.Payload, req *domain.AmenitiesRequest) (*domain.Hotel, error) {
	hotel, err := requireHotel(ctx, s.hotels, p)
	if err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	amenities := req.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	return s.apply(ctx, hotel, repository.HotelPatch{Amenities: &amenities}, []string{"amenities"})
}

func (s *hotelService) UpdateLocation(ctx context.Context, p *auth.Payload, req *domain.LocationRequest) (*domain.Hotel, error) {
	hotel, err := requireHotel(ctx, s.hotels, p)
	if err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	location := req.Location()
	geo, err := s.geocoder.Geocode(ctx, location.AddressString())
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, hotel, locationPatch(location, geo), []string{"location"})
}

func locationPatch(location domain.Location, geo *geocode.Result) repository.HotelPatch {
	point := domain.GeoPoint{Lat: geo.Lat, Lng: geo.Lng}
	hash := geohash.EncodeWithPrecision(geo.Lat, geo.Lng, geohashPrecision)
	formatted := geo.FormattedAddress
	return repository.HotelPatch{
		Location:         &location,
		FormattedAddress: &formatted,
		Geo:              &point,
		Geohash:          &hash,
	}
}

// UpdateLandingPage merges the given fields into the hotel. A zip code
// fills city, state and country from the postal service, the address falls
// back to the street it returns, and the point is taken from the zip code.
// Location fields without a zip code are merged and re-geocoded.
func (s *hotelService) UpdateLandingPage(ctx context.Context, p *auth.Payload, req *domain.LandingPageRequest) (*domain.Hotel, error) {
	hotel, err := requireHotel(ctx, s.hotels, p)
	if err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}
	if err := s.checkSlugChange(ctx, hotel, req.Slug); err != nil {
		return nil, err
	}

	patch := repository.HotelPatch{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Amenities:   req.Amenities,
	}
	changes := changedFields(req.Name, "name", req.Slug, "slug", req.Description, "description")
	if req.Amenities != nil {
		changes = append(changes, "amenities")
	}

	location := hotel.Location
	switch {
	case req.ZipCode != nil:
		addr, err := s.zipcodes.Lookup(ctx, *req.ZipCode)
		if err != nil {
			return nil, err
		}
		location.City, location.State, location.Country = addr.City, addr.State, addr.Country
		location.ZipCode = zipcode.Digits(*req.ZipCode)
		location.Address = addr.Street
		if req.Address != nil {
			location.Address = *req.Address
		}

		geo, err := s.geocoder.Geocode(ctx, location.ZipCode)
		if err != nil {
			return nil, err
		}
		lp := locationPatch(location, geo)
		lp.FormattedAddress = nil
		patch.Location, patch.Geo, patch.Geohash = lp.Location, lp.Geo, lp.Geohash
		changes = append(changes, "location")

	case req.Address != nil || req.City != nil || req.State != nil || req.Country != nil:
		mergeString(&location.Address, req.Address)
		mergeString(&location.City, req.City)
		mergeString(&location.State, req.State)
		mergeString(&location.Country, req.Country)

		geo, err := s.geocoder.Geocode(ctx, location.AddressString())
		if err != nil {
			return nil, err
		}
		lp := locationPatch(location, geo)
		patch.Location, patch.FormattedAddress, patch.Geo, patch.Geohash = lp.Location, lp.FormattedAddress, lp.Geo, lp.Geohash
		changes = append(changes, "location")
	}

	if len(changes) == 0 {
		return hotel, nil
	}
	return s.apply(ctx, hotel, patch, changes)
}

func mergeString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func (s *hotelService) apply(ctx context.Context, hotel *domain.Hotel, patch repository.HotelPatch, changes []string) (*domain.Hotel, error) {
	updated, err := s.hotels.Update(ctx, hotel.ID, patch)
	if err != nil {
		if apperror.Is(err, apperror.KindConflict) {
			return nil, err
		}
		return nil, apperror.Internal(err, "update hotel")
	}
	if updated == nil {
		return nil, apperror.Internal(errors.New("hotel vanished during update"), "update hotel")
	}

	events.PublishAsync(ctx, s.bus, events.HotelUpdated, events.HotelUpdatedEvent{
		HotelID:   updated.ID,
		Slug:      updated.Slug,
		Changes:   changes,
		UpdatedAt: updated.UpdatedAt,
	})
	return updated, nil
}

func (s *hotelService) ZipCode(ctx context.Context, zip string) (*zipcode.Address, error) {
	return s.zipcodes.Lookup(ctx, zip)
}

// changedFields takes (value, name) pairs and returns the names of the
// non-nil values.
func changedFields(pairs ...any) []string {
	var out []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if v, ok := pairs[i].(*string); ok && v != nil {
			out = append(out, pairs[i+1].(string))
		}
	}
	return out
}
