package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/diagnosis/reservou/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HotelPatch lists the columns an update touches; nil fields are kept.
type HotelPatch struct {
	Name             *string
	Slug             *string
	Description      *string
	Location         *domain.Location
	FormattedAddress *string
	Geo              *domain.GeoPoint
	Geohash          *string
	Amenities        *[]string
	BannerFileKey    *string
}

type HotelRepository interface {
	CreateForOwner(ctx context.Context, h *domain.Hotel) (*domain.Hotel, error)
	FindByID(ctx context.Context, id string) (*domain.Hotel, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Hotel, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Update(ctx context.Context, id string, patch HotelPatch) (*domain.Hotel, error)
	ReplacePhotos(ctx context.Context, hotelID string, deleted []string, added []domain.Photo) ([]domain.Photo, error)
	ListPhotos(ctx context.Context, hotelID string) ([]domain.Photo, error)
	ListByGeohashPrefixes(ctx context.Context, prefixes []string, limit int) ([]domain.Hotel, error)
}

type hotelRepository struct {
	pool *pgxpool.Pool
}

func NewHotelRepository(pool *pgxpool.Pool) HotelRepository {
	return &hotelRepository{pool: pool}
}

const hotelCols = `id, owner_id, name, slug, description, category,
	address, city, state, country, zip_code, formatted_address, lat, lng, geohash,
	contact_email, contact_phone, website, banner_file_key, amenities,
	plan, plan_expires_at, created_at, updated_at`

func scanHotel(row pgx.Row) (*domain.Hotel, error) {
	var h domain.Hotel
	err := row.Scan(
		&h.ID, &h.OwnerID, &h.Name, &h.Slug, &h.Description, &h.Category,
		&h.Location.Address, &h.Location.City, &h.Location.State, &h.Location.Country, &h.Location.ZipCode,
		&h.FormattedAddress, &h.Geo.Lat, &h.Geo.Lng, &h.Geohash,
		&h.Contact.Email, &h.Contact.Phone, &h.Contact.Website, &h.BannerFileKey, &h.Amenities,
		&h.Plan, &h.PlanExpiresAt, &h.CreatedAt, &h.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// conflictFor maps unique violations on hotels to Conflict errors.
func conflictFor(err error) error {
	constraint, dup := isUniqueViolation(err)
	if !dup {
		return err
	}
	if constraint == "hotels_owner_id_key" {
		return apperror.ConflictCause(ErrOwnerHasHotel.Error(), ErrOwnerHasHotel)
	}
	return apperror.ConflictCause(ErrSlugTaken.Error(), ErrSlugTaken)
}

// CreateForOwner inserts the hotel and links it to its owner in one
// transaction.
func (r *hotelRepository) CreateForOwner(ctx context.Context, h *domain.Hotel) (*domain.Hotel, error) {
	const insertHotel = `
		INSERT INTO hotels (
			id, owner_id, name, slug, description, category,
			address, city, state, country, zip_code, formatted_address, lat, lng, geohash,
			contact_email, contact_phone, website, amenities, plan, plan_expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		RETURNING ` + hotelCols
	const linkOwner = `UPDATE users SET hotel_id = $2, updated_at = now() WHERE id = $1 AND hotel_id IS NULL`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	amenities := h.Amenities
	if amenities == nil {
		amenities = []string{}
	}

	created, err := scanHotel(tx.QueryRow(ctx, insertHotel,
		h.ID, h.OwnerID, h.Name, h.Slug, h.Description, h.Category,
		h.Location.Address, h.Location.City, h.Location.State, h.Location.Country, h.Location.ZipCode,
		h.FormattedAddress, h.Geo.Lat, h.Geo.Lng, h.Geohash,
		h.Contact.Email, h.Contact.Phone, h.Contact.Website, amenities, h.Plan, h.PlanExpiresAt,
	))
	if err != nil {
		return nil, conflictFor(err)
	}

	tag, err := tx.Exec(ctx, linkOwner, h.OwnerID, created.ID)
	if err != nil {
		return nil, fmt.Errorf("link hotel owner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperror.ConflictCause(ErrOwnerHasHotel.Error(), ErrOwnerHasHotel)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit hotel: %w", err)
	}
	created.Photos = []domain.Photo{}
	return created, nil
}

func (r *hotelRepository) FindByID(ctx context.Context, id string) (*domain.Hotel, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.findOne(ctx, `SELECT `+hotelCols+` FROM hotels WHERE id = $1`, id)
}

func (r *hotelRepository) FindBySlug(ctx context.Context, slug string) (*domain.Hotel, error) {
	return r.findOne(ctx, `SELECT `+hotelCols+` FROM hotels WHERE slug = $1`, slug)
}

func (r *hotelRepository) findOne(ctx context.Context, q string, arg any) (*domain.Hotel, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	h, err := scanHotel(r.pool.QueryRow(ctx, q, arg))
	if err != nil || h == nil {
		return nil, err
	}
	if h.Photos, err = r.ListPhotos(ctx, h.ID); err != nil {
		return nil, err
	}
	return h, nil
}

func (r *hotelRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM hotels WHERE slug = $1)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx, q, slug).Scan(&exists)
	return exists, err
}

// Update applies the non-nil fields of patch and returns the updated hotel,
// nil when no hotel has that id.
func (r *hotelRepository) Update(ctx context.Context, id string, patch HotelPatch) (*domain.Hotel, error) {
	const q = `
		UPDATE hotels SET
			name              = COALESCE($2, name),
			slug              = COALESCE($3, slug),
			description       = COALESCE($4, description),
			address           = COALESCE($5, address),
			city              = COALESCE($6, city),
			state             = COALESCE($7, state),
			country           = COALESCE($8, country),
			zip_code          = COALESCE($9, zip_code),
			formatted_address = COALESCE($10, formatted_address),
			lat               = COALESCE($11, lat),
			lng               = COALESCE($12, lng),
			geohash           = COALESCE($13, geohash),
			amenities         = COALESCE($14, amenities),
			banner_file_key   = COALESCE($15, banner_file_key),
			updated_at        = now()
		WHERE id = $1
		RETURNING ` + hotelCols

	var address, city, state, country, zip *string
	if l := patch.Location; l != nil {
		address, city, state, country, zip = &l.Address, &l.City, &l.State, &l.Country, &l.ZipCode
	}
	var lat, lng *float64
	if g := patch.Geo; g != nil {
		lat, lng = &g.Lat, &g.Lng
	}
	var amenities []string
	if patch.Amenities != nil {
		amenities = *patch.Amenities
		if amenities == nil {
			amenities = []string{}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	h, err := scanHotel(r.pool.QueryRow(ctx, q, id,
		patch.Name, patch.Slug, patch.Description,
		address, city, state, country, zip,
		patch.FormattedAddress, lat, lng, patch.Geohash,
		amenities, patch.BannerFileKey,
	))
	if err != nil {
		return nil, conflictFor(err)
	}
	if h == nil {
		return nil, nil
	}
	if h.Photos, err = r.ListPhotos(ctx, h.ID); err != nil {
		return nil, err
	}
	return h, nil
}

// ReplacePhotos removes the deleted photos and appends the added ones after
// the existing ones, in one transaction. It returns the resulting gallery.
func (r *hotelRepository) ReplacePhotos(ctx context.Context, hotelID string, deleted []string, added []domain.Photo) ([]domain.Photo, error) {
	const del = `DELETE FROM hotel_photos WHERE hotel_id = $1 AND id = ANY($2)`
	const next = `SELECT COALESCE(MAX(position), 0) FROM hotel_photos WHERE hotel_id = $1`
	const ins = `INSERT INTO hotel_photos (id, hotel_id, file_key, alt, position) VALUES ($1, $2, $3, $4, $5)`
	const touch = `UPDATE hotels SET updated_at = now() WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if len(deleted) > 0 {
		if _, err := tx.Exec(ctx, del, hotelID, deleted); err != nil {
			return nil, fmt.Errorf("delete photos: %w", err)
		}
	}

	var position int
	if err := tx.QueryRow(ctx, next, hotelID).Scan(&position); err != nil {
		return nil, fmt.Errorf("photo position: %w", err)
	}
	for _, p := range added {
		position++
		if _, err := tx.Exec(ctx, ins, p.ID, hotelID, p.FileKey, p.Alt, position); err != nil {
			return nil, fmt.Errorf("insert photo: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, touch, hotelID); err != nil {
		return nil, fmt.Errorf("touch hotel: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit photos: %w", err)
	}
	return r.ListPhotos(ctx, hotelID)
}

func (r *hotelRepository) ListPhotos(ctx context.Context, hotelID string) ([]domain.Photo, error) {
	const q = `SELECT id, file_key, alt FROM hotel_photos WHERE hotel_id = $1 ORDER BY position, created_at`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []domain.Photo{}
	for rows.Next() {
		var p domain.Photo
		if err := rows.Scan(&p.ID, &p.FileKey, &p.Alt); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// ListByGeohashPrefixes returns hotels whose geohash starts with any prefix.
func (r *hotelRepository) ListByGeohashPrefixes(ctx context.Context, prefixes []string, limit int) ([]domain.Hotel, error) {
	const q = `SELECT ` + hotelCols + ` FROM hotels WHERE geohash LIKE ANY($1) ORDER BY name LIMIT $2`
	if len(prefixes) == 0 {
		return []domain.Hotel{}, nil
	}
	patterns := make([]string, len(prefixes))
	for i, p := range prefixes {
		patterns[i] = p + "%"
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, patterns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hotels := []domain.Hotel{}
	for rows.Next() {
		h, err := scanHotel(rows)
		if err != nil {
			return nil, err
		}
		h.Photos = []domain.Photo{}
		hotels = append(hotels, *h)
	}
	return hotels, rows.Err()
}
