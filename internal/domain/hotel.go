package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/reservou/internal/slug"
)

type Plan string

const PlanBasic Plan = "BASIC"

// PlanDuration is how long a plan assigned at setup lasts.
const PlanDuration = 365 * 24 * time.Hour

type Location struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	ZipCode string `json:"zip_code,omitempty"`
}

// AddressString joins the non-empty parts for geocoding.
func (l Location) AddressString() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{l.Address, l.City, l.State, l.ZipCode, l.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Contact struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Website string `json:"website,omitempty"`
}

type Photo struct {
	ID      string `json:"id"`
	FileKey string `json:"file_key"`
	Alt     string `json:"alt"`
	URL     string `json:"url,omitempty"`
}

type Hotel struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	Location         Location  `json:"location"`
	FormattedAddress string    `json:"formatted_address"`
	Geo              GeoPoint  `json:"geolocation"`
	Geohash          string    `json:"-"`
	Contact          Contact   `json:"contact"`
	BannerFileKey    string    `json:"banner_file_key"`
	BannerURL        string    `json:"banner_url,omitempty"`
	Photos           []Photo   `json:"photos"`
	Amenities        []string  `json:"amenities"`
	Plan             Plan      `json:"plan"`
	PlanExpiresAt    time.Time `json:"plan_expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PublicHotel is what the landing page shows to guests.
type PublicHotel struct {
	Name             string   `json:"name"`
	Slug             string   `json:"slug"`
	Description      string   `json:"description"`
	Category         string   `json:"category"`
	Location         Location `json:"location"`
	FormattedAddress string   `json:"formatted_address"`
	Geo              GeoPoint `json:"geolocation"`
	Contact          Contact  `json:"contact"`
	BannerURL        string   `json:"banner_url,omitempty"`
	Photos           []Photo  `json:"photos"`
	Amenities        []string `json:"amenities"`
}

func (h *Hotel) ToPublic() PublicHotel {
	return PublicHotel{
		Name:             h.Name,
		Slug:             h.Slug,
		Description:      h.Description,
		Category:         h.Category,
		Location:         h.Location,
		FormattedAddress: h.FormattedAddress,
		Geo:              h.Geo,
		Contact:          h.Contact,
		BannerURL:        h.BannerURL,
		Photos:           h.Photos,
		Amenities:        h.Amenities,
	}
}

// FindPhoto returns the photo with id, nil when the hotel has none.
func (h *Hotel) FindPhoto(id string) *Photo {
	for i := range h.Photos {
		if h.Photos[i].ID == id {
			return &h.Photos[i]
		}
	}
	return nil
}

var reservedSlugs = map[string]bool{}

func init() {
	for _, s := range []string{
		"admin", "api", "auth", "hotel", "hotels", "user", "users",
		"reserve", "reservation", "reservations", "reservar", "reservou",
		"platform", "plataforma", "dashboard", "setup", "sign-in", "sign-up",
		"sign-out", "access", "room", "rooms", "quarto", "quartos",
		"reserva", "reservas", "reservado", "reservados",
		"ticket", "tickets", "bilhete", "bilhetes",
		"payment", "payments", "pagamento", "pagamentos",
		"checkout", "checkouts", "check-out", "check-outs", "checkin", "checkins",
		"healthz", "metrics",
	} {
		reservedSlugs[s] = true
	}
}

func IsReservedSlug(s string) bool {
	return reservedSlugs[s]
}

type HotelSetupRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
	ZipCode     string `json:"zip_code"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
}

func (r *HotelSetupRequest) Normalize() {
	for _, f := range []*string{&r.Name, &r.Category, &r.Description, &r.Address, &r.City, &r.State, &r.Country, &r.Phone, &r.Website} {
		*f = strings.TrimSpace(*f)
	}
	r.Email = normalizeEmail(r.Email)
}

func (r *HotelSetupRequest) Validate() error {
	if err := lengthBetween("name", r.Name, 2, 100); err != nil {
		return err
	}
	if r.Category == "" {
		return fmt.Errorf("category is required")
	}
	if err := lengthBetween("description", r.Description, 10, 500); err != nil {
		return err
	}
	if err := r.Location().validate(); err != nil {
		return err
	}
	zip, err := NormalizeZipCode(r.ZipCode)
	if err != nil {
		return err
	}
	r.ZipCode = zip
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if err := validatePhone(r.Phone); err != nil {
		return err
	}
	return validateWebsite(r.Website)
}

func (r *HotelSetupRequest) Location() Location {
	return Location{Address: r.Address, City: r.City, State: r.State, Country: r.Country, ZipCode: r.ZipCode}
}

func (r *HotelSetupRequest) Contact() Contact {
	return Contact{Email: r.Email, Phone: r.Phone, Website: r.Website}
}

func (l Location) validate() error {
	if err := lengthBetween("address", l.Address, 5, 200); err != nil {
		return err
	}
	if err := lengthBetween("city", l.City, 2, 100); err != nil {
		return err
	}
	if err := lengthBetween("state", l.State, 2, 100); err != nil {
		return err
	}
	return lengthBetween("country", l.Country, 2, 100)
}

type LocationRequest struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	ZipCode string `json:"zip_code"`
}

func (r *LocationRequest) Normalize() {
	for _, f := range []*string{&r.Address, &r.City, &r.State, &r.Country} {
		*f = strings.TrimSpace(*f)
	}
}

func (r *LocationRequest) Validate() error {
	if err := r.Location().validate(); err != nil {
		return err
	}
	zip, err := NormalizeZipCode(r.ZipCode)
	if err != nil {
		return err
	}
	r.ZipCode = zip
	return nil
}

func (r *LocationRequest) Location() Location {
	return Location{Address: r.Address, City: r.City, State: r.State, Country: r.Country, ZipCode: r.ZipCode}
}

type GeneralInfoRequest struct {
	Name        *string `json:"name,omitempty"`
	Slug        *string `json:"slug,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (r *GeneralInfoRequest) Normalize() {
	trimPtr(r.Name)
	trimPtr(r.Description)
	if r.Slug != nil {
		s := strings.TrimPrefix(strings.TrimSpace(*r.Slug), "@")
		r.Slug = &s
	}
}

func (r *GeneralInfoRequest) Validate() error {
	if err := optionalLengthBetween("name", r.Name, 2, 100); err != nil {
		return err
	}
	if err := optionalLengthBetween("description", r.Description, 10, 1000); err != nil {
		return err
	}
	if r.Slug != nil {
		return validateCustomSlug(*r.Slug)
	}
	return nil
}

func (r *GeneralInfoRequest) Empty() bool {
	return r.Name == nil && r.Slug == nil && r.Description == nil
}

func validateCustomSlug(s string) error {
	if err := lengthBetween("slug", s, 2, 50); err != nil {
		return err
	}
	if !slugRegex.MatchString(s) || !slug.Valid(s) {
		return fmt.Errorf("slug must contain only lowercase letters, numbers and single hyphens")
	}
	if IsReservedSlug(s) {
		return fmt.Errorf("this slug is reserved and cannot be used")
	}
	return nil
}

type AmenitiesRequest struct {
	Amenities []string `json:"amenities"`
}

func (r *AmenitiesRequest) Normalize() {
	for i := range r.Amenities {
		r.Amenities[i] = strings.TrimSpace(r.Amenities[i])
	}
}

func (r *AmenitiesRequest) Validate() error {
	return validateAmenities(r.Amenities)
}

func validateAmenities(amenities []string) error {
	seen := make(map[string]bool, len(amenities))
	for _, a := range amenities {
		if a == "" {
			return fmt.Errorf("amenity cannot be empty")
		}
		key := strings.ToLower(a)
		if seen[key] {
			return fmt.Errorf("duplicate amenity: %s", a)
		}
		seen[key] = true
	}
	return nil
}

// LandingPageRequest is a partial update; nil fields keep their value.
type LandingPageRequest struct {
	Name        *string   `json:"name,omitempty"`
	Slug        *string   `json:"slug,omitempty"`
	Description *string   `json:"description,omitempty"`
	Address     *string   `json:"address,omitempty"`
	City        *string   `json:"city,omitempty"`
	State       *string   `json:"state,omitempty"`
	Country     *string   `json:"country,omitempty"`
	ZipCode     *string   `json:"zip_code,omitempty"`
	Amenities   *[]string `json:"amenities,omitempty"`
}

func (r *LandingPageRequest) GeneralInfo() *GeneralInfoRequest {
	return &GeneralInfoRequest{Name: r.Name, Slug: r.Slug, Description: r.Description}
}

func (r *LandingPageRequest) Normalize() {
	if r.Slug != nil {
		s := strings.TrimPrefix(strings.TrimSpace(*r.Slug), "@")
		r.Slug = &s
	}
	for _, f := range []*string{r.Name, r.Description, r.Address, r.City, r.State, r.Country, r.ZipCode} {
		trimPtr(f)
	}
	if r.Amenities != nil {
		(&AmenitiesRequest{Amenities: *r.Amenities}).Normalize()
	}
}

func (r *LandingPageRequest) Validate() error {
	if err := r.GeneralInfo().Validate(); err != nil {
		return err
	}
	for _, f := range []struct {
		name     string
		value    *string
		min, max int
	}{
		{"address", r.Address, 5, 200},
		{"city", r.City, 2, 100},
		{"state", r.State, 2, 100},
		{"country", r.Country, 2, 100},
		{"zip code", r.ZipCode, 5, 20},
	} {
		if err := optionalLengthBetween(f.name, f.value, f.min, f.max); err != nil {
			return err
		}
	}
	if r.Amenities != nil {
		return validateAmenities(*r.Amenities)
	}
	return nil
}
