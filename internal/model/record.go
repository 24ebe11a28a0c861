package model

import (
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Record is a point of interest held by the primary store.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Category  Category  `json:"category"`
	Phone     *string   `json:"phone,omitempty"`
	Hours     *string   `json:"hours,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordInput carries the mutable fields for create, update and seed.
type RecordInput struct {
	Name      string  `json:"name" yaml:"name"`
	Address   string  `json:"address" yaml:"address"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Category  string  `json:"category" yaml:"category"`
	Phone     *string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Hours     *string `json:"hours,omitempty" yaml:"hours,omitempty"`
}

// Validate checks the fields a persisted record must satisfy.
func (in RecordInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return eris.Wrap(ErrInvalidParameter, "name is required")
	}
	if strings.TrimSpace(in.Address) == "" {
		return eris.Wrap(ErrInvalidParameter, "address is required")
	}
	if err := ValidateCoordinates(in.Latitude, in.Longitude); err != nil {
		return err
	}
	_, err := ParseCategory(in.Category)
	return err
}

// Apply copies the mutable fields of in onto r and reports whether the
// coordinates changed.
func (r *Record) Apply(in RecordInput) (coordinatesChanged bool) {
	coordinatesChanged = r.Latitude != in.Latitude || r.Longitude != in.Longitude
	r.Name = in.Name
	r.Address = in.Address
	r.Latitude = in.Latitude
	r.Longitude = in.Longitude
	r.Category = Category(in.Category)
	r.Phone = in.Phone
	r.Hours = in.Hours
	return coordinatesChanged
}

// ValidateCoordinates checks latitude ∈ [-90,90] and longitude ∈ [-180,180].
// NaN fails every comparison, so it is rejected explicitly.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return eris.Wrapf(ErrInvalidParameter, "latitude %v out of range [-90, 90]", lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return eris.Wrapf(ErrInvalidParameter, "longitude %v out of range [-180, 180]", lon)
	}
	return nil
}
