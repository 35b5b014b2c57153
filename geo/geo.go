// Package geo turns client-captured positions into issue locations.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"civichero-be/apperr"
	"civichero-be/models"
)

var (
	ErrPermissionDenied = apperr.Geolocation("location permission was denied")
	ErrUnsupported      = apperr.Geolocation("geolocation is not supported by this device")
	ErrUnavailable      = apperr.Geolocation("failed to get your location, please try again")
)

// New validates a latitude/longitude pair.
func New(lat, lng float64) (models.Location, error) {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return models.Location{}, apperr.Validation("coordinates must be numbers")
	}
	if lat < -90 || lat > 90 {
		return models.Location{}, apperr.Validation(fmt.Sprintf("latitude %v out of range", lat))
	}
	if lng < -180 || lng > 180 {
		return models.Location{}, apperr.Validation(fmt.Sprintf("longitude %v out of range", lng))
	}
	return models.Location{Latitude: lat, Longitude: lng}, nil
}

// Parse reads the "lat, lng" form the capture button produces.
func Parse(s string) (models.Location, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return models.Location{}, apperr.Validation("location must be in the form \"latitude, longitude\"")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Location{}, apperr.Validation("invalid latitude")
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.Location{}, apperr.Validation("invalid longitude")
	}
	return New(lat, lng)
}

// FromClientError maps the failure a client reports from its position
// lookup. An empty code means no failure.
func FromClientError(code string) error {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "":
		return nil
	case "denied", "permission_denied":
		return ErrPermissionDenied
	case "unsupported":
		return ErrUnsupported
	default:
		return ErrUnavailable
	}
}
