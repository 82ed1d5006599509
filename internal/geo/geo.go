// Package geo provides location types and optional GeoIP enrichment for
// login telemetry.
package geo

import (
	"fmt"
	"math"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

// Location is a coarse geographic position attached to devices, login
// attempts and security events. Country and City are display strings;
// coordinates are optional (zero means unknown).
type Location struct {
	Country   string  `json:"country"`
	City      string  `json:"city,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// IsZero reports whether the location carries no information
func (l Location) IsZero() bool {
	return l.Country == "" && l.City == "" && l.Latitude == 0 && l.Longitude == 0
}

// HasCoordinates reports whether the location carries usable coordinates
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// String renders the location as "City, Country" for event details
func (l Location) String() string {
	switch {
	case l.City != "" && l.Country != "":
		return l.City + ", " + l.Country
	case l.Country != "":
		return l.Country
	default:
		return ""
	}
}

// SameCountry compares countries case-insensitively
func (l Location) SameCountry(other Location) bool {
	return strings.EqualFold(l.Country, other.Country)
}

// SameCity compares cities case-insensitively
func (l Location) SameCity(other Location) bool {
	return strings.EqualFold(l.City, other.City)
}

// HaversineKm calculates the great-circle distance between two points in km
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371 // km

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// Resolver maps an IP address to a Location
type Resolver interface {
	Resolve(ip string) (Location, error)
	Close() error
}

// MaxMindResolver resolves locations from a local MaxMind City database
type MaxMindResolver struct {
	reader *geoip2.Reader
	logger *zap.Logger
}

// NewMaxMindResolver opens the .mmdb city database at the given path
func NewMaxMindResolver(cityDBPath string, logger *zap.Logger) (*MaxMindResolver, error) {
	reader, err := geoip2.Open(cityDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP city database: %w", err)
	}
	return &MaxMindResolver{
		reader: reader,
		logger: logger.With(zap.String("component", "geoip")),
	}, nil
}

// Resolve looks up the location for an IP address. Private and loopback
// addresses resolve to an empty location without error.
func (r *MaxMindResolver) Resolve(ip string) (Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}, fmt.Errorf("invalid IP address: %s", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() {
		return Location{}, nil
	}

	record, err := r.reader.City(parsed)
	if err != nil {
		return Location{}, fmt.Errorf("GeoIP lookup failed: %w", err)
	}

	return Location{
		Country:   record.Country.Names["en"],
		City:      record.City.Names["en"],
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
	}, nil
}

// Close releases the database handle
func (r *MaxMindResolver) Close() error {
	return r.reader.Close()
}
