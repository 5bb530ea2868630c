// Package geoip maps client addresses to ISO country codes for locale
// detection. The database is optional; a deployment without one simply
// loses the country hint.
package geoip

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Resolver answers country lookups from a local MaxMind database.
type Resolver struct {
	reader *geoip2.Reader
}

// Open loads the MaxMind country database at path. An empty path disables
// lookups; the caller gets a nil resolver and no error.
func Open(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

// CountryCode returns the ISO country code for ip, or "" when the database
// carries no record for it.
func (r *Resolver) CountryCode(ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup %s: %w", ip, err)
	}
	if record == nil {
		return "", nil
	}
	return record.Country.IsoCode, nil
}

// Close releases the underlying database reader. Safe on a nil resolver.
func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	return r.reader.Close()
}
