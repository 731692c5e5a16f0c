// Package geoip resolves client IP addresses to ISO country codes using an
// MMDB country or city database (MaxMind GeoLite2, DB-IP Lite, IP2Location LITE).
//
// Usage:
//
//	reader, err := geoip.NewReader("/path/to/GeoLite2-Country.mmdb")
//	if err != nil {
//	    return err
//	}
//	defer reader.Close()
//
//	code := reader.CountryCode("203.0.113.7")
package geoip

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// GeoData contains the country resolved for an IP address
type GeoData struct {
	CountryCode string `json:"country_code,omitempty"`
	CountryName string `json:"country_name,omitempty"`
}

// Reader provides IP geolocation lookups using MMDB databases
type Reader struct {
	db       *geoip2.Reader
	provider string
	dbPath   string
}

// NewReader opens an MMDB file.
//
// Returns nil, nil if the path is empty or the file does not exist, so callers
// can treat GeoIP as optional.
func NewReader(mmdbPath string) (*Reader, error) {
	if mmdbPath == "" {
		return nil, nil
	}
	if _, err := os.Stat(mmdbPath); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	db, err := geoip2.Open(mmdbPath)
	if err != nil {
		return nil, err
	}

	return &Reader{
		db:       db,
		provider: detectProvider(mmdbPath),
		dbPath:   mmdbPath,
	}, nil
}

func detectProvider(mmdbPath string) string {
	filename := strings.ToLower(filepath.Base(mmdbPath))

	switch {
	case strings.Contains(filename, "geolite2") || strings.Contains(filename, "maxmind"):
		return "maxmind"
	case strings.Contains(filename, "dbip") || strings.Contains(filename, "db-ip"):
		return "dbip"
	case strings.Contains(filename, "ip2location"):
		return "ip2location"
	default:
		return "unknown"
	}
}

// ParseIP accepts "ip" or "ip:port" and returns nil for unparsable or
// private/local addresses.
func ParseIP(ipStr string) net.IP {
	host, _, err := net.SplitHostPort(ipStr)
	if err != nil {
		host = ipStr
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	if ip == nil || isPrivateIP(ip) {
		return nil
	}
	return ip
}

// Lookup returns the country for ipStr, or nil when no database is loaded,
// the IP is invalid/private, or the database has no record.
func (r *Reader) Lookup(ipStr string) *GeoData {
	if r == nil || r.db == nil {
		return nil
	}

	ip := ParseIP(ipStr)
	if ip == nil {
		return nil
	}

	record, err := r.db.Country(ip)
	if err != nil || record.Country.IsoCode == "" {
		return nil
	}

	return &GeoData{
		CountryCode: record.Country.IsoCode,
		CountryName: record.Country.Names["en"],
	}
}

// CountryCode returns the ISO code for ipStr or "".
func (r *Reader) CountryCode(ipStr string) string {
	if gd := r.Lookup(ipStr); gd != nil {
		return gd.CountryCode
	}
	return ""
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified()
}

// Provider returns the detected provider name
func (r *Reader) Provider() string {
	if r == nil {
		return "none"
	}
	return r.provider
}

// DatabasePath returns the path to the loaded database file
func (r *Reader) DatabasePath() string {
	if r == nil {
		return ""
	}
	return r.dbPath
}

// Close closes the underlying database
func (r *Reader) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// IsLoaded returns true if a database is successfully loaded
func (r *Reader) IsLoaded() bool {
	return r != nil && r.db != nil
}
