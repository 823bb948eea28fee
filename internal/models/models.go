package models

import (
	"encoding/json"
	"math"
	"time"
)

// LocationRecord is the normalized geolocation data for one IP address
// Every provider adapter translates its own response shape into this struct
// Only Lat and Lng are mandatory, the rest may be empty depending on provider coverage
type LocationRecord struct {
	IP          string  `json:"ip"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Timezone    string  `json:"timezone"`
	ISP         string  `json:"isp"`
	Org         string  `json:"org"`
	AS          string  `json:"as"`
	Mobile      bool    `json:"mobile"`
}

// Resolved reports whether the record carries usable coordinates
func (r LocationRecord) Resolved() bool {
	return isFinite(r.Lat) && isFinite(r.Lng)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// CacheEntry is what the durable store keeps for one IP
type CacheEntry struct {
	IP       string         `json:"ip"`
	Location LocationRecord `json:"location"`
	StoredAt time.Time      `json:"-"`
}

type cacheEntryJSON struct {
	IP        string         `json:"ip"`
	Location  LocationRecord `json:"location"`
	Timestamp int64          `json:"timestamp"` // unix milliseconds
}

// MarshalJSON encodes StoredAt as unix milliseconds under "timestamp"
func (e CacheEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(cacheEntryJSON{
		IP:        e.IP,
		Location:  e.Location,
		Timestamp: e.StoredAt.UnixMilli(),
	})
}

// UnmarshalJSON decodes the "timestamp" field back into StoredAt
func (e *CacheEntry) UnmarshalJSON(data []byte) error {
	var raw cacheEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.IP = raw.IP
	e.Location = raw.Location
	e.StoredAt = time.UnixMilli(raw.Timestamp)
	return nil
}

// Outcome sources
const (
	SourceCache = "cache"
	SourceLive  = "live"
)

// Outcome is the result recorded for one requested IP
// Exactly one of Location or Error is set
type Outcome struct {
	IP       string          `json:"ip"`
	Location *LocationRecord `json:"location,omitempty"`
	Error    string          `json:"error,omitempty"`
	Source   string          `json:"source,omitempty"`
}

// Succeeded reports whether the outcome carries a location
func (o Outcome) Succeeded() bool {
	return o.Location != nil && o.Error == ""
}

// Cluster is a group of nearby resolved locations
// Lat/Lng hold the running centroid, Seed holds the first member's attributes
type Cluster struct {
	Lat   float64        `json:"lat"`
	Lng   float64        `json:"lng"`
	Count int            `json:"count"`
	IPs   []string       `json:"ips"`
	Seed  LocationRecord `json:"seed"`
}

// ClusterUpdate is what gets handed to the visualization side on every refresh
type ClusterUpdate struct {
	BatchID       string    `json:"batch_id"`
	Clusters      []Cluster `json:"clusters"`
	Focus         bool      `json:"focus"`
	Final         bool      `json:"final"`
	ResolvedCount int       `json:"resolved_count"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error string `json:"error"`
}
