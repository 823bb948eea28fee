package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/evyataryagoni/ipglobe/internal/models"
)

type ipinfoResponse struct {
	IP       string      `json:"ip"`
	Bogon    bool        `json:"bogon"`
	Error    ipinfoError `json:"error"`
	City     string      `json:"city"`
	Region   string      `json:"region"`
	Country  string      `json:"country"`
	Loc      string      `json:"loc"`
	Org      string      `json:"org"`
	Timezone string      `json:"timezone"`
}

// ipinfoError is either a plain string or {"title": ..., "message": ...}
type ipinfoError struct {
	present bool
	message string
}

func (e *ipinfoError) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	e.present = true

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.message = s
		return nil
	}

	var obj struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	e.message = firstNonEmpty(obj.Message, obj.Title)
	return nil
}

type ipinfoProvider struct {
	baseURL   string
	authToken string
	fetcher   fetcher
}

// NewIPInfo creates the ipinfo.io adapter, the token is optional
func NewIPInfo(cfg Config) Provider {
	return ipinfoProvider{
		baseURL:   cfg.baseURL(NameIPInfo, "https://ipinfo.io"),
		authToken: cfg.IPInfoToken,
		fetcher:   fetcher{client: cfg.httpClient(), userAgent: cfg.UserAgent},
	}
}

func (p ipinfoProvider) Name() string {
	return NameIPInfo
}

func (p ipinfoProvider) Resolve(ctx context.Context, ip string) (models.LocationRecord, error) {
	const display = "ipinfo.io"

	var header http.Header
	if p.authToken != "" {
		header = http.Header{"Authorization": []string{"Bearer " + p.authToken}}
	}

	resp := ipinfoResponse{}
	if err := p.fetcher.getJSON(ctx, p.baseURL+"/"+ip+"/json", header, &resp); err != nil {
		return models.LocationRecord{}, transportFailure(NameIPInfo, display, err)
	}

	if resp.Error.present {
		return models.LocationRecord{}, fail(NameIPInfo, display, resp.Error.message, nil)
	}

	lat, lng, ok := parseLoc(resp.Loc)
	if !ok {
		return models.LocationRecord{}, fail(NameIPInfo, display, "", errMissingCoordinates)
	}

	// The free plan returns the two-letter code in "country" and the ASN inside "org"
	return models.LocationRecord{
		IP:          firstNonEmpty(resp.IP, ip),
		Country:     resp.Country,
		CountryCode: resp.Country,
		Region:      resp.Region,
		City:        resp.City,
		Lat:         lat,
		Lng:         lng,
		Timezone:    resp.Timezone,
		ISP:         resp.Org,
		Org:         resp.Org,
		AS:          resp.Org,
	}, nil
}

// parseLoc splits "lat,lng"
func parseLoc(loc string) (float64, float64, bool) {
	parts := strings.Split(loc, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}

	return coordinates(&lat, &lng)
}
