package provider

import (
	"context"

	"github.com/evyataryagoni/ipglobe/internal/models"
)

type ipwhoResponse struct {
	IP          string   `json:"ip"`
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	Country     string   `json:"country"`
	CountryCode string   `json:"country_code"`
	Region      string   `json:"region"`
	City        string   `json:"city"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Timezone    struct {
		ID string `json:"id"`
	} `json:"timezone"`
	Connection struct {
		ASN asn    `json:"asn"`
		Org string `json:"org"`
		ISP string `json:"isp"`
	} `json:"connection"`
}

type ipwhoProvider struct {
	baseURL string
	fetcher fetcher
}

// NewIPWho creates the ipwho.is adapter
func NewIPWho(cfg Config) Provider {
	return ipwhoProvider{
		baseURL: cfg.baseURL(NameIPWho, "https://ipwho.is"),
		fetcher: fetcher{client: cfg.httpClient(), userAgent: cfg.UserAgent},
	}
}

func (p ipwhoProvider) Name() string {
	return NameIPWho
}

func (p ipwhoProvider) Resolve(ctx context.Context, ip string) (models.LocationRecord, error) {
	const display = "ipwho.is"

	resp := ipwhoResponse{}
	if err := p.fetcher.getJSON(ctx, p.baseURL+"/"+ip, nil, &resp); err != nil {
		return models.LocationRecord{}, transportFailure(NameIPWho, display, err)
	}

	if !resp.Success {
		return models.LocationRecord{}, fail(NameIPWho, display, resp.Message, nil)
	}

	lat, lng, ok := coordinates(resp.Latitude, resp.Longitude)
	if !ok {
		return models.LocationRecord{}, fail(NameIPWho, display, "", errMissingCoordinates)
	}

	return models.LocationRecord{
		IP:          firstNonEmpty(resp.IP, ip),
		Country:     resp.Country,
		CountryCode: resp.CountryCode,
		Region:      resp.Region,
		City:        resp.City,
		Lat:         lat,
		Lng:         lng,
		Timezone:    resp.Timezone.ID,
		ISP:         resp.Connection.ISP,
		Org:         resp.Connection.Org,
		AS:          resp.Connection.ASN.String(),
	}, nil
}
