package provider

import (
	"context"

	"github.com/evyataryagoni/ipglobe/internal/models"
)

type ipapicoResponse struct {
	IP          string   `json:"ip"`
	Error       bool     `json:"error"`
	Reason      string   `json:"reason"`
	CountryName string   `json:"country_name"`
	CountryCode string   `json:"country_code"`
	Region      string   `json:"region"`
	City        string   `json:"city"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Timezone    string   `json:"timezone"`
	Org         string   `json:"org"`
	ASN         asn      `json:"asn"`
}

type ipapicoProvider struct {
	baseURL string
	fetcher fetcher
}

// NewIPAPICo creates the ipapi.co adapter
func NewIPAPICo(cfg Config) Provider {
	return ipapicoProvider{
		baseURL: cfg.baseURL(NameIPAPICo, "https://ipapi.co"),
		fetcher: fetcher{client: cfg.httpClient(), userAgent: cfg.UserAgent},
	}
}

func (p ipapicoProvider) Name() string {
	return NameIPAPICo
}

func (p ipapicoProvider) Resolve(ctx context.Context, ip string) (models.LocationRecord, error) {
	const display = "ipapi.co"

	resp := ipapicoResponse{}
	if err := p.fetcher.getJSON(ctx, p.baseURL+"/"+ip+"/json/", nil, &resp); err != nil {
		return models.LocationRecord{}, transportFailure(NameIPAPICo, display, err)
	}

	if resp.Error {
		return models.LocationRecord{}, fail(NameIPAPICo, display, resp.Reason, nil)
	}

	lat, lng, ok := coordinates(resp.Latitude, resp.Longitude)
	if !ok {
		return models.LocationRecord{}, fail(NameIPAPICo, display, "", errMissingCoordinates)
	}

	// ipapi.co has no separate ISP field, org carries the operator name
	return models.LocationRecord{
		IP:          firstNonEmpty(resp.IP, ip),
		Country:     resp.CountryName,
		CountryCode: resp.CountryCode,
		Region:      resp.Region,
		City:        resp.City,
		Lat:         lat,
		Lng:         lng,
		Timezone:    resp.Timezone,
		ISP:         resp.Org,
		Org:         resp.Org,
		AS:          resp.ASN.String(),
	}, nil
}
