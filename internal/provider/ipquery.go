package provider

import (
	"context"

	"github.com/evyataryagoni/ipglobe/internal/models"
)

type ipqueryResponse struct {
	IP  string `json:"ip"`
	ISP *struct {
		ASN asn    `json:"asn"`
		Org string `json:"org"`
		ISP string `json:"isp"`
	} `json:"isp"`
	Location *struct {
		Country     string   `json:"country"`
		CountryCode string   `json:"country_code"`
		City        string   `json:"city"`
		State       string   `json:"state"`
		Latitude    *float64 `json:"latitude"`
		Longitude   *float64 `json:"longitude"`
		Timezone    string   `json:"timezone"`
	} `json:"location"`
	Risk *struct {
		IsMobile bool `json:"is_mobile"`
	} `json:"risk"`
	Connection *struct {
		Mobile bool `json:"mobile"`
	} `json:"connection"`
}

type ipqueryProvider struct {
	baseURL string
	fetcher fetcher
}

// NewIPQuery creates the ipquery.io adapter
func NewIPQuery(cfg Config) Provider {
	return ipqueryProvider{
		baseURL: cfg.baseURL(NameIPQuery, "https://api.ipquery.io"),
		fetcher: fetcher{client: cfg.httpClient(), userAgent: cfg.UserAgent},
	}
}

func (p ipqueryProvider) Name() string {
	return NameIPQuery
}

func (p ipqueryProvider) Resolve(ctx context.Context, ip string) (models.LocationRecord, error) {
	const display = "ipquery.io"

	resp := ipqueryResponse{}
	if err := p.fetcher.getJSON(ctx, p.baseURL+"/"+ip, nil, &resp); err != nil {
		return models.LocationRecord{}, transportFailure(NameIPQuery, display, err)
	}

	// ipquery has no error field, a missing location block is the failure signal
	if resp.Location == nil {
		return models.LocationRecord{}, fail(NameIPQuery, display, "", nil)
	}

	lat, lng, ok := coordinates(resp.Location.Latitude, resp.Location.Longitude)
	if !ok {
		return models.LocationRecord{}, fail(NameIPQuery, display, "", errMissingCoordinates)
	}

	record := models.LocationRecord{
		IP:          firstNonEmpty(resp.IP, ip),
		Country:     resp.Location.Country,
		CountryCode: resp.Location.CountryCode,
		Region:      resp.Location.State,
		City:        resp.Location.City,
		Lat:         lat,
		Lng:         lng,
		Timezone:    resp.Location.Timezone,
	}
	if resp.ISP != nil {
		record.ISP = resp.ISP.ISP
		record.Org = resp.ISP.Org
		record.AS = resp.ISP.ASN.String()
	}
	if resp.Connection != nil {
		record.Mobile = resp.Connection.Mobile
	} else if resp.Risk != nil {
		record.Mobile = resp.Risk.IsMobile
	}

	return record, nil
}
