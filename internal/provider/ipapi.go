package provider

import (
	"context"

	"github.com/evyataryagoni/ipglobe/internal/models"
)

const ipapiFields = "status,message,country,countryCode,region,regionName,city,lat,lon,timezone,isp,org,as,mobile,query"

type ipapiResponse struct {
	Query       string   `json:"query"`
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	Country     string   `json:"country"`
	CountryCode string   `json:"countryCode"`
	RegionName  string   `json:"regionName"`
	City        string   `json:"city"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	Timezone    string   `json:"timezone"`
	ISP         string   `json:"isp"`
	Org         string   `json:"org"`
	AS          string   `json:"as"`
	Mobile      bool     `json:"mobile"`
}

// ipapiProvider is ip-api.com, the free tier only speaks plain HTTP
type ipapiProvider struct {
	baseURL string
	fetcher fetcher
}

// NewIPAPI creates the ip-api.com adapter
func NewIPAPI(cfg Config) Provider {
	return ipapiProvider{
		baseURL: cfg.baseURL(NameIPAPI, "http://ip-api.com"),
		fetcher: fetcher{client: cfg.httpClient(), userAgent: cfg.UserAgent},
	}
}

func (p ipapiProvider) Name() string {
	return NameIPAPI
}

func (p ipapiProvider) Resolve(ctx context.Context, ip string) (models.LocationRecord, error) {
	const display = "ip-api.com"

	resp := ipapiResponse{}
	url := p.baseURL + "/json/" + ip + "?fields=" + ipapiFields
	if err := p.fetcher.getJSON(ctx, url, nil, &resp); err != nil {
		return models.LocationRecord{}, transportFailure(NameIPAPI, display, err)
	}

	if resp.Status != "success" {
		return models.LocationRecord{}, fail(NameIPAPI, display, resp.Message, nil)
	}

	lat, lng, ok := coordinates(resp.Lat, resp.Lon)
	if !ok {
		return models.LocationRecord{}, fail(NameIPAPI, display, "", errMissingCoordinates)
	}

	return models.LocationRecord{
		IP:          firstNonEmpty(resp.Query, ip),
		Country:     resp.Country,
		CountryCode: resp.CountryCode,
		Region:      resp.RegionName,
		City:        resp.City,
		Lat:         lat,
		Lng:         lng,
		Timezone:    resp.Timezone,
		ISP:         resp.ISP,
		Org:         resp.Org,
		AS:          resp.AS,
		Mobile:      resp.Mobile,
	}, nil
}
