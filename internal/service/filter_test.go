package service

import (
	"reflect"
	"testing"

	"github.com/evyataryagoni/ipglobe/internal/models"
)

func success(ip string, loc models.LocationRecord) models.Outcome {
	loc.IP = ip
	return models.Outcome{IP: ip, Location: &loc, Source: models.SourceLive}
}

func sampleOutcomes() []models.Outcome {
	return []models.Outcome{
		success("8.8.8.8", models.LocationRecord{Country: "United States", City: "Mountain View", Region: "California",
			ISP: "Google LLC", Org: "Google", AS: "AS15169", Timezone: "America/Los_Angeles"}),
		{IP: "10.0.0.1", Error: "private range", Source: models.SourceLive},
		success("1.1.1.1", models.LocationRecord{Country: "Australia", City: "Sydney", Region: "New South Wales",
			ISP: "Cloudflare", AS: "AS13335", Timezone: "Australia/Sydney"}),
		success("5.6.7.8", models.LocationRecord{Country: "Germany", City: "Berlin", ISP: "Telekom",
			Timezone: "Europe/Berlin", Mobile: true}),
	}
}

func ips(outcomes []models.Outcome) []string {
	out := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, o.IP)
	}
	return out
}

func TestFilter_Apply(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"zero filter keeps all", Filter{}, []string{"8.8.8.8", "10.0.0.1", "1.1.1.1", "5.6.7.8"}},
		{"country", Filter{Country: "Australia"}, []string{"10.0.0.1", "1.1.1.1"}},
		{"search is case-insensitive", Filter{Query: "GOOGLE"}, []string{"8.8.8.8", "10.0.0.1"}},
		{"search covers AS", Filter{Query: "as13335"}, []string{"10.0.0.1", "1.1.1.1"}},
		{"search covers IP", Filter{Query: "5.6.7"}, []string{"10.0.0.1", "5.6.7.8"}},
		{"mobile", Filter{Mobile: ConnectionMobile}, []string{"10.0.0.1", "5.6.7.8"}},
		{"broadband", Filter{Mobile: ConnectionBroadband}, []string{"8.8.8.8", "10.0.0.1", "1.1.1.1"}},
		{"combined", Filter{Country: "United States", Timezone: "Europe/Berlin"}, []string{"10.0.0.1"}},
		{"isp and region", Filter{ISP: "Google LLC", Region: "California"}, []string{"8.8.8.8", "10.0.0.1"}},
		{"city", Filter{City: "Berlin"}, []string{"10.0.0.1", "5.6.7.8"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ips(tt.filter.Apply(sampleOutcomes()))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestBuildFilterOptions(t *testing.T) {
	opts := BuildFilterOptions(sampleOutcomes())

	if !reflect.DeepEqual(opts.Countries, []string{"Australia", "Germany", "United States"}) {
		t.Errorf("unexpected countries: %v", opts.Countries)
	}
	if !reflect.DeepEqual(opts.Regions, []string{"California", "New South Wales"}) {
		t.Errorf("expected empty regions to be skipped, got %v", opts.Regions)
	}
	if len(opts.Timezones) != 3 || len(opts.ISPs) != 3 || len(opts.Cities) != 3 {
		t.Errorf("unexpected options: %+v", opts)
	}
}

func TestFilterFromQuery(t *testing.T) {
	f := FilterFromQuery(map[string][]string{
		"q":       {"  google "},
		"country": {"United States"},
		"mobile":  {"broadband"},
	})

	want := Filter{Query: "google", Country: "United States", Mobile: "broadband"}
	if f != want {
		t.Errorf("expected %+v, got %+v", want, f)
	}
}
