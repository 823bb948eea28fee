package service

import (
	"net/url"
	"sort"
	"strings"

	"github.com/evyataryagoni/ipglobe/internal/models"
)

// Connection type values for Filter.Mobile
const (
	ConnectionMobile    = "mobile"
	ConnectionBroadband = "broadband"
)

// Filter narrows a batch's outcomes for display
// Empty fields match everything. Failed outcomes always pass so errors stay visible.
type Filter struct {
	Query    string // case-insensitive substring over ip, location and network fields
	Country  string
	City     string
	Region   string
	ISP      string
	Mobile   string // "mobile" or "broadband"
	Timezone string
}

// FilterFromQuery reads a Filter from URL query parameters
func FilterFromQuery(q url.Values) Filter {
	return Filter{
		Query:    strings.TrimSpace(q.Get("q")),
		Country:  q.Get("country"),
		City:     q.Get("city"),
		Region:   q.Get("region"),
		ISP:      q.Get("isp"),
		Mobile:   q.Get("mobile"),
		Timezone: q.Get("timezone"),
	}
}

// IsZero reports whether the filter matches everything
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Match reports whether o passes the filter
func (f Filter) Match(o models.Outcome) bool {
	if !o.Succeeded() {
		return true
	}
	loc := o.Location

	if f.Query != "" {
		haystack := strings.ToLower(strings.Join([]string{
			o.IP, loc.Country, loc.City, loc.Region, loc.ISP, loc.Org, loc.AS, loc.Timezone,
		}, " "))
		if !strings.Contains(haystack, strings.ToLower(f.Query)) {
			return false
		}
	}

	if f.Country != "" && loc.Country != f.Country {
		return false
	}
	if f.City != "" && loc.City != f.City {
		return false
	}
	if f.Region != "" && loc.Region != f.Region {
		return false
	}
	if f.ISP != "" && loc.ISP != f.ISP {
		return false
	}
	if f.Mobile != "" && connectionType(*loc) != f.Mobile {
		return false
	}
	if f.Timezone != "" && loc.Timezone != f.Timezone {
		return false
	}

	return true
}

// Apply returns the outcomes that pass the filter, keeping order
func (f Filter) Apply(outcomes []models.Outcome) []models.Outcome {
	if f.IsZero() {
		return outcomes
	}

	out := make([]models.Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if f.Match(o) {
			out = append(out, o)
		}
	}
	return out
}

// BuildFilterOptions collects the sorted distinct non-empty values present in successful outcomes
func BuildFilterOptions(outcomes []models.Outcome) models.FilterOptions {
	countries := map[string]struct{}{}
	cities := map[string]struct{}{}
	regions := map[string]struct{}{}
	isps := map[string]struct{}{}
	timezones := map[string]struct{}{}

	for _, o := range outcomes {
		if !o.Succeeded() {
			continue
		}
		addValue(countries, o.Location.Country)
		addValue(cities, o.Location.City)
		addValue(regions, o.Location.Region)
		addValue(isps, o.Location.ISP)
		addValue(timezones, o.Location.Timezone)
	}

	return models.FilterOptions{
		Countries: sortedKeys(countries),
		Cities:    sortedKeys(cities),
		Regions:   sortedKeys(regions),
		ISPs:      sortedKeys(isps),
		Timezones: sortedKeys(timezones),
	}
}

func connectionType(loc models.LocationRecord) string {
	if loc.Mobile {
		return ConnectionMobile
	}
	return ConnectionBroadband
}

func addValue(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
