// Package provider talks to the public IP geolocation APIs and chains them together.
package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evyataryagoni/ipglobe/internal/models"
)

// Provider names, also the accepted values of the provider mode
const (
	NameIPWho   = "ipwho"
	NameIPQuery = "ipquery"
	NameIPAPI   = "ipapi"
	NameIPAPICo = "ipapico"
	NameIPInfo  = "ipinfo"
)

// Provider resolves one IP address against one geolocation API
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ip string) (models.LocationRecord, error)
}

// ProviderError is a single provider's failure for one IP
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Config holds what every adapter needs to reach its API
type Config struct {
	Client      *http.Client
	Timeout     time.Duration // used when Client is nil
	UserAgent   string
	IPInfoToken string

	// BaseURLs overrides the API root per provider name, mostly for tests
	BaseURLs map[string]string
}

func (c Config) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (c Config) baseURL(name, fallback string) string {
	if u, ok := c.BaseURLs[name]; ok && u != "" {
		return strings.TrimRight(u, "/")
	}
	return fallback
}

// fetcher performs GET requests and decodes JSON bodies
type fetcher struct {
	client    *http.Client
	userAgent string
}

// getJSON decodes the response body into target whatever the status code is,
// since most of these APIs report failures as JSON with a non-2xx status.
// A body that is not JSON is an error, annotated with the status when it was not 2xx.
func (f fetcher) getJSON(ctx context.Context, url string, header http.Header, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("cannot build a request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("cannot send a request: %w", err)
	}

	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if err := json.NewDecoder(bufio.NewReader(resp.Body)).Decode(target); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		return fmt.Errorf("cannot parse a response: %w", err)
	}

	return nil
}

// fail builds a ProviderError, falling back to the generic message for empty reasons
func fail(name, display, message string, err error) *ProviderError {
	if message == "" {
		message = "Failed to fetch from " + display
	}
	return &ProviderError{Provider: name, Message: message, Err: err}
}

// transportFailure wraps an error from getJSON
func transportFailure(name, display string, err error) *ProviderError {
	return fail(name, display, "Failed to fetch from "+display+": "+err.Error(), err)
}

var errMissingCoordinates = errors.New("response has no usable coordinates")

// coordinates checks that both values are present and finite
func coordinates(lat, lng *float64) (float64, float64, bool) {
	if lat == nil || lng == nil {
		return 0, 0, false
	}
	if math.IsNaN(*lat) || math.IsInf(*lat, 0) || math.IsNaN(*lng) || math.IsInf(*lng, 0) {
		return 0, 0, false
	}
	return *lat, *lng, true
}

// asn accepts either a JSON number (15169) or a string ("AS15169") and always
// renders it with the AS prefix
type asn string

func (a *asn) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = asn(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("asn is neither a string nor a number: %s", data)
	}
	*a = asn(n.String())
	return nil
}

func (a asn) String() string {
	s := strings.TrimSpace(string(a))
	if s == "" || s == "0" {
		return ""
	}
	if strings.HasPrefix(strings.ToUpper(s), "AS") {
		return s
	}
	if _, err := strconv.ParseUint(s, 10, 64); err != nil {
		return s
	}
	return "AS" + s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
