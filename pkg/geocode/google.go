package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results      []json.RawMessage `json:"results"`
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// GoogleProvider geocodes with the Google Geocoding API.
type GoogleProvider struct {
	key        string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGoogleProvider creates a Google provider. hc may be nil.
func NewGoogleProvider(key string, hc *http.Client, rps float64) *GoogleProvider {
	if rps <= 0 {
		rps = 10
	}
	return &GoogleProvider{
		key:        key,
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Open implements Provider.
func (p *GoogleProvider) Open(_ context.Context) (Session, error) {
	if p.key == "" {
		return nil, eris.Wrap(ErrNotConfigured, "google: api key not configured")
	}
	hc := p.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &googleSession{httpSession: httpSession{hc: hc}, p: p}, nil
}

type googleSession struct {
	httpSession
	p *GoogleProvider
}

func (s *googleSession) Geocode(ctx context.Context, query string) (*Result, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	params := url.Values{
		"address": {query},
		"key":     {s.p.key},
	}
	body, err := getJSON(ctx, s.hc, s.p.limiter, "google", query, googleGeocodeURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp googleGeocodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &CallError{Provider: "google", Query: query, Err: eris.Wrap(err, "parse response")}
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return &Result{Matched: false, Source: "google"}, nil
	case "REQUEST_DENIED":
		return nil, eris.Wrapf(ErrNotConfigured, "google: request denied: %s", resp.ErrorMessage)
	default:
		return nil, &CallError{Provider: "google", Query: query,
			Err: eris.Errorf("status %s: %s", resp.Status, resp.ErrorMessage)}
	}
	if len(resp.Results) == 0 {
		return &Result{Matched: false, Source: "google"}, nil
	}

	var hit googleResult
	if err := json.Unmarshal(resp.Results[0], &hit); err != nil {
		return nil, &CallError{Provider: "google", Query: query, Err: eris.Wrap(err, "parse result")}
	}
	if err := checkCoords(hit.Geometry.Location.Lat, hit.Geometry.Location.Lng); err != nil {
		return nil, &CallError{Provider: "google", Query: query, Err: err}
	}
	return &Result{
		Latitude:    hit.Geometry.Location.Lat,
		Longitude:   hit.Geometry.Location.Lng,
		DisplayName: hit.FormattedAddress,
		Source:      "google",
		Quality:     qualityFromKind(hit.Geometry.LocationType),
		Matched:     true,
		Raw:         resp.Results[0],
	}, nil
}
