package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultNominatimURL is the public OpenStreetMap Nominatim endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// NominatimOption configures a NominatimProvider.
type NominatimOption func(*NominatimProvider)

// WithBaseURL points the provider at a self-hosted Nominatim instance.
func WithBaseURL(u string) NominatimOption {
	return func(p *NominatimProvider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithUserAgent sets the User-Agent header the usage policy requires.
func WithUserAgent(ua string) NominatimOption {
	return func(p *NominatimProvider) {
		p.userAgent = ua
	}
}

// WithEmail adds the email parameter used by Nominatim to contact heavy users.
func WithEmail(email string) NominatimOption {
	return func(p *NominatimProvider) {
		p.email = email
	}
}

// WithNominatimHTTPClient overrides the per-session HTTP client.
func WithNominatimHTTPClient(hc *http.Client) NominatimOption {
	return func(p *NominatimProvider) {
		p.httpClient = hc
	}
}

// WithNominatimRateLimit sets the maximum requests per second.
func WithNominatimRateLimit(rps float64) NominatimOption {
	return func(p *NominatimProvider) {
		if rps <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithNominatimTimeout sets the per-request timeout.
func WithNominatimTimeout(d time.Duration) NominatimOption {
	return func(p *NominatimProvider) {
		p.timeout = d
	}
}

// NominatimProvider geocodes with the Nominatim search API.
type NominatimProvider struct {
	baseURL    string
	userAgent  string
	email      string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
}

// NewNominatimProvider creates a provider for the public endpoint, limited
// to one request per second.
func NewNominatimProvider(opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		baseURL:   DefaultNominatimURL,
		userAgent: "geomap/1.0",
		limiter:   rate.NewLimiter(1, 1),
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Open implements Provider.
func (p *NominatimProvider) Open(_ context.Context) (Session, error) {
	if p.baseURL == "" {
		return nil, eris.Wrap(ErrNotConfigured, "nominatim: empty base url")
	}
	if p.userAgent == "" {
		return nil, eris.Wrap(ErrNotConfigured, "nominatim: a user agent is required")
	}
	if _, err := url.Parse(p.baseURL); err != nil {
		return nil, eris.Wrapf(ErrNotConfigured, "nominatim: invalid base url %q", p.baseURL)
	}

	hc := p.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: p.timeout, Transport: &http.Transport{MaxIdleConnsPerHost: 1}}
	}
	return &nominatimSession{httpSession: httpSession{hc: hc}, p: p}, nil
}

type nominatimSession struct {
	httpSession
	p *NominatimProvider
}

// nominatimPlace is one jsonv2 search hit. Coordinates arrive as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	PlaceRank   int    `json:"place_rank"`
}

func (s *nominatimSession) Geocode(ctx context.Context, query string) (*Result, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	if s.p.email != "" {
		params.Set("email", s.p.email)
	}
	reqURL := s.p.baseURL + "/search?" + params.Encode()
	header := http.Header{
		"User-Agent": {s.p.userAgent},
		"Accept":     {"application/json"},
	}

	body, err := getJSON(ctx, s.hc, s.p.limiter, "nominatim", query, reqURL, header)
	if err != nil {
		return nil, err
	}

	var hits []json.RawMessage
	if err := json.Unmarshal(body, &hits); err != nil {
		return nil, &CallError{Provider: "nominatim", Query: query, Err: eris.Wrap(err, "parse response")}
	}
	if len(hits) == 0 {
		zap.L().Debug("nominatim: no match", zap.String("query", query))
		return &Result{Matched: false, Source: "nominatim"}, nil
	}

	var place nominatimPlace
	if err := json.Unmarshal(hits[0], &place); err != nil {
		return nil, &CallError{Provider: "nominatim", Query: query, Err: eris.Wrap(err, "parse place")}
	}
	lat, latErr := strconv.ParseFloat(place.Lat, 64)
	lon, lonErr := strconv.ParseFloat(place.Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, &CallError{Provider: "nominatim", Query: query,
			Err: eris.Errorf("invalid coordinates %q, %q", place.Lat, place.Lon)}
	}
	if err := checkCoords(lat, lon); err != nil {
		return nil, &CallError{Provider: "nominatim", Query: query, Err: err}
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: place.DisplayName,
		Source:      "nominatim",
		Quality:     placeRankToQuality(place.PlaceRank),
		Matched:     true,
		Raw:         hits[0],
	}, nil
}

// placeRankToQuality buckets Nominatim's place_rank (4 = country .. 30 =
// building) into the quality taxonomy.
func placeRankToQuality(rank int) string {
	switch {
	case rank >= 30:
		return qualityFromKind("BUILDING")
	case rank >= 26:
		return qualityFromKind("STREET")
	case rank >= 13:
		return qualityFromKind("LOCALITY")
	default:
		return qualityFromKind("")
	}
}
