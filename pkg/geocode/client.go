// Package geocode resolves free-text address queries through an external
// geocoding service. Nominatim is the default backend; Google is available
// when an API key is configured.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ErrNotConfigured reports a provider that cannot issue requests at all,
// such as a missing API key or a rejected credential. It is a caller
// configuration error, never a per-query outcome.
var ErrNotConfigured = errors.New("geocode: provider not configured")

// Result holds the geocoding output for a query.
type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	Source      string // "nominatim" or "google"
	Quality     string // "rooftop", "range", "centroid", "approximate"
	Matched     bool
	Raw         json.RawMessage
}

// CallError marks a single failed collaborator call: transport failure,
// unexpected HTTP status or a body that could not be decoded.
type CallError struct {
	Provider   string
	Query      string
	StatusCode int
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("geocode: %s returned status %d for %q", e.Provider, e.StatusCode, e.Query)
	}
	return fmt.Sprintf("geocode: %s call failed for %q: %v", e.Provider, e.Query, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// IsCallError reports whether err is (or wraps) a CallError.
func IsCallError(err error) bool {
	var ce *CallError
	return errors.As(err, &ce)
}

// Session is an open connection to a geocoding service. A session is used
// by one goroutine at a time and must be closed when done.
type Session interface {
	// Geocode issues exactly one request for query. A query with no match
	// returns an unmatched Result and a nil error.
	Geocode(ctx context.Context, query string) (*Result, error)
	Close() error
}

// Provider opens geocoding sessions.
type Provider interface {
	Name() string
	Open(ctx context.Context) (Session, error)
}

// getJSON performs a rate-limited GET and returns the body of a 200 response.
// Every failure after the limiter is reported as a CallError.
func getJSON(ctx context.Context, hc *http.Client, lim *rate.Limiter, provider, query, reqURL string, header http.Header) ([]byte, error) {
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrapf(err, "geocode: %s rate limit", provider)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s build request", provider)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &CallError{Provider: provider, Query: query, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &CallError{Provider: provider, Query: query, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CallError{Provider: provider, Query: query, Err: err}
	}
	return body, nil
}

// checkCoords rejects coordinates that are not finite or fall outside the
// WGS84 range.
func checkCoords(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return eris.Errorf("non-finite coordinates %v, %v", lat, lon)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return eris.Errorf("coordinates out of range %v, %v", lat, lon)
	}
	return nil
}

// qualityFromKind maps a coarse location kind to the quality taxonomy.
func qualityFromKind(kind string) string {
	switch strings.ToUpper(kind) {
	case "ROOFTOP", "BUILDING", "HOUSE":
		return "rooftop"
	case "RANGE_INTERPOLATED", "STREET":
		return "range"
	case "GEOMETRIC_CENTER", "LOCALITY":
		return "centroid"
	default:
		return "approximate"
	}
}

// httpSession carries the HTTP client owned by one session.
type httpSession struct {
	hc     *http.Client
	closed bool
}

func (s *httpSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.hc.CloseIdleConnections()
	return nil
}

func (s *httpSession) check() error {
	if s.closed {
		return eris.New("geocode: session closed")
	}
	return nil
}
