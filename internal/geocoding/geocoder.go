package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/pkg/geocode"
)

// DefaultSettle is the pause after each resolved request.
const DefaultSettle = time.Second

// ErrInterrupted is matched by the error ResolveAll returns when its
// context ends before every record was processed.
var ErrInterrupted = errors.New("geocoding: interrupted")

// InterruptedError carries the context error and how many records were
// processed before the interruption.
type InterruptedError struct {
	Processed int
	Total     int
	Cause     error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("geocoding: interrupted after %d of %d records: %v", e.Processed, e.Total, e.Cause)
}

// Is matches ErrInterrupted.
func (e *InterruptedError) Is(target error) bool { return target == ErrInterrupted }

func (e *InterruptedError) Unwrap() error { return e.Cause }

// Result is the outcome for one AddressRecord. A zero Resolved means the
// record could not be geocoded; that is a normal outcome, not an error.
type Result struct {
	Record      AddressRecord
	Query       string
	Resolved    bool
	Latitude    float64
	Longitude   float64
	DisplayName string
	Raw         json.RawMessage
}

// Sleeper pauses for d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

// ProgressFunc observes the number of processed records.
type ProgressFunc func(done, total int)

// Option configures a Geocoder.
type Option func(*Geocoder)

// WithSettle sets the pause enforced after every resolved request.
func WithSettle(d time.Duration) Option {
	return func(g *Geocoder) {
		if d >= 0 {
			g.settle = d
		}
	}
}

// WithSleeper replaces the settle implementation.
func WithSleeper(s Sleeper) Option {
	return func(g *Geocoder) {
		if s != nil {
			g.sleep = s
		}
	}
}

// WithProgress registers a progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(g *Geocoder) {
		g.progress = fn
	}
}

// Geocoder resolves address records strictly sequentially through one
// provider session per ResolveAll call.
type Geocoder struct {
	provider  geocode.Provider
	settle    time.Duration
	sleep     Sleeper
	progress  ProgressFunc
	processed atomic.Int64
}

// New creates a Geocoder for provider.
func New(provider geocode.Provider, opts ...Option) *Geocoder {
	g := &Geocoder{
		provider: provider,
		settle:   DefaultSettle,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Processed returns how many records the running (or last) ResolveAll call
// has finished. Safe to call from another goroutine.
func (g *Geocoder) Processed() int {
	return int(g.processed.Load())
}

// ResolveAll geocodes records in order and returns exactly one Result per
// record. A failed or unmatched lookup yields an unresolved Result and
// processing continues.
//
// Cancellation is observed between records and during the settle pause,
// never during a request. When ctx ends early the results produced so far
// are returned with an error matching ErrInterrupted. Errors that are not
// per-call failures (for example geocode.ErrNotConfigured) stop processing
// and are returned with the partial results as well.
func (g *Geocoder) ResolveAll(ctx context.Context, records []AddressRecord) ([]Result, error) {
	g.processed.Store(0)
	if err := ctx.Err(); err != nil {
		return nil, &InterruptedError{Total: len(records), Cause: err}
	}

	sess, err := g.provider.Open(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "geocoding: open %s session", g.provider.Name())
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			zap.L().Warn("geocoding: close session", zap.Error(cerr))
		}
	}()

	results := make([]Result, 0, len(records))
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return results, &InterruptedError{Processed: len(results), Total: len(records), Cause: err}
		}

		res, err := g.resolveOne(ctx, sess, i, rec)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		g.processed.Add(1)
		if g.progress != nil {
			g.progress(len(results), len(records))
		}

		if res.Resolved && i < len(records)-1 && g.settle > 0 {
			if err := g.sleep(ctx, g.settle); err != nil {
				return results, &InterruptedError{Processed: len(results), Total: len(records), Cause: err}
			}
		}
	}

	zap.L().Info("geocoding: batch complete",
		zap.String("provider", g.provider.Name()),
		zap.Int("records", len(records)),
		zap.Int("resolved", CountResolved(results)),
	)
	return results, nil
}

func (g *Geocoder) resolveOne(ctx context.Context, sess geocode.Session, i int, rec AddressRecord) (Result, error) {
	q := Query(rec)
	out := Result{Record: rec, Query: q}

	// A request in flight always runs to completion.
	hit, err := sess.Geocode(context.WithoutCancel(ctx), q)
	switch {
	case err == nil && hit != nil && hit.Matched && !inRange(hit.Latitude, hit.Longitude):
		zap.L().Warn("geocoding: invalid coordinates", zap.Int("index", i), zap.String("query", q),
			zap.Float64("lat", hit.Latitude), zap.Float64("lon", hit.Longitude))
	case err == nil && hit != nil && hit.Matched:
		out.Resolved = true
		out.Latitude = hit.Latitude
		out.Longitude = hit.Longitude
		out.DisplayName = hit.DisplayName
		out.Raw = hit.Raw
	case err == nil:
		zap.L().Debug("geocoding: no match", zap.Int("index", i), zap.String("query", q))
	case geocode.IsCallError(err):
		zap.L().Warn("geocoding: lookup failed", zap.Int("index", i), zap.String("query", q), zap.Error(err))
	default:
		return out, eris.Wrapf(err, "geocoding: record %d", i)
	}
	return out, nil
}

func inRange(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lon) &&
		lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// CountResolved returns the number of resolved results.
func CountResolved(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Resolved {
			n++
		}
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
