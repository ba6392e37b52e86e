package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geomap/pkg/geocode"
)

type stubOutcome struct {
	result *geocode.Result
	err    error
}

// stubProvider answers queries from a fixed table; unknown queries do not match.
type stubProvider struct {
	mu       sync.Mutex
	answers  map[string]stubOutcome
	openErr  error
	queries  []string
	opened   int
	closed   int
	onLookup func(query string)
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Open(_ context.Context) (geocode.Session, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	p.mu.Lock()
	p.opened++
	p.mu.Unlock()
	return &stubSession{p: p}, nil
}

type stubSession struct{ p *stubProvider }

func (s *stubSession) Geocode(ctx context.Context, query string) (*geocode.Result, error) {
	s.p.mu.Lock()
	s.p.queries = append(s.p.queries, query)
	out, ok := s.p.answers[query]
	hook := s.p.onLookup
	s.p.mu.Unlock()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if hook != nil {
		hook(query)
	}
	if !ok {
		return &geocode.Result{Matched: false, Source: "stub"}, nil
	}
	return out.result, out.err
}

func (s *stubSession) Close() error {
	s.p.mu.Lock()
	s.p.closed++
	s.p.mu.Unlock()
	return nil
}

func match(lat, lon float64, name string) stubOutcome {
	return stubOutcome{result: &geocode.Result{
		Latitude: lat, Longitude: lon, DisplayName: name, Matched: true,
		Raw: json.RawMessage(`{"display_name":"` + name + `"}`),
	}}
}

// recordSleeps collects settle pauses without waiting.
func recordSleeps(into *[]time.Duration) Option {
	return WithSleeper(func(ctx context.Context, d time.Duration) error {
		*into = append(*into, d)
		return ctx.Err()
	})
}

var (
	rijksmuseum = AddressRecord{Name: "Rijksmuseum", City: "Amsterdam", Country: "NL"}
	johnAdams   = AddressRecord{Street: "John Adams Park", Number: "1", PostalCode: "2244BZ", City: "Wassenaar", Country: "NL"}
)

func TestQuery(t *testing.T) {
	assert.Equal(t, "Rijksmuseum, ,,Amsterdam,NL", Query(rijksmuseum))
	assert.Equal(t, ",John Adams Park 1,2244BZ,Wassenaar,NL", Query(johnAdams))
	assert.Equal(t, ", ,,,", Query(AddressRecord{}))
}

func TestQuery_NFC(t *testing.T) {
	// "e" followed by a combining acute accent is composed to U+00E9.
	q := Query(AddressRecord{City: "Cafe\u0301"})
	assert.Equal(t, ", ,,Caf\u00e9,", q)
}

func TestResolveAll_Scenario(t *testing.T) {
	p := &stubProvider{answers: map[string]stubOutcome{
		"Rijksmuseum, ,,Amsterdam,NL": match(52.36, 4.8852, "Rijksmuseum"),
	}}
	var sleeps []time.Duration
	g := New(p, recordSleeps(&sleeps))

	results, err := g.ResolveAll(context.Background(), []AddressRecord{rijksmuseum, johnAdams})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Resolved)
	assert.Equal(t, 52.36, results[0].Latitude)
	assert.Equal(t, 4.8852, results[0].Longitude)
	assert.JSONEq(t, `{"display_name":"Rijksmuseum"}`, string(results[0].Raw))
	assert.False(t, results[1].Resolved)
	assert.Equal(t, johnAdams, results[1].Record)

	assert.Equal(t, []time.Duration{time.Second}, sleeps)
	assert.Equal(t, 1, p.opened)
	assert.Equal(t, 1, p.closed)
	assert.Equal(t, 2, g.Processed())
}

func TestResolveAll_FailureIsolated(t *testing.T) {
	recs := []AddressRecord{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}
	p := &stubProvider{answers: map[string]stubOutcome{
		Query(recs[0]): match(1, 1, "a"),
		Query(recs[1]): {err: &geocode.CallError{Provider: "stub", Query: "b", StatusCode: 500}},
		Query(recs[2]): {err: &geocode.CallError{Provider: "stub", Query: "c", Err: errors.New("reset")}},
		Query(recs[3]): match(4, 4, "d"),
	}}

	results, err := New(p, WithSettle(0)).ResolveAll(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.True(t, results[0].Resolved)
	assert.False(t, results[1].Resolved)
	assert.False(t, results[2].Resolved)
	assert.True(t, results[3].Resolved)
	assert.Equal(t, 4.0, results[3].Latitude)

	for i, r := range results {
		assert.Equal(t, recs[i], r.Record)
	}
	assert.Equal(t, 2, CountResolved(results))
}

func TestResolveAll_NonFiniteCoordinatesUnresolved(t *testing.T) {
	recs := []AddressRecord{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	p := &stubProvider{answers: map[string]stubOutcome{
		Query(recs[0]): match(math.NaN(), 4.9, "a"),
		Query(recs[1]): match(52.3, math.Inf(-1), "b"),
		Query(recs[2]): match(95, 4.9, "c"),
	}}

	results, err := New(p, WithSettle(0)).ResolveAll(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.False(t, r.Resolved)
	}
}

func TestResolveAll_OneRequestPerRecord(t *testing.T) {
	recs := []AddressRecord{rijksmuseum, johnAdams, rijksmuseum}
	p := &stubProvider{answers: map[string]stubOutcome{}}

	_, err := New(p, WithSettle(0)).ResolveAll(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, []string{Query(rijksmuseum), Query(johnAdams), Query(rijksmuseum)}, p.queries)
}

func TestResolveAll_SettleOnlyAfterResolved(t *testing.T) {
	recs := []AddressRecord{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	p := &stubProvider{answers: map[string]stubOutcome{
		Query(recs[0]): match(1, 1, "a"),
		Query(recs[2]): match(3, 3, "c"),
	}}
	var sleeps []time.Duration

	_, err := New(p, WithSettle(250*time.Millisecond), recordSleeps(&sleeps)).
		ResolveAll(context.Background(), recs)
	require.NoError(t, err)
	// Pause after "a"; none after the unmatched "b"; none after the final record.
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, sleeps)
}

func TestResolveAll_FatalErrorSurfaced(t *testing.T) {
	recs := []AddressRecord{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	p := &stubProvider{answers: map[string]stubOutcome{
		Query(recs[0]): match(1, 1, "a"),
		Query(recs[1]): {err: geocode.ErrNotConfigured},
	}}

	results, err := New(p, WithSettle(0)).ResolveAll(context.Background(), recs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, geocode.ErrNotConfigured))
	require.Len(t, results, 1)
	assert.True(t, results[0].Resolved)
	assert.Equal(t, 1, p.closed)
}

func TestResolveAll_OpenError(t *testing.T) {
	p := &stubProvider{openErr: geocode.ErrNotConfigured}

	results, err := New(p).ResolveAll(context.Background(), []AddressRecord{rijksmuseum})
	require.Error(t, err)
	assert.True(t, errors.Is(err, geocode.ErrNotConfigured))
	assert.Empty(t, results)
}

func TestResolveAll_InterruptedBetweenRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recs := []AddressRecord{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	p := &stubProvider{answers: map[string]stubOutcome{}}
	// Cancel while the second request is in flight; it must still complete.
	p.onLookup = func(q string) {
		if q == Query(recs[1]) {
			cancel()
		}
	}

	results, err := New(p, WithSettle(0)).ResolveAll(ctx, recs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInterrupted))
	assert.True(t, errors.Is(err, context.Canceled))

	var ie *InterruptedError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 2, ie.Processed)
	assert.Equal(t, 3, ie.Total)

	require.Len(t, results, 2)
	assert.Equal(t, recs[1], results[1].Record)
	assert.Len(t, p.queries, 2)
	assert.Equal(t, 1, p.closed)
}

func TestResolveAll_InterruptedDuringSettle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recs := []AddressRecord{{Name: "a"}, {Name: "b"}}
	p := &stubProvider{answers: map[string]stubOutcome{Query(recs[0]): match(1, 2, "a")}}
	sleeper := WithSleeper(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})

	results, err := New(p, sleeper).ResolveAll(ctx, recs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInterrupted))
	require.Len(t, results, 1)
	assert.True(t, results[0].Resolved)
}

func TestResolveAll_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &stubProvider{}
	results, err := New(p).ResolveAll(ctx, []AddressRecord{rijksmuseum})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInterrupted))
	assert.Empty(t, results)
	assert.Equal(t, 0, p.opened)
}

func TestResolveAll_Progress(t *testing.T) {
	recs := []AddressRecord{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	var seen [][2]int
	g := New(&stubProvider{}, WithSettle(0), WithProgress(func(done, total int) {
		seen = append(seen, [2]int{done, total})
	}))

	results, err := g.ResolveAll(context.Background(), recs)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, seen)
	assert.Equal(t, 3, g.Processed())
}

func TestResolveAll_Empty(t *testing.T) {
	p := &stubProvider{}
	results, err := New(p).ResolveAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 1, p.closed)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
