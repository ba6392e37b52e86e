package manifest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geomap/internal/canvas"
	"github.com/sells-group/geomap/internal/geocoding"
	"github.com/sells-group/geomap/internal/layer"
	"github.com/sells-group/geomap/internal/resilience"
	"github.com/sells-group/geomap/internal/stats"
	"github.com/sells-group/geomap/internal/vector"
	"github.com/sells-group/geomap/pkg/cbs"
	"github.com/sells-group/geomap/pkg/geocode"
)

type stubVectors struct {
	gotRef, gotCRS string
	err            error
}

func (s *stubVectors) Load(_ context.Context, ref, crs string) (*vector.Layer, error) {
	s.gotRef, s.gotCRS = ref, crs
	if s.err != nil {
		return nil, s.err
	}
	return &vector.Layer{CRS: vector.WorkingCRS, Features: []vector.Feature{
		{ID: "0", Geometry: geom.NewPointFlat(geom.XY, []float64{0, 0}), Properties: map[string]any{"statcode": "GM0363"}},
		{ID: "1", Geometry: geom.NewPointFlat(geom.XY, []float64{1, 1}), Properties: map[string]any{"statcode": "GM0599"}},
	}}, nil
}

type stubTables struct {
	query cbs.Query
	table *stats.Table
}

func (s *stubTables) factory(q cbs.Query) TableFetcher {
	s.query = q
	return s
}

func (s *stubTables) Fetch(_ context.Context, id string) (*stats.Table, error) {
	if s.table == nil {
		return nil, resilience.Unavailable(id, errors.New("offline"))
	}
	return s.table, nil
}

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) Open(_ context.Context) (geocode.Session, error) { return stubSession{}, nil }

type stubSession struct{}

func (stubSession) Geocode(_ context.Context, _ string) (*geocode.Result, error) {
	return &geocode.Result{Latitude: 52.36, Longitude: 4.88, Matched: true}, nil
}

func (stubSession) Close() error { return nil }

func records(n int) RecordReader {
	return func(_ context.Context, _ string, _ geocoding.ReadOptions) ([]geocoding.AddressRecord, error) {
		out := make([]geocoding.AddressRecord, n)
		for i := range out {
			out[i] = geocoding.AddressRecord{Name: "Museum", City: "Amsterdam"}
		}
		return out, nil
	}
}

func newComposer(v *stubVectors, tb *stubTables) *Composer {
	return &Composer{
		Vectors:    v,
		Stats:      tb.factory,
		Geocoder:   geocoding.New(stubProvider{}, geocoding.WithSettle(0)),
		Records:    records(2),
		Base:       canvas.DefaultConfig(),
		DefaultCRS: "EPSG:4326",
	}
}

func choroplethSpec() LayerSpec {
	return LayerSpec{
		Type:            TypeChoropleth,
		Source:          "gemeenten.json",
		FeatureKey:      "statcode",
		Stats:           "70072NED",
		Filter:          "Perioden eq '2023JJ00'",
		Value:           "inwoners",
		Join:            "RegioS",
		ChoroplethStyle: layer.DefaultChoroplethStyle(),
	}
}

func markerSpec() LayerSpec {
	return LayerSpec{Type: TypeMarkers, Addresses: "musea.csv", MarkerStyle: layer.DefaultMarkerStyle()}
}

func TestCompose_OrderAndJoin(t *testing.T) {
	v := &stubVectors{}
	tb := &stubTables{table: &stats.Table{
		ID:      "70072NED",
		Columns: []string{"RegioS", "inwoners"},
		Records: []stats.Record{{"RegioS": "GM0363  ", "inwoners": 931298}},
	}}
	m := &Manifest{Layers: []LayerSpec{choroplethSpec(), markerSpec()}}

	cv, err := newComposer(v, tb).Compose(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, 2, cv.Len())

	ls := cv.Layers()
	ch, ok := ls[0].(*layer.Choropleth)
	require.True(t, ok)
	assert.Equal(t, 1, ch.Matched())
	assert.Equal(t, "0", ch.Features[0].ID)
	assert.True(t, ch.Features[0].HasValue)
	assert.Equal(t, "1", ch.Features[1].ID)
	assert.False(t, ch.Features[1].HasValue)
	_, ok = ls[1].(*layer.MarkerLayer)
	assert.True(t, ok)

	assert.Equal(t, "EPSG:4326", v.gotCRS)
	assert.Equal(t, "Perioden eq '2023JJ00'", tb.query.Filter)
	// A choropleth first fixes the center before markers are geocoded.
	assert.Equal(t, canvas.LatLng{Lat: canvas.DefaultLat, Lng: canvas.DefaultLon}, cv.Center())
}

func TestCompose_MarkersFirstCenterOnResults(t *testing.T) {
	m := &Manifest{Layers: []LayerSpec{markerSpec()}}
	cv, err := newComposer(&stubVectors{}, &stubTables{}).Compose(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, canvas.LatLng{Lat: 52.36, Lng: 4.88}, cv.Center())
}

func TestCompose_SourceUnavailable(t *testing.T) {
	m := &Manifest{Layers: []LayerSpec{choroplethSpec()}}
	_, err := newComposer(&stubVectors{}, &stubTables{}).Compose(context.Background(), m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrSourceUnavailable))
}

func TestCompose_Interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &Manifest{Layers: []LayerSpec{markerSpec(), markerSpec()}}
	cv, err := newComposer(&stubVectors{}, &stubTables{}).Compose(ctx, m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, geocoding.ErrInterrupted))
	require.NotNil(t, cv)
	assert.Equal(t, 1, cv.Len())
}

func TestCompose_Empty(t *testing.T) {
	cv, err := newComposer(&stubVectors{}, &stubTables{}).Compose(context.Background(), &Manifest{})
	require.NoError(t, err)
	assert.Equal(t, 0, cv.Len())
}
