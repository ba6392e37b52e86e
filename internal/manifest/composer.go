package manifest

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/canvas"
	"github.com/sells-group/geomap/internal/geocoding"
	"github.com/sells-group/geomap/internal/layer"
	"github.com/sells-group/geomap/internal/stats"
	"github.com/sells-group/geomap/internal/vector"
	"github.com/sells-group/geomap/pkg/cbs"
)

// VectorLoader loads a projected vector layer.
type VectorLoader interface {
	Load(ctx context.Context, ref, sourceCRS string) (*vector.Layer, error)
}

// TableFetcher fetches a statistics table.
type TableFetcher interface {
	Fetch(ctx context.Context, tableID string) (*stats.Table, error)
}

// StatsFactory returns a fetcher applying q to remote requests.
type StatsFactory func(q cbs.Query) TableFetcher

// RecordReader reads address records from a file.
type RecordReader func(ctx context.Context, path string, opts geocoding.ReadOptions) ([]geocoding.AddressRecord, error)

// Composer builds the canvas a manifest describes.
type Composer struct {
	Vectors  VectorLoader
	Stats    StatsFactory
	Geocoder *geocoding.Geocoder
	Records  RecordReader

	// Base is the canvas config the manifest overrides.
	Base canvas.Config
	// DefaultCRS is used for choropleth sources without a crs.
	DefaultCRS string
	// Columns is the address column mapping for marker layers without one.
	Columns geocoding.ColumnMap
}

// Compose builds every layer in manifest order and attaches it to one
// canvas. If geocoding is interrupted the partially built canvas is
// returned together with the interruption error; later layers are skipped.
func (c *Composer) Compose(ctx context.Context, m *Manifest) (*canvas.Canvas, error) {
	cfg := m.Canvas.Apply(c.Base)

	var cv *canvas.Canvas
	for i, spec := range m.Layers {
		var err error
		switch spec.Type {
		case TypeChoropleth:
			if cv == nil {
				cv = canvas.NewFromConfig(cfg)
			}
			err = c.choropleth(ctx, cv, spec)
		case TypeMarkers:
			cv, err = c.markers(ctx, cv, cfg, spec)
		default:
			err = eris.Errorf("manifest: unknown layer type %q", spec.Type)
		}
		if errors.Is(err, geocoding.ErrInterrupted) && cv != nil {
			zap.L().Warn("manifest: composition interrupted", zap.Int("layer", i), zap.Error(err))
			return cv, err
		}
		if err != nil {
			return nil, eris.Wrapf(err, "manifest: layer %d (%s)", i, spec.Type)
		}
	}
	if cv == nil {
		cv = canvas.NewFromConfig(cfg)
	}
	zap.L().Info("manifest: composed", zap.String("title", m.Title), zap.Int("layers", cv.Len()))
	return cv, nil
}

func (c *Composer) choropleth(ctx context.Context, cv *canvas.Canvas, spec LayerSpec) error {
	if c.Vectors == nil || c.Stats == nil {
		return eris.New("manifest: choropleth sources not configured")
	}
	crs := spec.CRS
	if crs == "" {
		crs = c.DefaultCRS
	}
	v, err := c.Vectors.Load(ctx, spec.Source, crs)
	if err != nil {
		return err
	}
	tbl, err := c.Stats(cbs.Query{Filter: spec.Filter, Select: spec.Select}).Fetch(ctx, spec.Stats)
	if err != nil {
		return err
	}
	if spec.FeatureKey != "" {
		if tbl, err = layer.KeyByRegion(v, tbl, spec.Join, spec.FeatureKey); err != nil {
			return err
		}
	}
	ch, err := layer.BuildChoropleth(v, tbl, spec.Value, spec.Join, spec.ChoroplethStyle)
	if err != nil {
		return err
	}
	return ch.AttachTo(cv)
}

func (c *Composer) markers(ctx context.Context, cv *canvas.Canvas, cfg canvas.Config, spec LayerSpec) (*canvas.Canvas, error) {
	if c.Geocoder == nil {
		return cv, eris.New("manifest: geocoder not configured")
	}
	read := c.Records
	if read == nil {
		read = geocoding.ReadRecords
	}
	cols := c.Columns
	if spec.Columns != nil {
		cols = *spec.Columns
	}
	if cols == (geocoding.ColumnMap{}) {
		cols = geocoding.DefaultColumns
	}
	records, err := read(ctx, spec.Addresses, geocoding.ReadOptions{Columns: cols, Sheet: spec.Sheet})
	if err != nil {
		return cv, err
	}

	target := layer.ExistingCanvas(cv)
	if cv == nil {
		target = layer.NewCanvas(cfg)
	}
	_, out, err := layer.GeocodeAndAttach(ctx, c.Geocoder, records, target, spec.MarkerStyle)
	if out == nil {
		out = cv
	}
	return out, err
}
