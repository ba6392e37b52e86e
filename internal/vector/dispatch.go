package vector

import (
	"context"
	"path"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geomap/internal/db"
	"github.com/sells-group/geomap/internal/fetcher"
)

// SourceRouter picks a Reader by reference: postgis:// tables, .shp and
// .zip shapefiles, and GeoJSON for everything else.
type SourceRouter struct {
	GeoJSON   Reader
	Shapefile Reader
	PostGIS   Reader
}

// NewSourceRouter wires the default readers. pool may be nil when no
// database is configured.
func NewSourceRouter(router *fetcher.Router, pool db.Pool, tempDir string) *SourceRouter {
	s := &SourceRouter{
		GeoJSON:   NewGeoJSONReader(router),
		Shapefile: NewShapefileReader(router, tempDir),
	}
	if pool != nil {
		s.PostGIS = NewPostGISReader(pool)
	}
	return s
}

// Read implements Reader.
func (s *SourceRouter) Read(ctx context.Context, ref string) (*Collection, error) {
	r, err := s.readerFor(ref)
	if err != nil {
		return nil, err
	}
	return r.Read(ctx, ref)
}

func (s *SourceRouter) readerFor(ref string) (Reader, error) {
	if strings.HasPrefix(ref, PostGISScheme) {
		if s.PostGIS == nil {
			return nil, eris.Errorf("vector: no postgis reader for %s", ref)
		}
		return s.PostGIS, nil
	}

	p := ref
	if i := strings.IndexAny(p, "?#"); i >= 0 && fetcher.Scheme(ref) != "" {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".shp", ".zip":
		if s.Shapefile == nil {
			return nil, eris.Errorf("vector: no shapefile reader for %s", ref)
		}
		return s.Shapefile, nil
	default:
		if s.GeoJSON == nil {
			return nil, eris.Errorf("vector: no geojson reader for %s", ref)
		}
		return s.GeoJSON, nil
	}
}
