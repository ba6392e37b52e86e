package vector

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Reproject rewrites every coordinate of g in place.
func Reproject(g geom.T, fn PointFunc) error {
	switch t := g.(type) {
	case nil:
		return nil
	case *geom.GeometryCollection:
		for _, sub := range t.Geoms() {
			if err := Reproject(sub, fn); err != nil {
				return err
			}
		}
		return nil
	}

	stride := g.Stride()
	if stride < 2 {
		return nil
	}
	flat := g.FlatCoords()
	for i := 0; i+1 < len(flat); i += stride {
		x, y := fn(flat[i], flat[i+1])
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return eris.Errorf("vector: coordinate (%g, %g) has no projection", flat[i], flat[i+1])
		}
		flat[i], flat[i+1] = x, y
	}
	return nil
}

// setSRID tags g with srid. Geometry kinds without an SRID setter are left
// untouched.
func setSRID(g geom.T, srid int) {
	switch t := g.(type) {
	case *geom.Point:
		t.SetSRID(srid)
	case *geom.MultiPoint:
		t.SetSRID(srid)
	case *geom.LineString:
		t.SetSRID(srid)
	case *geom.MultiLineString:
		t.SetSRID(srid)
	case *geom.Polygon:
		t.SetSRID(srid)
	case *geom.MultiPolygon:
		t.SetSRID(srid)
	case *geom.GeometryCollection:
		t.SetSRID(srid)
	}
}

// Clone returns a deep copy of g.
func Clone(g geom.T) geom.T {
	switch t := g.(type) {
	case *geom.Point:
		return t.Clone()
	case *geom.MultiPoint:
		return t.Clone()
	case *geom.LineString:
		return t.Clone()
	case *geom.MultiLineString:
		return t.Clone()
	case *geom.Polygon:
		return t.Clone()
	case *geom.MultiPolygon:
		return t.Clone()
	case *geom.GeometryCollection:
		out := geom.NewGeometryCollection()
		for _, sub := range t.Geoms() {
			out.MustPush(Clone(sub))
		}
		return out.SetSRID(t.SRID())
	}
	return nil
}
