package vector

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/fetcher"
)

// Downloader copies a dataset reference to a local file.
type Downloader interface {
	Fetch(ctx context.Context, ref, path string) (int64, error)
}

// ShapefileReader reads ESRI shapefiles from disk, from a remote .shp with
// its .dbf sidecar, or from a (local or remote) ZIP archive.
type ShapefileReader struct {
	dl      Downloader
	tempDir string
}

// NewShapefileReader creates a ShapefileReader. Remote files are staged
// under tempDir (os.TempDir when empty).
func NewShapefileReader(dl Downloader, tempDir string) *ShapefileReader {
	return &ShapefileReader{dl: dl, tempDir: tempDir}
}

// Read implements Reader.
func (r *ShapefileReader) Read(ctx context.Context, ref string) (*Collection, error) {
	remote := fetcher.Scheme(ref) != "" && fetcher.Scheme(ref) != "file"
	local := fetcher.LocalPath(ref)
	isZip := strings.EqualFold(path.Ext(local), ".zip")

	if !remote && !isZip {
		return ParseShapefile(local)
	}

	dir, err := os.MkdirTemp(r.tempDir, "geomap-shp-*")
	if err != nil {
		return nil, eris.Wrap(err, "shapefile: create staging dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	if isZip {
		archive := local
		if remote {
			archive = filepath.Join(dir, "source.zip")
			if _, err := r.dl.Fetch(ctx, ref, archive); err != nil {
				return nil, err
			}
		}
		files, err := fetcher.ExtractZIP(archive, dir)
		if err != nil {
			return nil, err
		}
		shpPath, ok := fetcher.FindByExt(files, ".shp")
		if !ok {
			return nil, eris.Errorf("shapefile: no .shp in archive %s", ref)
		}
		return ParseShapefile(shpPath)
	}

	base := strings.TrimSuffix(ref, path.Ext(ref))
	shpPath := filepath.Join(dir, "source.shp")
	if _, err := r.dl.Fetch(ctx, ref, shpPath); err != nil {
		return nil, err
	}
	if _, err := r.dl.Fetch(ctx, base+".dbf", filepath.Join(dir, "source.dbf")); err != nil {
		return nil, eris.Wrap(err, "shapefile: fetch .dbf sidecar")
	}
	return ParseShapefile(shpPath)
}

// ParseShapefile reads every record of a local shapefile. Records whose
// shape is null are kept with a nil geometry so positional identifiers stay
// aligned with the attribute table.
func ParseShapefile(shpPath string) (*Collection, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	coll := &Collection{}
	var empty int
	for reader.Next() {
		_, shape := reader.Shape()

		props := make(map[string]any, len(names))
		for i, name := range names {
			props[name] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}

		g := shapeToGeom(shape)
		if g == nil {
			empty++
		}
		coll.Features = append(coll.Features, RawFeature{Geometry: g, Properties: props})
	}

	if empty > 0 {
		zap.L().Debug("shapefile: records without geometry",
			zap.String("path", shpPath),
			zap.Int("count", empty),
		)
	}
	return coll, nil
}

// shapeToGeom converts a go-shp shape to a go-geom geometry. Unsupported
// and null shapes return nil.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PointZ:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PointM:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.MultiPoint:
		if len(s.Points) == 0 {
			return nil
		}
		return geom.NewMultiPointFlat(geom.XY, flatPoints(s.Points))
	case *shp.PolyLine:
		return linesToMultiLineString(s.Parts, s.Points)
	case *shp.PolyLineZ:
		return linesToMultiLineString(s.Parts, s.Points)
	case *shp.Polygon:
		return ringsToMultiPolygon(s.Parts, s.Points)
	case *shp.PolygonZ:
		return ringsToMultiPolygon(s.Parts, s.Points)
	default:
		return nil
	}
}

// splitParts slices a shapefile point list into its parts.
func splitParts(parts []int32, pts []shp.Point) [][]shp.Point {
	out := make([][]shp.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(pts))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start >= end || int(end) > len(pts) {
			continue
		}
		out = append(out, pts[start:end])
	}
	return out
}

func linesToMultiLineString(parts []int32, pts []shp.Point) geom.T {
	mls := geom.NewMultiLineString(geom.XY)
	for i, part := range splitParts(parts, pts) {
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flatPoints(part))); err != nil {
			zap.L().Debug("shapefile: skipping malformed line part", zap.Int("part", i), zap.Error(err))
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// ringsToMultiPolygon groups rings into polygons. Shapefile outer rings run
// clockwise; counter-clockwise rings are holes of the preceding outer ring.
func ringsToMultiPolygon(parts []int32, pts []shp.Point) geom.T {
	var polys []*geom.Polygon
	for i, ring := range splitParts(parts, pts) {
		lr := geom.NewLinearRingFlat(geom.XY, flatPoints(ring))
		if signedArea(ring) > 0 && len(polys) > 0 {
			if err := polys[len(polys)-1].Push(lr); err != nil {
				zap.L().Debug("shapefile: skipping malformed hole", zap.Int("part", i), zap.Error(err))
			}
			continue
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(lr); err != nil {
			zap.L().Debug("shapefile: skipping malformed ring", zap.Int("part", i), zap.Error(err))
			continue
		}
		polys = append(polys, poly)
	}
	if len(polys) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for _, p := range polys {
		if err := mp.Push(p); err != nil {
			zap.L().Debug("shapefile: skipping malformed polygon", zap.Error(err))
		}
	}
	return mp
}

// signedArea is positive for counter-clockwise rings.
func signedArea(ring []shp.Point) float64 {
	var sum float64
	for i := range ring {
		j := (i + 1) % len(ring)
		sum += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	return sum / 2
}

func flatPoints(pts []shp.Point) []float64 {
	flat := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}
