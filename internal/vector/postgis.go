package vector

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/db"
)

// PostGISScheme prefixes table references: postgis://schema.table.
const PostGISScheme = "postgis://"

// PostGISTable is a parsed postgis:// reference.
type PostGISTable struct {
	Schema   string
	Table    string
	GeomCol  string
	OrderCol string
}

// ParsePostGISRef parses "postgis://schema.table?geom=col&order=col".
// The schema defaults to "public" and the geometry column to "geom".
func ParsePostGISRef(ref string) (PostGISTable, error) {
	if !strings.HasPrefix(ref, PostGISScheme) {
		return PostGISTable{}, eris.Errorf("postgis: %q is not a postgis:// reference", ref)
	}
	rest := strings.TrimPrefix(ref, PostGISScheme)
	name, rawQuery, _ := strings.Cut(rest, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return PostGISTable{}, eris.Wrap(err, "postgis: parse query")
	}

	t := PostGISTable{Schema: "public", GeomCol: "geom", OrderCol: q.Get("order")}
	if schema, table, ok := strings.Cut(name, "."); ok {
		t.Schema, t.Table = schema, table
	} else {
		t.Table = name
	}
	if g := q.Get("geom"); g != "" {
		t.GeomCol = g
	}
	if t.Table == "" || t.Schema == "" {
		return PostGISTable{}, eris.Errorf("postgis: missing table in %q", ref)
	}
	return t, nil
}

// PostGISReader reads features from a PostGIS table.
type PostGISReader struct {
	pool db.Pool
}

// NewPostGISReader creates a PostGISReader over pool.
func NewPostGISReader(pool db.Pool) *PostGISReader {
	return &PostGISReader{pool: pool}
}

func (t PostGISTable) selectSQL() string {
	geomCol := pgx.Identifier{t.GeomCol}.Sanitize()
	sql := "SELECT ST_AsBinary(t." + geomCol + "), to_jsonb(t) - $1::text FROM " +
		pgx.Identifier{t.Schema, t.Table}.Sanitize() + " AS t"
	if t.OrderCol != "" {
		sql += " ORDER BY t." + pgx.Identifier{t.OrderCol}.Sanitize()
	}
	return sql
}

// Read implements Reader. Rows come back in table order unless the
// reference names an order column.
func (r *PostGISReader) Read(ctx context.Context, ref string) (*Collection, error) {
	if r.pool == nil {
		return nil, eris.New("postgis: no database configured")
	}
	t, err := ParsePostGISRef(ref)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, t.selectSQL(), t.GeomCol)
	if err != nil {
		return nil, eris.Wrapf(err, "postgis: query %s.%s", t.Schema, t.Table)
	}
	defer rows.Close()

	coll := &Collection{}
	for rows.Next() {
		var (
			data  []byte
			props map[string]any
		)
		if err := rows.Scan(&data, &props); err != nil {
			return nil, eris.Wrap(err, "postgis: scan row")
		}
		var g geom.T
		if len(data) > 0 {
			g, err = wkb.Unmarshal(data)
			if err != nil {
				return nil, eris.Wrapf(err, "postgis: decode geometry of row %d", len(coll.Features))
			}
		}
		coll.Features = append(coll.Features, RawFeature{Geometry: g, Properties: props})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgis: iterate rows")
	}
	return coll, nil
}

// ExportColumns are the columns written by ExportLayer.
var ExportColumns = []string{"feature_id", "properties", "geom"}

// ExportLayer writes a projected layer into schema.table, creating the
// table when needed. Geometries are stored as EWKB in the layer's CRS.
func ExportLayer(ctx context.Context, pool db.Pool, layer *Layer, schema, table string) (int64, error) {
	if layer == nil {
		return 0, eris.New("postgis: nil layer")
	}
	ident := pgx.Identifier{schema, table}.Sanitize()

	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return 0, eris.Wrapf(err, "postgis: create schema %s", schema)
	}
	ddl := "CREATE TABLE IF NOT EXISTS " + ident +
		" (feature_id text PRIMARY KEY, properties jsonb, geom geometry(Geometry, " +
		strconv.Itoa(layer.CRS.Code) + "))"
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return 0, eris.Wrapf(err, "postgis: create table %s.%s", schema, table)
	}

	rows := make([][]any, 0, len(layer.Features))
	for _, f := range layer.Features {
		var data []byte
		if f.Geometry != nil {
			var err error
			data, err = ewkb.Marshal(f.Geometry, ewkb.NDR)
			if err != nil {
				return 0, eris.Wrapf(err, "postgis: encode feature %s", f.ID)
			}
		}
		rows = append(rows, []any{f.ID, f.Properties, data})
	}

	n, err := db.CopyFromSchema(ctx, pool, schema, table, ExportColumns, rows)
	if err != nil {
		return 0, err
	}
	zap.L().Info("postgis: layer exported",
		zap.String("table", schema+"."+table),
		zap.Int64("rows", n),
	)
	return n, nil
}
