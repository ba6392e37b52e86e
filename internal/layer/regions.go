package layer

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/stats"
	"github.com/sells-group/geomap/internal/vector"
)

// KeyByRegion rewrites the join column of table from a region code to the
// feature ID of the feature whose property holds that code, so the table
// joins on v's positional IDs. Feature IDs are left untouched. Records whose
// code matches no feature are dropped; a code shared by two features is an
// error.
func KeyByRegion(v *vector.Layer, table *stats.Table, joinColumn, property string) (*stats.Table, error) {
	if v == nil || table == nil {
		return nil, eris.New("layer: key by region: nil input")
	}
	if len(table.Columns) > 0 && !table.HasColumn(joinColumn) {
		return nil, eris.Wrapf(ErrUnknownColumn, "layer: column %q not in table %s", joinColumn, table.ID)
	}

	ids := make(map[string]string, len(v.Features))
	for _, f := range v.Features {
		code, ok := joinKey(f.Properties[property])
		if !ok {
			continue
		}
		if prev, dup := ids[code]; dup {
			return nil, eris.Wrapf(ErrDuplicateJoinKey, "layer: features %s and %s share %s %q", prev, f.ID, property, code)
		}
		ids[code] = f.ID
	}

	out := &stats.Table{ID: table.ID, Title: table.Title, Columns: table.Columns}
	for _, rec := range table.Records {
		code, ok := joinKey(rec[joinColumn])
		if !ok {
			continue
		}
		id, ok := ids[code]
		if !ok {
			continue
		}
		cp := make(stats.Record, len(rec))
		for k, val := range rec {
			cp[k] = val
		}
		cp[joinColumn] = id
		out.Records = append(out.Records, cp)
	}

	zap.L().Debug("layer: table keyed by region",
		zap.String("table", table.ID),
		zap.String("property", property),
		zap.Int("records", table.Len()),
		zap.Int("kept", out.Len()),
	)
	return out, nil
}
