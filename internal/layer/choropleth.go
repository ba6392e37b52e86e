// Package layer builds renderable map layers from projected vector data,
// statistics tables and geocoding results.
package layer

import (
	"errors"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/canvas"
	"github.com/sells-group/geomap/internal/stats"
	"github.com/sells-group/geomap/internal/vector"
)

var (
	// ErrDuplicateJoinKey reports two statistics records with the same join key.
	ErrDuplicateJoinKey = errors.New("layer: duplicate join key")
	// ErrNotProjected reports a vector layer outside the working projection.
	ErrNotProjected = errors.New("layer: vector layer is not in the working projection")
	// ErrUnknownColumn reports a column missing from the statistics table.
	ErrUnknownColumn = errors.New("layer: unknown column")
)

// ChoroplethStyle controls how a choropleth is drawn and listed.
type ChoroplethStyle struct {
	Scale        string  `yaml:"scale"`
	MissingColor string  `yaml:"missing_color"`
	Legend       string  `yaml:"legend"`
	Name         string  `yaml:"name"`
	FillOpacity  float64 `yaml:"fill_opacity"`
	LineOpacity  float64 `yaml:"line_opacity"`
	Highlight    bool    `yaml:"highlight"`
	InControl    bool    `yaml:"control"`
	Overlay      bool    `yaml:"overlay"`
	Show         bool    `yaml:"show"`
}

// DefaultChoroplethStyle highlights on hover, is listed in the layer
// control as a base layer and is shown initially.
func DefaultChoroplethStyle() ChoroplethStyle {
	return ChoroplethStyle{
		Scale:        "YlGn",
		MissingColor: "#000000",
		FillOpacity:  0.6,
		LineOpacity:  1,
		Highlight:    true,
		InControl:    true,
		Show:         true,
	}
}

// ChoroplethFeature is a feature with its joined value and fill color.
type ChoroplethFeature struct {
	ID         string
	Geometry   geom.T
	Properties map[string]any
	Value      float64
	HasValue   bool
	Color      string
}

// Choropleth is a vector layer colored by a joined statistics column.
type Choropleth struct {
	canvas.Attachment

	Style       ChoroplethStyle
	ValueColumn string
	JoinColumn  string
	Scale       Scale
	Features    []ChoroplethFeature
	CRS         vector.CRS
}

// LayerName implements canvas.Layer.
func (c *Choropleth) LayerName() string {
	if c.Style.Name != "" {
		return c.Style.Name
	}
	return c.ValueColumn
}

// InControl implements canvas.Layer.
func (c *Choropleth) InControl() bool { return c.Style.InControl }

// IsOverlay implements canvas.Layer.
func (c *Choropleth) IsOverlay() bool { return c.Style.Overlay }

// Visible implements canvas.Layer.
func (c *Choropleth) Visible() bool { return c.Style.Show }

// AttachTo attaches the layer to cv.
func (c *Choropleth) AttachTo(cv *canvas.Canvas) error { return cv.Attach(c) }

// Matched returns the number of features colored by value.
func (c *Choropleth) Matched() int {
	n := 0
	for _, f := range c.Features {
		if f.HasValue {
			n++
		}
	}
	return n
}

// Legend returns the legend caption, falling back to the value column.
func (c *Choropleth) Legend() string {
	if c.Style.Legend != "" {
		return c.Style.Legend
	}
	return c.ValueColumn
}

// BuildChoropleth joins table onto v by feature ID: a feature takes the
// value of the record whose joinColumn equals its ID. Features with no
// record, or whose record has no numeric value, get the missing color.
// Duplicate join keys are rejected with ErrDuplicateJoinKey.
func BuildChoropleth(v *vector.Layer, table *stats.Table, valueColumn, joinColumn string, style ChoroplethStyle) (*Choropleth, error) {
	if !v.Projected() {
		return nil, eris.Wrap(ErrNotProjected, "layer: build choropleth")
	}
	if table == nil {
		return nil, eris.New("layer: nil statistics table")
	}
	for _, col := range []string{valueColumn, joinColumn} {
		if len(table.Columns) > 0 && !table.HasColumn(col) {
			return nil, eris.Wrapf(ErrUnknownColumn, "layer: column %q not in table %s", col, table.ID)
		}
	}
	scale, err := LookupScale(style.Scale)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]stats.Record, table.Len())
	for i, rec := range table.Records {
		key, ok := joinKey(rec[joinColumn])
		if !ok {
			continue
		}
		if _, dup := byKey[key]; dup {
			return nil, eris.Wrapf(ErrDuplicateJoinKey, "layer: key %q repeated at record %d", key, i)
		}
		byKey[key] = rec
	}

	out := &Choropleth{
		Style:       style,
		ValueColumn: valueColumn,
		JoinColumn:  joinColumn,
		Features:    make([]ChoroplethFeature, len(v.Features)),
		CRS:         v.CRS,
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i, f := range v.Features {
		cf := ChoroplethFeature{ID: f.ID, Geometry: f.Geometry, Properties: f.Properties}
		if rec, ok := byKey[f.ID]; ok {
			if val, ok := numeric(rec[valueColumn]); ok {
				cf.Value, cf.HasValue = val, true
				lo, hi = math.Min(lo, val), math.Max(hi, val)
			}
		}
		out.Features[i] = cf
	}

	if math.IsInf(lo, 1) {
		lo, hi = 0, 0
	}
	scale.Min, scale.Max = lo, hi
	out.Scale = scale
	for i := range out.Features {
		if out.Features[i].HasValue {
			out.Features[i].Color = scale.Color(out.Features[i].Value)
		} else {
			out.Features[i].Color = style.MissingColor
		}
	}

	zap.L().Debug("layer: choropleth built",
		zap.String("name", out.LayerName()),
		zap.Int("features", len(out.Features)),
		zap.Int("matched", out.Matched()),
	)
	return out, nil
}
