// Package render writes a canvas document as a standalone Leaflet HTML page.
package render

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/canvas"
	"github.com/sells-group/geomap/internal/layer"
	"github.com/sells-group/geomap/internal/vector"
)

//go:embed map.html.tmpl
var pageSource string

var page = template.Must(template.New("map").Parse(pageSource))

// Stylesheets and scripts loaded by the rendered page.
var (
	Stylesheets = []string{
		"https://unpkg.com/leaflet@1.9.4/dist/leaflet.css",
		"https://cdn.jsdelivr.net/npm/@fortawesome/fontawesome-free@6.5.2/css/all.min.css",
		"https://cdnjs.cloudflare.com/ajax/libs/Leaflet.awesome-markers/2.0.2/leaflet.awesome-markers.css",
		"https://unpkg.com/leaflet.fullscreen@3.0.2/Control.FullScreen.css",
		"https://unpkg.com/leaflet-minimap@3.6.1/dist/Control.MiniMap.min.css",
	}
	Scripts = []string{
		"https://unpkg.com/leaflet@1.9.4/dist/leaflet.js",
		"https://cdnjs.cloudflare.com/ajax/libs/Leaflet.awesome-markers/2.0.2/leaflet.awesome-markers.js",
		"https://unpkg.com/leaflet.fullscreen@3.0.2/Control.FullScreen.js",
		"https://unpkg.com/leaflet-minimap@3.6.1/dist/Control.MiniMap.min.js",
		"https://cdnjs.cloudflare.com/ajax/libs/OverlappingMarkerSpiderfier-Leaflet/0.2.6/oms.min.js",
		"https://unpkg.com/leaflet-ant-path@1.3.0/dist/leaflet-ant-path.js",
	}
)

// idNamespace seeds the deterministic DOM ids of rendered layers.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/sells-group/geomap/layers"))

// Option adjusts rendering.
type Option func(*options)

type options struct {
	title string
}

// WithTitle sets the HTML document title.
func WithTitle(title string) Option {
	return func(o *options) { o.title = title }
}

type pageData struct {
	Title   string
	Styles  []string
	Scripts []string
	Map     template.JS
}

type mapView struct {
	Center       [2]float64    `json:"center"`
	Zoom         int           `json:"zoom"`
	ZoomControl  bool          `json:"zoomControl"`
	Tile         tileView      `json:"tile"`
	Layers       []layerView   `json:"layers"`
	Controls     []string      `json:"controls"`
	LayerControl []controlView `json:"layerControl"`
}

type tileView struct {
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"maxZoom"`
}

type layerView struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Name    string          `json:"name"`
	Show    bool            `json:"show"`
	Data    json.RawMessage `json:"data,omitempty"`
	Style   *styleView      `json:"style,omitempty"`
	Legend  *legendView     `json:"legend,omitempty"`
	Markers []markerView    `json:"markers,omitempty"`
}

type styleView struct {
	FillOpacity float64 `json:"fillOpacity"`
	LineOpacity float64 `json:"lineOpacity"`
	Highlight   bool    `json:"highlight"`
}

type legendView struct {
	Caption    string    `json:"caption"`
	Colors     []string  `json:"colors"`
	Thresholds []float64 `json:"thresholds"`
}

type markerView struct {
	Lat     float64      `json:"lat"`
	Lng     float64      `json:"lng"`
	Icon    string       `json:"icon"`
	Prefix  string       `json:"prefix"`
	Color   string       `json:"color"`
	Tooltip string       `json:"tooltip,omitempty"`
	Popup   string       `json:"popup,omitempty"`
	Path    [][2]float64 `json:"path,omitempty"`
}

type controlView struct {
	Name    string `json:"name"`
	LayerID string `json:"layerId"`
	Overlay bool   `json:"overlay"`
}

type featureCollection struct {
	Type     string        `json:"type"`
	Features []featureView `json:"features"`
}

type featureView struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// LayerID returns the DOM id used for the layer at position i.
func LayerID(i int, name string) string {
	id := uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%d:%s", i, name)))
	return "layer_" + strings.ReplaceAll(id.String(), "-", "")
}

// HTML writes doc to w as a Leaflet page. Geometry is converted from the
// layer projection back to WGS84; layers keep their attach order.
func HTML(w io.Writer, doc canvas.Document, opts ...Option) error {
	o := options{title: "geomap"}
	for _, opt := range opts {
		opt(&o)
	}

	mv, err := buildMap(doc)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(mv)
	if err != nil {
		return eris.Wrap(err, "render: encode map")
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, pageData{
		Title:   o.title,
		Styles:  Stylesheets,
		Scripts: Scripts,
		Map:     template.JS(payload),
	}); err != nil {
		return eris.Wrap(err, "render: execute template")
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return eris.Wrap(err, "render: write html")
	}
	return nil
}

// WriteFile renders doc into path, creating parent directories. Nothing is
// written when rendering fails.
func WriteFile(path string, doc canvas.Document, opts ...Option) error {
	var buf bytes.Buffer
	if err := HTML(&buf, doc, opts...); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "render: create %s", dir)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "render: write %s", path)
	}
	zap.L().Info("render: map written",
		zap.String("path", path),
		zap.Int("layers", len(doc.Layers)),
		zap.Int("bytes", buf.Len()),
	)
	return nil
}

func buildMap(doc canvas.Document) (mapView, error) {
	mv := mapView{
		Center:      [2]float64{doc.Center.Lat, doc.Center.Lng},
		Zoom:        doc.Zoom,
		ZoomControl: doc.ZoomControl,
		Tile: tileView{
			URL:         doc.Tile.URL,
			Attribution: doc.Tile.Attribution,
			MaxZoom:     doc.Tile.MaxZoom,
		},
		Controls: doc.Controls,
		Layers:   make([]layerView, 0, len(doc.Layers)),
	}

	var controlled []string
	for i, l := range doc.Layers {
		lv, err := buildLayer(i, l)
		if err != nil {
			return mapView{}, err
		}
		mv.Layers = append(mv.Layers, lv)
		if l.InControl() {
			controlled = append(controlled, lv.ID)
		}
	}

	// Document lists control entries for in-control layers in attach order.
	for i, e := range doc.LayerControl {
		cv := controlView{Name: e.Name, Overlay: e.Overlay}
		if i < len(controlled) {
			cv.LayerID = controlled[i]
		}
		mv.LayerControl = append(mv.LayerControl, cv)
	}
	return mv, nil
}

func buildLayer(i int, l canvas.Layer) (layerView, error) {
	lv := layerView{ID: LayerID(i, l.LayerName()), Name: l.LayerName(), Show: l.Visible()}
	switch t := l.(type) {
	case *layer.Choropleth:
		data, err := choroplethData(t)
		if err != nil {
			return layerView{}, eris.Wrapf(err, "render: layer %q", l.LayerName())
		}
		lv.Kind = "choropleth"
		lv.Data = data
		lv.Style = &styleView{
			FillOpacity: t.Style.FillOpacity,
			LineOpacity: t.Style.LineOpacity,
			Highlight:   t.Style.Highlight,
		}
		if t.Matched() > 0 {
			lv.Legend = &legendView{
				Caption:    t.Legend(),
				Colors:     t.Scale.Colors,
				Thresholds: t.Scale.Thresholds(),
			}
		}
	case *layer.MarkerLayer:
		lv.Kind = "markers"
		lv.Markers = make([]markerView, 0, len(t.Markers))
		for _, m := range t.Markers {
			mv := markerView{
				Lat:     m.Position.Lat,
				Lng:     m.Position.Lng,
				Icon:    m.Icon,
				Prefix:  m.Prefix,
				Color:   m.Color,
				Tooltip: m.Tooltip,
				Popup:   m.Popup,
			}
			for _, p := range m.Path {
				mv.Path = append(mv.Path, [2]float64{p.Lat, p.Lng})
			}
			lv.Markers = append(lv.Markers, mv)
		}
	default:
		return layerView{}, eris.Errorf("render: unsupported layer type %T", l)
	}
	return lv, nil
}

// choroplethData encodes the features as a WGS84 GeoJSON FeatureCollection.
// Each feature carries its fill color in "_fill" and its value in "_value".
func choroplethData(c *layer.Choropleth) (json.RawMessage, error) {
	crs := c.CRS
	if crs.IsZero() {
		crs = vector.WorkingCRS
	}
	toWGS84, err := vector.NewTransform(crs, vector.WGS84)
	if err != nil {
		return nil, err
	}

	fc := featureCollection{Type: "FeatureCollection", Features: make([]featureView, 0, len(c.Features))}
	for _, f := range c.Features {
		g := vector.Clone(f.Geometry)
		if err := vector.Reproject(g, toWGS84); err != nil {
			return nil, eris.Wrapf(err, "render: feature %s", f.ID)
		}
		raw, err := vector.EncodeGeometry(g)
		if err != nil {
			return nil, eris.Wrapf(err, "render: feature %s", f.ID)
		}

		props := make(map[string]any, len(f.Properties)+2)
		for k, v := range f.Properties {
			props[k] = v
		}
		props["_fill"] = f.Color
		if f.HasValue {
			props["_value"] = f.Value
		} else {
			props["_value"] = nil
		}
		fc.Features = append(fc.Features, featureView{
			Type:       "Feature",
			ID:         f.ID,
			Geometry:   raw,
			Properties: props,
		})
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, eris.Wrap(err, "render: encode features")
	}
	return data, nil
}
