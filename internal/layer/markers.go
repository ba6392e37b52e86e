package layer

import (
	"github.com/sells-group/geomap/internal/canvas"
	"github.com/sells-group/geomap/internal/geocoding"
)

// MarkerStyle controls marker appearance and labels.
type MarkerStyle struct {
	Name        string          `yaml:"name"`
	Icon        string          `yaml:"icon"`
	Prefix      string          `yaml:"prefix"`
	Color       string          `yaml:"color"`
	Tooltip     bool            `yaml:"tooltip"`
	TooltipText string          `yaml:"tooltip_text"`
	Popup       bool            `yaml:"popup"`
	PopupText   string          `yaml:"popup_text"`
	AntPath     []canvas.LatLng `yaml:"ant_path"`
	InControl   bool            `yaml:"control"`
	Overlay     bool            `yaml:"overlay"`
	Show        bool            `yaml:"show"`
}

// DefaultMarkerStyle is an orange Font Awesome map pin without labels.
func DefaultMarkerStyle() MarkerStyle {
	return MarkerStyle{
		Name:      "Locations",
		Icon:      "map-pin",
		Prefix:    "fa",
		Color:     "orange",
		InControl: true,
		Overlay:   true,
		Show:      true,
	}
}

// Marker is one point marker.
type Marker struct {
	Position canvas.LatLng
	Icon     string
	Prefix   string
	Color    string
	Tooltip  string
	Popup    string
	Path     []canvas.LatLng
}

// MarkerLayer is an ordered set of markers.
type MarkerLayer struct {
	canvas.Attachment

	Style   MarkerStyle
	Markers []Marker
}

// LayerName implements canvas.Layer.
func (m *MarkerLayer) LayerName() string { return m.Style.Name }

// InControl implements canvas.Layer.
func (m *MarkerLayer) InControl() bool { return m.Style.InControl }

// IsOverlay implements canvas.Layer.
func (m *MarkerLayer) IsOverlay() bool { return m.Style.Overlay }

// Visible implements canvas.Layer.
func (m *MarkerLayer) Visible() bool { return m.Style.Show }

// AttachTo attaches the layer to cv.
func (m *MarkerLayer) AttachTo(cv *canvas.Canvas) error { return cv.Attach(m) }

// BuildMarkers creates one marker per resolved result, in result order.
// Unresolved results and results with unusable coordinates are skipped.
func BuildMarkers(results []geocoding.Result, style MarkerStyle) *MarkerLayer {
	ml := &MarkerLayer{Style: style}
	for _, r := range results {
		pos := canvas.LatLng{Lat: r.Latitude, Lng: r.Longitude}
		if !r.Resolved || !pos.Valid() {
			continue
		}
		label := labelFor(r, style)
		m := Marker{
			Position: pos,
			Icon:     style.Icon,
			Prefix:   style.Prefix,
			Color:    style.Color,
			Path:     style.AntPath,
		}
		if style.Tooltip {
			m.Tooltip = label
		}
		if style.Popup {
			m.Popup = style.PopupText
			if m.Popup == "" {
				m.Popup = label
			}
		}
		ml.Markers = append(ml.Markers, m)
	}
	return ml
}

// labelFor picks the tooltip text: the configured text, else the
// geocoder's display name, else the record name.
func labelFor(r geocoding.Result, style MarkerStyle) string {
	switch {
	case style.TooltipText != "":
		return style.TooltipText
	case r.DisplayName != "":
		return r.DisplayName
	default:
		return r.Record.Name
	}
}

// ResolvedCenter returns the arithmetic mean of the resolved coordinates.
func ResolvedCenter(results []geocoding.Result) (canvas.LatLng, bool) {
	var lat, lng float64
	n := 0
	for _, r := range results {
		if !r.Resolved || !(canvas.LatLng{Lat: r.Latitude, Lng: r.Longitude}).Valid() {
			continue
		}
		lat += r.Latitude
		lng += r.Longitude
		n++
	}
	if n == 0 {
		return canvas.LatLng{}, false
	}
	return canvas.LatLng{Lat: lat / float64(n), Lng: lng / float64(n)}, true
}
