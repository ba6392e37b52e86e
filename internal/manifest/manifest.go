// Package manifest describes a composed map in YAML and builds it.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geomap/internal/canvas"
	"github.com/sells-group/geomap/internal/geocoding"
	"github.com/sells-group/geomap/internal/layer"
)

// Layer types.
const (
	TypeChoropleth = "choropleth"
	TypeMarkers    = "markers"
)

// DefaultOutput is the HTML path used when a manifest names none.
const DefaultOutput = "map.html"

// Manifest is a map composition: canvas options, an ordered layer list and
// the output path.
type Manifest struct {
	Title  string      `yaml:"title"`
	Output string      `yaml:"output"`
	Canvas CanvasSpec  `yaml:"canvas"`
	Layers []LayerSpec `yaml:"layers"`
}

// CanvasSpec overrides canvas settings. Unset fields keep the base config.
type CanvasSpec struct {
	Center       *canvas.LatLng `yaml:"center"`
	Zoom         int            `yaml:"zoom"`
	Tile         string         `yaml:"tile"`
	Fullscreen   *bool          `yaml:"fullscreen"`
	LayerControl *bool          `yaml:"layer_control"`
	Minimap      *bool          `yaml:"minimap"`
	Spiderfy     *bool          `yaml:"spiderfy"`
}

// Apply overlays s onto base.
func (s CanvasSpec) Apply(base canvas.Config) canvas.Config {
	if s.Center != nil {
		c := *s.Center
		base.Center = &c
	}
	if s.Zoom > 0 {
		base.Zoom = s.Zoom
	}
	if s.Tile != "" {
		base.Tile = s.Tile
	}
	if s.Fullscreen != nil {
		base.Fullscreen = *s.Fullscreen
	}
	if s.LayerControl != nil {
		base.LayerControl = *s.LayerControl
	}
	if s.Minimap != nil {
		base.Minimap = *s.Minimap
	}
	if s.Spiderfy != nil {
		base.Spiderfy = *s.Spiderfy
	}
	return base
}

// LayerSpec is one layer of the composition. Choropleth layers use Source,
// CRS, Stats, Value and Join; marker layers use Addresses. The "style" key
// is decoded into ChoroplethStyle or MarkerStyle according to Type, on top
// of the package defaults.
type LayerSpec struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`

	Source     string   `yaml:"source"`
	CRS        string   `yaml:"crs"`
	FeatureKey string   `yaml:"feature_key"`
	Stats      string   `yaml:"stats"`
	Filter     string   `yaml:"filter"`
	Select     []string `yaml:"select"`
	Value      string   `yaml:"value"`
	Join       string   `yaml:"join"`

	Addresses string               `yaml:"addresses"`
	Sheet     string               `yaml:"sheet"`
	Columns   *geocoding.ColumnMap `yaml:"columns"`

	ChoroplethStyle layer.ChoroplethStyle `yaml:"-"`
	MarkerStyle     layer.MarkerStyle     `yaml:"-"`
}

type plainLayer LayerSpec

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *LayerSpec) UnmarshalYAML(n *yaml.Node) error {
	var aux struct {
		Spec  plainLayer `yaml:",inline"`
		Style yaml.Node  `yaml:"style"`
	}
	if err := n.Decode(&aux); err != nil {
		return err
	}
	spec := LayerSpec(aux.Spec)
	spec.Type = strings.ToLower(strings.TrimSpace(spec.Type))
	spec.ChoroplethStyle = layer.DefaultChoroplethStyle()
	spec.MarkerStyle = layer.DefaultMarkerStyle()

	if aux.Style.Kind != 0 {
		var err error
		switch spec.Type {
		case TypeChoropleth:
			err = aux.Style.Decode(&spec.ChoroplethStyle)
		case TypeMarkers:
			err = aux.Style.Decode(&spec.MarkerStyle)
		}
		if err != nil {
			return err
		}
	}
	if spec.Name != "" {
		spec.ChoroplethStyle.Name = spec.Name
		spec.MarkerStyle.Name = spec.Name
	}
	*l = spec
	return nil
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "manifest: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a manifest. Unknown top-level keys are
// rejected.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, eris.Wrap(err, "manifest: parse")
	}
	if m.Output == "" {
		m.Output = DefaultOutput
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every layer names the inputs its type needs.
func (m *Manifest) Validate() error {
	if len(m.Layers) == 0 {
		return eris.New("manifest: no layers")
	}
	var errs []string
	for i, l := range m.Layers {
		switch l.Type {
		case TypeChoropleth:
			for _, req := range []struct{ key, val string }{
				{"source", l.Source}, {"stats", l.Stats}, {"value", l.Value}, {"join", l.Join},
			} {
				if req.val == "" {
					errs = append(errs, fmt.Sprintf("layers[%d]: %s is required", i, req.key))
				}
			}
		case TypeMarkers:
			if l.Addresses == "" {
				errs = append(errs, fmt.Sprintf("layers[%d]: addresses is required", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("layers[%d]: unknown type %q", i, l.Type))
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("manifest: %s", strings.Join(errs, "; "))
	}
	return nil
}
