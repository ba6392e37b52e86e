package canvas

import "fmt"

// ControlEntry is one row of the layer control.
type ControlEntry struct {
	Name    string
	Overlay bool
	Show    bool
}

// Document is a snapshot of a canvas ready for rendering. Controls are
// listed in the order they are added to the map; the layer control, when
// enabled, is always last so it enumerates every attached layer.
type Document struct {
	Center       LatLng
	Zoom         int
	Tile         Tile
	ScaleControl bool
	ZoomControl  bool
	Fullscreen   bool
	Minimap      bool
	Spiderfy     bool
	Layers       []Layer
	Controls     []string
	LayerControl []ControlEntry
}

// Control names used in Document.Controls.
const (
	ControlScale        = "scale"
	ControlFullscreen   = "fullscreen"
	ControlMinimap      = "minimap"
	ControlSpiderfy     = "spiderfy"
	ControlLayerControl = "layer_control"
)

// Document snapshots the canvas. Scale control is always on and the
// top-level zoom control is always off.
func (c *Canvas) Document() Document {
	doc := Document{
		Center:       c.center,
		Zoom:         c.zoom,
		Tile:         c.tile,
		ScaleControl: true,
		Fullscreen:   c.cfg.Fullscreen,
		Minimap:      c.cfg.Minimap,
		Spiderfy:     c.cfg.Spiderfy,
		Layers:       c.Layers(),
		Controls:     []string{ControlScale},
	}
	if c.cfg.Fullscreen {
		doc.Controls = append(doc.Controls, ControlFullscreen)
	}
	if c.cfg.Minimap {
		doc.Controls = append(doc.Controls, ControlMinimap)
	}
	if c.cfg.Spiderfy {
		doc.Controls = append(doc.Controls, ControlSpiderfy)
	}
	if c.cfg.LayerControl {
		seen := make(map[string]bool)
		for _, l := range doc.Layers {
			if l.InControl() {
				doc.LayerControl = append(doc.LayerControl, ControlEntry{
					Name:    uniqueName(seen, l.LayerName()),
					Overlay: l.IsOverlay(),
					Show:    l.Visible(),
				})
			}
		}
		doc.Controls = append(doc.Controls, ControlLayerControl)
	}
	return doc
}

// uniqueName suffixes repeated control names with " (2)", " (3)" and so on;
// the layer control is keyed by name.
func uniqueName(seen map[string]bool, name string) string {
	out := name
	for n := 2; seen[out]; n++ {
		out = fmt.Sprintf("%s (%d)", name, n)
	}
	seen[out] = true
	return out
}
