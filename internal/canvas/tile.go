package canvas

import "strings"

// Tile is a basemap tile source.
type Tile struct {
	Name        string
	URL         string
	Attribution string
	MaxZoom     int
}

var knownTiles = map[string]Tile{
	"openstreetmap": {
		Name:        "openstreetmap",
		URL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
		MaxZoom:     19,
	},
	"cartodbpositron": {
		Name:        "cartodbpositron",
		URL:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
		Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>`,
		MaxZoom:     20,
	},
	"cartodbdark_matter": {
		Name:        "cartodbdark_matter",
		URL:         "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png",
		Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>`,
		MaxZoom:     20,
	},
}

// ResolveTile maps a tile name to its source. Names are matched
// case-insensitively; anything unknown is used as a URL template. An empty
// name selects DefaultTile.
func ResolveTile(name string) Tile {
	if strings.TrimSpace(name) == "" {
		name = DefaultTile
	}
	if t, ok := knownTiles[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t
	}
	return Tile{Name: "custom", URL: name, MaxZoom: 18}
}

// KnownTile reports whether name is a built-in basemap.
func KnownTile(name string) bool {
	_, ok := knownTiles[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
