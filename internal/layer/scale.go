package layer

import (
	"errors"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrUnknownScale reports a color scale name with no palette.
var ErrUnknownScale = errors.New("layer: unknown color scale")

// palettes are the 6-class sequential ColorBrewer schemes.
var palettes = map[string][]string{
	"YlGn":    {"#ffffcc", "#d9f0a3", "#addd8e", "#78c679", "#31a354", "#006837"},
	"YlGnBu":  {"#ffffcc", "#c7e9b4", "#7fcdbb", "#41b6c4", "#2c7fb8", "#253494"},
	"YlOrRd":  {"#ffffb2", "#fed976", "#feb24c", "#fd8d3c", "#f03b20", "#bd0026"},
	"OrRd":    {"#fef0d9", "#fdd49e", "#fdbb84", "#fc8d59", "#e34a33", "#b30000"},
	"BuPu":    {"#edf8fb", "#bfd3e6", "#9ebcda", "#8c96c6", "#8856a7", "#810f7c"},
	"Blues":   {"#eff3ff", "#c6dbef", "#9ecae1", "#6baed6", "#3182bd", "#08519c"},
	"Greens":  {"#edf8e9", "#c7e9c0", "#a1d99b", "#74c476", "#31a354", "#006d2c"},
	"Reds":    {"#fee5d9", "#fcbba1", "#fc9272", "#fb6a4a", "#de2d26", "#a50f15"},
	"Greys":   {"#f7f7f7", "#d9d9d9", "#bdbdbd", "#969696", "#636363", "#252525"},
	"Purples": {"#f2f0f7", "#dadaeb", "#bcbddc", "#9e9ac8", "#756bb1", "#54278f"},
}

// Scale is a named palette binned linearly over [Min, Max].
type Scale struct {
	Name   string
	Colors []string
	Min    float64
	Max    float64
}

// LookupScale returns the palette for name, matched case-insensitively.
func LookupScale(name string) (Scale, error) {
	for key, colors := range palettes {
		if strings.EqualFold(key, name) {
			return Scale{Name: key, Colors: colors}, nil
		}
	}
	return Scale{}, eris.Wrapf(ErrUnknownScale, "layer: scale %q", name)
}

// ScaleNames lists the available palettes in sorted order.
func ScaleNames() []string {
	names := make([]string, 0, len(palettes))
	for k := range palettes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Thresholds returns the len(Colors)+1 bin edges from Min to Max.
func (s Scale) Thresholds() []float64 {
	n := len(s.Colors)
	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = s.Min + (s.Max-s.Min)*float64(i)/float64(n)
	}
	return edges
}

// Color returns the palette color of the bin holding v. Values outside
// [Min, Max] clamp to the first or last bin.
func (s Scale) Color(v float64) string {
	n := len(s.Colors)
	if n == 0 {
		return ""
	}
	if s.Max <= s.Min {
		return s.Colors[0]
	}
	idx := int((v - s.Min) / (s.Max - s.Min) * float64(n))
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s.Colors[idx]
}
