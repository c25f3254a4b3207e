package layers

import (
	"image/color"
	"strings"
)

// Style is the single-symbol rendering applied to a new layer.
type Style struct {
	Kind  string     `json:"kind"`
	Color color.RGBA `json:"color"`
	// Size is the marker size of point layers.
	Size float64 `json:"size,omitempty"`
	// Width is the stroke width of line layers.
	Width float64 `json:"width,omitempty"`
}

// StyleFor returns the default style for a geometry type name such as POINT,
// MULTILINESTRING or POLYGON. Unknown types get no style.
func StyleFor(geomType string) (Style, bool) {
	t := strings.ToLower(geomType)
	switch {
	case strings.Contains(t, "point"):
		return Style{Kind: "point", Color: color.RGBA{R: 255, A: 180}, Size: 4}, true
	case strings.Contains(t, "line"):
		return Style{Kind: "line", Color: color.RGBA{G: 255, A: 180}, Width: 2}, true
	case strings.Contains(t, "polygon"):
		return Style{Kind: "polygon", Color: color.RGBA{B: 255, A: 100}}, true
	}
	return Style{}, false
}
