package chart

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette returns n distinct, deterministic bar colors with evenly spaced
// hues starting from a muted blue.
func Palette(n int) []color.NRGBA {
	out := make([]color.NRGBA, n)
	for i := range out {
		hue := 210 + 360*float64(i)/float64(n)
		for hue >= 360 {
			hue -= 360
		}
		r, g, b := colorful.Hsv(hue, 0.55, 0.8).Clamped().RGB255()
		out[i] = color.NRGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}
