package chart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// DPI is the resolution of saved charts; the default size is 1000x600
// pixels.
const DPI = 100

// Default canvas size.
const (
	DefaultWidth  vg.Length = 10 * vg.Inch
	DefaultHeight vg.Length = 6 * vg.Inch
)

// Save renders p at width x height and writes it to path as PNG, replacing
// any existing file. The directory must exist.
func Save(p *plot.Plot, width, height vg.Length, path string) error {
	c := newCanvas(width, height)
	p.Draw(draw.New(c))
	return writePNG(c, path)
}

// SaveRow renders plots side by side, each in an equal share of a
// width x height canvas, and writes the result to path as PNG.
func SaveRow(plots []*plot.Plot, width, height vg.Length, path string) error {
	if len(plots) == 0 {
		return errors.New("no plots to save")
	}
	c := newCanvas(width, height)
	tiles := draw.Tiles{Rows: 1, Cols: len(plots), PadX: vg.Millimeter}
	canvases := plot.Align([][]*plot.Plot{plots}, tiles, draw.New(c))
	for i, p := range plots {
		if p != nil {
			p.Draw(canvases[0][i])
		}
	}
	return writePNG(c, path)
}

// RenderPNG builds c and saves it to path at the default size.
func RenderPNG(c BarChart, path string) error {
	p, err := c.Plot(DefaultWidth)
	if err != nil {
		return err
	}
	return Save(p, DefaultWidth, DefaultHeight, path)
}

func newCanvas(width, height vg.Length) *vgimg.Canvas {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(DPI))
}

// writePNG encodes c into a temporary file next to path and renames it into
// place.
func writePNG(c *vgimg.Canvas, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".chart-*.png")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode chart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close chart file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move chart into place: %w", err)
	}
	return nil
}
