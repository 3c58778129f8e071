// Package chart builds the bar charts and histograms produced by the
// pipeline on top of gonum/plot, and saves them as PNG files.
//
// Bar colors come from an evenly spaced HSV palette built with go-colorful.
package chart

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Bar is one category of a bar chart.
type Bar struct {
	Label string
	Value float64
}

// BarChart describes a categorical chart, one bar per category in the
// order given.
type BarChart struct {
	Title  string
	XLabel string
	YLabel string
	Bars   []Bar
}

// Histogram describes a histogram of Values grouped into Bins equal-width
// bins.
type Histogram struct {
	Title  string
	XLabel string
	YLabel string
	Values []float64
	Bins   int
}

// TitleFor returns the title used for a distribution chart of column, e.g.
// "overall_sentiment" becomes "Overall Sentiment Distribution".
func TitleFor(column string) string {
	words := strings.ReplaceAll(column, "_", " ")
	return cases.Title(language.English).String(words) + " Distribution"
}

// Plot builds c for a canvas of the given width. A chart with no bars still
// gets its title and axes.
func (c BarChart) Plot(width vg.Length) (*plot.Plot, error) {
	p := newPlot(c.Title, c.XLabel, c.YLabel)
	if len(c.Bars) == 0 {
		return p, nil
	}

	colors := Palette(len(c.Bars))
	barWidth := barWidth(width, len(c.Bars))
	names := make([]string, len(c.Bars))
	for i, b := range c.Bars {
		names[i] = b.Label

		// One series per bar so each category gets its own color.
		bars, err := plotter.NewBarChart(plotter.Values{b.Value}, barWidth)
		if err != nil {
			return nil, fmt.Errorf("bar %q: %w", b.Label, err)
		}
		bars.XMin = float64(i)
		bars.Color = colors[i]
		bars.LineStyle.Width = 0
		p.Add(bars)
	}
	p.NominalX(names...)
	return p, nil
}

// String renders a short description, used in logs.
func (c BarChart) String() string {
	return fmt.Sprintf("%q (%d bars)", c.Title, len(c.Bars))
}

// Plot builds h. Without values only the title and axes are drawn.
func (h Histogram) Plot() (*plot.Plot, error) {
	p := newPlot(h.Title, h.XLabel, h.YLabel)
	if len(h.Values) == 0 {
		return p, nil
	}
	hist, err := newHist(h.Values, h.Bins)
	if err != nil {
		return nil, err
	}
	p.Add(hist)
	return p, nil
}

func newHist(values []float64, bins int) (*plotter.Histogram, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("invalid bin count %d", bins)
	}
	hist, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return nil, fmt.Errorf("failed to bin values: %w", err)
	}
	hist.FillColor = Palette(1)[0]
	return hist, nil
}

func newPlot(title, xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	return p
}

// barWidth leaves about 30% of each category slot empty. The data area is
// taken as the canvas width less one inch for the axis and margins.
func barWidth(width vg.Length, n int) vg.Length {
	if width <= 0 {
		width = DefaultWidth
	}
	w := (width - vg.Inch) * 0.7 / vg.Length(n)
	if w < vg.Points(1) {
		w = vg.Points(1)
	}
	return w
}
