package chart

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Default PNG export size.
const (
	DefaultWidth  = 14 * vg.Inch
	DefaultHeight = 6 * vg.Inch
)

func newPlot(series []Series, o Options) (*plot.Plot, error) {
	o = o.withDefaults()

	p := plot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = o.XLabel
	p.Y.Label.Text = o.YLabel
	p.Y.Min = YMin
	p.Y.Max = YMax
	p.Add(plotter.NewGrid())

	for i, s := range series {
		if len(s.Samples) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(s.Samples))
		for j, v := range s.Samples {
			pts[j] = plotter.XY{X: float64(j), Y: float64(v)}
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", s.ID, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		points.Color = plotutil.Color(i)
		points.Shape = draw.CircleGlyph{}
		points.Radius = vg.Points(1.5)
		p.Add(line, points)
		p.Legend.Add(o.legend(s), line, points)
	}

	p.Legend.Top = false
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = 10
	return p, nil
}

// WritePNG renders series as a PNG image to w.
func WritePNG(w io.Writer, series []Series, o Options) error {
	p, err := newPlot(series, o)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG renders series to a file. The format follows the file extension
// (png, svg, pdf, ...), defaulting to png when there is none.
func SavePNG(path string, series []Series, o Options) error {
	if filepath.Ext(path) == "" {
		path += ".png"
	}
	p, err := newPlot(series, o)
	if err != nil {
		return err
	}
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}

// IsImageExt reports whether ext (with or without the dot) is a format
// SavePNG can write.
func IsImageExt(ext string) bool {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png", "jpg", "jpeg", "svg", "pdf", "eps", "tif", "tiff":
		return true
	}
	return false
}
