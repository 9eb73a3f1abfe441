package debugviz

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotRenderer draws a front view of a scene as a PNG chart.
type PlotRenderer struct {
	Title string
	Size  vg.Length
}

// NewPlotRenderer creates a square PNG renderer.
func NewPlotRenderer(title string) *PlotRenderer {
	return &PlotRenderer{Title: title, Size: 4 * vg.Inch}
}

// Render writes the scene as a PNG image.
func (r *PlotRenderer) Render(w io.Writer, s Scene) error {
	p := plot.New()
	p.Title.Text = r.Title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	for _, c := range s.Connectors {
		if !c.Visible {
			continue
		}
		half := c.Up
		pts := plotter.XYs{
			{X: c.Position.X - half.X*c.Scale.Y, Y: c.Position.Y - half.Y*c.Scale.Y},
			{X: c.Position.X + half.X*c.Scale.Y, Y: c.Position.Y + half.Y*c.Scale.Y},
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("connector %s-%s: %w", c.From, c.To, err)
		}
		line.Color = c.Color
		line.Width = vg.Points(2)
		p.Add(line)
	}

	var pts plotter.XYs
	for _, m := range s.Markers {
		if m.Visible {
			pts = append(pts, plotter.XY{X: m.Position.X, Y: m.Position.Y})
		}
	}
	if len(pts) > 0 {
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("markers: %w", err)
		}
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
	}

	wt, err := p.WriterTo(r.Size, r.Size, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// ContentType implements Renderer.
func (r *PlotRenderer) ContentType() string {
	return "image/png"
}
