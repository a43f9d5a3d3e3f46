package visualization

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"orientsearch/pkg/similarity"
)

// frcThreshold is the correlation level that defines the resolution
const frcThreshold = 0.5

// FRCPlot builds a plot of an FRC curve against spatial frequency in 1/Å,
// with the 0.5 threshold as a reference line. size is the image size the
// curve was computed from.
func FRCPlot(score similarity.Score, size int) (*plot.Plot, error) {
	if len(score.FRCCurve) < 2 || size <= 0 || score.PixelSize <= 0 {
		return nil, fmt.Errorf("no FRC curve to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("FRC: %.1f Å, %d stars", score.ResolutionAngstrom, score.Stars)
	p.X.Label.Text = "Spatial frequency (1/Å)"
	p.Y.Label.Text = "FRC"
	p.Y.Min, p.Y.Max = -0.2, 1.05
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(score.FRCCurve))
	for r, v := range score.FRCCurve {
		xys[r].X = float64(r) / (float64(size) * score.PixelSize)
		xys[r].Y = v
	}
	ln, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	ln.LineStyle.Width = vg.Points(2)
	ln.LineStyle.Color = plotutil.Color(0)
	p.Add(ln)
	p.Legend.Add("FRC", ln)

	threshold := plotter.XYs{{X: 0, Y: frcThreshold}, {X: xys[len(xys)-1].X, Y: frcThreshold}}
	th, err := plotter.NewLine(threshold)
	if err != nil {
		return nil, err
	}
	th.LineStyle.Width = vg.Points(1)
	th.LineStyle.Color = plotutil.Color(1)
	th.LineStyle.Dashes = plotutil.Dashes(1)
	p.Add(th)
	p.Legend.Add("0.5", th)

	return p, nil
}

// SaveFRCPlot writes the FRC curve of score to name in the output
// directory and returns the path written
func (v *Viewer) SaveFRCPlot(score similarity.Score, size int, name string) (string, error) {
	p, err := FRCPlot(score, size)
	if err != nil {
		return "", err
	}
	path := filepath.Join(v.outputDir, name)
	if err := mkdirFor(path); err != nil {
		return "", err
	}
	return path, p.Save(6*vg.Inch, 4*vg.Inch, path)
}
