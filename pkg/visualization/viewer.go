// Package visualization writes session images to disk: projections as
// grayscale PNG/JPEG, exploration heat-maps of the viewing-direction discs
// and FRC curves.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	xdraw "golang.org/x/image/draw"

	"orientsearch/pkg/hexgrid"
	"orientsearch/pkg/refinement"
)

// Viewer saves images into an output directory
type Viewer struct {
	// outputDir is created on first save
	outputDir string

	// scale is the integer upscaling factor applied to projections
	scale int
}

// NewViewer creates a viewer writing into outputDir. A scale below 1 is
// treated as 1.
func NewViewer(outputDir string, scale int) *Viewer {
	if scale < 1 {
		scale = 1
	}
	return &Viewer{outputDir: outputDir, scale: scale}
}

// ToGray16 maps a size×size row-major image to 16-bit gray, stretching
// its range to full contrast. A constant image becomes mid-gray.
func ToGray16(img []float64, size int) (*image.Gray16, error) {
	if size <= 0 || len(img) != size*size {
		return nil, fmt.Errorf("image has %d pixels, want %dx%d", len(img), size, size)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range img {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := image.NewGray16(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			n := 0.5
			if hi > lo {
				n = (img[y*size+x] - lo) / (hi - lo)
			}
			out.SetGray16(x, y, color.Gray16{Y: uint16(math.Max(0, math.Min(65535, n*65535)))})
		}
	}
	return out, nil
}

// Upscale enlarges src by an integer factor with Catmull-Rom resampling
func Upscale(src image.Image, scale int) image.Image {
	if scale <= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewGray16(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// Save encodes img as JPEG or PNG depending on the file extension
func Save(img image.Image, filename string) error {
	if err := mkdirFor(filename); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	case ".png":
		return png.Encode(file, img)
	}
	return fmt.Errorf("unsupported image format: %s", filename)
}

func mkdirFor(filename string) error {
	return os.MkdirAll(filepath.Dir(filename), 0755)
}

// SaveProjection writes a projection image under name in the output
// directory and returns the path written
func (v *Viewer) SaveProjection(img []float64, size int, name string) (string, error) {
	gray, err := ToGray16(img, size)
	if err != nil {
		return "", err
	}
	path := filepath.Join(v.outputDir, name)
	return path, Save(Upscale(gray, v.scale), path)
}

// HeatmapOptions controls heat-map rendering
type HeatmapOptions struct {
	// Pixels is the width and height of the rendered disc
	Pixels int

	// Decay fades stale cells toward the unexplored color and normalizes
	// against the still-fresh score range
	Decay bool
}

var (
	colorOutside    = color.RGBA{255, 255, 255, 0}
	colorInactive   = color.RGBA{60, 60, 60, 255}
	colorUnexplored = colorful.Color{R: 0.75, G: 0.75, B: 0.75}
	colorLow        = colorful.Color{R: 0.1, G: 0.2, B: 0.7}
	colorHigh       = colorful.Color{R: 0.95, G: 0.3, B: 0.1}
)

// Heatmap renders one hemisphere of the viewing-direction disc. Active cells
// are colored by their best score relative to the step's score range,
// unexplored active cells are light gray and cells outside the asymmetric
// unit are dark gray. Only cells matching isTop are drawn.
func Heatmap(cells []hexgrid.Cell, m *refinement.Machine, spacingDeg float64, isTop bool, opts HeatmapOptions) *image.RGBA {
	px := opts.Pixels
	if px <= 0 {
		px = 256
	}
	hemi := make([]hexgrid.Cell, 0, len(cells))
	for _, c := range cells {
		if c.IsTop == isTop {
			hemi = append(hemi, c)
		}
	}

	lo, hi := m.Range()
	if opts.Decay {
		lo, hi = m.DecayedRange()
	}

	// One color per cell, computed once
	colors := make(map[hexgrid.Key]color.RGBA, len(hemi))
	for _, c := range hemi {
		colors[c.Key()] = cellColor(m, c.Key(), lo, hi, opts.Decay)
	}

	lookup := hexgrid.NewLookup(hemi, spacingDeg)
	out := image.NewRGBA(image.Rect(0, 0, px, px))
	for j := 0; j < px; j++ {
		y := 1 - (2*float64(j)+1)/float64(px)
		for i := 0; i < px; i++ {
			x := (2*float64(i)+1)/float64(px) - 1
			if x*x+y*y > 1 {
				out.SetRGBA(i, j, colorOutside)
				continue
			}
			c, ok := lookup.HitTest(x, y)
			if !ok {
				out.SetRGBA(i, j, colorInactive)
				continue
			}
			out.SetRGBA(i, j, colors[c.Key()])
		}
	}
	return out
}

func cellColor(m *refinement.Machine, key hexgrid.Key, lo, hi float64, decay bool) color.RGBA {
	best, ok := m.BestScore(key)
	if !ok {
		return toRGBA(colorUnexplored)
	}
	t := 1.0
	if hi > lo {
		t = math.Max(0, math.Min(1, (best-lo)/(hi-lo)))
	}
	c := colorLow.BlendLab(colorHigh, t)
	if decay {
		c = colorUnexplored.BlendLab(c, m.Freshness(key))
	}
	return toRGBA(c.Clamped())
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// SaveHeatmaps writes both hemispheres of the current step as PNG files and
// returns their paths
func (v *Viewer) SaveHeatmaps(cells []hexgrid.Cell, m *refinement.Machine, prefix string, opts HeatmapOptions) ([]string, error) {
	spacing := m.Step().SpacingDeg
	var paths []string
	for _, hemi := range []struct {
		name  string
		isTop bool
	}{{"top", true}, {"bottom", false}} {
		path := filepath.Join(v.outputDir, fmt.Sprintf("%s_%s.png", prefix, hemi.name))
		if err := Save(Heatmap(cells, m, spacing, hemi.isTop, opts), path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
