// Package render draws the final table as a two panel scatter chart.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scryfall-haste/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	labelPadding = "       "

	countTickStep    = 3
	countTickFloor   = 18
	percentTickStep  = 2
	percentTickFloor = 8
)

var (
	// ErrEmptyTable is returned when there is nothing to plot.
	ErrEmptyTable = errors.New("render: table is empty")

	magenta = color.RGBA{R: 255, B: 255, A: 255}
	red     = color.RGBA{R: 255, A: 255}
)

// Renderer writes the chart as a PNG file.
type Renderer struct {
	Path    string
	Keyword string
	Width   vg.Length
	Height  vg.Length
	DPI     int
}

// New returns a renderer with the default 20x7 inch canvas.
func New(path, keyword string) *Renderer {
	return &Renderer{
		Path:    path,
		Keyword: keyword,
		Width:   20 * vg.Inch,
		Height:  7 * vg.Inch,
		DPI:     vgimg.DefaultDPI,
	}
}

// Render draws creature counts on top and creature percentages below, one
// column per release in table order, and overwrites r.Path.
func (r *Renderer) Render(table models.FinalTable) error {
	if len(table) == 0 {
		return ErrEmptyTable
	}

	counts := make(plotter.XYs, len(table))
	percents := make(plotter.XYs, len(table))
	codes := make([]string, len(table))
	maxCount, maxPercent := 0.0, 0.0
	for i, row := range table {
		x := float64(i)
		counts[i] = plotter.XY{X: x, Y: float64(row.CreatureCount)}
		percents[i] = plotter.XY{X: x, Y: row.CreaturePercent}
		codes[i] = row.Code
		maxCount = math.Max(maxCount, float64(row.CreatureCount))
		maxPercent = math.Max(maxPercent, row.CreaturePercent)
	}

	keyword := strings.ToUpper(r.Keyword)
	top, err := scatterPlot(counts, draw.TriangleGlyph{}, magenta)
	if err != nil {
		return err
	}
	top.Y.Label.Text = fmt.Sprintf("Number of creatures\nwith %s in their text", keyword)
	setYTicks(top, maxCount, countTickFloor, countTickStep)
	blank := make([]string, len(codes))
	for i := range blank {
		blank[i] = " "
	}
	top.X.Tick.Marker = releaseTicks(blank)

	bottom, err := scatterPlot(percents, draw.CircleGlyph{}, red)
	if err != nil {
		return err
	}
	bottom.Y.Label.Text = fmt.Sprintf("(%%) of creatures with %s in text\nwith respect to total # of cards in set", keyword)
	setYTicks(bottom, maxPercent, percentTickFloor, percentTickStep)
	bottom.X.Tick.Marker = releaseTicks(TickLabels(codes))
	bottom.X.Tick.Label.Rotation = math.Pi / 2
	bottom.X.Tick.Label.XAlign = draw.XRight
	bottom.X.Tick.Label.YAlign = draw.YCenter

	img := vgimg.NewWith(vgimg.UseWH(r.Width, r.Height), vgimg.UseDPI(r.DPI))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadTop:    vg.Points(10),
		PadBottom: vg.Points(10),
		PadLeft:   vg.Points(10),
		PadRight:  vg.Points(10),
		PadY:      vg.Points(6),
	}
	canvases := plot.Align([][]*plot.Plot{{top}, {bottom}}, tiles, dc)
	top.Draw(canvases[0][0])
	bottom.Draw(canvases[1][0])

	if dir := filepath.Dir(r.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	f, err := os.Create(r.Path)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close image: %w", err)
	}

	slog.Info("chart written", slog.String("file", r.Path), slog.Int("releases", len(table)))
	return nil
}

// TickLabels pads codes so neighbouring vertical labels are staggered:
// even positions are padded on the left, odd positions on the right.
func TickLabels(codes []string) []string {
	out := make([]string, len(codes))
	for i, code := range codes {
		if i%2 == 0 {
			out[i] = labelPadding + code
		} else {
			out[i] = code + labelPadding
		}
	}
	return out
}

// Ticks returns 0, step, 2*step ... up to the smallest multiple of step that
// covers both floor and peak.
func Ticks(peak float64, floor, step int) []float64 {
	top := floor
	if need := int(math.Ceil(peak/float64(step))) * step; need > top {
		top = need
	}
	out := make([]float64, 0, top/step+1)
	for v := 0; v <= top; v += step {
		out = append(out, float64(v))
	}
	return out
}

func scatterPlot(xys plotter.XYs, shape draw.GlyphDrawer, c color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Add(plotter.NewGrid())

	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, fmt.Errorf("build scatter: %w", err)
	}
	s.GlyphStyle.Shape = shape
	s.GlyphStyle.Color = c
	s.GlyphStyle.Radius = vg.Points(4)
	p.Add(s)

	p.X.Min = -0.5
	p.X.Max = float64(len(xys)) - 0.5
	return p, nil
}

func setYTicks(p *plot.Plot, peak float64, floor, step int) {
	values := Ticks(peak, floor, step)
	ticks := make(plot.ConstantTicks, len(values))
	for i, v := range values {
		ticks[i] = plot.Tick{Value: v, Label: strconv.Itoa(int(v))}
	}
	p.Y.Tick.Marker = ticks

	margin := float64(step) / 4
	p.Y.Min = -margin
	p.Y.Max = values[len(values)-1] + margin
}

// releaseTicks places one labelled tick per release.
func releaseTicks(labels []string) plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, len(labels))
	for i, l := range labels {
		ticks[i] = plot.Tick{Value: float64(i), Label: l}
	}
	return ticks
}
