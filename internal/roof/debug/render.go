package debug

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/paulmach/orb"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

func (run *Run) pointsByPlane() (map[int][]Point, []int) {
	by := map[int][]Point{}
	for _, p := range run.Points {
		by[p.PlaneID] = append(by[p.PlaneID], p)
	}
	ids := make([]int, 0, len(by))
	for id := range by {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return by, ids
}

// finalFaces returns the faces of the latest recorded arrangement stage.
func (run *Run) finalFaces() []FaceRecord {
	if f := run.FacesAt(StageCleaned); f != nil {
		return f
	}
	return run.FacesAt(StageBuilt)
}

func ringXYs(r orb.Ring) plotter.XYs {
	out := make(plotter.XYs, 0, len(r)+1)
	for _, p := range r {
		out = append(out, plotter.XY{X: p[0], Y: p[1]})
	}
	if len(r) > 0 && r[0] != r[len(r)-1] {
		out = append(out, plotter.XY{X: r[0][0], Y: r[0][1]})
	}
	return out
}

// RenderPNG draws the segmented points, the final faces and the
// regularised segments of a run in plan view.
func RenderPNG(run *Run, path string) error {
	if run == nil {
		return fmt.Errorf("no run to render")
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Roof reconstruction %s", run.RunID)
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	by, ids := run.pointsByPlane()
	for i, id := range ids {
		xys := make(plotter.XYs, 0, len(by[id]))
		for _, pt := range by[id] {
			xys = append(xys, plotter.XY{X: pt.X, Y: pt.Y})
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("failed to create scatter for plane %d: %w", id, err)
		}
		sc.GlyphStyle.Radius = vg.Points(1)
		sc.GlyphStyle.Color = plotutil.Color(i)
		if id == 0 {
			sc.GlyphStyle.Color = color.Gray{Y: 160}
		}
		p.Add(sc)
	}

	for _, f := range run.finalFaces() {
		for _, ring := range f.Polygon {
			l, err := plotter.NewLine(ringXYs(ring))
			if err != nil {
				return fmt.Errorf("failed to create line for face %d: %w", f.ID, err)
			}
			l.Width = vg.Points(1)
			l.Color = color.Black
			if !f.Interior {
				l.Color = color.Gray{Y: 200}
			}
			p.Add(l)
		}
	}

	for _, s := range run.SegmentsAt(StageRegularised) {
		l, err := plotter.NewLine(plotter.XYs{{X: s.Start[0], Y: s.Start[1]}, {X: s.End[0], Y: s.End[1]}})
		if err != nil {
			return fmt.Errorf("failed to create segment line: %w", err)
		}
		l.Width = vg.Points(1)
		l.Color = color.RGBA{R: 220, A: 255}
		l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(l)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// RenderHTML writes a page with a scatter of the segmented points and a bar
// chart of the per-face RMS.
func RenderHTML(run *Run, w io.Writer) error {
	if run == nil {
		return fmt.Errorf("no run to render")
	}
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Roof reconstruction", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Segmented points", Subtitle: fmt.Sprintf("run=%s points=%d", run.RunID, len(run.Points))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)
	by, ids := run.pointsByPlane()
	for _, id := range ids {
		data := make([]opts.ScatterData, 0, len(by[id]))
		for _, p := range by[id] {
			data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y, p.Z}})
		}
		name := fmt.Sprintf("plane %d", id)
		if id == 0 {
			name = "unassigned"
		}
		scatter.AddSeries(name, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	}

	x := make([]string, 0, len(run.Quality))
	y := make([]opts.BarData, 0, len(run.Quality))
	for _, q := range run.Quality {
		x = append(x, fmt.Sprintf("face %d (plane %d)", q.FaceID, q.PlaneID))
		y = append(y, opts.BarData{Value: q.RMS})
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Face RMS (m)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("rms", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(scatter, bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}
