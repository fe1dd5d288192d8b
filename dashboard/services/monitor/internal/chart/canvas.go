// Package chart renders telemetry series as line charts. A Canvas owns at most one chart at a
// time; every Render replaces the previous chart entirely.
package chart

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strconv"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoChart is returned when a canvas has not rendered anything yet.
var ErrNoChart = errors.New("chart: nothing rendered")

// Series is one named line.
type Series struct {
	Name   string
	Values []float64
}

// Spec describes a chart to draw.
type Spec struct {
	Title  string
	XName  string
	YName  string
	Labels []string
	Series []Series
}

// Canvas is a named drawing area holding the single active chart.
type Canvas struct {
	id     string
	width  int
	height int

	mu         sync.RWMutex
	active     *instance
	generation uint64
}

type instance struct {
	spec Spec
	line *charts.Line
}

// NewCanvas returns an empty canvas. The id is used as the chart element id so output stays
// stable between renders.
func NewCanvas(id string, width, height int) *Canvas {
	if width <= 0 {
		width = 900
	}
	if height <= 0 {
		height = 450
	}
	return &Canvas{id: id, width: width, height: height}
}

// ID returns the canvas id.
func (c *Canvas) ID() string {
	return c.id
}

// Render tears down the current chart and draws spec in its place. Empty series are allowed.
func (c *Canvas) Render(spec Spec) {
	spec = cloneSpec(spec)
	next := &instance{spec: spec, line: c.buildLine(spec)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		c.active.destroy()
	}
	c.active = next
	c.generation++
}

// Generation counts how many charts have been drawn on this canvas.
func (c *Canvas) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Spec returns a copy of the active chart's input.
func (c *Canvas) Spec() (Spec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return Spec{}, false
	}
	return cloneSpec(c.active.spec), true
}

// Clear removes the active chart.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		c.active.destroy()
		c.active = nil
	}
}

// WriteHTML writes the active chart as a standalone HTML page.
func (c *Canvas) WriteHTML(w io.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return ErrNoChart
	}
	var buf bytes.Buffer
	if err := c.active.line.Render(&buf); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WritePNG draws the active chart as a PNG image.
func (c *Canvas) WritePNG(w io.Writer) error {
	c.mu.RLock()
	spec := Spec{}
	ok := c.active != nil
	if ok {
		spec = cloneSpec(c.active.spec)
	}
	c.mu.RUnlock()
	if !ok {
		return ErrNoChart
	}
	return renderPNG(spec, c.width, c.height, w)
}

func (i *instance) destroy() {
	i.line = nil
	i.spec = Spec{}
}

func (c *Canvas) buildLine(spec Spec) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: spec.Title,
			ChartID:   c.id,
			Width:     strconv.Itoa(c.width) + "px",
			Height:    strconv.Itoa(c.height) + "px",
		}),
		charts.WithTitleOpts(opts.Title{Title: spec.Title}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(len(spec.Series) > 1)}),
		charts.WithXAxisOpts(opts.XAxis{Name: spec.XName, Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: spec.YName, Type: "value"}),
	)

	line.SetXAxis(spec.Labels)
	for _, s := range spec.Series {
		data := make([]opts.LineData, len(s.Values))
		for i, v := range s.Values {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(s.Name, data,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
			charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: 0.2}),
		)
	}
	return line
}

var palette = []drawing.Color{gochart.ColorBlue, gochart.ColorGreen, gochart.ColorRed, gochart.ColorOrange}

func renderPNG(spec Spec, width, height int, w io.Writer) error {
	xs := numericLabels(spec.Labels)

	ch := gochart.Chart{
		Title:  spec.Title,
		Width:  width,
		Height: height,
		XAxis:  gochart.XAxis{Name: spec.XName},
		YAxis:  gochart.YAxis{Name: spec.YName},
	}

	minY, maxY := math.Inf(1), math.Inf(-1)
	for i, s := range spec.Series {
		n := len(s.Values)
		if len(xs) < n {
			n = len(xs)
		}
		if n == 0 {
			continue
		}
		sx, sy := xs[:n], s.Values[:n]
		for _, v := range sy {
			minY = math.Min(minY, v)
			maxY = math.Max(maxY, v)
		}
		if n == 1 {
			// go-chart needs two points per line
			sx = []float64{sx[0], sx[0] + 1}
			sy = []float64{sy[0], sy[0]}
		}
		ch.Series = append(ch.Series, gochart.ContinuousSeries{
			Name:    s.Name,
			XValues: sx,
			YValues: sy,
			Style: gochart.Style{
				StrokeColor: palette[i%len(palette)],
				StrokeWidth: 2,
			},
		})
	}

	if len(ch.Series) == 0 {
		ch.Series = []gochart.Series{gochart.ContinuousSeries{
			XValues: []float64{0, 1},
			YValues: []float64{0, 0},
			Style:   gochart.Style{StrokeColor: drawing.ColorTransparent},
		}}
		ch.XAxis.Range = &gochart.ContinuousRange{Min: 0, Max: 1}
		ch.YAxis.Range = &gochart.ContinuousRange{Min: 0, Max: 100}
	} else {
		if minY == maxY {
			ch.YAxis.Range = &gochart.ContinuousRange{Min: minY - 1, Max: maxY + 1}
		}
		if minX, maxX := bounds(xs); minX == maxX {
			ch.XAxis.Range = &gochart.ContinuousRange{Min: minX, Max: minX + 1}
		}
	}
	if len(ch.Series) > 1 {
		ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	}

	return ch.Render(gochart.PNG, w)
}

// numericLabels turns labels into x positions; a label that is not a number falls back to its
// index.
func numericLabels(labels []string) []float64 {
	xs := make([]float64, len(labels))
	for i, l := range labels {
		v, err := strconv.ParseFloat(l, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			v = float64(i)
		}
		xs[i] = v
	}
	return xs
}

func bounds(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func cloneSpec(s Spec) Spec {
	out := Spec{
		Title:  s.Title,
		XName:  s.XName,
		YName:  s.YName,
		Labels: append([]string(nil), s.Labels...),
		Series: make([]Series, len(s.Series)),
	}
	for i, series := range s.Series {
		out.Series[i] = Series{Name: series.Name, Values: append([]float64(nil), series.Values...)}
	}
	return out
}
