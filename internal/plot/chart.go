// Package plot renders CO2 readings and their moving average as a PNG chart.
package plot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"sort"
	"time"

	"golang.org/x/image/vector"

	"github.com/lox/co2pipeline/internal/logging"
	"github.com/lox/co2pipeline/internal/models"
	"github.com/lox/co2pipeline/internal/transform"
)

const stagePlot = "plot"

// ErrNothingToPlot is returned when no row has a timestamp.
var ErrNothingToPlot = errors.New("no rows with timestamps to plot")

var (
	colorBackground = color.RGBA{255, 255, 255, 255}
	colorAxis       = color.RGBA{60, 60, 60, 255}
	colorGrid       = color.RGBA{230, 230, 230, 255}
	colorHour       = color.RGBA{170, 170, 170, 255}
	colorText       = color.RGBA{30, 30, 30, 255}
	colorReading    = color.RGBA{173, 216, 230, 255} // lightblue
	colorEMA        = color.RGBA{0, 0, 139, 255}     // darkblue
)

// Options selects the plotted columns and the image size.
type Options struct {
	TimeColumn  string
	ValueColumn string
	EMAColumn   string
	Title       string
	Width       int
	Height      int
}

func DefaultOptions() Options {
	return Options{
		TimeColumn:  transform.DefaultTimestampColumn,
		ValueColumn: transform.OutputMeasurement,
		EMAColumn:   transform.EMAColumn(transform.DefaultEMASpan),
		Title:       "CO2 Levels with Hourly Markers",
		Width:       1200,
		Height:      600,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.TimeColumn == "" {
		o.TimeColumn = def.TimeColumn
	}
	if o.ValueColumn == "" {
		o.ValueColumn = def.ValueColumn
	}
	if o.EMAColumn == "" {
		o.EMAColumn = def.EMAColumn
	}
	if o.Title == "" {
		o.Title = def.Title
	}
	if o.Width <= 0 {
		o.Width = def.Width
	}
	if o.Height <= 0 {
		o.Height = def.Height
	}
	return o
}

type point struct {
	t time.Time
	v float64
}

type series struct {
	label  string
	color  color.RGBA
	width  float32
	points []point
}

// Render draws the measurement and EMA columns of t against time. Rows with
// a null timestamp are skipped.
func Render(t *models.Table, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	log := logging.Component("plot")

	readings, ema, err := collect(t, opts)
	if err != nil {
		log.Error("failed to plot CO2 levels", "error", err)
		return nil, err
	}

	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(colorBackground), image.Point{}, draw.Src)

	c := newCanvas(img, readings, ema)
	c.drawGrid()
	c.drawHourMarkers()
	c.drawSeries(readings)
	c.drawSeries(ema)
	c.drawAxes()
	c.drawLegend(readings, ema)

	drawText(img, opts.Title, opts.Width/2, 32, anchorCenter, colorText, faceTitle)
	drawText(img, "Time (HH:MM)", c.area.Min.X+c.area.Dx()/2, opts.Height-12, anchorCenter, colorText, faceLabel)
	drawText(img, "CO2 Level (ppm)", c.area.Min.X, c.area.Min.Y-10, anchorLeft, colorText, faceLabel)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}

	log.Info("plotted CO2 levels", "points", len(readings.points), "bytes", buf.Len())
	return buf.Bytes(), nil
}

// WriteFile renders t and writes the PNG to path.
func WriteFile(t *models.Table, opts Options, path string) error {
	data, err := Render(t, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write chart %s: %w", path, err)
	}
	return nil
}

func collect(t *models.Table, opts Options) (series, series, error) {
	if t == nil {
		return series{}, series{}, transform.ErrNoData
	}
	cols := make([]models.Column, 3)
	for i, name := range []string{opts.TimeColumn, opts.ValueColumn, opts.EMAColumn} {
		col, ok := t.Column(name)
		if !ok {
			return series{}, series{}, &transform.ColumnError{Stage: stagePlot, Column: name}
		}
		cols[i] = col
	}
	if cols[0].Kind() != models.KindTime {
		return series{}, series{}, fmt.Errorf("%s: column '%s' is %s: %w", stagePlot, opts.TimeColumn, cols[0].Kind(), transform.ErrColumnType)
	}
	for _, col := range cols[1:] {
		if col.Kind() != models.KindInt {
			return series{}, series{}, fmt.Errorf("%s: column '%s' is %s: %w", stagePlot, col.Name(), col.Kind(), transform.ErrColumnType)
		}
	}

	times := cols[0].Times()
	order := make([]int, 0, len(times))
	for i, ts := range times {
		if ts.Valid {
			order = append(order, i)
		}
	}
	if len(order) == 0 {
		return series{}, series{}, ErrNothingToPlot
	}
	sort.SliceStable(order, func(a, b int) bool { return times[order[a]].Time.Before(times[order[b]].Time) })

	build := func(col models.Column, label string, c color.RGBA, width float32) series {
		vals := col.Ints()
		s := series{label: label, color: c, width: width}
		for _, i := range order {
			if vals[i].Valid {
				s.points = append(s.points, point{t: times[i].Time, v: float64(vals[i].Int64)})
			}
		}
		return s
	}

	readings := build(cols[1], "CO2 Levels", colorReading, 2)
	ema := build(cols[2], opts.EMAColumn, colorEMA, 2)
	if len(readings.points) == 0 && len(ema.points) == 0 {
		return series{}, series{}, ErrNothingToPlot
	}
	return readings, ema, nil
}

type canvas struct {
	img        *image.RGBA
	area       image.Rectangle
	start, end time.Time
	lo, hi     float64
	yStep      float64
}

func newCanvas(img *image.RGBA, all ...series) *canvas {
	b := img.Bounds()
	c := &canvas{
		img:  img,
		area: image.Rect(b.Min.X+70, b.Min.Y+60, b.Max.X-30, b.Max.Y-60),
	}

	var first, last time.Time
	c.lo, c.hi = math.Inf(1), math.Inf(-1)
	for _, s := range all {
		for _, p := range s.points {
			if first.IsZero() || p.t.Before(first) {
				first = p.t
			}
			if last.IsZero() || p.t.After(last) {
				last = p.t
			}
			c.lo = math.Min(c.lo, p.v)
			c.hi = math.Max(c.hi, p.v)
		}
	}

	c.start = floorHour(first)
	c.end = floorHour(last)
	if c.end.Before(last) || !c.end.After(c.start) {
		c.end = c.end.Add(time.Hour)
	}

	if c.hi-c.lo < 1 {
		c.lo -= 10
		c.hi += 10
	}
	pad := (c.hi - c.lo) * 0.05
	c.lo -= pad
	c.hi += pad
	c.yStep = niceStep((c.hi - c.lo) / 5)
	return c
}

func floorHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// niceStep rounds raw up to 1, 2 or 5 times a power of ten.
func niceStep(raw float64) float64 {
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 5, 10} {
		if m*mag >= raw {
			return m * mag
		}
	}
	return 10 * mag
}

func (c *canvas) x(t time.Time) float32 {
	span := c.end.Sub(c.start).Seconds()
	frac := t.Sub(c.start).Seconds() / span
	return float32(float64(c.area.Min.X) + frac*float64(c.area.Dx()))
}

func (c *canvas) y(v float64) float32 {
	frac := (v - c.lo) / (c.hi - c.lo)
	return float32(float64(c.area.Max.Y) - frac*float64(c.area.Dy()))
}

func (c *canvas) drawGrid() {
	for v := math.Ceil(c.lo/c.yStep) * c.yStep; v <= c.hi; v += c.yStep {
		y := int(c.y(v))
		for x := c.area.Min.X; x < c.area.Max.X; x++ {
			c.img.SetRGBA(x, y, colorGrid)
		}
		drawText(c.img, fmt.Sprintf("%.0f", v), c.area.Min.X-8, y+4, anchorRight, colorText, faceLabel)
	}
}

// drawHourMarkers draws a dashed line at every hour, labelled HH:MM. Long
// spans thin the labels and lines to at most about a dozen.
func (c *canvas) drawHourMarkers() {
	hours := int(c.end.Sub(c.start) / time.Hour)
	every := 1
	if hours > 12 {
		every = (hours + 11) / 12
	}
	for h := 0; h <= hours; h += every {
		ts := c.start.Add(time.Duration(h) * time.Hour)
		x := int(c.x(ts))
		for y := c.area.Min.Y; y < c.area.Max.Y; y++ {
			if (y-c.area.Min.Y)%8 < 4 {
				c.img.SetRGBA(x, y, colorHour)
			}
		}
		drawText(c.img, ts.Format("15:04"), x, c.area.Max.Y+20, anchorCenter, colorText, faceLabel)
	}
}

func (c *canvas) drawSeries(s series) {
	if len(s.points) == 0 {
		return
	}
	b := c.img.Bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	r.DrawOp = draw.Over

	half := s.width / 2
	if len(s.points) == 1 {
		x, y := c.x(s.points[0].t), c.y(s.points[0].v)
		r.MoveTo(x-half-1, y-half-1)
		r.LineTo(x+half+1, y-half-1)
		r.LineTo(x+half+1, y+half+1)
		r.LineTo(x-half-1, y+half+1)
		r.ClosePath()
	}
	for i := 1; i < len(s.points); i++ {
		x0, y0 := c.x(s.points[i-1].t), c.y(s.points[i-1].v)
		x1, y1 := c.x(s.points[i].t), c.y(s.points[i].v)
		dx, dy := x1-x0, y1-y0
		l := float32(math.Hypot(float64(dx), float64(dy)))
		if l == 0 {
			continue
		}
		// Extend each segment by half the width so joints overlap.
		ex, ey := dx/l*half, dy/l*half
		nx, ny := -ey, ex
		r.MoveTo(x0-ex+nx, y0-ey+ny)
		r.LineTo(x1+ex+nx, y1+ey+ny)
		r.LineTo(x1+ex-nx, y1+ey-ny)
		r.LineTo(x0-ex-nx, y0-ey-ny)
		r.ClosePath()
	}
	r.Draw(c.img, b, image.NewUniform(s.color), image.Point{})
}

func (c *canvas) drawAxes() {
	for x := c.area.Min.X; x <= c.area.Max.X; x++ {
		c.img.SetRGBA(x, c.area.Max.Y, colorAxis)
	}
	for y := c.area.Min.Y; y <= c.area.Max.Y; y++ {
		c.img.SetRGBA(c.area.Min.X, y, colorAxis)
	}
}

func (c *canvas) drawLegend(all ...series) {
	x := c.area.Max.X - 170
	y := c.area.Min.Y + 12
	for _, s := range all {
		swatch := image.Rect(x, y-6, x+24, y-2)
		draw.Draw(c.img, swatch, image.NewUniform(s.color), image.Point{}, draw.Src)
		drawText(c.img, s.label, x+32, y, anchorLeft, colorText, faceLabel)
		y += 20
	}
}
