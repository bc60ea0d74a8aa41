package chart

import (
	"errors"
	"io"
	"math"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	renderWidth  = 1024
	renderHeight = 640

	noPositiveValues = "no positive values"
)

// Render draws fig as a PNG.
func Render(fig *Figure, w io.Writer) error {
	if fig == nil || len(fig.Data) == 0 {
		return errors.New("empty figure")
	}
	trace := fig.Data[0]
	switch fig.Kind() {
	case KindBar:
		return renderBar(fig, trace, w)
	case KindPie:
		return renderPie(fig, trace, w)
	case KindLine, KindScatter:
		return renderXY(fig, trace, w)
	default:
		return ErrUnsupportedKind
	}
}

func hex(c string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(c, "#"))
}

func background(m Margin) gochart.Style {
	return gochart.Style{
		FillColor: hex(colorBackground),
		Padding:   gochart.Box{Top: m.T, Left: m.L, Right: m.R, Bottom: m.B},
	}
}

func titleStyle() gochart.Style {
	return gochart.Style{FontSize: 20, FontColor: hex(colorTitle)}
}

func renderBar(fig *Figure, t Trace, w io.Writer) error {
	bars := make([]gochart.Value, len(t.X))
	for i := range t.X {
		bars[i] = gochart.Value{
			Label: t.X[i],
			Value: t.Y[i],
			Style: gochart.Style{FillColor: hex(colorBar), StrokeColor: hex(colorBar), StrokeWidth: 1},
		}
	}
	bc := gochart.BarChart{
		YAxis:      gochart.YAxis{Range: barRange(t.Y)},
		Title:      fig.Layout.Title.Text,
		TitleStyle: titleStyle(),
		Background: background(fig.Layout.Margin),
		Canvas:     gochart.Style{FillColor: hex(colorBackground)},
		Width:      renderWidth,
		Height:     renderHeight,
		BarWidth:   barWidth(len(bars)),
		Bars:       bars,
	}
	return bc.Render(gochart.PNG, w)
}

// barRange pins the value axis when every bar has the same height, which
// go-chart cannot scale on its own. Nil lets go-chart derive the range.
func barRange(ys []float64) gochart.Range {
	lo, hi, ok := flat(ys)
	if !ok {
		return nil
	}
	lo, hi = math.Min(lo, 0), math.Max(hi, 0)
	if lo == hi {
		hi = 1
	}
	return &gochart.ContinuousRange{Min: lo, Max: hi}
}

// flatRange pads a constant series so the y-axis has a non-zero span.
func flatRange(ys []float64) gochart.Range {
	v, _, ok := flat(ys)
	if !ok {
		return nil
	}
	pad := math.Max(math.Abs(v)*0.1, 1)
	return &gochart.ContinuousRange{Min: v - pad, Max: v + pad}
}

// flat reports the min and max of ys and whether they are equal.
func flat(ys []float64) (float64, float64, bool) {
	if len(ys) == 0 {
		return 0, 0, false
	}
	lo, hi := ys[0], ys[0]
	for _, y := range ys[1:] {
		lo, hi = math.Min(lo, y), math.Max(hi, y)
	}
	return lo, hi, lo == hi
}

func barWidth(n int) int {
	if n <= 0 {
		return 40
	}
	bw := (renderWidth - 120) / (2 * n)
	if bw > 80 {
		return 80
	}
	if bw < 4 {
		return 4
	}
	return bw
}

func renderPie(fig *Figure, t Trace, w io.Writer) error {
	values := make([]gochart.Value, 0, len(t.Labels))
	for i := range t.Labels {
		if t.Values[i] <= 0 {
			continue
		}
		values = append(values, gochart.Value{
			Label: t.Labels[i],
			Value: t.Values[i],
			Style: gochart.Style{FillColor: hex(pieColors[i%len(pieColors)])},
		})
	}
	if len(values) == 0 {
		values = append(values, gochart.Value{
			Label: noPositiveValues,
			Value: 1,
			Style: gochart.Style{FillColor: hex(colorGrid)},
		})
	}
	pc := gochart.PieChart{
		Title:      fig.Layout.Title.Text,
		TitleStyle: titleStyle(),
		Background: background(fig.Layout.Margin),
		Width:      renderHeight,
		Height:     renderHeight,
		Values:     values,
	}
	return pc.Render(gochart.PNG, w)
}

func renderXY(fig *Figure, t Trace, w io.Writer) error {
	xs := make([]float64, len(t.X))
	ticks := make([]gochart.Tick, len(t.X))
	for i, label := range t.X {
		xs[i] = float64(i)
		ticks[i] = gochart.Tick{Value: float64(i), Label: label}
	}
	// go-chart takes the x range from the ticks and needs a non-zero span.
	if len(ticks) == 1 {
		ticks = []gochart.Tick{{Value: -1}, ticks[0], {Value: 1}}
	}
	style := gochart.Style{
		StrokeColor: hex(colorLine),
		StrokeWidth: 2,
		DotColor:    hex(colorLine),
		DotWidth:    4,
	}
	if fig.Kind() == KindScatter {
		style = gochart.Style{
			StrokeWidth: gochart.Disabled,
			DotColor:    hex(colorScatter).WithAlpha(178),
			DotWidth:    5,
		}
	}
	grid := gochart.Style{StrokeColor: hex(colorGrid), StrokeWidth: 1}
	c := gochart.Chart{
		Title:      fig.Layout.Title.Text,
		TitleStyle: titleStyle(),
		Background: background(fig.Layout.Margin),
		Canvas:     gochart.Style{FillColor: hex(colorBackground)},
		Width:      renderWidth,
		Height:     renderHeight,
		XAxis: gochart.XAxis{
			Name:           axisTitle(fig.Layout.XAxis),
			Ticks:          ticks,
			GridMajorStyle: grid,
		},
		YAxis: gochart.YAxis{
			Name:           axisTitle(fig.Layout.YAxis),
			GridMajorStyle: grid,
			Range:          flatRange(t.Y),
		},
		Series: []gochart.Series{
			gochart.ContinuousSeries{XValues: xs, YValues: t.Y, Style: style},
		},
	}
	return c.Render(gochart.PNG, w)
}

func axisTitle(a *Axis) string {
	if a == nil {
		return ""
	}
	return a.Title.Text
}
