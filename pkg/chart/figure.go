package chart

import "encoding/json"

// Style constants shared by the Plotly figure and the PNG renderer.
const (
	colorBar        = "#24C8BF"
	colorScatter    = "#df84ff"
	colorLine       = "#ff9900"
	colorBackground = "#f8f8f8"
	colorGrid       = "#f0f0f0"
	colorTitle      = "#333"
	titleFontFamily = "Arial"
)

var pieColors = []string{"#ff9999", "#66b3ff", "#99ff99", "#ffcc99"}

// Figure is a Plotly-compatible figure (data + layout).
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

func (f *Figure) JSON() ([]byte, error) { return json.Marshal(f) }

// Kind reports the chart kind a figure was built for.
func (f *Figure) Kind() Kind {
	if f == nil || len(f.Data) == 0 {
		return ""
	}
	t := f.Data[0]
	switch t.Type {
	case "bar":
		return KindBar
	case "pie":
		return KindPie
	case "scatter":
		if t.Mode == "markers" {
			return KindScatter
		}
		return KindLine
	}
	return ""
}

type Trace struct {
	Type   string    `json:"type"`
	X      []string  `json:"x,omitempty"`
	Y      []float64 `json:"y,omitempty"`
	Labels []string  `json:"labels,omitempty"`
	Values []float64 `json:"values,omitempty"`
	Mode   string    `json:"mode,omitempty"`
	Marker *Marker   `json:"marker,omitempty"`
	Line   *Line     `json:"line,omitempty"`
	Hole   float64   `json:"hole,omitempty"`
}

type Marker struct {
	Color   string   `json:"color,omitempty"`
	Colors  []string `json:"colors,omitempty"`
	Size    float64  `json:"size,omitempty"`
	Opacity float64  `json:"opacity,omitempty"`
	Line    *Line    `json:"line,omitempty"`
}

type Line struct {
	Width float64 `json:"width,omitempty"`
	Color string  `json:"color,omitempty"`
}

type Font struct {
	Size   float64 `json:"size,omitempty"`
	Family string  `json:"family,omitempty"`
	Color  string  `json:"color,omitempty"`
}

type Title struct {
	Text string `json:"text"`
	Font *Font  `json:"font,omitempty"`
}

type Axis struct {
	Title     Title  `json:"title"`
	TickFont  Font   `json:"tickfont"`
	GridColor string `json:"gridcolor"`
}

type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

type Layout struct {
	Title        Title  `json:"title"`
	XAxis        *Axis  `json:"xaxis,omitempty"`
	YAxis        *Axis  `json:"yaxis,omitempty"`
	Margin       Margin `json:"margin"`
	PlotBGColor  string `json:"plot_bgcolor"`
	PaperBGColor string `json:"paper_bgcolor"`
}

func traceFor(spec Spec) (Trace, error) {
	x := append([]string(nil), spec.X...)
	y := append([]float64(nil), spec.Y...)
	switch spec.Kind {
	case KindBar:
		return Trace{Type: "bar", X: x, Y: y, Marker: &Marker{Color: colorBar, Line: &Line{Width: 1}}}, nil
	case KindScatter:
		return Trace{
			Type: "scatter", X: x, Y: y, Mode: "markers",
			Marker: &Marker{Color: colorScatter, Size: 10, Opacity: 0.7, Line: &Line{Width: 1}},
		}, nil
	case KindLine:
		return Trace{
			Type: "scatter", X: x, Y: y, Mode: "lines+markers",
			Marker: &Marker{Color: colorLine, Size: 8, Line: &Line{Width: 1}},
			Line:   &Line{Width: 2, Color: colorLine},
		}, nil
	case KindPie:
		return Trace{
			Type: "pie", Labels: x, Values: y,
			Marker: &Marker{Colors: append([]string(nil), pieColors...)},
			Hole:   0.3,
		}, nil
	default:
		return Trace{}, ErrUnsupportedKind
	}
}

func layoutFor(spec Spec) Layout {
	l := Layout{
		Title: Title{
			Text: spec.Title + " " + spec.Kind.Label() + " Chart",
			Font: &Font{Size: 20, Family: titleFontFamily, Color: colorTitle},
		},
		Margin:       Margin{L: 60, R: 60, T: 80, B: 60},
		PlotBGColor:  colorBackground,
		PaperBGColor: colorBackground,
	}
	if spec.Kind != KindPie {
		l.XAxis = axis(spec.XLabel)
		l.YAxis = axis(spec.YLabel)
	}
	return l
}

func axis(label string) *Axis {
	return &Axis{
		Title:     Title{Text: label, Font: &Font{Size: 18}},
		TickFont:  Font{Size: 14},
		GridColor: colorGrid,
	}
}
