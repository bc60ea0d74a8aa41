package chart

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/harunnryd/datau/pkg/errorsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gochart "github.com/wcharczuk/go-chart/v2"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func sampleSpec(kind Kind) Spec {
	return Spec{
		Kind:   kind,
		X:      []string{"USA", "Canada", "Brazil"},
		Y:      []float64{523.06, 303.96, 190.1},
		Title:  "Revenue by Country",
		XLabel: "Country",
		YLabel: "Revenue",
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"bar": KindBar, " Line ": KindLine, "SCATTER": KindScatter, "pie": KindPie} {
		got, err := ParseKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("histogram")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedKind))
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonChartInput))
}

func TestBuildLengthMismatch(t *testing.T) {
	spec := sampleSpec(KindBar)
	spec.Y = spec.Y[:2]
	fig, err := Build(spec)
	assert.Nil(t, fig)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}

func TestBuildUnsupportedKind(t *testing.T) {
	_, err := Build(sampleSpec(Kind("area")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedKind))
}

func TestBuildStylesPerKind(t *testing.T) {
	bar, err := Build(sampleSpec(KindBar))
	require.NoError(t, err)
	assert.Equal(t, "bar", bar.Data[0].Type)
	assert.Equal(t, "#24C8BF", bar.Data[0].Marker.Color)
	assert.Equal(t, "Revenue by Country Bar Chart", bar.Layout.Title.Text)
	require.NotNil(t, bar.Layout.XAxis)
	assert.Equal(t, "Country", bar.Layout.XAxis.Title.Text)
	assert.Equal(t, Margin{L: 60, R: 60, T: 80, B: 60}, bar.Layout.Margin)

	scatter, err := Build(sampleSpec(KindScatter))
	require.NoError(t, err)
	assert.Equal(t, "markers", scatter.Data[0].Mode)
	assert.Equal(t, 0.7, scatter.Data[0].Marker.Opacity)
	assert.Equal(t, KindScatter, scatter.Kind())

	line, err := Build(sampleSpec(KindLine))
	require.NoError(t, err)
	assert.Equal(t, "lines+markers", line.Data[0].Mode)
	assert.Equal(t, 2.0, line.Data[0].Line.Width)
	assert.Equal(t, KindLine, line.Kind())

	pie, err := Build(sampleSpec(KindPie))
	require.NoError(t, err)
	assert.Equal(t, []string{"USA", "Canada", "Brazil"}, pie.Data[0].Labels)
	assert.Equal(t, 0.3, pie.Data[0].Hole)
	assert.Nil(t, pie.Layout.XAxis)
	assert.Nil(t, pie.Layout.YAxis)
	assert.Equal(t, "Revenue by Country Pie Chart", pie.Layout.Title.Text)
}

func TestBuildDoesNotAliasInput(t *testing.T) {
	spec := sampleSpec(KindBar)
	fig, err := Build(spec)
	require.NoError(t, err)
	spec.X[0] = "changed"
	assert.Equal(t, "USA", fig.Data[0].X[0])
}

func TestFigureJSON(t *testing.T) {
	fig, err := Build(sampleSpec(KindPie))
	require.NoError(t, err)
	raw, err := fig.JSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	data := decoded["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "pie", data[0].(map[string]any)["type"])
	layout := decoded["layout"].(map[string]any)
	assert.Equal(t, "#f8f8f8", layout["paper_bgcolor"])
	_, hasX := layout["xaxis"]
	assert.False(t, hasX)
}

func TestRenderAllKinds(t *testing.T) {
	for _, kind := range []Kind{KindBar, KindLine, KindScatter, KindPie} {
		t.Run(string(kind), func(t *testing.T) {
			fig, err := Build(sampleSpec(kind))
			require.NoError(t, err)
			var buf bytes.Buffer
			require.NoError(t, Render(fig, &buf))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}

func TestRenderDegenerateData(t *testing.T) {
	cases := map[string]Spec{
		"single line point":    {Kind: KindLine, X: []string{"2024"}, Y: []float64{42}},
		"single scatter point": {Kind: KindScatter, X: []string{"a"}, Y: []float64{0}},
		"single bar":           {Kind: KindBar, X: []string{"Rock"}, Y: []float64{1297}},
		"all zero bars":        {Kind: KindBar, X: []string{"a", "b"}, Y: []float64{0, 0}},
		"equal negative bars":  {Kind: KindBar, X: []string{"a", "b"}, Y: []float64{-3, -3}},
		"flat line":            {Kind: KindLine, X: []string{"a", "b", "c"}, Y: []float64{7, 7, 7}},
		"all zero pie":         {Kind: KindPie, X: []string{"a", "b"}, Y: []float64{0, 0}},
		"pie with negatives":   {Kind: KindPie, X: []string{"a", "b", "c"}, Y: []float64{-1, 0, 4}},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			spec.SavePath = filepath.Join(t.TempDir(), "chart.png")
			fig, err := Build(spec)
			require.NoError(t, err)
			require.NotNil(t, fig)
			raw, err := os.ReadFile(spec.SavePath)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(raw, pngMagic))
		})
	}
}

func TestFlatRange(t *testing.T) {
	assert.Nil(t, flatRange([]float64{1, 2}))
	r := flatRange([]float64{0, 0}).(*gochart.ContinuousRange)
	assert.Equal(t, -1.0, r.Min)
	assert.Equal(t, 1.0, r.Max)
	r = flatRange([]float64{500}).(*gochart.ContinuousRange)
	assert.Equal(t, 450.0, r.Min)
	assert.Equal(t, 550.0, r.Max)

	b := barRange([]float64{0, 0}).(*gochart.ContinuousRange)
	assert.Equal(t, 0.0, b.Min)
	assert.Equal(t, 1.0, b.Max)
	b = barRange([]float64{-3, -3}).(*gochart.ContinuousRange)
	assert.Equal(t, -3.0, b.Min)
	assert.Equal(t, 0.0, b.Max)
}

func TestBuildSavesPNG(t *testing.T) {
	spec := sampleSpec(KindLine)
	spec.SavePath = filepath.Join(t.TempDir(), "charts", "revenue.png")
	_, err := Build(spec)
	require.NoError(t, err)
	raw, err := os.ReadFile(spec.SavePath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, pngMagic))
}

func TestBuildSaveFailureKeepsFigure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	spec := sampleSpec(KindBar)
	spec.SavePath = filepath.Join(blocker, "chart.png")
	fig, err := Build(spec)
	require.Error(t, err)
	assert.NotNil(t, fig)
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonChartSave))
}

func TestRenderEmptyFigure(t *testing.T) {
	assert.Error(t, Render(nil, &bytes.Buffer{}))
	assert.Error(t, Render(&Figure{}, &bytes.Buffer{}))
}
