package chart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/datau/pkg/errorsx"
)

type Kind string

const (
	KindBar     Kind = "bar"
	KindLine    Kind = "line"
	KindScatter Kind = "scatter"
	KindPie     Kind = "pie"
)

var (
	ErrLengthMismatch  = errorsx.New(errorsx.ReasonChartInput, "lengths of x_values and y_values must be the same")
	ErrUnsupportedKind = errorsx.New(errorsx.ReasonChartInput, "invalid plot type, choose from bar, line, scatter, or pie")
)

// ParseKind accepts a plot type name case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindBar, KindLine, KindScatter, KindPie:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
}

// Label is the capitalised kind used in chart titles.
func (k Kind) Label() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Spec is the validated input of one chart.
type Spec struct {
	Kind     Kind
	X        []string
	Y        []float64
	Title    string
	XLabel   string
	YLabel   string
	SavePath string
}

// Build turns spec into a styled figure. When spec.SavePath is set the PNG
// rendering is written there; if that fails the figure is still returned
// alongside an error with reason chart_save.
func Build(spec Spec) (*Figure, error) {
	if len(spec.X) != len(spec.Y) {
		return nil, fmt.Errorf("%w: %d x values, %d y values", ErrLengthMismatch, len(spec.X), len(spec.Y))
	}
	trace, err := traceFor(spec)
	if err != nil {
		return nil, err
	}
	fig := &Figure{Data: []Trace{trace}, Layout: layoutFor(spec)}
	if spec.SavePath == "" {
		return fig, nil
	}
	if err := save(fig, spec.SavePath); err != nil {
		return fig, errorsx.Wrapf(err, errorsx.ReasonChartSave, "save chart %s", spec.SavePath)
	}
	return fig, nil
}

func save(fig *Figure, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Render(fig, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}
