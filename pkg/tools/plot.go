package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/harunnryd/datau/pkg/chart"
	"github.com/harunnryd/datau/pkg/errorsx"
	"github.com/harunnryd/datau/pkg/llm"
	"github.com/invopop/jsonschema"
)

const ChartToolName = "plot_chart"

type ChartArgs struct {
	PlotType  string    `json:"plot_type" mapstructure:"plot_type" jsonschema:"enum=bar,enum=line,enum=scatter,enum=pie" jsonschema_description:"which plot type either bar, line, scatter, or pie"`
	XValues   []string  `json:"x_values" mapstructure:"x_values" jsonschema_description:"list of x values for plotting"`
	YValues   []float64 `json:"y_values" mapstructure:"y_values" jsonschema_description:"list of y axis values for plotting"`
	PlotTitle string    `json:"plot_title" mapstructure:"plot_title" jsonschema_description:"Descriptive Title for the plot"`
	XLabel    string    `json:"x_label" mapstructure:"x_label" jsonschema_description:"Label for the x axis"`
	YLabel    string    `json:"y_label" mapstructure:"y_label" jsonschema_description:"label for the y axis"`
}

// ChartTool renders query results as a chart shown to the user.
type ChartTool struct {
	saveDir string
	schema  *jsonschema.Schema
}

// NewChartTool builds the chart tool. When saveDir is set every chart is also
// written there as <uuid>.png.
func NewChartTool(saveDir string) *ChartTool {
	return &ChartTool{saveDir: saveDir, schema: schemaFor(&ChartArgs{})}
}

func (t *ChartTool) Definition() llm.Tool {
	return llm.Tool{
		Name:        ChartToolName,
		Description: "Plot Bar, Line, Scatter, or Pie chart to visualize the result of sql query",
		Schema:      t.schema,
	}
}

func (t *ChartTool) Invoke(ctx context.Context, call llm.ToolCall) Result {
	var args ChartArgs
	if err := rejectNulls(call, "x_values", "y_values"); err != nil {
		return errorResult(call, err)
	}
	if err := decodeArgs(call, t.schema, &args); err != nil {
		return errorResult(call, err)
	}
	kind, err := chart.ParseKind(args.PlotType)
	if err != nil {
		return errorResult(call, err)
	}
	spec := chart.Spec{
		Kind:   kind,
		X:      args.XValues,
		Y:      args.YValues,
		Title:  args.PlotTitle,
		XLabel: args.XLabel,
		YLabel: args.YLabel,
	}
	if t.saveDir != "" {
		spec.SavePath = filepath.Join(t.saveDir, uuid.NewString()+".png")
	}
	fig, err := chart.Build(spec)
	if err != nil && (fig == nil || !errorsx.HasReason(err, errorsx.ReasonChartSave)) {
		return errorResult(call, err)
	}
	res := okResult(call, fmt.Sprintf("%s chart %q with %d points is displayed to the user.", kind.Label(), args.PlotTitle, len(args.XValues)))
	res.Figure = fig
	res.Display = true
	// A failed PNG save does not hide the chart from the user.
	res.Err = err
	return res
}
