package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/harunnryd/datau/pkg/errorsx"
	"github.com/harunnryd/datau/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuerier struct {
	got string
	out string
	err error
}

func (s *stubQuerier) Query(ctx context.Context, sql string) (string, error) {
	s.got = sql
	return s.out, s.err
}

type panicTool struct{}

func (panicTool) Definition() llm.Tool { return llm.Tool{Name: "boom"} }
func (panicTool) Invoke(ctx context.Context, call llm.ToolCall) Result {
	panic("kaboom")
}

func chartCall(args map[string]any) llm.ToolCall {
	return llm.ToolCall{ID: "call_2", Name: ChartToolName, Arguments: args}
}

func validChartArgs() map[string]any {
	return map[string]any{
		"plot_type":  "bar",
		"x_values":   []any{"Rock", "Jazz"},
		"y_values":   []any{1297.0, 130},
		"plot_title": "Tracks per Genre",
		"x_label":    "Genre",
		"y_label":    "Tracks",
	}
}

func TestDefinitionsSchema(t *testing.T) {
	reg := NewRegistry(slog.Default(), NewQueryTool(&stubQuerier{}, ""), NewChartTool(""))
	defs := reg.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, QueryToolName, defs[0].Name)
	assert.Equal(t, "Fetch data from the database", defs[0].Description)
	assert.Equal(t, ChartToolName, defs[1].Name)

	raw, err := json.Marshal(defs[1].Schema)
	require.NoError(t, err)
	var schema map[string]any
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Equal(t, "object", schema["type"])
	assert.ElementsMatch(t, []any{"plot_type", "x_values", "y_values", "plot_title", "x_label", "y_label"}, schema["required"])
	props := schema["properties"].(map[string]any)
	y := props["y_values"].(map[string]any)
	assert.Equal(t, "array", y["type"])
	assert.Equal(t, "number", y["items"].(map[string]any)["type"])
	assert.Equal(t, "which plot type either bar, line, scatter, or pie", props["plot_type"].(map[string]any)["description"])
	_, hasVersion := schema["$schema"]
	assert.False(t, hasVersion)
}

func TestQueryToolSuccess(t *testing.T) {
	q := &stubQuerier{out: "| Name |\n| --- |\n| AC/DC |"}
	reg := NewRegistry(nil, NewQueryTool(q, ""))
	res := reg.Invoke(context.Background(), llm.ToolCall{ID: "call_1", Name: QueryToolName, Arguments: map[string]any{"sql_query": "SELECT Name FROM Artist LIMIT 1"}})
	assert.True(t, res.OK())
	assert.Equal(t, "call_1", res.CallID)
	assert.Equal(t, q.out, res.Content)
	assert.Equal(t, "SELECT Name FROM Artist LIMIT 1", q.got)
	assert.False(t, res.Display)
}

func TestQueryToolErrorKeepsErrorText(t *testing.T) {
	q := &stubQuerier{out: "Error while executing the query: no such table: Nope", err: errors.New("no such table: Nope")}
	res := NewRegistry(nil, NewQueryTool(q, "")).Invoke(context.Background(), llm.ToolCall{ID: "c", Name: QueryToolName, Arguments: map[string]any{"sql_query": "SELECT * FROM Nope"}})
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, q.out, res.Content)
	assert.Error(t, res.Err)
}

func TestQueryToolMissingArgument(t *testing.T) {
	q := &stubQuerier{}
	res := NewRegistry(nil, NewQueryTool(q, "")).Invoke(context.Background(), llm.ToolCall{ID: "c", Name: QueryToolName, Arguments: map[string]any{}})
	assert.Equal(t, StatusError, res.Status)
	assert.True(t, errorsx.HasReason(res.Err, errorsx.ReasonToolArgs))
	assert.Contains(t, res.Content, "sql_query")
	assert.Empty(t, q.got)
}

func TestChartToolBuildsFigure(t *testing.T) {
	res := NewRegistry(nil, NewChartTool("")).Invoke(context.Background(), chartCall(validChartArgs()))
	require.True(t, res.OK(), res.Content)
	assert.True(t, res.Display)
	require.NotNil(t, res.Figure)
	assert.Equal(t, "Tracks per Genre Bar Chart", res.Figure.Layout.Title.Text)
	assert.Equal(t, []float64{1297, 130}, res.Figure.Data[0].Y)
	assert.Contains(t, res.Content, "displayed to the user")
}

func TestChartToolLengthMismatch(t *testing.T) {
	args := validChartArgs()
	args["y_values"] = []any{1.0}
	res := NewRegistry(nil, NewChartTool("")).Invoke(context.Background(), chartCall(args))
	assert.Equal(t, StatusError, res.Status)
	assert.Nil(t, res.Figure)
	assert.True(t, errorsx.HasReason(res.Err, errorsx.ReasonChartInput))
}

func TestChartToolUnsupportedKind(t *testing.T) {
	args := validChartArgs()
	args["plot_type"] = "radar"
	res := NewRegistry(nil, NewChartTool("")).Invoke(context.Background(), chartCall(args))
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Content, "invalid plot type")
}

func TestChartToolRejectsUnknownArgument(t *testing.T) {
	args := validChartArgs()
	args["colour"] = "red"
	res := NewRegistry(nil, NewChartTool("")).Invoke(context.Background(), chartCall(args))
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Content, "unknown: colour")
}

func TestChartToolAcceptsBlankLabels(t *testing.T) {
	dir := t.TempDir()
	args := map[string]any{
		"plot_type":  "pie",
		"x_values":   []any{"Rock", "Jazz", "Metal"},
		"y_values":   []any{1297.0, 130, 374},
		"plot_title": "",
		"x_label":    "",
		"y_label":    "",
	}
	res := NewRegistry(nil, NewChartTool(dir)).Invoke(context.Background(), chartCall(args))
	require.Equal(t, StatusOK, res.Status, res.Content)
	assert.NoError(t, res.Err)
	require.NotNil(t, res.Figure)
	assert.Equal(t, "pie", res.Figure.Data[0].Type)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestChartToolRejectsNullValues(t *testing.T) {
	args := validChartArgs()
	args["y_values"] = []any{1.0, nil}
	res := NewRegistry(nil, NewChartTool("")).Invoke(context.Background(), chartCall(args))
	assert.Equal(t, StatusError, res.Status)
	assert.Nil(t, res.Figure)
	assert.True(t, errorsx.HasReason(res.Err, errorsx.ReasonToolArgs))
	assert.Contains(t, res.Content, "y_values[1] is null")

	args = validChartArgs()
	args["plot_title"] = nil
	res = NewRegistry(nil, NewChartTool("")).Invoke(context.Background(), chartCall(args))
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Content, "missing: plot_title")
}

func TestChartToolSavesPNG(t *testing.T) {
	dir := t.TempDir()
	res := NewRegistry(nil, NewChartTool(dir)).Invoke(context.Background(), chartCall(validChartArgs()))
	require.True(t, res.OK())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".png", filepath.Ext(entries[0].Name()))
}

func TestRegistryUnknownToolAndPanic(t *testing.T) {
	reg := NewRegistry(nil, panicTool{})
	res := reg.Invoke(context.Background(), llm.ToolCall{ID: "x", Name: "drop_tables"})
	assert.Equal(t, StatusError, res.Status)
	assert.True(t, errorsx.HasReason(res.Err, errorsx.ReasonToolName))

	res = reg.Invoke(context.Background(), llm.ToolCall{ID: "y", Name: "boom"})
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Content, "kaboom")
	assert.Equal(t, []string{"boom"}, reg.Names())
}
