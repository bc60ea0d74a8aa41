package tools

import (
	"context"

	"github.com/harunnryd/datau/pkg/llm"
	"github.com/invopop/jsonschema"
)

const QueryToolName = "query_db"

// Querier runs SQL and returns a markdown table, or error text plus the error.
type Querier interface {
	Query(ctx context.Context, sql string) (string, error)
}

type QueryArgs struct {
	SQLQuery string `json:"sql_query" mapstructure:"sql_query" jsonschema_description:"complete and correct sql query to fulfill user request."`
}

// QueryTool lets the model fetch data from the configured database.
type QueryTool struct {
	db          Querier
	description string
	schema      *jsonschema.Schema
}

func NewQueryTool(db Querier, description string) *QueryTool {
	if description == "" {
		description = "Fetch data from the database"
	}
	return &QueryTool{db: db, description: description, schema: schemaFor(&QueryArgs{})}
}

func (t *QueryTool) Definition() llm.Tool {
	return llm.Tool{Name: QueryToolName, Description: t.description, Schema: t.schema}
}

func (t *QueryTool) Invoke(ctx context.Context, call llm.ToolCall) Result {
	var args QueryArgs
	if err := decodeArgs(call, t.schema, &args); err != nil {
		return errorResult(call, err)
	}
	out, err := t.db.Query(ctx, args.SQLQuery)
	if err != nil {
		res := errorResult(call, err)
		res.Content = out
		return res
	}
	return okResult(call, out)
}
