package sqlexec

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/harunnryd/datau/pkg/errorsx"
	"github.com/harunnryd/datau/pkg/logging"
	"github.com/harunnryd/datau/pkg/redact"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Result is one query's column names and rows, in driver order.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Executor runs model-authored SQL. Every call opens and closes its own
// connection; nothing is pooled, cached, or retried.
type Executor struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Executor {
	return &Executor{cfg: cfg, logger: logging.NewComponentLogger(logger, "sqlexec")}
}

// Run executes sql and reads every row.
func (e *Executor) Run(ctx context.Context, query string) (Result, error) {
	return e.runArgs(ctx, query)
}

func (e *Executor) runArgs(ctx context.Context, query string, args ...any) (Result, error) {
	start := time.Now()
	driver, dsn := e.cfg.openArgs()
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return Result{}, errorsx.Wrapf(err, errorsx.ReasonQuery, "open %s", driver)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonQuery)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonQuery)
	}
	out := Result{Columns: cols, Rows: make([][]any, 0)}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, errorsx.Wrap(err, errorsx.ReasonQuery)
		}
		out.Rows = append(out.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonQuery)
	}
	e.logger.Debug("query_ok",
		slog.String("driver", driver),
		slog.Int("rows", len(out.Rows)),
		slog.Duration("elapsed", time.Since(start)))
	return out, nil
}

// Raw returns rows and column names, or empty slices on any failure.
func (e *Executor) Raw(ctx context.Context, query string) ([][]any, []string) {
	res, err := e.Run(ctx, query)
	if err != nil {
		e.logFailure(query, err)
		return [][]any{}, []string{}
	}
	return res.Rows, res.Columns
}

// Markdown renders the result as a markdown table, or an error string the
// model can read and react to.
func (e *Executor) Markdown(ctx context.Context, query string) string {
	out, _ := e.Query(ctx, query)
	return out
}

// Query is Markdown that also reports the failure. On error out is the
// model-facing error text.
func (e *Executor) Query(ctx context.Context, query string) (string, error) {
	res, err := e.Run(ctx, query)
	if err != nil {
		e.logFailure(query, err)
		return ErrorText(err), err
	}
	return MarkdownTable(res.Columns, res.Rows), nil
}

// ErrorText is the model-facing text for a failed query.
func ErrorText(err error) string {
	return "Error while executing the query: " + err.Error()
}

func (e *Executor) logFailure(query string, err error) {
	e.logger.Warn("query_failed",
		slog.String("sql", redact.Preview(query, 200)),
		slog.String("reason", string(errorsx.Reason(err))),
		slog.String("error", err.Error()))
}
