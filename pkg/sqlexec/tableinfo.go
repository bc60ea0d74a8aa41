package sqlexec

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// TableInfo returns the schema description placed in the system prompt.
func (e *Executor) TableInfo(ctx context.Context) (string, error) {
	query, args := e.tableInfoQuery()
	res, err := e.runArgs(ctx, query, args...)
	if err != nil {
		return "", err
	}
	if e.cfg.driver() == DriverPostgres {
		return postgresDDL(res.Rows), nil
	}
	lines := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) > 0 {
			lines = append(lines, cellText(row[0]))
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (e *Executor) tableInfoQuery() (string, []any) {
	if e.cfg.driver() == DriverPostgres {
		q := `SELECT table_schema, table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')`
		var args []any
		var conds []string
		for _, t := range e.cfg.Tables {
			schema, table, ok := strings.Cut(t, ".")
			if !ok {
				schema, table = "public", t
			}
			args = append(args, schema, table)
			conds = append(conds, fmt.Sprintf("(table_schema = $%d AND table_name = $%d)", len(args)-1, len(args)))
		}
		if len(conds) > 0 {
			q += "\nAND (" + strings.Join(conds, " OR ") + ")"
		}
		return q + "\nORDER BY table_schema, table_name, ordinal_position", args
	}

	q := "SELECT sql FROM sqlite_master WHERE type='table' AND sql IS NOT NULL"
	var args []any
	for _, t := range e.cfg.Tables {
		if _, table, ok := strings.Cut(t, "."); ok {
			t = table
		}
		args = append(args, t)
	}
	if len(args) > 0 {
		q += " AND name IN (?" + strings.Repeat(", ?", len(args)-1) + ")"
	}
	return q + " ORDER BY name", args
}

func postgresDDL(rows [][]any) string {
	type table struct {
		name string
		cols []string
	}
	byName := map[string]*table{}
	for _, row := range rows {
		if len(row) < 4 {
			continue
		}
		name := cellText(row[0]) + "." + cellText(row[1])
		t := byName[name]
		if t == nil {
			t = &table{name: name}
			byName[name] = t
		}
		t.cols = append(t.cols, "  "+cellText(row[2])+" "+cellText(row[3]))
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		t := byName[n]
		parts = append(parts, "CREATE TABLE "+t.name+" (\n"+strings.Join(t.cols, ",\n")+"\n);")
	}
	return strings.Join(parts, "\n")
}
