package sqlexec

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/datau/pkg/errorsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChinook(t *testing.T) *Executor {
	t.Helper()
	return newChinookAt(t, "chinook.db")
}

func newChinookAt(t *testing.T, name string) *Executor {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.db")
	db, err := sql.Open("sqlite3", seed)
	require.NoError(t, err)
	stmts := []string{
		`CREATE TABLE Artist (ArtistId INTEGER PRIMARY KEY, Name NVARCHAR(120))`,
		`CREATE TABLE Album (AlbumId INTEGER PRIMARY KEY, Title NVARCHAR(160) NOT NULL, ArtistId INTEGER NOT NULL, Cover BLOB)`,
		`INSERT INTO Artist (Name) VALUES ('AC/DC'), ('Accept'), ('Aerosmith'), ('Alanis Morissette'), (NULL)`,
		`INSERT INTO Album (Title, ArtistId, Cover) VALUES ('For Those About To Rock', 1, X'6162'), ('Pipe | Dream', 2, NULL)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())
	path := filepath.Join(dir, name)
	require.NoError(t, os.Rename(seed, path))
	return New(Config{Driver: "sqlite", Path: path}, slog.Default())
}

func TestMarkdownTopThreeArtists(t *testing.T) {
	e := newChinook(t)
	out := e.Markdown(context.Background(), "SELECT Name FROM Artist LIMIT 3")
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "| Name |", lines[0])
	assert.Equal(t, "| --- |", lines[1])
	assert.Equal(t, "| AC/DC |", lines[2])
	assert.Equal(t, "| Aerosmith |", lines[4])
}

func TestMarkdownMalformedSQL(t *testing.T) {
	e := newChinook(t)
	out := e.Markdown(context.Background(), "SELEC Name FROM Artist")
	assert.True(t, strings.HasPrefix(out, "Error while executing the query: "), out)
	assert.Contains(t, out, "syntax error")
}

func TestRawMalformedSQLReturnsEmpty(t *testing.T) {
	e := newChinook(t)
	rows, cols := e.Raw(context.Background(), "SELECT nope FROM Missing")
	require.NotNil(t, rows)
	require.NotNil(t, cols)
	assert.Empty(t, rows)
	assert.Empty(t, cols)
}

func TestRunReturnsColumnsAndRows(t *testing.T) {
	e := newChinook(t)
	res, err := e.Run(context.Background(), "SELECT ArtistId, Name FROM Artist ORDER BY ArtistId")
	require.NoError(t, err)
	assert.Equal(t, []string{"ArtistId", "Name"}, res.Columns)
	require.Len(t, res.Rows, 5)
	assert.EqualValues(t, 1, res.Rows[0][0])
	assert.Nil(t, res.Rows[4][1])
}

func TestRunErrorHasQueryReason(t *testing.T) {
	e := newChinook(t)
	_, err := e.Run(context.Background(), "SELECT * FROM Missing")
	require.Error(t, err)
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonQuery))
}

func TestDatabaseIsReadOnly(t *testing.T) {
	e := newChinook(t)
	out := e.Markdown(context.Background(), "DELETE FROM Artist")
	assert.True(t, strings.HasPrefix(out, "Error while executing the query: "), out)
	rows, _ := e.Raw(context.Background(), "SELECT COUNT(*) FROM Artist")
	require.Len(t, rows, 1)
	assert.EqualValues(t, 5, rows[0][0])
}

func TestMarkdownRendersBlobNullAndPipes(t *testing.T) {
	e := newChinook(t)
	out := e.Markdown(context.Background(), "SELECT Title, Cover FROM Album ORDER BY AlbumId")
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "| For Those About To Rock | ab |", lines[2])
	assert.Equal(t, `| Pipe \| Dream |  |`, lines[3])
}

func TestTableInfoFilters(t *testing.T) {
	e := newChinook(t)
	info, err := e.TableInfo(context.Background())
	require.NoError(t, err)
	assert.Contains(t, info, "CREATE TABLE Album")
	assert.Contains(t, info, "CREATE TABLE Artist")

	e.cfg.Tables = []string{"main.Artist"}
	info, err = e.TableInfo(context.Background())
	require.NoError(t, err)
	assert.Contains(t, info, "CREATE TABLE Artist")
	assert.NotContains(t, info, "Album")
}

func TestMissingDatabaseFile(t *testing.T) {
	e := New(Config{Path: filepath.Join(t.TempDir(), "absent.db")}, nil)
	_, err := e.TableInfo(context.Background())
	require.Error(t, err)
}

func TestMarkdownTableShapes(t *testing.T) {
	assert.Equal(t, "", MarkdownTable(nil, nil))
	assert.Equal(t, "| a | b |\n| --- | --- |", MarkdownTable([]string{"a", "b"}, nil))
	assert.Equal(t, "| a |\n| --- |\n| 1.5 |", MarkdownTable([]string{"a"}, [][]any{{1.5}}))
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.NoError(t, Config{Path: "x.db"}.Validate())
	assert.Error(t, Config{Driver: "postgres", Name: "db"}.Validate())
	assert.NoError(t, Config{Driver: "postgres", Name: "db", User: "u", Host: "h", Port: "5432"}.Validate())
	assert.Error(t, Config{Driver: "oracle"}.Validate())

	driver, dsn := Config{Driver: "postgres", Name: "shop", User: "u", Password: "p@ss", Host: "db", Port: "5432", SSLMode: "disable"}.openArgs()
	assert.Equal(t, "pgx", driver)
	assert.Equal(t, "postgres://u:p%40ss@db:5432/shop?sslmode=disable", dsn)
}

func TestSQLiteDSNEscapesPath(t *testing.T) {
	driver, dsn := Config{Path: "/data/q?1#2 %.db"}.openArgs()
	assert.Equal(t, DriverSQLite, driver)
	assert.Equal(t, "file:/data/q%3F1%232%20%25.db?mode=ro", dsn)

	_, dsn = Config{Path: "./shop.db"}.openArgs()
	assert.Equal(t, "file:./shop.db?mode=ro", dsn)
}

func TestQueryPathWithURISeparators(t *testing.T) {
	e := newChinookAt(t, "sales?v=2#q3.db")
	out, err := e.Query(context.Background(), "SELECT COUNT(*) AS n FROM Artist")
	require.NoError(t, err)
	assert.Equal(t, "| n |\n| --- |\n| 5 |", out)
}

func TestPostgresTableInfoQuery(t *testing.T) {
	e := New(Config{Driver: "postgres", Tables: []string{"sales.orders", "customers"}}, nil)
	q, args := e.tableInfoQuery()
	assert.Contains(t, q, "(table_schema = $1 AND table_name = $2) OR (table_schema = $3 AND table_name = $4)")
	assert.Equal(t, []any{"sales", "orders", "public", "customers"}, args)

	ddl := postgresDDL([][]any{
		{"public", "customers", "id", "integer"},
		{"public", "customers", "name", "text"},
		{"sales", "orders", "total", "numeric"},
	})
	assert.Equal(t, "CREATE TABLE public.customers (\n  id integer,\n  name text\n);\nCREATE TABLE sales.orders (\n  total numeric\n);", ddl)
}
