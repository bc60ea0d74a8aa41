package sqlexec

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config selects the database the assistant queries.
type Config struct {
	Driver string `mapstructure:"driver"`
	// Path is the SQLite database file.
	Path string `mapstructure:"path"`

	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`

	// Tables limits schema introspection. Entries are "table" or "schema.table".
	Tables []string `mapstructure:"tables"`
}

func (c Config) driver() string {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "", "sqlite", DriverSQLite:
		return DriverSQLite
	case DriverPostgres, "postgresql", "pgx":
		return DriverPostgres
	default:
		return strings.ToLower(strings.TrimSpace(c.Driver))
	}
}

// Dialect names the SQL flavour of the configured driver.
func (c Config) Dialect() string {
	if c.driver() == DriverPostgres {
		return "PostgreSQL"
	}
	return "SQLite"
}

// Validate reports the first missing connection parameter.
func (c Config) Validate() error {
	switch c.driver() {
	case DriverSQLite:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case DriverPostgres:
		for _, f := range []struct{ name, value string }{
			{"database.name", c.Name},
			{"database.user", c.User},
			{"database.host", c.Host},
			{"database.port", c.Port},
		} {
			if strings.TrimSpace(f.value) == "" {
				return fmt.Errorf("%s is required for postgres", f.name)
			}
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Driver)
	}
	return nil
}

// openArgs returns the database/sql driver name and DSN.
func (c Config) openArgs() (string, string) {
	if c.driver() == DriverPostgres {
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   net.JoinHostPort(c.Host, c.Port),
			Path:   "/" + c.Name,
		}
		q := url.Values{}
		if c.SSLMode != "" {
			q.Set("sslmode", c.SSLMode)
		}
		u.RawQuery = q.Encode()
		return "pgx", u.String()
	}
	// The path is percent-escaped so "?" and "#" in file names survive as
	// part of the URI path.
	u := url.URL{Scheme: "file", OmitHost: true, Path: filepath.ToSlash(c.Path), RawQuery: "mode=ro"}
	return DriverSQLite, u.String()
}
