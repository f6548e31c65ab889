// Package connection implements the named-connection registry: connection
// configuration, URL parsing, lazily-opened pooled handles, per-connection
// savepoint transactions and raw statement dispatch with query logging.
package connection

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"gopkg.in/yaml.v3"

	"github.com/syssam/loom"
	"github.com/syssam/loom/dialect"
)

// Config holds the connection details for one named connection.
type Config struct {
	Driver     string            `yaml:"driver"`
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	Database   string            `yaml:"database"`
	User       string            `yaml:"user"`
	Password   string            `yaml:"password"`
	Prefix     string            `yaml:"prefix"`
	Schema     string            `yaml:"schema"`
	Options    map[string]string `yaml:"options"`
	LogQueries bool              `yaml:"log_queries"`
}

// Details is the full registry payload: the connection map plus the name
// of the fallback connection.
type Details struct {
	Default     string            `yaml:"default"`
	Connections map[string]Config `yaml:"connections"`
}

// Validate checks the registry for a usable default and known drivers.
func (d Details) Validate() error {
	if len(d.Connections) == 0 {
		return loom.NewConfigurationError("no connections configured")
	}
	if d.Default != "" {
		if _, ok := d.Connections[d.Default]; !ok {
			return loom.NewConfigurationError("default connection %q is not configured", d.Default)
		}
	}
	for name, cfg := range d.Connections {
		if !dialect.Valid(normalizeDriver(cfg.Driver)) {
			return loom.NewConfigurationError("connection %q: unknown driver %q", name, cfg.Driver)
		}
	}
	return nil
}

func normalizeDriver(driver string) string {
	switch strings.ToLower(driver) {
	case "mariadb", dialect.MySQL:
		return dialect.MySQL
	case "postgresql", "pgsql", dialect.Postgres:
		return dialect.Postgres
	case "sqlite3", dialect.SQLite:
		return dialect.SQLite
	case "sqlserver", dialect.MSSQL:
		return dialect.MSSQL
	}
	return strings.ToLower(driver)
}

// Dialect returns the normalized dialect name for the configured driver.
func (c Config) Dialect() string { return normalizeDriver(c.Driver) }

// driverName maps the dialect to the database/sql driver registration.
func (c Config) driverName() string {
	switch c.Dialect() {
	case dialect.SQLite:
		return "sqlite"
	case dialect.MSSQL:
		return "sqlserver"
	default:
		return c.Dialect()
	}
}

// DSN builds the driver-specific data source name.
func (c Config) DSN() (string, error) {
	switch c.Dialect() {
	case dialect.MySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = hostPort(c.Host, c.Port, 3306)
		mc.DBName = c.Database
		mc.ParseTime = true
		if len(c.Options) > 0 {
			mc.Params = map[string]string{}
			for k, v := range c.Options {
				mc.Params[k] = v
			}
		}
		return mc.FormatDSN(), nil
	case dialect.Postgres:
		u := &url.URL{
			Scheme: "postgres",
			Host:   hostPort(c.Host, c.Port, 5432),
			Path:   "/" + c.Database,
		}
		if c.User != "" {
			u.User = url.UserPassword(c.User, c.Password)
		}
		q := u.Query()
		for k, v := range c.Options {
			q.Set(k, v)
		}
		if c.Schema != "" {
			q.Set("search_path", c.Schema)
		}
		u.RawQuery = q.Encode()
		return pq.ParseURL(u.String())
	case dialect.SQLite:
		if c.Database == "" || c.Database == ":memory:" {
			return ":memory:", nil
		}
		return c.Database, nil
	case dialect.MSSQL:
		u := &url.URL{
			Scheme: "sqlserver",
			Host:   hostPort(c.Host, c.Port, 1433),
		}
		if c.User != "" {
			u.User = url.UserPassword(c.User, c.Password)
		}
		q := u.Query()
		q.Set("database", c.Database)
		for k, v := range c.Options {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return "", loom.NewConfigurationError("unknown driver %q", c.Driver)
}

func hostPort(host string, port, fallback int) string {
	if host == "" {
		host = "127.0.0.1"
	}
	if port == 0 {
		port = fallback
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// FromURL parses a connection URL of the form
// driver://[user[:pw]@]host[:port]/database[?opt=val&...]. SQLite is
// special-cased as sqlite://[path]; an empty path means in-memory.
func FromURL(raw string) (Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Config{}, loom.NewConfigurationError("invalid connection url: %v", err)
	}
	driver := normalizeDriver(u.Scheme)
	if driver == dialect.SQLite {
		path := strings.TrimPrefix(raw, u.Scheme+"://")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if path == "" {
			path = ":memory:"
		}
		return Config{Driver: driver, Database: path, Options: queryOptions(u)}, nil
	}
	if !dialect.Valid(driver) {
		return Config{}, loom.NewConfigurationError("unknown driver %q in url", u.Scheme)
	}
	cfg := Config{
		Driver:   driver,
		Host:     u.Hostname(),
		Database: strings.TrimPrefix(u.Path, "/"),
		Options:  queryOptions(u),
	}
	if p := u.Port(); p != "" {
		cfg.Port, _ = strconv.Atoi(p)
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	return cfg, nil
}

// FromEnv parses the connection URL held in the named environment
// variable, DATABASE_URL by default.
func FromEnv(name ...string) (Config, error) {
	key := "DATABASE_URL"
	if len(name) > 0 {
		key = name[0]
	}
	raw := os.Getenv(key)
	if raw == "" {
		return Config{}, loom.NewConfigurationError("environment variable %s is not set", key)
	}
	return FromURL(raw)
}

func queryOptions(u *url.URL) map[string]string {
	q := u.Query()
	if len(q) == 0 {
		return nil
	}
	opts := make(map[string]string, len(q))
	for k := range q {
		opts[k] = q.Get(k)
	}
	return opts
}

// LoadFile reads a YAML connection registry from path.
func LoadFile(path string) (Details, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Details{}, loom.NewConfigurationError("read config %s: %v", path, err)
	}
	var d Details
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Details{}, loom.NewConfigurationError("parse config %s: %v", path, err)
	}
	if err := d.Validate(); err != nil {
		return Details{}, err
	}
	return d, nil
}

// LoadDefault reads the registry from DB_CONFIG_PATH, falling back to
// database.yaml in the working directory.
func LoadDefault() (Details, error) {
	path := os.Getenv("DB_CONFIG_PATH")
	if path == "" {
		path = "database.yaml"
	}
	return LoadFile(path)
}
