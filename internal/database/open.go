package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/splax/installer/internal/domain"
)

// ErrUnsupportedDriver indicates no opener exists for the requested driver.
var ErrUnsupportedDriver = errors.New("database: unsupported driver")

// Opener returns an unconnected handle for the descriptor. Callers own the
// returned handle and must close it.
type Opener func(ctx context.Context, desc domain.ConnectionDescriptor) (*sql.DB, error)

// Dialect maps a connection driver name to its goose dialect.
func Dialect(driver string) (string, error) {
	switch normalizeDriver(driver) {
	case "pgsql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlite":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// Open builds a read-write handle for the descriptor. No connection is
// attempted until the handle is used.
func Open(ctx context.Context, desc domain.ConnectionDescriptor) (*sql.DB, error) {
	return open(desc, 0, false)
}

// ProbeOpener returns an Opener whose handles give up connecting after timeout
// and never create sqlite files.
func ProbeOpener(timeout time.Duration) Opener {
	return func(ctx context.Context, desc domain.ConnectionDescriptor) (*sql.DB, error) {
		return open(desc, timeout, true)
	}
}

func open(desc domain.ConnectionDescriptor, timeout time.Duration, readOnly bool) (*sql.DB, error) {
	switch normalizeDriver(desc.Driver) {
	case "pgsql":
		return openPostgres(desc, timeout)
	case "mysql":
		return openMySQL(desc, timeout)
	case "sqlite":
		return openSQLite(desc, readOnly)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, desc.Driver)
	}
}

func normalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "pgsql", "postgres", "postgresql":
		return "pgsql"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return ""
	}
}

func openPostgres(desc domain.ConnectionDescriptor, timeout time.Duration) (*sql.DB, error) {
	host := desc.Host
	if desc.Port != "" {
		host = net.JoinHostPort(desc.Host, desc.Port)
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(desc.Username, desc.Password),
		Host:   host,
		Path:   "/" + desc.Database,
	}
	query := url.Values{}
	query.Set("sslmode", desc.Option("sslmode", "prefer"))
	if schema := desc.Option("schema", ""); schema != "" {
		query.Set("search_path", schema)
	}
	dsn.RawQuery = query.Encode()

	cfg, err := pgx.ParseConfig(dsn.String())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if timeout > 0 {
		cfg.ConnectTimeout = timeout
	}
	return stdlib.OpenDB(*cfg), nil
}

func openMySQL(desc domain.ConnectionDescriptor, timeout time.Duration) (*sql.DB, error) {
	connector, err := mysql.NewConnector(mysqlConfig(desc, timeout))
	if err != nil {
		return nil, fmt.Errorf("configure mysql connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

func mysqlConfig(desc domain.ConnectionDescriptor, timeout time.Duration) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = desc.Username
	cfg.Passwd = desc.Password
	cfg.Net = "tcp"
	port := desc.Port
	if port == "" {
		port = "3306"
	}
	cfg.Addr = net.JoinHostPort(desc.Host, port)
	cfg.DBName = desc.Database
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	if charset := desc.Option("charset", ""); charset != "" {
		cfg.Params = map[string]string{"charset": charset}
	}
	if collation := desc.Option("collation", ""); collation != "" {
		cfg.Collation = collation
	}
	return cfg
}

func openSQLite(desc domain.ConnectionDescriptor, readOnly bool) (*sql.DB, error) {
	path := strings.TrimSpace(desc.Database)
	if path == "" {
		return nil, errors.New("sqlite database path required")
	}
	dsn := "file:" + path
	if readOnly {
		dsn += "?mode=ro"
	}
	return sql.Open("sqlite", dsn)
}
