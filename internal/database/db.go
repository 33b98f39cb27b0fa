// Package database materializes an annotation table into SQL: one table per
// feature, secondary indices on coordinates and identifiers, and a metadata
// table whose schema version is written last. DuckDB is the default engine;
// SQLite is available through a pure Go driver.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SchemaVersion is bumped whenever the table layout changes. A database
// recorded with another version is rebuilt.
const SchemaVersion = 3

const metadataTable = "_metadata"

// Metadata keys.
const (
	metaSchemaVersion = "schema_version"
	metaColumns       = "columns"
	metaFeatures      = "features"
	metaSecondColumn  = "second_column"
)

// Driver selects the SQL engine.
type Driver string

const (
	DriverDuckDB Driver = "duckdb"
	DriverSQLite Driver = "sqlite"
)

// ParseDriver validates a driver name.
func ParseDriver(s string) (Driver, error) {
	switch Driver(s) {
	case DriverDuckDB, DriverSQLite:
		return Driver(s), nil
	}
	return "", fmt.Errorf("unknown database driver %q (want duckdb or sqlite)", s)
}

// DB is an annotation database.
type DB struct {
	db     *sql.DB
	driver Driver
	path   string
	logger *zap.Logger

	features []string
	columns  []string
	hasCol   map[string]bool
}

// Open opens or creates a database at path. Use an empty string for an
// in-memory database.
func Open(driver Driver, path string) (*DB, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path
	if driver == DriverSQLite && path == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	d := &DB{db: db, driver: driver, path: path, logger: zap.NewNop(), hasCol: make(map[string]bool)}
	if d.Exists() {
		if err := d.loadMetadata(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return d, nil
}

// SetLogger sets the logger for build progress.
func (d *DB) SetLogger(l *zap.Logger) {
	d.logger = l
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Driver returns the SQL engine in use.
func (d *DB) Driver() Driver {
	return d.driver
}

// Path returns the database file, empty for in-memory databases.
func (d *DB) Path() string {
	return d.path
}

// Exists reports whether a complete database of the current schema version
// is present.
func (d *DB) Exists() bool {
	v, err := d.metadata(metaSchemaVersion)
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(v)
	return err == nil && n == SchemaVersion
}

func (d *DB) metadata(key string) (string, error) {
	var v string
	err := d.db.QueryRow(`SELECT value FROM `+metadataTable+` WHERE key = ?`, key).Scan(&v)
	return v, err
}

func (d *DB) loadMetadata() error {
	features, err := d.metadata(metaFeatures)
	if err != nil {
		return fmt.Errorf("read features: %w", err)
	}
	columns, err := d.metadata(metaColumns)
	if err != nil {
		return fmt.Errorf("read columns: %w", err)
	}
	d.setSchema(splitList(features), splitList(columns))
	return nil
}

func (d *DB) setSchema(features, columns []string) {
	d.features = features
	d.columns = columns
	d.hasCol = make(map[string]bool, len(columns))
	for _, c := range columns {
		d.hasCol[c] = true
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
