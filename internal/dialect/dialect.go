// Package dialect isolates engine-specific behavior: DSN construction,
// identifier quoting, placeholder style, catalog queries and driver error
// classification. Each supported engine (MySQL, PostgreSQL, SQLite)
// implements the Dialect interface.
package dialect

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"sqlgate/internal/action"
)

// ConnParams are the opaque connection parameters handed to the gateway at
// startup. Path is only meaningful for file-backed engines.
type ConnParams struct {
	Host     string
	Port     int
	User     string
	Password string
	Path     string
}

type Dialect interface {
	// Name is the configuration name of the dialect.
	Name() string

	// DriverName returns the database/sql driver name.
	DriverName() string

	// DSN builds a connection string targeting the named database. An empty
	// name connects without selecting a default schema.
	DSN(p ConnParams, database string) string

	// QuoteIdentifier validates name and wraps it in the engine's quote
	// character. Names outside the allowed charset are rejected.
	QuoteIdentifier(name string) (string, error)

	// Placeholder returns the bind marker for the i-th parameter (1-based).
	Placeholder(i int) string

	// ListDatabasesQuery returns the query enumerating accessible schemas.
	ListDatabasesQuery() (string, []any)

	// ListTablesQuery returns the query enumerating tables. An empty
	// database means the connection's current schema.
	ListTablesQuery(database string) (string, []any)

	// DescribeTableQuery returns the query enumerating a table's columns in
	// definition order.
	DescribeTableQuery(database, table string) (string, []any)

	// ScanColumnRow scans one row of the describe query into a column map.
	ScanColumnRow(rows *sql.Rows) (map[string]any, error)

	// SupportsCreateDatabase reports whether CREATE/DROP DATABASE is
	// meaningful for this engine.
	SupportsCreateDatabase() bool

	// SupportsLastInsertID reports whether the driver returns insert ids.
	SupportsLastInsertID() bool

	// Classify maps a driver-level error onto the gateway error taxonomy.
	Classify(err error) action.Kind
}

// Get resolves a configured driver name to its dialect.
func Get(name string) (Dialect, error) {
	switch name {
	case "mysql":
		return &MySQL{}, nil
	case "postgres":
		return &Postgres{}, nil
	case "sqlite":
		return &SQLite{}, nil
	}
	return nil, fmt.Errorf("unsupported driver %q (expected mysql, postgres or sqlite)", name)
}

// classifyCommon handles failures below the SQL layer that look the same
// for every engine.
func classifyCommon(err error) (action.Kind, bool) {
	var ne net.Error
	if errors.As(err, &ne) {
		return action.KindConnection, true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return action.KindConnection, true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return action.KindConnection, true
	}
	return action.KindUnknown, false
}
