package dialect

import (
	"database/sql"
	"errors"

	sqlite "modernc.org/sqlite"

	"sqlgate/internal/action"
)

// SQLite implements Dialect for file-backed SQLite databases.
type SQLite struct{}

func (d *SQLite) Name() string       { return "sqlite" }
func (d *SQLite) DriverName() string { return "sqlite" }

func (d *SQLite) DSN(p ConnParams, database string) string {
	// SQLite has one database per file. An explicit database argument names
	// an alternate file; otherwise the configured path is used.
	if database != "" {
		return database
	}
	return p.Path
}

func (d *SQLite) QuoteIdentifier(name string) (string, error) {
	return quoteIdentifier(name, '"')
}

func (d *SQLite) Placeholder(int) string { return "?" }

func (d *SQLite) ListDatabasesQuery() (string, []any) {
	return `SELECT name FROM pragma_database_list ORDER BY seq`, nil
}

func (d *SQLite) ListTablesQuery(string) (string, []any) {
	// No information_schema; sqlite_master is the catalog.
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`, nil
}

func (d *SQLite) DescribeTableQuery(_, table string) (string, []any) {
	return `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`,
		[]any{table}
}

func (d *SQLite) ScanColumnRow(rows *sql.Rows) (map[string]any, error) {
	var name, colType string
	var notNull, pk int
	var dfltValue sql.NullString

	if err := rows.Scan(&name, &colType, &notNull, &dfltValue, &pk); err != nil {
		return nil, err
	}

	isNullable := "YES"
	if notNull == 1 {
		isNullable = "NO"
	}

	col := map[string]any{
		"column_name": name,
		"data_type":   colType,
		"is_nullable": isNullable,
	}
	if pk > 0 {
		col["column_key"] = "PRI"
	}
	if dfltValue.Valid {
		col["column_default"] = dfltValue.String
	}
	return col, nil
}

// One database per file; CREATE DATABASE has no meaning here.
func (d *SQLite) SupportsCreateDatabase() bool { return false }
func (d *SQLite) SupportsLastInsertID() bool   { return true }

func (d *SQLite) Classify(err error) action.Kind {
	if kind, ok := classifyCommon(err); ok {
		return kind
	}
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return action.KindUnknown
	}
	switch se.Code() & 0xff { // primary result code
	case 1: // SQLITE_ERROR: covers syntax and unknown-object errors
		return action.KindSyntax
	case 19: // SQLITE_CONSTRAINT
		return action.KindConstraint
	case 14, 23: // SQLITE_CANTOPEN, SQLITE_AUTH
		return action.KindConnection
	}
	return action.KindUnknown
}
