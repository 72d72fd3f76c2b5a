package dialect

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/lib/pq"

	"sqlgate/internal/action"
)

// Postgres implements Dialect for PostgreSQL.
type Postgres struct{}

func (d *Postgres) Name() string       { return "postgres" }
func (d *Postgres) DriverName() string { return "postgres" }

func (d *Postgres) DSN(p ConnParams, database string) string {
	// Postgres sessions are always bound to one database. With no target the
	// server falls back to the role's default, which is enough for
	// database-level listing and CREATE/DROP DATABASE.
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=prefer",
		url.PathEscape(p.User), url.PathEscape(p.Password), p.Host, p.Port, database)
}

func (d *Postgres) QuoteIdentifier(name string) (string, error) {
	return quoteIdentifier(name, '"')
}

func (d *Postgres) Placeholder(i int) string {
	return fmt.Sprintf("$%d", i)
}

func (d *Postgres) ListDatabasesQuery() (string, []any) {
	return `SELECT datname FROM pg_database WHERE NOT datistemplate ORDER BY datname`, nil
}

func (d *Postgres) ListTablesQuery(database string) (string, []any) {
	if database == "" {
		return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_catalog = current_database()
		ORDER BY table_name`, nil
	}
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_catalog = $1
		ORDER BY table_name`, []any{database}
}

func (d *Postgres) DescribeTableQuery(database, table string) (string, []any) {
	if database == "" {
		return `SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_catalog = current_database() AND table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, []any{table}
	}
	return `SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_catalog = $1 AND table_schema = 'public' AND table_name = $2
		ORDER BY ordinal_position`, []any{database, table}
}

func (d *Postgres) ScanColumnRow(rows *sql.Rows) (map[string]any, error) {
	var colName, dataType, isNullable string
	var colDefault sql.NullString

	if err := rows.Scan(&colName, &dataType, &isNullable, &colDefault); err != nil {
		return nil, err
	}

	col := map[string]any{
		"column_name": colName,
		"data_type":   dataType,
		"is_nullable": isNullable,
	}
	if colDefault.Valid {
		col["column_default"] = colDefault.String
	}
	return col, nil
}

func (d *Postgres) SupportsCreateDatabase() bool { return true }

// lib/pq does not implement LastInsertId; callers get affected rows only.
func (d *Postgres) SupportsLastInsertID() bool { return false }

func (d *Postgres) Classify(err error) action.Kind {
	if kind, ok := classifyCommon(err); ok {
		return kind
	}
	var pe *pq.Error
	if !errors.As(err, &pe) {
		return action.KindUnknown
	}
	switch pe.Code.Class() {
	case "42": // syntax error or access rule violation
		return action.KindSyntax
	case "23": // integrity constraint violation
		return action.KindConstraint
	case "08", "28", "3D": // connection exception, invalid authorization, invalid catalog
		return action.KindConnection
	}
	return action.KindUnknown
}
