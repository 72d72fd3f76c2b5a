package dialect

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"sqlgate/internal/action"
)

// MySQL implements Dialect for MySQL and compatible engines.
type MySQL struct{}

func (d *MySQL) Name() string       { return "mysql" }
func (d *MySQL) DriverName() string { return "mysql" }

func (d *MySQL) DSN(p ConnParams, database string) string {
	// An empty database part connects without a default schema, which is
	// what database-level listing and CREATE/DROP DATABASE need.
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", p.User, p.Password, p.Host, p.Port, database)
}

func (d *MySQL) QuoteIdentifier(name string) (string, error) {
	return quoteIdentifier(name, '`')
}

func (d *MySQL) Placeholder(int) string { return "?" }

func (d *MySQL) ListDatabasesQuery() (string, []any) {
	return `SELECT schema_name FROM information_schema.schemata ORDER BY schema_name`, nil
}

func (d *MySQL) ListTablesQuery(database string) (string, []any) {
	if database == "" {
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name`, nil
	}
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = ? ORDER BY table_name`,
		[]any{database}
}

func (d *MySQL) DescribeTableQuery(database, table string) (string, []any) {
	if database == "" {
		return `SELECT column_name, column_type, is_nullable, column_key, column_default, extra
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, []any{table}
	}
	return `SELECT column_name, column_type, is_nullable, column_key, column_default, extra
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, []any{database, table}
}

func (d *MySQL) ScanColumnRow(rows *sql.Rows) (map[string]any, error) {
	var colName, colType, isNullable, colKey string
	var colDefault, extra sql.NullString

	if err := rows.Scan(&colName, &colType, &isNullable, &colKey, &colDefault, &extra); err != nil {
		return nil, err
	}

	col := map[string]any{
		"column_name": colName,
		"data_type":   colType,
		"is_nullable": isNullable,
		"column_key":  colKey,
	}
	if colDefault.Valid {
		col["column_default"] = colDefault.String
	}
	if extra.Valid && extra.String != "" {
		col["extra"] = extra.String
	}
	return col, nil
}

func (d *MySQL) SupportsCreateDatabase() bool { return true }
func (d *MySQL) SupportsLastInsertID() bool   { return true }

func (d *MySQL) Classify(err error) action.Kind {
	if kind, ok := classifyCommon(err); ok {
		return kind
	}
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return action.KindUnknown
	}
	switch me.Number {
	case 1064, 1149: // ER_PARSE_ERROR, ER_SYNTAX_ERROR
		return action.KindSyntax
	case 1048, 1062, 1216, 1217, 1451, 1452, 3819: // NOT NULL, duplicate key, FK, CHECK
		return action.KindConstraint
	case 1044, 1045, 1049, 1130, 1698: // access denied, unknown database, host not allowed
		return action.KindConnection
	}
	return action.KindUnknown
}
