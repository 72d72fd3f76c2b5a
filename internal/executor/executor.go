// Package executor implements the SQL handlers behind every gateway action.
// Each handler acquires a scoped connection, executes a single statement (or
// one batch) against the engine and normalizes the outcome into the result
// envelope.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"sqlgate/internal/action"
	"sqlgate/internal/db"
	"sqlgate/internal/dialect"
)

// Defaults, overridable via Options.
const (
	defaultMaxResultRows = 10000
	defaultQueryTimeout  = 30 * time.Second
)

type Options struct {
	// DefaultDatabase is used when a call does not name a target database.
	DefaultDatabase string
	MaxResultRows   int
	QueryTimeout    time.Duration
	Logger          *slog.Logger
}

type Executor struct {
	provider  *db.Provider
	dialect   dialect.Dialect
	defaultDB string
	maxRows   int
	timeout   time.Duration
	log       *slog.Logger
}

func New(provider *db.Provider, d dialect.Dialect, opts Options) *Executor {
	if opts.MaxResultRows <= 0 {
		opts.MaxResultRows = defaultMaxResultRows
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		provider:  provider,
		dialect:   d,
		defaultDB: opts.DefaultDatabase,
		maxRows:   opts.MaxResultRows,
		timeout:   opts.QueryTimeout,
		log:       opts.Logger,
	}
}

// Register installs every action this executor implements. The descriptor
// set is the single source of truth for capability advertisement; a handler
// without a descriptor here does not exist.
func (e *Executor) Register(reg *action.Registry) {
	databaseField := action.Field{
		Name: "database", Type: action.TypeString,
		Description: "Target database; defaults to the configured database",
	}

	reg.Register(action.Descriptor{
		Name:        "ping",
		Description: "Verify connectivity to the database engine.",
		Handler:     e.ping,
	})
	reg.Register(action.Descriptor{
		Name:        "list_databases",
		Description: "List all accessible databases (schemas).",
		Handler:     e.listDatabases,
	})
	reg.Register(action.Descriptor{
		Name:        "list_tables",
		Description: "List tables in the target database.",
		Fields:      []action.Field{databaseField},
		Handler:     e.listTables,
	})
	reg.Register(action.Descriptor{
		Name:        "describe_table",
		Description: "Describe a table's columns: name, type, nullability and key, in definition order.",
		Fields: []action.Field{
			{Name: "table", Type: action.TypeString, Required: true, Description: "Table to describe"},
			databaseField,
		},
		Handler: e.describeTable,
	})
	reg.Register(action.Descriptor{
		Name: "run_sql",
		Description: "Execute caller-supplied SQL verbatim (DDL/DML/SELECT). " +
			"This is a trusted-caller capability: the statement is not inspected or restricted.",
		Fields: []action.Field{
			{Name: "sql", Type: action.TypeString, Required: true, Description: "SQL statement to execute"},
			databaseField,
		},
		Handler: e.runSQL,
	})
	reg.Register(action.Descriptor{
		Name:        "create_database",
		Description: "Create a database. The name is validated and quoted, never interpolated raw.",
		Fields: []action.Field{
			{Name: "name", Type: action.TypeString, Required: true, Description: "Database name"},
		},
		Handler: e.createDatabase,
	})
	reg.Register(action.Descriptor{
		Name:        "drop_database",
		Description: "Drop a database. The name is validated and quoted, never interpolated raw.",
		Fields: []action.Field{
			{Name: "name", Type: action.TypeString, Required: true, Description: "Database name"},
		},
		Handler: e.dropDatabase,
	})
	reg.Register(action.Descriptor{
		Name: "create_table",
		Description: "Execute a caller-supplied CREATE TABLE statement verbatim. " +
			"This is a trusted-caller capability: the DDL is not inspected or restricted.",
		Fields: []action.Field{
			{Name: "ddl_sql", Type: action.TypeString, Required: true, Description: "CREATE TABLE statement"},
			databaseField,
		},
		Handler: e.createTable,
	})
	reg.Register(action.Descriptor{
		Name:        "drop_table",
		Description: "Drop a table. The name is validated and quoted, never interpolated raw.",
		Fields: []action.Field{
			{Name: "table", Type: action.TypeString, Required: true, Description: "Table name"},
			databaseField,
		},
		Handler: e.dropTable,
	})
	reg.Register(action.Descriptor{
		Name:        "insert_row",
		Description: "Insert one row. Column names are validated and quoted; values are always bound as parameters.",
		Fields: []action.Field{
			{Name: "table", Type: action.TypeString, Required: true, Description: "Target table"},
			{Name: "data", Type: action.TypeObject, Required: true, Description: "Column name to value mapping"},
			databaseField,
		},
		Handler: e.insertRow,
	})
	reg.Register(action.Descriptor{
		Name:        "execute_many",
		Description: "Execute one parameterized statement once per parameter tuple and report the total affected rows.",
		Fields: []action.Field{
			{Name: "sql", Type: action.TypeString, Required: true, Description: "Parameterized SQL statement"},
			{Name: "params", Type: action.TypeArray, Required: true, Description: "Array of parameter tuples (arrays)"},
			databaseField,
		},
		Handler: e.executeMany,
	})
}

// target resolves which database an action runs against: an explicit
// argument wins over the configured default.
func (e *Executor) target(args action.Args) string {
	if d := args.String("database"); d != "" {
		return d
	}
	return e.defaultDB
}

func (e *Executor) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

// wrap classifies a driver-level failure, keeping already-classified errors
// untouched.
func (e *Executor) wrap(err error) error {
	var ae *action.Error
	if errors.As(err, &ae) {
		return ae
	}
	return action.Errorf(e.dialect.Classify(err), "%v", err)
}

func (e *Executor) ping(ctx context.Context, _ action.Args) (*action.Result, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	h, err := e.provider.Acquire(ctx, e.defaultDB)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	if err := h.Conn().PingContext(ctx); err != nil {
		return nil, action.Errorf(action.KindConnection, "%v", err)
	}
	return action.OK(), nil
}

func (e *Executor) listDatabases(ctx context.Context, _ action.Args) (*action.Result, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	h, err := e.provider.Acquire(ctx, "")
	if err != nil {
		return nil, err
	}
	defer h.Release()

	query, qargs := e.dialect.ListDatabasesQuery()
	return e.query(ctx, h, query, qargs)
}

func (e *Executor) listTables(ctx context.Context, args action.Args) (*action.Result, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	database := e.target(args)
	h, err := e.provider.Acquire(ctx, database)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	query, qargs := e.dialect.ListTablesQuery(database)
	return e.query(ctx, h, query, qargs)
}

func (e *Executor) describeTable(ctx context.Context, args action.Args) (*action.Result, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	database := e.target(args)
	h, err := e.provider.Acquire(ctx, database)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	query, qargs := e.dialect.DescribeTableQuery(database, args.String("table"))
	rows, err := h.Conn().QueryContext(ctx, query, qargs...)
	if err != nil {
		return nil, e.wrap(err)
	}
	defer rows.Close()

	var columns []map[string]any
	for rows.Next() {
		col, err := e.dialect.ScanColumnRow(rows)
		if err != nil {
			return nil, e.wrap(err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, e.wrap(err)
	}
	return action.Rows(columns), nil
}

func (e *Executor) runSQL(ctx context.Context, args action.Args) (*action.Result, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	sqlText := args.String("sql")
	h, err := e.provider.Acquire(ctx, e.target(args))
	if err != nil {
		return nil, err
	}
	defer h.Release()

	if returnsRows(sqlText) {
		return e.query(ctx, h, sqlText, nil)
	}
	return e.exec(ctx, h, sqlText)
}

func (e *Executor) createDatabase(ctx context.Context, args action.Args) (*action.Result, error) {
	return e.databaseDDL(ctx, args, "CREATE DATABASE %s")
}

func (e *Executor) dropDatabase(ctx context.Context, args action.Args) (*action.Result, error) {
	return e.databaseDDL(ctx, args, "DROP DATABASE %s")
}

func (e *Executor) databaseDDL(ctx context.Context, args action.Args, format string) (*action.Result, error) {
	if !e.dialect.SupportsCreateDatabase() {
		return nil, action.Errorf(action.KindInvalidArgument,
			"%s does not support database-level DDL", e.dialect.Name())
	}
	quoted, err := e.dialect.QuoteIdentifier(args.String("name"))
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	h, err := e.provider.Acquire(ctx, "")
	if err != nil {
		return nil, err
	}
	defer h.Release()

	if _, err := h.Conn().ExecContext(ctx, fmt.Sprintf(format, quoted)); err != nil {
		return nil, e.wrap(err)
	}
	return action.OK(), nil
}

func (e *Executor) createTable(ctx context.Context, args action.Args) (*action.Result, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	h, err := e.provider.Acquire(ctx, e.target(args))
	if err != nil {
		return nil, err
	}
	defer h.Release()

	if _, err := h.Conn().ExecContext(ctx, args.String("ddl_sql")); err != nil {
		return nil, e.wrap(err)
	}
	return action.OK(), nil
}

func (e *Executor) dropTable(ctx context.Context, args action.Args) (*action.Result, error) {
	quoted, err := e.dialect.QuoteIdentifier(args.String("table"))
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	h, err := e.provider.Acquire(ctx, e.target(args))
	if err != nil {
		return nil, err
	}
	defer h.Release()

	if _, err := h.Conn().ExecContext(ctx, "DROP TABLE "+quoted); err != nil {
		return nil, e.wrap(err)
	}
	return action.OK(), nil
}

func (e *Executor) insertRow(ctx context.Context, args action.Args) (*action.Result, error) {
	data := args.Object("data")
	if len(data) == 0 {
		return nil, action.Errorf(action.KindInvalidArgument, "field data must contain at least one column")
	}

	table, err := e.dialect.QuoteIdentifier(args.String("table"))
	if err != nil {
		return nil, err
	}

	// Deterministic column order so the generated statement is stable.
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := make([]string, len(names))
	placeholders := make([]string, len(names))
	values := make([]any, len(names))
	for i, name := range names {
		quoted, err := e.dialect.QuoteIdentifier(name)
		if err != nil {
			return nil, err
		}
		columns[i] = quoted
		placeholders[i] = e.dialect.Placeholder(i + 1)
		values[i] = data[name]
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	h, err := e.provider.Acquire(ctx, e.target(args))
	if err != nil {
		return nil, err
	}
	defer h.Release()

	res, err := h.Conn().ExecContext(ctx, stmt, values...)
	if err != nil {
		return nil, e.wrap(err)
	}

	affected, _ := res.RowsAffected()
	out := action.Count(affected)
	if e.dialect.SupportsLastInsertID() {
		if id, err := res.LastInsertId(); err == nil && id > 0 {
			out.LastInsertID = id
		}
	}
	return out, nil
}

func (e *Executor) executeMany(ctx context.Context, args action.Args) (*action.Result, error) {
	raw := args.Array("params")
	if len(raw) == 0 {
		return nil, action.Errorf(action.KindInvalidArgument, "field params must contain at least one tuple")
	}
	tuples := make([][]any, len(raw))
	for i, v := range raw {
		tuple, ok := v.([]any)
		if !ok {
			return nil, action.Errorf(action.KindInvalidArgument,
				"field params must be an array of arrays (element %d is not an array)", i)
		}
		tuples[i] = tuple
	}

	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	h, err := e.provider.Acquire(ctx, e.target(args))
	if err != nil {
		return nil, err
	}
	defer h.Release()

	stmt, err := h.Conn().PrepareContext(ctx, args.String("sql"))
	if err != nil {
		return nil, e.wrap(err)
	}
	defer stmt.Close()

	var total int64
	for i, tuple := range tuples {
		res, err := stmt.ExecContext(ctx, tuple...)
		if err != nil {
			return nil, action.Errorf(e.dialect.Classify(err),
				"batch execution %d of %d: %v", i+1, len(tuples), err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return action.Count(total), nil
}

// returnsRows reports whether a statement produces a result set, deciding
// between Query and Exec for caller-supplied SQL.
func returnsRows(sqlText string) bool {
	fields := strings.Fields(sqlText)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH", "VALUES", "PRAGMA", "TABLE":
		return true
	}
	return false
}
