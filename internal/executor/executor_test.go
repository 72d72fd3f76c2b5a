package executor

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlgate/internal/action"
	"sqlgate/internal/db"
	"sqlgate/internal/dialect"
)

func newTestExecutor(t *testing.T, opts Options) (*Executor, sqlmock.Sqlmock, *db.Provider) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	d := &dialect.MySQL{}
	provider := db.NewProvider(d, dialect.ConnParams{Host: "localhost", Port: 3306, User: "root"},
		db.WithOpener(func(_, _ string) (*sql.DB, error) { return sqlDB, nil }))
	return New(provider, d, opts), mock, provider
}

func TestInsertRow_ParameterizedStatement(t *testing.T) {
	e, mock, _ := newTestExecutor(t, Options{})

	// Values must never appear in the statement text, only placeholders.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `t` (`a`, `b`) VALUES (?, ?)")).
		WithArgs(1, "x").
		WillReturnResult(sqlmock.NewResult(42, 1))

	res, err := e.insertRow(context.Background(), action.Args{
		"table": "t",
		"data":  map[string]any{"b": "x", "a": 1},
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, int64(1), res.RowCount)
	assert.Equal(t, int64(42), res.LastInsertID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRow_RejectsBadColumnName(t *testing.T) {
	e, mock, _ := newTestExecutor(t, Options{})

	_, err := e.insertRow(context.Background(), action.Args{
		"table": "t",
		"data":  map[string]any{"a; DROP TABLE t": 1},
	})
	require.Error(t, err)

	var ae *action.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, action.KindInvalidIdentifier, ae.Kind)
	assert.NoError(t, mock.ExpectationsWereMet(), "no statement may reach the database")
}

func TestInsertRow_RejectsEmptyData(t *testing.T) {
	e, _, _ := newTestExecutor(t, Options{})

	_, err := e.insertRow(context.Background(), action.Args{
		"table": "t",
		"data":  map[string]any{},
	})
	var ae *action.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, action.KindInvalidArgument, ae.Kind)
}

func TestExecuteMany_OneExecutionPerTuple(t *testing.T) {
	e, mock, _ := newTestExecutor(t, Options{})

	stmt := "INSERT INTO t (a) VALUES (?)"
	prep := mock.ExpectPrepare(regexp.QuoteMeta(stmt))
	prep.ExpectExec().WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(2).WillReturnResult(sqlmock.NewResult(0, 2))
	prep.ExpectExec().WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 3))

	res, err := e.executeMany(context.Background(), action.Args{
		"sql":    stmt,
		"params": []any{[]any{1}, []any{2}, []any{3}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.RowCount, "affected rows must be summed across the batch")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteMany_RejectsNonTupleParams(t *testing.T) {
	e, _, _ := newTestExecutor(t, Options{})

	_, err := e.executeMany(context.Background(), action.Args{
		"sql":    "INSERT INTO t (a) VALUES (?)",
		"params": []any{[]any{1}, "not-a-tuple"},
	})
	var ae *action.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, action.KindInvalidArgument, ae.Kind)
	assert.Contains(t, ae.Message, "element 1")
}

func TestRunSQL_QueryReturnsRows(t *testing.T) {
	e, mock, _ := newTestExecutor(t, Options{})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("ada")).
			AddRow(int64(2), []byte("grace")))

	res, err := e.runSQL(context.Background(), action.Args{"sql": "SELECT id, name FROM users"})
	require.NoError(t, err)
	require.Equal(t, int64(2), res.RowCount)
	assert.Equal(t, "ada", res.Rows[0]["name"], "byte slices must surface as text")
	assert.Equal(t, int64(2), res.Rows[1]["id"])
}

func TestRunSQL_MutationReturnsAffectedCount(t *testing.T) {
	e, mock, _ := newTestExecutor(t, Options{})

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET active = 0")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	res, err := e.runSQL(context.Background(), action.Args{"sql": "UPDATE users SET active = 0"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, int64(3), res.RowCount)
	assert.Nil(t, res.Rows)
}

func TestRunSQL_TruncatesLargeResults(t *testing.T) {
	e, mock, _ := newTestExecutor(t, Options{MaxResultRows: 2})

	rows := sqlmock.NewRows([]string{"n"}).AddRow(1).AddRow(2).AddRow(3)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT n FROM big")).WillReturnRows(rows)

	res, err := e.runSQL(context.Background(), action.Args{"sql": "SELECT n FROM big"})
	require.NoError(t, err)
	require.Equal(t, int64(3), res.RowCount)
	assert.Contains(t, res.Rows[2], "_warning")
}

func TestDescribeTable_PreservesDefinitionOrder(t *testing.T) {
	e, mock, _ := newTestExecutor(t, Options{})

	cols := []string{"column_name", "column_type", "is_nullable", "column_key", "column_default", "extra"}
	mock.ExpectQuery("SELECT column_name, column_type, is_nullable").
		WithArgs("users").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("id", "int(11)", "NO", "PRI", nil, "auto_increment").
			AddRow("name", "varchar(50)", "YES", "", nil, ""))

	res, err := e.describeTable(context.Background(), action.Args{"table": "users"})
	require.NoError(t, err)
	require.Equal(t, int64(2), res.RowCount)
	assert.Equal(t, "id", res.Rows[0]["column_name"])
	assert.Equal(t, "PRI", res.Rows[0]["column_key"])
	assert.Equal(t, "name", res.Rows[1]["column_name"])
	assert.Equal(t, "YES", res.Rows[1]["is_nullable"])
}

func TestHandleReleasedAfterFailure(t *testing.T) {
	e, mock, provider := newTestExecutor(t, Options{})

	mock.ExpectExec(regexp.QuoteMeta("UPDATE broken SET x = 1")).
		WillReturnError(errors.New("table is on fire"))

	_, err := e.runSQL(context.Background(), action.Args{"sql": "UPDATE broken SET x = 1"})
	require.Error(t, err)
	assert.Equal(t, 0, provider.Stats("").InUse,
		"connection must return to the pool after a failed call")
}

func TestDropTable_QuotesIdentifier(t *testing.T) {
	e, mock, _ := newTestExecutor(t, Options{})

	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE `old_logs`")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	res, err := e.dropTable(context.Background(), action.Args{"table": "old_logs"})
	require.NoError(t, err)
	assert.True(t, res.OK)

	_, err = e.dropTable(context.Background(), action.Args{"table": "logs`; DROP DATABASE x"})
	var ae *action.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, action.KindInvalidIdentifier, ae.Kind)
}

func TestCreateDatabase_QuotesName(t *testing.T) {
	e, mock, _ := newTestExecutor(t, Options{})

	mock.ExpectExec(regexp.QuoteMeta("CREATE DATABASE `staging`")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := e.createDatabase(context.Background(), action.Args{"name": "staging"})
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestDatabaseDDL_UnsupportedEngine(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	provider := db.NewProvider(&dialect.SQLite{}, dialect.ConnParams{Path: "/tmp/x.db"},
		db.WithOpener(func(_, _ string) (*sql.DB, error) { return sqlDB, nil }))
	e := New(provider, &dialect.SQLite{}, Options{})

	_, err = e.createDatabase(context.Background(), action.Args{"name": "staging"})
	var ae *action.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, action.KindInvalidArgument, ae.Kind)
}

func TestRegister_DescriptorSetComplete(t *testing.T) {
	e, _, _ := newTestExecutor(t, Options{})
	reg := action.NewRegistry()
	e.Register(reg)

	want := []string{
		"ping", "list_databases", "list_tables", "describe_table", "run_sql",
		"create_database", "drop_database", "create_table", "drop_table",
		"insert_row", "execute_many",
	}
	list := reg.List()
	require.Len(t, list, len(want))
	for i, name := range want {
		assert.Equal(t, name, list[i].Name)
		assert.NotEmpty(t, list[i].Description)
	}
}

func TestReturnsRows(t *testing.T) {
	cases := []struct {
		sql  string
		want bool
	}{
		{"SELECT * FROM t", true},
		{"select 1", true},
		{"  SHOW TABLES", true},
		{"EXPLAIN SELECT 1", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"INSERT INTO t VALUES (1)", false},
		{"UPDATE t SET a = 1", false},
		{"DELETE FROM t", false},
		{"CREATE TABLE t (id INT)", false},
		{"", false},
	}
	for _, tc := range cases {
		t.Run(tc.sql, func(t *testing.T) {
			if got := returnsRows(tc.sql); got != tc.want {
				t.Errorf("returnsRows(%q) = %v, want %v", tc.sql, got, tc.want)
			}
		})
	}
}
