package mssql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/Huy0211/DPA01-project/internal/storage"
	"github.com/Huy0211/DPA01-project/pkg/records"
)

type execCall struct {
	query string
	args  []any
}

type fakeTx struct {
	calls      []execCall
	failOn     int
	committed  bool
	rolledBack bool
}

type fakeResult int64

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return int64(r), nil }

func (f *fakeTx) ExecContext(_ context.Context, q string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query: q, args: args})
	if f.failOn > 0 && len(f.calls) == f.failOn {
		return nil, errors.New("boom")
	}
	return fakeResult(strings.Count(q, "(@p")), nil
}
func (f *fakeTx) Commit() error   { f.committed = true; return nil }
func (f *fakeTx) Rollback() error { f.rolledBack = !f.committed; return nil }

type fakeDB struct {
	tx     *fakeTx
	closed bool
}

func (f *fakeDB) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("not used")
}
func (f *fakeDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not used")
}
func (f *fakeDB) BeginTx(context.Context, *sql.TxOptions) (txConn, error) { return f.tx, nil }
func (f *fakeDB) Close() error                                            { f.closed = true; return nil }

func TestMSSQLIdent(t *testing.T) {
	t.Parallel()
	if got := mssqlIdent("a]b"); got != "[a]]b]" {
		t.Fatalf("mssqlIdent=%s", got)
	}
	if got := mssqlTableIdent("dbo.raw_data"); got != "[dbo].[raw_data]" {
		t.Fatalf("mssqlTableIdent=%s", got)
	}
}

func TestBuildReplaceSQL(t *testing.T) {
	t.Parallel()
	stmts, err := buildReplaceSQL(storage.TableSpec{
		Name: "census.category_codes",
		Columns: []storage.ColumnSpec{
			{Name: "column_name", Type: storage.TypeText},
			{Name: "code", Type: storage.TypeBigint},
			{Name: "share", Type: storage.TypeDouble, Nullable: func() *bool { v := true; return &v }()},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"IF SCHEMA_ID(N'census') IS NULL EXEC(N'CREATE SCHEMA [census]');",
		"DROP TABLE IF EXISTS [census].[category_codes];",
		"CREATE TABLE [census].[category_codes] ([column_name] NVARCHAR(MAX) NOT NULL, [code] BIGINT NOT NULL, [share] FLOAT NULL);",
	}
	if strings.Join(stmts, "\n") != strings.Join(want, "\n") {
		t.Fatalf("got:\n%s\nwant:\n%s", strings.Join(stmts, "\n"), strings.Join(want, "\n"))
	}
}

func TestBuildBulkInsertSQL(t *testing.T) {
	t.Parallel()
	q, args := buildBulkInsertSQL("dbo.t", []string{"a", "b"}, [][]any{{1, records.Missing}, {2, "x"}})
	if q != "INSERT INTO [dbo].[t] ([a], [b]) VALUES (@p1, @p2), (@p3, @p4);" {
		t.Fatalf("sql=%s", q)
	}
	if len(args) != 4 || args[1] != nil || args[3] != "x" {
		t.Fatalf("args=%#v", args)
	}
}

func TestRepo_InsertRows_ChunksUnderParamLimit(t *testing.T) {
	tx := &fakeTx{}
	repo := &Repo{db: &fakeDB{tx: tx}}

	cols := make([]string, 15)
	for i := range cols {
		cols[i] = "c" + string(rune('a'+i))
	}
	rows := make([][]any, 300)
	for i := range rows {
		rows[i] = make([]any, len(cols))
	}

	n, err := repo.InsertRows(context.Background(), "raw_data", cols, rows)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n != 300 {
		t.Fatalf("n=%d want 300", n)
	}
	// 2000/15 = 133 rows per statement.
	if len(tx.calls) != 3 {
		t.Fatalf("statements=%d want 3", len(tx.calls))
	}
	for _, c := range tx.calls {
		if len(c.args) > maxParams {
			t.Fatalf("statement with %d params", len(c.args))
		}
	}
	if !tx.committed {
		t.Fatal("expected commit")
	}
}

func TestRepo_InsertRows_FailureRollsBack(t *testing.T) {
	tx := &fakeTx{failOn: 2}
	repo := &Repo{db: &fakeDB{tx: tx}, batchSize: 1}

	_, err := repo.InsertRows(context.Background(), "t", []string{"a"}, [][]any{{1}, {2}, {3}})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err=%v", err)
	}
	if tx.committed || !tx.rolledBack {
		t.Fatalf("committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}

func TestRepo_ReplaceTable(t *testing.T) {
	tx := &fakeTx{}
	db := &fakeDB{tx: tx}
	repo := &Repo{db: db}

	if err := repo.ReplaceTable(context.Background(), storage.TextTable("raw_data", []string{"age"})); err != nil {
		t.Fatal(err)
	}
	if len(tx.calls) != 2 || !strings.HasPrefix(tx.calls[0].query, "DROP TABLE IF EXISTS [raw_data]") {
		t.Fatalf("calls=%v", tx.calls)
	}
	repo.Close()
	if !db.closed {
		t.Fatal("Close did not close the db")
	}
}

func TestRepo_WriteTables_OneTransaction(t *testing.T) {
	tx := &fakeTx{}
	repo := &Repo{db: &fakeDB{tx: tx}}

	n, err := repo.WriteTables(context.Background(),
		storage.TableData{Spec: storage.TextTable("transformed_data", []string{"age"}), Rows: [][]any{{"39"}, {"50"}}},
		storage.TableData{Spec: storage.TextTable("category_codes", []string{"label"})},
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(n) != 2 || n[0] != 2 || n[1] != 0 {
		t.Fatalf("counts=%v", n)
	}
	// drop+create, insert, drop+create; no insert for the empty table.
	if len(tx.calls) != 5 || !strings.HasPrefix(tx.calls[3].query, "DROP TABLE IF EXISTS [category_codes]") {
		t.Fatalf("calls=%v", tx.calls)
	}
	if !tx.committed {
		t.Fatal("expected commit")
	}
}

func TestRepo_WriteTables_FailureRollsBackEveryTable(t *testing.T) {
	tx := &fakeTx{failOn: 4}
	repo := &Repo{db: &fakeDB{tx: tx}}

	_, err := repo.WriteTables(context.Background(),
		storage.TableData{Spec: storage.TextTable("transformed_data", []string{"age"}), Rows: [][]any{{"39"}}},
		storage.TableData{Spec: storage.TextTable("category_codes", []string{"label"})},
	)
	if err == nil || !strings.Contains(err.Error(), "mssql: replace category_codes") {
		t.Fatalf("err=%v", err)
	}
	if tx.committed || !tx.rolledBack {
		t.Fatalf("committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}
