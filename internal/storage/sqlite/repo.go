// Package sqlite implements storage.Repository on modernc.org/sqlite, a
// cgo-free driver suited to local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Huy0211/DPA01-project/internal/storage"
)

// maxParams is SQLITE_MAX_VARIABLE_NUMBER for SQLite >= 3.32.
const maxParams = 32766

// Repo implements storage.Repository for SQLite.
//
// SQLite has no timestamp type; time.Time arguments are stored as
// RFC3339Nano text in UTC.
type Repo struct {
	db        *sql.DB
	batchSize int
}

func init() {
	storage.Register("sqlite", New)
}

// New opens cfg.DSN (a file path or "file:...?..." URI) and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, batchSize: cfg.BatchSize}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// ReplaceTable drops and recreates spec.Name in one transaction.
func (r *Repo) ReplaceTable(ctx context.Context, spec storage.TableSpec) error {
	stmts, err := buildReplaceSQL(spec)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := execReplace(ctx, tx, spec.Name, stmts); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertRows writes rows in chunks inside one transaction.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: insert into %s: no columns", table)
	}
	if err := storage.CheckRows(table, len(columns), rows); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	total, err := r.insert(ctx, tx, table, columns, rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// WriteTables replaces and fills every table in one transaction. A failure on
// any table leaves all of them as they were.
func (r *Repo) WriteTables(ctx context.Context, tables ...storage.TableData) ([]int64, error) {
	if err := storage.CheckTables(tables); err != nil {
		return nil, err
	}
	stmts := make([][]string, len(tables))
	for i, t := range tables {
		var err error
		if stmts[i], err = buildReplaceSQL(t.Spec); err != nil {
			return nil, err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	counts := make([]int64, len(tables))
	for i, t := range tables {
		if err := execReplace(ctx, tx, t.Spec.Name, stmts[i]); err != nil {
			return nil, err
		}
		if len(t.Rows) == 0 {
			continue
		}
		if counts[i], err = r.insert(ctx, tx, t.Spec.Name, t.Spec.ColumnNames(), t.Rows); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return counts, nil
}

func execReplace(ctx context.Context, tx *sql.Tx, table string, stmts []string) error {
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("sqlite: replace %s: %w", table, err)
		}
	}
	return nil
}

func (r *Repo) insert(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	var total int64
	for _, chunk := range storage.ChunkRows(rows, len(columns), maxParams, r.batchSize) {
		q, args := buildInsertSQL(table, columns, chunk)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("sqlite: insert into %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// SelectRows reads the whole table in rowid order.
func (r *Repo) SelectRows(ctx context.Context, table string) ([]string, [][]any, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT * FROM "+sqlIdent(table)+" ORDER BY rowid;")
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: select %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("sqlite: scan %s: %w", table, err)
		}
		for i, v := range vals {
			vals[i] = storage.NormalizeValue(v)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, out, nil
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func sqliteType(logical string) (string, error) {
	switch logical {
	case storage.TypeText:
		return "TEXT", nil
	case storage.TypeBigint:
		return "INTEGER", nil
	case storage.TypeDouble:
		return "REAL", nil
	}
	return "", fmt.Errorf("sqlite: unsupported column type %q", logical)
}

func buildReplaceSQL(spec storage.TableSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	defs := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		typ, err := sqliteType(c.Type)
		if err != nil {
			return nil, err
		}
		def := sqlIdent(c.Name) + " " + typ
		if !c.IsNullable() {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	t := sqlIdent(spec.Name)
	return []string{
		"DROP TABLE IF EXISTS " + t + ";",
		"CREATE TABLE " + t + " (" + strings.Join(defs, ", ") + ");",
	}, nil
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES ")

	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
		for _, v := range r {
			args = append(args, sqliteArg(v))
		}
	}
	b.WriteByte(';')
	return b.String(), args
}

func sqliteArg(v any) any {
	v = storage.DBValue(v)
	if t, ok := v.(time.Time); ok {
		return formatSQLiteTime(t)
	}
	return v
}

// formatSQLiteTime renders t as RFC3339Nano in UTC so text comparisons sort
// chronologically.
func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
