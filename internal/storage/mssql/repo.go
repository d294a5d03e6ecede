// Package mssql implements storage.Repository for Microsoft SQL Server.
//
// The package does not import a driver. The application must register one
// under the name "sqlserver" (internal/storage/all links go-mssqldb).
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/Huy0211/DPA01-project/internal/storage"
)

// maxParams stays under SQL Server's 2100 parameters per request.
const maxParams = 2000

// maxRowsPerInsert is the limit on rows in a single VALUES table constructor.
const maxRowsPerInsert = 1000

// Repo implements storage.Repository for SQL Server.
type Repo struct {
	db        dbConn
	batchSize int
}

func init() {
	storage.Register("mssql", New)
}

// New opens cfg.DSN with the "sqlserver" driver and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	raw.SetMaxOpenConns(16)
	raw.SetMaxIdleConns(16)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: &sqlDB{db: raw}, batchSize: cfg.BatchSize}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

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
		return 0, fmt.Errorf("mssql: insert into %s: no columns", table)
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

// WriteTables replaces and fills every table in one transaction.
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

func execReplace(ctx context.Context, tx txConn, table string, stmts []string) error {
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("mssql: replace %s: %w", table, err)
		}
	}
	return nil
}

func (r *Repo) insert(ctx context.Context, tx txConn, table string, columns []string, rows [][]any) (int64, error) {
	limit := maxRowsPerInsert
	if r.batchSize > 0 && r.batchSize < limit {
		limit = r.batchSize
	}

	var total int64
	for _, chunk := range storage.ChunkRows(rows, len(columns), maxParams, limit) {
		q, args := buildBulkInsertSQL(table, columns, chunk)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("mssql: insert into %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// SelectRows reads the whole table.
func (r *Repo) SelectRows(ctx context.Context, table string) ([]string, [][]any, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT * FROM "+mssqlTableIdent(table)+";")
	if err != nil {
		return nil, nil, fmt.Errorf("mssql: select %s: %w", table, err)
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
			return nil, nil, fmt.Errorf("mssql: scan %s: %w", table, err)
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

func mssqlType(logical string) (string, error) {
	switch logical {
	case storage.TypeText:
		return "NVARCHAR(MAX)", nil
	case storage.TypeBigint:
		return "BIGINT", nil
	case storage.TypeDouble:
		return "FLOAT", nil
	}
	return "", fmt.Errorf("mssql: unsupported column type %q", logical)
}

// buildReplaceSQL renders an optional schema creation, DROP TABLE IF EXISTS
// (SQL Server 2016+) and CREATE TABLE.
func buildReplaceSQL(spec storage.TableSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	defs := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		typ, err := mssqlType(c.Type)
		if err != nil {
			return nil, err
		}
		def := mssqlIdent(c.Name) + " " + typ
		if c.IsNullable() {
			def += " NULL"
		} else {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	var stmts []string
	if parts := strings.Split(spec.Name, "."); len(parts) == 2 {
		schema := strings.TrimSpace(parts[0])
		stmts = append(stmts, fmt.Sprintf(
			"IF SCHEMA_ID(N'%s') IS NULL EXEC(N'CREATE SCHEMA %s');",
			strings.ReplaceAll(schema, "'", "''"),
			strings.ReplaceAll(mssqlIdent(schema), "'", "''"),
		))
	}
	t := mssqlTableIdent(spec.Name)
	stmts = append(stmts,
		"DROP TABLE IF EXISTS "+t+";",
		"CREATE TABLE "+t+" ("+strings.Join(defs, ", ")+");",
	)
	return stmts, nil
}

// buildBulkInsertSQL builds a single INSERT ... VALUES statement for all rows.
func buildBulkInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("@p")
			b.WriteString(strconv.Itoa(p))
			args = append(args, storage.DBValue(row[j]))
			p++
		}
		b.WriteByte(')')
	}
	b.WriteByte(';')
	return b.String(), args
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent quotes each part of a schema-qualified name.
//
//	"dbo.raw_data" -> [dbo].[raw_data]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}
