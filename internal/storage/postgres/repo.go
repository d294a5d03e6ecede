// Package postgres implements storage.Repository on pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Huy0211/DPA01-project/internal/storage"
)

// maxParams is the Postgres wire protocol limit on bind parameters.
const maxParams = 65535

// pool is the subset of *pgxpool.Pool the repository uses. pgxmock pools
// satisfy it in tests.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Repo implements storage.Repository for Postgres.
type Repo struct {
	pool      pool
	batchSize int
}

func init() {
	storage.Register("postgres", New)
}

// New opens a pgx pool for cfg.DSN and checks connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	p, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return newRepo(p, cfg.BatchSize), nil
}

func newRepo(p pool, batchSize int) *Repo {
	return &Repo{pool: p, batchSize: batchSize}
}

// Close closes the pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// ReplaceTable drops and recreates spec.Name in one transaction.
func (r *Repo) ReplaceTable(ctx context.Context, spec storage.TableSpec) error {
	stmts, err := buildReplaceSQL(spec)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := execReplace(ctx, tx, spec.Name, stmts); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// InsertRows writes rows with multi-row INSERTs inside one transaction, so a
// failed chunk leaves no partial load behind.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("postgres: insert into %s: no columns", table)
	}
	if err := storage.CheckRows(table, len(columns), rows); err != nil {
		return 0, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	total, err := r.insert(ctx, tx, table, columns, rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return total, nil
}

// WriteTables replaces and fills every table in one transaction. Postgres DDL
// is transactional, so a failure on any table rolls back the drops too.
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

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

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
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit: %w", err)
	}
	return counts, nil
}

func execReplace(ctx context.Context, tx pgx.Tx, table string, stmts []string) error {
	for _, s := range stmts {
		if _, err := tx.Exec(ctx, s); err != nil {
			return fmt.Errorf("postgres: replace %s: %w", table, err)
		}
	}
	return nil
}

func (r *Repo) insert(ctx context.Context, tx pgx.Tx, table string, columns []string, rows [][]any) (int64, error) {
	var total int64
	for _, chunk := range storage.ChunkRows(rows, len(columns), maxParams, r.batchSize) {
		sql, args := buildInsertSQL(table, columns, chunk)
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return 0, fmt.Errorf("postgres: insert into %s: %w", table, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

// SelectRows reads the whole table in physical order.
func (r *Repo) SelectRows(ctx context.Context, table string) ([]string, [][]any, error) {
	rows, err := r.pool.Query(ctx, buildSelectSQL(table))
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: select %s: %w", table, err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: scan %s: %w", table, err)
		}
		row := make([]any, len(vals))
		for i, v := range vals {
			row[i] = storage.NormalizeValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("postgres: select %s: %w", table, err)
	}
	return cols, out, nil
}
