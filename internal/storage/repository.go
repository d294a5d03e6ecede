// Package storage defines the backend-agnostic table repository used by the
// pipeline steps and a registry of backend factories.
//
// Backends (postgres, sqlite, mssql) register themselves from init(); import
// internal/storage/all to link every one of them.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a repository.
//
// Edge cases:
//   - Kind must match a registered backend kind.
//   - DSN is passed through to the backend; validation is backend-specific.
//   - BatchSize <= 0 lets the backend choose rows per INSERT.
type Config struct {
	Kind      string
	DSN       string
	BatchSize int
}

// Repository is the set of table operations the pipeline needs.
//
// Every step fully rewrites its output tables, so the interface is built
// around replacing tables rather than upserts. WriteTables is the atomic form
// the pipeline uses; ReplaceTable and InsertRows each commit on their own.
type Repository interface {
	// Close releases connections. Call it once when done.
	Close()

	// ReplaceTable drops spec.Name if it exists and creates it from spec.
	ReplaceTable(ctx context.Context, spec TableSpec) error

	// InsertRows appends rows to table. Each row must have len(columns) cells.
	// records.Missing and nil cells are written as NULL.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// WriteTables replaces every table and inserts its rows in a single
	// transaction, so readers see either all of the new tables or none. The
	// result holds the rows written per table, in argument order.
	WriteTables(ctx context.Context, tables ...TableData) ([]int64, error)

	// SelectRows reads every row of table. Cells are passed through
	// NormalizeValue; NULL comes back as records.Missing.
	SelectRows(ctx context.Context, table string) ([]string, [][]any, error)
}

// Factory opens a repository for one backend.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind.
//
// When to use:
//   - From an init() function in a backend package.
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New opens a repository with the factory registered for cfg.Kind.
//
// Errors:
//   - cfg.Kind is empty or not registered.
//   - Whatever the factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported storage.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
