// Package catalog inspects a PostgreSQL database's metadata: the tables and
// sequences a user may select from, and the foreign-key edges between
// tables that the relation resolver and planner walk to compute closure.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbsmedya/xdump/internal/xerrors"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so the inspector can run
// standalone for CLI commands or pinned to the Snapshot Executor's single
// transaction during a dump.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Mode selects which partition of a table's outgoing foreign keys to return.
type Mode int

const (
	// NonRecursive selects edges where from_table != to_table.
	NonRecursive Mode = iota
	// Recursive selects edges where from_table == to_table.
	Recursive
)

// ForeignKey is a directed foreign-key edge from (FromTable, FromColumn) to
// (ToTable, ToColumn), named by ConstraintName.
type ForeignKey struct {
	FromTable      string
	FromColumn     string
	ToTable        string
	ToColumn       string
	ConstraintName string
}

// IsRecursive reports whether the edge references its own table.
func (fk ForeignKey) IsRecursive() bool {
	return fk.FromTable == fk.ToTable
}

// Inspector queries PostgreSQL catalog metadata.
type Inspector struct {
	q Querier
}

// New creates an Inspector over the given connection or transaction.
func New(q Querier) *Inspector {
	return &Inspector{q: q}
}

// ListSelectableTables returns table identifiers visible to the current
// user, excluding system schemas.
func (i *Inspector) ListSelectableTables(ctx context.Context) ([]string, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		  AND table_type = 'BASE TABLE'
		ORDER BY table_schema, table_name`

	rows, err := i.q.QueryContext(ctx, query)
	if err != nil {
		return nil, &xerrors.CatalogError{Op: "list_selectable_tables", Err: err}
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &xerrors.CatalogError{Op: "list_selectable_tables scan", Err: err}
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &xerrors.CatalogError{Op: "list_selectable_tables iterate", Err: err}
	}
	return tables, nil
}

// ListSequences returns sequence names visible to the current user.
func (i *Inspector) ListSequences(ctx context.Context) ([]string, error) {
	const query = `
		SELECT c.relname
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind = 'S'
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY n.nspname, c.relname`

	rows, err := i.q.QueryContext(ctx, query)
	if err != nil {
		return nil, &xerrors.CatalogError{Op: "list_sequences", Err: err}
	}
	defer rows.Close()

	var sequences []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &xerrors.CatalogError{Op: "list_sequences scan", Err: err}
		}
		sequences = append(sequences, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &xerrors.CatalogError{Op: "list_sequences iterate", Err: err}
	}
	return sequences, nil
}

// ForeignKeysOf returns table's outgoing foreign keys filtered to mode
// (recursive or non-recursive) and with any edge whose target is in
// exclude dropped.
func (i *Inspector) ForeignKeysOf(ctx context.Context, table string, mode Mode, exclude map[string]struct{}) ([]ForeignKey, error) {
	const query = `
		SELECT
			tc.constraint_name,
			kcu.column_name       AS from_column,
			ccu.table_name        AS to_table,
			ccu.column_name       AS to_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_name = $1`

	rows, err := i.q.QueryContext(ctx, query, table)
	if err != nil {
		return nil, &xerrors.CatalogError{Op: fmt.Sprintf("foreign_keys_of(%s)", table), Err: err}
	}
	defer rows.Close()

	var edges []ForeignKey
	for rows.Next() {
		fk := ForeignKey{FromTable: table}
		if err := rows.Scan(&fk.ConstraintName, &fk.FromColumn, &fk.ToTable, &fk.ToColumn); err != nil {
			return nil, &xerrors.CatalogError{Op: "foreign_keys_of scan", Err: err}
		}

		if mode == Recursive && !fk.IsRecursive() {
			continue
		}
		if mode == NonRecursive && fk.IsRecursive() {
			continue
		}
		if _, skip := exclude[fk.ToTable]; skip {
			continue
		}

		edges = append(edges, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, &xerrors.CatalogError{Op: "foreign_keys_of iterate", Err: err}
	}
	return edges, nil
}
