// Package dumper coordinates one full dump: locking the archive path,
// opening the archive, extracting schema and sequence state via pg_dump,
// resolving and executing the foreign-key closure plan, and committing the
// snapshot transaction. It is the only package that touches every other
// component of the partial-dump engine.
package dumper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/xdump/internal/archive"
	"github.com/dbsmedya/xdump/internal/catalog"
	"github.com/dbsmedya/xdump/internal/config"
	"github.com/dbsmedya/xdump/internal/lock"
	"github.com/dbsmedya/xdump/internal/logger"
	"github.com/dbsmedya/xdump/internal/pgtools"
	"github.com/dbsmedya/xdump/internal/planner"
	"github.com/dbsmedya/xdump/internal/snapshot"
	"github.com/dbsmedya/xdump/internal/sqlutil"
	"github.com/dbsmedya/xdump/internal/xerrors"
)

// PartialSpec maps a partial table name to its root selection SQL,
// preserving the insertion order the archive's entry order depends on.
type PartialSpec = *orderedmap.OrderedMap[string, string]

// PartialSpecFromConfig converts a job's ordered partial-table list into a
// PartialSpec, preserving the YAML-declared order.
func PartialSpecFromConfig(tables []config.PartialTable) PartialSpec {
	spec := orderedmap.NewOrderedMap[string, string]()
	for _, t := range tables {
		spec.Set(t.Table, t.SQL)
	}
	return spec
}

// Result summarizes a completed dump.
type Result struct {
	ArchivePath   string
	TablesWritten []string
	RowCounts     map[string]int64
	Duration      time.Duration
}

// Coordinator ties the catalog inspector, planner, snapshot executor,
// pg_dump wrappers, and archive writer together for a single dump job.
type Coordinator struct {
	db     *sql.DB
	pg     *pgtools.Runner
	logger *logger.Logger
}

// New creates a Coordinator. db is the source connection pool; pg wraps
// pg_dump for the schema/sequence extraction steps.
func New(db *sql.DB, pg *pgtools.Runner, log *logger.Logger) *Coordinator {
	return &Coordinator{db: db, pg: pg, logger: log}
}

// Dump locks the archive path, opens the archive, dumps schema and
// sequences, resolves the relation closure of the full and partial tables
// in one plan, writes every planned table (full tables, then partial
// tables, then relation targets, in first-seen order), commits, and closes
// the archive. Any error aborts the snapshot transaction and deletes the
// partial archive file.
func (c *Coordinator) Dump(ctx context.Context, archivePath string, fullTables []string, partialSpec PartialSpec) (*Result, error) {
	start := time.Now()
	log := c.logger.WithArchive(archivePath)

	fileLock := lock.NewFileLock(archivePath)
	if err := fileLock.TryLock(ctx, lock.DefaultAcquireTimeout); err != nil {
		return nil, fmt.Errorf("dump %s: %w", archivePath, err)
	}
	defer fileLock.Unlock()

	var result *Result
	err := lock.WithJobLock(ctx, c.db, archivePath, func(ctx context.Context) error {
		r, err := c.runLocked(ctx, archivePath, fullTables, partialSpec, log)
		result = r
		return err
	})
	if err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (c *Coordinator) runLocked(ctx context.Context, archivePath string, fullTables []string, partialSpec PartialSpec, log *logger.Logger) (*Result, error) {
	aw, err := archive.Create(archivePath)
	if err != nil {
		return nil, err
	}
	succeeded := false
	defer func() {
		if succeeded {
			return
		}
		aw.Abort()
		_ = os.Remove(archivePath)
	}()

	exec := snapshot.New(c.db)
	if err := exec.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if !succeeded {
			_ = exec.Rollback()
		}
	}()

	inspector := catalog.New(exec.Tx())

	selectableTables, err := inspector.ListSelectableTables(ctx)
	if err != nil {
		return nil, err
	}

	log.Infof("dumping schema for %d tables", len(selectableTables))
	schemaSQL, err := c.pg.DumpSchema(ctx, selectableTables)
	if err != nil {
		return nil, err
	}
	if err := aw.WriteBytes(archive.SchemaPath, schemaSQL); err != nil {
		return nil, err
	}

	sequences, err := inspector.ListSequences(ctx)
	if err != nil {
		return nil, err
	}
	log.Infof("dumping %d sequences", len(sequences))
	sequenceSQL, err := c.pg.DumpSequences(ctx, sequences)
	if err != nil {
		return nil, err
	}
	if err := aw.WriteBytes(archive.SequencesPath, sequenceSQL); err != nil {
		return nil, err
	}

	fullSet := make(map[string]struct{}, len(fullTables))
	for _, t := range fullTables {
		fullSet[t] = struct{}{}
	}

	roots := make([]planner.Root, 0, len(fullTables)+partialSpec.Len())
	for _, t := range fullTables {
		roots = append(roots, planner.Root{Table: t, SQL: "SELECT * FROM " + sqlutil.QuoteIdentifier(t)})
	}
	for el := partialSpec.Front(); el != nil; el = el.Next() {
		roots = append(roots, planner.Root{Table: el.Key, SQL: el.Value})
	}

	log.Infof("resolving relation closure for %d roots", len(roots))
	plan, err := planner.Build(ctx, inspector, roots, fullSet)
	if err != nil {
		return nil, err
	}

	rowCounts := make(map[string]int64, len(plan.Tables()))
	for _, table := range plan.Tables() {
		if err := ctx.Err(); err != nil {
			return nil, &xerrors.TransactionError{Op: "dump interrupted", Err: err}
		}

		selection := plan.SelectionFor(table)
		entryWriter, err := aw.EntryWriter(archive.DataPath(table))
		if err != nil {
			return nil, err
		}

		rows, err := exec.CopySelection(ctx, table, selection, entryWriter)
		if err != nil {
			return nil, err
		}
		rowCounts[table] = rows
		log.WithTable(table).Debugf("copied %d rows", rows)
	}

	if err := exec.Commit(); err != nil {
		return nil, err
	}
	if err := aw.Close(); err != nil {
		return nil, err
	}

	succeeded = true
	log.Infof("dump complete: %d tables", len(plan.Tables()))

	return &Result{
		ArchivePath:   archivePath,
		TablesWritten: plan.Tables(),
		RowCounts:     rowCounts,
	}, nil
}
