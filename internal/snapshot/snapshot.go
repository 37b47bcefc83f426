// Package snapshot owns the single repeatable-read transaction a dump runs
// inside: every catalog read, every planned selection, and the COPY of
// each planned selection's rows into the archive all observe one
// consistent view of the source database.
package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/dbsmedya/xdump/internal/xerrors"
)

// InMemoryThreshold is the row-byte-size above which CopySelection streams
// directly into the destination writer instead of buffering the full CSV
// payload before a single write. Below the threshold the whole payload
// reaches the destination writer in one Write call.
const InMemoryThreshold = 8 << 20 // 8 MiB

// Executor holds the dedicated connection and transaction for one dump.
type Executor struct {
	db   *sql.DB
	conn *sql.Conn
	tx   *sql.Tx
	pg   *pgconn.PgConn
}

// New creates an Executor over db. Begin must be called before use.
func New(db *sql.DB) *Executor {
	return &Executor{db: db}
}

// Begin acquires a dedicated connection and starts a read-only
// REPEATABLE READ transaction, then unwraps the pgx connection underneath
// so CopySelection can issue raw-protocol COPY commands against it.
func (e *Executor) Begin(ctx context.Context) error {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return &xerrors.TransactionError{Op: "acquire connection", Err: err}
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		_ = conn.Close()
		return &xerrors.TransactionError{Op: "begin", Err: err}
	}

	if err := conn.Raw(func(driverConn any) error {
		wrapped, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("connection is not a pgx stdlib connection")
		}
		e.pg = wrapped.Conn().PgConn()
		return nil
	}); err != nil {
		_ = tx.Rollback()
		_ = conn.Close()
		return &xerrors.TransactionError{Op: "unwrap pgx connection", Err: err}
	}

	e.conn = conn
	e.tx = tx
	return nil
}

// Tx returns the transaction, satisfying catalog.Querier for metadata
// reads that must observe the same snapshot as the planned data queries.
func (e *Executor) Tx() *sql.Tx {
	return e.tx
}

// CopySelection runs `COPY (<selection>) TO STDOUT WITH CSV HEADER` and
// streams the result into w. Writes are buffered up to InMemoryThreshold
// bytes and flushed in a single call; once a selection's output exceeds
// the threshold, CopySelection switches to writing each chunk straight
// through, bounding memory use for large tables.
func (e *Executor) CopySelection(ctx context.Context, table, selection string, w io.Writer) (int64, error) {
	query := fmt.Sprintf("COPY (%s) TO STDOUT WITH CSV HEADER", selection)

	tw := &thresholdWriter{dest: w, threshold: InMemoryThreshold}
	tag, err := e.pg.CopyTo(ctx, tw, query)
	if err != nil {
		return 0, &xerrors.ExecutionError{Table: table, Query: query, Err: err}
	}
	if err := tw.Flush(); err != nil {
		return 0, &xerrors.ExecutionError{Table: table, Query: query, Err: err}
	}
	return tag.RowsAffected(), nil
}

// thresholdWriter buffers writes until the total exceeds threshold, then
// flushes the buffer and passes every subsequent write straight to dest.
type thresholdWriter struct {
	dest      io.Writer
	threshold int
	buf       bytes.Buffer
	streaming bool
}

func (t *thresholdWriter) Write(p []byte) (int, error) {
	if t.streaming {
		return t.dest.Write(p)
	}

	n, _ := t.buf.Write(p)
	if t.buf.Len() > t.threshold {
		if err := t.Flush(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (t *thresholdWriter) Flush() error {
	if t.streaming {
		return nil
	}
	t.streaming = true
	_, err := t.dest.Write(t.buf.Bytes())
	t.buf.Reset()
	return err
}

// Commit commits the transaction and releases the dedicated connection.
func (e *Executor) Commit() error {
	if err := e.tx.Commit(); err != nil {
		_ = e.conn.Close()
		return &xerrors.TransactionError{Op: "commit", Err: err}
	}
	return e.conn.Close()
}

// Rollback rolls back the transaction and releases the dedicated
// connection. Safe to call after Commit has already run.
func (e *Executor) Rollback() error {
	if e.tx == nil {
		return nil
	}
	_ = e.tx.Rollback()
	if e.conn == nil {
		return nil
	}
	return e.conn.Close()
}
