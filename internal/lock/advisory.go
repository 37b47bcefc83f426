// Package lock serializes dump jobs against the same archive path: a
// PostgreSQL advisory lock held for the duration of the source transaction,
// plus a local file lock on the archive path itself so two xdump processes
// on the same host never write the same file concurrently.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/gofrs/flock"
)

// ErrLockTimeout is returned when a lock could not be acquired before the
// deadline.
var ErrLockTimeout = errors.New("lock: timed out waiting to acquire lock")

// Default timeouts for lock acquisition.
const (
	DefaultAcquireTimeout = 30 * time.Second
	pollInterval          = 250 * time.Millisecond
)

// AdvisoryLock wraps a PostgreSQL session-level advisory lock keyed by the
// job name, so two dumps of the same job never run concurrently against the
// source database even from different hosts.
type AdvisoryLock struct {
	db   *sql.DB
	conn *sql.Conn
	key  int64
}

// NewJobLock derives a stable advisory lock key from a job name.
func NewJobLock(db *sql.DB, jobName string) *AdvisoryLock {
	return &AdvisoryLock{db: db, key: jobLockKey(jobName)}
}

// jobLockKey hashes a job name into an int64 suitable for pg_advisory_lock,
// which takes a single bigint key.
func jobLockKey(jobName string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("xdump:job:" + jobName))
	return int64(h.Sum64())
}

// Acquire blocks (on a dedicated connection, since advisory locks are
// session-scoped) until the lock is obtained or the context is cancelled.
func (l *AdvisoryLock) Acquire(ctx context.Context) error {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("lock: acquire connection: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", l.key); err != nil {
		conn.Close()
		return fmt.Errorf("lock: pg_advisory_lock: %w", err)
	}

	l.conn = conn
	return nil
}

// TryAcquire attempts to obtain the lock without blocking, returning false
// (and a nil error) if another session already holds it.
func (l *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("lock: acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("lock: pg_try_advisory_lock: %w", err)
	}

	if !acquired {
		conn.Close()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Release releases the advisory lock and returns the connection to the pool.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer l.conn.Close()

	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	if err != nil {
		return fmt.Errorf("lock: pg_advisory_unlock: %w", err)
	}
	return nil
}

// WithJobLock runs fn while holding the named job's advisory lock,
// releasing it on return regardless of fn's outcome.
func WithJobLock(ctx context.Context, db *sql.DB, jobName string, fn func(context.Context) error) error {
	l := NewJobLock(db, jobName)
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release(ctx)

	return fn(ctx)
}

// FileLock guards an archive path against concurrent writers on the same
// host, independent of which database the process talks to.
type FileLock struct {
	flock *flock.Flock
}

// NewFileLock creates a file lock for the given archive path. The lock file
// itself lives alongside the archive with a ".lock" suffix so it never
// collides with the archive's own name.
func NewFileLock(archivePath string) *FileLock {
	return &FileLock{flock: flock.New(archivePath + ".lock")}
}

// TryLock attempts to acquire the file lock, polling until timeout.
func (f *FileLock) TryLock(ctx context.Context, timeout time.Duration) error {
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := f.flock.TryLockContext(lockCtx, pollInterval)
	if err != nil {
		if errors.Is(lockCtx.Err(), context.DeadlineExceeded) {
			return ErrLockTimeout
		}
		return fmt.Errorf("lock: file lock: %w", err)
	}
	if !locked {
		return ErrLockTimeout
	}
	return nil
}

// Unlock releases the file lock.
func (f *FileLock) Unlock() error {
	return f.flock.Unlock()
}
