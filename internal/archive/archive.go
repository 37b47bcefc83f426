// Package archive writes the fixed-layout zip container xdump produces:
// dump/schema.sql, dump/sequences.sql, and one dump/data/<table>.csv per
// dumped table, in the order the dump coordinator supplies them.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/dbsmedya/xdump/internal/xerrors"
)

const (
	SchemaPath    = "dump/schema.sql"
	SequencesPath = "dump/sequences.sql"
)

// DataPath returns the fixed in-archive path for a table's CSV entry.
func DataPath(table string) string {
	return path.Join("dump", "data", table+".csv")
}

// Entry is a single file within the archive.
type Entry struct {
	Path string
	Data []byte
}

// Writer appends entries to a zip archive at a file path, in call order.
// It is not safe for concurrent use; the dump coordinator owns it for the
// lifetime of a single Dump call.
type Writer struct {
	path   string
	file   io.WriteCloser
	zw     *zip.Writer
	seen   map[string]struct{}
	closed bool
}

// Create opens archivePath for writing, truncating any existing file.
// Callers must call Close (or Abort on error) exactly once.
func Create(archivePath string) (*Writer, error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return nil, &xerrors.ArchiveError{Path: archivePath, Op: "create", Err: err}
	}
	return &Writer{
		path: archivePath,
		file: f,
		zw:   zip.NewWriter(f),
		seen: make(map[string]struct{}),
	}, nil
}

// WriteEntry streams data into a new zip entry at entryPath. Calling it
// twice with the same entryPath is a programming error and panics — the
// dump coordinator guarantees each archive path is planned exactly once.
func (w *Writer) WriteEntry(entryPath string, data io.Reader) error {
	if _, dup := w.seen[entryPath]; dup {
		panic(fmt.Sprintf("archive: duplicate entry path %q", entryPath))
	}
	w.seen[entryPath] = struct{}{}

	fw, err := w.zw.Create(entryPath)
	if err != nil {
		return &xerrors.ArchiveError{Path: entryPath, Op: "create entry", Err: err}
	}
	if _, err := io.Copy(fw, data); err != nil {
		return &xerrors.ArchiveError{Path: entryPath, Op: "write entry", Err: err}
	}
	return nil
}

// WriteBytes is a convenience wrapper over WriteEntry for small in-memory
// payloads such as schema.sql/sequences.sql.
func (w *Writer) WriteBytes(entryPath string, data []byte) error {
	return w.WriteEntry(entryPath, bytes.NewReader(data))
}

// EntryWriter opens a new zip entry at entryPath and returns it directly,
// for callers that stream rows in (the Snapshot Executor's COPY output)
// rather than holding the full payload in memory first. Same duplicate-path
// panic as WriteEntry.
func (w *Writer) EntryWriter(entryPath string) (io.Writer, error) {
	if _, dup := w.seen[entryPath]; dup {
		panic(fmt.Sprintf("archive: duplicate entry path %q", entryPath))
	}
	w.seen[entryPath] = struct{}{}

	fw, err := w.zw.Create(entryPath)
	if err != nil {
		return nil, &xerrors.ArchiveError{Path: entryPath, Op: "create entry", Err: err}
	}
	return fw, nil
}

// Close flushes and finalizes the zip archive and underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.zw.Close(); err != nil {
		_ = w.file.Close()
		return &xerrors.ArchiveError{Path: w.path, Op: "close zip writer", Err: err}
	}
	if err := w.file.Close(); err != nil {
		return &xerrors.ArchiveError{Path: w.path, Op: "close file", Err: err}
	}
	return nil
}

// Abort closes the underlying file without finalizing the zip central
// directory, leaving a truncated archive; the caller is expected to remove
// the file afterward (the coordinator's error-path cleanup).
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	_ = w.file.Close()
}
