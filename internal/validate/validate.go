// Package validate re-opens a produced archive and checks invariant I2:
// every foreign-key value in a dumped row either resolves to a row also
// present in the archive, or points at a table the archive never included
// (dangling references into undumped tables are allowed by design).
package validate

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dbsmedya/xdump/internal/catalog"
	"github.com/dbsmedya/xdump/internal/xerrors"
)

// Violation is one row whose foreign-key value has no matching referenced
// row in a table the archive also dumped.
type Violation struct {
	Table           string
	Column          string
	Value           string
	ReferencedTable string
}

// Result is the outcome of checking one archive.
type Result struct {
	TablesChecked []string
	Violations    []Violation
}

// OK reports whether the archive satisfies I2.
func (r *Result) OK() bool {
	return len(r.Violations) == 0
}

// Check opens archivePath, determines which tables it contains data for,
// and for every foreign key between two tables both present in the
// archive, confirms every non-null referencing value has a match.
func Check(ctx context.Context, archivePath string, inspector *catalog.Inspector) (*Result, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, &xerrors.ArchiveError{Path: archivePath, Op: "open", Err: err}
	}
	defer zr.Close()

	csvFiles := make(map[string]*zip.File)
	for _, f := range zr.File {
		table, ok := tableFromEntryPath(f.Name)
		if !ok {
			continue
		}
		csvFiles[table] = f
	}

	present := make([]string, 0, len(csvFiles))
	for table := range csvFiles {
		present = append(present, table)
	}
	sort.Strings(present)

	result := &Result{TablesChecked: present}

	for _, table := range present {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		nonRecursive, recursive, err := edgesOf(ctx, inspector, table)
		if err != nil {
			return nil, err
		}

		for _, fk := range append(nonRecursive, recursive...) {
			if _, ok := csvFiles[fk.ToTable]; !ok {
				continue // dangling into an undumped table is allowed
			}

			referencedValues, err := readColumnValues(csvFiles[fk.ToTable], fk.ToColumn)
			if err != nil {
				return nil, err
			}

			violations, err := checkEdge(csvFiles[table], fk, referencedValues)
			if err != nil {
				return nil, err
			}
			result.Violations = append(result.Violations, violations...)
		}
	}

	return result, nil
}

func edgesOf(ctx context.Context, inspector *catalog.Inspector, table string) ([]catalog.ForeignKey, []catalog.ForeignKey, error) {
	nonRecursive, err := inspector.ForeignKeysOf(ctx, table, catalog.NonRecursive, nil)
	if err != nil {
		return nil, nil, err
	}
	recursive, err := inspector.ForeignKeysOf(ctx, table, catalog.Recursive, nil)
	if err != nil {
		return nil, nil, err
	}
	return nonRecursive, recursive, nil
}

func checkEdge(referencingFile *zip.File, fk catalog.ForeignKey, referencedValues map[string]struct{}) ([]Violation, error) {
	rc, err := referencingFile.Open()
	if err != nil {
		return nil, &xerrors.ArchiveError{Path: referencingFile.Name, Op: "open entry", Err: err}
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	header, err := r.Read()
	if err != nil {
		return nil, &xerrors.ArchiveError{Path: referencingFile.Name, Op: "read header", Err: err}
	}
	colIdx := indexOf(header, fk.FromColumn)
	if colIdx < 0 {
		return nil, nil
	}

	var violations []Violation
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &xerrors.ArchiveError{Path: referencingFile.Name, Op: "read row", Err: err}
		}

		value := record[colIdx]
		if value == "" {
			// COPY writes NULL as an unquoted empty field, indistinguishable
			// here from an actual empty string. Harmless for FK columns: an
			// empty string is never a valid FK value, so treating both as
			// "no reference to check" can't hide a real violation.
			continue
		}
		if _, ok := referencedValues[value]; !ok {
			violations = append(violations, Violation{
				Table:           fk.FromTable,
				Column:          fk.FromColumn,
				Value:           value,
				ReferencedTable: fk.ToTable,
			})
		}
	}
	return violations, nil
}

func readColumnValues(f *zip.File, column string) (map[string]struct{}, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, &xerrors.ArchiveError{Path: f.Name, Op: "open entry", Err: err}
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	header, err := r.Read()
	if err != nil {
		return nil, &xerrors.ArchiveError{Path: f.Name, Op: "read header", Err: err}
	}
	colIdx := indexOf(header, column)
	if colIdx < 0 {
		return map[string]struct{}{}, nil
	}

	values := make(map[string]struct{})
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &xerrors.ArchiveError{Path: f.Name, Op: "read row", Err: err}
		}
		values[record[colIdx]] = struct{}{}
	}
	return values, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

const dataDirPrefix = "dump/data/"

func tableFromEntryPath(entryPath string) (string, bool) {
	if !strings.HasPrefix(entryPath, dataDirPrefix) || !strings.HasSuffix(entryPath, ".csv") {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(entryPath, dataDirPrefix), ".csv")
	if name == "" {
		return "", false
	}
	return name, true
}

func (v Violation) String() string {
	return fmt.Sprintf("%s.%s = %q has no matching row in %s", v.Table, v.Column, v.Value, v.ReferencedTable)
}
