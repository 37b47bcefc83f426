// Package pgtools wraps the pg_dump binary for the schema and sequence
// extraction steps the Snapshot Executor cannot do with plain SQL: table
// DDL with privileges stripped, and sequence state.
package pgtools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/dbsmedya/xdump/internal/config"
	"github.com/dbsmedya/xdump/internal/xerrors"
)

// Runner invokes pg_dump against a single source database connection.
type Runner struct {
	cfg    *config.DatabaseConfig
	binary string
}

// New creates a Runner. binary defaults to "pg_dump" when empty, resolved
// against PATH at invocation time.
func New(cfg *config.DatabaseConfig, binary string) *Runner {
	if binary == "" {
		binary = "pg_dump"
	}
	return &Runner{cfg: cfg, binary: binary}
}

// DumpSchema runs `pg_dump -s -x -t <table> ...`, returning stdout
// verbatim. -s restricts the dump to schema (DDL) only; -x omits
// GRANT/REVOKE privilege statements, which are not portable across
// databases and not part of this engine's scope.
func (r *Runner) DumpSchema(ctx context.Context, tables []string) ([]byte, error) {
	args := []string{"-s", "-x"}
	for _, t := range tables {
		args = append(args, "-t", t)
	}
	return r.run(ctx, args)
}

// DumpSequences runs `pg_dump -a -t <seq> ...` for the given sequence
// names, returning stdout verbatim. -a restricts the dump to data, which
// for a sequence relation is exactly its current value via setval().
func (r *Runner) DumpSequences(ctx context.Context, sequences []string) ([]byte, error) {
	if len(sequences) == 0 {
		return nil, nil
	}
	args := []string{"-a"}
	for _, s := range sequences {
		args = append(args, "-t", s)
	}
	return r.run(ctx, args)
}

func (r *Runner) run(ctx context.Context, extraArgs []string) ([]byte, error) {
	args := append(r.connectionArgs(), extraArgs...)

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Env = r.environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &xerrors.ExternalToolError{
			Tool:   r.binary,
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}

func (r *Runner) connectionArgs() []string {
	args := []string{
		"-h", r.cfg.Host,
		"-p", fmt.Sprintf("%d", r.cfg.Port),
		"-U", r.cfg.User,
	}
	if r.cfg.Database != "" {
		args = append(args, "-d", r.cfg.Database)
	}
	return args
}

// environ builds the child process environment: PGPASSWORD is set only
// when a password is configured, otherwise the ambient environment passes
// through unchanged so pgpass-file or peer auth keeps working.
func (r *Runner) environ() []string {
	env := os.Environ()
	if r.cfg.Password == "" {
		return env
	}

	filtered := env[:0:0]
	for _, kv := range env {
		if strings.HasPrefix(kv, "PGPASSWORD=") {
			continue
		}
		filtered = append(filtered, kv)
	}
	return append(filtered, "PGPASSWORD="+r.cfg.Password)
}
