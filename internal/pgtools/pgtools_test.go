package pgtools

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/xdump/internal/config"
	"github.com/dbsmedya/xdump/internal/xerrors"
)

func TestDumpSchema_UnknownBinaryReturnsExternalToolError(t *testing.T) {
	r := New(&config.DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres", Database: "app"}, "pg_dump_does_not_exist_xyz")

	_, err := r.DumpSchema(context.Background(), []string{"groups", "employees"})
	require.Error(t, err)
	assert.IsType(t, &xerrors.ExternalToolError{}, err)
}

func TestDumpSequences_EmptyListIsNoOp(t *testing.T) {
	r := New(&config.DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres"}, "pg_dump_does_not_exist_xyz")

	out, err := r.DumpSequences(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestConnectionArgs_IncludesDatabaseOnlyWhenSet(t *testing.T) {
	withDB := New(&config.DatabaseConfig{Host: "h", Port: 5432, User: "u", Database: "d"}, "pg_dump")
	assert.Contains(t, withDB.connectionArgs(), "-d")

	withoutDB := New(&config.DatabaseConfig{Host: "h", Port: 5432, User: "u"}, "pg_dump")
	assert.NotContains(t, withoutDB.connectionArgs(), "-d")
}

func TestEnviron_SetsPGPasswordOnlyWhenConfigured(t *testing.T) {
	withPassword := New(&config.DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "secret"}, "pg_dump")
	env := withPassword.environ()
	assert.Contains(t, env, "PGPASSWORD=secret")

	withoutPassword := New(&config.DatabaseConfig{Host: "h", Port: 5432, User: "u"}, "pg_dump")
	env = withoutPassword.environ()
	assert.Equal(t, os.Environ(), env)
}

func TestNew_DefaultsBinaryToPgDump(t *testing.T) {
	r := New(&config.DatabaseConfig{}, "")
	assert.Equal(t, "pg_dump", r.binary)
}
