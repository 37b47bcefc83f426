package planner

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/xdump/internal/catalog"
)

const fkQueryPattern = "SELECT(.|\n)*tc.constraint_type = 'FOREIGN KEY'"

func expectForeignKeys(mock sqlmock.Sqlmock, table string, rows *sqlmock.Rows) {
	mock.ExpectQuery(fkQueryPattern).WithArgs(table).WillReturnRows(rows)
}

func emptyFKRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"constraint_name", "from_column", "to_table", "to_column"})
}

func TestBuild_NonRecursiveChainThenSelfReferencingHop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// tickets -> employees (non-recursive)
	expectForeignKeys(mock, "tickets", sqlmock.NewRows([]string{"constraint_name", "from_column", "to_table", "to_column"}).
		AddRow("tickets_author_id_fkey", "author_id", "employees", "id"))
	expectForeignKeys(mock, "tickets", emptyFKRows())

	// employees -> groups (non-recursive), employees -> employees x2 (recursive)
	expectForeignKeys(mock, "employees", sqlmock.NewRows([]string{"constraint_name", "from_column", "to_table", "to_column"}).
		AddRow("employees_group_id_fkey", "group_id", "groups", "id"))
	expectForeignKeys(mock, "employees", sqlmock.NewRows([]string{"constraint_name", "from_column", "to_table", "to_column"}).
		AddRow("employees_manager_id_fkey", "manager_id", "employees", "id").
		AddRow("employees_referrer_id_fkey", "referrer_id", "employees", "id"))

	// groups has no outgoing edges
	expectForeignKeys(mock, "groups", emptyFKRows())
	expectForeignKeys(mock, "groups", emptyFKRows())

	roots := []Root{{Table: "tickets", SQL: "SELECT * FROM \"tickets\" WHERE id = 1"}}
	plan, err := Build(context.Background(), catalog.New(db), roots, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"tickets", "employees", "groups"}, plan.Tables())

	employeesSQL := plan.SelectionFor("employees")
	assert.Contains(t, employeesSQL, "WITH RECURSIVE")
	assert.Contains(t, employeesSQL, `closure."manager_id" = t."id"`)
	assert.Contains(t, employeesSQL, `closure."referrer_id" = t."id"`)
	assert.Contains(t, employeesSQL, " OR ")

	groupsSQL := plan.SelectionFor("groups")
	assert.Contains(t, groupsSQL, `"group_id"`)
	assert.Contains(t, groupsSQL, employeesSQL, "groups selection must traverse the closed employees set, not the raw root selection")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuild_PrunesEdgesIntoFullTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectForeignKeys(mock, "tickets", sqlmock.NewRows([]string{"constraint_name", "from_column", "to_table", "to_column"}).
		AddRow("tickets_author_id_fkey", "author_id", "employees", "id"))
	expectForeignKeys(mock, "tickets", emptyFKRows())

	fullTables := map[string]struct{}{"employees": {}}
	roots := []Root{{Table: "tickets", SQL: "SELECT * FROM \"tickets\""}}

	plan, err := Build(context.Background(), catalog.New(db), roots, fullTables)
	require.NoError(t, err)

	assert.Equal(t, []string{"tickets"}, plan.Tables(), "edges into a full table must not be expanded")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuild_MultiRootMergesIntoSingleUnionedEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// 1. pop tickets root
	expectForeignKeys(mock, "tickets", sqlmock.NewRows([]string{"constraint_name", "from_column", "to_table", "to_column"}).
		AddRow("tickets_author_id_fkey", "author_id", "employees", "id"))
	expectForeignKeys(mock, "tickets", emptyFKRows())

	// 2. pop employees: by the time it's dequeued it already carries both the
	// root fragment (id = 2) and the fragment derived from tickets.author_id,
	// so both are expanded together in a single resolve call.
	expectForeignKeys(mock, "employees", sqlmock.NewRows([]string{"constraint_name", "from_column", "to_table", "to_column"}).
		AddRow("employees_group_id_fkey", "group_id", "groups", "id"))
	expectForeignKeys(mock, "employees", sqlmock.NewRows([]string{"constraint_name", "from_column", "to_table", "to_column"}).
		AddRow("employees_manager_id_fkey", "manager_id", "employees", "id").
		AddRow("employees_referrer_id_fkey", "referrer_id", "employees", "id"))

	// 3. pop groups: it now receives a fragment from EACH of employees' two
	// contributions, not just the root one.
	expectForeignKeys(mock, "groups", emptyFKRows())
	expectForeignKeys(mock, "groups", emptyFKRows())

	roots := []Root{
		{Table: "tickets", SQL: "SELECT * FROM \"tickets\" WHERE id = 1"},
		{Table: "employees", SQL: "SELECT * FROM \"employees\" WHERE id = 2"},
	}

	plan, err := Build(context.Background(), catalog.New(db), roots, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"tickets", "employees", "groups"}, plan.Tables(),
		"employees keeps its root position even though it is also a relation target")

	employeesSQL := plan.SelectionFor("employees")
	assert.Contains(t, employeesSQL, "UNION", "fragments from the root and from the tickets edge must be unioned")

	groupsSQL := plan.SelectionFor("groups")
	assert.Contains(t, groupsSQL, "UNION",
		"groups must receive a fragment from every contributing employees selection, not just the first, or its own FK targets would be missing rows (I2)")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuild_SingleRootSingleFragmentHasNoUnion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectForeignKeys(mock, "groups", emptyFKRows())
	expectForeignKeys(mock, "groups", emptyFKRows())

	roots := []Root{{Table: "groups", SQL: "SELECT * FROM \"groups\" WHERE id = 1"}}
	plan, err := Build(context.Background(), catalog.New(db), roots, nil)
	require.NoError(t, err)

	assert.Equal(t, roots[0].SQL, plan.SelectionFor("groups"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlan_SelectionForUnknownTableIsEmpty(t *testing.T) {
	plan := newPlan()
	assert.Equal(t, "", plan.SelectionFor("nope"))
}
