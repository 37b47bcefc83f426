// Package planner converts a dump job's full tables and partial selections
// into a deterministically ordered sequence of (table, selection SQL) pairs
// that enumerate exactly the rows needed to satisfy foreign-key closure,
// including self-referencing relations via recursive CTEs.
package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/xdump/internal/catalog"
	"github.com/dbsmedya/xdump/internal/relation"
	"github.com/dbsmedya/xdump/internal/sqlutil"
	"github.com/dbsmedya/xdump/internal/xerrors"
)

// Root is one seed of the traversal: a full table's trivial "select all" or
// a partial table's user-supplied selection SQL.
type Root struct {
	Table string
	SQL   string
}

// Plan is the result of resolving every root's foreign-key closure: an
// ordered table -> selection-fragments map. Order is first-seen, which for
// roots fed in full/partial order matches the archive-entry ordering
// invariant; fragments for the same table are combined with UNION so a
// table referenced from multiple roots is written exactly once.
type Plan struct {
	selections *orderedmap.OrderedMap[string, []string]
}

func newPlan() *Plan {
	return &Plan{selections: orderedmap.NewOrderedMap[string, []string]()}
}

func (p *Plan) add(table, sql string) {
	existing, _ := p.selections.Get(table)
	p.selections.Set(table, append(existing, sql))
}

// Tables returns every table touched by the plan, in first-seen order.
func (p *Plan) Tables() []string {
	return p.selections.Keys()
}

// SelectionFor returns the final SQL to execute for table: its sole
// selection, or a UNION of all contributing fragments when more than one
// root reached it. Returns "" if table is not part of the plan.
func (p *Plan) SelectionFor(table string) string {
	fragments, ok := p.selections.Get(table)
	if !ok || len(fragments) == 0 {
		return ""
	}
	if len(fragments) == 1 {
		return fragments[0]
	}

	parts := make([]string, len(fragments))
	for i, f := range fragments {
		parts[i] = "(" + f + ")"
	}
	return strings.Join(parts, " UNION ")
}

// Build resolves the full foreign-key closure for every root (full tables
// first, then partial tables, both in the order given), pruning edges into
// fullTables (I4). The fixpoint (spec §4.3: "no new tables and no new
// selections") is reached by tracking, per table, how many of its
// contributing fragments have already had their outgoing edges expanded:
// every fragment a table receives — whether from a root or from a later
// arriving sibling root that reaches the same table by a different path —
// drives its own expansion, instead of only the first fragment to touch a
// table. Termination still holds because the underlying foreign-key graph
// between distinct tables is acyclic (self-reference is the only cycle,
// and recursive CTEs close it without enqueueing further work), so the
// number of distinct fragments any table can ever receive is bounded by
// the number of paths through that DAG from the given roots.
func Build(ctx context.Context, inspector *catalog.Inspector, roots []Root, fullTables map[string]struct{}) (*Plan, error) {
	plan := newPlan()
	expandedCount := make(map[string]int, len(roots))

	queue := make([]string, 0, len(roots))
	queued := make(map[string]bool, len(roots))
	enqueue := func(table string) {
		if !queued[table] {
			queued[table] = true
			queue = append(queue, table)
		}
	}

	for _, r := range roots {
		plan.add(r.Table, r.SQL)
		enqueue(r.Table)
	}

	for len(queue) > 0 {
		table := queue[0]
		queue = queue[1:]
		queued[table] = false

		fragments, _ := plan.selections.Get(table)
		start := expandedCount[table]
		if start >= len(fragments) {
			continue
		}
		newFragments := fragments[start:]
		expandedCount[table] = len(fragments)

		nonRecursive, recursiveEdges, err := relation.Resolve(ctx, inspector, table, fullTables)
		if err != nil {
			return nil, &xerrors.PlanError{Table: table, Op: "resolve relations", Err: err}
		}

		for i, frag := range newFragments {
			effectiveSQL := frag
			if len(recursiveEdges) > 0 {
				effectiveSQL = buildRecursiveClosure(table, recursiveEdges, effectiveSQL)
				// fragments aliases the plan's backing array, so writing
				// back here persists the recursive-closed form for the
				// final archive selection, not just for this expansion.
				fragments[start+i] = effectiveSQL
			}

			for _, edge := range nonRecursive {
				childTable := edge.ToTable
				plan.add(childTable, buildNonRecursiveSelection(edge, effectiveSQL))
				enqueue(childTable)
			}
		}
	}

	return plan, nil
}

// buildNonRecursiveSelection wraps sourceSQL as a subquery so arbitrary user
// SQL, including LIMIT/ORDER BY, is preserved intact.
func buildNonRecursiveSelection(edge catalog.ForeignKey, sourceSQL string) string {
	target := sqlutil.QuoteIdentifier(edge.ToTable)
	tcol := sqlutil.QuoteIdentifier(edge.ToColumn)
	col := sqlutil.QuoteIdentifier(edge.FromColumn)

	return fmt.Sprintf(
		"SELECT * FROM %s WHERE %s IN (SELECT DISTINCT %s FROM (%s) _src WHERE %s IS NOT NULL)",
		target, tcol, col, sourceSQL, col,
	)
}

// buildRecursiveClosure emits a single recursive CTE closing baseSQL over
// every self-referencing edge of table at once: the join condition ORs
// together each edge's column pair, so one evaluation of the CTE reaches
// fixpoint across all of the table's recursive relations rather than one
// at a time. The alias is always "t", never "T"/"E".
func buildRecursiveClosure(table string, edges []catalog.ForeignKey, baseSQL string) string {
	target := sqlutil.QuoteIdentifier(table)

	conditions := make([]string, len(edges))
	for i, e := range edges {
		conditions[i] = fmt.Sprintf("closure.%s = t.%s",
			sqlutil.QuoteIdentifier(e.FromColumn), sqlutil.QuoteIdentifier(e.ToColumn))
	}

	return fmt.Sprintf(
		"WITH RECURSIVE base AS (%s), closure AS (SELECT * FROM base UNION SELECT t.* FROM %s t INNER JOIN closure ON (%s)) SELECT * FROM closure",
		baseSQL, target, strings.Join(conditions, " OR "),
	)
}
