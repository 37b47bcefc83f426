// Package relation resolves a root table's outgoing foreign-key edges into
// the non-recursive and recursive sets the query planner expands from. It
// performs no transitive expansion itself; that is the planner's job,
// reached by calling Resolve again for each newly discovered target table.
package relation

import (
	"context"

	"github.com/dbsmedya/xdump/internal/catalog"
)

// edgeKey identifies an edge by (FromColumn, ToTable, ToColumn), coalescing
// duplicate constraint metadata for the same logical relationship.
type edgeKey struct {
	fromColumn string
	toTable    string
	toColumn   string
}

// Resolve returns root's outgoing foreign keys into other tables
// (nonRecursive) and into itself (recursive), with fullTables pruned from
// both (I4) and duplicate edges coalesced.
func Resolve(ctx context.Context, inspector *catalog.Inspector, root string, fullTables map[string]struct{}) (nonRecursive, recursive []catalog.ForeignKey, err error) {
	nrRaw, err := inspector.ForeignKeysOf(ctx, root, catalog.NonRecursive, fullTables)
	if err != nil {
		return nil, nil, err
	}
	rRaw, err := inspector.ForeignKeysOf(ctx, root, catalog.Recursive, fullTables)
	if err != nil {
		return nil, nil, err
	}

	return dedupe(nrRaw), dedupe(rRaw), nil
}

// dedupe coalesces edges that share the same (FromColumn, ToTable, ToColumn)
// tuple, keeping the first constraint name seen for each.
func dedupe(edges []catalog.ForeignKey) []catalog.ForeignKey {
	if len(edges) == 0 {
		return nil
	}

	seen := make(map[edgeKey]struct{}, len(edges))
	out := make([]catalog.ForeignKey, 0, len(edges))
	for _, fk := range edges {
		key := edgeKey{fk.FromColumn, fk.ToTable, fk.ToColumn}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, fk)
	}
	return out
}
