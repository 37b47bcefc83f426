package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/xdump/internal/catalog"
	"github.com/dbsmedya/xdump/internal/config"
	"github.com/dbsmedya/xdump/internal/database"
	"github.com/dbsmedya/xdump/internal/mermaidascii"
	"github.com/dbsmedya/xdump/internal/planner"
	"github.com/dbsmedya/xdump/internal/relation"
	"github.com/dbsmedya/xdump/internal/sqlutil"
)

// outputWriter is used for printing output, can be overridden in tests
var outputWriter io.Writer = os.Stdout

// setOutputWriter sets the output writer (used for testing)
func setOutputWriter(w io.Writer) {
	outputWriter = w
}

// resetOutputWriter resets output to stdout (used for testing)
func resetOutputWriter() {
	outputWriter = os.Stdout
}

var planJob string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the relation closure plan for a job",
	Long: `Plan connects to the source database, resolves the same foreign-key
closure a dump would compute, and displays it without writing an archive.

The plan shows:
  - A visual relation tree (via mermaid-ascii)
  - The order tables will be copied in
  - The foreign keys that pulled each table into the closure

Example:
  xdump plan --config xdump.yaml --job nightly_export`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planJob, "job", "j", "",
		"Job name from configuration file (required)")
	planCmd.MarkFlagRequired("job")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	job, err := cfg.GetJob(planJob)
	if err != nil {
		return err
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat)

	dbManager := database.NewManager(cfg)
	ctx := context.Background()
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	defer dbManager.Close()

	inspector := catalog.New(dbManager.Source)

	fullSet := make(map[string]struct{}, len(job.FullTables))
	for _, t := range job.FullTables {
		fullSet[t] = struct{}{}
	}

	roots := make([]planner.Root, 0, len(job.FullTables)+len(job.Partial))
	for _, t := range job.FullTables {
		roots = append(roots, planner.Root{Table: t, SQL: "SELECT * FROM " + sqlutil.QuoteIdentifier(t)})
	}
	for _, p := range job.Partial {
		roots = append(roots, planner.Root{Table: p.Table, SQL: p.SQL})
	}

	plan, err := planner.Build(ctx, inspector, roots, fullSet)
	if err != nil {
		return fmt.Errorf("failed to resolve relation closure: %w", err)
	}

	edges, err := collectEdges(ctx, inspector, plan.Tables(), fullSet)
	if err != nil {
		return fmt.Errorf("failed to collect relation edges: %w", err)
	}

	if err := printMermaidTree(job.FullTables, plan.Tables(), edges); err != nil {
		return fmt.Errorf("failed to render tree: %w", err)
	}
	fmt.Fprintln(outputWriter)

	printHeader("Execution Plan: %s", planJob)

	fmt.Fprintln(outputWriter)
	printSection("Job Overview")
	fmt.Fprintf(outputWriter, "  Full Tables:    %s\n", joinOrNone(job.FullTables))
	fmt.Fprintf(outputWriter, "  Partial Roots:  %d\n", len(job.Partial))
	fmt.Fprintf(outputWriter, "  Total Tables:   %d\n", len(plan.Tables()))

	fmt.Fprintln(outputWriter)
	printSection("Copy Order")
	for i, table := range plan.Tables() {
		if _, full := fullSet[table]; full {
			fmt.Fprintf(outputWriter, "  [%d] %s (full table)\n", i+1, table)
			continue
		}
		fmt.Fprintf(outputWriter, "  [%d] %s\n", i+1, table)
	}

	fmt.Fprintln(outputWriter)
	printSection("Detected Relationships")
	if len(edges) == 0 {
		fmt.Fprintln(outputWriter, "  (none)")
	}
	for _, edge := range edges {
		kind := "references"
		if edge.IsRecursive() {
			kind = "self-references"
		}
		fmt.Fprintf(outputWriter, "  - %s.%s %s %s.%s (FK: %s)\n",
			edge.FromTable, edge.FromColumn, kind, edge.ToTable, edge.ToColumn, edge.ConstraintName)
	}

	return nil
}

// collectEdges walks every table already in the plan and returns the
// foreign-key edges reachable from it, for display only; it performs no
// transitive expansion of its own.
func collectEdges(ctx context.Context, inspector *catalog.Inspector, tables []string, fullTables map[string]struct{}) ([]catalog.ForeignKey, error) {
	var edges []catalog.ForeignKey
	for _, table := range tables {
		nonRecursive, recursive, err := relation.Resolve(ctx, inspector, table, fullTables)
		if err != nil {
			return nil, err
		}
		edges = append(edges, nonRecursive...)
		edges = append(edges, recursive...)
	}
	return edges, nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

// printHeader prints a formatted header
func printHeader(format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	width := len(title) + 4
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
	fmt.Fprintf(outputWriter, "  %s\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
}

// printSection prints a section header
func printSection(title string) {
	fmt.Fprintf(outputWriter, "[%s]\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("-", len(title)+2))
}

// printMermaidTree generates and displays an ASCII tree using mermaid-ascii
func printMermaidTree(fullTables, allTables []string, edges []catalog.ForeignKey) error {
	mermaidSyntax := generateMermaidSyntax(fullTables, edges)

	output, err := mermaidascii.RenderDiagram(mermaidSyntax, nil)
	if err != nil {
		return err
	}

	summaryLines := []string{
		"[ Tree Summary ]",
		strings.Repeat("-", 16),
		fmt.Sprintf("Full Tables:    %d", len(fullTables)),
		fmt.Sprintf("Total Tables:   %d", len(allTables)),
		fmt.Sprintf("Relationships:  %d edge(s)", len(edges)),
	}

	fmt.Fprintln(outputWriter)
	printHeader("Relation Tree")
	fmt.Fprintln(outputWriter)

	printSideBySide(output, summaryLines, 4)

	return nil
}

// printSideBySide prints two blocks of text side by side, padding is the
// minimum spaces between the two columns
func printSideBySide(leftContent string, rightLines []string, padding int) {
	leftLines := strings.Split(strings.TrimRight(leftContent, "\n"), "\n")

	leftWidth := 0
	for _, line := range leftLines {
		if w := runewidth.StringWidth(line); w > leftWidth {
			leftWidth = w
		}
	}

	maxHeight := len(leftLines)
	if len(rightLines) > maxHeight {
		maxHeight = len(rightLines)
	}

	for i := 0; i < maxHeight; i++ {
		var leftPart, rightPart string
		if i < len(leftLines) {
			leftPart = leftLines[i]
		}
		if i < len(rightLines) {
			rightPart = rightLines[i]
		}

		fmt.Fprint(outputWriter, leftPart)
		if spaces := leftWidth - runewidth.StringWidth(leftPart) + padding; spaces > 0 {
			fmt.Fprint(outputWriter, strings.Repeat(" ", spaces))
		}
		fmt.Fprintln(outputWriter, rightPart)
	}
}

// generateMermaidSyntax creates mermaid graph syntax from the plan's edges
func generateMermaidSyntax(fullTables []string, edges []catalog.ForeignKey) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, t := range fullTables {
		sb.WriteString(fmt.Sprintf("    %s\n", sanitizeNodeID(t)))
	}
	for _, edge := range edges {
		label := "fk"
		if edge.IsRecursive() {
			label = "self-fk"
		}
		sb.WriteString(fmt.Sprintf("    %s -->|%s| %s\n",
			sanitizeNodeID(edge.FromTable), label, sanitizeNodeID(edge.ToTable)))
	}

	return sb.String()
}

// sanitizeNodeID ensures table names are valid mermaid node IDs
func sanitizeNodeID(table string) string {
	return strings.NewReplacer(
		".", "_",
		"-", "_",
		" ", "_",
	).Replace(table)
}
