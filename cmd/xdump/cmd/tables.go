package cmd

import (
	"context"
	"fmt"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dbsmedya/xdump/internal/catalog"
	"github.com/dbsmedya/xdump/internal/config"
	"github.com/dbsmedya/xdump/internal/database"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables and sequences available to select from",
	Long: `Tables connects to the source database and lists every base table
and sequence a job's full_tables, partial selections, or sequence dump could
reference.

Example:
  xdump tables --config xdump.yaml`,
	RunE: runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

func runTables(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dbManager := database.NewManager(cfg)
	ctx := context.Background()
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	defer dbManager.Close()

	inspector := catalog.New(dbManager.Source)

	var tables, sequences []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := inspector.ListSelectableTables(gctx)
		tables = t
		return err
	})
	g.Go(func() error {
		s, err := inspector.ListSequences(gctx)
		sequences = s
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to list catalog metadata: %w", err)
	}

	printTableList("Tables", tables)
	fmt.Fprintln(outputWriter)
	printTableList("Sequences", sequences)

	return nil
}

func printTableList(heading string, names []string) {
	fmt.Fprint(outputWriter, color.New(color.FgCyan, color.OpBold).Sprintf("%s (%d)\n", heading, len(names)))
	if len(names) == 0 {
		fmt.Fprintln(outputWriter, "  (none)")
		return
	}

	width := 0
	for _, n := range names {
		if w := runewidth.StringWidth(n); w > width {
			width = w
		}
	}

	for i, n := range names {
		pad := width - runewidth.StringWidth(n)
		fmt.Fprintf(outputWriter, "  %s%*s\n", color.FgGreen.Sprint(n), pad+1, fmt.Sprintf("[%d]", i+1))
	}
}
