package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/xdump/internal/catalog"
	"github.com/dbsmedya/xdump/internal/config"
	"github.com/dbsmedya/xdump/internal/database"
	"github.com/dbsmedya/xdump/internal/validate"
)

var validateArchivePath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a produced archive for dangling foreign-key references",
	Long: `Validate re-opens an archive produced by "xdump dump" and, for every
foreign key between two tables both present in the archive, confirms every
non-null referencing value has a matching row. References into tables the
archive never dumped are allowed to dangle.

Example:
  xdump validate --config xdump.yaml --archive /backups/nightly_export.zip`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateArchivePath, "archive", "a", "",
		"Path to the archive to validate (required)")
	validateCmd.MarkFlagRequired("archive")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	result, err := validate.Check(ctx, validateArchivePath, inspector)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("\n=== Archive Validation ===\n")
	fmt.Printf("Archive: %s\n", validateArchivePath)
	fmt.Printf("Tables Checked: %d\n", len(result.TablesChecked))

	if result.OK() {
		fmt.Println("No dangling references found.")
		return nil
	}

	fmt.Printf("\n%d violation(s):\n", len(result.Violations))
	for _, v := range result.Violations {
		fmt.Printf("  - %s\n", v.String())
	}
	return fmt.Errorf("archive failed validation with %d violation(s)", len(result.Violations))
}
