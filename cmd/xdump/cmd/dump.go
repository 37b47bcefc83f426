package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/xdump/internal/config"
	"github.com/dbsmedya/xdump/internal/database"
	"github.com/dbsmedya/xdump/internal/dumper"
	"github.com/dbsmedya/xdump/internal/logger"
	"github.com/dbsmedya/xdump/internal/pgtools"
)

var (
	dumpJob    string
	dumpBinary string
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Run a partial dump job",
	Long: `Dump resolves the foreign-key closure for a job's full and partial
tables and writes a consistent snapshot archive.

Catalog reads and data COPYs run inside a single repeatable-read
transaction; pg_dump runs while it is open, on its own connection:
  1. Extract schema DDL and sequence state via pg_dump
  2. Resolve the relation closure for every full and partial table
  3. COPY each resolved selection into the archive as CSV
  4. Commit the transaction and close the archive

Example:
  xdump dump --config xdump.yaml --job nightly_export`,
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVarP(&dumpJob, "job", "j", "",
		"Job name from configuration file (required)")
	dumpCmd.MarkFlagRequired("job")

	dumpCmd.Flags().StringVar(&dumpBinary, "pg-dump-path", "",
		"Path to the pg_dump binary (defaults to pg_dump on PATH)")

	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	job, err := cfg.GetJob(dumpJob)
	if err != nil {
		return err
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat)

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.WithJob(dumpJob).Infow("starting dump", "archive", job.ArchivePath)

	dbManager := database.NewManager(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	defer dbManager.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warn("received shutdown signal, aborting dump")
		cancel()
	}()

	pg := pgtools.New(&cfg.Source, dumpBinary)
	coordinator := dumper.New(dbManager.Source, pg, log)

	result, err := coordinator.Dump(ctx, job.ArchivePath, job.FullTables, dumper.PartialSpecFromConfig(job.Partial))
	if err != nil {
		return fmt.Errorf("dump failed: %w", err)
	}

	fmt.Printf("\n=== Dump Complete ===\n")
	fmt.Printf("Job: %s\n", dumpJob)
	fmt.Printf("Archive: %s\n", result.ArchivePath)
	fmt.Printf("Duration: %s\n", result.Duration)
	fmt.Printf("Tables Written: %d\n", len(result.TablesWritten))
	for _, table := range result.TablesWritten {
		fmt.Printf("  - %s (%d rows)\n", table, result.RowCounts[table])
	}

	return nil
}
