package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"speechworks/internal/config"
	"speechworks/internal/database"
	"speechworks/internal/logging"
	"speechworks/internal/service"
)

// clearOrder deletes children before parents
var clearOrder = []string{
	"progress_records",
	"session_activities",
	"therapy_sessions",
	"activity_words",
	"activities",
	"clients",
}

type app struct {
	db     *database.DB
	logger *zap.Logger
	backup *service.BackupService
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "backup",
		Short: "Export and import the SpeechWorks database as JSON",
		Long: `Export and import the SpeechWorks database as JSON.

The database is selected with DATABASE_TYPE (sqlite, postgres or mysql),
DB_PATH for SQLite and DATABASE_URL for PostgreSQL and MySQL.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}
	root.AddCommand(newExportCmd(a), newImportCmd(a))
	return root
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.logger, err = logging.New(cfg.Debug); err != nil {
		return err
	}
	if a.db, err = database.InitializeWithConfig(cfg); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run migrations to ensure schema is up to date
	migrations, err := database.MigrationsFS(cfg.MigrationsPath)
	if err != nil {
		return err
	}
	if err := a.db.RunMigrations(ctx, migrations, a.logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	a.backup = service.NewBackupService(a.db, a.logger)
	return nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func newExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the database to a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
			}
			if dir := filepath.Dir(output); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}

			if err := a.backup.Export(cmd.Context(), output); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			info, err := os.Stat(output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s (%.2f MB)\n", output, float64(info.Size())/1024/1024)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default backup_YYYYMMDD_HHMMSS.json)")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var (
		input     string
		clearData bool
		yes       bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a JSON backup into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(input); err != nil {
				return fmt.Errorf("input file: %w", err)
			}

			if clearData {
				if !yes && !confirm(cmd, "This will delete all existing data. Type 'yes' to confirm: ") {
					fmt.Fprintln(cmd.OutOrStdout(), "Import cancelled")
					return nil
				}
				if err := clearDatabase(cmd.Context(), a.db, a.logger); err != nil {
					return err
				}
			}

			if err := a.backup.Import(cmd.Context(), input); err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Import complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input file path")
	cmd.Flags().BoolVar(&clearData, "clear", false, "delete existing data before importing")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt for --clear")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}

func clearDatabase(ctx context.Context, db *database.DB, logger *zap.Logger) error {
	return db.WithTx(ctx, func(tx *database.Tx) error {
		for _, table := range clearOrder {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear table %s: %w", table, err)
			}
			logger.Info("cleared table", zap.String("table", table))
		}
		return nil
	})
}
