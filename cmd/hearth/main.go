// Package main is the entrypoint for the Hearth operator CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/MacJediWizard/hearth/internal/archive"
	"github.com/MacJediWizard/hearth/internal/config"
	"github.com/MacJediWizard/hearth/internal/db"
	"github.com/MacJediWizard/hearth/internal/export"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// commandTimeout bounds a single database command.
const commandTimeout = 10 * time.Minute

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by every command.
type app struct {
	configPath  string
	databaseURL string
	verbose     bool

	cfg    *config.CLIConfig
	logger zerolog.Logger
}

// setup loads the configuration file and applies overrides.
func (a *app) setup() error {
	level := zerolog.InfoLevel
	if a.verbose {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()

	path := a.configPath
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(a.databaseURL)
	a.cfg = cfg
	return nil
}

// openDB connects to the configured database.
func (a *app) openDB(ctx context.Context) (*db.DB, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w (set it in the config file, DATABASE_URL or --database-url)", err)
	}

	cfg := db.DefaultConfig(a.cfg.DatabaseURL)
	cfg.MaxConns = 4
	cfg.MinConns = 1
	return db.New(ctx, cfg, a.logger)
}

func (a *app) exporter(database *db.DB) *export.Exporter {
	return export.NewExporter(database, a.logger)
}

func (a *app) importer(database *db.DB) *export.Importer {
	return export.NewImporter(database, export.ImporterOptions{
		StrictReferences: a.cfg.StrictReferences,
	}, a.logger)
}

// archiver opens the configured archive sink.
func (a *app) archiver(ctx context.Context, database *db.DB) (*archive.Archiver, error) {
	sink, err := archive.OpenSink(ctx, a.cfg.ArchiveDir, a.cfg.S3)
	if errors.Is(err, archive.ErrNotConfigured) {
		return nil, errors.New("no archive configured: set archive_dir or s3.bucket in the config file")
	}
	if err != nil {
		return nil, err
	}
	return archive.NewArchiver(sink, a.exporter(database), a.importer(database), a.logger), nil
}

// withDB runs fn with a connected database and a bounded context.
func (a *app) withDB(cmd *cobra.Command, fn func(ctx context.Context, database *db.DB) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	database, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	return fn(ctx, database)
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "hearth",
		Short: "Hearth operator CLI",
		Long: `Hearth exports, imports and archives the smart-home dashboard's
backup documents directly against its PostgreSQL database.

Configuration is read from ~/.hearth/config.yml. DATABASE_URL and
--database-url override the database_url setting.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.hearth/config.yml)")
	rootCmd.PersistentFlags().StringVar(&a.databaseURL, "database-url", "", "PostgreSQL connection URL")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(a),
		newMigrateCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newHistoryCmd(a),
		newArchiveCmd(a),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Hearth %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
