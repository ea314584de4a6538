package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/MacJediWizard/hearth/internal/db"
	"github.com/MacJediWizard/hearth/internal/export"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, database *db.DB) error {
				out := cmd.OutOrStdout()
				if !status {
					if err := database.Migrate(ctx); err != nil {
						return fmt.Errorf("run migrations: %w", err)
					}
				}

				statuses, err := database.MigrationStatuses(ctx)
				if err != nil {
					return err
				}
				for _, m := range statuses {
					state := "pending"
					if m.Applied() {
						state = "applied " + m.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(out, "%03d: %s (%s)\n", m.Version, m.Name, state)
				}

				version, err := database.CurrentVersion(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Schema version: %d\n", version)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "only show migration status")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all tables as a backup document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, database *db.DB) error {
				data, err := a.exporter(database).ExportJSON(ctx)
				if err != nil {
					return err
				}

				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o600); err != nil {
					return fmt.Errorf("write backup: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Backup written to %s (%d bytes)\n", output, len(data))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace all tables with a backup document",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd, file)
			if err != nil {
				return err
			}

			return a.withDB(cmd, func(ctx context.Context, database *db.DB) error {
				result, err := a.importer(database).Import(ctx, body)
				if err != nil {
					return describeImportError(err)
				}
				printCounts(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "backup document to import, - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List backup audit records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}
			return a.withDB(cmd, func(ctx context.Context, database *db.DB) error {
				records, err := database.ListBackupRecords(ctx, limit)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tCREATED")
				for _, r := range records {
					fmt.Fprintf(w, "%d\t%s\n", r.ID, r.CreatedAt.Local().Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of records")
	return cmd
}

func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	return data, nil
}

// describeImportError prefixes validation failures with their code.
func describeImportError(err error) error {
	var vErr *export.ValidationError
	if errors.As(err, &vErr) {
		return fmt.Errorf("invalid backup (%s): %s", vErr.Code, vErr.Message)
	}
	return fmt.Errorf("import failed: %w", err)
}

func printCounts(w io.Writer, result *export.ImportResult) {
	c := result.Counts
	fmt.Fprintln(w, "Backup imported successfully")
	fmt.Fprintf(w, "  rooms:               %d\n", c.Rooms)
	fmt.Fprintf(w, "  devices:             %d\n", c.Devices)
	fmt.Fprintf(w, "  audio levels:        %d\n", c.AudioLevels)
	fmt.Fprintf(w, "  weather settings:    %d\n", c.WeatherSettings)
	fmt.Fprintf(w, "  appearance settings: %d\n", c.AppearanceSettings)
	if !result.AuditRecorded {
		fmt.Fprintln(w, "warning: backup record could not be written")
	}
}

// maskURL hides the password of a connection URL.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
