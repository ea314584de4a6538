package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/MacJediWizard/hearth/internal/archive"
	"github.com/MacJediWizard/hearth/internal/db"
	"github.com/MacJediWizard/hearth/internal/maintenance"
	"github.com/spf13/cobra"
)

func newArchiveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage archived backup documents",
	}
	cmd.AddCommand(
		newArchiveListCmd(a),
		newArchiveCreateCmd(a),
		newArchiveRestoreCmd(a),
		newArchivePruneCmd(a),
	)
	return cmd
}

// withArchiver runs fn with an archiver backed by the configured sink.
func (a *app) withArchiver(cmd *cobra.Command, fn func(ctx context.Context, ar *archive.Archiver) error) error {
	return a.withDB(cmd, func(ctx context.Context, database *db.DB) error {
		ar, err := a.archiver(ctx, database)
		if err != nil {
			return err
		}
		return fn(ctx, ar)
	})
}

func newArchiveListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archives, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchiver(cmd, func(ctx context.Context, ar *archive.Archiver) error {
				objects, err := ar.List(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "NAME\tSIZE\tMODIFIED\t(%s)\n", ar.Kind())
				for _, obj := range objects {
					fmt.Fprintf(w, "%s\t%d\t%s\t\n", obj.Name, obj.Size, obj.ModifiedAt.Local().Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
}

func newArchiveCreateCmd(a *app) *cobra.Command {
	var (
		prune      bool
		maxAgeDays int
		maxCount   int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Export a backup into the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchiver(cmd, func(ctx context.Context, ar *archive.Archiver) error {
				out := cmd.OutOrStdout()
				if !prune {
					obj, err := ar.Create(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Archived %s (%d bytes)\n", obj.Name, obj.Size)
					return nil
				}

				scheduler := maintenance.NewBackupScheduler(ar, maintenance.BackupScheduleConfig{
					Retention: retentionPolicy(maxAgeDays, maxCount),
				}, a.logger)
				run, err := scheduler.RunNow(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Archived %s (%d bytes)\n", run.Archive.Name, run.Archive.Size)
				for _, name := range run.Pruned {
					fmt.Fprintf(out, "deleted %s\n", name)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "apply the retention policy after archiving")
	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 30, "with --prune, delete archives older than this many days")
	cmd.Flags().IntVar(&maxCount, "max-count", 0, "with --prune, keep at most this many archives")
	return cmd
}

func newArchiveRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <name>",
		Short: "Import an archived backup document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !archive.ValidName(name) {
				return fmt.Errorf("invalid archive name %q", name)
			}
			return a.withArchiver(cmd, func(ctx context.Context, ar *archive.Archiver) error {
				result, err := ar.Restore(ctx, name)
				if err != nil {
					return describeImportError(err)
				}
				printCounts(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
}

func newArchivePruneCmd(a *app) *cobra.Command {
	var (
		maxAgeDays int
		maxCount   int
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete archives outside the retention policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxAgeDays < 0 || maxCount < 0 {
				return fmt.Errorf("--max-age-days and --max-count must not be negative")
			}
			policy := retentionPolicy(maxAgeDays, maxCount)
			return a.withArchiver(cmd, func(ctx context.Context, ar *archive.Archiver) error {
				deleted, err := ar.Prune(ctx, policy)
				for _, name := range deleted {
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d archive(s)\n", len(deleted))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 30, "delete archives older than this many days, 0 to disable")
	cmd.Flags().IntVar(&maxCount, "max-count", 0, "keep at most this many archives, 0 to disable")
	return cmd
}

func retentionPolicy(maxAgeDays, maxCount int) archive.RetentionPolicy {
	return archive.RetentionPolicy{
		MaxAge:   time.Duration(maxAgeDays) * 24 * time.Hour,
		MaxCount: maxCount,
	}
}
