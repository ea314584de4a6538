package main

import (
	"fmt"

	"github.com/MacJediWizard/hearth/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write the CLI configuration",
	}
	cmd.AddCommand(newConfigShowCmd(a), newConfigInitCmd(a))
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			masked := *a.cfg
			if masked.DatabaseURL != "" {
				masked.DatabaseURL = maskURL(masked.DatabaseURL)
			}
			if masked.S3.SecretAccessKey != "" {
				masked.S3.SecretAccessKey = "********"
			}

			data, err := yaml.Marshal(&masked)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigInitCmd(a *app) *cobra.Command {
	var (
		archiveDir string
		s3Bucket   string
		s3Prefix   string
		s3Region   string
		s3Endpoint string
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file from flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			if archiveDir != "" {
				cfg.ArchiveDir = archiveDir
			}
			if s3Bucket != "" {
				cfg.S3.Bucket = s3Bucket
				cfg.S3.Prefix = s3Prefix
				cfg.S3.Region = s3Region
				cfg.S3.Endpoint = s3Endpoint
			}
			if cmd.Flags().Changed("strict-references") {
				cfg.StrictReferences = strict
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			path := a.configPath
			if path == "" {
				p, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			if err := cfg.Save(path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&archiveDir, "archive-dir", "", "directory for archived backups")
	cmd.Flags().StringVar(&s3Bucket, "s3-bucket", "", "S3 bucket for archived backups")
	cmd.Flags().StringVar(&s3Prefix, "s3-prefix", "", "S3 key prefix")
	cmd.Flags().StringVar(&s3Region, "s3-region", "", "S3 region")
	cmd.Flags().StringVar(&s3Endpoint, "s3-endpoint", "", "S3-compatible endpoint (MinIO etc.)")
	cmd.Flags().BoolVar(&strict, "strict-references", false, "reject unresolvable roomId/deviceId on import")

	return cmd
}
