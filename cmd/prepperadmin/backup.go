package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/prepper/internal/backup"
)

func newBackupCmd(a *app) *cobra.Command {
	var passphrase string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Encrypted database backups in S3-compatible storage",
	}
	cmd.PersistentFlags().StringVar(&passphrase, "passphrase", "", "encryption passphrase (default from config)")

	pass := func() (string, error) {
		if passphrase != "" {
			return passphrase, nil
		}
		if a.cfg.Backup.Passphrase != "" {
			return a.cfg.Backup.Passphrase, nil
		}
		return "", errors.New("no passphrase: set PREPPER_BACKUP_PASSPHRASE or --passphrase")
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Snapshot, encrypt and upload the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.backups()
			if err != nil {
				return err
			}
			p, err := pass()
			if err != nil {
				return err
			}
			b, err := m.Run(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backup %d uploaded to %s (%d bytes)\n", b.ID, b.S3Key, b.SizeBytes)
			return nil
		},
	})

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.backups()
			if err != nil {
				return err
			}
			backups, err := m.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no backups")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tSIZE\tKEY")
			for _, b := range backups {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", b.ID, b.StartedAt.Format(time.RFC3339), b.Status, b.SizeBytes, b.S3Key)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "maximum number of backups to show")
	cmd.AddCommand(list)

	var target string
	restore := &cobra.Command{
		Use:   "restore <id>",
		Short: "Download and decrypt a backup over the database file (stop the server first)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid backup id %q", args[0])
			}
			m, err := a.backups()
			if err != nil {
				return err
			}
			p, err := pass()
			if err != nil {
				return err
			}
			dst := target
			if dst == "" {
				dst = a.dbPath
			}
			if err := m.Restore(cmd.Context(), id, p, dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backup %d restored to %s\n", id, dst)
			return nil
		},
	}
	restore.Flags().StringVar(&target, "to", "", "file to restore into (default: the database path)")
	cmd.AddCommand(restore)

	var days int
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete backups older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.backups()
			if err != nil {
				return err
			}
			if days == 0 {
				days = a.cfg.Backup.RetentionDays
			}
			n, err := m.Cleanup(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d backups older than %d days\n", n, days)
			return nil
		},
	}
	cleanup.Flags().IntVar(&days, "days", 0, "retention in days (default from config)")
	cmd.AddCommand(cleanup)

	return cmd
}

func (a *app) backups() (*backup.Manager, error) {
	db, err := a.open()
	if err != nil {
		return nil, err
	}
	cfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  a.cfg.S3.Endpoint,
			Bucket:    a.cfg.S3.Bucket,
			Region:    a.cfg.S3.Region,
			AccessKey: a.cfg.S3.AccessKey,
			SecretKey: a.cfg.S3.SecretKey,
		},
		Prefix: a.cfg.Backup.Prefix,
	}
	return backup.NewManager(cfg, db, a.logger.With("component", "backup")), nil
}
