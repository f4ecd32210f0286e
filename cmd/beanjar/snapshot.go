package main

import (
	"database/sql"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/beanjar/internal/snapshot"
)

func newSnapshotManager(rt *runtime, db *sql.DB) *snapshot.Manager {
	c := rt.cfg.Snapshot
	return snapshot.NewManager(snapshot.Config{
		Endpoint:   c.Endpoint,
		Bucket:     c.Bucket,
		Region:     c.Region,
		AccessKey:  c.AccessKey,
		SecretKey:  c.SecretKey,
		Prefix:     c.Prefix,
		Passphrase: c.Passphrase,
	}, db, rt.logger.With("component", "snapshot"))
}

func newSnapshotCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Upload an encrypted copy of the database to object storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cleanup, err := openDB(rt)
			if err != nil {
				return err
			}
			defer cleanup()

			snap, err := newSnapshotManager(rt, db).Create(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %d uploaded to %s (%d bytes)\n", snap.ID, snap.ObjectKey, snap.SizeBytes)
			return nil
		},
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cleanup, err := openDB(rt)
			if err != nil {
				return err
			}
			defer cleanup()

			snaps, err := newSnapshotManager(rt, db).List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tBYTES\tKEY")
			for _, s := range snaps {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04"), s.Status, s.SizeBytes, s.ObjectKey)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum rows to show")

	var dst string
	restore := &cobra.Command{
		Use:   "restore ID",
		Short: "Download and decrypt a snapshot into a new database file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid snapshot id %q", args[0])
			}

			db, cleanup, err := openDB(rt)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := newSnapshotManager(rt, db).Restore(cmd.Context(), id, dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %d restored to %s\n", id, dst)
			return nil
		},
	}
	restore.Flags().StringVar(&dst, "to", "", "path of the database file to create")
	_ = restore.MarkFlagRequired("to")

	cmd.AddCommand(list, restore)
	return cmd
}
