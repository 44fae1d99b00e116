package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"transit-console/internal/backup"
	"transit-console/internal/backup/domain/model"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Lists the collections that can be backed up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tPATH\tKIND\tDESCRIPTION")
		for _, c := range model.DefaultCollections().All() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Key, c.Path, c.Kind, c.Description)
		}
		return w.Flush()
	},
}

var createCmd = &cobra.Command{
	Use:   "create {collection key}...",
	Short: "Creates a backup of the given collections",
	Example: `  backupctl create conductors routes fareMatrix

    Snapshots the conductor forest, routes and the fare matrix into one backup.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withModule(func(ctx context.Context, module *backup.BackupModule) error {
			meta, err := module.Service.CreateBackup(ctx, args, func(p model.BackupProgress) {
				fmt.Printf("[%3d%%] %s\n", p.Percentage, p.Message)
			})
			if err != nil {
				return fmt.Errorf("creating backup: %w", err)
			}
			fmt.Printf("\nBackup %s created: %d documents, %s, expires %s\n",
				meta.ID, meta.TotalDocuments, humanize.Bytes(uint64(meta.FileSizeBytes)), meta.ExpiresAt.Format(time.RFC3339))
			if meta.DownloadURL != "" {
				fmt.Printf("Download: %s\n", meta.DownloadURL)
			}
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withModule(func(ctx context.Context, module *backup.BackupModule) error {
			backups, err := module.Service.ListBackups(ctx)
			if err != nil {
				return fmt.Errorf("listing backups: %w", err)
			}
			if len(backups) == 0 {
				fmt.Println("No backups found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tDOCUMENTS\tSIZE\tEXPIRES\tCOLLECTIONS")
			for _, b := range backups {
				expires := humanize.Time(b.ExpiresAt)
				if b.IsExpired {
					expires = "expired"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					b.ID, b.CreatedAt.Format(time.RFC3339), b.TotalDocuments,
					humanize.Bytes(uint64(b.FileSizeBytes)), expires, strings.Join(b.Collections, ","))
			}
			return w.Flush()
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Shows backup counts and total size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withModule(func(ctx context.Context, module *backup.BackupModule) error {
			stats, err := module.Service.Statistics(ctx)
			if err != nil {
				return fmt.Errorf("reading statistics: %w", err)
			}
			fmt.Printf("Total:   %d\nActive:  %d\nExpired: %d\nSize:    %s\n",
				stats.Total, stats.Active, stats.Expired, stats.TotalSizeHuman)
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete {backup id}",
	Short: "Deletes a backup and its snapshot blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withModule(func(ctx context.Context, module *backup.BackupModule) error {
			if err := module.Service.DeleteBackup(ctx, args[0]); err != nil {
				return fmt.Errorf("deleting backup: %w", err)
			}
			fmt.Printf("Backup %s deleted\n", args[0])
			return nil
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Deletes every expired backup now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withModule(func(ctx context.Context, module *backup.BackupModule) error {
			deleted, err := module.Sweeper.RunOnce(ctx)
			fmt.Printf("%d expired backups deleted\n", deleted)
			if err != nil {
				return fmt.Errorf("sweeping expired backups: %w", err)
			}
			return nil
		})
	},
}
