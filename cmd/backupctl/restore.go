package main

import (
	"context"
	"fmt"
	"strings"

	"transit-console/internal/backup"
	"transit-console/internal/backup/domain/model"

	"github.com/spf13/cobra"
)

var (
	restoreMode        string
	restoreCollections []string
)

var restoreCmd = &cobra.Command{
	Use:   "restore {backup id}",
	Short: "Restores a backup into the live document store",
	Example: `  backupctl restore backup_1717200000000_3f9c2a1b
  backupctl restore backup_1717200000000_3f9c2a1b --mode overwrite --collections routes,fareMatrix
`,
	Long: `Restores a backup into the live document store.

Modes:
  missing-only  only writes documents that do not exist (default)
  overwrite     replaces every document found in the backup
  merge         merges backup fields into existing documents

Interrupting the command cancels the restore; documents already written stay.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := model.ParseRestoreMode(restoreMode)
		if err != nil {
			return err
		}
		return withModule(func(ctx context.Context, module *backup.BackupModule) error {
			return runRestore(ctx, module, args[0], model.RestoreOptions{Mode: mode, Collections: restoreCollections})
		})
	},
}

func initRestore() {
	restoreCmd.Flags().StringVarP(&restoreMode, "mode", "m", string(model.RestoreModeMissingOnly), "Restore mode: missing-only, overwrite or merge")
	restoreCmd.Flags().StringSliceVarP(&restoreCollections, "collections", "c", nil, "Only restore these collection keys (default: all in the backup)")
}

func runRestore(ctx context.Context, module *backup.BackupModule, backupID string, opts model.RestoreOptions) error {
	restoreID, err := module.Runner.Start(ctx, backupID, opts)
	if err != nil {
		return fmt.Errorf("starting restore: %w", err)
	}
	fmt.Printf("Restoring backup %q (%s), run %s\n", backupID, opts.Mode, restoreID)

	go func() {
		_ = module.Runner.Follow(ctx, restoreID, func(p model.RestoreProgress) bool {
			line := fmt.Sprintf("[%5.1f%%] %-10s %d/%d", p.Percentage(), p.Phase, p.ProcessedDocuments, p.TotalDocuments)
			if p.CurrentItem != "" {
				line += " " + p.CurrentItem
			}
			fmt.Println(line)
			return true
		})
	}()

	result, err := module.Runner.Wait(ctx, restoreID)
	if err != nil {
		// Interrupted: cancel the run and wait for it to record the cancellation.
		_ = module.Runner.Cancel(restoreID)
		result, err = module.Runner.Wait(context.Background(), restoreID)
		if err != nil {
			return err
		}
	}

	fmt.Printf("\nRestore %s: %d restored, %d skipped\n", result.Phase, result.DocumentsRestored, result.DocumentsSkipped)
	if len(result.Errors) > 0 {
		fmt.Printf("Errors:\n  %s\n", strings.Join(result.Errors, "\n  "))
	}
	if !result.Success {
		if result.Error != "" {
			return fmt.Errorf("restore %s: %s", result.Phase, result.Error)
		}
		return fmt.Errorf("restore %s", result.Phase)
	}
	return nil
}
