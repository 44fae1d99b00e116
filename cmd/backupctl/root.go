package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transit-console/internal/backup"
	"transit-console/internal/backup/config"
	"transit-console/internal/di"
	"transit-console/internal/shared/contextkeys"
	"transit-console/internal/shared/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	envFile    string
	operatorID string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "backupctl",
	Short: "Backup and restore tool for the transit console",
	Long: `backupctl - Backup and restore tool for the transit console

Creates point-in-time snapshots of the console's collections, lists and
removes them, sweeps expired snapshots and restores a snapshot into the
live document store. It reads the same environment as the API server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
			fmt.Fprintf(os.Stderr, "Warning: Could not load %s: %v\n", envFile, err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")
	rootCmd.PersistentFlags().StringVar(&operatorID, "operator", "backupctl", "Operator id recorded in the audit trail")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "WARN", "Log level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(collectionsCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(sweepCmd)
	initRestore()
	rootCmd.AddCommand(restoreCmd)
	initToken()
	rootCmd.AddCommand(tokenCmd)
}

// commandContext is cancelled on SIGINT/SIGTERM and carries the operator id.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = context.WithValue(ctx, contextkeys.OperatorIDKey, operatorID)
	ctx = context.WithValue(ctx, contextkeys.ComponentKey, "backupctl")
	return ctx, cancel
}

// withModule connects the backing services, runs fn and tears everything
// down again.
func withModule(fn func(ctx context.Context, module *backup.BackupModule) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	container := di.NewContainer(logger.NewLoggerWithOutput(logLevel, "text", os.Stderr))
	defer container.Close()

	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	err = container.Initialize(initCtx, cfg)
	initCancel()
	if err != nil {
		return err
	}
	return fn(ctx, container.GetBackupModule())
}
