package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/family-finance-ledger/internal/config"
	"github.com/family-finance-ledger/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configName string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "statementctl",
	Short:         "Operator tools for statement drafting",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configName, "config", "c", "statementctl", "Config name, read from ./configs/<name>.env")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newDecodeCmd(), newDraftCmd(), newEventsCmd())
}

func newLogger() *slog.Logger {
	return logger.NewConsoleLogger(logLevel)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configName)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
