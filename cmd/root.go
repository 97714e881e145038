package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carloslaurellineves/websearch-agent/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "websearch-agent",
	Short: "Software licensing verifier",
	Long: "Downloads the software inventory from SharePoint, researches the corporate licensing " +
		"requirement of every entry with web search and a language model, and writes an annotated report.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runVerification(cmd.Context(), cmd.OutOrStdout())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		zap.L().Error("websearch-agent: failed", zap.Error(err))
		_ = zap.L().Sync()
		stop()
		os.Exit(1)
	}
}
