package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"barcodescanner/internal/app"
	"barcodescanner/internal/config"
	"barcodescanner/internal/logger"
)

var serveMode string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scanning session and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if serveMode != "" {
			cfg.ScanMode = serveMode
		}
		log := logger.NewLogger(cfg)
		defer log.Sync()

		application, err := app.NewApp(cfg, log)
		if err != nil {
			log.Error("Failed to start server: %v", err)
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return application.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveMode, "mode", "", "scan mode: continuous or single (overrides SCAN_MODE)")
}
