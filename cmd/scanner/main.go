package main

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scanner",
	Short: "Barcode scanning server and tools",
	Long: `Barcode scanner: continuous or single-shot barcode scanning from a local
or network camera, with time-windowed deduplication and scan history.

Configuration comes from the environment (and .env when present).`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, scanCmd, historyCmd)
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
