package main

import (
	"fmt"
	"os"

	"invoice-backend/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "invoicectl",
	Short: "invoicectl - offline operations for the invoice backend",
	Long: `invoicectl runs invoice-backend operations directly against the
database, without going through the HTTP API. Currently it supports
running an import reconciliation over a batch feed file.`,
}

func main() {
	// configs/.env is optional, the CLI also works from plain env vars
	_ = godotenv.Load("configs/.env")
	logger.Setup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
