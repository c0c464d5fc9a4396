package main

import (
	"fmt"
	"os"

	"invoice-backend/internal/database"
	"invoice-backend/internal/logger"
	"invoice-backend/internal/repository"
	"invoice-backend/internal/service"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Run an import reconciliation over a batch feed file",
	Long: `Runs one reconciliation over the given JSON feed file and commits
the accepted invoices in a single transaction. Invoices already in the
store (or duplicated within the file) are skipped; inconsistent invoices
are flagged and imported.

By default a malformed record aborts the whole run before anything is
committed. With --skip-invalid, malformed records are skipped and counted
instead.`,
	Example: `  # Import the default feed
  invoicectl import bd_exam_invoices.json

  # Tolerate malformed records
  invoicectl import feed.json --skip-invalid`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Bool("skip-invalid", false, "Skip malformed records instead of aborting the run")
}

func runImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoicectl")

	path := os.Getenv("IMPORT_FILE")
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no feed file given and IMPORT_FILE is not set")
	}
	skipInvalid, _ := cmd.Flags().GetBool("skip-invalid")

	db, err := database.NewConnection(buildDSN())
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	invoiceRepo := repository.NewInvoiceRepository(db)
	txManager := repository.NewTransactionManager(db)
	importService := service.NewImportService(invoiceRepo, txManager, nil)

	result, err := importService.ImportFromFile(cmd.Context(), path, service.ImportOptions{SkipInvalid: skipInvalid})
	if err != nil {
		return err
	}

	log.Info().Str("file", path).Msg("import finished")
	fmt.Printf("Total in file:      %d\n", result.TotalInFile)
	fmt.Printf("Imported:           %d\n", result.Imported)
	fmt.Printf("Duplicates skipped: %d\n", result.DuplicatesSkipped)
	fmt.Printf("Inconsistent:       %d\n", result.InconsistentCount)
	if skipInvalid {
		fmt.Printf("Invalid skipped:    %d\n", result.InvalidSkipped)
	}
	return nil
}

func buildDSN() string {
	get := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	host := get("DB_HOST", "localhost")
	port := get("DB_PORT", "5432")
	user := get("DB_USER", "postgres")
	password := get("DB_PASSWORD", "postgres")
	name := get("DB_NAME", "postgres")
	sslMode := get("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + password + "@" + host + ":" + port + "/" + name + "?sslmode=" + sslMode
}
