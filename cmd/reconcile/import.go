package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ambre-dwings/reconcile/internal/config"
	"github.com/ambre-dwings/reconcile/internal/dwings"
	"github.com/ambre-dwings/reconcile/internal/importer"
	"github.com/ambre-dwings/reconcile/internal/ruleengine"
	"github.com/ambre-dwings/reconcile/internal/store"
)

var (
	countryID  string
	inputFiles []string
	holder     string
	localDB    string
	networkDB  string
	lockDir    string
	backupDir  string
	jsonOutput bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import one country's AMBRE export and reconcile it against DWINGS",
	Long: `import runs one country's full sync cycle: acquire the global
lock, pull the shared network copy, diff and merge the parsed AMBRE
file(s) into the local canonical table, link and rule-evaluate the
newly added movements, then publish back to the network copy.`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&countryID, "country", "c", "", "country id as configured in the catalog (required)")
	importCmd.Flags().StringSliceVarP(&inputFiles, "file", "f", nil, "path to a pivot or receivable AMBRE export file (repeatable, 1 or 2 files)")
	importCmd.Flags().StringVar(&holder, "holder", "", "identifier recorded in the lock lease (defaults to hostname)")
	importCmd.Flags().StringVar(&localDB, "local-db", "reconcile-local.sqlite", "path to the local SQLite database")
	importCmd.Flags().StringVar(&networkDB, "network-db", "", "path to the shared network copy of the database (optional)")
	importCmd.Flags().StringVar(&lockDir, "lock-dir", "locks", "directory holding per-country lock files")
	importCmd.Flags().StringVar(&backupDir, "backup-dir", "backups", "directory holding pre-import reconciliation backups")
	importCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the import result as JSON instead of a summary line")

	_ = importCmd.MarkFlagRequired("country")
	_ = importCmd.MarkFlagRequired("file")

	_ = viper.BindPFlag("country", importCmd.Flags().Lookup("country"))
	_ = viper.BindPFlag("local-db", importCmd.Flags().Lookup("local-db"))
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	catalog, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration catalog: %w", err)
	}

	if _, err := catalog.GetCountryByID(ctx, countryID); err != nil {
		return fmt.Errorf("resolving country %q: %w", countryID, err)
	}

	if holder == "" {
		holder, _ = os.Hostname()
	}

	st, err := store.New(store.Options{
		LocalPath:    localDB,
		NetworkPath:  networkDB,
		LockDir:      lockDir,
		BackupDir:    backupDir,
		DWINGSLoader: dwings.JSONFileLoader,
		Rules:        ruleengine.DefaultTable(),
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = st.Close() }()

	kpi, err := newKPISnapshot()
	if err != nil {
		return fmt.Errorf("opening kpi snapshot directory: %w", err)
	}

	orch := &importer.Orchestrator{
		Store:  st,
		Config: catalog,
		KPI:    kpi,
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "importing %d file(s) for country %s...\n", len(inputFiles), countryID)
	}

	result, err := orch.Import(ctx, importer.ImportRequest{
		CountryID: countryID,
		Files:     inputFiles,
		Holder:    holder,
	})

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil {
			return fmt.Errorf("encoding result: %w", encErr)
		}
		if err != nil {
			return err
		}
		return nil
	}

	printSummary(result)
	if err != nil {
		return err
	}
	return nil
}

func printSummary(result importer.ImportResult) {
	duration := result.End.Sub(result.Start).Round(time.Millisecond)
	if result.Success {
		color.New(color.FgGreen, color.Bold).Fprintf(os.Stdout, "OK")
		fmt.Printf("  processed=%d new=%d updated=%d archived=%d in %s\n",
			result.Processed, result.New, result.Updated, result.Deleted, duration)
		return
	}

	color.New(color.FgRed, color.Bold).Fprintf(os.Stdout, "FAILED")
	fmt.Printf("  in %s\n", duration)
	for _, e := range result.ValidationErrors {
		fmt.Printf("  validation: %s\n", e)
	}
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}
