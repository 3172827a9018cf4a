package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Import AMBRE movements and reconcile them against DWINGS",
	Long: `reconcile is the offline-first AMBRE <-> DWINGS import and
reconciliation engine: it diffs a parsed AMBRE export against the local
canonical table, applies the change set behind a global per-country
lock, links each movement to its DWINGS invoice or guarantee, and
assigns a reconciliation action via a fixed rule table.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "reconcile.toml", "path to the country/mapping configuration catalog")
	rootCmd.PersistentFlags().Bool("verbose", false, "print step-by-step progress to stderr")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}
