// Command harvester collects literature for disease topics from several
// bibliographic sources, deduplicates it and exports the corpus.
//
// Usage:
//
//	harvester harvest --disease crohns --disease type1_diabetes --format json --format csv
//	harvester harvest --disease all --from 2020-01-01 --to 2024-12-31 --stats
//	harvester serve
//	harvester migrate up
//	harvester diseases
//	harvester sources
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
}

var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Harvest and deduplicate disease literature from bibliographic sources",
	Long: `harvester queries PubMed, Europe PMC, OpenAlex, CORE, bioRxiv/medRxiv and
Springer Nature for a set of diseases, merges duplicate records and writes
the corpus as JSON, CSV, BibTeX, XML or CSL-YAML.

Configuration is read from config.yaml in ., ./config or
/etc/disease-literature-harvester, then from HARVESTER_* environment
variables. API keys are read from the environment only.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", "", "Config file (default: search ., ./config, /etc/disease-literature-harvester)")

	rootCmd.AddCommand(harvestCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(diseasesCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
