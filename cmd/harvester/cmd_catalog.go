package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/helixir/disease-literature-harvester/internal/config"
	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/papersources"
	"github.com/helixir/disease-literature-harvester/internal/papersources/catalog"
)

var diseasesFlags struct {
	verbose bool
}

var diseasesCmd = &cobra.Command{
	Use:   "diseases",
	Short: "List the supported diseases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		printDiseases(cmd.OutOrStdout(), diseasesFlags.verbose)
		return nil
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the literature sources and whether they are enabled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg := catalog.New(cfg.Sources, cfg.Harvest.YearsBack).Registry
		printSources(cmd.OutOrStdout(), reg.All(), cfg.Sources)
		return nil
	},
}

func init() {
	diseasesCmd.Flags().BoolVarP(&diseasesFlags.verbose, "verbose", "v", false, "Also print search terms, MeSH terms and ICD codes")
}

func printDiseases(w io.Writer, verbose bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if verbose {
		fmt.Fprintln(tw, "KEY\tNAME\tICD\tMESH\tSEARCH TERMS")
	} else {
		fmt.Fprintln(tw, "KEY\tNAME")
	}
	for _, d := range domain.AllDiseases() {
		p, ok := d.Profile()
		if !ok {
			continue
		}
		if verbose {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Key, p.Name,
				strings.Join(p.ICDCodes, ", "), strings.Join(p.MeshTerms, ", "), strings.Join(p.SearchTerms, ", "))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", p.Key, p.Name)
	}
	_ = tw.Flush()
}

func printSources(w io.Writer, adapters []papersources.Adapter, cfg config.SourcesConfig) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tENABLED\tRATE\tPAGE SIZE")
	for _, a := range adapters {
		sc, _ := cfg.Lookup(a.SourceID())
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d/%s\t%d\n",
			a.SourceID(), a.Name(), a.IsEnabled(), sc.RequestsPerWindow, sc.Window, sc.PageSize)
	}
	_ = tw.Flush()
}
