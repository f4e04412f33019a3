package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/helixir/disease-literature-harvester/internal/corpus"
	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/export"
	"github.com/helixir/disease-literature-harvester/internal/harvest"
	"github.com/helixir/disease-literature-harvester/internal/observability"
)

var harvestFlags struct {
	diseases   []string
	sources    []string
	formats    []string
	maxResults int
	yearsBack  int
	from       string
	to         string
	outputDir  string
	persist    bool
	publish    bool
	stats      bool
}

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run one harvest and write the corpus to disk",
	Long: `Harvest fetches literature for the given diseases from every selected
source, merges duplicates and writes one file per export format.

Examples:
  harvester harvest --disease crohns
  harvester harvest --disease all --source pubmed --source europe_pmc --format csv
  harvester harvest --disease multiple_sclerosis --from 2021-01-01 --to 2023-12-31 --stats

Interrupting the command stops fetching and still writes the records
collected so far.`,
	Args: cobra.NoArgs,
	RunE: runHarvest,
}

func init() {
	f := harvestCmd.Flags()
	f.StringSliceVarP(&harvestFlags.diseases, "disease", "d", nil, "Disease key, repeatable, or 'all' (see 'harvester diseases')")
	f.StringSliceVarP(&harvestFlags.sources, "source", "s", nil, "Source ID, repeatable (default: all sources)")
	f.StringSliceVarP(&harvestFlags.formats, "format", "f", nil, "Export format: json, csv, bibtex, xml, csl (default: output.formats)")
	f.IntVar(&harvestFlags.maxResults, "max-results", 0, "Maximum raw records per source and disease (default: harvest.max_results_per_source, 1000)")
	f.IntVar(&harvestFlags.yearsBack, "years-back", 0, "Harvest the last N years when no --from/--to is given (default: harvest.years_back, 5)")
	f.StringVar(&harvestFlags.from, "from", "", "Start of the publication date range (YYYY-MM-DD)")
	f.StringVar(&harvestFlags.to, "to", "", "End of the publication date range (YYYY-MM-DD)")
	f.StringVarP(&harvestFlags.outputDir, "output-dir", "o", "", "Directory for export files (default: output.dir)")
	f.BoolVar(&harvestFlags.persist, "persist", false, "Save the run to PostgreSQL (implied by database.enabled)")
	f.BoolVar(&harvestFlags.publish, "publish", false, "Publish run events to Kafka (implied by kafka.enabled)")
	f.BoolVar(&harvestFlags.stats, "stats", false, "Print corpus statistics as YAML")
	_ = harvestCmd.MarkFlagRequired("disease")
	harvestCmd.MarkFlagsRequiredTogether("from", "to")
	harvestCmd.MarkFlagsMutuallyExclusive("from", "years-back")
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := observability.WithComponent(newLogger(cfg.Logging), "cli")

	formatNames := harvestFlags.formats
	if len(formatNames) == 0 {
		formatNames = cfg.Output.Formats
	}
	formats, err := export.ParseFormats(formatNames)
	if err != nil {
		return err
	}

	a := newApp(cfg, logger)
	defer a.close()

	q, err := harvestRequest().Query(a.defaults(), time.Now())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if harvestFlags.persist || cfg.Database.Enabled {
		if err := a.openStore(ctx); err != nil {
			return err
		}
	}
	if harvestFlags.publish || cfg.Kafka.Enabled {
		if err := a.openPublisher(); err != nil {
			return err
		}
	}

	runner, err := a.runner()
	if err != nil {
		return err
	}
	run, err := runner.Start(q)
	if err != nil {
		return err
	}
	if a.publisher != nil {
		if err := a.publisher.PublishRunStarted(ctx, run.ID(), q); err != nil {
			logger.Warn().Err(err).Str("run_id", run.ID()).Msg("failed to publish run started event")
		}
	}

	c, runErr := run.Execute(ctx)
	if c == nil {
		return runErr
	}
	if runErr != nil {
		logger.Error().Err(runErr).Str("run_id", c.Metadata.RunID).Msg("run finished with errors")
	}

	outputDir := harvestFlags.outputDir
	if outputDir == "" {
		outputDir = cfg.Output.Dir
	}
	paths, writeErr := export.NewWriter(outputDir, logger, a.metrics).Write(c, formats)

	out := cmd.OutOrStdout()
	printRunReport(out, c)
	for _, p := range paths {
		fmt.Fprintf(out, "wrote %s\n", p)
	}
	if harvestFlags.stats {
		if err := printStatistics(out, c); err != nil {
			return err
		}
	}

	err = errors.Join(runErr, writeErr)
	if c.Metadata.Cancelled {
		err = errors.Join(err, fmt.Errorf("%w: partial corpus of %d records written", domain.ErrRunCancelled, c.Len()))
	}
	return err
}

func harvestRequest() harvest.Request {
	return harvest.Request{
		Diseases:   harvestFlags.diseases,
		Sources:    harvestFlags.sources,
		MaxResults: harvestFlags.maxResults,
		YearsBack:  harvestFlags.yearsBack,
		From:       harvestFlags.from,
		To:         harvestFlags.to,
	}
}

// printRunReport writes one line per stream followed by the totals.
func printRunReport(w io.Writer, c *domain.Corpus) {
	m := c.Metadata
	fmt.Fprintf(w, "run %s: %d canonical records in %s", m.RunID, c.Len(), m.Elapsed.Round(time.Millisecond))
	if m.Cancelled {
		fmt.Fprint(w, " (cancelled)")
	}
	fmt.Fprintln(w)

	reports := append([]domain.SourceReport(nil), m.Sources...)
	sort.Slice(reports, func(i, j int) bool {
		if reports[i].Source != reports[j].Source {
			return reports[i].Source < reports[j].Source
		}
		return reports[i].Disease < reports[j].Disease
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tDISEASE\tSTATUS\tFETCHED\tNORMALIZED\tDROPPED\tMALFORMED\tERROR")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.Source, r.Disease, r.Status, r.Fetched, r.Normalized, r.Dropped, r.Malformed, oneLine(r.Error))
	}
	_ = tw.Flush()
}

func printStatistics(w io.Writer, c *domain.Corpus) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(corpus.Compute(c.Sorted())); err != nil {
		return fmt.Errorf("encode statistics: %w", err)
	}
	return enc.Close()
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
