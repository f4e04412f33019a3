package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/helixir/disease-literature-harvester/internal/corpus"
	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// JSONCodec writes the whole corpus, metadata included.
type JSONCodec struct{}

type jsonDocument struct {
	Metadata domain.RunMetadata      `json:"metadata"`
	Records  []domain.CanonicalRecord `json:"records"`
}

// Format implements Codec.
func (JSONCodec) Format() Format { return FormatJSON }

// Encode implements Codec.
func (JSONCodec) Encode(w io.Writer, c *domain.Corpus) error {
	return writeJSON(w, jsonDocument{Metadata: c.Metadata, Records: c.Sorted()})
}

// Decode implements Codec.
func (JSONCodec) Decode(r io.Reader) ([]domain.CanonicalRecord, error) {
	var doc jsonDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json export: %w", err)
	}
	return doc.Records, nil
}

// DecodeCorpus reads a JSON export back into a corpus.
func DecodeCorpus(r io.Reader) (*domain.Corpus, error) {
	var doc jsonDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json export: %w", err)
	}
	c := &domain.Corpus{
		Records:  make(map[string]domain.CanonicalRecord, len(doc.Records)),
		Metadata: doc.Metadata,
	}
	for _, rec := range doc.Records {
		c.Records[rec.IdentityKey] = rec
	}
	return c, nil
}

// Summary is the run overview written next to a JSON export.
type Summary struct {
	RunID           string                          `json:"run_id"`
	Query           domain.Query                    `json:"query"`
	TotalPapers     int                             `json:"total_papers"`
	PapersBySource  map[domain.SourceID]int         `json:"papers_by_source"`
	PapersByDisease map[domain.Disease]DiseaseCount `json:"papers_by_disease"`
	Cancelled       bool                            `json:"cancelled"`
	SourceErrors    map[domain.SourceID]string      `json:"source_errors,omitempty"`
	Statistics      corpus.Statistics               `json:"statistics"`
}

// DiseaseCount pairs a disease name with its record count.
type DiseaseCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// NewSummary builds the summary of c.
func NewSummary(c *domain.Corpus) Summary {
	stats := corpus.Compute(c.Sorted())
	byDisease := make(map[domain.Disease]DiseaseCount, len(stats.ByDisease))
	for d, n := range stats.ByDisease {
		byDisease[d] = DiseaseCount{Name: d.Name(), Count: n}
	}
	return Summary{
		RunID:           c.Metadata.RunID,
		Query:           c.Metadata.Query,
		TotalPapers:     c.Len(),
		PapersBySource:  stats.BySource,
		PapersByDisease: byDisease,
		Cancelled:       c.Metadata.Cancelled,
		SourceErrors:    c.Metadata.PerSourceErrors,
		Statistics:      stats,
	}
}

// WriteSummary writes the summary of c as indented JSON.
func WriteSummary(w io.Writer, c *domain.Corpus) error {
	return writeJSON(w, NewSummary(c))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
