// Package export writes finished corpora in interchange formats and reads
// them back.
//
// JSON and XML keep every field, including contributing records. CSV and
// CSL-YAML keep every field of the best record but collapse contributing
// records to the best one. BibTeX keeps title, authors, journal, year, month,
// DOI, PMID, URL, diseases and source; it drops the abstract, the day of
// month, keywords, MeSH terms and contributing records.
package export

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// Format identifies an export format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatCSV    Format = "csv"
	FormatXML    Format = "xml"
	FormatBibTeX Format = "bibtex"
	FormatCSL    Format = "csl"
)

// filePrefix starts every export file name.
const filePrefix = "autoimmune_papers"

// timestampLayout is the run timestamp embedded in file names.
const timestampLayout = "20060102_150405"

// AllFormats lists every supported format.
func AllFormats() []Format {
	return []Format{FormatJSON, FormatCSV, FormatXML, FormatBibTeX, FormatCSL}
}

// ParseFormat parses a format name, accepting file extensions as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "xml":
		return FormatXML, nil
	case "bibtex", "bib":
		return FormatBibTeX, nil
	case "csl", "csl-yaml", "yaml", "yml":
		return FormatCSL, nil
	}
	return "", domain.NewValidationError("format", fmt.Sprintf("unknown export format %q", s))
}

// ParseFormats parses a list of format names, dropping duplicates.
func ParseFormats(names []string) ([]Format, error) {
	out := make([]Format, 0, len(names))
	for _, n := range names {
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatBibTeX:
		return "bib"
	case FormatCSL:
		return "yaml"
	default:
		return string(f)
	}
}

// ContentType returns the media type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXML:
		return "application/xml"
	case FormatBibTeX:
		return "application/x-bibtex; charset=utf-8"
	case FormatCSL:
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}

// Codec encodes a corpus in one format and decodes the records back.
type Codec interface {
	Format() Format
	Encode(w io.Writer, c *domain.Corpus) error
	Decode(r io.Reader) ([]domain.CanonicalRecord, error)
}

// CodecFor returns the codec for f.
func CodecFor(f Format) (Codec, error) {
	switch f {
	case FormatJSON:
		return JSONCodec{}, nil
	case FormatCSV:
		return CSVCodec{}, nil
	case FormatXML:
		return XMLCodec{}, nil
	case FormatBibTeX:
		return BibTeXCodec{}, nil
	case FormatCSL:
		return CSLCodec{}, nil
	}
	return nil, domain.NewValidationError("format", fmt.Sprintf("unknown export format %q", f))
}

// BaseName returns the file name shared by every export of a run, without
// extension: autoimmune_papers_{diseases}_{sources}_{YYYYMMDD_HHMMSS}.
func BaseName(q domain.Query, at time.Time) string {
	return strings.Join([]string{
		filePrefix,
		namePart(keys(q.Diseases), keys(domain.AllDiseases()), "diseases"),
		namePart(keys(q.Sources), keys(domain.AllSources()), "sources"),
		at.UTC().Format(timestampLayout),
	}, "_")
}

// Filename returns BaseName with the extension of f.
func Filename(q domain.Query, f Format, at time.Time) string {
	return BaseName(q, at) + "." + f.Extension()
}

// namePart names a selection: all_{noun} when every value is selected, the
// keys joined with "_" for up to three values, "{n}_{noun}" beyond that.
func namePart(selected, all []string, noun string) string {
	sel := slices.Clone(selected)
	slices.Sort(sel)
	sel = slices.Compact(sel)

	covered := len(sel) == len(all)
	for _, k := range all {
		if !slices.Contains(sel, k) {
			covered = false
			break
		}
	}
	switch {
	case covered:
		return "all_" + noun
	case len(sel) <= 3:
		return strings.Join(sel, "_")
	default:
		return fmt.Sprintf("%d_%s", len(sel), noun)
	}
}

func keys[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
