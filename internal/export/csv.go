package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// listSeparator joins list values inside a single CSV cell.
const listSeparator = "; "

// dateLayout is the calendar date layout used by the text formats.
const dateLayout = "2006-01-02"

var csvHeader = []string{
	"identity_key",
	"title",
	"authors",
	"abstract",
	"journal",
	"publication_date",
	"publication_year",
	"doi",
	"pmid",
	"source",
	"source_url",
	"disease",
	"diseases",
	"keywords",
	"mesh_terms",
	"sources",
}

// CSVCodec writes one row per canonical record, built from its best record.
// The sources column lists every contributing source and is not read back.
type CSVCodec struct{}

// Format implements Codec.
func (CSVCodec) Format() Format { return FormatCSV }

// Encode implements Codec.
func (CSVCodec) Encode(w io.Writer, c *domain.Corpus) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range c.Sorted() {
		if err := cw.Write(csvRow(rec)); err != nil {
			return fmt.Errorf("write csv row %s: %w", rec.IdentityKey, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(rec domain.CanonicalRecord) []string {
	b := rec.Best
	var date, year string
	if b.PublicationDate != nil {
		date = b.PublicationDate.Format(dateLayout)
	}
	if y := b.Year(); y > 0 {
		year = strconv.Itoa(y)
	}
	return []string{
		rec.IdentityKey,
		b.Title,
		strings.Join(b.Authors, listSeparator),
		domain.Deref(b.Abstract),
		domain.Deref(b.Journal),
		date,
		year,
		domain.Deref(b.DOI),
		domain.Deref(b.PMID),
		string(b.SourceID),
		domain.Deref(b.SourceURL),
		string(b.Disease),
		strings.Join(keys(rec.Diseases), listSeparator),
		strings.Join(b.Keywords, listSeparator),
		strings.Join(b.MeshTerms, listSeparator),
		strings.Join(keys(rec.Sources()), listSeparator),
	}
}

// Decode implements Codec.
func (CSVCodec) Decode(r io.Reader) ([]domain.CanonicalRecord, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	if _, ok := col["title"]; !ok {
		return nil, errors.New("csv export has no title column")
	}

	var out []domain.CanonicalRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		cell := func(name string) string {
			if i, ok := col[name]; ok && i < len(row) {
				return row[i]
			}
			return ""
		}

		rec, err := csvRecord(cell)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		out = append(out, rec)
	}
}

func csvRecord(cell func(string) string) (domain.CanonicalRecord, error) {
	best := domain.NormalizedRecord{
		Title:     cell("title"),
		Authors:   splitList(cell("authors")),
		Abstract:  domain.StringPtr(cell("abstract")),
		Journal:   domain.StringPtr(cell("journal")),
		DOI:       domain.StringPtr(cell("doi")),
		PMID:      domain.StringPtr(cell("pmid")),
		SourceID:  domain.SourceID(cell("source")),
		SourceURL: domain.StringPtr(cell("source_url")),
		Disease:   domain.Disease(cell("disease")),
		Keywords:  splitList(cell("keywords")),
		MeshTerms: splitList(cell("mesh_terms")),
	}
	if best.Authors == nil {
		best.Authors = []string{}
	}
	if err := setDate(&best, cell("publication_date"), cell("publication_year")); err != nil {
		return domain.CanonicalRecord{}, err
	}

	return domain.CanonicalRecord{
		IdentityKey:  cell("identity_key"),
		Best:         best,
		Contributing: []domain.NormalizedRecord{best},
		Diseases:     diseaseList(splitList(cell("diseases"))),
	}, nil
}

// setDate fills the publication date and year from their text forms.
func setDate(rec *domain.NormalizedRecord, date, year string) error {
	if year != "" {
		y, err := strconv.Atoi(year)
		if err != nil {
			return fmt.Errorf("invalid publication year %q", year)
		}
		rec.PublicationYear = y
	}
	if date != "" {
		t, err := time.Parse(dateLayout, date)
		if err != nil {
			return fmt.Errorf("invalid publication date %q", date)
		}
		rec.PublicationDate = &t
		rec.PublicationYear = t.Year()
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSeparator)
}

func diseaseList(values []string) []domain.Disease {
	if len(values) == 0 {
		return nil
	}
	out := make([]domain.Disease, len(values))
	for i, v := range values {
		out[i] = domain.Disease(v)
	}
	return out
}
