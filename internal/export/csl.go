package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// CSLCodec writes CSL-YAML references, the input format of pandoc-citeproc
// and most reference managers. Fields CSL has no variable for are kept under
// custom.
type CSLCodec struct{}

type cslDocument struct {
	References []cslItem `yaml:"references"`
}

type cslItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []cslName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Issued         *cslDate  `yaml:"issued,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	PMID           string    `yaml:"PMID,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	Keyword        string    `yaml:"keyword,omitempty"`
	Source         string    `yaml:"source,omitempty"`
	Custom         cslCustom `yaml:"custom"`
}

// cslName is a CSL name. Single-word names use literal.
type cslName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

type cslDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

type cslCustom struct {
	SourceID  string   `yaml:"source_id"`
	Disease   string   `yaml:"disease,omitempty"`
	Diseases  []string `yaml:"diseases,omitempty"`
	Keywords  []string `yaml:"keywords,omitempty"`
	MeshTerms []string `yaml:"mesh_terms,omitempty"`
}

// Format implements Codec.
func (CSLCodec) Format() Format { return FormatCSL }

// Encode implements Codec.
func (CSLCodec) Encode(w io.Writer, c *domain.Corpus) error {
	records := c.Sorted()
	doc := cslDocument{References: make([]cslItem, 0, len(records))}
	for _, rec := range records {
		doc.References = append(doc.References, toCSLItem(rec))
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode csl yaml: %w", err)
	}
	return enc.Close()
}

func toCSLItem(rec domain.CanonicalRecord) cslItem {
	b := rec.Best
	item := cslItem{
		ID:             rec.IdentityKey,
		Type:           "article-journal",
		Title:          b.Title,
		ContainerTitle: domain.Deref(b.Journal),
		Abstract:       domain.Deref(b.Abstract),
		DOI:            domain.Deref(b.DOI),
		PMID:           domain.Deref(b.PMID),
		URL:            domain.Deref(b.SourceURL),
		Keyword:        strings.Join(b.Keywords, ", "),
		Source:         b.SourceID.DisplayName(),
		Custom: cslCustom{
			SourceID:  string(b.SourceID),
			Disease:   string(b.Disease),
			Diseases:  keys(rec.Diseases),
			Keywords:  b.Keywords,
			MeshTerms: b.MeshTerms,
		},
	}
	for _, a := range b.Authors {
		item.Author = append(item.Author, splitName(a))
	}
	switch {
	case b.PublicationDate != nil:
		d := b.PublicationDate
		item.Issued = &cslDate{DateParts: [][]int{{d.Year(), int(d.Month()), d.Day()}}}
	case b.PublicationYear > 0:
		item.Issued = &cslDate{DateParts: [][]int{{b.PublicationYear}}}
	}
	return item
}

// splitName splits a display name at its last space into given and family.
func splitName(name string) cslName {
	i := strings.LastIndexByte(name, ' ')
	if i <= 0 {
		return cslName{Literal: name}
	}
	return cslName{Given: name[:i], Family: name[i+1:]}
}

func (n cslName) display() string {
	switch {
	case n.Literal != "":
		return n.Literal
	case n.Given == "":
		return n.Family
	case n.Family == "":
		return n.Given
	}
	return n.Given + " " + n.Family
}

// Decode implements Codec.
func (CSLCodec) Decode(r io.Reader) ([]domain.CanonicalRecord, error) {
	var doc cslDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode csl yaml: %w", err)
	}

	out := make([]domain.CanonicalRecord, 0, len(doc.References))
	for _, item := range doc.References {
		rec, err := fromCSLItem(item)
		if err != nil {
			return nil, fmt.Errorf("csl item %s: %w", item.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func fromCSLItem(item cslItem) (domain.CanonicalRecord, error) {
	best := domain.NormalizedRecord{
		Title:     item.Title,
		Authors:   make([]string, 0, len(item.Author)),
		Abstract:  domain.StringPtr(item.Abstract),
		Journal:   domain.StringPtr(item.ContainerTitle),
		DOI:       domain.StringPtr(item.DOI),
		PMID:      domain.StringPtr(item.PMID),
		SourceID:  domain.SourceID(item.Custom.SourceID),
		SourceURL: domain.StringPtr(item.URL),
		Disease:   domain.Disease(item.Custom.Disease),
		Keywords:  item.Custom.Keywords,
		MeshTerms: item.Custom.MeshTerms,
	}
	for _, n := range item.Author {
		if name := n.display(); name != "" {
			best.Authors = append(best.Authors, name)
		}
	}

	if item.Issued != nil && len(item.Issued.DateParts) > 0 {
		parts := item.Issued.DateParts[0]
		switch len(parts) {
		case 0:
		case 3:
			t := time.Date(parts[0], time.Month(parts[1]), parts[2], 0, 0, 0, 0, time.UTC)
			if t.Month() != time.Month(parts[1]) {
				return domain.CanonicalRecord{}, fmt.Errorf("invalid issued date %v", parts)
			}
			best.PublicationDate = &t
			best.PublicationYear = t.Year()
		default:
			best.PublicationYear = parts[0]
		}
	}

	return domain.CanonicalRecord{
		IdentityKey:  item.ID,
		Best:         best,
		Contributing: []domain.NormalizedRecord{best},
		Diseases:     diseaseList(item.Custom.Diseases),
	}, nil
}
