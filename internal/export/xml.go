package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// XMLCodec writes every canonical record with all contributing records.
type XMLCodec struct{}

type xmlCorpus struct {
	XMLName   xml.Name    `xml:"corpus"`
	RunID     string      `xml:"run_id,attr,omitempty"`
	StartedAt string      `xml:"started_at,attr,omitempty"`
	Cancelled bool        `xml:"cancelled,attr,omitempty"`
	Records   []xmlRecord `xml:"record"`
}

type xmlRecord struct {
	IdentityKey  string     `xml:"identity_key,attr"`
	Diseases     []string   `xml:"diseases>disease"`
	Best         xmlPaper   `xml:"best"`
	Contributing []xmlPaper `xml:"contributing>paper"`
}

type xmlPaper struct {
	Source          string   `xml:"source,attr"`
	Disease         string   `xml:"disease,attr,omitempty"`
	Title           string   `xml:"title"`
	Authors         []string `xml:"authors>author"`
	Abstract        *string  `xml:"abstract,omitempty"`
	Journal         *string  `xml:"journal,omitempty"`
	PublicationDate string   `xml:"publication_date,omitempty"`
	PublicationYear int      `xml:"publication_year,omitempty"`
	DOI             *string  `xml:"doi,omitempty"`
	PMID            *string  `xml:"pmid,omitempty"`
	SourceURL       *string  `xml:"source_url,omitempty"`
	Keywords        []string `xml:"keywords>keyword"`
	MeshTerms       []string `xml:"mesh_terms>term"`
}

// Format implements Codec.
func (XMLCodec) Format() Format { return FormatXML }

// Encode implements Codec.
func (XMLCodec) Encode(w io.Writer, c *domain.Corpus) error {
	doc := xmlCorpus{
		RunID:     c.Metadata.RunID,
		Cancelled: c.Metadata.Cancelled,
	}
	if !c.Metadata.StartedAt.IsZero() {
		doc.StartedAt = c.Metadata.StartedAt.UTC().Format(time.RFC3339)
	}
	for _, rec := range c.Sorted() {
		x := xmlRecord{
			IdentityKey: rec.IdentityKey,
			Diseases:    keys(rec.Diseases),
			Best:        toXMLPaper(rec.Best),
		}
		for _, p := range rec.Contributing {
			x.Contributing = append(x.Contributing, toXMLPaper(p))
		}
		doc.Records = append(doc.Records, x)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write xml header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode xml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode xml: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Decode implements Codec.
func (XMLCodec) Decode(r io.Reader) ([]domain.CanonicalRecord, error) {
	var doc xmlCorpus
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode xml export: %w", err)
	}

	out := make([]domain.CanonicalRecord, 0, len(doc.Records))
	for _, x := range doc.Records {
		best, err := fromXMLPaper(x.Best)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", x.IdentityKey, err)
		}
		rec := domain.CanonicalRecord{
			IdentityKey: x.IdentityKey,
			Best:        best,
			Diseases:    diseaseList(x.Diseases),
		}
		for _, p := range x.Contributing {
			c, err := fromXMLPaper(p)
			if err != nil {
				return nil, fmt.Errorf("record %s: %w", x.IdentityKey, err)
			}
			rec.Contributing = append(rec.Contributing, c)
		}
		out = append(out, rec)
	}
	return out, nil
}

func toXMLPaper(r domain.NormalizedRecord) xmlPaper {
	p := xmlPaper{
		Source:          string(r.SourceID),
		Disease:         string(r.Disease),
		Title:           r.Title,
		Authors:         r.Authors,
		Abstract:        r.Abstract,
		Journal:         r.Journal,
		PublicationYear: r.PublicationYear,
		DOI:             r.DOI,
		PMID:            r.PMID,
		SourceURL:       r.SourceURL,
		Keywords:        r.Keywords,
		MeshTerms:       r.MeshTerms,
	}
	if r.PublicationDate != nil {
		p.PublicationDate = r.PublicationDate.Format(dateLayout)
	}
	return p
}

func fromXMLPaper(p xmlPaper) (domain.NormalizedRecord, error) {
	r := domain.NormalizedRecord{
		Title:     p.Title,
		Authors:   p.Authors,
		Abstract:  p.Abstract,
		Journal:   p.Journal,
		DOI:       p.DOI,
		PMID:      p.PMID,
		SourceID:  domain.SourceID(p.Source),
		SourceURL: p.SourceURL,
		Disease:   domain.Disease(p.Disease),
		Keywords:  p.Keywords,
		MeshTerms: p.MeshTerms,
	}
	if r.Authors == nil {
		r.Authors = []string{}
	}
	r.PublicationYear = p.PublicationYear
	if p.PublicationDate != "" {
		t, err := time.Parse(dateLayout, p.PublicationDate)
		if err != nil {
			return r, fmt.Errorf("invalid publication date %q", p.PublicationDate)
		}
		r.PublicationDate = &t
	}
	return r, nil
}
