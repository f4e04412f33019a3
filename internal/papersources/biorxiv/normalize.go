package biorxiv

import (
	"fmt"
	"strings"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/normalize"
)

// Normalize maps a Preprint payload onto the canonical schema.
func Normalize(raw domain.RawRecord) (*domain.NormalizedRecord, error) {
	p, ok := raw.Payload.(Preprint)
	if !ok {
		return nil, normalize.PayloadError(raw, "biorxiv.Preprint")
	}

	title := normalize.CleanText(p.Title)
	if title == "" {
		return nil, nil
	}

	var names []string
	for _, a := range strings.Split(p.Authors, ";") {
		names = append(names, normalize.InvertName(a))
	}

	rec := &domain.NormalizedRecord{
		Title:    title,
		Authors:  normalize.Authors(names),
		Abstract: normalize.Text(p.Abstract),
		Journal:  domain.StringPtr(serverName(p.Server)),
		DOI:      normalize.DOI(p.DOI),
	}
	rec.PublicationDate, rec.PublicationYear = normalize.ParseDate(p.Date)
	if p.Category != "" {
		rec.Keywords = normalize.Terms([]string{p.Category})
	}
	if rec.DOI != nil {
		server := strings.ToLower(p.Server)
		if server == "" {
			server = "biorxiv"
		}
		version := p.Version
		if version == "" {
			version = "1"
		}
		rec.SourceURL = domain.StringPtr(fmt.Sprintf("https://www.%s.org/content/%sv%s", server, *rec.DOI, version))
	}
	return rec, nil
}

func serverName(server string) string {
	switch strings.ToLower(server) {
	case "medrxiv":
		return "medRxiv"
	default:
		return "bioRxiv"
	}
}
