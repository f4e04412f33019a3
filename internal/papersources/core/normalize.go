package core

import (
	"strconv"
	"strings"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/normalize"
)

// Normalize maps a Work payload onto the canonical schema.
func Normalize(raw domain.RawRecord) (*domain.NormalizedRecord, error) {
	w, ok := raw.Payload.(Work)
	if !ok {
		return nil, normalize.PayloadError(raw, "core.Work")
	}

	title := normalize.CleanText(w.Title)
	if title == "" {
		return nil, nil
	}

	names := make([]string, 0, len(w.Authors))
	for _, a := range w.Authors {
		names = append(names, normalize.InvertName(a.Name))
	}

	rec := &domain.NormalizedRecord{
		Title:    title,
		Authors:  normalize.Authors(names),
		Abstract: normalize.Text(w.Abstract),
		DOI:      normalize.DOI(w.DOI),
	}
	for _, id := range w.Identifiers {
		switch strings.ToUpper(id.Type) {
		case "DOI":
			if rec.DOI == nil {
				rec.DOI = normalize.DOI(id.Identifier)
			}
		case "PUBMED_ID":
			if rec.PMID == nil {
				rec.PMID = normalize.PMID(id.Identifier)
			}
		}
	}

	rec.PublicationDate, rec.PublicationYear = normalize.ParseDate(w.PublishedDate)
	if rec.PublicationYear == 0 {
		rec.PublicationYear = w.YearPublished
	}
	for _, j := range w.Journals {
		if t := normalize.Text(j.Title); t != nil {
			rec.Journal = t
			break
		}
	}
	if w.FieldOfStudy != "" {
		rec.Keywords = normalize.Terms([]string{w.FieldOfStudy})
	}

	switch {
	case w.ID != 0:
		rec.SourceURL = domain.StringPtr("https://core.ac.uk/works/" + strconv.FormatInt(w.ID, 10))
	case w.DownloadURL != "":
		rec.SourceURL = domain.StringPtr(w.DownloadURL)
	}
	return rec, nil
}
