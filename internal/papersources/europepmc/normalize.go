package europepmc

import (
	"strconv"
	"strings"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/normalize"
)

// Normalize maps an Article payload onto the canonical schema.
func Normalize(raw domain.RawRecord) (*domain.NormalizedRecord, error) {
	a, ok := raw.Payload.(Article)
	if !ok {
		return nil, normalize.PayloadError(raw, "europepmc.Article")
	}

	title := normalize.CleanText(a.Title)
	if title == "" {
		return nil, nil
	}

	rec := &domain.NormalizedRecord{
		Title:    title,
		Authors:  authors(a),
		Abstract: normalize.Text(a.AbstractText),
		Journal:  journal(a),
		DOI:      normalize.DOI(a.DOI),
		PMID:     normalize.PMID(a.PMID),
	}

	rec.PublicationDate, rec.PublicationYear = normalize.ParseDate(a.FirstPublicationDate)
	if rec.PublicationYear == 0 {
		rec.PublicationYear, _ = strconv.Atoi(strings.TrimSpace(a.PubYear))
	}
	if a.MeshHeadingList != nil {
		terms := make([]string, 0, len(a.MeshHeadingList.MeshHeading))
		for _, h := range a.MeshHeadingList.MeshHeading {
			terms = append(terms, h.DescriptorName)
		}
		rec.MeshTerms = normalize.Terms(terms)
	}
	if a.KeywordList != nil {
		rec.Keywords = normalize.Terms(a.KeywordList.Keyword)
	}
	if a.ID != "" && a.Source != "" {
		rec.SourceURL = domain.StringPtr("https://europepmc.org/article/" + strings.ToUpper(a.Source) + "/" + a.ID)
	}
	return rec, nil
}

// authors prefers the structured core author list and falls back to the
// comma-separated authorString.
func authors(a Article) []string {
	if a.AuthorList != nil && len(a.AuthorList.Author) > 0 {
		names := make([]string, 0, len(a.AuthorList.Author))
		for _, au := range a.AuthorList.Author {
			name := au.FullName
			if au.FirstName != "" && au.LastName != "" {
				name = au.FirstName + " " + au.LastName
			}
			names = append(names, name)
		}
		return normalize.Authors(names)
	}

	s := strings.TrimSuffix(strings.TrimSpace(a.AuthorString), ".")
	if s == "" {
		return nil
	}
	return normalize.Authors(strings.Split(s, ", "))
}

func journal(a Article) *string {
	if a.JournalInfo != nil {
		if t := normalize.Text(a.JournalInfo.Journal.Title); t != nil {
			return t
		}
	}
	return normalize.Text(a.JournalTitle)
}
