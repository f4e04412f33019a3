package pubmed

import (
	"strings"
	"time"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/normalize"
)

// Normalize maps a PubmedArticle payload onto the canonical schema.
func Normalize(raw domain.RawRecord) (*domain.NormalizedRecord, error) {
	a, ok := raw.Payload.(PubmedArticle)
	if !ok {
		return nil, normalize.PayloadError(raw, "pubmed.PubmedArticle")
	}

	citation := a.MedlineCitation
	title := normalize.CleanText(citation.Article.ArticleTitle.Value)
	if title == "" {
		return nil, nil
	}

	pmid := normalize.PMID(citation.PMID)
	if pmid == nil {
		pmid = articleID(a.PubmedData, "pubmed")
	}

	rec := &domain.NormalizedRecord{
		Title:     title,
		Authors:   authors(citation.Article.AuthorList),
		Abstract:  abstract(citation.Article.Abstract),
		Journal:   journal(citation.Article.Journal),
		DOI:       extractDOI(a),
		PMID:      pmid,
		MeshTerms: meshTerms(citation.MeshHeadingList),
		Keywords:  keywords(citation.KeywordList),
	}
	rec.PublicationDate, rec.PublicationYear = publicationDate(citation.Article)
	if pmid != nil {
		rec.SourceURL = domain.StringPtr("https://pubmed.ncbi.nlm.nih.gov/" + *pmid + "/")
	}
	return rec, nil
}

// extractDOI prefers a valid ELocationID over the ArticleIdList entry.
func extractDOI(a PubmedArticle) *string {
	for _, e := range a.MedlineCitation.Article.ELocationIDs {
		if e.EIdType == "doi" && e.ValidYN != "N" {
			if doi := normalize.DOI(e.Value); doi != nil {
				return doi
			}
		}
	}
	for _, id := range a.PubmedData.ArticleIDList.IDs {
		if id.IDType == "doi" {
			return normalize.DOI(id.Value)
		}
	}
	return nil
}

func articleID(data PubmedData, idType string) *string {
	for _, id := range data.ArticleIDList.IDs {
		if id.IDType == idType {
			return normalize.PMID(id.Value)
		}
	}
	return nil
}

// authors formats names as "ForeName LastName", falling back to
// "Initials LastName", the bare LastName or the CollectiveName.
func authors(list *AuthorList) []string {
	if list == nil {
		return nil
	}
	names := make([]string, 0, len(list.Authors))
	for _, a := range list.Authors {
		if a.ValidYN == "N" {
			continue
		}
		var name string
		switch {
		case a.LastName != "" && a.ForeName != "":
			name = a.ForeName + " " + a.LastName
		case a.LastName != "" && a.Initials != "":
			name = a.Initials + " " + a.LastName
		case a.LastName != "":
			name = a.LastName
		default:
			name = a.CollectiveName
		}
		names = append(names, name)
	}
	return normalize.Authors(names)
}

// abstract joins structured sections as "LABEL: text".
func abstract(ab *Abstract) *string {
	if ab == nil {
		return nil
	}
	parts := make([]string, 0, len(ab.Texts))
	for _, t := range ab.Texts {
		text := normalize.CleanText(t.Value)
		if text == "" {
			continue
		}
		if t.Label != "" {
			text = t.Label + ": " + text
		}
		parts = append(parts, text)
	}
	return domain.StringPtr(strings.Join(parts, " "))
}

func journal(j Journal) *string {
	if t := normalize.Text(j.Title); t != nil {
		return t
	}
	return normalize.Text(j.ISOAbbreviation)
}

// publicationDate prefers the complete electronic ArticleDate. The issue
// PubDate is used otherwise and only yields a date when it is complete.
func publicationDate(a Article) (*time.Time, int) {
	for _, ad := range a.ArticleDates {
		if d, y := normalize.DateFromParts(ad.Year, ad.Month, ad.Day); d != nil {
			return d, y
		}
	}

	pd := a.Journal.JournalIssue.PubDate
	if pd.Year != "" {
		return normalize.DateFromParts(pd.Year, pd.Month, pd.Day)
	}
	if pd.MedlineDate != "" {
		return normalize.ParseDate(pd.MedlineDate)
	}
	return nil, 0
}

func meshTerms(list *MeshHeadingList) []string {
	if list == nil {
		return nil
	}
	terms := make([]string, 0, len(list.Headings))
	for _, h := range list.Headings {
		terms = append(terms, h.Descriptor)
	}
	return normalize.Terms(terms)
}

func keywords(lists []KeywordList) []string {
	var terms []string
	for _, l := range lists {
		terms = append(terms, l.Keywords...)
	}
	return normalize.Terms(terms)
}
