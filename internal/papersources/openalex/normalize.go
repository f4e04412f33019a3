package openalex

import (
	"sort"
	"strings"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/normalize"
)

const pubmedURLPrefix = "https://pubmed.ncbi.nlm.nih.gov/"

// Normalize maps a Work payload onto the canonical schema.
func Normalize(raw domain.RawRecord) (*domain.NormalizedRecord, error) {
	w, ok := raw.Payload.(Work)
	if !ok {
		return nil, normalize.PayloadError(raw, "openalex.Work")
	}

	title := normalize.CleanText(w.Title)
	if title == "" {
		title = normalize.CleanText(w.DisplayName)
	}
	if title == "" {
		return nil, nil
	}

	names := make([]string, 0, len(w.Authorships))
	for _, a := range w.Authorships {
		name := a.Author.DisplayName
		if name == "" {
			name = a.RawAuthorName
		}
		names = append(names, name)
	}

	doi := normalize.DOI(w.DOI)
	if doi == nil {
		doi = normalize.DOI(w.IDs.DOI)
	}

	rec := &domain.NormalizedRecord{
		Title:    title,
		Authors:  normalize.Authors(names),
		Abstract: domain.StringPtr(ReconstructAbstract(w.AbstractInvertedIndex)),
		DOI:      doi,
		PMID:     normalize.PMID(strings.TrimPrefix(strings.TrimSpace(w.IDs.PMID), pubmedURLPrefix)),
	}
	rec.PublicationDate, rec.PublicationYear = normalize.ParseDate(w.PublicationDate)
	if rec.PublicationYear == 0 {
		rec.PublicationYear = w.PublicationYear
	}

	if loc := w.PrimaryLocation; loc != nil {
		if loc.Source != nil {
			rec.Journal = normalize.Text(loc.Source.DisplayName)
		}
		rec.SourceURL = domain.StringPtr(strings.TrimSpace(loc.LandingPageURL))
	}
	if rec.SourceURL == nil && w.ID != "" {
		rec.SourceURL = domain.StringPtr(w.ID)
	}

	if len(w.Keywords) > 0 {
		kws := make([]string, 0, len(w.Keywords))
		for _, k := range w.Keywords {
			kws = append(kws, k.DisplayName)
		}
		rec.Keywords = normalize.Terms(kws)
	}
	return rec, nil
}

// maxAbstractWords bounds the inverted index size accepted from a payload.
const maxAbstractWords = 100_000

// ReconstructAbstract rebuilds abstract text from the OpenAlex inverted
// index (word to positions). It returns "" for an empty or oversized index.
func ReconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	total := 0
	for _, positions := range index {
		total += len(positions)
	}
	if total > maxAbstractWords {
		return ""
	}

	pairs := make([]posWord, 0, total)
	for word, positions := range index {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].pos != pairs[j].pos {
			return pairs[i].pos < pairs[j].pos
		}
		return pairs[i].word < pairs[j].word
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return normalize.CleanText(strings.Join(words, " "))
}
