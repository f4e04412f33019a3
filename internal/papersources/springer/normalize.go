package springer

import (
	"strings"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/normalize"
)

// Normalize maps a Record payload onto the canonical schema.
func Normalize(raw domain.RawRecord) (*domain.NormalizedRecord, error) {
	r, ok := raw.Payload.(Record)
	if !ok {
		return nil, normalize.PayloadError(raw, "springer.Record")
	}

	title := normalize.CleanText(r.Title)
	if title == "" {
		return nil, nil
	}

	names := make([]string, 0, len(r.Creators))
	for _, c := range r.Creators {
		names = append(names, normalize.InvertName(c.Creator))
	}

	rec := &domain.NormalizedRecord{
		Title:    title,
		Authors:  normalize.Authors(names),
		Abstract: normalize.Text(abstractText(r.Abstract)),
		Journal:  normalize.Text(r.PublicationName),
		DOI:      normalize.DOI(r.DOI),
		Keywords: normalize.Terms(r.Subjects),
	}
	if rec.DOI == nil {
		rec.DOI = normalize.DOI(r.Identifier)
	}

	rec.PublicationDate, rec.PublicationYear = normalize.ParseDate(r.PublicationDate)
	if rec.PublicationYear == 0 {
		rec.PublicationDate, rec.PublicationYear = normalize.ParseDate(r.OnlineDate)
	}

	var landing, pdf string
	for _, u := range r.URL {
		switch {
		case strings.EqualFold(u.Format, "pdf"):
			if pdf == "" {
				pdf = u.Value
			}
		case landing == "":
			landing = u.Value
		}
	}
	if landing == "" {
		landing = pdf
	}
	rec.SourceURL = domain.StringPtr(landing)
	return rec, nil
}

// abstractText flattens the abstract, which is either a string or an
// object of headed paragraphs such as {"h1": "Abstract", "p": "..."}.
func abstractText(v any) string {
	switch a := v.(type) {
	case string:
		return a
	case map[string]any:
		return abstractText(a["p"])
	case []any:
		parts := make([]string, 0, len(a))
		for _, p := range a {
			if s := abstractText(p); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}
