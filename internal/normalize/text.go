package normalize

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// CleanText strips markup (for example the <i> and <sub> tags PubMed and
// Europe PMC embed in titles), decodes entities, removes control
// characters and collapses whitespace.
func CleanText(raw string) string {
	s := raw
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Text is CleanText returning nil when nothing is left.
func Text(raw string) *string {
	if s := CleanText(raw); s != "" {
		return &s
	}
	return nil
}

// Authors cleans each display name and drops empties, keeping order.
func Authors(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if c := CleanText(n); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Terms cleans a keyword list, dropping empties and case-insensitive
// duplicates while keeping first-seen order.
func Terms(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		c := CleanText(t)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// InvertName turns a "Last, First" author name into "First Last".
// Names without exactly one comma are returned cleaned but unchanged.
func InvertName(name string) string {
	name = CleanText(name)
	last, first, ok := strings.Cut(name, ",")
	if !ok || strings.Contains(first, ",") {
		return name
	}
	last, first = strings.TrimSpace(last), strings.TrimSpace(first)
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}
