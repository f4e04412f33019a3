package normalize

import (
	"regexp"
	"strings"
)

// doiPrefixes are stripped from the front of a DOI, matched case-insensitively.
var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
	"doi:",
}

// doiPattern is the minimal DOI shape: a 10.<registrant>/<suffix>.
var doiPattern = regexp.MustCompile(`^10\.\d+/\S+$`)

// CanonicalDOI returns the lowercase DOI without any URL or "doi:" prefix.
// It returns "" for values that do not look like a DOI.
//
// Both "10.1000/ABC" and "https://doi.org/10.1000/abc" become "10.1000/abc".
func CanonicalDOI(raw string) string {
	doi := strings.ToLower(strings.TrimSpace(raw))
	for stripped := true; stripped; {
		stripped = false
		for _, p := range doiPrefixes {
			if strings.HasPrefix(doi, p) {
				doi = strings.TrimSpace(doi[len(p):])
				stripped = true
			}
		}
	}
	if !doiPattern.MatchString(doi) {
		return ""
	}
	return doi
}

// DOI is CanonicalDOI returning nil for an absent or invalid DOI.
func DOI(raw string) *string {
	if doi := CanonicalDOI(raw); doi != "" {
		return &doi
	}
	return nil
}

// PMID returns a numeric PubMed ID without any "pmid:" prefix, or nil.
func PMID(raw string) *string {
	s := strings.TrimSpace(raw)
	if len(s) >= 5 && strings.EqualFold(s[:5], "pmid:") {
		s = strings.TrimSpace(s[5:])
	}
	if s == "" {
		return nil
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil
		}
	}
	return &s
}
