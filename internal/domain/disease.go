package domain

import (
	"fmt"
	"strings"
)

// Disease identifies one of the harvested disease topics.
type Disease string

const (
	DiseaseCrohns              Disease = "crohns"
	DiseaseSystemicLupus       Disease = "systemic_lupus"
	DiseaseMultipleSclerosis   Disease = "multiple_sclerosis"
	DiseaseType1Diabetes       Disease = "type1_diabetes"
	DiseaseRheumatoidArthritis Disease = "rheumatoid_arthritis"
)

// DiseaseProfile holds the search vocabulary for a disease.
type DiseaseProfile struct {
	Key         Disease  `json:"key"`
	Name        string   `json:"name"`
	SearchTerms []string `json:"search_terms"`
	MeshTerms   []string `json:"mesh_terms"`
	ICDCodes    []string `json:"icd_codes"`
	Synonyms    []string `json:"synonyms"`
}

var diseaseCatalog = map[Disease]DiseaseProfile{
	DiseaseCrohns: {
		Key:  DiseaseCrohns,
		Name: "Crohn's Disease",
		SearchTerms: []string{
			"crohn's disease", "crohns disease", "inflammatory bowel disease",
			"IBD", "regional ileitis", "terminal ileitis",
		},
		MeshTerms: []string{"Crohn Disease", "Inflammatory Bowel Diseases", "Ileitis"},
		ICDCodes:  []string{"K50", "K50.0", "K50.1", "K50.8", "K50.9"},
		Synonyms:  []string{"regional enteritis", "granulomatous colitis", "granulomatous enteritis"},
	},
	DiseaseSystemicLupus: {
		Key:  DiseaseSystemicLupus,
		Name: "Systemic Lupus Erythematosus",
		SearchTerms: []string{
			"systemic lupus erythematosus", "SLE", "lupus erythematosus",
			"systemic lupus", "lupus nephritis",
		},
		MeshTerms: []string{"Lupus Erythematosus, Systemic", "Lupus Nephritis", "Autoimmune Diseases"},
		ICDCodes:  []string{"M32", "M32.0", "M32.1", "M32.8", "M32.9"},
		Synonyms:  []string{"disseminated lupus erythematosus", "libman-sacks disease"},
	},
	DiseaseMultipleSclerosis: {
		Key:  DiseaseMultipleSclerosis,
		Name: "Multiple Sclerosis",
		SearchTerms: []string{
			"multiple sclerosis", "MS", "disseminated sclerosis",
			"relapsing-remitting multiple sclerosis", "RRMS", "progressive multiple sclerosis",
		},
		MeshTerms: []string{
			"Multiple Sclerosis", "Multiple Sclerosis, Relapsing-Remitting",
			"Multiple Sclerosis, Chronic Progressive", "Demyelinating Diseases",
		},
		ICDCodes: []string{"G35"},
		Synonyms: []string{"sclerosis multiplex", "insular sclerosis"},
	},
	DiseaseType1Diabetes: {
		Key:  DiseaseType1Diabetes,
		Name: "Type 1 Diabetes",
		SearchTerms: []string{
			"type 1 diabetes", "type I diabetes", "T1D", "juvenile diabetes",
			"insulin-dependent diabetes", "IDDM", "autoimmune diabetes",
		},
		MeshTerms: []string{
			"Diabetes Mellitus, Type 1", "Diabetes Mellitus, Insulin-Dependent", "Autoimmune Diseases",
		},
		ICDCodes: []string{
			"E10", "E10.0", "E10.1", "E10.2", "E10.3", "E10.4",
			"E10.5", "E10.6", "E10.7", "E10.8", "E10.9",
		},
		Synonyms: []string{"juvenile-onset diabetes", "brittle diabetes"},
	},
	DiseaseRheumatoidArthritis: {
		Key:  DiseaseRheumatoidArthritis,
		Name: "Rheumatoid Arthritis",
		SearchTerms: []string{
			"rheumatoid arthritis", "RA", "rheumatoid factor", "anti-CCP",
			"inflammatory arthritis", "polyarthritis",
		},
		MeshTerms: []string{"Arthritis, Rheumatoid", "Rheumatoid Factor", "Autoimmune Diseases"},
		ICDCodes: []string{
			"M05", "M06", "M05.0", "M05.1", "M05.2", "M05.3",
			"M05.8", "M05.9", "M06.0", "M06.8", "M06.9",
		},
		Synonyms: []string{"chronic inflammatory arthritis", "proliferative arthritis"},
	},
}

// AllDiseases returns every supported disease in a stable order.
func AllDiseases() []Disease {
	return []Disease{
		DiseaseCrohns,
		DiseaseSystemicLupus,
		DiseaseMultipleSclerosis,
		DiseaseType1Diabetes,
		DiseaseRheumatoidArthritis,
	}
}

// IsValid reports whether d is a known disease.
func (d Disease) IsValid() bool {
	_, ok := diseaseCatalog[d]
	return ok
}

// ParseDisease parses a disease key.
func ParseDisease(s string) (Disease, error) {
	d := Disease(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", NewValidationError("disease", fmt.Sprintf("unknown disease %q", s))
	}
	return d, nil
}

// Profile returns the search vocabulary for d. The returned slices are copies.
func (d Disease) Profile() (DiseaseProfile, bool) {
	p, ok := diseaseCatalog[d]
	if !ok {
		return DiseaseProfile{}, false
	}
	p.SearchTerms = append([]string(nil), p.SearchTerms...)
	p.MeshTerms = append([]string(nil), p.MeshTerms...)
	p.ICDCodes = append([]string(nil), p.ICDCodes...)
	p.Synonyms = append([]string(nil), p.Synonyms...)
	return p, true
}

// Name returns the formal disease name, or the key if unknown.
func (d Disease) Name() string {
	if p, ok := diseaseCatalog[d]; ok {
		return p.Name
	}
	return string(d)
}

// Terms returns search terms followed by synonyms.
func (d Disease) Terms() []string {
	p, ok := diseaseCatalog[d]
	if !ok {
		return nil
	}
	terms := make([]string, 0, len(p.SearchTerms)+len(p.Synonyms))
	terms = append(terms, p.SearchTerms...)
	return append(terms, p.Synonyms...)
}

// SearchQuery joins the quoted search terms and synonyms with OR.
func (d Disease) SearchQuery() string {
	return JoinTerms(d.Terms(), "OR")
}

// JoinTerms quotes each term and joins them with the given boolean operator.
func JoinTerms(terms []string, operator string) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " "+operator+" ")
}
