package dedup

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// DefaultPriority is the source order used to choose the best record of a
// duplicate group. Earlier sources win.
var DefaultPriority = []domain.SourceID{
	domain.SourcePubMed,
	domain.SourceEuropePMC,
	domain.SourceOpenAlex,
	domain.SourceCore,
	domain.SourceSpringer,
	domain.SourceBioRxiv,
}

// ranking orders records of one duplicate group. The first record after
// sorting is the best one.
type ranking map[domain.SourceID]int

func newRanking(priority []domain.SourceID) ranking {
	r := make(ranking, len(priority))
	for i, id := range priority {
		if _, ok := r[id]; !ok {
			r[id] = i
		}
	}
	return r
}

func (r ranking) rank(id domain.SourceID) int {
	if i, ok := r[id]; ok {
		return i
	}
	return len(r)
}

// compare orders by source priority, then records with an abstract first,
// then field by field so that the order never depends on arrival.
func (r ranking) compare(a, b domain.NormalizedRecord) int {
	if c := cmp.Compare(r.rank(a.SourceID), r.rank(b.SourceID)); c != 0 {
		return c
	}
	if a.HasAbstract() != b.HasAbstract() {
		if a.HasAbstract() {
			return -1
		}
		return 1
	}
	return compareFields(a, b)
}

func (r ranking) sort(records []domain.NormalizedRecord) {
	slices.SortStableFunc(records, r.compare)
}

func compareFields(a, b domain.NormalizedRecord) int {
	return cmp.Or(
		cmp.Compare(a.SourceID, b.SourceID),
		cmp.Compare(a.Disease, b.Disease),
		cmp.Compare(domain.Deref(a.DOI), domain.Deref(b.DOI)),
		cmp.Compare(domain.Deref(a.PMID), domain.Deref(b.PMID)),
		cmp.Compare(a.Title, b.Title),
		cmp.Compare(a.Year(), b.Year()),
		compareDates(a.PublicationDate, b.PublicationDate),
		cmp.Compare(domain.Deref(a.Journal), domain.Deref(b.Journal)),
		cmp.Compare(domain.Deref(a.SourceURL), domain.Deref(b.SourceURL)),
		cmp.Compare(strings.Join(a.Authors, "\x00"), strings.Join(b.Authors, "\x00")),
		cmp.Compare(domain.Deref(a.Abstract), domain.Deref(b.Abstract)),
		slices.Compare(a.Keywords, b.Keywords),
		slices.Compare(a.MeshTerms, b.MeshTerms),
	)
}

// compareDates orders nil before any date.
func compareDates(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
