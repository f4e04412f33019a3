package dedup

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/normalize"
)

// DefaultTitleThreshold is the minimum title overlap for a fuzzy match.
const DefaultTitleThreshold = 0.9

// Config holds the configuration for a Deduplicator.
type Config struct {
	// Priority orders sources when choosing the best record. Nil uses DefaultPriority.
	Priority []domain.SourceID

	// TitleThreshold defaults to DefaultTitleThreshold.
	TitleThreshold float64
}

// AddResult describes what happened to one added record.
type AddResult struct {
	// Duplicate is true when the record joined at least one existing group.
	Duplicate bool

	// Merged is the number of previously separate groups the record joined
	// together, beyond the first.
	Merged int
}

// member is a contributing record with its precomputed match keys.
type member struct {
	rec     domain.NormalizedRecord
	doi     string
	pmid    string
	tokens  tokenSet
	surname string
	year    int
}

func (m *member) blockKey() string {
	if m.surname == "" {
		return ""
	}
	return m.surname + "|" + strconv.Itoa(m.year)
}

type group struct {
	members []*member
}

// Deduplicator incrementally groups records that describe the same paper.
//
// Two records match when, in order, their DOIs are equal, their PMIDs are
// equal, or their normalized titles overlap by at least TitleThreshold with
// equal first-author surname and equal publication year (or both unknown).
// The fuzzy rule never merges two records whose DOIs are both set and differ.
// A record is compared with every member of every group, and a record that
// matches several groups merges them, so the result is the connected
// components of the match relation regardless of arrival order.
//
// It is safe for concurrent use.
type Deduplicator struct {
	mu        sync.Mutex
	threshold float64
	ranking   ranking

	nextID  int
	groups  map[int]*group
	byDOI   map[string]int
	byPMID  map[string]int
	byBlock map[string]map[int]struct{}
	added   int
}

// New creates a Deduplicator.
func New(cfg Config) *Deduplicator {
	if cfg.Priority == nil {
		cfg.Priority = DefaultPriority
	}
	if cfg.TitleThreshold <= 0 {
		cfg.TitleThreshold = DefaultTitleThreshold
	}
	return &Deduplicator{
		threshold: cfg.TitleThreshold,
		ranking:   newRanking(cfg.Priority),
		groups:    make(map[int]*group),
		byDOI:     make(map[string]int),
		byPMID:    make(map[string]int),
		byBlock:   make(map[string]map[int]struct{}),
	}
}

// Add places rec into exactly one group.
func (d *Deduplicator) Add(rec domain.NormalizedRecord) AddResult {
	m := newMember(rec)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.added++
	matched := d.matchingGroups(m)

	var target int
	if len(matched) == 0 {
		target = d.nextID
		d.nextID++
		d.groups[target] = &group{}
	} else {
		target = matched[0]
		for _, id := range matched[1:] {
			d.absorb(target, id)
		}
	}
	d.attach(target, m)

	return AddResult{Duplicate: len(matched) > 0, Merged: max(len(matched)-1, 0)}
}

// Len returns the number of canonical records.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.groups)
}

// Added returns the number of records passed to Add.
func (d *Deduplicator) Added() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.added
}

// Records materializes the canonical records sorted by identity key.
// Contributing lists are ordered best first. Every record has a distinct
// identity key.
func (d *Deduplicator) Records() []domain.CanonicalRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]domain.CanonicalRecord, 0, len(d.groups))
	for _, g := range d.groups {
		out = append(out, d.canonical(g))
	}
	slices.SortFunc(out, func(a, b domain.CanonicalRecord) int {
		return cmp.Or(
			cmp.Compare(a.IdentityKey, b.IdentityKey),
			compareFields(a.Best, b.Best),
			slices.CompareFunc(a.Contributing, b.Contributing, compareFields),
		)
	})
	disambiguate(out)
	return out
}

// disambiguate gives groups that share a content hash distinct keys. Groups
// without a DOI can hash alike when they were kept apart, e.g. author-less
// errata with the same title and year but different PMIDs. The first record
// in sorted order keeps the hash and later ones get "-2", "-3" and so on.
func disambiguate(records []domain.CanonicalRecord) {
	seen := make(map[string]int, len(records))
	for i := range records {
		key := records[i].IdentityKey
		seen[key]++
		if n := seen[key]; n > 1 {
			records[i].IdentityKey = key + "-" + strconv.Itoa(n)
		}
	}
}

// matchingGroups returns the distinct groups with at least one member
// matching m, smallest ID first.
func (d *Deduplicator) matchingGroups(m *member) []int {
	found := make(map[int]struct{})
	if m.doi != "" {
		if id, ok := d.byDOI[m.doi]; ok {
			found[id] = struct{}{}
		}
	}
	if m.pmid != "" {
		if id, ok := d.byPMID[m.pmid]; ok {
			found[id] = struct{}{}
		}
	}
	if key := m.blockKey(); key != "" {
		for id := range d.byBlock[key] {
			if _, ok := found[id]; ok {
				continue
			}
			for _, other := range d.groups[id].members {
				if d.fuzzyMatch(m, other) {
					found[id] = struct{}{}
					break
				}
			}
		}
	}

	ids := make([]int, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (d *Deduplicator) fuzzyMatch(a, b *member) bool {
	if a.doi != "" && b.doi != "" && a.doi != b.doi {
		return false
	}
	if a.surname == "" || a.surname != b.surname || a.year != b.year {
		return false
	}
	return overlap(a.tokens, b.tokens) >= d.threshold
}

func (d *Deduplicator) attach(id int, m *member) {
	d.groups[id].members = append(d.groups[id].members, m)
	d.index(id, m)
}

func (d *Deduplicator) index(id int, m *member) {
	if m.doi != "" {
		d.byDOI[m.doi] = id
	}
	if m.pmid != "" {
		d.byPMID[m.pmid] = id
	}
	if key := m.blockKey(); key != "" {
		block, ok := d.byBlock[key]
		if !ok {
			block = make(map[int]struct{})
			d.byBlock[key] = block
		}
		block[id] = struct{}{}
	}
}

// absorb moves every member of group src into group dst.
func (d *Deduplicator) absorb(dst, src int) {
	g := d.groups[src]
	delete(d.groups, src)
	for _, m := range g.members {
		if key := m.blockKey(); key != "" {
			delete(d.byBlock[key], src)
		}
		d.attach(dst, m)
	}
}

func (d *Deduplicator) canonical(g *group) domain.CanonicalRecord {
	contributing := make([]domain.NormalizedRecord, len(g.members))
	for i, m := range g.members {
		contributing[i] = m.rec
	}
	d.ranking.sort(contributing)

	best := contributing[0]
	return domain.CanonicalRecord{
		IdentityKey:  identityKey(best, g.members),
		Best:         best,
		Contributing: contributing,
		Diseases:     diseases(contributing),
	}
}

// identityKey is the smallest contributing DOI, or a content hash of the
// best record when no member has a DOI.
func identityKey(best domain.NormalizedRecord, members []*member) string {
	var doi string
	for _, m := range members {
		if m.doi != "" && (doi == "" || m.doi < doi) {
			doi = m.doi
		}
	}
	if doi != "" {
		return doi
	}
	return ContentKey(best)
}

// ContentKey returns "hash:" followed by the SHA-256 of the normalized
// title, first-author surname and publication year.
func ContentKey(rec domain.NormalizedRecord) string {
	sum := sha256.Sum256([]byte(NormalizeTitle(rec.Title) + "\x00" + Surname(rec.FirstAuthor()) + "\x00" + strconv.Itoa(rec.Year())))
	return "hash:" + hex.EncodeToString(sum[:])
}

func diseases(records []domain.NormalizedRecord) []domain.Disease {
	var out []domain.Disease
	for _, r := range records {
		if r.Disease != "" && !slices.Contains(out, r.Disease) {
			out = append(out, r.Disease)
		}
	}
	slices.Sort(out)
	return out
}

func newMember(rec domain.NormalizedRecord) *member {
	doi := normalize.CanonicalDOI(domain.Deref(rec.DOI))
	if doi == "" {
		doi = strings.ToLower(strings.TrimSpace(domain.Deref(rec.DOI)))
	}
	return &member{
		rec:     rec,
		doi:     doi,
		pmid:    domain.Deref(rec.PMID),
		tokens:  titleTokens(NormalizeTitle(rec.Title)),
		surname: Surname(rec.FirstAuthor()),
		year:    rec.Year(),
	}
}
