package corpus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/disease-literature-harvester/internal/dedup"
	"github.com/helixir/disease-literature-harvester/internal/domain"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func paper(source domain.SourceID, title, doi string, published *time.Time) domain.NormalizedRecord {
	return domain.NormalizedRecord{
		Title:           title,
		Authors:         []string{"Jane Smith"},
		DOI:             domain.StringPtr(doi),
		PublicationDate: published,
		SourceID:        source,
		Disease:         domain.DiseaseCrohns,
	}
}

func testQuery() domain.Query {
	return domain.Query{
		Diseases:            []domain.Disease{domain.DiseaseCrohns},
		Sources:             []domain.SourceID{domain.SourcePubMed, domain.SourceOpenAlex},
		MaxResultsPerSource: 10,
	}
}

func fixedClock(times ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := times[min(i, len(times)-1)]
		i++
		return t
	}
}

func TestAggregator_RunID(t *testing.T) {
	a := New(testQuery(), dedup.Config{})
	_, err := uuid.Parse(a.RunID())
	assert.NoError(t, err)
	assert.NotEqual(t, a.RunID(), New(testQuery(), dedup.Config{}).RunID())
}

func TestAggregator_AddAndFinish(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	a := newAggregator(testQuery(), dedup.Config{}, fixedClock(start, start.Add(90*time.Second)))

	require.NoError(t, a.Add(paper(domain.SourcePubMed, "Alpha", "10.1/a", date(2023, 1, 1))))
	require.NoError(t, a.Add(paper(domain.SourceOpenAlex, "Alpha", "10.1/A", date(2023, 1, 1))))
	require.NoError(t, a.Add(paper(domain.SourceOpenAlex, "Beta", "10.1/b", nil)))

	require.NoError(t, a.Report(domain.SourceReport{Source: domain.SourceOpenAlex, Disease: domain.DiseaseCrohns, Status: domain.StreamCompleted, Dropped: 2, Malformed: 1}))
	require.NoError(t, a.Report(domain.SourceReport{Source: domain.SourcePubMed, Disease: domain.DiseaseCrohns, Status: domain.StreamFailed, Error: "source authentication failed", ErrorKind: "auth"}))
	require.NoError(t, a.Report(domain.SourceReport{Source: domain.SourcePubMed, Disease: domain.DiseaseSystemicLupus, Status: domain.StreamFailed, Error: "second"}))

	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 1, a.Duplicates())

	c, err := a.Finish(false)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	assert.Contains(t, c.Records, "10.1/a")
	assert.Contains(t, c.Records, "10.1/b")

	md := c.Metadata
	assert.Equal(t, a.RunID(), md.RunID)
	assert.Equal(t, start, md.StartedAt)
	assert.Equal(t, 90*time.Second, md.Elapsed)
	assert.Equal(t, map[domain.SourceID]int{domain.SourcePubMed: 1, domain.SourceOpenAlex: 2}, md.PerSourceCounts)
	assert.Equal(t, map[domain.SourceID]string{domain.SourcePubMed: "source authentication failed"}, md.PerSourceErrors)
	assert.Equal(t, 2, md.Dropped)
	assert.Equal(t, 1, md.Malformed)
	assert.False(t, md.Cancelled)

	require.Len(t, md.Sources, 3)
	assert.Equal(t, domain.SourceOpenAlex, md.Sources[0].Source)
	assert.Equal(t, domain.DiseaseCrohns, md.Sources[1].Disease)
	assert.Equal(t, domain.DiseaseSystemicLupus, md.Sources[2].Disease)
}

func TestAggregator_Sealed(t *testing.T) {
	a := New(testQuery(), dedup.Config{})
	require.NoError(t, a.Add(paper(domain.SourcePubMed, "Alpha", "10.1/a", nil)))

	c, err := a.Finish(true)
	require.NoError(t, err)
	assert.True(t, c.Metadata.Cancelled)

	assert.True(t, errors.Is(a.Add(paper(domain.SourcePubMed, "Beta", "10.1/b", nil)), ErrSealed))
	assert.True(t, errors.Is(a.Report(domain.SourceReport{}), ErrSealed))
	_, err = a.Finish(false)
	assert.True(t, errors.Is(err, ErrSealed))

	// The sealed corpus is unaffected and reads still work.
	assert.Equal(t, 1, c.Len())
	assert.Len(t, a.Snapshot(), 1)
}

func TestAggregator_FinishKeepsHashCollisions(t *testing.T) {
	a := New(testQuery(), dedup.Config{})
	for _, pmid := range []string{"111", "222"} {
		rec := paper(domain.SourcePubMed, "Erratum", "", date(2023, 3, 1))
		rec.Authors = nil
		rec.PMID = domain.StringPtr(pmid)
		require.NoError(t, a.Add(rec))
	}

	c, err := a.Finish(false)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	contributing := 0
	for _, rec := range c.Records {
		contributing += len(rec.Contributing)
	}
	assert.Equal(t, 2, contributing)
}

func TestAggregator_RejectsUntitled(t *testing.T) {
	a := New(testQuery(), dedup.Config{})
	err := a.Add(domain.NormalizedRecord{SourceID: domain.SourcePubMed})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Equal(t, 0, a.Len())
}

func TestAggregator_Snapshot(t *testing.T) {
	a := New(testQuery(), dedup.Config{})
	require.NoError(t, a.Add(paper(domain.SourcePubMed, "Old", "10.1/old", date(2020, 5, 1))))
	require.NoError(t, a.Add(paper(domain.SourcePubMed, "Undated two", "10.1/z", nil)))
	require.NoError(t, a.Add(paper(domain.SourcePubMed, "New", "10.1/new", date(2024, 2, 1))))
	require.NoError(t, a.Add(paper(domain.SourcePubMed, "Undated one", "10.1/c", nil)))
	require.NoError(t, a.Add(paper(domain.SourcePubMed, "Same day", "10.1/b", date(2024, 2, 1))))

	var keys []string
	for _, rec := range a.Snapshot() {
		keys = append(keys, rec.IdentityKey)
	}
	assert.Equal(t, []string{"10.1/b", "10.1/new", "10.1/old", "10.1/c", "10.1/z"}, keys)

	// Snapshots are copies.
	snap := a.Snapshot()
	snap[0].Best.Title = "changed"
	assert.Equal(t, "Same day", a.Snapshot()[0].Best.Title)
}

func TestAggregator_Concurrent(t *testing.T) {
	a := New(testQuery(), dedup.Config{})

	var wg sync.WaitGroup
	for _, source := range []domain.SourceID{domain.SourcePubMed, domain.SourceOpenAlex, domain.SourceCore} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, doi := range []string{"10.1/a", "10.1/b", "10.1/c", "10.1/d"} {
				assert.NoError(t, a.Add(paper(source, "Paper "+doi, doi, nil)))
			}
			assert.NoError(t, a.Report(domain.SourceReport{Source: source, Status: domain.StreamCompleted}))
		}()
	}
	wg.Wait()

	c, err := a.Finish(false)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, 8, a.Duplicates())
	assert.Len(t, c.Metadata.Sources, 3)
	for _, rec := range c.Records {
		assert.Len(t, rec.Contributing, 3)
	}
}
