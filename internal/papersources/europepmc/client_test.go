package europepmc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/papersources"
)

const searchPageJSON = `{
	"version": "6.9",
	"hitCount": 3,
	"nextCursorMark": "AoIIP4AAACgzNjAwMDAwMg==",
	"request": {"queryString": "lupus", "resultType": "core", "cursorMark": "*", "pageSize": 2},
	"resultList": {
		"result": [
			{
				"id": "36000001",
				"source": "MED",
				"pmid": "36000001",
				"doi": "10.1093/ECCO-JCC/JJAC123",
				"title": "Role of <i>NOD2</i> variants in paediatric Crohn's disease.",
				"authorString": "Smith JA, Nguyen T.",
				"authorList": {"author": [
					{"fullName": "Smith JA", "firstName": "Jane A", "lastName": "Smith", "initials": "JA"},
					{"fullName": "Nguyen T", "lastName": "Nguyen", "initials": "T"}
				]},
				"journalInfo": {"journal": {"title": "Journal of Crohn's & colitis", "isoabbreviation": "J Crohns Colitis"}},
				"pubYear": "2023",
				"abstractText": "NOD2 is the strongest   genetic risk factor.",
				"firstPublicationDate": "2023-01-09",
				"meshHeadingList": {"meshHeading": [{"descriptorName": "Crohn Disease"}, {"descriptorName": "Child"}]},
				"keywordList": {"keyword": ["NOD2", "NOD2"]}
			},
			{
				"id": "PPR600000",
				"source": "PPR",
				"title": "Interferon signatures in lupus",
				"authorString": "Doe A, Roe B.",
				"journalTitle": "medRxiv",
				"pubYear": "2022",
				"firstPublicationDate": "2022-06"
			}
		]
	}
}`

const lastPageJSON = `{
	"hitCount": 3,
	"nextCursorMark": "AoIIP4AAACgzNjAwMDAwMw==",
	"resultList": {"result": [{"id": "1", "source": "MED", "title": "Last"}]}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL, PageSize: 2, Enabled: true})
}

func TestClient_Metadata(t *testing.T) {
	c := New(Config{Enabled: true})
	assert.Equal(t, domain.SourceEuropePMC, c.SourceID())
	assert.Equal(t, "Europe PMC", c.Name())
	assert.True(t, c.IsEnabled())
	assert.Equal(t, DefaultBaseURL, c.config.BaseURL)
	assert.Equal(t, MaxPageSize, New(Config{PageSize: 5000}).config.PageSize)
}

func TestClient_FetchPage(t *testing.T) {
	ctx := context.Background()

	t.Run("first page uses the initial cursor", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/search", r.URL.Path)
			q := r.URL.Query()
			assert.Equal(t, "*", q.Get("cursorMark"))
			assert.Equal(t, "core", q.Get("resultType"))
			assert.Equal(t, "json", q.Get("format"))
			assert.Equal(t, "2", q.Get("pageSize"))
			assert.Equal(t, `("lupus") AND (FIRST_PDATE:[2021-01-01 TO 2021-12-31])`, q.Get("query"))
			w.Write([]byte(searchPageJSON))
		})

		page, err := c.FetchPage(ctx, papersources.PageRequest{
			Query:   `"lupus"`,
			Disease: domain.DiseaseSystemicLupus,
			DateRange: &domain.DateRange{
				From: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		assert.Equal(t, "AoIIP4AAACgzNjAwMDAwMg==", page.NextToken)
		require.Len(t, page.Records, 2)
		assert.Equal(t, domain.DiseaseSystemicLupus, page.Records[1].Disease)
	})

	t.Run("short page ends the scan", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "AoIIP4AAACgzNjAwMDAwMg==", r.URL.Query().Get("cursorMark"))
			w.Write([]byte(lastPageJSON))
		})

		page, err := c.FetchPage(ctx, papersources.PageRequest{Disease: domain.DiseaseSystemicLupus, Token: "AoIIP4AAACgzNjAwMDAwMg=="})
		require.NoError(t, err)
		assert.Len(t, page.Records, 1)
		assert.Empty(t, page.NextToken)
	})

	t.Run("repeated cursor ends the scan", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(SearchResponse{
				HitCount:       4,
				NextCursorMark: "same",
				ResultList:     ResultList{Result: []Article{{ID: "1", Source: "MED", Title: "a"}, {ID: "2", Source: "MED", Title: "b"}}},
			})
		})

		page, err := c.FetchPage(ctx, papersources.PageRequest{Token: "same"})
		require.NoError(t, err)
		assert.Empty(t, page.NextToken)
	})

	t.Run("empty result is a valid empty page", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"hitCount":0,"nextCursorMark":"*","resultList":{"result":[]}}`))
		})

		page, err := c.FetchPage(ctx, papersources.PageRequest{Disease: domain.DiseaseCrohns})
		require.NoError(t, err)
		assert.Empty(t, page.Records)
		assert.Empty(t, page.NextToken)
	})

	t.Run("server error is retryable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := c.FetchPage(ctx, papersources.PageRequest{Disease: domain.DiseaseCrohns})
		assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
		assert.True(t, domain.IsRetryable(err))
	})
}

func TestNormalize(t *testing.T) {
	var resp SearchResponse
	require.NoError(t, json.Unmarshal([]byte(searchPageJSON), &resp))
	require.Len(t, resp.ResultList.Result, 2)

	t.Run("core result", func(t *testing.T) {
		rec, err := Normalize(domain.RawRecord{SourceID: domain.SourceEuropePMC, Payload: resp.ResultList.Result[0]})
		require.NoError(t, err)
		require.NotNil(t, rec)

		assert.Equal(t, "Role of NOD2 variants in paediatric Crohn's disease.", rec.Title)
		assert.Equal(t, []string{"Jane A Smith", "Nguyen T"}, rec.Authors)
		assert.Equal(t, "NOD2 is the strongest genetic risk factor.", *rec.Abstract)
		assert.Equal(t, "Journal of Crohn's & colitis", *rec.Journal)
		assert.Equal(t, "10.1093/ecco-jcc/jjac123", *rec.DOI)
		assert.Equal(t, "36000001", *rec.PMID)
		assert.Equal(t, "https://europepmc.org/article/MED/36000001", *rec.SourceURL)
		assert.Equal(t, time.Date(2023, 1, 9, 0, 0, 0, 0, time.UTC), *rec.PublicationDate)
		assert.Equal(t, []string{"Crohn Disease", "Child"}, rec.MeshTerms)
		assert.Equal(t, []string{"NOD2"}, rec.Keywords)
	})

	t.Run("preprint with partial date and author string", func(t *testing.T) {
		rec, err := Normalize(domain.RawRecord{SourceID: domain.SourceEuropePMC, Payload: resp.ResultList.Result[1]})
		require.NoError(t, err)
		require.NotNil(t, rec)

		assert.Equal(t, []string{"Doe A", "Roe B"}, rec.Authors)
		assert.Nil(t, rec.PublicationDate)
		assert.Equal(t, 2022, rec.PublicationYear)
		assert.Equal(t, "medRxiv", *rec.Journal)
		assert.Nil(t, rec.DOI)
		assert.Nil(t, rec.Abstract)
		assert.Equal(t, "https://europepmc.org/article/PPR/PPR600000", *rec.SourceURL)
	})

	t.Run("missing title", func(t *testing.T) {
		rec, err := Normalize(domain.RawRecord{Payload: Article{ID: "1"}})
		assert.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("wrong payload", func(t *testing.T) {
		_, err := Normalize(domain.RawRecord{Payload: 42})
		assert.True(t, errors.Is(err, domain.ErrMalformedRecord))
	})
}
