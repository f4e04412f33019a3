package springer

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

const metaJSON = `{
	"apiMessage": "This JSON was provided by Springer Nature",
	"result": [{"total": "3", "start": "1", "pageLength": "2", "recordsDisplayed": "2"}],
	"records": [
		{
			"contentType": "Article",
			"identifier": "doi:10.1007/s00296-022-05100-1",
			"title": "Anti-CCP antibodies in early rheumatoid arthritis",
			"creators": [{"creator": "Okafor, Chidi"}, {"creator": "Berg, Anna"}],
			"publicationName": "Rheumatology International",
			"doi": "10.1007/s00296-022-05100-1",
			"publicationDate": "2022-04-12",
			"onlineDate": "2022-03-30",
			"abstract": {"h1": "Abstract", "p": "Serology was assessed in 200 patients."},
			"url": [
				{"format": "pdf", "platform": "", "value": "https://link.springer.com/content/pdf/10.1007/s00296-022-05100-1.pdf"},
				{"format": "html", "platform": "", "value": "https://link.springer.com/article/10.1007/s00296-022-05100-1"}
			],
			"subjects": ["Rheumatology", "Medicine & Public Health"]
		},
		{
			"identifier": "doi:10.1007/BOOK-1",
			"title": "Lupus: a clinical handbook",
			"creators": [],
			"publicationName": "",
			"doi": "",
			"publicationDate": "",
			"onlineDate": "2021-01-01",
			"abstract": "",
			"url": []
		}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL, APIKey: "sn-key", PageSize: 2, Enabled: true})
}

func TestClient_Metadata(t *testing.T) {
	assert.False(t, New(Config{Enabled: true}).IsEnabled())
	c := New(Config{Enabled: true, APIKey: "k"})
	assert.True(t, c.IsEnabled())
	assert.Equal(t, domain.SourceSpringer, c.SourceID())
	assert.Equal(t, "Springer Nature", c.Name())
}

func TestClient_FetchPage(t *testing.T) {
	ctx := context.Background()

	t.Run("first page", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/meta/v2/json", r.URL.Path)
			assert.Equal(t, "sn-key", r.URL.Query().Get("api_key"))
			assert.Equal(t, "1", r.URL.Query().Get("s"))
			assert.Equal(t, "2", r.URL.Query().Get("p"))
			assert.Contains(t, r.URL.Query().Get("q"), "datefrom:2021-01-01 dateto:2022-12-31")
			w.Write([]byte(metaJSON))
		})

		page, err := c.FetchPage(ctx, papersources.PageRequest{
			Disease: domain.DiseaseRheumatoidArthritis,
			DateRange: &domain.DateRange{
				From: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		assert.Equal(t, "3", page.NextToken)
		assert.Len(t, page.Records, 2)
	})

	t.Run("last page", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "3", r.URL.Query().Get("s"))
			w.Write([]byte(`{"result":[{"total":"3","start":"3","pageLength":"2"}],"records":[{"title":"x"}]}`))
		})

		page, err := c.FetchPage(ctx, papersources.PageRequest{Disease: domain.DiseaseCrohns, Token: "3"})
		require.NoError(t, err)
		assert.Empty(t, page.NextToken)
	})

	t.Run("forbidden key", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})

		_, err := c.FetchPage(ctx, papersources.PageRequest{Disease: domain.DiseaseCrohns})
		assert.True(t, errors.Is(err, domain.ErrSourceAuth))
	})

	t.Run("bad token", func(t *testing.T) {
		_, err := New(Config{}).FetchPage(ctx, papersources.PageRequest{Token: "0"})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestNormalize(t *testing.T) {
	var resp SearchResponse
	require.NoError(t, json.Unmarshal([]byte(metaJSON), &resp))
	require.Len(t, resp.Records, 2)

	t.Run("full record", func(t *testing.T) {
		rec, err := Normalize(domain.RawRecord{SourceID: domain.SourceSpringer, Payload: resp.Records[0]})
		require.NoError(t, err)
		require.NotNil(t, rec)

		assert.Equal(t, []string{"Chidi Okafor", "Anna Berg"}, rec.Authors)
		assert.Equal(t, "Serology was assessed in 200 patients.", *rec.Abstract)
		assert.Equal(t, "Rheumatology International", *rec.Journal)
		assert.Equal(t, "10.1007/s00296-022-05100-1", *rec.DOI)
		assert.Equal(t, time.Date(2022, 4, 12, 0, 0, 0, 0, time.UTC), *rec.PublicationDate)
		assert.Equal(t, "https://link.springer.com/article/10.1007/s00296-022-05100-1", *rec.SourceURL)
		assert.Equal(t, []string{"Rheumatology", "Medicine & Public Health"}, rec.Keywords)
	})

	t.Run("fallbacks", func(t *testing.T) {
		rec, err := Normalize(domain.RawRecord{SourceID: domain.SourceSpringer, Payload: resp.Records[1]})
		require.NoError(t, err)
		require.NotNil(t, rec)

		assert.Equal(t, "10.1007/book-1", *rec.DOI)
		assert.Equal(t, 2021, rec.PublicationYear)
		assert.Nil(t, rec.Abstract)
		assert.Nil(t, rec.Journal)
		assert.Nil(t, rec.SourceURL)
	})
}

func TestAbstractText(t *testing.T) {
	assert.Equal(t, "plain", abstractText("plain"))
	assert.Equal(t, "a b", abstractText(map[string]any{"p": []any{"a", "b"}}))
	assert.Empty(t, abstractText(nil))
}
