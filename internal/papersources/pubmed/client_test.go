package pubmed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/normalize"
	"github.com/helixir/disease-literature-harvester/internal/papersources"
)

const esearchPage1XML = `<?xml version="1.0" encoding="UTF-8" ?>
<!DOCTYPE eSearchResult PUBLIC "-//NLM//DTD esearch 20060628//EN" "https://eutils.ncbi.nlm.nih.gov/eutils/dtd/20060628/esearch.dtd">
<eSearchResult>
	<Count>3</Count>
	<RetMax>2</RetMax>
	<RetStart>0</RetStart>
	<IdList>
		<Id>36000001</Id>
		<Id>36000002</Id>
	</IdList>
</eSearchResult>`

const esearchPage2XML = `<?xml version="1.0" encoding="UTF-8" ?>
<eSearchResult>
	<Count>3</Count>
	<RetMax>2</RetMax>
	<RetStart>2</RetStart>
	<IdList>
		<Id>36000003</Id>
	</IdList>
</eSearchResult>`

const esearchEmptyXML = `<?xml version="1.0" encoding="UTF-8" ?>
<eSearchResult>
	<Count>0</Count>
	<RetMax>0</RetMax>
	<RetStart>0</RetStart>
	<IdList></IdList>
	<ErrorList><PhraseNotFound>zzzz</PhraseNotFound></ErrorList>
</eSearchResult>`

const efetchXML = `<?xml version="1.0" encoding="UTF-8" ?>
<!DOCTYPE PubmedArticleSet PUBLIC "-//NLM//DTD PubMedArticle, 1st January 2019//EN" "https://dtd.nlm.nih.gov/ncbi/pubmed/out/pubmed_190101.dtd">
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation Status="MEDLINE" Owner="NLM">
			<PMID Version="1">36000001</PMID>
			<Article PubModel="Print-Electronic">
				<Journal>
					<ISSN IssnType="Electronic">1876-4479</ISSN>
					<JournalIssue CitedMedium="Internet">
						<Volume>17</Volume>
						<Issue>4</Issue>
						<PubDate><Year>2023</Year><Month>Apr</Month></PubDate>
					</JournalIssue>
					<Title>Journal of Crohn's &amp; colitis</Title>
					<ISOAbbreviation>J Crohns Colitis</ISOAbbreviation>
				</Journal>
				<ArticleTitle>Role of <i>NOD2</i> variants in paediatric Crohn's disease.</ArticleTitle>
				<ELocationID EIdType="pii" ValidYN="Y">jjac123</ELocationID>
				<ELocationID EIdType="doi" ValidYN="Y">10.1093/ECCO-JCC/jjac123</ELocationID>
				<Abstract>
					<AbstractText Label="BACKGROUND" NlmCategory="BACKGROUND">NOD2 is the strongest genetic risk factor.</AbstractText>
					<AbstractText Label="METHODS" NlmCategory="METHODS">We genotyped 400   children.</AbstractText>
				</Abstract>
				<AuthorList CompleteYN="Y">
					<Author ValidYN="Y"><LastName>Smith</LastName><ForeName>Jane A</ForeName><Initials>JA</Initials></Author>
					<Author ValidYN="Y"><LastName>Nguyen</LastName><Initials>T</Initials></Author>
					<Author ValidYN="N"><LastName>Ghost</LastName><ForeName>Invalid</ForeName></Author>
					<Author ValidYN="Y"><CollectiveName>IBD Genetics Consortium</CollectiveName></Author>
				</AuthorList>
				<ArticleDate DateType="Electronic"><Year>2023</Year><Month>01</Month><Day>09</Day></ArticleDate>
			</Article>
			<MeshHeadingList>
				<MeshHeading><DescriptorName UI="D003424" MajorTopicYN="Y">Crohn Disease</DescriptorName></MeshHeading>
				<MeshHeading><DescriptorName UI="D002648" MajorTopicYN="N">Child</DescriptorName></MeshHeading>
			</MeshHeadingList>
			<KeywordList Owner="NOTNLM">
				<Keyword MajorTopicYN="N">NOD2</Keyword>
				<Keyword MajorTopicYN="N">paediatric IBD</Keyword>
			</KeywordList>
		</MedlineCitation>
		<PubmedData>
			<ArticleIdList>
				<ArticleId IdType="pubmed">36000001</ArticleId>
				<ArticleId IdType="doi">10.1093/ecco-jcc/jjac123</ArticleId>
			</ArticleIdList>
		</PubmedData>
	</PubmedArticle>
	<PubmedArticle>
		<MedlineCitation Status="PubMed-not-MEDLINE" Owner="NLM">
			<PMID Version="1">36000002</PMID>
			<Article>
				<Journal>
					<JournalIssue><PubDate><MedlineDate>2022 Nov-Dec</MedlineDate></PubDate></JournalIssue>
					<ISOAbbreviation>Lupus Sci Med</ISOAbbreviation>
				</Journal>
				<ArticleTitle>Type I interferon signature in lupus nephritis</ArticleTitle>
			</Article>
		</MedlineCitation>
		<PubmedData>
			<ArticleIdList>
				<ArticleId IdType="pubmed">36000002</ArticleId>
				<ArticleId IdType="doi">https://doi.org/10.1136/LUPUS-2022-000777</ArticleId>
			</ArticleIdList>
		</PubmedData>
	</PubmedArticle>
</PubmedArticleSet>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL, APIKey: "test-key", PageSize: 2, Enabled: true})
}

func TestClient_Metadata(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, domain.SourcePubMed, c.SourceID())
	assert.Equal(t, "PubMed", c.Name())
	assert.False(t, c.IsEnabled())
	assert.Equal(t, DefaultBaseURL, c.config.BaseURL)
	assert.Equal(t, DefaultPageSize, c.config.PageSize)

	assert.Equal(t, MaxPageSize, New(Config{PageSize: 10000}).config.PageSize)
}

func TestClient_FetchPage(t *testing.T) {
	ctx := context.Background()

	t.Run("first page issues esearch then efetch", func(t *testing.T) {
		var searchQuery, fetchIDs string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
			switch {
			case strings.HasSuffix(r.URL.Path, "/esearch.fcgi"):
				searchQuery = r.URL.RawQuery
				assert.Equal(t, "0", r.URL.Query().Get("retstart"))
				assert.Equal(t, "2", r.URL.Query().Get("retmax"))
				assert.Equal(t, "pdat", r.URL.Query().Get("datetype"))
				assert.Equal(t, "2020/01/01", r.URL.Query().Get("mindate"))
				assert.Equal(t, "2024/12/31", r.URL.Query().Get("maxdate"))
				w.Write([]byte(esearchPage1XML))
			case strings.HasSuffix(r.URL.Path, "/efetch.fcgi"):
				fetchIDs = r.URL.Query().Get("id")
				w.Write([]byte(efetchXML))
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		})

		page, err := c.FetchPage(ctx, papersources.PageRequest{
			Query:   `"crohn's disease"`,
			Disease: domain.DiseaseCrohns,
			DateRange: &domain.DateRange{
				From: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			},
		})
		require.NoError(t, err)

		assert.Contains(t, searchQuery, "term=")
		assert.Equal(t, "36000001,36000002", fetchIDs)
		assert.Equal(t, 3, page.Total)
		assert.Equal(t, "2", page.NextToken)
		require.Len(t, page.Records, 2)
		assert.Equal(t, domain.SourcePubMed, page.Records[0].SourceID)
		assert.Equal(t, domain.DiseaseCrohns, page.Records[0].Disease)
		assert.False(t, page.Records[0].FetchedAt.IsZero())
		_, ok := page.Records[0].Payload.(PubmedArticle)
		assert.True(t, ok)
	})

	t.Run("last page has no next token", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/esearch.fcgi") {
				assert.Equal(t, "2", r.URL.Query().Get("retstart"))
				w.Write([]byte(esearchPage2XML))
				return
			}
			w.Write([]byte(`<PubmedArticleSet></PubmedArticleSet>`))
		})

		page, err := c.FetchPage(ctx, papersources.PageRequest{Disease: domain.DiseaseCrohns, Token: "2"})
		require.NoError(t, err)
		assert.Empty(t, page.NextToken)
	})

	t.Run("no matches is an empty page and skips efetch", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/efetch.fcgi") {
				t.Error("efetch must not be called for an empty search")
			}
			w.Write([]byte(esearchEmptyXML))
		})

		page, err := c.FetchPage(ctx, papersources.PageRequest{Disease: domain.DiseaseCrohns})
		require.NoError(t, err)
		assert.Empty(t, page.Records)
		assert.Empty(t, page.NextToken)
		assert.Equal(t, 0, page.Total)
	})

	t.Run("rate limited", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := c.FetchPage(ctx, papersources.PageRequest{Disease: domain.DiseaseCrohns})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrSourceRateLimited))
		assert.Equal(t, 2*time.Second, domain.RetryAfter(err))
	})

	t.Run("malformed xml", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<eSearchResult><Count>`))
		})

		_, err := c.FetchPage(ctx, papersources.PageRequest{Disease: domain.DiseaseCrohns})
		assert.True(t, errors.Is(err, domain.ErrMalformedResponse))
	})

	t.Run("invalid token", func(t *testing.T) {
		c := New(Config{Enabled: true})
		_, err := c.FetchPage(ctx, papersources.PageRequest{Token: "abc"})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(papersources.PageRequest{Query: `"lupus"`, Disease: domain.DiseaseSystemicLupus})
	assert.True(t, strings.HasPrefix(q, `("lupus") OR `))
	assert.Contains(t, q, `"Lupus Erythematosus, Systemic"[MeSH Terms]`)

	q = BuildQuery(papersources.PageRequest{Disease: domain.DiseaseCrohns})
	assert.Contains(t, q, `"Crohn Disease"[MeSH Terms]`)
	assert.Contains(t, q, `"crohn's disease"`)
}

func fetchArticles(t *testing.T) []PubmedArticle {
	t.Helper()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/esearch.fcgi") {
			w.Write([]byte(esearchPage1XML))
			return
		}
		w.Write([]byte(efetchXML))
	})
	page, err := c.FetchPage(context.Background(), papersources.PageRequest{Disease: domain.DiseaseCrohns})
	require.NoError(t, err)

	out := make([]PubmedArticle, 0, len(page.Records))
	for _, r := range page.Records {
		out = append(out, r.Payload.(PubmedArticle))
	}
	return out
}

func TestNormalize(t *testing.T) {
	articles := fetchArticles(t)
	require.Len(t, articles, 2)

	t.Run("full article", func(t *testing.T) {
		rec, err := Normalize(domain.RawRecord{SourceID: domain.SourcePubMed, Payload: articles[0]})
		require.NoError(t, err)
		require.NotNil(t, rec)

		assert.Equal(t, "Role of NOD2 variants in paediatric Crohn's disease.", rec.Title)
		assert.Equal(t, []string{"Jane A Smith", "T Nguyen", "IBD Genetics Consortium"}, rec.Authors)
		assert.Equal(t, "BACKGROUND: NOD2 is the strongest genetic risk factor. METHODS: We genotyped 400 children.", *rec.Abstract)
		assert.Equal(t, "Journal of Crohn's & colitis", *rec.Journal)
		assert.Equal(t, "10.1093/ecco-jcc/jjac123", *rec.DOI)
		assert.Equal(t, "36000001", *rec.PMID)
		assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/36000001/", *rec.SourceURL)
		require.NotNil(t, rec.PublicationDate)
		assert.Equal(t, time.Date(2023, 1, 9, 0, 0, 0, 0, time.UTC), *rec.PublicationDate)
		assert.Equal(t, 2023, rec.PublicationYear)
		assert.Equal(t, []string{"Crohn Disease", "Child"}, rec.MeshTerms)
		assert.Equal(t, []string{"NOD2", "paediatric IBD"}, rec.Keywords)
	})

	t.Run("sparse article keeps year of a partial date", func(t *testing.T) {
		rec, err := Normalize(domain.RawRecord{SourceID: domain.SourcePubMed, Payload: articles[1]})
		require.NoError(t, err)
		require.NotNil(t, rec)

		assert.Nil(t, rec.PublicationDate)
		assert.Equal(t, 2022, rec.PublicationYear)
		assert.Nil(t, rec.Abstract)
		assert.Equal(t, "Lupus Sci Med", *rec.Journal)
		assert.Equal(t, "10.1136/lupus-2022-000777", *rec.DOI)
		assert.Empty(t, rec.Authors)
	})

	t.Run("missing title is dropped", func(t *testing.T) {
		rec, err := Normalize(domain.RawRecord{SourceID: domain.SourcePubMed, Payload: PubmedArticle{}})
		assert.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("wrong payload type", func(t *testing.T) {
		_, err := Normalize(domain.RawRecord{SourceID: domain.SourcePubMed, Payload: "x"})
		assert.True(t, errors.Is(err, domain.ErrMalformedRecord))
	})

	t.Run("through the dispatcher", func(t *testing.T) {
		d := normalize.NewDispatcher(map[domain.SourceID]normalize.Func{domain.SourcePubMed: Normalize})
		rec, err := d.Normalize(domain.RawRecord{SourceID: domain.SourcePubMed, Disease: domain.DiseaseCrohns, Payload: articles[0]})
		require.NoError(t, err)
		assert.Equal(t, domain.DiseaseCrohns, rec.Disease)
		assert.Equal(t, domain.SourcePubMed, rec.SourceID)
	})
}
