package httpserver

import (
	"time"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/harvest"
	"github.com/helixir/disease-literature-harvester/internal/repository"
)

// statusStored marks a run read back from the database rather than memory.
const statusStored = "stored"

type startHarvestResponse struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	StatusURL string    `json:"status_url"`
}

type harvestStatusResponse struct {
	RunID            string                     `json:"run_id"`
	Status           string                     `json:"status"`
	Query            domain.Query               `json:"query"`
	StartedAt        time.Time                  `json:"started_at"`
	FinishedAt       *time.Time                 `json:"finished_at,omitempty"`
	Duration         string                     `json:"duration,omitempty"`
	CanonicalRecords int                        `json:"canonical_records"`
	DuplicatesMerged int                        `json:"duplicates_merged"`
	PerSourceCounts  map[domain.SourceID]int    `json:"per_source_counts,omitempty"`
	PerSourceErrors  map[domain.SourceID]string `json:"per_source_errors,omitempty"`
	Sources          []domain.SourceReport      `json:"sources,omitempty"`
	Error            string                     `json:"error,omitempty"`
}

type listHarvestsResponse struct {
	Harvests   []harvestStatusResponse `json:"harvests"`
	TotalCount int                     `json:"total_count"`
}

type storedRunResponse struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Cancelled   bool      `json:"cancelled"`
	RecordCount int       `json:"record_count"`
}

type listStoredRunsResponse struct {
	Runs          []storedRunResponse `json:"runs"`
	NextPageToken string              `json:"next_page_token,omitempty"`
	TotalCount    int                 `json:"total_count"`
}

type cancelHarvestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type diseaseResponse struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	SearchTerms []string `json:"search_terms"`
	MeshTerms   []string `json:"mesh_terms"`
	ICDCodes    []string `json:"icd_codes"`
	Synonyms    []string `json:"synonyms"`
}

type sourceResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Converter functions

func runStateToResponse(st harvest.RunState) harvestStatusResponse {
	resp := harvestStatusResponse{
		RunID:            st.RunID,
		Status:           string(st.Status),
		Query:            st.Query,
		StartedAt:        st.StartedAt,
		FinishedAt:       st.FinishedAt,
		CanonicalRecords: st.Records,
		DuplicatesMerged: st.Duplicates,
		Error:            st.Error,
	}
	if st.FinishedAt != nil {
		resp.Duration = st.FinishedAt.Sub(st.StartedAt).String()
	}
	return resp
}

// withCorpus adds the sealed metadata of a finished run.
func withCorpus(resp harvestStatusResponse, c *domain.Corpus) harvestStatusResponse {
	resp.PerSourceCounts = c.Metadata.PerSourceCounts
	resp.PerSourceErrors = c.Metadata.PerSourceErrors
	resp.Sources = c.Metadata.Sources
	resp.Duration = c.Metadata.Elapsed.String()
	return resp
}

func storedRunToStatusResponse(m *domain.RunMetadata, records int) harvestStatusResponse {
	finished := m.FinishedAt
	return harvestStatusResponse{
		RunID:            m.RunID,
		Status:           statusStored,
		Query:            m.Query,
		StartedAt:        m.StartedAt,
		FinishedAt:       &finished,
		Duration:         m.Elapsed.String(),
		CanonicalRecords: records,
		PerSourceCounts:  m.PerSourceCounts,
		PerSourceErrors:  m.PerSourceErrors,
		Sources:          m.Sources,
	}
}

func storedRunToResponse(r repository.RunSummary) storedRunResponse {
	return storedRunResponse{
		RunID:       r.RunID,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Cancelled:   r.Cancelled,
		RecordCount: r.RecordCount,
	}
}

func diseaseToResponse(p domain.DiseaseProfile) diseaseResponse {
	return diseaseResponse{
		Key:         string(p.Key),
		Name:        p.Name,
		SearchTerms: p.SearchTerms,
		MeshTerms:   p.MeshTerms,
		ICDCodes:    p.ICDCodes,
		Synonyms:    p.Synonyms,
	}
}
