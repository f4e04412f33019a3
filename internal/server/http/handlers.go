package httpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/export"
	"github.com/helixir/disease-literature-harvester/internal/harvest"
	"github.com/helixir/disease-literature-harvester/internal/repository"
)

// Pagination and validation constants.
const (
	defaultPageSize    = 50
	maxPageSize        = 100
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// startHarvest handles POST /harvests. The run executes in the background;
// clients poll the status URL.
func (s *Server) startHarvest(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req harvest.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	runID, err := s.runs.StartHarvest(r.Context(), req)
	if err != nil {
		s.logger.Warn().Err(err).Msg("harvest request rejected")
		writeDomainError(w, err)
		return
	}

	s.logger.Info().Str("run_id", runID).Strs("diseases", req.Diseases).Msg("harvest started")

	w.Header().Set("Location", "/api/v1/harvests/"+runID)
	writeJSON(w, http.StatusAccepted, startHarvestResponse{
		RunID:     runID,
		Status:    string(harvest.RunRunning),
		CreatedAt: time.Now().UTC(),
		StatusURL: "/api/v1/harvests/" + runID,
	})
}

// listHarvests handles GET /harvests: the runs this process knows about.
func (s *Server) listHarvests(w http.ResponseWriter, _ *http.Request) {
	states := s.runs.List()
	resp := listHarvestsResponse{
		Harvests:   make([]harvestStatusResponse, 0, len(states)),
		TotalCount: len(states),
	}
	for _, st := range states {
		resp.Harvests = append(resp.Harvests, runStateToResponse(st))
	}
	writeJSON(w, http.StatusOK, resp)
}

// getHarvestStatus handles GET /harvests/{runID}. Runs unknown to this
// process are looked up in the store.
func (s *Server) getHarvestStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	st, err := s.runs.Status(runID)
	if err == nil {
		resp := runStateToResponse(st)
		if st.Status.IsTerminal() {
			if c, cerr := s.runs.Corpus(runID); cerr == nil {
				resp = withCorpus(resp, c)
			}
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if !errors.Is(err, domain.ErrNotFound) || s.store == nil {
		writeDomainError(w, err)
		return
	}

	c, err := s.store.LoadCorpus(r.Context(), runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, storedRunToStatusResponse(&c.Metadata, c.Len()))
}

// cancelHarvest handles DELETE /harvests/{runID}.
func (s *Server) cancelHarvest(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	if err := s.runs.Cancel(runID); err != nil {
		writeDomainError(w, err)
		return
	}

	st, err := s.runs.Status(runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	message := "cancellation requested"
	if st.Status.IsTerminal() {
		message = "run already finished"
	}
	writeJSON(w, http.StatusOK, cancelHarvestResponse{
		Success: true,
		Message: message,
		Status:  string(st.Status),
	})
}

// exportHarvest handles GET /harvests/{runID}/export?format=csv.
func (s *Server) exportHarvest(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(export.FormatJSON)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	codec, err := export.CodecFor(format)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	c, err := s.corpus(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := codec.Encode(&buf, c); err != nil {
		s.logger.Error().Err(err).Str("format", string(format)).Msg("failed to encode export")
		writeError(w, http.StatusInternalServerError, "failed to encode export")
		return
	}

	filename := export.Filename(c.Metadata.Query, format, c.Metadata.StartedAt)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// getHarvestSummary handles GET /harvests/{runID}/summary.
func (s *Server) getHarvestSummary(w http.ResponseWriter, r *http.Request) {
	c, err := s.corpus(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, export.NewSummary(c))
}

// corpus returns a finished corpus from memory, falling back to the store.
func (s *Server) corpus(ctx context.Context, runID string) (*domain.Corpus, error) {
	c, err := s.runs.Corpus(runID)
	if err == nil || !errors.Is(err, domain.ErrNotFound) || s.store == nil {
		return c, err
	}
	return s.store.LoadCorpus(ctx, runID)
}

// listStoredRuns handles GET /runs: persisted runs, newest first.
func (s *Server) listStoredRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "persistence is disabled")
		return
	}

	limit, offset := parsePaginationParams(r)
	runs, total, err := s.store.ListRuns(r.Context(), repository.RunFilter{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list stored runs")
		writeDomainError(w, err)
		return
	}

	resp := listStoredRunsResponse{
		Runs:          make([]storedRunResponse, 0, len(runs)),
		NextPageToken: encodeHTTPPageToken(offset, limit, int(total)),
		TotalCount:    int(total),
	}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, storedRunToResponse(run))
	}
	writeJSON(w, http.StatusOK, resp)
}

// listDiseases handles GET /diseases.
func (s *Server) listDiseases(w http.ResponseWriter, _ *http.Request) {
	diseases := domain.AllDiseases()
	resp := make([]diseaseResponse, 0, len(diseases))
	for _, d := range diseases {
		if p, ok := d.Profile(); ok {
			resp = append(resp, diseaseToResponse(p))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"diseases": resp})
}

// listSources handles GET /sources.
func (s *Server) listSources(w http.ResponseWriter, _ *http.Request) {
	resp := []sourceResponse{}
	if s.sources != nil {
		for _, a := range s.sources.All() {
			resp = append(resp, sourceResponse{
				ID:      string(a.SourceID()),
				Name:    a.Name(),
				Enabled: a.IsEnabled(),
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": resp})
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrSourceNotRegistered):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrTooManyRuns):
		writeError(w, http.StatusTooManyRequests, "too many active runs")
	case errors.Is(err, domain.ErrRunInProgress):
		writeError(w, http.StatusConflict, "run in progress")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrRunCancelled):
		writeError(w, http.StatusServiceUnavailable, "service is shutting down")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parsePaginationParams extracts page_size and page_token from query parameters.
// It applies default and maximum bounds to the page size.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if pageToken := r.URL.Query().Get("page_token"); pageToken != "" {
		decoded, err := base64.StdEncoding.DecodeString(pageToken)
		if err == nil {
			if parsed, parseErr := strconv.Atoi(string(decoded)); parseErr == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	return limit, offset
}

// encodeHTTPPageToken encodes the next offset as a base64 page token.
// Returns an empty string if there are no more results.
func encodeHTTPPageToken(offset, limit, totalCount int) string {
	nextOffset := offset + limit
	if nextOffset < totalCount {
		return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(nextOffset)))
	}
	return ""
}
