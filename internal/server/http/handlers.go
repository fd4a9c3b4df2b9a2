package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helixir/paper-search-service/internal/domain"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
	maxBatchPaperIDs   = 100
	maxPaperIDLength   = 256
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// batchSummaryRequest is the JSON body of POST /summaries/batch.
type batchSummaryRequest struct {
	PaperIDs []string `json:"paper_ids" validate:"required,min=1,max=100,dive,required,max=256"`
	Language string   `json:"language"`
}

type batchSummaryResponse struct {
	Summaries []domain.PaperSummary `json:"summaries"`
}

// search handles POST /search.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := s.service.Search(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// getSummary handles GET /papers/{paperID}/summary.
func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	paperID, ok := paperIDParam(w, r)
	if !ok {
		return
	}

	summary, err := s.service.GetSummary(r.Context(), paperID, r.URL.Query().Get("language"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// batchSummaries handles POST /summaries/batch.
func (s *Server) batchSummaries(w http.ResponseWriter, r *http.Request) {
	var req batchSummaryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeDomainError(w, batchValidationError(err))
		return
	}

	summaries, err := s.service.BatchSummaries(r.Context(), req.PaperIDs, req.Language)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batchSummaryResponse{Summaries: summaries})
}

// getTranslations handles GET /papers/{paperID}/translations.
func (s *Server) getTranslations(w http.ResponseWriter, r *http.Request) {
	paperID, ok := paperIDParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	detail, err := s.service.GetTranslations(r.Context(), paperID, q.Get("language"), q.Get("difficulty"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// decodeBody reads a size-limited JSON body into dst, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "failed to read request body")
		return false
	}
	if len(body) > maxRequestBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, codeInvalidRequest, "request body too large")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON request body")
		return false
	}
	return true
}

// paperIDParam extracts and bounds the {paperID} path parameter.
func paperIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	paperID := strings.TrimSpace(chi.URLParam(r, "paperID"))
	if paperID == "" || len(paperID) > maxPaperIDLength {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid paper id")
		return "", false
	}
	return paperID, true
}

func batchValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "max" && fe.Field() == "PaperIDs" {
			return domain.NewValidationError("paper_ids", fmt.Sprintf("at most %d paper ids are allowed", maxBatchPaperIDs))
		}
		return domain.NewValidationError("paper_ids", fmt.Sprintf("failed %q check", fe.Tag()))
	}
	return domain.NewValidationError("paper_ids", err.Error())
}
