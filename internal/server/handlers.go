package server

import (
	"errors"
	"net/http"

	"github.com/ppiankov/consolidator/internal/ingest"
	"github.com/ppiankov/consolidator/internal/model"
	"github.com/ppiankov/consolidator/internal/score"
)

type confidenceRequest struct {
	Item    model.ScoredItem `json:"item"`
	Context score.Context    `json:"context"`
}

type confidenceBatchRequest struct {
	Items   []model.ScoredItem `json:"items"`
	Context score.Context      `json:"context"`
}

type batchItem struct {
	Index  int                     `json:"index"`
	Result *model.ConfidenceResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

type ingestBatchRequest struct {
	Requests []ingest.Request `json:"requests"`
}

func (s *Server) handleConfidence(w http.ResponseWriter, r *http.Request) {
	var req confidenceRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.engine.CalculateConfidence(r.Context(), req.Item, req.Context)
	if err != nil {
		var unknown *score.UnknownStrategyError
		if errors.As(err, &unknown) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleConfidenceBatch(w http.ResponseWriter, r *http.Request) {
	var req confidenceBatchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	results := s.engine.CalculateBatch(r.Context(), req.Items, req.Context)
	out := make([]batchItem, len(results))
	for i, res := range results {
		out[i] = batchItem{Index: res.Index}
		if res.Err != nil {
			out[i].Error = res.Err.Error()
			continue
		}
		out[i].Result = &results[i].Result
	}
	writeJSON(w, http.StatusOK, out)
}

// handleIngest chunks the document content itself when no chunks are sent
// and chunk=true is given; otherwise content is ingested as one unit
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingest.Request
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Chunks) == 0 && r.URL.Query().Get("chunk") == "true" {
		req.Chunks = s.chunker.Split(req.Document)
	}

	report, err := s.engine.IngestDocument(r.Context(), req.Document, req.Chunks, req.Strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var req ingestBatchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.IngestBatch(r.Context(), req.Requests))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.CollectionStats(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type healthResponse struct {
	Status    string `json:"status"`
	Embedding bool   `json:"embedding"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// The process is live even when the provider is not; report both
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Embedding: s.engine.Ready(r.Context())})
}
