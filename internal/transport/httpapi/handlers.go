package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/usecase/batch"
)

const maxBodyBytes = 64 << 10

type createBatchRequest struct {
	Formula     string `json:"formula"`
	Deck        string `json:"deck"`
	BatchNumber string `json:"batch_number"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type decisionRequest struct {
	Result string `json:"result"`
	Notes  string `json:"notes"`
}

type reassignRequest struct {
	Kind    string `json:"kind"`
	ActorID string `json:"actor_id"`
}

type createdResponse struct {
	ID string `json:"id"`
}

// decodeBody reads an optional JSON body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &domainbatch.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func (s *Server) createBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	batchID, err := s.batches.CreateBatch(r.Context(), batch.CreateBatchInput{
		Actor:       actorFrom(r.Context()),
		Formula:     req.Formula,
		Deck:        req.Deck,
		BatchNumber: req.BatchNumber,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: batchID})
}

func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	detail, err := s.batches.GetBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) listView(w http.ResponseWriter, r *http.Request) {
	view, err := parseBatchView(chi.URLParam(r, "view"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.batches.ListView(r.Context(), view)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"view": view, "batches": items})
}

func (s *Server) listSamples(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	samples, err := s.batches.ListSamples(r.Context(), batchID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batch_id": batchID, "samples": samples})
}

func (s *Server) submitSample(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sampleID, err := s.batches.SubmitSample(r.Context(), batch.SubmitSampleInput{
		Actor:      actorFrom(r.Context()),
		BatchID:    chi.URLParam(r, "batchID"),
		Notes:      req.Notes,
		RequestKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: sampleID})
}

func (s *Server) decideSample(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := s.batches.DecideSample(r.Context(), batch.DecideSampleInput{
		Actor:      actorFrom(r.Context()),
		BatchID:    chi.URLParam(r, "batchID"),
		SampleID:   chi.URLParam(r, "sampleID"),
		Result:     req.Result,
		Notes:      req.Notes,
		RequestKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request) {
	err := s.batches.ClaimForTesting(r.Context(), batch.ClaimInput{
		Actor:   actorFrom(r.Context()),
		BatchID: chi.URLParam(r, "batchID"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) hold(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	err := s.batches.SetOnHold(r.Context(), batch.HoldInput{
		Actor:   actorFrom(r.Context()),
		BatchID: chi.URLParam(r, "batchID"),
		Notes:   req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	err := s.batches.RejectBatch(r.Context(), batch.RejectInput{
		Actor:   actorFrom(r.Context()),
		BatchID: chi.URLParam(r, "batchID"),
		Notes:   req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reassign(w http.ResponseWriter, r *http.Request) {
	var req reassignRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	input := batch.ReassignInput{
		Actor:      actorFrom(r.Context()),
		BatchID:    chi.URLParam(r, "batchID"),
		NewActorID: req.ActorID,
	}
	var err error
	switch strings.ToLower(strings.TrimSpace(req.Kind)) {
	case "processor":
		err = s.batches.ReassignProcessor(r.Context(), input)
	case "qa":
		err = s.batches.ReassignQA(r.Context(), input)
	default:
		err = &domainbatch.ValidationError{Field: "kind", Reason: "must be processor or qa"}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseBatchView accepts the batch list views; samples are per batch.
func parseBatchView(raw string) (domainbatch.View, error) {
	view, err := domainbatch.ParseView(raw)
	if err != nil {
		return "", err
	}
	if view == domainbatch.ViewSamples {
		return "", &domainbatch.ValidationError{Field: "view", Reason: "must be active, qa-queue or archive"}
	}
	return view, nil
}
