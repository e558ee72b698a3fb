package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/civant/procure-intel/internal/guard"
	"github.com/civant/procure-intel/internal/model"
	"github.com/civant/procure-intel/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	tenantID, err := guard.TenantFromContext(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	f := store.PredictionFilter{
		BuyerID: r.URL.Query().Get("buyer_id"),
		Limit:   queryInt(r, "limit", 100),
		Offset:  queryInt(r, "offset", 0),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		ps := model.PredictionStatus(status)
		if !ps.Valid() {
			s.writeError(w, &model.ValidationError{Field: "status", Reason: "unknown status"})
			return
		}
		f.Status = ps
	}

	preds, err := s.store.ListPredictions(r.Context(), tenantID, f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": preds, "count": len(preds)})
}

func (s *Server) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	p, ok := s.fetchPrediction(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePredictionHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := s.fetchPrediction(w, r)
	if !ok {
		return
	}
	history, err := s.store.ListCycleHistory(r.Context(), p.TenantID, p.BuyerID, p.CPVClusterID, queryInt(r, "limit", 100))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history, "count": len(history)})
}

func (s *Server) handlePredictionLog(w http.ResponseWriter, r *http.Request) {
	p, ok := s.fetchPrediction(w, r)
	if !ok {
		return
	}
	entries, err := s.store.ListLog(r.Context(), p.TenantID, p.PredictionID, queryInt(r, "limit", 100))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"log": entries, "count": len(entries)})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	tenantID, err := guard.TenantFromContext(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		Actor string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, model.KindValidation, "invalid request body")
		return
	}
	if req.Actor == "" {
		req.Actor = "api"
	}

	p, err := s.engine.Withdraw(r.Context(), tenantID, chi.URLParam(r, "predictionID"), req.Actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleIngestNotice(w http.ResponseWriter, r *http.Request) {
	tenantID, err := guard.TenantFromContext(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	var notice model.CanonicalNotice
	if err := json.NewDecoder(r.Body).Decode(&notice); err != nil {
		writeJSONError(w, http.StatusBadRequest, model.KindValidation, "invalid request body")
		return
	}
	if notice.TenantID == "" {
		notice.TenantID = tenantID
	}

	out, err := s.queue.EnqueueCandidate(r.Context(), tenantID, notice)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, out)
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	tenantID, err := guard.TenantFromContext(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	pending, err := s.queue.Pending(r.Context(), tenantID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": pending, "count": len(pending)})
}

func (s *Server) handleResolveCandidate(w http.ResponseWriter, r *http.Request) {
	tenantID, err := guard.TenantFromContext(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		Decision string `json:"decision"`
		Actor    string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, model.KindValidation, "invalid request body")
		return
	}
	if req.Actor == "" {
		req.Actor = "api"
	}

	res, err := s.queue.ResolveCandidate(r.Context(), tenantID, chi.URLParam(r, "candidateID"),
		model.ReconciliationDecision(req.Decision), req.Actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) fetchPrediction(w http.ResponseWriter, r *http.Request) (*model.Prediction, bool) {
	tenantID, err := guard.TenantFromContext(r.Context())
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	p, err := s.store.GetPredictionByID(r.Context(), tenantID, chi.URLParam(r, "predictionID"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	if p == nil {
		writeJSONError(w, http.StatusNotFound, "not_found", "prediction not found")
		return nil, false
	}
	return p, true
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// writeError maps domain errors to HTTP statuses via their stable kinds.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := model.ErrorKind(err)
	status := http.StatusInternalServerError
	switch kind {
	case model.KindValidation:
		status = http.StatusBadRequest
	case model.KindCrossTenant:
		status = http.StatusForbidden
	case model.KindLifecycle, model.KindConcurrentMod:
		status = http.StatusConflict
	default:
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
			kind = "not_found"
		} else if strings.Contains(err.Error(), "admin rights required") {
			status = http.StatusForbidden
			kind = "forbidden"
		}
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
		writeJSONError(w, status, kind, "internal error")
		return
	}
	writeJSONError(w, status, kind, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]string{"error": kind, "message": message})
}
