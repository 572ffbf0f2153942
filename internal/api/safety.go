package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/subtext/internal/safety"
	"github.com/MikeSquared-Agency/subtext/internal/store"
)

type analyzeRequest struct {
	Messages []safety.Message `json:"messages"`
}

// analyzeSafety handles POST /api/v1/safety/analyze
func (s *Server) analyzeSafety(w http.ResponseWriter, r *http.Request) {
	if s.deps.Classifier == nil {
		writeError(w, http.StatusServiceUnavailable, "classifier_unavailable", "no flag generator is configured")
		return
	}

	var req analyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	if s.deps.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deps.AnalysisTimeout)
		defer cancel()
	}

	start := time.Now()
	analysis, err := s.deps.Classifier.Analyze(ctx, req.Messages)
	if err != nil {
		s.deps.Metrics.ObserveCollaboratorFailure()
		s.logger.Error("safety analysis failed", "messages", len(req.Messages), "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, "analysis_timeout", "")
			return
		}
		writeError(w, http.StatusBadGateway, "analysis_failed", "")
		return
	}
	s.deps.Metrics.ObserveAnalysis(analysis, time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, analysis)
}

// getAnalysis handles GET /api/v1/safety/analyses/{id}
func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyses == nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}

	rec, err := s.deps.Analyses.GetAnalysis(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	if err != nil {
		s.logger.Error("get analysis failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// listAnalyses handles GET /api/v1/safety/analyses?conversation_ref=&limit=
func (s *Server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyses == nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "")
		return
	}

	ref := r.URL.Query().Get("conversation_ref")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "missing_conversation_ref", "conversation_ref is required")
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	recs, err := s.deps.Analyses.ListAnalyses(r.Context(), ref, limit)
	if err != nil {
		s.logger.Error("list analyses failed", "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "")
		return
	}
	if recs == nil {
		recs = []store.AnalysisRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"analyses": recs})
}
