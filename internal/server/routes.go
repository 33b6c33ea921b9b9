package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mnemohq/rehydrate/internal/engine"
	"github.com/mnemohq/rehydrate/pkg/types"
)

type rehydrateRequest struct {
	Role        string `json:"role"`
	Task        string `json:"task"`
	Limit       int    `json:"limit"`
	TokenBudget int    `json:"token_budget"`
	// EntityExpansion overrides the engine default when present.
	EntityExpansion *bool `json:"entity_expansion,omitempty"`
}

func (s *Server) handleRehydrate(w http.ResponseWriter, r *http.Request) {
	var req rehydrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Role == "" || req.Task == "" {
		writeError(w, http.StatusBadRequest, "role and task are required")
		return
	}

	engReq := engine.Request{
		Role:        req.Role,
		Task:        req.Task,
		Limit:       req.Limit,
		TokenBudget: req.TokenBudget,
	}
	if req.EntityExpansion != nil {
		engReq.Flags = &types.FeatureFlags{EntityExpansion: *req.EntityExpansion}
	}

	bundle, err := s.engine.Rehydrate(r.Context(), engReq)
	if err != nil {
		s.logger.Warn("rehydrate failed",
			zap.String("request_id", reqID(r)),
			zap.String("role", req.Role),
			zap.Error(err))
		switch types.ErrorKind(err) {
		case types.ErrKindConfig:
			writeError(w, http.StatusBadRequest, err.Error())
		case types.ErrKindTimeout:
			writeError(w, http.StatusGatewayTimeout, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	indexOK := true
	var chunks int64
	if err := s.store.Ping(ctx); err != nil {
		indexOK = false
	} else {
		chunks, _ = s.store.CountChunks(ctx)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"index":   indexOK,
		"chunks":  chunks,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Metrics())
}

type flagsRequest struct {
	EntityExpansion *bool `json:"entity_expansion"`
}

// handleFlags flips engine-level feature flags at runtime; flipping
// entity_expansion off falls back to the non-expanded pipeline without a
// restart.
func (s *Server) handleFlags(w http.ResponseWriter, r *http.Request) {
	var req flagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.EntityExpansion != nil {
		s.engine.SetEntityExpansion(*req.EntityExpansion)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entity_expansion": s.engine.EntityExpansion(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
