package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dkozlov/pulseboard/internal/api"
	"github.com/dkozlov/pulseboard/internal/cache"
)

// errorBody is the uniform failure shape for every endpoint.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeUpstreamError maps an upstream failure onto a status code:
// confirmed-missing entities are 404, everything else is a 500.
func (s *Server) writeUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Kind == api.KindNotFound {
		s.logger.Info("upstream entity not found", "error", err)
		writeError(w, http.StatusNotFound, apiErr.Message)
		return
	}

	s.logger.Warn("upstream request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// serveCached answers from the cache when possible, otherwise fetches,
// stores, and serves. Fetch failures never populate the cache.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, key string, class cache.Class, fetch func(ctx context.Context) (any, error)) {
	if payload, ok := s.cache.Get(key); ok {
		writeRaw(w, http.StatusOK, payload)
		return
	}

	v, err := fetch(r.Context())
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}

	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("response marshal failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.cache.Put(key, payload, class)
	writeRaw(w, http.StatusOK, payload)
}
