package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/matching"
	"github.com/spigell/matchmaker/internal/profile"
	"github.com/spigell/matchmaker/internal/store"
)

// RankRequest carries profiles as loose documents so that form-style values
// such as "4" are accepted.
type RankRequest struct {
	Employer  map[string]any   `json:"employer"`
	Employees []map[string]any `json:"employees"`
	K         *int             `json:"k,omitempty"`
}

type rankResponse struct {
	Matches []matching.Match `json:"matches"`
}

type storedResponse struct {
	Matches []store.StoredMatch `json:"matches"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
	Store  bool   `json:"store"`
	Uptime string `json:"uptime"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Store:  s.matches != nil,
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) rank(w http.ResponseWriter, r *http.Request) {
	var req RankRequest
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return
	}

	employer, employees, err := decodeRequest(req, s.opts.MaxEmployees)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, err)
		return
	}

	k := s.opts.DefaultK
	if req.K != nil {
		k = *req.K
	}

	start := time.Now()
	matches, err := s.ranker.Rank(r.Context(), employer, employees, k)
	s.metrics.rankDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.metrics.candidatesReceived.Add(float64(employees.Len()))

	s.respondJSON(w, http.StatusOK, rankResponse{Matches: matches})
}

func decodeRequest(req RankRequest, maxEmployees int) (*profile.Profile, *profile.Profiles, error) {
	if req.Employer == nil {
		return nil, nil, errors.New("employer is required")
	}
	employer, err := profile.Decode(req.Employer)
	if err != nil {
		return nil, nil, fmt.Errorf("employer: %w", err)
	}

	if len(req.Employees) > maxEmployees {
		return nil, nil, fmt.Errorf("too many employees: %d > %d", len(req.Employees), maxEmployees)
	}

	employees, err := profile.DecodeAll(req.Employees)
	if err != nil {
		return nil, nil, fmt.Errorf("employees%w", err)
	}

	return employer, employees, nil
}

func (s *Server) storedMatches(w http.ResponseWriter, r *http.Request) {
	if s.matches == nil {
		s.respondError(w, r, http.StatusServiceUnavailable, errors.New("match store is not configured"))
		return
	}

	id := chi.URLParam(r, "id")
	matches, err := s.matches.ListByEmployer(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.respondError(w, r, http.StatusNotFound, err)
		return
	case err != nil:
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	s.respondJSON(w, http.StatusOK, storedResponse{Matches: matches})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("write response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, err error) {
	reqID := chimiddleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("request_id", reqID), zap.Error(err))
	}
	s.respondJSON(w, status, errorResponse{Error: err.Error(), RequestID: reqID})
}
