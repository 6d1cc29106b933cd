package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/raphaelgruber/nutristat/internal/models"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type submitResponse struct {
	JobID string `json:"job_id"`
}

type resultResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type errorResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type numJobsResponse struct {
	NumJobs int `json:"num_jobs"`
}

type jobsResponse struct {
	Status string         `json:"status"`
	Data   *models.Result `json:"data"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type echoResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (s *Server) handleSubmit(op models.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params models.Params
		if err := decodeBody(w, r, &params); err != nil {
			s.respondError(w, r, http.StatusBadRequest, err)
			return
		}

		id, err := s.jobs.Submit(r.Context(), op, params)
		if err != nil {
			s.respondError(w, r, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, submitResponse{JobID: id.String()})
	}
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseJobID(chi.URLParam(r, "job_id"))
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	state, err := s.jobs.Status(r.Context(), id)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, resultResponse{
		Status: string(state.Status),
		Data:   state.Data,
	})
}

func (s *Server) handleNumJobs(w http.ResponseWriter, r *http.Request) {
	n, err := s.jobs.CountRunning(r.Context())
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, numJobsResponse{NumJobs: n})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListJobs(r.Context())
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	data := models.NewResult()
	for _, j := range jobs {
		data.Set(j.ID.String(), string(j.Status))
	}
	respondJSON(w, http.StatusOK, jobsResponse{Status: "done", Data: data})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	s.logger.InfoContext(r.Context(), "graceful shutdown requested")
	// Workers exit in the background; the process waits for them on SIGTERM.
	s.jobs.StopAccepting()
	respondJSON(w, http.StatusOK, statusResponse{Status: "done"})
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	var data any
	if err := decodeBody(w, r, &data); err != nil {
		s.respondError(w, r, http.StatusBadRequest, err)
		return
	}
	respondJSON(w, http.StatusOK, echoResponse{Message: "Received data successfully", Data: data})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.jobs.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// handleIndex lists every registered route.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	methods := make(map[string][]string)
	_ = chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		methods[route] = append(methods[route], method)
		return nil
	})

	routes := make([]string, 0, len(methods))
	for route := range methods {
		routes = append(routes, route)
	}
	sort.Strings(routes)

	var b strings.Builder
	b.WriteString("Home Route!\n")
	b.WriteString("Interact with the webserver using one of the defined routes:\n")
	for _, route := range routes {
		sort.Strings(methods[route])
		fmt.Fprintf(&b, "Endpoint: %q Methods: %q\n", route, strings.Join(methods[route], ", "))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// respondError maps err to the wire error shape. Job id errors keep the
// fixed "Invalid job_id" reason clients match on.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, code int, err error) {
	reason := err.Error()
	switch {
	case errors.Is(err, models.ErrInvalidJobID):
		reason = "Invalid job_id"
		s.logger.WarnContext(r.Context(), "invalid job id", "path", r.URL.Path, "error", err)
	case code >= http.StatusInternalServerError:
		reason = "internal error"
		s.logger.ErrorContext(r.Context(), "request error", "path", r.URL.Path, "error", err)
	}
	respondJSON(w, code, errorResponse{Status: "error", Reason: reason})
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"error","reason":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
