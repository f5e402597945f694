package http

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"eventboard/internal/log"
	"eventboard/internal/remote"
)

// writeJSON encodes v with status. Encoding errors are logged; the header
// is already out by then.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "JSON encode failed", log.FieldError, err)
	}
}

// handleAPIList serves the event list in the {id,title,body} shape of the
// remote collection, so the app can be its own detail source.
func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, postsFromRecords(s.events.List()))
}

func (s *Server) handleAPIGet(w http.ResponseWriter, r *http.Request) {
	id, err := RouteID(r)
	if err != nil {
		writeJSON(w, r, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	rec, ok := s.events.Find(id)
	if !ok {
		writeJSON(w, r, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, r, http.StatusOK, remote.FromRecord(rec))
}

type healthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime,omitempty"`
	Events int               `json:"events"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Events: len(s.events.List()),
	})
}

// handleReady runs every registered check; any failure turns the response
// into a 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Events: len(s.events.List()),
		Checks: map[string]string{},
	}
	if s.templates == nil || s.templates.Lookup("list.html") == nil {
		resp.Checks["templates"] = "missing"
		resp.Status = "unavailable"
	} else {
		resp.Checks["templates"] = "ok"
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.checks[name](r.Context()); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed",
				"check", name, log.FieldError, err)
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}
