package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mercator-hq/switchboard/pkg/backends"
	"mercator-hq/switchboard/pkg/registry"
	"mercator-hq/switchboard/pkg/telemetry/logging"
)

const routePath = "/v1/route"

// handleRoute decodes a request envelope, routes it and answers with the
// response or a mapped error.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	var req backends.Request
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorTypeInvalidRequest, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, ErrorTypeInvalidRequest, "invalid JSON: "+err.Error())
		return
	}

	if req.RequestID == "" {
		req.RequestID = logging.GetRequestID(r.Context())
	}

	ctx := logging.WithCaller(r.Context(), req.Caller)
	resp, err := s.gateway.Route(ctx, &req)
	if err != nil {
		status, body := routeError(req.RequestID, err)
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleStatus answers the status query. ?probe=true runs adapter health
// checks first.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	probe, _ := strconv.ParseBool(r.URL.Query().Get("probe"))
	writeJSON(w, http.StatusOK, s.gateway.Status(r.Context(), probe))
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, true)
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, false)
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := chi.URLParam(r, "id")

	if err := s.gateway.SetEnabled(id, enabled); err != nil {
		if errors.Is(err, registry.ErrUnknownBackend) {
			writeError(w, http.StatusNotFound, ErrorTypeNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, ErrorTypeServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "enabled": enabled})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, ErrorTypeNotFound, "endpoint not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, ErrorTypeInvalidRequest, "method not allowed")
}
