package monitor

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/feedback-core/internal/cabinet"
	"github.com/nerrad567/feedback-core/internal/eventlog"
	"github.com/nerrad567/feedback-core/internal/output/toy"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.withRequestID)
	r.Use(s.withAccessLog)
	r.Use(s.withRecovery)
	r.Use(s.withCORS)
	r.Use(s.withBodyLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/cabinet", s.handleCabinet)

		r.Route("/controllers", func(r chi.Router) {
			r.Get("/", s.handleListControllers)
			r.Get("/{name}", s.handleGetController)
		})

		r.Route("/toys", func(r chi.Router) {
			r.Get("/", s.handleListToys)
			r.Put("/{name}/layers/{nr}", s.handleWriteLayer)
		})

		r.Get("/events", s.handleListEvents)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.cabinet.Stats()
	connected := 0
	for _, c := range st.Controllers {
		if c.State == "connected" {
			connected++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     s.version,
		"cabinet":     st.Name,
		"controllers": len(st.Controllers),
		"connected":   connected,
	})
}

func (s *Server) handleCabinet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cabinet.Stats())
}

func (s *Server) handleListControllers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"controllers": s.cabinet.Stats().Controllers,
	})
}

func (s *Server) handleGetController(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	for _, c := range s.cabinet.Stats().Controllers {
		if c.Name == name {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	writeNotFound(w, "controller not found: "+name)
}

func (s *Server) handleListToys(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"toys": s.cabinet.Stats().Toys,
	})
}

// handleWriteLayer applies a layer write. The body has the same format as
// an MQTT layer message.
func (s *Server) handleWriteLayer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	nr, err := strconv.Atoi(chi.URLParam(r, "nr"))
	if err != nil {
		writeBadRequest(w, "layer must be an integer")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading body: "+err.Error())
		return
	}

	err = s.cabinet.ApplyLayer(name, nr, body)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, toy.ErrToyNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, cabinet.ErrInvalidLayerWrite), errors.Is(err, toy.ErrCapability):
		writeBadRequest(w, err.Error())
	default:
		s.logger.Error("layer write failed", "toy", name, "layer", nr, "error", err)
		writeInternalError(w, "layer write failed")
	}
}

// handleListEvents lists controller events, newest first.
//
// Query parameters: controller, kind, run_id, limit, offset.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "event log is disabled")
		return
	}

	q := r.URL.Query()
	filter := eventlog.Filter{
		Controller: q.Get("controller"),
		Kind:       eventlog.Kind(q.Get("kind")),
		RunID:      q.Get("run_id"),
	}
	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, key+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	result, err := s.events.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing events failed", "error", err)
		writeInternalError(w, "listing events failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
