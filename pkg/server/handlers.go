package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/piwi3910/gpustatsd/pkg/gpustats"
)

// handleInsert accepts one driver loading event. The store drops malformed
// driver variants itself, so everything that decodes gets a 204; only
// undecodable bodies are a client error.
func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var args gpustats.InsertArgs
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		s.logger.Warn().Err(err).Msg("Rejected undecodable stats payload")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	s.store.Insert(r.Context(), args)
	w.WriteHeader(http.StatusNoContent)
}

// handleDump renders the diagnostic report. Flags arrive as repeated
// "arg" query parameters, e.g. /api/v1/dump?arg=--app&arg=--clear.
func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	args := r.URL.Query()["arg"]
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	s.store.WriteDump(r.Context(), w, args)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// withRequestLogging tags each request with an id and records the outcome.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.logger.Debug().
			Str("request_id", uuid.NewString()).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("Request served")

		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.URL.Path, strconv.Itoa(recorder.status))
		}
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
