package kiosk

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kiosk-age-verification/shared"
)

type chooseRequest struct {
	Method shared.VerificationMethod `json:"method"`
}

// NewRouter exposes the host to the touch UI and to monitoring.
func NewRouter(h *Host) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/screen", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.CurrentScreen())
	})

	r.Route("/taps", func(r chi.Router) {
		r.Post("/choose", func(w http.ResponseWriter, req *http.Request) {
			var body chooseRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			respond(w, h.TapChoose(req.Context(), body.Method))
		})
		r.Post("/confirm", func(w http.ResponseWriter, req *http.Request) {
			respond(w, h.TapConfirm(req.Context()))
		})
	})

	r.Route("/visibility", func(r chi.Router) {
		r.Post("/pause", func(w http.ResponseWriter, req *http.Request) {
			respond(w, h.Pause(req.Context()))
		})
		r.Post("/resume", func(w http.ResponseWriter, req *http.Request) {
			respond(w, h.Resume(req.Context()))
		})
	})

	return r
}

// NewServer builds the kiosk HTTP server.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func respond(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrWrongScreen), errors.Is(err, ErrNotConfirmed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, shared.ErrUnsupportedMethod):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrHostStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
