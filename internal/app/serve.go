package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/conformgo/internal/spec"
)

// conformResponse is the serve-mode reply for both endpoints.
type conformResponse struct {
	Spec      string         `json:"spec"`
	Valid     bool           `json:"valid"`
	Conformed any            `json:"conformed,omitempty"`
	Problems  []spec.Problem `json:"problems,omitempty"`
}

// serveHTTP runs the conformance HTTP server until ctx is cancelled.
func (a *App) serveHTTP(ctx context.Context) error {
	a.logger.Debug("Configuring conformance server.")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/v1/conform", a.conformHandler(true))
	mux.HandleFunc("/v1/explain", a.conformHandler(false))

	addr := fmt.Sprintf(":%d", a.config.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Conformance server shutdown failed", "error", err)
		}
	}()

	a.logger.Info("Conformance server starting", "address", fmt.Sprintf("http://localhost%s", addr))
	// ListenAndServe returns ErrServerClosed on graceful shutdown; that is
	// not a failure.
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.logger.Debug("Conformance server shut down gracefully.")
	return nil
}

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// conformHandler serves POST requests whose JSON body is checked against
// the spec named by the `spec` query parameter. withConformed selects
// whether the conformed value is included on success.
func (a *App) conformHandler(withConformed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		specName := r.URL.Query().Get("spec")
		if specName == "" {
			http.Error(w, "missing 'spec' query parameter", http.StatusBadRequest)
			return
		}

		var value any
		if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
			http.Error(w, fmt.Sprintf("invalid JSON body: %v", err), http.StatusBadRequest)
			return
		}

		cv, err := a.registry.Conform(specName, value)
		if err != nil {
			a.logger.Debug("Conform request failed.", "spec", specName, "error", err)
			status := http.StatusBadRequest
			if errors.Is(err, spec.ErrUnknownSpec) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}

		resp := conformResponse{Spec: specName, Valid: !spec.IsInvalid(cv)}
		if resp.Valid {
			if withConformed {
				resp.Conformed = cv
			}
		} else {
			problems, err := a.registry.Explain(specName, value)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			resp.Problems = problems
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			a.logger.Error("Failed to encode response", "error", err)
		}
	}
}
