package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// ============================================================================
// HTTP Server
// ============================================================================
// Serves the state websocket and a health probe. Port 0 disables it.
// ============================================================================

// newHTTPMux builds the daemon's routes. snapshot is used by /healthz.
func newHTTPMux(state *StateServer, snapshot func(context.Context) (StateSnapshot, bool)) *http.ServeMux {
	mux := http.NewServeMux()
	state.Register(mux, "/ws/state")
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := snapshot(r.Context())
		if !ok {
			http.Error(w, "daemon loop not responding", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Status  string `json:"status"`
			Version string `json:"version"`
			Phase   string `json:"phase"`
			Active  int    `json:"active"`
			Clients int    `json:"clients"`
		}{
			Status:  "ok",
			Version: version,
			Phase:   snap.Phase.String(),
			Active:  snap.Active,
			Clients: state.Hub().ClientCount(),
		})
	})
	return mux
}

// runHTTPServer serves handler on port and shuts down gracefully when ctx is
// canceled.
func runHTTPServer(ctx context.Context, port int, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}
	logger.Info("HTTP server listening", "port", port)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
