package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mkefalas/sigmalink/internal/logging"
	"github.com/mkefalas/sigmalink/internal/panel"
	"github.com/mkefalas/sigmalink/internal/poll"
	"github.com/mkefalas/sigmalink/internal/transcript"
)

// Config holds the bridge listen address.
type Config struct {
	Host string
	Port int
}

// Server bridges one panel's coordinator and executor onto a JSON API.
type Server struct {
	config      Config
	coordinator *poll.Coordinator
	executor    *panel.Executor
	hub         *hub
}

// New builds a server over an already-constructed coordinator and executor.
// The caller starts the coordinator; the server only consumes its updates.
func New(config Config, coordinator *poll.Coordinator, executor *panel.Executor) *Server {
	return &Server{
		config:      config,
		coordinator: coordinator,
		executor:    executor,
		hub:         newHub(coordinator.Subscribe()),
	}
}

// Handler returns the API routes, exported so tests can drive the server
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/arm_away", s.actionHandler(panel.ActionArmAway))
	mux.HandleFunc("/api/arm_stay", s.actionHandler(panel.ActionArmStay))
	mux.HandleFunc("/api/disarm", s.actionHandler(panel.ActionDisarm))
	mux.HandleFunc("/api/stream", s.hub.handleStream)
	return mux
}

// Start serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.run(ctx)

	errChan := make(chan error, 1)
	go func() {
		logging.Info("bridge listening", zap.String("addr", addr))
		errChan <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logging.Info("bridge shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.closeAll()
		return srv.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// statusResponse is the GET /api/status body.
type statusResponse struct {
	Available bool                 `json:"available"`
	Snapshot  *transcript.Snapshot `json:"snapshot,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Available: s.coordinator.Available(),
		Snapshot:  s.coordinator.LastSnapshot(),
	})
}

// actionResponse is the POST /api/<action> body.
type actionResponse struct {
	Action     string `json:"action"`
	Success    bool   `json:"success"`
	Attempts   int    `json:"attempts"`
	FinalState string `json:"final_state,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) actionHandler(action panel.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		result := s.executor.Execute(r.Context(), action)

		resp := actionResponse{
			Action:   result.Action.String(),
			Success:  result.Success,
			Attempts: result.Attempts,
		}
		if result.FinalState != "" {
			resp.FinalState = string(result.FinalState)
		}
		if result.Err != nil {
			resp.Error = result.Err.Error()
		}

		status := http.StatusOK
		switch {
		case errors.Is(result.Err, panel.ErrActionPending):
			status = http.StatusConflict
		case panel.IsConfigError(result.Err):
			status = http.StatusBadRequest
		case !result.Success:
			status = http.StatusBadGateway
		}
		writeJSON(w, status, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", zap.Error(err))
	}
}
