package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"claimscan/internal/api"
	"claimscan/internal/attempts"
	"claimscan/internal/config"
	"claimscan/internal/dispatch"
	"claimscan/internal/logging"
	"claimscan/internal/scanner"
	"claimscan/internal/services"
)

type apiServer struct {
	bind       string
	token      string
	logger     *slog.Logger
	daemon     *Daemon
	attemptSvc *api.AttemptService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:       bind,
		token:      strings.TrimSpace(cfg.API.Token),
		logger:     logger,
		daemon:     d,
		attemptSvc: api.NewAttemptService(d.store),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.requireAuth(srv.handleStatus))
	mux.HandleFunc("/api/devices", srv.requireAuth(srv.handleDevices))
	mux.HandleFunc("/api/scanner/open", srv.requireAuth(srv.handleScannerOpen))
	mux.HandleFunc("/api/scanner/close", srv.requireAuth(srv.handleScannerClose))
	mux.HandleFunc("/api/scanner/device", srv.requireAuth(srv.handleScannerDevice))
	mux.HandleFunc("/api/scanner/mode", srv.requireAuth(srv.handleScannerMode))
	mux.HandleFunc("/api/submit", srv.requireAuth(srv.handleSubmit))
	mux.HandleFunc("/api/attempts", srv.requireAuth(srv.handleAttempts))
	mux.HandleFunc("/api/attempts/", srv.requireAuth(srv.handleAttempt))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr reports the bound listen address, useful when the bind port is 0.
func (s *apiServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	deps := make([]api.DependencyStatus, len(status.Dependencies))
	for i, dep := range status.Dependencies {
		deps[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	payload := api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		Scanner:        api.FromScannerStatus(status.Scanner),
		AttemptStats:   api.MergeAttemptStats(status.AttemptStats),
		AttemptsDBPath: status.AttemptsDBPath,
		LockFilePath:   status.LockFilePath,
		Dependencies:   deps,
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	devices, err := s.daemon.cam.ListDevices()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]api.CameraDevice, 0, len(devices))
	for _, device := range devices {
		out = append(out, api.CameraDevice{Path: device.Path, Label: device.Label})
	}
	s.writeJSON(w, http.StatusOK, api.DeviceListResponse{Devices: out})
}

func (s *apiServer) handleScannerOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.OpenScannerRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.daemon.coordinator.Open(r.Context(), strings.TrimSpace(req.Device)); err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeScannerStatus(w)
}

func (s *apiServer) handleScannerClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.daemon.coordinator.Close()
	s.writeScannerStatus(w)
}

func (s *apiServer) handleScannerDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.OpenScannerRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.daemon.coordinator.SwitchDevice(r.Context(), strings.TrimSpace(req.Device)); err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeScannerStatus(w)
}

func (s *apiServer) handleScannerMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ModeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode, err := dispatch.ParseMode(req.Mode)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.daemon.coordinator.SetMode(mode); err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeScannerStatus(w)
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.SubmitRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Payload) == "" {
		s.writeError(w, http.StatusBadRequest, "payload is required")
		return
	}

	attempt, err := s.daemon.coordinator.SubmitManual(r.Context(), req.Payload)
	if err != nil && !errors.Is(err, services.ErrActionFailed) {
		// A failed business-rule attempt is still a recorded outcome; other
		// errors never produced a dispatch worth reporting.
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SubmitResponse{Attempt: api.FromAttempt(attempt)})
}

func (s *apiServer) handleAttempts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		limit, _ := strconv.Atoi(query.Get("limit"))
		var statuses []attempts.Status
		for _, value := range query["status"] {
			trimmed := strings.TrimSpace(value)
			if trimmed == "" {
				continue
			}
			if !attempts.ValidStatus(trimmed) {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", trimmed))
				return
			}
			statuses = append(statuses, attempts.Status(trimmed))
		}
		list, err := s.attemptSvc.List(r.Context(), limit, statuses...)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.AttemptListResponse{Attempts: list})
	case http.MethodDelete:
		removed, err := s.attemptSvc.Clear(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.ClearResponse{Removed: removed})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleAttempt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/attempts/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "attempt not found")
		return
	}
	attempt, err := s.attemptSvc.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if attempt == nil {
		s.writeError(w, http.StatusNotFound, "attempt not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.AttemptResponse{Attempt: *attempt})
}

func (s *apiServer) writeScannerStatus(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusOK, api.FromScannerStatus(s.daemon.coordinator.Status()))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrCameraUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, scanner.ErrAlreadyOpen),
		errors.Is(err, scanner.ErrNotOpen),
		errors.Is(err, scanner.ErrDispatchInFlight),
		errors.Is(err, scanner.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, scanner.ErrNoItemID):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrTransient):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
