package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marsad/internal/api"
	"marsad/internal/audit"
	"marsad/internal/config"
	"marsad/internal/findings"
	"marsad/internal/logging"
)

type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	auditSvc *api.AuditService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address is required")
	}

	srv := &apiServer{
		bind:     bind,
		logger:   logger,
		daemon:   d,
		auditSvc: api.NewAuditService(d.store),
	}
	token := strings.TrimSpace(cfg.Paths.APIToken)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/audit/run", authMiddleware(token, srv.handleRun))
	mux.HandleFunc("/api/audit/status", srv.handleStatus)
	mux.HandleFunc("/api/audit/findings", srv.handleFindings)
	mux.HandleFunc("/api/audit/findings/", authMiddleware(token, srv.handleFindingStatus))

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

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:    "ok",
		StorePath: s.daemon.StorePath(),
	})
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	run, err := s.daemon.StartAudit()
	if err != nil {
		if errors.Is(err, audit.ErrAlreadyRunning) {
			s.writeError(w, http.StatusConflict, "audit already running")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.RunStartedResponse{RunID: run.ID})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	run, err := s.auditSvc.LatestRun(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunStatusResponse{Run: run})
}

func (s *apiServer) handleFindings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	filters, err := parseFindingFilters(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.auditSvc.Findings(r.Context(), filters)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// handleFindingStatus serves PATCH /api/audit/findings/{id}/status.
func (s *apiServer) handleFindingStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/audit/findings/")
	idStr, action, found := strings.Cut(rest, "/")
	if !found || action != "status" || idStr == "" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid finding id")
		return
	}

	var body api.StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := s.auditSvc.UpdateFindingStatus(r.Context(), id, body.Status)
	if err != nil {
		if errors.Is(err, api.ErrUnknownStatus) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.StatusUpdateResponse{Updated: updated})
}

func parseFindingFilters(r *http.Request) (findings.Filters, error) {
	query := r.URL.Query()
	filters := findings.Filters{
		Severity:   findings.Severity(strings.TrimSpace(query.Get("severity"))),
		Category:   findings.Category(strings.TrimSpace(query.Get("category"))),
		Status:     findings.Status(strings.TrimSpace(query.Get("status"))),
		EntityType: findings.EntityType(strings.TrimSpace(query.Get("entity_type"))),
	}
	if value := strings.TrimSpace(query.Get("run_id")); value != "" {
		runID, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return filters, fmt.Errorf("invalid run_id %q", value)
		}
		filters.RunID = runID
	}
	if value := strings.TrimSpace(query.Get("page")); value != "" {
		page, err := strconv.Atoi(value)
		if err != nil {
			return filters, fmt.Errorf("invalid page %q", value)
		}
		filters.Page = page
	}
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil {
			return filters, fmt.Errorf("invalid limit %q", value)
		}
		filters.Limit = limit
	}
	if filters.Severity != "" && !findings.ValidSeverity(filters.Severity) {
		return filters, fmt.Errorf("unknown severity %q", filters.Severity)
	}
	if filters.Status != "" && !findings.ValidStatus(filters.Status) {
		return filters, fmt.Errorf("unknown status %q", filters.Status)
	}
	return filters, nil
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
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
