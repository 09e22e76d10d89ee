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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"carousel/internal/api"
	"carousel/internal/config"
	"carousel/internal/logging"
	"carousel/internal/manifest"
	"carousel/internal/queue"
)

// apiServer exposes the read-only HTTP surface: daemon status, queue
// contents, metadata records, and the log stream.
type apiServer struct {
	bind        string
	metadataDir string
	logger      *slog.Logger
	daemon      *Daemon
	queueSvc    *api.QueueService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:        bind,
		metadataDir: cfg.Paths.MetadataDir,
		logger:      logger,
		daemon:      d,
		queueSvc:    api.NewQueueService(d.store),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", srv.handleHealthz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", srv.handleStatus)
		r.Get("/queue", srv.handleQueue)
		r.Get("/queue/{id}", srv.handleQueueItem)
		r.Get("/records", srv.handleRecords)
		r.Get("/records/{name}", srv.handleRecord)
		r.Get("/logs", srv.handleLogs)
	})

	srv.server = &http.Server{
		Handler:           r,
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

// addr reports the bound listen address, empty until start succeeds.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	health, err := s.daemon.QueueHealth(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"queue":  health.Total,
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
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
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		LogPath:      s.daemon.LogPath(),
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: deps,
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		statuses = append(statuses, queue.Status(trimmed))
	}

	items, err := s.queueSvc.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: items})
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid queue item id")
		return
	}
	item, err := s.queueSvc.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueItemResponse{Item: *item})
}

func (s *apiServer) handleRecords(w http.ResponseWriter, r *http.Request) {
	infos, err := manifest.List(s.metadataDir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	records := make([]api.RecordInfo, 0, len(infos))
	for _, info := range infos {
		records = append(records, api.RecordInfo{
			Name:       info.Name,
			Path:       info.Path,
			ModifiedAt: info.ModifiedAt,
			Size:       info.Size,
		})
	}
	s.writeJSON(w, http.StatusOK, api.RecordListResponse{Records: records})
}

func (s *apiServer) handleRecord(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	infos, err := manifest.List(s.metadataDir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, info := range infos {
		if info.Name != name {
			continue
		}
		rec, err := manifest.Load(info.Path)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, rec)
		return
	}
	s.writeError(w, http.StatusNotFound, "record not found")
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.LogStream()
	archive := s.daemon.LogArchive()
	if hub == nil && archive == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: nil, Next: 0})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	tail := query.Get("tail") == "1" || strings.EqualFold(query.Get("tail"), "true")

	var filterItem int64
	if value := strings.TrimSpace(query.Get("item")); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			filterItem = parsed
		}
	}
	component := strings.TrimSpace(query.Get("component"))

	var (
		converted []api.LogEvent
		next      uint64
	)

	if archive != nil && since > 0 {
		firstSeq := uint64(0)
		if hub != nil {
			firstSeq = hub.FirstSequence()
		}
		if hub == nil || (firstSeq > 0 && since < firstSeq) {
			archived, cursor, archErr := archive.ReadSince(since, limit)
			if archErr != nil {
				s.log().Warn("log archive read failed", logging.Error(archErr))
			} else if len(archived) > 0 {
				converted = convertLogEvents(archived)
				next = cursor
			}
		}
	}
	if tail && since == 0 && !follow && hub != nil {
		raw, cursor := hub.Tail(limit)
		converted = convertLogEvents(raw)
		next = cursor
	} else if len(converted) == 0 && hub != nil {
		raw, cursor, fetchErr := hub.Fetch(r.Context(), since, limit, follow)
		if fetchErr != nil && !errors.Is(fetchErr, context.Canceled) && !errors.Is(fetchErr, context.DeadlineExceeded) {
			s.writeError(w, http.StatusInternalServerError, fetchErr.Error())
			return
		}
		converted = convertLogEvents(raw)
		next = cursor
	}

	filtered := make([]api.LogEvent, 0, len(converted))
	for _, evt := range converted {
		if filterItem != 0 && evt.ItemID != filterItem {
			continue
		}
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		filtered = append(filtered, evt)
	}

	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{
		Events: filtered,
		Next:   next,
	})
}

func convertLogEvents(events []logging.LogEvent) []api.LogEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]api.LogEvent, 0, len(events))
	for _, evt := range events {
		details := make([]api.DetailField, 0, len(evt.Details))
		for _, detail := range evt.Details {
			details = append(details, api.DetailField{
				Label: detail.Label,
				Value: detail.Value,
			})
		}
		out = append(out, api.LogEvent{
			Sequence:  evt.Sequence,
			Timestamp: evt.Timestamp,
			Level:     evt.Level,
			Message:   evt.Message,
			Component: evt.Component,
			Stage:     evt.Stage,
			ItemID:    evt.ItemID,
			Fields:    evt.Fields,
			Details:   details,
		})
	}
	return out
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
