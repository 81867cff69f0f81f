// Package http exposes the REST API and RSS feeds.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sloghttp "github.com/samber/slog-http"

	alertdomain "github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
	alertRepo "github.com/threatwatch-io/threatwatch/internal/modules/alert/repository"
	alertService "github.com/threatwatch-io/threatwatch/internal/modules/alert/service"
	feedService "github.com/threatwatch-io/threatwatch/internal/modules/feed/service"
	monitordomain "github.com/threatwatch-io/threatwatch/internal/modules/monitor/domain"
	monitorService "github.com/threatwatch-io/threatwatch/internal/modules/monitor/service"
	"github.com/threatwatch-io/threatwatch/internal/shared/config"
	sharederrors "github.com/threatwatch-io/threatwatch/internal/shared/errors"
)

// Server handles HTTP requests for the monitoring API and RSS feeds
type Server struct {
	cfg         *config.Config
	monitors    *monitorService.Service
	alerts      *alertService.Service
	feedService *feedService.Service
	logger      *slog.Logger
	httpServer  *http.Server
}

// New creates a new HTTP server
func New(cfg *config.Config, monitors *monitorService.Service, alerts *alertService.Service, feedSvc *feedService.Service) *Server {
	return &Server{
		cfg:         cfg,
		monitors:    monitors,
		alerts:      alerts,
		feedService: feedSvc,
		logger:      slog.Default(),
	}
}

// SetLogger sets the logger
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Start starts the HTTP server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/monitors", s.handleCreateMonitor)
	mux.HandleFunc("GET /api/monitors", s.handleListMonitors)
	mux.HandleFunc("GET /api/monitors/due", s.handleDueMonitors)
	mux.HandleFunc("GET /api/monitors/{monitorID}", s.handleGetMonitor)
	mux.HandleFunc("PATCH /api/monitors/{monitorID}", s.handleUpdateMonitor)
	mux.HandleFunc("DELETE /api/monitors/{monitorID}", s.handleDeleteMonitor)
	mux.HandleFunc("GET /api/monitors/{monitorID}/alerts", s.handleListMonitorAlerts)

	mux.HandleFunc("GET /api/alerts", s.handleListAlerts)
	mux.HandleFunc("GET /api/alerts/{alertID}", s.handleGetAlert)
	mux.HandleFunc("PATCH /api/alerts/{alertID}/status", s.handleUpdateAlertStatus)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	mux.HandleFunc("GET /rss/{monitorID}", s.handleRSSFeed)
	mux.HandleFunc("GET /health", s.handleHealth)

	addr := fmt.Sprintf(":%s", s.cfg.HTTPPort)
	s.logger.Info("HTTP server starting", "addr", addr)

	// Use slog-http middleware with recovery
	handler := sloghttp.Recovery(mux)
	handler = sloghttp.New(s.logger)(handler)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// userID pulls the caller identity from the X-User-ID header. Authentication
// itself is expected to happen at the proxy in front of this service.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

type monitorPayload struct {
	Term                 string                              `json:"term"`
	Description          string                              `json:"description"`
	Keywords             []string                            `json:"keywords"`
	ExcludeKeywords      []string                            `json:"exclude_keywords"`
	Frequency            string                              `json:"frequency"`
	SeverityThreshold    string                              `json:"severity_threshold"`
	Active               *bool                               `json:"active"`
	NotificationSettings *monitordomain.NotificationSettings `json:"notification_settings"`
}

func (s *Server) handleCreateMonitor(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID header is required", http.StatusUnauthorized)
		return
	}

	var payload monitorPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req := monitorService.CreateRequest{
		Term:                 payload.Term,
		Description:          payload.Description,
		Keywords:             payload.Keywords,
		ExcludeKeywords:      payload.ExcludeKeywords,
		NotificationSettings: payload.NotificationSettings,
	}
	if payload.Frequency != "" {
		freq, err := monitordomain.ParseMonitorFrequency(payload.Frequency)
		if err != nil {
			http.Error(w, "Invalid frequency", http.StatusBadRequest)
			return
		}
		req.Frequency = freq
	}
	if payload.SeverityThreshold != "" {
		threshold, err := alertdomain.ParseSeverityLevel(payload.SeverityThreshold)
		if err != nil {
			http.Error(w, "Invalid severity threshold", http.StatusBadRequest)
			return
		}
		req.SeverityThreshold = threshold
	}

	monitor, err := s.monitors.CreateMonitor(r.Context(), uid, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, monitor)
}

func (s *Server) handleListMonitors(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID header is required", http.StatusUnauthorized)
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	monitors, err := s.monitors.ListMonitors(r.Context(), uid, activeOnly)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, monitors)
}

// handleDueMonitors is a diagnostics endpoint showing what the scheduler
// would dispatch right now, across all users.
func (s *Server) handleDueMonitors(w http.ResponseWriter, r *http.Request) {
	due, err := s.monitors.GetDueMonitors(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, due)
}

func (s *Server) handleGetMonitor(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID header is required", http.StatusUnauthorized)
		return
	}

	monitor, err := s.monitors.GetMonitor(r.Context(), r.PathValue("monitorID"), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, monitor)
}

func (s *Server) handleUpdateMonitor(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID header is required", http.StatusUnauthorized)
		return
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req, err := buildUpdateRequest(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	monitor, err := s.monitors.UpdateMonitor(r.Context(), r.PathValue("monitorID"), uid, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, monitor)
}

// buildUpdateRequest distinguishes absent fields from explicit zero values,
// which a plain struct decode cannot do.
func buildUpdateRequest(payload map[string]json.RawMessage) (monitorService.UpdateRequest, error) {
	var req monitorService.UpdateRequest

	decode := func(key string, dst any) error {
		raw, ok := payload[key]
		if !ok {
			return nil
		}
		return json.Unmarshal(raw, dst)
	}

	var term, description, frequency, threshold string
	var active bool
	var settings monitordomain.NotificationSettings

	if raw, ok := payload["term"]; ok {
		if err := json.Unmarshal(raw, &term); err != nil {
			return req, errors.New("invalid term")
		}
		req.Term = &term
	}
	if raw, ok := payload["description"]; ok {
		if err := json.Unmarshal(raw, &description); err != nil {
			return req, errors.New("invalid description")
		}
		req.Description = &description
	}
	if err := decode("keywords", &req.Keywords); err != nil {
		return req, errors.New("invalid keywords")
	}
	if err := decode("exclude_keywords", &req.ExcludeKeywords); err != nil {
		return req, errors.New("invalid exclude_keywords")
	}
	if raw, ok := payload["frequency"]; ok {
		if err := json.Unmarshal(raw, &frequency); err != nil {
			return req, errors.New("invalid frequency")
		}
		freq, err := monitordomain.ParseMonitorFrequency(frequency)
		if err != nil {
			return req, errors.New("invalid frequency")
		}
		req.Frequency = &freq
	}
	if raw, ok := payload["severity_threshold"]; ok {
		if err := json.Unmarshal(raw, &threshold); err != nil {
			return req, errors.New("invalid severity_threshold")
		}
		level, err := alertdomain.ParseSeverityLevel(threshold)
		if err != nil {
			return req, errors.New("invalid severity_threshold")
		}
		req.SeverityThreshold = &level
	}
	if raw, ok := payload["active"]; ok {
		if err := json.Unmarshal(raw, &active); err != nil {
			return req, errors.New("invalid active")
		}
		req.Active = &active
	}
	if raw, ok := payload["notification_settings"]; ok {
		if err := json.Unmarshal(raw, &settings); err != nil {
			return req, errors.New("invalid notification_settings")
		}
		req.NotificationSettings = &settings
	}
	return req, nil
}

func (s *Server) handleDeleteMonitor(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID header is required", http.StatusUnauthorized)
		return
	}

	if err := s.monitors.DeleteMonitor(r.Context(), r.PathValue("monitorID"), uid); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMonitorAlerts(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID header is required", http.StatusUnauthorized)
		return
	}

	monitorID := r.PathValue("monitorID")
	filter, err := parseAlertFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter.MonitorID = &monitorID

	alerts, err := s.alerts.List(r.Context(), uid, filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID header is required", http.StatusUnauthorized)
		return
	}

	filter, err := parseAlertFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	alerts, err := s.alerts.List(r.Context(), uid, filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alerts)
}

func parseAlertFilter(r *http.Request) (alertRepo.ListFilter, error) {
	var filter alertRepo.ListFilter
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		status, err := alertdomain.ParseAlertStatus(v)
		if err != nil {
			return filter, errors.New("invalid status filter")
		}
		filter.Status = &status
	}
	if v := q.Get("severity"); v != "" {
		severity, err := alertdomain.ParseSeverityLevel(v)
		if err != nil {
			return filter, errors.New("invalid severity filter")
		}
		filter.Severity = &severity
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filter, errors.New("invalid offset")
		}
		filter.Offset = offset
	}
	return filter, nil
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID header is required", http.StatusUnauthorized)
		return
	}

	alert, err := s.alerts.Get(r.Context(), r.PathValue("alertID"), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleUpdateAlertStatus(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID header is required", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Status   string `json:"status"`
		Feedback string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	status, err := alertdomain.ParseAlertStatus(payload.Status)
	if err != nil {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	alert, err := s.alerts.UpdateStatus(r.Context(), r.PathValue("alertID"), uid, status, payload.Feedback)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID header is required", http.StatusUnauthorized)
		return
	}

	stats, err := s.alerts.GetStatistics(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRSSFeed(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		uid = r.URL.Query().Get("user")
	}
	if uid == "" {
		http.Error(w, "User identity is required", http.StatusUnauthorized)
		return
	}

	monitorID := r.PathValue("monitorID")
	baseURL := fmt.Sprintf("%s://%s", getScheme(r), r.Host)

	feed, err := s.feedService.GenerateFeed(r.Context(), monitorID, uid, baseURL)
	if err != nil {
		s.logger.Error("Error generating feed", "monitor_id", monitorID, "error", err)
		s.writeError(w, err)
		return
	}

	rss, err := feed.ToRss()
	if err != nil {
		s.logger.Error("Error converting feed to RSS", "error", err)
		http.Error(w, "Failed to generate RSS", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(rss))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sharederrors.ErrMonitorNotFound), errors.Is(err, sharederrors.ErrAlertNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, sharederrors.ErrInvalidStatus):
		http.Error(w, "Invalid status transition", http.StatusConflict)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
