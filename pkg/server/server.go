// Package server exposes the monitoring engine over a JSON HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"igmonitor/pkg/config"
	"igmonitor/pkg/logger"
)

// Server owns the HTTP listener and routes.
type Server struct {
	httpServer *http.Server
	log        logger.Logger
	startTime  time.Time
}

// NewServer assembles the full route table around the given
// dependencies.
func NewServer(cfg config.ServerConfig, checker Checker, gate ProtectionControl, tasks TaskService, metrics Metrics, log logger.Logger) *Server {
	s := &Server{
		log:       log,
		startTime: time.Now(),
	}

	h := &handlers{
		checker: checker,
		gate:    gate,
		tasks:   tasks,
		metrics: metrics,
		log:     log,
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /api/check-privacy", h.checkPrivacy)
	api.HandleFunc("POST /api/check-new-stories", h.checkNewStories)
	api.HandleFunc("POST /api/schedule-notification", h.scheduleNotification)
	api.HandleFunc("GET /api/scheduled-tasks", h.listScheduledTasks)
	api.HandleFunc("PUT /api/scheduled-task/{id}", h.updateScheduledTask)
	api.HandleFunc("DELETE /api/scheduled-task/{id}", h.deleteScheduledTask)
	api.HandleFunc("POST /api/check-overdue-emails", h.checkOverdueEmails)
	api.HandleFunc("GET /api/overdue-check-status", h.overdueCheckStatus)
	api.HandleFunc("POST /api/reset-overdue-check", h.resetOverdueCheck)
	api.HandleFunc("GET /api/bot-protection-status", h.botProtectionStatus)
	api.HandleFunc("POST /api/reset-bot-protection", h.resetBotProtection)
	api.HandleFunc("GET /api/account-status", h.accountStatus)

	mux := http.NewServeMux()
	mux.Handle("/api/", instrument(log, metrics, api))
	mux.HandleFunc("GET /healthz", s.health)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the assembled route table.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

type healthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body, err := json.Marshal(healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	})
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
