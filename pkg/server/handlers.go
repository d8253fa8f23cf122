package server

import (
	"context"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"

	apperrors "igmonitor/pkg/errors"
	"igmonitor/pkg/logger"
	"igmonitor/pkg/protection"
	"igmonitor/pkg/schedule"
	"igmonitor/pkg/watcher"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// retryAfterSeconds is the advisory retry delay returned with 429s.
const retryAfterSeconds = 300

// Checker runs an ad-hoc batch of account checks through the gate.
// *watcher.TaskRunner implements it.
type Checker interface {
	RunBatch(ctx context.Context, taskType schedule.TaskType, usernames []string) (*watcher.BatchSummary, error)
}

// ProtectionControl exposes the gate's status and reset surface.
// *protection.Gate implements it.
type ProtectionControl interface {
	Status() protection.StatusReport
	AccountStatus() protection.AccountHealth
	Reset()
}

// TaskService is the scheduler surface the HTTP API drives.
// *schedule.Scheduler implements it.
type TaskService interface {
	Create(p schedule.CreateParams) (*schedule.Task, error)
	Update(id string, p schedule.UpdateParams) (*schedule.Task, error)
	Delete(id string) error
	List() []*schedule.Task
	RunOverdueSweep(force bool) schedule.SweepResult
	OverdueStatusReport() schedule.OverdueStatus
	ResetOverdueThrottle() error
}

type handlers struct {
	checker Checker
	gate    ProtectionControl
	tasks   TaskService
	metrics Metrics
	log     logger.Logger
}

type checkRequest struct {
	Usernames []string `json:"usernames" validate:"required|minLen:1"`
}

type batchStats struct {
	TotalChecked int    `json:"totalChecked"`
	SuccessCount int    `json:"successCount"`
	ErrorCount   int    `json:"errorCount"`
	Stopped      bool   `json:"stopped,omitempty"`
	StopReason   string `json:"stopReason,omitempty"`
}

type checkResponse struct {
	Results       []*watcher.Result `json:"results"`
	BotProtection batchStats        `json:"botProtection"`
}

func (h *handlers) checkPrivacy(w http.ResponseWriter, r *http.Request) {
	h.runChecks(w, r, schedule.TaskPrivacy)
}

func (h *handlers) checkNewStories(w http.ResponseWriter, r *http.Request) {
	h.runChecks(w, r, schedule.TaskStories)
}

func (h *handlers) runChecks(w http.ResponseWriter, r *http.Request, taskType schedule.TaskType) {
	var req checkRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	summary, err := h.checker.RunBatch(r.Context(), taskType, req.Usernames)
	if err != nil {
		if typ := apperrors.TypeOf(err); apperrors.AbortsBatch(typ) {
			h.metrics.IncGateDecision(false)
			respondJSON(w, apperrors.HTTPStatus(typ), map[string]interface{}{
				"error":      "Rate limited",
				"reason":     err.Error(),
				"retryAfter": retryAfterSeconds,
			})
			return
		}
		h.log.WithError(err).Error("Batch check failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.metrics.IncGateDecision(true)
	h.metrics.AddCheckResults(string(taskType), summary.SuccessCount, summary.ErrorCount)

	respondJSON(w, http.StatusOK, checkResponse{
		Results: summary.Results,
		BotProtection: batchStats{
			TotalChecked: summary.TotalChecked,
			SuccessCount: summary.SuccessCount,
			ErrorCount:   summary.ErrorCount,
			Stopped:      summary.Stopped,
			StopReason:   summary.StopReason,
		},
	})
}

type scheduleRequest struct {
	Type           string   `json:"type" validate:"required|in:privacy,stories"`
	Usernames      []string `json:"usernames" validate:"required|minLen:1"`
	Email          string   `json:"email" validate:"required|email"`
	CheckFrequency int      `json:"checkFrequency"`
	IsActive       *bool    `json:"isActive"`
}

func (h *handlers) scheduleNotification(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	task, err := h.tasks.Create(schedule.CreateParams{
		Type:           schedule.TaskType(req.Type),
		Usernames:      req.Usernames,
		Email:          req.Email,
		CheckFrequency: req.CheckFrequency,
		IsActive:       active,
	})
	if err != nil {
		h.log.WithError(err).Error("Failed to create scheduled task")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"taskId":      task.ID,
		"nextRunTime": task.NextRunTime,
		"message":     "Notification scheduled",
	})
}

func (h *handlers) listScheduledTasks(w http.ResponseWriter, r *http.Request) {
	tasks := h.tasks.List()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

type updateTaskRequest struct {
	Usernames      []string `json:"usernames"`
	Email          *string  `json:"email"`
	CheckFrequency *int     `json:"checkFrequency"`
	IsActive       *bool    `json:"isActive"`
}

func (h *handlers) updateScheduledTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateTaskRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.tasks.Update(id, schedule.UpdateParams{
		Usernames:      req.Usernames,
		Email:          req.Email,
		CheckFrequency: req.CheckFrequency,
		IsActive:       req.IsActive,
	})
	if err != nil {
		h.respondTaskError(w, id, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"task":    task,
	})
}

func (h *handlers) deleteScheduledTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.tasks.Delete(id); err != nil {
		h.respondTaskError(w, id, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Task deleted",
	})
}

func (h *handlers) respondTaskError(w http.ResponseWriter, id string, err error) {
	status := apperrors.HTTPStatus(apperrors.TypeOf(err))
	if status == http.StatusNotFound {
		respondError(w, status, "Task not found: "+id)
		return
	}
	h.log.WithError(err).WithField("task_id", id).Error("Task operation failed")
	respondError(w, status, "Internal server error")
}

func (h *handlers) checkOverdueEmails(w http.ResponseWriter, r *http.Request) {
	result := h.tasks.RunOverdueSweep(true)
	respondJSON(w, http.StatusOK, result)
}

func (h *handlers) overdueCheckStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.tasks.OverdueStatusReport())
}

func (h *handlers) resetOverdueCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.ResetOverdueThrottle(); err != nil {
		h.log.WithError(err).Error("Failed to reset overdue throttle")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Overdue check throttle reset",
	})
}

type windowUsage struct {
	Current   int `json:"current"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

type botProtectionStatus struct {
	Allowed            bool                     `json:"allowed"`
	Reason             string                   `json:"reason,omitempty"`
	Daily              windowUsage              `json:"daily"`
	Hourly             windowUsage              `json:"hourly"`
	MinIntervalMinutes int                      `json:"minIntervalMinutes"`
	TimeUntilNextCheck int                      `json:"timeUntilNextCheck"`
	TimeMultiplier     float64                  `json:"timeMultiplier"`
	LastCheckTime      *time.Time               `json:"lastCheckTime"`
	ResetTime          *time.Time               `json:"resetTime"`
	SafetyMode         protection.SafetyMode    `json:"safetyMode"`
	EmergencyMode      protection.EmergencyMode `json:"emergencyMode"`
	Statistics         protection.Statistics    `json:"statistics"`
}

func (h *handlers) botProtectionStatus(w http.ResponseWriter, r *http.Request) {
	report := h.gate.Status()

	wait := report.Decision.WaitMinutes
	if report.Decision.WaitHours > 0 {
		wait = report.Decision.WaitHours * 60
	}

	respondJSON(w, http.StatusOK, botProtectionStatus{
		Allowed:            report.Decision.Allowed,
		Reason:             report.Decision.Reason,
		Daily:              usage(report.ChecksToday, report.DailyLimit),
		Hourly:             usage(report.ChecksThisHour, report.HourlyLimit),
		MinIntervalMinutes: report.MinIntervalMinutes,
		TimeUntilNextCheck: wait,
		TimeMultiplier:     report.TimeMultiplier,
		LastCheckTime:      report.LastCheckTime,
		ResetTime:          report.ResetTime,
		SafetyMode:         report.SafetyMode,
		EmergencyMode:      report.EmergencyMode,
		Statistics:         report.Statistics,
	})
}

func usage(current, limit int) windowUsage {
	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}
	return windowUsage{Current: current, Limit: limit, Remaining: remaining}
}

func (h *handlers) resetBotProtection(w http.ResponseWriter, r *http.Request) {
	h.gate.Reset()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Bot protection state reset",
	})
}

func (h *handlers) accountStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.gate.AccountStatus())
}

// decodeAndValidate parses the JSON body into dst and runs its
// validation rules, writing a 400 on failure.
func (h *handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	v := validate.Struct(dst)
	if !v.Validate() {
		respondError(w, http.StatusBadRequest, v.Errors.One())
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
