package integration

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igmonitor/pkg/config"
	"igmonitor/pkg/instagram"
	"igmonitor/pkg/logger"
	"igmonitor/pkg/notify"
	"igmonitor/pkg/protection"
	"igmonitor/pkg/schedule"
	"igmonitor/pkg/server"
	"igmonitor/pkg/watcher"
)

// testEnv wires the full stack against a mock upstream: real gate, real
// sequencer, real scheduler, real HTTP handlers.
type testEnv struct {
	handler   http.Handler
	upstream  *mockUpstream
	protStore *protection.Store
	gate      *protection.Gate
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logger.NewNop()
	dir := t.TempDir()

	upstream := newMockUpstream()
	t.Cleanup(upstream.Close)

	protStore, err := protection.NewStore(dir, protection.BaseQuotas{
		DailyCheckLimit:  50,
		MaxChecksPerHour: 10,
	}, log)
	require.NoError(t, err)

	// Behavioral delays would stall the test run.
	st := protStore.Load()
	st.Advanced.BehavioralPatterns.HumanLikeDelays.Enabled = false
	st.Advanced.BehavioralPatterns.SessionBreaks.Enabled = false
	st.Advanced.RandomDelays.Enabled = false
	require.NoError(t, protStore.Save(st))

	gate := protection.NewGate(protStore, log)

	client := instagram.NewClient(config.InstagramConfig{
		SessionID: "test-session",
		CSRFToken: "test-csrf",
	}, 5*time.Second, log)
	client.SetBaseURL(upstream.URL())

	seq := watcher.NewSequencer(gate, 5*time.Second, log)
	mailer := notify.NewMailer(config.EmailConfig{Enabled: false}, log)
	runner := watcher.NewTaskRunner(seq, mailer, log,
		watcher.NewPrivacyCheck(client),
		watcher.NewStoriesCheck(client),
	)

	taskStore, err := schedule.NewStore(dir, log)
	require.NoError(t, err)
	scheduler := schedule.NewScheduler(taskStore, runner.Execute, log)
	t.Cleanup(scheduler.Stop)

	srv := server.NewServer(config.ServerConfig{Addr: ":0"}, runner, gate, scheduler, server.NewNoopMetrics(), log)

	return &testEnv{
		handler:   srv.Handler(),
		upstream:  upstream,
		protStore: protStore,
		gate:      gate,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (e *testEnv) activateEmergency(t *testing.T, trigger string) {
	t.Helper()
	st := e.protStore.Load()
	now := time.Now()
	st.EmergencyMode.Enabled = true
	st.EmergencyMode.TriggeredBy = trigger
	st.EmergencyMode.ActivationTime = &now
	require.NoError(t, e.protStore.Save(st))
}

func TestCheckPrivacyEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.AddProfile("alice", mockProfile{ID: "1001", FullName: "Alice", IsPrivate: true})

	rec := env.do(t, http.MethodPost, "/api/check-privacy", map[string]interface{}{
		"usernames": []string{"alice"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := env.decode(t, rec)

	results := body["results"].([]interface{})
	require.Len(t, results, 1)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "alice", first["username"])
	assert.Equal(t, true, first["isPrivate"])

	bp := body["botProtection"].(map[string]interface{})
	assert.Equal(t, float64(1), bp["totalChecked"])
	assert.Equal(t, float64(1), bp["successCount"])
	assert.Equal(t, float64(0), bp["errorCount"])

	assert.Equal(t, 1, env.upstream.Requests())
}

func TestCheckNewStoriesEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.AddProfile("bob", mockProfile{ID: "1002", FullName: "Bob", StoryCount: 3})

	rec := env.do(t, http.MethodPost, "/api/check-new-stories", map[string]interface{}{
		"usernames": []string{"bob"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := env.decode(t, rec)

	results := body["results"].([]interface{})
	require.Len(t, results, 1)
	first := results[0].(map[string]interface{})
	assert.Equal(t, true, first["hasNewStories"])
	assert.Equal(t, float64(3), first["storyCount"])
}

func TestBatchStopsOnRequestCooldown(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.AddProfile("alice", mockProfile{ID: "1001"})
	env.upstream.AddProfile("bob", mockProfile{ID: "1002"})

	// The second check lands inside the consecutive-request cooldown,
	// so the batch stops with a partial summary.
	rec := env.do(t, http.MethodPost, "/api/check-privacy", map[string]interface{}{
		"usernames": []string{"alice", "bob"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := env.decode(t, rec)

	bp := body["botProtection"].(map[string]interface{})
	assert.Equal(t, float64(1), bp["totalChecked"])
	assert.Equal(t, true, bp["stopped"])
	require.Len(t, body["results"].([]interface{}), 1)
}

func TestCheckDeniedWithRetryAfter(t *testing.T) {
	env := newTestEnv(t)
	env.activateEmergency(t, "checkpoint required")

	rec := env.do(t, http.MethodPost, "/api/check-privacy", map[string]interface{}{
		"usernames": []string{"alice"},
	})

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := env.decode(t, rec)
	assert.Equal(t, "Rate limited", body["error"])
	assert.Contains(t, body["reason"], "Emergency Mode")
	assert.Equal(t, float64(300), body["retryAfter"])
	assert.Equal(t, 0, env.upstream.Requests())
}

func TestScheduleLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/schedule-notification", map[string]interface{}{
		"type":           "privacy",
		"usernames":      []string{"alice"},
		"email":          "subscriber@example.com",
		"checkFrequency": 6,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	created := env.decode(t, rec)
	taskID := created["taskId"].(string)
	require.NotEmpty(t, taskID)
	assert.NotEmpty(t, created["nextRunTime"])

	rec = env.do(t, http.MethodGet, "/api/scheduled-tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), env.decode(t, rec)["count"])

	rec = env.do(t, http.MethodPut, "/api/scheduled-task/"+taskID, map[string]interface{}{
		"isActive": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/scheduled-task/"+taskID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/scheduled-task/"+taskID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScheduleSupersedesSamePair(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]interface{}{
		"type":      "privacy",
		"usernames": []string{"alice"},
		"email":     "subscriber@example.com",
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/schedule-notification", payload).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/schedule-notification", payload).Code)

	rec := env.do(t, http.MethodGet, "/api/scheduled-tasks", nil)
	assert.Equal(t, float64(1), env.decode(t, rec)["count"])
}

func TestOverdueEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/overdue-check-status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := env.decode(t, rec)
	assert.Equal(t, float64(24), status["checkIntervalHours"])

	rec = env.do(t, http.MethodPost, "/api/check-overdue-emails", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/reset-overdue-check", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, env.decode(t, rec)["success"])
}

func TestBotProtectionStatusReflectsChecks(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.AddProfile("alice", mockProfile{ID: "1001"})

	env.do(t, http.MethodPost, "/api/check-privacy", map[string]interface{}{
		"usernames": []string{"alice"},
	})

	rec := env.do(t, http.MethodGet, "/api/bot-protection-status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := env.decode(t, rec)

	daily := body["daily"].(map[string]interface{})
	assert.Equal(t, float64(1), daily["current"])
	assert.Equal(t, float64(50), daily["limit"])
	assert.Equal(t, float64(49), daily["remaining"])

	hourly := body["hourly"].(map[string]interface{})
	assert.Equal(t, float64(1), hourly["current"])
}

func TestAccountStatusEmergency(t *testing.T) {
	env := newTestEnv(t)
	env.activateEmergency(t, "checkpoint required")

	rec := env.do(t, http.MethodGet, "/api/account-status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := env.decode(t, rec)
	assert.Equal(t, "EMERGENCY", body["status"])
	assert.Equal(t, "checkpoint required", body["triggeredBy"])
}

func TestResetBotProtectionRestoresService(t *testing.T) {
	env := newTestEnv(t)
	env.activateEmergency(t, "checkpoint required")

	rec := env.do(t, http.MethodPost, "/api/reset-bot-protection", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/bot-protection-status", nil)
	body := env.decode(t, rec)
	assert.Equal(t, true, body["allowed"])
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", env.decode(t, rec)["status"])
}
