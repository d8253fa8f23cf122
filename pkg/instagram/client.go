// Package instagram is a minimal client for the private Instagram web
// API: profile metadata and active story reels, authenticated with a
// browser session cookie.
package instagram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"igmonitor/pkg/config"
	apperrors "igmonitor/pkg/errors"
	"igmonitor/pkg/logger"
)

// Client talks to the Instagram web API with a fixed session identity.
type Client struct {
	httpClient *http.Client
	baseURL    string
	sessionID  string
	csrfToken  string
	userAgent  string
	log        logger.Logger
}

// NewClient builds a client from the Instagram section of the config.
func NewClient(cfg config.InstagramConfig, timeout time.Duration, log logger.Logger) *Client {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    BaseURL,
		sessionID:  cfg.SessionID,
		csrfToken:  cfg.CSRFToken,
		userAgent:  userAgent,
		log:        log,
	}
}

// SetBaseURL overrides the API host. Used by tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// SetCredentials replaces the session identity.
func (c *Client) SetCredentials(sessionID, csrfToken string) {
	c.sessionID = sessionID
	c.csrfToken = csrfToken
}

// Profile fetches public profile metadata for a username.
func (c *Client) Profile(ctx context.Context, username string) (*Profile, error) {
	username = SanitizeUsername(username)
	if !IsValidUsername(username) {
		return nil, apperrors.Newf(apperrors.ErrorTypeTransient, "invalid username %q", username)
	}

	var resp profileResponse
	if err := c.getJSON(ctx, ProfileURL(c.baseURL, username), &resp); err != nil {
		return nil, err
	}
	if resp.RequiresToLogin {
		return nil, apperrors.New(apperrors.ErrorTypeSuspiciousUpstream, "login required")
	}
	if resp.Status != "ok" {
		return nil, upstreamError(resp.Message, 0)
	}
	if resp.Data.User.Username == "" {
		return nil, apperrors.Newf(apperrors.ErrorTypeNotFound, "user not found: %s", username)
	}

	user := resp.Data.User
	return &Profile{
		ID:            user.ID,
		Username:      user.Username,
		FullName:      user.FullName,
		IsPrivate:     user.IsPrivate,
		IsVerified:    user.IsVerified,
		FollowerCount: user.FollowedByCount.Count,
	}, nil
}

// StoryCount returns how many story items are currently active for a
// user id. Private accounts the session does not follow yield zero.
func (c *Client) StoryCount(ctx context.Context, userID string) (int, error) {
	var resp reelsResponse
	if err := c.getJSON(ctx, ReelsURL(c.baseURL, userID), &resp); err != nil {
		return 0, err
	}
	if resp.Status != "ok" {
		return 0, upstreamError(resp.Message, 0)
	}
	count := 0
	for _, r := range resp.ReelsMedia {
		count += len(r.Items)
	}
	return count, nil
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperrors.Newf(apperrors.ErrorTypeTransient, "create request: %v", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("X-IG-App-ID", AppID)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if c.csrfToken != "" {
		req.Header.Set("X-CSRFToken", c.csrfToken)
	}
	if c.sessionID != "" {
		req.Header.Set("Cookie", fmt.Sprintf("sessionid=%s; csrftoken=%s", c.sessionID, c.csrfToken))
	}

	start := time.Now()
	c.log.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":   req.URL.String(),
			"error": err.Error(),
		})
		return apperrors.Newf(apperrors.ErrorTypeTransient, "network error: %v", err)
	}
	defer resp.Body.Close()

	c.log.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Newf(apperrors.ErrorTypeTransient, "read response body: %v", err)
	}

	if err := c.checkResponseStatus(resp.StatusCode, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.log.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return apperrors.Newf(apperrors.ErrorTypeTransient, "parse JSON: %v", err)
	}
	return nil
}

// checkResponseStatus maps HTTP status codes to classified errors. The
// message texts deliberately mirror what Instagram reports so that the
// protection gate's keyword heuristics see the real signal.
func (c *Client) checkResponseStatus(status int, body []byte) error {
	if status == http.StatusOK {
		return nil
	}

	// Instagram usually carries a human-readable message in the body.
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	switch status {
	case http.StatusTooManyRequests:
		return upstreamErrorWithFallback(payload.Message, "rate limit exceeded", status)
	case http.StatusUnauthorized, http.StatusForbidden:
		return upstreamErrorWithFallback(payload.Message, "login required", status)
	case http.StatusNotFound:
		return &apperrors.Error{Type: apperrors.ErrorTypeNotFound, Message: "user not found", Code: status}
	case http.StatusBadRequest:
		return upstreamErrorWithFallback(payload.Message, "bad request", status)
	default:
		return &apperrors.Error{
			Type:    apperrors.ErrorTypeTransient,
			Message: fmt.Sprintf("unexpected status %d", status),
			Code:    status,
		}
	}
}

// upstreamError classifies an error message the way the protection gate
// will: ban-like keywords are critical, throttle-like ones suspicious.
func upstreamError(message string, code int) error {
	if message == "" {
		message = "upstream request failed"
	}
	errType := apperrors.ErrorTypeTransient
	switch {
	case matchesKeyword(message, criticalKeywords):
		errType = apperrors.ErrorTypeCriticalUpstream
	case matchesKeyword(message, suspiciousKeywords):
		errType = apperrors.ErrorTypeSuspiciousUpstream
	}
	return &apperrors.Error{Type: errType, Message: message, Code: code}
}

func upstreamErrorWithFallback(message, fallback string, code int) error {
	if message == "" {
		message = fallback
	}
	return upstreamError(message, code)
}

var suspiciousKeywords = []string{
	"rate limit", "too many requests", "checkpoint", "challenge",
	"login required", "temporarily blocked", "try again later", "suspicious",
}

var criticalKeywords = []string{
	"blocked", "suspended", "disabled", "captcha", "checkpoint",
}

func matchesKeyword(message string, keywords []string) bool {
	for _, kw := range keywords {
		if containsFold(message, kw) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
